package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rs/zerolog/log"
)

// Pusher sends the default registry to a Pushgateway. Lambda invocations
// are too short-lived to be scraped, so metrics are pushed once per call.
type Pusher struct {
	url string
	job string
}

// NewPusher returns a pusher, or nil when url is empty.
func NewPusher(url, job string) *Pusher {
	if url == "" {
		return nil
	}
	return &Pusher{url: url, job: job}
}

// Push adds the current metric values to the gateway. Errors are logged.
func (p *Pusher) Push(ctx context.Context, grouping map[string]string) {
	if p == nil {
		return
	}
	start := time.Now()

	pusher := push.New(p.url, p.job).Gatherer(prometheus.DefaultGatherer)
	for k, v := range grouping {
		pusher = pusher.Grouping(k, v)
	}
	if err := pusher.AddContext(ctx); err != nil {
		log.Warn().Err(err).Str("pushgateway", p.url).Msg("Failed to push metrics")
		return
	}
	log.Debug().Dur("duration", time.Since(start)).Msg("Metrics pushed")
}
