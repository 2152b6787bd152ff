package observability

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Transport is an http.RoundTripper that logs every outbound call with its
// status and duration.
type Transport struct {
	Base      http.RoundTripper
	Component string
}

// NewTransport wraps base, or a clone of http.DefaultTransport when base is nil.
func NewTransport(base http.RoundTripper, component string) *Transport {
	if base == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.MaxIdleConnsPerHost = 4
		t.IdleConnTimeout = 90 * time.Second
		base = t
	}
	return &Transport{Base: base, Component: component}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	resp, err := t.Base.RoundTrip(req)

	duration := time.Since(start)
	ev := log.Debug()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	code := 0
	if resp != nil {
		code = resp.StatusCode
	}
	ev.Str("component", t.Component).
		Str("method", req.Method).
		Str("host", req.URL.Host).
		Int("code", code).
		Dur("duration", duration).
		Msg("HTTP call")

	return resp, err
}
