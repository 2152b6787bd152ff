// Package delivery posts finalized transcript segments to the voice call
// messages endpoint.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"voice-transcription-service/internal/attributes"
	"voice-transcription-service/internal/events"
	"voice-transcription-service/internal/models"
	"voice-transcription-service/internal/observability"
	"voice-transcription-service/internal/observability/logging"
	"voice-transcription-service/internal/observability/metrics"
)

// TokenSource supplies bearer tokens.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Config identifies the call a client delivers for.
type Config struct {
	EndpointBase        string
	Timeout             time.Duration
	VoiceCallID         string
	InstanceARN         string
	CustomerPhoneNumber string
}

// Outcome describes how one delivery ended. StatusCode is 0 when no
// response was received.
type Outcome struct {
	StatusCode int
	Status     string
	Err        error
}

// Client delivers segments for one voice call. Send is safe for concurrent
// use; the orchestrator calls it from one goroutine per direction.
type Client struct {
	cfg     Config
	http    *http.Client
	tokens  TokenSource
	attrs   attributes.Updater
	sink    events.Sink
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSink mirrors delivered segments and status changes to sink.
func WithSink(sink events.Sink) Option {
	return func(c *Client) { c.sink = sink }
}

// WithMetrics overrides the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a delivery client.
func New(cfg Config, tokens TokenSource, attrs attributes.Updater, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Transport: observability.NewTransport(nil, "delivery")},
		tokens:  tokens,
		attrs:   attrs,
		metrics: metrics.DefaultMetrics,
		log:     logging.WithVoiceCall(cfg.VoiceCallID, cfg.InstanceARN),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the messages URL for the client's voice call.
func (c *Client) Endpoint() string {
	return c.cfg.EndpointBase + "/voiceCalls/" + url.PathEscape(c.cfg.VoiceCallID) + "/messages/"
}

// Participant returns the sender identity for segments spoken in direction d.
func (c *Client) Participant(d models.Direction) (string, models.SenderType) {
	if d == models.FromCustomer {
		return c.cfg.CustomerPhoneNumber, models.EndUser
	}
	return c.cfg.VoiceCallID, models.HumanAgent
}

// Send posts one segment. Failures are logged and reported in the returned
// Outcome; Send never panics. A 429 response triggers exactly one contact
// attribute update and no re-send.
func (c *Client) Send(ctx context.Context, seg models.TranscriptSegment) (out Outcome) {
	start := time.Now()
	endpoint := c.Endpoint()

	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Err: fmt.Errorf("%w: panic: %v", models.ErrTransport, r)}
			c.log.Error().Interface("panic", r).Str("messageId", seg.MessageID).Msg("Recovered from panic in delivery")
		}
		c.metrics.RecordDelivery(string(seg.Direction), out.StatusCode, time.Since(start).Seconds())
	}()

	seg.ParticipantID, seg.SenderType = c.Participant(seg.Direction)

	out = c.post(ctx, endpoint, seg)

	ev := c.log.Info()
	if out.Err != nil {
		ev = c.log.Error().Err(out.Err)
	}
	ev.Str("eventType", logging.EventTranscription).
		Str("direction", string(seg.Direction)).
		Int("responseCode", out.StatusCode).
		Str("messageId", seg.MessageID).
		Int64("startTime", seg.StartTime).
		Int64("endTime", seg.EndTime).
		Str("endpoint", endpoint).
		Dur("latency", time.Since(start)).
		Msg(out.Status)

	if out.StatusCode == http.StatusTooManyRequests {
		c.onRateLimited(ctx, seg)
	}
	if out.Err == nil && c.sink != nil {
		_ = c.sink.PublishSegment(ctx, models.SegmentEvent{
			VoiceCallID:   c.cfg.VoiceCallID,
			Direction:     seg.Direction,
			MessageID:     seg.MessageID,
			ParticipantID: seg.ParticipantID,
			SenderType:    seg.SenderType,
			Text:          seg.Text,
			StartTime:     seg.StartTime,
			EndTime:       seg.EndTime,
			StatusCode:    out.StatusCode,
			Timestamp:     time.Now().UnixMilli(),
		})
	}
	return out
}

func (c *Client) post(ctx context.Context, endpoint string, seg models.TranscriptSegment) Outcome {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return Outcome{Status: "token unavailable", Err: err}
	}

	body, err := json.Marshal(seg.Payload())
	if err != nil {
		return Outcome{Status: "encode failed", Err: fmt.Errorf("%w: %v", models.ErrTransport, err)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Outcome{Status: "bad request", Err: fmt.Errorf("%w: %v", models.ErrTransport, err)}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Outcome{Status: "request failed", Err: fmt.Errorf("%w: %v", models.ErrTransport, err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	out := Outcome{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		out.Err = fmt.Errorf("%w: status %d", models.ErrTransport, resp.StatusCode)
	}
	return out
}

func (c *Client) onRateLimited(ctx context.Context, seg models.TranscriptSegment) {
	c.metrics.RecordRateLimited()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
	defer cancel()

	if c.attrs != nil {
		err := c.attrs.UpdateCallAttributes(ctx, c.cfg.VoiceCallID, c.cfg.InstanceARN, map[string]string{
			attributes.TranscriptionStatusKey: attributes.StatusRateLimited,
		})
		if err != nil {
			c.log.Error().Err(err).
				Str("eventType", logging.EventVoiceCall).
				Str("messageId", seg.MessageID).
				Msg("Failed to record rate limit on contact")
		}
	}

	if c.sink != nil {
		_ = c.sink.PublishStatus(ctx, models.StatusEvent{
			VoiceCallID: c.cfg.VoiceCallID,
			Direction:   string(seg.Direction),
			Status:      "RATE_LIMITED",
			Detail:      attributes.StatusRateLimited,
			Timestamp:   time.Now().UnixMilli(),
		})
	}
}
