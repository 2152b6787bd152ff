// Package audio runs the transcription pipeline for one direction of a
// call: demuxed frames go to the recognizer, finalized results go to the
// delivery client.
package audio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"voice-transcription-service/internal/delivery"
	"voice-transcription-service/internal/models"
	"voice-transcription-service/internal/observability/logging"
	"voice-transcription-service/internal/observability/metrics"
	"voice-transcription-service/internal/service/segment"
	"voice-transcription-service/internal/service/stt"
)

// Source supplies demuxed audio frames. track.Session implements it.
type Source interface {
	Frames() <-chan []byte
	Pump(ctx context.Context, onFrame func(n int)) error
}

// Sender delivers one segment. delivery.Client implements it.
type Sender interface {
	Send(ctx context.Context, seg models.TranscriptSegment) delivery.Outcome
}

// Stats summarizes one pipeline run.
type Stats struct {
	AudioBytes int64
	Frames     int
	Partials   int
	Finals     int
	Delivered  int
	Failed     int
	STTErrors  int
}

// Handler manages the transcription of one direction.
// It implements stt.Callback; results are delivered synchronously from the
// recognizer's goroutine so segments keep their finalization order.
type Handler struct {
	recognizer stt.Recognizer
	request    stt.Request
	builder    *segment.Builder
	sender     Sender
	direction  models.Direction
	metrics    *metrics.Metrics
	log        zerolog.Logger

	// ctx for deliveries, set by Run
	ctx context.Context

	mu      sync.Mutex
	stats   Stats
	started time.Time
}

// NewHandler creates a handler for direction. builder converts results to
// segments, sender delivers them.
func NewHandler(
	recognizer stt.Recognizer,
	request stt.Request,
	builder *segment.Builder,
	sender Sender,
	voiceCallID string,
	direction models.Direction,
) *Handler {
	return &Handler{
		recognizer: recognizer,
		request:    request,
		builder:    builder,
		sender:     sender,
		direction:  direction,
		metrics:    metrics.DefaultMetrics,
		log:        logging.WithTrack(voiceCallID, direction),
		ctx:        context.Background(),
	}
}

// SetMetrics overrides the metrics sink.
func (h *Handler) SetMetrics(m *metrics.Metrics) {
	h.metrics = m
}

// Run pumps src into the recognizer and blocks until the recognizer has
// consumed every frame or either side fails. A pump failure cancels the
// recognizer and the other way around.
func (h *Handler) Run(ctx context.Context, src Source) error {
	h.mu.Lock()
	h.ctx = ctx
	h.started = time.Now()
	h.mu.Unlock()

	h.metrics.RecordSessionStart(string(h.direction))
	defer h.metrics.RecordSessionEnd()

	h.log.Info().
		Str("provider", h.recognizer.Name()).
		Int32("sampleRateHz", h.request.Settings().SampleRateHz).
		Msg("Recognition started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return src.Pump(gctx, h.onFrame)
	})
	g.Go(func() error {
		return h.recognizer.Recognize(gctx, h.request, src.Frames(), h)
	})
	err := g.Wait()

	stats := h.Stats()
	ev := h.log.Info()
	if err != nil {
		ev = h.log.Error().Err(err)
		h.metrics.RecordSessionFailed(string(h.direction), reason(err))
	}
	ev.Str("eventType", logging.EventPerformance).
		Int64("audioBytes", stats.AudioBytes).
		Int("frames", stats.Frames).
		Int("partials", stats.Partials).
		Int("finals", stats.Finals).
		Int("delivered", stats.Delivered).
		Int("failed", stats.Failed).
		Dur("duration", time.Since(h.started)).
		Msg("Recognition ended")
	return err
}

// Stats returns a snapshot of the pipeline counters.
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

func (h *Handler) onFrame(n int) {
	h.mu.Lock()
	h.stats.AudioBytes += int64(n)
	h.stats.Frames++
	h.mu.Unlock()
	h.metrics.RecordAudioReceived(string(h.direction), n)
}

// --- stt.Callback implementation ---

// OnResult converts final results to segments and delivers them.
// Partial and empty results are counted and dropped.
func (h *Handler) OnResult(r stt.Result) {
	if r.IsPartial {
		h.mu.Lock()
		h.stats.Partials++
		h.mu.Unlock()
		h.metrics.RecordPartialTranscript(string(h.direction))
		return
	}

	seg, ok := h.builder.Build(r)
	if !ok {
		h.log.Debug().Str("resultId", r.ResultID).Msg("Empty final result dropped")
		return
	}
	h.metrics.RecordFinalTranscript(string(h.direction))

	h.mu.Lock()
	h.stats.Finals++
	ctx := h.ctx
	h.mu.Unlock()

	out := h.sender.Send(ctx, seg)

	h.mu.Lock()
	if out.Err != nil {
		h.stats.Failed++
	} else {
		h.stats.Delivered++
	}
	h.mu.Unlock()
}

// OnError records a recognizer error. The recognizer decides whether the
// session continues.
func (h *Handler) OnError(err error) {
	h.mu.Lock()
	h.stats.STTErrors++
	h.mu.Unlock()

	h.metrics.RecordSTTError(h.recognizer.Name(), reason(err))
	h.log.Warn().Err(err).Str("provider", h.recognizer.Name()).Msg("Recognizer reported an error")
}

func reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, models.ErrTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, models.ErrIO):
		return "io"
	default:
		return "recognition"
	}
}
