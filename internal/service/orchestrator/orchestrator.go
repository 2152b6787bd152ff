// Package orchestrator runs one transcription invocation: it validates the
// request, opens a track session per enabled direction, runs the
// recognition pipelines and waits for them under the session deadline.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"voice-transcription-service/internal/config"
	"voice-transcription-service/internal/models"
	"voice-transcription-service/internal/observability/logging"
	"voice-transcription-service/internal/observability/metrics"
	"voice-transcription-service/internal/service/audio"
	"voice-transcription-service/internal/service/segment"
	"voice-transcription-service/internal/service/stt"
)

// Directions in the order they are set up and awaited.
var Directions = []models.Direction{models.FromCustomer, models.ToCustomer}

// cleanupGrace bounds how long cleanup waits for cancelled pipelines.
const cleanupGrace = 5 * time.Second

// Validator checks a request before any session is set up.
type Validator interface {
	Validate(req models.TranscriptionRequest) error
}

// Track is the media side of one direction.
type Track interface {
	audio.Source
	Close() error
}

// TrackBuilder opens a Track for a direction.
type TrackBuilder interface {
	Build(ctx context.Context, streamName, startOffset string, direction models.Direction, voiceCallID string) (Track, error)
}

// TrackBuilderFunc adapts a function to TrackBuilder.
type TrackBuilderFunc func(ctx context.Context, streamName, startOffset string, direction models.Direction, voiceCallID string) (Track, error)

// Build implements TrackBuilder.
func (f TrackBuilderFunc) Build(ctx context.Context, streamName, startOffset string, direction models.Direction, voiceCallID string) (Track, error) {
	return f(ctx, streamName, startOffset, direction, voiceCallID)
}

// SenderFactory returns the delivery client for one invocation.
type SenderFactory func(req models.TranscriptionRequest) audio.Sender

// Config controls how sessions are awaited.
type Config struct {
	Deadline     time.Duration
	WaitMode     string // config.WaitSequential or config.WaitConcurrent
	SampleRateHz int
}

// Orchestrator runs invocations. It holds no per-invocation state and may
// be reused.
type Orchestrator struct {
	cfg        Config
	validator  Validator
	tracks     TrackBuilder
	recognizer stt.Recognizer
	senders    SenderFactory
	metrics    *metrics.Metrics
}

// New creates an orchestrator.
func New(cfg Config, validator Validator, tracks TrackBuilder, recognizer stt.Recognizer, senders SenderFactory) *Orchestrator {
	if cfg.Deadline <= 0 {
		cfg.Deadline = 890 * time.Second
	}
	if cfg.WaitMode == "" {
		cfg.WaitMode = config.WaitSequential
	}
	return &Orchestrator{
		cfg:        cfg,
		validator:  validator,
		tracks:     tracks,
		recognizer: recognizer,
		senders:    senders,
		metrics:    metrics.DefaultMetrics,
	}
}

// SetMetrics overrides the metrics sink.
func (o *Orchestrator) SetMetrics(m *metrics.Metrics) {
	o.metrics = m
}

// task is one running direction.
type task struct {
	direction models.Direction
	track     Track
	cancel    context.CancelFunc
	done      chan error
	finished  bool
}

// Run executes one invocation and reports its result. Any error, including
// a timeout, yields ResultFailed; the error is returned for logging.
func (o *Orchestrator) Run(ctx context.Context, req models.TranscriptionRequest) (models.Result, error) {
	start := time.Now()
	lc := NewLifecycle()
	log := logging.WithVoiceCall(req.VoiceCallID, req.InstanceARN)

	err := o.run(ctx, req, lc, log)
	if err != nil {
		lc.Fail(err)
	}

	result := lc.Result()
	o.metrics.RecordInvocation(string(result), time.Since(start).Seconds())

	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err)
	}
	ev.Str("eventType", logging.EventVoiceCall).
		Str("state", lc.State().String()).
		Str("result", string(result)).
		Dur("duration", time.Since(start)).
		Msg("Transcription invocation finished")

	return result, err
}

func (o *Orchestrator) run(ctx context.Context, req models.TranscriptionRequest, lc *Lifecycle, log zerolog.Logger) error {
	if err := o.validator.Validate(req); err != nil {
		return err
	}

	// SETUP
	if err := lc.Advance(StateSetup); err != nil {
		return err
	}
	tasks, err := o.setup(ctx, req, log)
	defer o.cleanup(tasks, log)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		log.Warn().Msg("No audio direction enabled")
	}

	// RUNNING
	if err := lc.Advance(StateRunning); err != nil {
		return err
	}
	o.start(ctx, req, tasks)

	// AWAITING
	if err := lc.Advance(StateAwaiting); err != nil {
		return err
	}
	if o.cfg.WaitMode == config.WaitConcurrent {
		err = o.waitConcurrent(ctx, tasks)
	} else {
		err = o.waitSequential(ctx, tasks)
	}
	if err != nil {
		return err
	}

	return lc.Advance(StateSuccess)
}

// setup builds a track for every enabled direction. On failure the tracks
// built so far are returned so they can be closed.
func (o *Orchestrator) setup(ctx context.Context, req models.TranscriptionRequest, log zerolog.Logger) ([]*task, error) {
	var tasks []*task
	for _, d := range Directions {
		if !req.Enabled(d) {
			log.Debug().Str("direction", string(d)).Msg("Direction disabled, skipping")
			continue
		}
		tr, err := o.tracks.Build(ctx, req.StreamName(), req.StartFragmentNum, d, req.VoiceCallID)
		if err != nil {
			return tasks, err
		}
		tasks = append(tasks, &task{direction: d, track: tr, done: make(chan error, 1)})
	}
	return tasks, nil
}

func (o *Orchestrator) start(ctx context.Context, req models.TranscriptionRequest, tasks []*task) {
	if len(tasks) == 0 {
		return
	}
	sender := o.senders(req)
	sttReq := stt.BuildRequest(req, o.cfg.SampleRateHz)

	for _, t := range tasks {
		h := audio.NewHandler(o.recognizer, sttReq, segment.NewBuilder(req.AudioStartTimestamp, t.direction), sender, req.VoiceCallID, t.direction)
		h.SetMetrics(o.metrics)

		tctx, cancel := context.WithCancel(ctx)
		t.cancel = cancel
		go func(t *task) {
			defer func() {
				if r := recover(); r != nil {
					t.done <- fmt.Errorf("%s pipeline panic: %v", t.direction, r)
				}
			}()
			t.done <- h.Run(tctx, t.track)
		}(t)
	}
}

// waitSequential waits for each direction in turn, each with its own
// deadline. A slow first direction delays the wait on the second.
func (o *Orchestrator) waitSequential(ctx context.Context, tasks []*task) error {
	for _, t := range tasks {
		if err := o.wait(ctx, t, o.cfg.Deadline); err != nil {
			return err
		}
	}
	return nil
}

// waitConcurrent waits for all directions under one shared deadline.
func (o *Orchestrator) waitConcurrent(ctx context.Context, tasks []*task) error {
	deadline := time.Now().Add(o.cfg.Deadline)
	var g errgroup.Group
	for _, t := range tasks {
		g.Go(func() error {
			return o.wait(ctx, t, time.Until(deadline))
		})
	}
	return g.Wait()
}

func (o *Orchestrator) wait(ctx context.Context, t *task, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-t.done:
		t.finished = true
		if err != nil && ctx.Err() != nil {
			return fmt.Errorf("%s: %w: %v", t.direction, models.ErrTimeout, err)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", t.direction, err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%s: %w after %v", t.direction, models.ErrTimeout, o.cfg.Deadline)
	case <-ctx.Done():
		return fmt.Errorf("%s: %w: %v", t.direction, models.ErrTimeout, ctx.Err())
	}
}

// cleanup cancels every pipeline, closes every track exactly once and gives
// the pipelines a short grace period to exit.
func (o *Orchestrator) cleanup(tasks []*task, log zerolog.Logger) {
	for _, t := range tasks {
		if t.cancel != nil {
			t.cancel()
		}
		if err := t.track.Close(); err != nil {
			log.Warn().Err(err).Str("direction", string(t.direction)).Msg("Failed to close track")
		}
	}

	grace := time.NewTimer(cleanupGrace)
	defer grace.Stop()
	for _, t := range tasks {
		if t.finished || t.cancel == nil {
			continue
		}
		select {
		case <-t.done:
		case <-grace.C:
			log.Warn().Str("direction", string(t.direction)).Msg("Pipeline still running after cleanup")
			return
		}
	}
}
