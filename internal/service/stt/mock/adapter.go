// Package mock provides a scripted recognizer for local runs and tests
// without cloud credentials. It emits progressive partial results followed
// by exactly one final per utterance, timed from the audio it receives.
package mock

import (
	"context"
	"time"

	"github.com/google/uuid"

	"voice-transcription-service/internal/service/stt"
)

// ProviderName identifies this recognizer in logs and metrics.
const ProviderName = "mock"

// SimulatedUtterance is one scripted utterance.
type SimulatedUtterance struct {
	Partials   []string // Progressive partial transcripts
	Final      string   // Final transcript text
	Confidence float64  // Confidence score for final
}

// DefaultUtterances provides sample call utterances.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials:   []string{"I want", "I want to", "I want to cancel"},
		Final:      "I want to cancel my subscription",
		Confidence: 0.94,
	},
	{
		Partials:   []string{"Sure", "Sure I can"},
		Final:      "Sure I can help with that",
		Confidence: 0.97,
	},
	{
		Partials:   []string{"Can you", "Can you confirm"},
		Final:      "Can you confirm the account number",
		Confidence: 0.91,
	},
	{
		Partials:   []string{"Thank you"},
		Final:      "Thank you very much",
		Confidence: 0.98,
	},
}

// Config controls the simulation.
type Config struct {
	Utterances      []SimulatedUtterance
	FramesPerResult int           // audio frames consumed before each result
	Delay           time.Duration // simulated provider latency per result
}

// DefaultConfig returns the default simulation settings.
func DefaultConfig() Config {
	return Config{
		Utterances:      DefaultUtterances,
		FramesPerResult: 5,
		Delay:           0,
	}
}

// Adapter implements stt.Recognizer with scripted responses. Each call to
// Recognize runs an independent script, so one Adapter can serve both
// directions of a call.
type Adapter struct {
	cfg Config
}

// New creates a mock recognizer.
func New(cfg Config) *Adapter {
	if len(cfg.Utterances) == 0 {
		cfg.Utterances = DefaultUtterances
	}
	if cfg.FramesPerResult <= 0 {
		cfg.FramesPerResult = 1
	}
	return &Adapter{cfg: cfg}
}

// Name implements stt.Recognizer.
func (a *Adapter) Name() string { return ProviderName }

// Recognize implements stt.Recognizer. Offsets are derived from the number
// of bytes received, assuming 16-bit mono PCM at the request's sample rate.
func (a *Adapter) Recognize(ctx context.Context, req stt.Request, frames <-chan []byte, cb stt.Callback) error {
	rate := float64(req.Settings().SampleRateHz)
	if rate <= 0 {
		rate = stt.TelephonySampleRateHz
	}
	s := &script{cfg: a.cfg, bytesPerSecond: rate * 2}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				if r, ok := s.flush(); ok {
					if err := a.emit(ctx, cb, r); err != nil {
						return err
					}
				}
				return nil
			}
			if r, ok := s.feed(len(f)); ok {
				if err := a.emit(ctx, cb, r); err != nil {
					return err
				}
			}
		}
	}
}

func (a *Adapter) emit(ctx context.Context, cb stt.Callback, r stt.Result) error {
	if a.cfg.Delay > 0 {
		select {
		case <-time.After(a.cfg.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	cb.OnResult(r)
	return nil
}

// script tracks progress through the utterance list.
type script struct {
	cfg            Config
	bytesPerSecond float64

	bytes      int
	frames     int
	utterance  int
	partial    int
	resultID   string
	started    float64
	inProgress bool
}

func (s *script) now() float64 {
	return float64(s.bytes) / s.bytesPerSecond
}

func (s *script) feed(n int) (stt.Result, bool) {
	s.bytes += n
	s.frames++
	if s.frames%s.cfg.FramesPerResult != 0 {
		return stt.Result{}, false
	}

	utt := s.cfg.Utterances[s.utterance%len(s.cfg.Utterances)]
	if !s.inProgress {
		s.inProgress = true
		s.partial = 0
		s.resultID = uuid.NewString()
		s.started = s.now() - float64(n)/s.bytesPerSecond
	}

	if s.partial < len(utt.Partials) {
		text := utt.Partials[s.partial]
		s.partial++
		return stt.Result{
			ResultID:     s.resultID,
			Text:         text,
			StartSeconds: s.started,
			EndSeconds:   s.now(),
			IsPartial:    true,
		}, true
	}
	return s.finish(), true
}

func (s *script) flush() (stt.Result, bool) {
	if !s.inProgress {
		return stt.Result{}, false
	}
	return s.finish(), true
}

func (s *script) finish() stt.Result {
	utt := s.cfg.Utterances[s.utterance%len(s.cfg.Utterances)]
	r := stt.Result{
		ResultID:     s.resultID,
		Text:         utt.Final,
		StartSeconds: s.started,
		EndSeconds:   s.now(),
		Confidence:   utt.Confidence,
	}
	s.utterance++
	s.inProgress = false
	return r
}
