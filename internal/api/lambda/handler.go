// Package lambda is the invocation boundary. It decodes the request, runs
// the orchestrator and always answers with one of the two fixed result
// shapes.
package lambda

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/rs/zerolog/log"

	"voice-transcription-service/internal/models"
)

// Runner executes one transcription invocation.
type Runner interface {
	Run(ctx context.Context, req models.TranscriptionRequest) (models.Result, error)
}

// FailureReporter is told about every failed invocation.
type FailureReporter func(ctx context.Context, req models.TranscriptionRequest, err error)

// Handler adapts a Runner to the Lambda runtime.
type Handler struct {
	runner    Runner
	onFailure FailureReporter
	afterRun  func(ctx context.Context)
}

// Option configures a Handler.
type Option func(*Handler)

// WithFailureReporter registers a reporter for failed invocations.
func WithFailureReporter(r FailureReporter) Option {
	return func(h *Handler) { h.onFailure = r }
}

// WithAfterRun registers a hook that runs after every invocation, for
// example to flush metrics.
func WithAfterRun(fn func(ctx context.Context)) Option {
	return func(h *Handler) { h.afterRun = fn }
}

// NewHandler creates a handler around runner.
func NewHandler(runner Runner, opts ...Option) *Handler {
	h := &Handler{runner: runner}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle is the Lambda entry point. The returned error is always nil: the
// caller only ever sees {"result":"Success"} or {"result":"Failed"}.
func (h *Handler) Handle(ctx context.Context, event json.RawMessage) (string, error) {
	return h.Invoke(ctx, event).JSON(), nil
}

// Invoke decodes payload and runs it. It never panics.
func (h *Handler) Invoke(ctx context.Context, payload []byte) (result models.Result) {
	start := time.Now()
	logger := log.With().Str("requestId", requestID(ctx)).Logger()

	var req models.TranscriptionRequest
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			logger.Error().Err(err).Str("voiceCallId", req.VoiceCallID).Msg("Recovered from panic in invocation")
			h.fail(ctx, req, err)
			result = models.ResultFailed
		}
		if h.afterRun != nil {
			h.afterRun(ctx)
		}
		logger.Info().
			Str("voiceCallId", req.VoiceCallID).
			Str("result", string(result)).
			Dur("duration", time.Since(start)).
			Msg("Invocation complete")
	}()

	if err := json.Unmarshal(payload, &req); err != nil {
		err = fmt.Errorf("decode request: %w", err)
		logger.Error().Err(err).Msg("Rejected invocation")
		h.fail(ctx, req, err)
		return models.ResultFailed
	}

	logger.Info().Str("request", req.String()).Msg("Invocation received")

	result, err := h.runner.Run(ctx, req)
	if err != nil {
		h.fail(ctx, req, err)
		return models.ResultFailed
	}
	return result
}

func (h *Handler) fail(ctx context.Context, req models.TranscriptionRequest, err error) {
	if h.onFailure != nil {
		h.onFailure(ctx, req, err)
	}
}

func requestID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		return lc.AwsRequestID
	}
	return ""
}
