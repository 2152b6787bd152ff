// Package stt defines the speech recognition boundary used by the track
// pipelines.
package stt

import "context"

// Result is one recognition result. StartSeconds and EndSeconds are offsets
// from the beginning of the audio sent on the session.
type Result struct {
	ResultID     string
	Text         string
	StartSeconds float64
	EndSeconds   float64
	IsPartial    bool
	Confidence   float64
}

// Callback receives results from a recognizer, in the order the provider
// produced them.
type Callback interface {
	// OnResult is called for every partial and final result.
	OnResult(r Result)

	// OnError is called when the recognition stream fails.
	OnError(err error)
}

// Recognizer runs streaming recognition sessions (Amazon Transcribe, Google,
// mock).
type Recognizer interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Recognize streams frames to the provider and delivers results to cb.
	// It returns once frames is closed and every result has been delivered,
	// or when ctx is done or the stream fails.
	Recognize(ctx context.Context, req Request, frames <-chan []byte, cb Callback) error
}
