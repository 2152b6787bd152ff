// Package transcribe provides an Amazon Transcribe streaming recognizer
// covering the standard and medical engines.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming/types"
	"github.com/rs/zerolog/log"

	"voice-transcription-service/internal/service/stt"
)

// ProviderName identifies this recognizer in logs and metrics.
const ProviderName = "transcribe"

// StreamingAPI is the subset of the Transcribe streaming client used here.
type StreamingAPI interface {
	StartStreamTranscription(ctx context.Context, in *transcribestreaming.StartStreamTranscriptionInput, optFns ...func(*transcribestreaming.Options)) (*transcribestreaming.StartStreamTranscriptionOutput, error)
	StartMedicalStreamTranscription(ctx context.Context, in *transcribestreaming.StartMedicalStreamTranscriptionInput, optFns ...func(*transcribestreaming.Options)) (*transcribestreaming.StartMedicalStreamTranscriptionOutput, error)
}

// session is an open bidirectional recognition stream with provider events
// already converted to stt.Result.
type session interface {
	Send(ctx context.Context, chunk []byte) error
	CloseSend() error
	Results() <-chan stt.Result
	Close() error
	Err() error
}

// Adapter implements stt.Recognizer on Amazon Transcribe streaming.
type Adapter struct {
	open func(ctx context.Context, req stt.Request) (session, error)
}

// New creates an adapter over a Transcribe streaming client.
func New(client StreamingAPI) *Adapter {
	return &Adapter{open: func(ctx context.Context, req stt.Request) (session, error) {
		return openSession(ctx, client, req)
	}}
}

// Name implements stt.Recognizer.
func (a *Adapter) Name() string { return ProviderName }

// Recognize implements stt.Recognizer. End of audio is signalled by closing
// the request side of the stream; results are read until the provider
// closes the response side.
func (a *Adapter) Recognize(ctx context.Context, req stt.Request, frames <-chan []byte, cb stt.Callback) error {
	start := time.Now()
	sess, err := a.open(ctx, req)
	if err != nil {
		err = fmt.Errorf("start transcription: %w", err)
		cb.OnError(err)
		return err
	}
	defer sess.Close()

	pumpErr := make(chan error, 1)
	go func() {
		pumpErr <- pump(ctx, sess, frames)
	}()

	count := 0
	for r := range sess.Results() {
		count++
		cb.OnResult(r)
	}

	if err := <-pumpErr; err != nil && ctx.Err() == nil {
		cb.OnError(err)
		return err
	}
	if err := sess.Err(); err != nil && !errors.Is(err, context.Canceled) {
		cb.OnError(err)
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	log.Debug().
		Int("results", count).
		Dur("duration", time.Since(start)).
		Msg("Transcription stream completed")
	return nil
}

func pump(ctx context.Context, sess session, frames <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			sess.Close()
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				return sess.CloseSend()
			}
			if err := sess.Send(ctx, f); err != nil {
				sess.Close()
				return fmt.Errorf("send audio: %w", err)
			}
		}
	}
}

// StandardInput builds the request for the standard engine.
func StandardInput(r stt.StandardRequest) *transcribestreaming.StartStreamTranscriptionInput {
	in := &transcribestreaming.StartStreamTranscriptionInput{
		LanguageCode:         types.LanguageCode(r.LanguageCode),
		MediaEncoding:        types.MediaEncodingPcm,
		MediaSampleRateHertz: aws.Int32(r.SampleRateHz),
	}
	if r.VocabularyName != "" {
		in.VocabularyName = aws.String(r.VocabularyName)
	}
	if r.VocabularyFilterName != "" {
		in.VocabularyFilterName = aws.String(r.VocabularyFilterName)
		in.VocabularyFilterMethod = types.VocabularyFilterMethod(r.VocabularyFilterMethod)
	}
	return in
}

// MedicalInput builds the request for the medical engine.
func MedicalInput(r stt.MedicalRequest) *transcribestreaming.StartMedicalStreamTranscriptionInput {
	in := &transcribestreaming.StartMedicalStreamTranscriptionInput{
		LanguageCode:         types.LanguageCode(r.LanguageCode),
		MediaEncoding:        types.MediaEncodingPcm,
		MediaSampleRateHertz: aws.Int32(r.SampleRateHz),
		Specialty:            types.Specialty(r.Specialty),
		Type:                 types.Type(r.Type),
	}
	if r.VocabularyName != "" {
		in.VocabularyName = aws.String(r.VocabularyName)
	}
	return in
}
