// Package google provides a Google Cloud Speech-to-Text recognizer.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"voice-transcription-service/internal/service/stt"
)

// ProviderName identifies this recognizer in logs and metrics.
const ProviderName = "google"

// Config holds Google STT configuration.
type Config struct {
	InterimResults bool
	AudioEncoding  string // LINEAR16, MULAW, ...
	Model          string // phone_call, telephony, ...
}

// DefaultConfig returns the configuration used for call audio.
func DefaultConfig() Config {
	return Config{
		InterimResults: true,
		AudioEncoding:  "LINEAR16",
		Model:          "phone_call",
	}
}

type streamOpener func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error)

// Adapter implements stt.Recognizer using Google Cloud Speech-to-Text.
// Requires GOOGLE_APPLICATION_CREDENTIALS to be set.
type Adapter struct {
	cfg    Config
	client *speech.Client
	open   streamOpener
}

// New creates a new Google recognizer.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		cfg:    cfg,
		client: c,
		open: func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error) {
			return c.StreamingRecognize(ctx)
		},
	}, nil
}

// Name implements stt.Recognizer.
func (a *Adapter) Name() string { return ProviderName }

// Close releases the underlying client.
func (a *Adapter) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

// Recognize implements stt.Recognizer. Google results carry no start
// offset; a final's start is the end of the previous final.
func (a *Adapter) Recognize(ctx context.Context, req stt.Request, frames <-chan []byte, cb stt.Callback) error {
	stream, err := a.open(ctx)
	if err != nil {
		cb.OnError(err)
		return err
	}

	settings := req.Settings()
	rc := &speechpb.RecognitionConfig{
		Encoding:        parseAudioEncoding(a.cfg.AudioEncoding),
		SampleRateHertz: settings.SampleRateHz,
		LanguageCode:    settings.LanguageCode,
		Model:           a.cfg.Model,
	}
	if med, ok := req.(stt.MedicalRequest); ok {
		rc.UseEnhanced = true
		log.Debug().Str("specialty", med.Specialty).Msg("Medical request served by general model")
	}
	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config:         rc,
				InterimResults: a.cfg.InterimResults,
			},
		},
	})
	if err != nil {
		cb.OnError(err)
		return err
	}

	go sendAudio(ctx, stream, frames)

	var prevEnd float64
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if status.Code(err) == codes.Canceled && ctx.Err() != nil {
				return ctx.Err()
			}
			err = fmt.Errorf("google recognize: %w", err)
			cb.OnError(err)
			return err
		}

		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			end := r.ResultEndTime.AsDuration().Seconds()
			result := stt.Result{
				ResultID:     uuid.NewString(),
				Text:         r.Alternatives[0].Transcript,
				StartSeconds: prevEnd,
				EndSeconds:   end,
				IsPartial:    !r.IsFinal,
				Confidence:   float64(r.Alternatives[0].Confidence),
			}
			if r.IsFinal {
				prevEnd = end
			}
			cb.OnResult(result)
		}
	}
}

func sendAudio(ctx context.Context, stream speechpb.Speech_StreamingRecognizeClient, frames <-chan []byte) {
	defer stream.CloseSend()
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			err := stream.Send(&speechpb.StreamingRecognizeRequest{
				StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: f},
			})
			if err != nil {
				log.Warn().Err(err).Msg("Failed to send audio to Google")
				return
			}
		}
	}
}

// parseAudioEncoding maps an encoding name onto the Google enum, falling
// back to LINEAR16.
func parseAudioEncoding(encoding string) speechpb.RecognitionConfig_AudioEncoding {
	switch encoding {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
