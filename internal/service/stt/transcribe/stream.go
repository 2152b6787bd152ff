package transcribe

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming/types"

	"voice-transcription-service/internal/service/stt"
)

func openSession(ctx context.Context, client StreamingAPI, req stt.Request) (session, error) {
	switch r := req.(type) {
	case stt.StandardRequest:
		out, err := client.StartStreamTranscription(ctx, StandardInput(r))
		if err != nil {
			return nil, err
		}
		return newStandardSession(out.GetStream()), nil
	case stt.MedicalRequest:
		out, err := client.StartMedicalStreamTranscription(ctx, MedicalInput(r))
		if err != nil {
			return nil, err
		}
		return newMedicalSession(out.GetStream()), nil
	default:
		return nil, fmt.Errorf("unsupported request type %T", req)
	}
}

// audioWriter is the request half shared by both event stream kinds.
type audioWriter struct {
	send      func(ctx context.Context, ev types.AudioStream) error
	closeSend func() error
	close     func() error
	err       func() error
	results   chan stt.Result
}

func (w *audioWriter) Send(ctx context.Context, chunk []byte) error {
	return w.send(ctx, &types.AudioStreamMemberAudioEvent{Value: types.AudioEvent{AudioChunk: chunk}})
}

func (w *audioWriter) CloseSend() error           { return w.closeSend() }
func (w *audioWriter) Close() error               { return w.close() }
func (w *audioWriter) Err() error                 { return w.err() }
func (w *audioWriter) Results() <-chan stt.Result { return w.results }

func newStandardSession(es *transcribestreaming.StartStreamTranscriptionEventStream) session {
	w := &audioWriter{
		send:      es.Send,
		closeSend: es.Writer.Close,
		close:     es.Close,
		err:       es.Err,
		results:   make(chan stt.Result),
	}
	go func() {
		defer close(w.results)
		for ev := range es.Events() {
			te, ok := ev.(*types.TranscriptResultStreamMemberTranscriptEvent)
			if !ok || te.Value.Transcript == nil || len(te.Value.Transcript.Results) == 0 {
				continue
			}
			w.results <- fromResult(te.Value.Transcript.Results[0])
		}
	}()
	return w
}

func newMedicalSession(es *transcribestreaming.StartMedicalStreamTranscriptionEventStream) session {
	w := &audioWriter{
		send:      es.Send,
		closeSend: es.Writer.Close,
		close:     es.Close,
		err:       es.Err,
		results:   make(chan stt.Result),
	}
	go func() {
		defer close(w.results)
		for ev := range es.Events() {
			te, ok := ev.(*types.MedicalTranscriptResultStreamMemberTranscriptEvent)
			if !ok || te.Value.Transcript == nil || len(te.Value.Transcript.Results) == 0 {
				continue
			}
			w.results <- fromMedicalResult(te.Value.Transcript.Results[0])
		}
	}()
	return w
}

// Only the first result of each event is forwarded; the streaming APIs send
// one result per event for single-channel audio.
func fromResult(r types.Result) stt.Result {
	out := stt.Result{
		ResultID:     aws.ToString(r.ResultId),
		StartSeconds: r.StartTime,
		EndSeconds:   r.EndTime,
		IsPartial:    r.IsPartial,
	}
	if len(r.Alternatives) > 0 {
		out.Text = aws.ToString(r.Alternatives[0].Transcript)
	}
	return out
}

func fromMedicalResult(r types.MedicalResult) stt.Result {
	out := stt.Result{
		ResultID:     aws.ToString(r.ResultId),
		StartSeconds: r.StartTime,
		EndSeconds:   r.EndTime,
		IsPartial:    r.IsPartial,
	}
	if len(r.Alternatives) > 0 {
		out.Text = aws.ToString(r.Alternatives[0].Transcript)
	}
	return out
}
