package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"voice-transcription-service/internal/config"
	"voice-transcription-service/internal/delivery"
	"voice-transcription-service/internal/models"
	"voice-transcription-service/internal/schema"
	"voice-transcription-service/internal/service/audio"
	"voice-transcription-service/internal/service/stt"
)

// fakeTrack implements Track. Its pump emits one frame, then waits for
// delay (or forever when hang is set) before ending the stream.
type fakeTrack struct {
	frames chan []byte
	delay  time.Duration
	hang   bool
	closes int
	mu     sync.Mutex
}

func (t *fakeTrack) Frames() <-chan []byte { return t.frames }

func (t *fakeTrack) Pump(ctx context.Context, onFrame func(int)) error {
	defer close(t.frames)
	select {
	case t.frames <- make([]byte, 320):
		onFrame(320)
	case <-ctx.Done():
		return ctx.Err()
	}
	if t.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	select {
	case <-time.After(t.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *fakeTrack) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closes++
	return nil
}

func (t *fakeTrack) closeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closes
}

// fakeBuilder hands out preconfigured tracks per direction.
type fakeBuilder struct {
	mu     sync.Mutex
	tracks map[models.Direction]*fakeTrack
	fail   map[models.Direction]error
	built  []models.Direction
}

func newFakeBuilder() *fakeBuilder {
	return &fakeBuilder{
		tracks: map[models.Direction]*fakeTrack{
			models.FromCustomer: {frames: make(chan []byte, 1)},
			models.ToCustomer:   {frames: make(chan []byte, 1)},
		},
		fail: map[models.Direction]error{},
	}
}

func (b *fakeBuilder) Build(_ context.Context, _, _ string, d models.Direction, _ string) (Track, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail[d]; err != nil {
		return nil, err
	}
	b.built = append(b.built, d)
	return b.tracks[d], nil
}

// fakeRecognizer emits one final per stream once the frames close.
type fakeRecognizer struct {
	mu       sync.Mutex
	requests []stt.Request
}

func (r *fakeRecognizer) Name() string { return "fake" }

func (r *fakeRecognizer) Recognize(ctx context.Context, req stt.Request, frames <-chan []byte, cb stt.Callback) error {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-frames:
			if !ok {
				cb.OnResult(stt.Result{ResultID: "r", Text: "done", EndSeconds: 1})
				return nil
			}
		}
	}
}

type countingSender struct {
	mu   sync.Mutex
	segs []models.TranscriptSegment
}

func (s *countingSender) Send(_ context.Context, seg models.TranscriptSegment) delivery.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segs = append(s.segs, seg)
	return delivery.Outcome{StatusCode: 200}
}

func validRequest() models.TranscriptionRequest {
	req := models.NewTranscriptionRequest()
	req.StreamARN = "arn:aws:kinesisvideo:us-east-1:123456789012:stream/call-1/1700000000000"
	req.StartFragmentNum = "9134"
	req.VoiceCallID = "vc-1"
	req.AudioStartTimestamp = 1700000000000
	return req
}

func newOrchestrator(cfg Config, b *fakeBuilder, rec stt.Recognizer, sender *countingSender) *Orchestrator {
	return New(cfg, schema.New(), b, rec, func(models.TranscriptionRequest) audio.Sender { return sender })
}

func TestRun_BothDirections(t *testing.T) {
	b := newFakeBuilder()
	sender := &countingSender{}
	o := newOrchestrator(Config{Deadline: time.Second}, b, &fakeRecognizer{}, sender)

	result, err := o.Run(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != models.ResultSuccess {
		t.Errorf("expected Success, got %s", result)
	}
	if len(sender.segs) != 2 {
		t.Errorf("expected one segment per direction, got %d", len(sender.segs))
	}
	for d, tr := range b.tracks {
		if tr.closeCount() != 1 {
			t.Errorf("%s: expected track closed once, got %d", d, tr.closeCount())
		}
	}
}

func TestRun_SingleDirection(t *testing.T) {
	b := newFakeBuilder()
	sender := &countingSender{}
	o := newOrchestrator(Config{Deadline: time.Second}, b, &fakeRecognizer{}, sender)

	req := validRequest()
	req.StreamAudioToCustomer = false

	result, err := o.Run(context.Background(), req)
	if err != nil || result != models.ResultSuccess {
		t.Fatalf("expected Success, got %s (%v)", result, err)
	}
	if len(b.built) != 1 || b.built[0] != models.FromCustomer {
		t.Errorf("expected only FROM_CUSTOMER built, got %v", b.built)
	}
	if b.tracks[models.ToCustomer].closeCount() != 0 {
		t.Error("expected TO_CUSTOMER track never touched")
	}
	if len(sender.segs) != 1 || sender.segs[0].SenderType != models.EndUser {
		t.Errorf("expected one END_USER segment, got %+v", sender.segs)
	}
}

func TestRun_MedicalRequest(t *testing.T) {
	b := newFakeBuilder()
	rec := &fakeRecognizer{}
	o := newOrchestrator(Config{Deadline: time.Second, SampleRateHz: 8000}, b, rec, &countingSender{})

	req := validRequest()
	req.StreamAudioToCustomer = false
	req.SetEngine("medical")
	req.Specialty = "oncology"

	if _, err := o.Run(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.requests) != 1 {
		t.Fatalf("expected one recognition request, got %d", len(rec.requests))
	}
	med, ok := rec.requests[0].(stt.MedicalRequest)
	if !ok {
		t.Fatalf("expected MedicalRequest, got %T", rec.requests[0])
	}
	if med.Specialty != "ONCOLOGY" || med.Type != stt.MedicalTypeConversation || med.SampleRateHz != 8000 {
		t.Errorf("unexpected medical request %+v", med)
	}
}

func TestRun_InvalidRequest(t *testing.T) {
	b := newFakeBuilder()
	o := newOrchestrator(Config{Deadline: time.Second}, b, &fakeRecognizer{}, &countingSender{})

	req := validRequest()
	req.LanguageCode = "xx-XX"

	result, err := o.Run(context.Background(), req)
	if result != models.ResultFailed {
		t.Errorf("expected Failed, got %s", result)
	}
	if !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if len(b.built) != 0 {
		t.Errorf("expected no sessions built, got %v", b.built)
	}
}

func TestRun_SetupFailureClosesBuiltTracks(t *testing.T) {
	b := newFakeBuilder()
	b.fail[models.ToCustomer] = fmt.Errorf("%w: fragment not found", models.ErrIO)
	o := newOrchestrator(Config{Deadline: time.Second}, b, &fakeRecognizer{}, &countingSender{})

	result, err := o.Run(context.Background(), validRequest())
	if result != models.ResultFailed {
		t.Errorf("expected Failed, got %s", result)
	}
	if !errors.Is(err, models.ErrIO) {
		t.Errorf("expected ErrIO, got %v", err)
	}
	if b.tracks[models.FromCustomer].closeCount() != 1 {
		t.Errorf("expected FROM_CUSTOMER track closed once, got %d", b.tracks[models.FromCustomer].closeCount())
	}
}

func TestRun_FirstWaitNeverCompletes(t *testing.T) {
	b := newFakeBuilder()
	b.tracks[models.FromCustomer].hang = true
	o := newOrchestrator(Config{Deadline: 50 * time.Millisecond}, b, &fakeRecognizer{}, &countingSender{})

	var (
		result models.Result
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("Run panicked: %v", r)
			}
		}()
		result, err = o.Run(context.Background(), validRequest())
	}()

	if result != models.ResultFailed {
		t.Errorf("expected Failed, got %s", result)
	}
	if !errors.Is(err, models.ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
	for d, tr := range b.tracks {
		if tr.closeCount() != 1 {
			t.Errorf("%s: expected track closed once, got %d", d, tr.closeCount())
		}
	}
}

func TestRun_WaitModes(t *testing.T) {
	tests := []struct {
		mode    string
		wantErr error
	}{
		// each direction gets its own deadline, so the slower second
		// direction still fits
		{config.WaitSequential, nil},
		// one shared deadline that the second direction overruns
		{config.WaitConcurrent, models.ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			b := newFakeBuilder()
			b.tracks[models.FromCustomer].delay = 200 * time.Millisecond
			b.tracks[models.ToCustomer].delay = 400 * time.Millisecond
			o := newOrchestrator(Config{Deadline: 300 * time.Millisecond, WaitMode: tt.mode}, b, &fakeRecognizer{}, &countingSender{})

			_, err := o.Run(context.Background(), validRequest())
			if tt.wantErr == nil && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	b := newFakeBuilder()
	b.tracks[models.FromCustomer].hang = true
	o := newOrchestrator(Config{Deadline: time.Minute, WaitMode: config.WaitConcurrent}, b, &fakeRecognizer{}, &countingSender{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := o.Run(ctx, validRequest())
	if result != models.ResultFailed {
		t.Errorf("expected Failed, got %s", result)
	}
	if !errors.Is(err, models.ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestRun_NoDirections(t *testing.T) {
	b := newFakeBuilder()
	o := newOrchestrator(Config{Deadline: time.Second}, b, &fakeRecognizer{}, &countingSender{})

	req := validRequest()
	req.StreamAudioFromCustomer = false
	req.StreamAudioToCustomer = false

	result, err := o.Run(context.Background(), req)
	if err != nil || result != models.ResultSuccess {
		t.Errorf("expected Success with nothing to do, got %s (%v)", result, err)
	}
}
