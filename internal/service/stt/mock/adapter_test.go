package mock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voice-transcription-service/internal/service/stt"
)

// testCallback implements stt.Callback for testing
type testCallback struct {
	mu       sync.Mutex
	partials []stt.Result
	finals   []stt.Result
	errors   []error
}

func (c *testCallback) OnResult(r stt.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.IsPartial {
		c.partials = append(c.partials, r)
	} else {
		c.finals = append(c.finals, r)
	}
}

func (c *testCallback) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, err)
}

// frames returns a closed channel holding n frames of 20ms telephony audio.
func frames(n int) chan []byte {
	ch := make(chan []byte, n)
	for i := 0; i < n; i++ {
		ch <- make([]byte, 320)
	}
	close(ch)
	return ch
}

var telephony = stt.StandardRequest{Common: stt.Common{SampleRateHz: 8000}}

func TestAdapter_OneFinalPerUtterance(t *testing.T) {
	a := New(Config{
		Utterances:      []SimulatedUtterance{{Partials: []string{"a", "a b"}, Final: "a b c", Confidence: 0.9}},
		FramesPerResult: 1,
	})
	cb := &testCallback{}

	if err := a.Recognize(context.Background(), telephony, frames(3), cb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cb.partials) != 2 {
		t.Errorf("expected 2 partials, got %d", len(cb.partials))
	}
	if len(cb.finals) != 1 {
		t.Fatalf("expected 1 final, got %d", len(cb.finals))
	}
	final := cb.finals[0]
	if final.Text != "a b c" {
		t.Errorf("expected final 'a b c', got %s", final.Text)
	}
	if final.ResultID != cb.partials[0].ResultID {
		t.Error("expected partials and final to share a result id")
	}
	if final.StartSeconds != 0 || final.EndSeconds != 0.06 {
		t.Errorf("expected 0-0.06s, got %v-%v", final.StartSeconds, final.EndSeconds)
	}
}

func TestAdapter_FlushesOnClose(t *testing.T) {
	a := New(Config{
		Utterances:      []SimulatedUtterance{{Partials: []string{"x", "x y", "x y z"}, Final: "x y z!"}},
		FramesPerResult: 1,
	})
	cb := &testCallback{}

	if err := a.Recognize(context.Background(), telephony, frames(1), cb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cb.finals) != 1 || cb.finals[0].Text != "x y z!" {
		t.Errorf("expected flushed final, got %+v", cb.finals)
	}
}

func TestAdapter_NoAudioNoResults(t *testing.T) {
	a := New(DefaultConfig())
	cb := &testCallback{}

	if err := a.Recognize(context.Background(), telephony, frames(0), cb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cb.partials)+len(cb.finals) != 0 {
		t.Error("expected no results without audio")
	}
}

func TestAdapter_CyclesUtterances(t *testing.T) {
	a := New(Config{FramesPerResult: 1})
	cb := &testCallback{}

	n := 0
	for _, u := range DefaultUtterances {
		n += len(u.Partials) + 1
	}
	if err := a.Recognize(context.Background(), telephony, frames(n), cb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cb.finals) != len(DefaultUtterances) {
		t.Fatalf("expected %d finals, got %d", len(DefaultUtterances), len(cb.finals))
	}
	for i, f := range cb.finals {
		if f.Text != DefaultUtterances[i].Final {
			t.Errorf("final %d: expected %q, got %q", i, DefaultUtterances[i].Final, f.Text)
		}
		if i > 0 && f.StartSeconds < cb.finals[i-1].EndSeconds {
			t.Errorf("final %d starts before previous ends", i)
		}
	}
}

func TestAdapter_ContextCancelled(t *testing.T) {
	a := New(DefaultConfig())
	cb := &testCallback{}
	ch := make(chan []byte)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Recognize(ctx, telephony, ch, cb) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("recognize did not return")
	}
}

func TestAdapter_Name(t *testing.T) {
	if New(DefaultConfig()).Name() != "mock" {
		t.Error("expected provider name mock")
	}
}
