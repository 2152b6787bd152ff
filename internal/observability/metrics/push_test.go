package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewPusher_Disabled(t *testing.T) {
	p := NewPusher("", "job")
	if p != nil {
		t.Fatal("expected nil pusher without a url")
	}
	// nil pusher is a no-op
	p.Push(context.Background(), nil)
}

func TestPusher_Push(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	DefaultMetrics.RecordInvocation("Success", 1.5)
	NewPusher(srv.URL, "voice-transcription-service").Push(context.Background(), map[string]string{"instance": "test"})

	if method != http.MethodPost {
		t.Errorf("expected POST, got %s", method)
	}
	if !strings.HasPrefix(path, "/metrics/job/voice-transcription-service") || !strings.Contains(path, "instance/test") {
		t.Errorf("unexpected push path %s", path)
	}
}
