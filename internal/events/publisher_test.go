package events

import (
	"context"
	"testing"

	"voice-transcription-service/internal/models"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.enabled {
				t.Error("expected publisher to be disabled")
			}
			if p.writerSegments != nil || p.writerStatus != nil {
				t.Error("expected nil writers when disabled")
			}
		})
	}
}

func TestNew_ConfigValues(t *testing.T) {
	p := New(&Config{
		Enabled:       false,
		Brokers:       []string{"localhost:9092"},
		TopicSegments: "test.segments",
		TopicStatus:   "test.status",
		Principal:     "test-principal",
	})

	if p.principal != "test-principal" {
		t.Errorf("expected principal 'test-principal', got %s", p.principal)
	}
	if p.topicSegments != "test.segments" {
		t.Errorf("expected segments topic 'test.segments', got %s", p.topicSegments)
	}
	if p.topicStatus != "test.status" {
		t.Errorf("expected status topic 'test.status', got %s", p.topicStatus)
	}
}

func TestNew_EnabledCreatesWriters(t *testing.T) {
	p := New(&Config{
		Enabled:       true,
		Brokers:       []string{"localhost:9092"},
		TopicSegments: "test.segments",
		TopicStatus:   "test.status",
	})
	defer p.Close()

	if !p.enabled {
		t.Fatal("expected publisher to be enabled")
	}
	if p.writerSegments.Topic != "test.segments" {
		t.Errorf("expected segment writer topic 'test.segments', got %s", p.writerSegments.Topic)
	}
	if p.writerStatus.Topic != "test.status" {
		t.Errorf("expected status writer topic 'test.status', got %s", p.writerStatus.Topic)
	}
}

func TestPublisher_PublishSegment_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false, TopicSegments: "test.segments"})

	err := p.PublishSegment(context.Background(), models.SegmentEvent{
		VoiceCallID: "vc-1",
		Direction:   models.FromCustomer,
		MessageID:   "r-1",
		Text:        "hello",
		StatusCode:  201,
	})
	if err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_PublishStatus_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false, TopicStatus: "test.status"})

	err := p.PublishStatus(context.Background(), models.StatusEvent{
		VoiceCallID: "vc-1",
		Status:      "RATE_LIMITED",
	})
	if err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_Close_NoWriters(t *testing.T) {
	p := New(&Config{Enabled: false})

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing disabled publisher, got %v", err)
	}
}

func TestPublisher_ImplementsSink(t *testing.T) {
	var _ Sink = New(nil)
}
