// Package events mirrors delivered transcript segments and call status
// changes onto Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"voice-transcription-service/internal/models"
	"voice-transcription-service/internal/observability/metrics"
)

// Event types carried in the eventType field and header.
const (
	EventSegmentDelivered = "voicecall.transcript.segment"
	EventStatus           = "voicecall.transcript.status"
)

// Sink receives mirrored events. *Publisher implements it.
type Sink interface {
	PublishSegment(ctx context.Context, event models.SegmentEvent) error
	PublishStatus(ctx context.Context, event models.StatusEvent) error
}

// Publisher writes segment and status events to separate Kafka topics.
type Publisher struct {
	writerSegments *kafka.Writer
	writerStatus   *kafka.Writer
	principal      string
	topicSegments  string
	topicStatus    string
	enabled        bool
	metrics        *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers       []string
	TopicSegments string
	TopicStatus   string
	Principal     string
	Enabled       bool
}

// New creates a publisher. With no config, Kafka disabled, or no brokers
// it runs in log-only mode.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{metrics: m}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:     cfg.Principal,
			topicSegments: cfg.TopicSegments,
			topicStatus:   cfg.TopicStatus,
			metrics:       m,
		}
	}

	dialer := &kafka.Dialer{
		Timeout:   5 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicSegments", cfg.TopicSegments).
		Str("topicStatus", cfg.TopicStatus).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerSegments: newWriter(cfg.Brokers, cfg.TopicSegments, transport),
		writerStatus:   newWriter(cfg.Brokers, cfg.TopicStatus, transport),
		principal:      cfg.Principal,
		topicSegments:  cfg.TopicSegments,
		topicStatus:    cfg.TopicStatus,
		enabled:        true,
		metrics:        m,
	}
}

func newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
}

// PublishSegment mirrors a delivered segment, keyed by voice call.
func (p *Publisher) PublishSegment(ctx context.Context, event models.SegmentEvent) error {
	if event.EventType == "" {
		event.EventType = EventSegmentDelivered
	}
	return p.publish(ctx, p.writerSegments, p.topicSegments, event.EventType, event.VoiceCallID, event)
}

// PublishStatus mirrors a call status change, keyed by voice call.
func (p *Publisher) PublishStatus(ctx context.Context, event models.StatusEvent) error {
	if event.EventType == "" {
		event.EventType = EventStatus
	}
	return p.publish(ctx, p.writerStatus, p.topicStatus, event.EventType, event.VoiceCallID, event)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerSegments != nil {
		if e := p.writerSegments.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing segment writer")
			err = e
		}
	}
	if p.writerStatus != nil {
		if e := p.writerStatus.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing status writer")
			err = e
		}
	}
	return err
}
