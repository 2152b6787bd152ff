// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "voice_transcription"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Invocation metrics
	InvocationsTotal   *prometheus.CounterVec
	InvocationDuration prometheus.Histogram

	// Track session metrics
	SessionsActive  prometheus.Gauge
	SessionsStarted *prometheus.CounterVec
	SessionsFailed  *prometheus.CounterVec

	// Audio metrics
	AudioBytesReceived  *prometheus.CounterVec
	AudioFramesReceived *prometheus.CounterVec

	// Transcript metrics
	TranscriptsPartial *prometheus.CounterVec
	TranscriptsFinal   *prometheus.CounterVec

	// Delivery metrics
	DeliveryTotal   *prometheus.CounterVec
	DeliveryLatency prometheus.Histogram
	RateLimited     prometheus.Counter

	// Token metrics
	TokenMints      prometheus.Counter
	TokenCacheHits  prometheus.Counter
	TokenMintErrors prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// STT metrics
	STTErrors *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		InvocationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Total number of transcription invocations by result",
		}, []string{"result"}),
		InvocationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_duration_seconds",
			Help:      "Duration of transcription invocations in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 900},
		}),

		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "track_sessions_active",
			Help:      "Number of currently open track sessions",
		}),
		SessionsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "track_sessions_started_total",
			Help:      "Total number of track sessions started",
		}, []string{"direction"}),
		SessionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "track_sessions_failed_total",
			Help:      "Total number of track sessions that ended with an error",
		}, []string{"direction", "reason"}),

		AudioBytesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes demuxed from the media stream",
		}, []string{"direction"}),
		AudioFramesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_received_total",
			Help:      "Total audio frames demuxed from the media stream",
		}, []string{"direction"}),

		TranscriptsPartial: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_partial_total",
			Help:      "Total number of partial results received",
		}, []string{"direction"}),
		TranscriptsFinal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total number of final results received",
		}, []string{"direction"}),

		DeliveryTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_total",
			Help:      "Total transcript deliveries by HTTP status",
		}, []string{"direction", "status"}),
		DeliveryLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_latency_seconds",
			Help:      "Transcript delivery latency in seconds",
			Buckets:   []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		RateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_rate_limited_total",
			Help:      "Total deliveries rejected with 429",
		}),

		TokenMints: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_mints_total",
			Help:      "Total bearer tokens minted",
		}),
		TokenCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_cache_hits_total",
			Help:      "Total bearer token requests served from cache",
		}),
		TokenMintErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_mint_errors_total",
			Help:      "Total bearer token mint failures",
		}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		STTErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_errors_total",
			Help:      "Total number of recognition errors",
		}, []string{"provider", "error_type"}),
	}
}

// RecordInvocation records a finished invocation.
func (m *Metrics) RecordInvocation(result string, durationSeconds float64) {
	m.InvocationsTotal.WithLabelValues(result).Inc()
	m.InvocationDuration.Observe(durationSeconds)
}

// RecordSessionStart records a track session opening.
func (m *Metrics) RecordSessionStart(direction string) {
	m.SessionsStarted.WithLabelValues(direction).Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a track session closing.
func (m *Metrics) RecordSessionEnd() {
	m.SessionsActive.Dec()
}

// RecordSessionFailed records a track session that ended with an error.
func (m *Metrics) RecordSessionFailed(direction, reason string) {
	m.SessionsFailed.WithLabelValues(direction, reason).Inc()
}

// RecordAudioReceived records one demuxed audio frame.
func (m *Metrics) RecordAudioReceived(direction string, bytes int) {
	m.AudioBytesReceived.WithLabelValues(direction).Add(float64(bytes))
	m.AudioFramesReceived.WithLabelValues(direction).Inc()
}

// RecordPartialTranscript records a partial result.
func (m *Metrics) RecordPartialTranscript(direction string) {
	m.TranscriptsPartial.WithLabelValues(direction).Inc()
}

// RecordFinalTranscript records a final result.
func (m *Metrics) RecordFinalTranscript(direction string) {
	m.TranscriptsFinal.WithLabelValues(direction).Inc()
}

// RecordDelivery records a delivery attempt. A status of 0 means the
// request never got a response.
func (m *Metrics) RecordDelivery(direction string, status int, latencySeconds float64) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.DeliveryTotal.WithLabelValues(direction, label).Inc()
	m.DeliveryLatency.Observe(latencySeconds)
}

// RecordRateLimited records a 429 from the transcript endpoint.
func (m *Metrics) RecordRateLimited() {
	m.RateLimited.Inc()
}

// RecordTokenMint records a freshly minted token, or a failure to mint one.
func (m *Metrics) RecordTokenMint(err error) {
	if err != nil {
		m.TokenMintErrors.Inc()
		return
	}
	m.TokenMints.Inc()
}

// RecordTokenCacheHit records a token served from cache.
func (m *Metrics) RecordTokenCacheHit() {
	m.TokenCacheHits.Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordSTTError records a recognition error.
func (m *Metrics) RecordSTTError(provider, errorType string) {
	m.STTErrors.WithLabelValues(provider, errorType).Inc()
}
