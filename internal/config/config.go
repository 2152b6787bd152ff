// Package config loads service configuration from the environment.
package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all service configuration.
type Config struct {
	Service       ServiceConfig
	AWS           AWSConfig
	Media         MediaConfig
	Auth          AuthConfig
	Delivery      DeliveryConfig
	Recognition   RecognitionConfig
	Session       SessionConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
	Local         LocalConfig
}

// ServiceConfig holds service identity settings.
type ServiceConfig struct {
	Principal string
	Env       string
}

// AWSConfig holds region settings for the AWS clients.
type AWSConfig struct {
	AppRegion        string
	TranscribeRegion string
}

// MediaConfig controls how call audio is read from the video stream.
type MediaConfig struct {
	StartSelectorType string
	FrameBufferSize   int
}

// AuthConfig holds the bearer token settings.
type AuthConfig struct {
	PrivateKeyParamName string
	OrgID               string
	CallCenterAPIName   string
	Audience            string
	TokenTTL            time.Duration
	SecretsSource       string // ssm, extension
	ExtensionPort       int
}

// DeliveryConfig holds the transcript endpoint settings.
type DeliveryConfig struct {
	EndpointBase string
	Timeout      time.Duration
}

// RecognitionConfig selects the speech recognizer.
type RecognitionConfig struct {
	Provider     string // transcribe, google, mock
	SampleRateHz int
}

// SessionConfig bounds one transcription invocation.
type SessionConfig struct {
	Deadline time.Duration
	WaitMode string // sequential, concurrent
}

// KafkaConfig holds transcript mirror settings.
type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	TopicSegments string
	TopicStatus   string
	Principal     string
}

// ObservabilityConfig holds logging, metrics and error reporting settings.
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	PushgatewayURL string
	SentryDSN      string
}

// LocalConfig holds settings for running outside Lambda.
type LocalConfig struct {
	HTTPAddr string
}

// Wait modes.
const (
	WaitSequential = "sequential"
	WaitConcurrent = "concurrent"
)

// Load reads configuration from environment variables.
func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()

	principal := str(v, "SERVICE_PRINCIPAL", "svc-voice-transcription")
	appRegion := str(v, "APP_REGION", "us-east-1")

	return &Config{
		Service: ServiceConfig{
			Principal: principal,
			Env:       str(v, "ENV", ""),
		},
		AWS: AWSConfig{
			AppRegion:        appRegion,
			TranscribeRegion: str(v, "TRANSCRIBE_REGION", appRegion),
		},
		Media: MediaConfig{
			StartSelectorType: str(v, "START_SELECTOR_TYPE", "FRAGMENT_NUMBER"),
			FrameBufferSize:   positiveInt(v, "FRAME_BUFFER_SIZE", 64),
		},
		Auth: AuthConfig{
			PrivateKeyParamName: str(v, "PRIVATE_KEY_PARAM_NAME", ""),
			OrgID:               str(v, "SALESFORCE_ORG_ID", ""),
			CallCenterAPIName:   str(v, "CALL_CENTER_API_NAME", ""),
			Audience:            str(v, "SCRT_AUDIENCE", "https://scrt.salesforce.com"),
			TokenTTL:            duration(v, "TOKEN_TTL", 5*time.Minute),
			SecretsSource:       oneOf(v, "SECRETS_SOURCE", "ssm", "ssm", "extension"),
			ExtensionPort:       positiveInt(v, "SSM_EXTENSION_PORT", 2773),
		},
		Delivery: DeliveryConfig{
			EndpointBase: strings.TrimRight(str(v, "SCRT_ENDPOINT_BASE", ""), "/"),
			Timeout:      duration(v, "DELIVERY_TIMEOUT", 5*time.Second),
		},
		Recognition: RecognitionConfig{
			Provider:     oneOf(v, "RECOGNITION_PROVIDER", "transcribe", "transcribe", "google", "mock"),
			SampleRateHz: positiveInt(v, "RECOGNITION_SAMPLE_RATE_HZ", 8000),
		},
		Session: SessionConfig{
			Deadline: duration(v, "SESSION_DEADLINE", 890*time.Second),
			WaitMode: oneOf(v, "SESSION_WAIT_MODE", WaitSequential, WaitSequential, WaitConcurrent),
		},
		Kafka: KafkaConfig{
			Enabled:       boolean(v, "KAFKA_ENABLED", false),
			Brokers:       list(v, "KAFKA_BROKERS"),
			TopicSegments: str(v, "KAFKA_TOPIC_SEGMENTS", "voicecall.transcript.segment"),
			TopicStatus:   str(v, "KAFKA_TOPIC_STATUS", "voicecall.transcript.status"),
			Principal:     str(v, "KAFKA_PRINCIPAL", principal),
		},
		Observability: ObservabilityConfig{
			LogLevel:       str(v, "LOG_LEVEL", "info"),
			LogFormat:      oneOf(v, "LOG_FORMAT", "json", "json", "console"),
			PushgatewayURL: str(v, "PUSHGATEWAY_URL", ""),
			SentryDSN:      str(v, "SENTRY_DSN", ""),
		},
		Local: LocalConfig{
			HTTPAddr: str(v, "LOCAL_HTTP_ADDR", ":8080"),
		},
	}
}

func str(v *viper.Viper, key, def string) string {
	if s := strings.TrimSpace(v.GetString(key)); s != "" {
		return s
	}
	return def
}

func positiveInt(v *viper.Viper, key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func duration(v *viper.Viper, key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(v.GetString(key)))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func boolean(v *viper.Viper, key string, def bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return def
	}
	return b
}

func oneOf(v *viper.Viper, key, def string, allowed ...string) string {
	s := strings.ToLower(str(v, key, def))
	for _, a := range allowed {
		if s == a {
			return s
		}
	}
	return def
}

func list(v *viper.Viper, key string) []string {
	var out []string
	for _, s := range strings.Split(v.GetString(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
