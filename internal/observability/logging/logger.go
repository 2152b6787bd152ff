// Package logging provides structured logging with zerolog.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"voice-transcription-service/internal/models"
)

// Event categories attached as the eventType field.
const (
	EventPerformance   = "PERFORMANCE"
	EventTranscription = "TRANSCRIPTION"
	EventVoiceCall     = "VOICECALL"
)

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	TimeFormat string
}

// DefaultConfig returns the logging configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "json",
		TimeFormat: time.RFC3339Nano,
	}
}

// Init initializes the global zerolog logger.
func Init(cfg Config) {
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stdout
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.Kitchen,
		}
	}

	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

// WithVoiceCall returns a logger scoped to one call.
func WithVoiceCall(voiceCallID, instanceARN string) zerolog.Logger {
	return log.With().
		Str("voiceCallId", voiceCallID).
		Str("instanceARN", instanceARN).
		Logger()
}

// WithTrack returns a logger scoped to one direction of a call.
func WithTrack(voiceCallID string, direction models.Direction) zerolog.Logger {
	return log.With().
		Str("voiceCallId", voiceCallID).
		Str("direction", string(direction)).
		Str("track", direction.TrackName()).
		Logger()
}

// WithComponent returns a logger with a component tag.
func WithComponent(component string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Logger()
}
