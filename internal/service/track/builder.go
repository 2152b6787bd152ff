// Package track opens the media for one direction of a call.
package track

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"

	"voice-transcription-service/internal/media"
	"voice-transcription-service/internal/models"
)

// DefaultBufferSize is the frame channel capacity when none is configured.
const DefaultBufferSize = 64

// Builder creates track sessions from a media source.
type Builder struct {
	source     media.Source
	bufferSize int
}

// NewBuilder creates a builder. bufferSize bounds the number of frames
// queued between the demuxer and the recognizer.
func NewBuilder(source media.Source, bufferSize int) *Builder {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Builder{source: source, bufferSize: bufferSize}
}

// Build opens the stream at startOffset and prepares the demuxer for the
// direction's track. Errors wrap models.ErrIO.
func (b *Builder) Build(ctx context.Context, streamName, startOffset string, direction models.Direction, voiceCallID string) (*Session, error) {
	body, err := b.source.Open(ctx, streamName, startOffset)
	if err != nil {
		return nil, fmt.Errorf("build %s session: %w", direction, err)
	}

	log.Info().
		Str("voiceCallId", voiceCallID).
		Str("direction", string(direction)).
		Str("streamName", streamName).
		Str("track", direction.TrackName()).
		Msg("Track session built")

	return &Session{
		Direction:   direction,
		VoiceCallID: voiceCallID,
		body:        body,
		frames:      make(chan []byte, b.bufferSize),
		demuxer: &media.Demuxer{
			TrackName: direction.TrackName(),
			ContactID: voiceCallID,
		},
	}, nil
}

// Session is the media side of one direction: the open byte source and the
// bounded frame channel its demuxer feeds.
type Session struct {
	Direction   models.Direction
	VoiceCallID string

	body    io.ReadCloser
	frames  chan []byte
	demuxer *media.Demuxer

	pumpOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
}

// Frames returns the channel of demuxed audio frames. It is closed when
// Pump returns.
func (s *Session) Frames() <-chan []byte {
	return s.frames
}

// Pump demuxes the byte source onto Frames until the stream ends or ctx is
// cancelled. onFrame, when non-nil, is called with each frame's size. Only
// the first call does any work.
func (s *Session) Pump(ctx context.Context, onFrame func(n int)) error {
	err := fmt.Errorf("%s: pump already started", s.Direction)
	s.pumpOnce.Do(func() {
		s.demuxer.OnFrame = onFrame
		err = s.demuxer.Run(ctx, s.body, s.frames)
	})
	return err
}

// Close releases the byte source. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
		log.Debug().
			Str("voiceCallId", s.VoiceCallID).
			Str("direction", string(s.Direction)).
			Msg("Track session closed")
	})
	return s.closeErr
}
