// Package segment turns finalized recognition results into transcript
// segments with absolute timestamps.
package segment

import (
	"math"
	"strings"
	"sync/atomic"

	"voice-transcription-service/internal/models"
	"voice-transcription-service/internal/service/stt"
)

// Builder converts results for one direction of one call.
type Builder struct {
	anchor    int64
	direction models.Direction
	built     uint64
	dropped   uint64
}

// NewBuilder creates a builder. anchorMillis is the epoch millisecond
// timestamp at which the audio stream started; result offsets are relative
// to it.
func NewBuilder(anchorMillis int64, direction models.Direction) *Builder {
	return &Builder{anchor: anchorMillis, direction: direction}
}

// Build returns the segment for r. ok is false for partial results and
// results without text; those are never delivered.
func (b *Builder) Build(r stt.Result) (seg models.TranscriptSegment, ok bool) {
	if r.IsPartial || strings.TrimSpace(r.Text) == "" {
		atomic.AddUint64(&b.dropped, 1)
		return models.TranscriptSegment{}, false
	}
	atomic.AddUint64(&b.built, 1)

	return models.TranscriptSegment{
		MessageID:  r.ResultID,
		Text:       r.Text,
		StartTime:  b.Absolute(r.StartSeconds),
		EndTime:    b.Absolute(r.EndSeconds),
		SenderType: b.direction.SenderType(),
		Direction:  b.direction,
	}, true
}

// Absolute converts an offset in seconds to epoch milliseconds.
func (b *Builder) Absolute(seconds float64) int64 {
	return b.anchor + int64(math.Round(seconds*1000))
}

// Built returns how many segments have been produced.
func (b *Builder) Built() uint64 {
	return atomic.LoadUint64(&b.built)
}

// Dropped returns how many results were discarded.
func (b *Builder) Dropped() uint64 {
	return atomic.LoadUint64(&b.dropped)
}
