package media

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/remko/go-mkvparse"
	"github.com/rs/zerolog/log"
)

// Matroska element ids the demuxer reacts to.
const (
	trackEntryID  mkvparse.ElementID = 0xAE
	trackNumberID mkvparse.ElementID = 0xD7
	trackNameID   mkvparse.ElementID = 0x536E
	simpleBlockID mkvparse.ElementID = 0xA3
	blockID       mkvparse.ElementID = 0xA1
	simpleTagID   mkvparse.ElementID = 0x67C8
	tagNameID     mkvparse.ElementID = 0x45A3
	tagStringID   mkvparse.ElementID = 0x4487
)

// ContactIDTag is the fragment tag carrying the contact a fragment belongs to.
const ContactIDTag = "ContactId"

var errStop = errors.New("demux stopped")

// Demuxer extracts the frames of one named track from a stream of MKV
// fragments.
type Demuxer struct {
	// TrackName selects the track, for example AUDIO_FROM_CUSTOMER.
	TrackName string
	// ContactID, when set, ends the stream at the first fragment tagged
	// with a different contact.
	ContactID string
	// OnFrame is called for every frame forwarded.
	OnFrame func(n int)
}

// Demux forwards the frames of trackName from r onto frames and closes
// frames when done.
func Demux(ctx context.Context, r io.Reader, trackName string, frames chan<- []byte) error {
	d := &Demuxer{TrackName: trackName}
	return d.Run(ctx, r, frames)
}

// Run reads r until EOF, context cancellation, or a contact change, sending
// each frame of the selected track on frames. frames is closed on return.
// A nil error means the stream ended normally.
func (d *Demuxer) Run(ctx context.Context, r io.Reader, frames chan<- []byte) error {
	defer close(frames)

	h := &trackHandler{ctx: ctx, demuxer: d, frames: frames, track: -1}
	err := mkvparse.Parse(r, h)
	switch {
	case err == nil, h.stopped, errors.Is(err, errStop), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		log.Debug().
			Str("track", d.TrackName).
			Int("frames", h.count).
			Msg("Media track ended")
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return err
	}
}

type trackHandler struct {
	ctx     context.Context
	demuxer *Demuxer
	frames  chan<- []byte
	count   int
	stopped bool

	track int64 // -1 until the named track is seen

	entryNumber int64
	entryName   string

	tagName   string
	tagString string
}

func (h *trackHandler) HandleMasterBegin(id mkvparse.ElementID, _ mkvparse.ElementInfo) (bool, error) {
	switch id {
	case trackEntryID:
		h.entryNumber, h.entryName = 0, ""
	case simpleTagID:
		h.tagName, h.tagString = "", ""
	}
	return true, nil
}

func (h *trackHandler) HandleMasterEnd(id mkvparse.ElementID, _ mkvparse.ElementInfo) error {
	switch id {
	case trackEntryID:
		if h.entryName == h.demuxer.TrackName && h.entryNumber > 0 {
			h.track = h.entryNumber
		}
	case simpleTagID:
		if h.tagName == ContactIDTag && h.demuxer.ContactID != "" && h.tagString != h.demuxer.ContactID {
			log.Info().
				Str("track", h.demuxer.TrackName).
				Str("contactId", h.tagString).
				Msg("Fragment belongs to another contact, ending track")
			h.stopped = true
			return errStop
		}
	}
	return nil
}

func (h *trackHandler) HandleString(id mkvparse.ElementID, value string, _ mkvparse.ElementInfo) error {
	switch id {
	case trackNameID:
		h.entryName = value
	case tagNameID:
		h.tagName = value
	case tagStringID:
		h.tagString = value
	}
	return nil
}

func (h *trackHandler) HandleInteger(id mkvparse.ElementID, value int64, _ mkvparse.ElementInfo) error {
	if id == trackNumberID {
		h.entryNumber = value
	}
	return nil
}

func (h *trackHandler) HandleFloat(mkvparse.ElementID, float64, mkvparse.ElementInfo) error {
	return nil
}

func (h *trackHandler) HandleDate(mkvparse.ElementID, time.Time, mkvparse.ElementInfo) error {
	return nil
}

func (h *trackHandler) HandleBinary(id mkvparse.ElementID, value []byte, _ mkvparse.ElementInfo) error {
	if id != simpleBlockID && id != blockID {
		return nil
	}
	if h.track < 0 {
		return nil
	}
	track, payload, ok := splitBlock(value)
	if !ok || track != h.track || len(payload) == 0 {
		return nil
	}

	frame := make([]byte, len(payload))
	copy(frame, payload)

	select {
	case h.frames <- frame:
		h.count++
		if h.demuxer.OnFrame != nil {
			h.demuxer.OnFrame(len(frame))
		}
		return nil
	case <-h.ctx.Done():
		return h.ctx.Err()
	}
}

// splitBlock parses a (Simple)Block header: track number vint, 16-bit
// relative timecode, flags byte. It returns the track and frame data.
func splitBlock(b []byte) (int64, []byte, bool) {
	track, n, ok := readVint(b)
	if !ok || len(b) < n+3 {
		return 0, nil, false
	}
	return track, b[n+3:], true
}

// readVint decodes an EBML variable-length integer with its length marker removed.
func readVint(b []byte) (int64, int, bool) {
	if len(b) == 0 || b[0] == 0 {
		return 0, 0, false
	}
	length := 1
	for mask := byte(0x80); b[0]&mask == 0; mask >>= 1 {
		length++
	}
	if len(b) < length {
		return 0, 0, false
	}
	v := int64(b[0] & (0xFF >> length))
	for i := 1; i < length; i++ {
		v = v<<8 | int64(b[i])
	}
	return v, length, true
}
