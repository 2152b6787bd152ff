package media

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func vsize(n int) []byte {
	if n < 0x7F {
		return []byte{0x80 | byte(n)}
	}
	return []byte{0x40 | byte(n>>8), byte(n)}
}

func el(id []byte, parts ...[]byte) []byte {
	body := bytes.Join(parts, nil)
	out := append([]byte{}, id...)
	out = append(out, vsize(len(body))...)
	return append(out, body...)
}

func str(id []byte, s string) []byte { return el(id, []byte(s)) }

func uint8El(id []byte, v byte) []byte { return el(id, []byte{v}) }

func block(track byte, payload string) []byte {
	return el([]byte{0xA3}, []byte{0x80 | track, 0x00, 0x00, 0x80}, []byte(payload))
}

func trackEntry(number byte, name string) []byte {
	return el([]byte{0xAE},
		uint8El([]byte{0xD7}, number),
		str([]byte{0x53, 0x6E}, name),
	)
}

func contactTag(contactID string) []byte {
	return el([]byte{0x12, 0x54, 0xC3, 0x67},
		el([]byte{0x73, 0x73},
			el([]byte{0x67, 0xC8},
				str([]byte{0x45, 0xA3}, ContactIDTag),
				str([]byte{0x44, 0x87}, contactID),
			),
		),
	)
}

// fragment builds one KVS-style MKV fragment: EBML header, then a segment
// with tracks, tags and a single cluster.
func fragment(contactID string, blocks ...[]byte) []byte {
	header := el([]byte{0x1A, 0x45, 0xDF, 0xA3}, str([]byte{0x42, 0x82}, "matroska"))
	cluster := el([]byte{0x1F, 0x43, 0xB6, 0x75},
		append([][]byte{uint8El([]byte{0xE7}, 0)}, blocks...)...,
	)
	segment := el([]byte{0x18, 0x53, 0x80, 0x67},
		el([]byte{0x16, 0x54, 0xAE, 0x6B},
			trackEntry(1, "AUDIO_FROM_CUSTOMER"),
			trackEntry(2, "AUDIO_TO_CUSTOMER"),
		),
		contactTag(contactID),
		cluster,
	)
	return append(header, segment...)
}

func collect(t *testing.T, d *Demuxer, data []byte) ([]string, error) {
	t.Helper()
	frames := make(chan []byte, 16)
	errc := make(chan error, 1)
	go func() { errc <- d.Run(context.Background(), bytes.NewReader(data), frames) }()

	var got []string
	for f := range frames {
		got = append(got, string(f))
	}
	return got, <-errc
}

func TestDemux_SelectsTrack(t *testing.T) {
	data := fragment("contact-1",
		block(1, "c1"), block(2, "a1"), block(1, "c2"), block(2, "a2"))

	tests := []struct {
		track string
		want  []string
	}{
		{"AUDIO_FROM_CUSTOMER", []string{"c1", "c2"}},
		{"AUDIO_TO_CUSTOMER", []string{"a1", "a2"}},
		{"AUDIO_UNKNOWN", nil},
	}

	for _, tt := range tests {
		t.Run(tt.track, func(t *testing.T) {
			got, err := collect(t, &Demuxer{TrackName: tt.track}, data)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("frame %d: expected %s, got %s", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestDemux_MultipleFragments(t *testing.T) {
	data := append(fragment("contact-1", block(1, "f1")), fragment("contact-1", block(1, "f2"))...)

	var sizes []int
	d := &Demuxer{TrackName: "AUDIO_FROM_CUSTOMER", ContactID: "contact-1", OnFrame: func(n int) { sizes = append(sizes, n) }}
	got, err := collect(t, d, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "f1" || got[1] != "f2" {
		t.Errorf("expected [f1 f2], got %v", got)
	}
	if len(sizes) != 2 {
		t.Errorf("expected OnFrame called twice, got %d", len(sizes))
	}
}

func TestDemux_StopsOnContactChange(t *testing.T) {
	data := append(fragment("contact-1", block(1, "mine")), fragment("contact-2", block(1, "theirs"))...)

	got, err := collect(t, &Demuxer{TrackName: "AUDIO_FROM_CUSTOMER", ContactID: "contact-1"}, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "mine" {
		t.Errorf("expected only the first contact's frame, got %v", got)
	}
}

func TestDemux_ContextCancelled(t *testing.T) {
	data := fragment("contact-1", block(1, "a"), block(1, "b"))
	ctx, cancel := context.WithCancel(context.Background())
	frames := make(chan []byte)

	errc := make(chan error, 1)
	go func() { errc <- Demux(ctx, bytes.NewReader(data), "AUDIO_FROM_CUSTOMER", frames) }()
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("demux did not stop after cancellation")
	}
	if _, ok := <-frames; ok {
		t.Error("expected frames channel to be closed")
	}
}

func TestReadVint(t *testing.T) {
	tests := []struct {
		in      []byte
		want    int64
		wantLen int
		ok      bool
	}{
		{[]byte{0x81}, 1, 1, true},
		{[]byte{0x82, 0xFF}, 2, 1, true},
		{[]byte{0x40, 0x02}, 2, 2, true},
		{[]byte{0x20, 0x01, 0x00}, 256, 3, true},
		{[]byte{0x40}, 0, 0, false},
		{[]byte{0x00}, 0, 0, false},
		{nil, 0, 0, false},
	}
	for _, tt := range tests {
		v, n, ok := readVint(tt.in)
		if ok != tt.ok || (ok && (v != tt.want || n != tt.wantLen)) {
			t.Errorf("readVint(%x) = %d,%d,%v want %d,%d,%v", tt.in, v, n, ok, tt.want, tt.wantLen, tt.ok)
		}
	}
}
