package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming"

	"voice-transcription-service/internal/delivery"
	"voice-transcription-service/internal/models"
	"voice-transcription-service/internal/service/audio"
	"voice-transcription-service/internal/service/segment"
	"voice-transcription-service/internal/service/stt"
	"voice-transcription-service/internal/service/stt/google"
	"voice-transcription-service/internal/service/stt/mock"
	"voice-transcription-service/internal/service/stt/transcribe"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// 100ms of 8kHz 16-bit mono
const chunkSize = 1600

// wavSource streams a PCM WAV body as frames, optionally paced in real time.
type wavSource struct {
	r        io.Reader
	frames   chan []byte
	realtime bool
}

func (s *wavSource) Frames() <-chan []byte { return s.frames }

func (s *wavSource) Pump(ctx context.Context, onFrame func(int)) error {
	defer close(s.frames)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		buf := make([]byte, chunkSize)
		n, err := io.ReadFull(s.r, buf)
		if n > 0 {
			select {
			case s.frames <- buf[:n]:
				onFrame(n)
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return err
		}
		if s.realtime {
			select {
			case <-tick.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// printSender prints segments instead of posting them.
type printSender struct{}

func (printSender) Send(_ context.Context, seg models.TranscriptSegment) delivery.Outcome {
	fmt.Printf("[%s] %d-%d %s: %s\n", seg.MessageID, seg.StartTime, seg.EndTime, seg.SenderType, seg.Text)
	return delivery.Outcome{StatusCode: 200, Status: "printed"}
}

func main() {
	audioFile := flag.String("audio", "testdata/sample-8khz.wav", "Path to WAV file (8kHz 16-bit mono)")
	provider := flag.String("provider", mock.ProviderName, "Recognizer: transcribe, google or mock")
	region := flag.String("region", "us-east-1", "Transcribe region")
	language := flag.String("language", models.DefaultLanguageCode, "Language code")
	direction := flag.String("direction", string(models.FromCustomer), "FROM_CUSTOMER or TO_CUSTOMER")
	realtime := flag.Bool("realtime", false, "Pace audio in real time")
	flag.Parse()

	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatalf("Failed to open audio file: %v", err)
	}
	defer f.Close()

	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		log.Fatalf("Failed to read WAV header: %v", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		log.Fatal("Not a valid WAV file")
	}

	audioFormat := binary.LittleEndian.Uint16(header[20:22])
	numChannels := binary.LittleEndian.Uint16(header[22:24])
	sampleRate := binary.LittleEndian.Uint32(header[24:28])
	bitsPerSample := binary.LittleEndian.Uint16(header[34:36])
	log.Printf("WAV file: format=%d channels=%d sampleRate=%d bitsPerSample=%d",
		audioFormat, numChannels, sampleRate, bitsPerSample)

	if audioFormat != 1 { // PCM
		log.Fatal("Only PCM format supported")
	}

	ctx := context.Background()
	var rec stt.Recognizer
	switch *provider {
	case transcribe.ProviderName:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(*region))
		if err != nil {
			log.Fatalf("Failed to load AWS config: %v", err)
		}
		rec = transcribe.New(transcribestreaming.NewFromConfig(awsCfg))
	case google.ProviderName:
		g, err := google.New(ctx, google.DefaultConfig())
		if err != nil {
			log.Fatalf("Failed to create Google recognizer: %v", err)
		}
		defer g.Close()
		rec = g
	default:
		rec = mock.New(mock.DefaultConfig())
	}

	req := models.NewTranscriptionRequest()
	req.LanguageCode = *language
	d := models.Direction(*direction)

	h := audio.NewHandler(rec,
		stt.BuildRequest(req, int(sampleRate)),
		segment.NewBuilder(time.Now().UnixMilli(), d),
		printSender{},
		"audioclient-"+time.Now().Format("150405"),
		d,
	)

	start := time.Now()
	src := &wavSource{r: f, frames: make(chan []byte, 64), realtime: *realtime}
	if err := h.Run(ctx, src); err != nil {
		log.Fatalf("Recognition failed: %v", err)
	}

	stats := h.Stats()
	log.Printf("Done: bytes=%d frames=%d partials=%d finals=%d duration=%v",
		stats.AudioBytes, stats.Frames, stats.Partials, stats.Finals, time.Since(start).Round(time.Millisecond))
}
