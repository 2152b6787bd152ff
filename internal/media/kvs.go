// Package media reads call audio from Kinesis Video Streams and demuxes the
// per-direction audio tracks out of the MKV byte stream.
package media

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesisvideo"
	kvtypes "github.com/aws/aws-sdk-go-v2/service/kinesisvideo/types"
	"github.com/aws/aws-sdk-go-v2/service/kinesisvideomedia"
	kvmtypes "github.com/aws/aws-sdk-go-v2/service/kinesisvideomedia/types"
	"github.com/rs/zerolog/log"

	"voice-transcription-service/internal/models"
	"voice-transcription-service/internal/observability/logging"
)

// Source opens a byte stream of MKV fragments for a stream.
type Source interface {
	Open(ctx context.Context, streamName, startOffset string) (io.ReadCloser, error)
}

// EndpointAPI is the subset of the Kinesis Video client used here.
type EndpointAPI interface {
	GetDataEndpoint(ctx context.Context, in *kinesisvideo.GetDataEndpointInput, optFns ...func(*kinesisvideo.Options)) (*kinesisvideo.GetDataEndpointOutput, error)
}

// MediaAPI is the subset of the Kinesis Video Media client used here.
type MediaAPI interface {
	GetMedia(ctx context.Context, in *kinesisvideomedia.GetMediaInput, optFns ...func(*kinesisvideomedia.Options)) (*kinesisvideomedia.GetMediaOutput, error)
}

// MediaFactory builds a media client bound to a data endpoint.
type MediaFactory func(endpoint string) MediaAPI

// NewMediaFactory returns a MediaFactory that builds clients from cfg.
func NewMediaFactory(cfg aws.Config) MediaFactory {
	return func(endpoint string) MediaAPI {
		return kinesisvideomedia.NewFromConfig(cfg, func(o *kinesisvideomedia.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
}

// KVSSource implements Source with GetDataEndpoint followed by GetMedia.
type KVSSource struct {
	endpoints    EndpointAPI
	media        MediaFactory
	selectorType kvmtypes.StartSelectorType
}

// NewKVSSource creates a source. selectorType is a GetMedia start selector
// type such as FRAGMENT_NUMBER or NOW.
func NewKVSSource(endpoints EndpointAPI, media MediaFactory, selectorType string) *KVSSource {
	st := kvmtypes.StartSelectorType(selectorType)
	if st == "" {
		st = kvmtypes.StartSelectorTypeFragmentNumber
	}
	return &KVSSource{endpoints: endpoints, media: media, selectorType: st}
}

// Open starts reading the stream. With the FRAGMENT_NUMBER selector the
// read starts after startOffset. The caller must close the returned reader.
func (s *KVSSource) Open(ctx context.Context, streamName, startOffset string) (io.ReadCloser, error) {
	start := time.Now()

	ep, err := s.endpoints.GetDataEndpoint(ctx, &kinesisvideo.GetDataEndpointInput{
		StreamName: aws.String(streamName),
		APIName:    kvtypes.APINameGetMedia,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get data endpoint for %s: %v", models.ErrIO, streamName, err)
	}

	selector := &kvmtypes.StartSelector{StartSelectorType: s.selectorType}
	if s.selectorType == kvmtypes.StartSelectorTypeFragmentNumber {
		selector.AfterFragmentNumber = aws.String(startOffset)
	}

	out, err := s.media(aws.ToString(ep.DataEndpoint)).GetMedia(ctx, &kinesisvideomedia.GetMediaInput{
		StreamName:    aws.String(streamName),
		StartSelector: selector,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get media for %s: %v", models.ErrIO, streamName, err)
	}

	log.Info().
		Str("eventType", logging.EventPerformance).
		Str("streamName", streamName).
		Str("selector", string(s.selectorType)).
		Str("startFragmentNum", startOffset).
		Dur("latency", time.Since(start)).
		Msg("Opened media stream")
	return out.Payload, nil
}
