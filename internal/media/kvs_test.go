package media

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesisvideo"
	kvtypes "github.com/aws/aws-sdk-go-v2/service/kinesisvideo/types"
	"github.com/aws/aws-sdk-go-v2/service/kinesisvideomedia"
	kvmtypes "github.com/aws/aws-sdk-go-v2/service/kinesisvideomedia/types"

	"voice-transcription-service/internal/models"
)

type fakeEndpoints struct {
	in  *kinesisvideo.GetDataEndpointInput
	err error
}

func (f *fakeEndpoints) GetDataEndpoint(_ context.Context, in *kinesisvideo.GetDataEndpointInput, _ ...func(*kinesisvideo.Options)) (*kinesisvideo.GetDataEndpointOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &kinesisvideo.GetDataEndpointOutput{DataEndpoint: aws.String("https://s-1234.kinesisvideo.us-east-1.amazonaws.com")}, nil
}

type fakeMedia struct {
	endpoint string
	in       *kinesisvideomedia.GetMediaInput
	err      error
}

func (f *fakeMedia) GetMedia(_ context.Context, in *kinesisvideomedia.GetMediaInput, _ ...func(*kinesisvideomedia.Options)) (*kinesisvideomedia.GetMediaOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &kinesisvideomedia.GetMediaOutput{Payload: io.NopCloser(strings.NewReader("mkv"))}, nil
}

func TestKVSSource_Open(t *testing.T) {
	eps := &fakeEndpoints{}
	media := &fakeMedia{}
	src := NewKVSSource(eps, func(endpoint string) MediaAPI {
		media.endpoint = endpoint
		return media
	}, "FRAGMENT_NUMBER")

	rc, err := src.Open(context.Background(), "call-stream", "9134385233318")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close()

	if eps.in.APIName != kvtypes.APINameGetMedia {
		t.Errorf("expected GET_MEDIA endpoint, got %s", eps.in.APIName)
	}
	if media.endpoint != "https://s-1234.kinesisvideo.us-east-1.amazonaws.com" {
		t.Errorf("expected data endpoint to be used, got %s", media.endpoint)
	}
	if aws.ToString(media.in.StreamName) != "call-stream" {
		t.Errorf("expected stream call-stream, got %s", aws.ToString(media.in.StreamName))
	}
	sel := media.in.StartSelector
	if sel.StartSelectorType != kvmtypes.StartSelectorTypeFragmentNumber {
		t.Errorf("expected FRAGMENT_NUMBER selector, got %s", sel.StartSelectorType)
	}
	if aws.ToString(sel.AfterFragmentNumber) != "9134385233318" {
		t.Errorf("expected fragment 9134385233318, got %s", aws.ToString(sel.AfterFragmentNumber))
	}
}

func TestKVSSource_OpenNow(t *testing.T) {
	media := &fakeMedia{}
	src := NewKVSSource(&fakeEndpoints{}, func(string) MediaAPI { return media }, "NOW")

	if _, err := src.Open(context.Background(), "s", "123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if media.in.StartSelector.AfterFragmentNumber != nil {
		t.Error("expected no fragment number with NOW selector")
	}
}

func TestKVSSource_OpenErrors(t *testing.T) {
	tests := []struct {
		name  string
		eps   *fakeEndpoints
		media *fakeMedia
	}{
		{"endpoint", &fakeEndpoints{err: errors.New("not found")}, &fakeMedia{}},
		{"media", &fakeEndpoints{}, &fakeMedia{err: errors.New("denied")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewKVSSource(tt.eps, func(string) MediaAPI { return tt.media }, "")
			_, err := src.Open(context.Background(), "s", "1")
			if !errors.Is(err, models.ErrIO) {
				t.Errorf("expected ErrIO, got %v", err)
			}
		})
	}
}
