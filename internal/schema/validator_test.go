package schema

import (
	"errors"
	"testing"

	"voice-transcription-service/internal/models"
)

func validRequest() models.TranscriptionRequest {
	req := models.NewTranscriptionRequest()
	req.StreamARN = "arn:aws:kinesisvideo:us-east-1:123456789012:stream/call-1234/1700000000000"
	req.StartFragmentNum = "91343852333181432392682062622220590765191907586"
	req.VoiceCallID = "0LQxx0000000001"
	return req
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(r *models.TranscriptionRequest)
		wantField string
	}{
		{"minimal request", func(r *models.TranscriptionRequest) {}, ""},
		{"supported language", func(r *models.TranscriptionRequest) { r.LanguageCode = "en-US" }, ""},
		{"unsupported language", func(r *models.TranscriptionRequest) { r.LanguageCode = "xx-XX" }, "languageCode"},
		{"filter method mask", func(r *models.TranscriptionRequest) { r.SetVocabularyFilterMethod("MASK") }, ""},
		{"filter method unknown", func(r *models.TranscriptionRequest) { r.SetVocabularyFilterMethod("redact") }, "vocabularyFilterMethod"},
		{"specialty lower case", func(r *models.TranscriptionRequest) { r.Specialty = "oncology" }, ""},
		{"specialty unknown", func(r *models.TranscriptionRequest) { r.Specialty = "DERMATOLOGY" }, "specialty"},
		{"engine medical", func(r *models.TranscriptionRequest) { r.SetEngine("Medical") }, ""},
		{"engine unknown", func(r *models.TranscriptionRequest) { r.SetEngine("turbo") }, "engine"},
		{"missing stream", func(r *models.TranscriptionRequest) { r.StreamARN = "" }, "streamARN"},
		{"missing voice call", func(r *models.TranscriptionRequest) { r.VoiceCallID = "" }, "voiceCallId"},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			err := v.Validate(req)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}

			if !errors.Is(err, models.ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
			var iae *models.InvalidArgumentError
			if !errors.As(err, &iae) {
				t.Fatalf("expected *InvalidArgumentError, got %T", err)
			}
			if iae.Field != tt.wantField {
				t.Errorf("expected field %s, got %s", tt.wantField, iae.Field)
			}
		})
	}
}

func TestValidate_IsPure(t *testing.T) {
	v := New()
	req := validRequest()
	req.Specialty = "cardiology"

	if err := v.Validate(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Specialty != "cardiology" {
		t.Errorf("expected request to be untouched, got specialty %s", req.Specialty)
	}
}

func TestSupportsLanguage(t *testing.T) {
	v := New()
	if !v.SupportsLanguage("es-US") {
		t.Error("expected es-US to be supported")
	}
	if v.SupportsLanguage("klingon") {
		t.Error("expected klingon to be rejected")
	}
}
