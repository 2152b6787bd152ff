package stt

import (
	"strings"

	"voice-transcription-service/internal/models"
)

// TelephonySampleRateHz is the sample rate of call audio.
const TelephonySampleRateHz = 8000

// MedicalTypeConversation is the medical session type for two-party calls.
const MedicalTypeConversation = "CONVERSATION"

// EncodingPCM is signed 16-bit little-endian PCM.
const EncodingPCM = "pcm"

// Request is a recognition session request, either StandardRequest or
// MedicalRequest.
type Request interface {
	Settings() Common
	isRequest()
}

// Common holds the settings shared by all engines.
type Common struct {
	LanguageCode   string
	SampleRateHz   int32
	Encoding       string
	VocabularyName string
}

// StandardRequest configures the general-purpose engine.
type StandardRequest struct {
	Common
	VocabularyFilterName   string
	VocabularyFilterMethod string
}

// MedicalRequest configures the medical engine.
type MedicalRequest struct {
	Common
	Specialty string
	Type      string
}

func (r StandardRequest) Settings() Common { return r.Common }
func (r MedicalRequest) Settings() Common  { return r.Common }

func (StandardRequest) isRequest() {}
func (MedicalRequest) isRequest()  {}

// BuildRequest derives the session request for a validated transcription
// request. sampleRateHz <= 0 selects the telephony rate.
func BuildRequest(req models.TranscriptionRequest, sampleRateHz int) Request {
	if sampleRateHz <= 0 {
		sampleRateHz = TelephonySampleRateHz
	}
	common := Common{
		LanguageCode:   req.EffectiveLanguageCode(),
		SampleRateHz:   int32(sampleRateHz),
		Encoding:       EncodingPCM,
		VocabularyName: req.VocabularyName,
	}

	if req.IsMedical() {
		return MedicalRequest{
			Common:    common,
			Specialty: strings.ToUpper(req.Specialty),
			Type:      MedicalTypeConversation,
		}
	}

	std := StandardRequest{Common: common}
	if req.VocabularyFilterName != "" {
		std.VocabularyFilterName = req.VocabularyFilterName
		std.VocabularyFilterMethod = strings.ToLower(req.VocabularyFilterMethod)
	}
	return std
}
