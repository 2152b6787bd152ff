package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Recognition engines.
const (
	EngineStandard = "standard"
	EngineMedical  = "medical"
)

// DefaultLanguageCode is used when the request carries no language.
const DefaultLanguageCode = "en-US"

// TranscriptionRequest carries the invocation parameters for one call.
// Engine and VocabularyFilterMethod are lower-cased when decoded.
type TranscriptionRequest struct {
	StreamARN               string `json:"streamARN" validate:"required"`
	StartFragmentNum        string `json:"startFragmentNum"`
	VoiceCallID             string `json:"voiceCallId" validate:"required"`
	LanguageCode            string `json:"languageCode,omitempty" validate:"omitempty,transcribe_language"`
	StreamAudioFromCustomer bool   `json:"streamAudioFromCustomer"`
	StreamAudioToCustomer   bool   `json:"streamAudioToCustomer"`
	AudioStartTimestamp     int64  `json:"audioStartTimestamp"`
	CustomerPhoneNumber     string `json:"customerPhoneNumber"`
	InstanceARN             string `json:"instanceARN"`
	Engine                  string `json:"engine" validate:"omitempty,oneof=standard medical"`
	VocabularyName          string `json:"vocabularyName,omitempty"`
	VocabularyFilterName    string `json:"vocabularyFilterName,omitempty"`
	VocabularyFilterMethod  string `json:"vocabularyFilterMethod,omitempty" validate:"omitempty,vocabulary_filter_method"`
	Specialty               string `json:"specialty,omitempty" validate:"omitempty,medical_specialty"`
}

// NewTranscriptionRequest returns a request with both directions enabled
// and the standard engine selected.
func NewTranscriptionRequest() TranscriptionRequest {
	return TranscriptionRequest{
		StreamAudioFromCustomer: true,
		StreamAudioToCustomer:   true,
		Engine:                  EngineStandard,
	}
}

// SetEngine assigns the recognition engine, normalized to lower case.
func (r *TranscriptionRequest) SetEngine(engine string) {
	r.Engine = strings.ToLower(strings.TrimSpace(engine))
	if r.Engine == "" {
		r.Engine = EngineStandard
	}
}

// SetVocabularyFilterMethod assigns the filter method, normalized to lower case.
func (r *TranscriptionRequest) SetVocabularyFilterMethod(method string) {
	r.VocabularyFilterMethod = strings.ToLower(strings.TrimSpace(method))
}

// EffectiveLanguageCode returns the requested language or en-US.
func (r TranscriptionRequest) EffectiveLanguageCode() string {
	if r.LanguageCode == "" {
		return DefaultLanguageCode
	}
	return r.LanguageCode
}

// IsMedical reports whether the medical recognition engine was selected.
func (r TranscriptionRequest) IsMedical() bool {
	return r.Engine == EngineMedical
}

// Enabled reports whether audio for the direction should be transcribed.
func (r TranscriptionRequest) Enabled(d Direction) bool {
	if d == FromCustomer {
		return r.StreamAudioFromCustomer
	}
	return r.StreamAudioToCustomer
}

// StreamName extracts the stream name from a stream ARN of the form
// arn:aws:kinesisvideo:<region>:<account>:stream/<name>/<creation-time>.
func (r TranscriptionRequest) StreamName() string {
	first := strings.Index(r.StreamARN, "/")
	last := strings.LastIndex(r.StreamARN, "/")
	if first < 0 || last <= first {
		return r.StreamARN
	}
	return r.StreamARN[first+1 : last]
}

func (r TranscriptionRequest) String() string {
	return fmt.Sprintf("streamARN=%s, startFragmentNum=%s, voiceCallId=%s, languageCode=%s, audioStartTimestamp=%d, streamAudioFromCustomer=%t, streamAudioToCustomer=%t, engine=%s",
		r.StreamARN, r.StartFragmentNum, r.VoiceCallID, r.LanguageCode, r.AudioStartTimestamp,
		r.StreamAudioFromCustomer, r.StreamAudioToCustomer, r.Engine)
}

type requestJSON struct {
	StreamARN               string          `json:"streamARN"`
	StartFragmentNum        string          `json:"startFragmentNum"`
	VoiceCallID             string          `json:"voiceCallId"`
	LanguageCode            string          `json:"languageCode"`
	StreamAudioFromCustomer *bool           `json:"streamAudioFromCustomer"`
	StreamAudioToCustomer   *bool           `json:"streamAudioToCustomer"`
	AudioStartTimestamp     json.RawMessage `json:"audioStartTimestamp"`
	CustomerPhoneNumber     string          `json:"customerPhoneNumber"`
	InstanceARN             string          `json:"instanceARN"`
	Engine                  string          `json:"engine"`
	VocabularyName          string          `json:"vocabularyName"`
	VocabularyFilterName    string          `json:"vocabularyFilterName"`
	VocabularyFilterMethod  string          `json:"vocabularyFilterMethod"`
	Specialty               string          `json:"specialty"`
}

// UnmarshalJSON decodes an invocation payload. Direction flags default to
// true and audioStartTimestamp may be a number or a numeric string.
func (r *TranscriptionRequest) UnmarshalJSON(data []byte) error {
	var raw requestJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	req := NewTranscriptionRequest()
	req.StreamARN = raw.StreamARN
	req.StartFragmentNum = raw.StartFragmentNum
	req.VoiceCallID = raw.VoiceCallID
	req.LanguageCode = strings.TrimSpace(raw.LanguageCode)
	req.CustomerPhoneNumber = raw.CustomerPhoneNumber
	req.InstanceARN = raw.InstanceARN
	req.VocabularyName = raw.VocabularyName
	req.VocabularyFilterName = raw.VocabularyFilterName
	req.Specialty = raw.Specialty
	req.SetEngine(raw.Engine)
	req.SetVocabularyFilterMethod(raw.VocabularyFilterMethod)
	if raw.StreamAudioFromCustomer != nil {
		req.StreamAudioFromCustomer = *raw.StreamAudioFromCustomer
	}
	if raw.StreamAudioToCustomer != nil {
		req.StreamAudioToCustomer = *raw.StreamAudioToCustomer
	}

	ts, err := decodeTimestamp(raw.AudioStartTimestamp)
	if err != nil {
		return &InvalidArgumentError{Field: "audioStartTimestamp", Value: string(raw.AudioStartTimestamp)}
	}
	req.AudioStartTimestamp = ts

	*r = req
	return nil
}

func decodeTimestamp(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
	} else {
		s = string(raw)
	}
	return ParseTimestamp(s)
}

// ParseTimestamp decodes an epoch millisecond value written in decimal,
// 0x-prefixed hex or #-prefixed hex.
func ParseTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	base := 10
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		s, base = s[2:], 16
	case strings.HasPrefix(s, "#"):
		s, base = s[1:], 16
	}
	v, err := strconv.ParseInt(s, base, 64)
	if err != nil {
		return 0, err
	}
	if neg {
		v = -v
	}
	return v, nil
}
