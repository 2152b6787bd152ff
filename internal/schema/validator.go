// Package schema validates inbound transcription requests.
package schema

import (
	"errors"
	"reflect"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming/types"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"voice-transcription-service/internal/models"
)

// Specialties accepted by the medical engine.
var Specialties = []string{"PRIMARYCARE", "CARDIOLOGY", "NEUROLOGY", "ONCOLOGY", "RADIOLOGY", "UROLOGY"}

// FilterMethods accepted for vocabulary filtering.
var FilterMethods = []string{"remove", "mask", "tag"}

// Validator checks a TranscriptionRequest before any session is set up.
type Validator struct {
	v         *validator.Validate
	languages map[string]struct{}
}

// New creates a validator with the request-specific rules registered.
func New() *Validator {
	languages := make(map[string]struct{})
	for _, lc := range types.LanguageCode("").Values() {
		languages[string(lc)] = struct{}{}
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("transcribe_language", func(fl validator.FieldLevel) bool {
		_, ok := languages[fl.Field().String()]
		return ok
	})
	_ = v.RegisterValidation("vocabulary_filter_method", func(fl validator.FieldLevel) bool {
		return contains(FilterMethods, fl.Field().String(), false)
	})
	_ = v.RegisterValidation("medical_specialty", func(fl validator.FieldLevel) bool {
		return contains(Specialties, fl.Field().String(), true)
	})

	return &Validator{v: v, languages: languages}
}

// Validate returns nil for a well-formed request, or an
// *models.InvalidArgumentError naming the first offending field.
func (v *Validator) Validate(req models.TranscriptionRequest) error {
	err := v.v.Struct(req)
	if err == nil {
		log.Debug().Str("voiceCallId", req.VoiceCallID).Msg("Request validated")
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		value, _ := fe.Value().(string)
		return &models.InvalidArgumentError{Field: fe.Field(), Value: value}
	}
	return &models.InvalidArgumentError{Field: "request", Value: err.Error()}
}

// SupportsLanguage reports whether the recognizer accepts the language code.
func (v *Validator) SupportsLanguage(code string) bool {
	_, ok := v.languages[code]
	return ok
}

func contains(set []string, value string, fold bool) bool {
	for _, s := range set {
		if s == value || (fold && strings.EqualFold(s, value)) {
			return true
		}
	}
	return false
}
