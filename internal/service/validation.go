package service

import (
	"fmt"

	speechv1 "github.com/tiro-is/tiro-speech-go/api/speech/v1"
	"github.com/tiro-is/tiro-speech-go/internal/registry"
)

// fieldViolation is one {field, description} pair, the Go shape of
// original_source/src/api/validation.h's MessageValidationStatus entry.
type fieldViolation struct {
	field       string
	description string
}

// validationErrors is a MessageValidationStatus: empty means the message
// is valid.
type validationErrors []fieldViolation

func (v *validationErrors) add(field, format string, args ...interface{}) {
	*v = append(*v, fieldViolation{field: field, description: fmt.Sprintf(format, args...)})
}

func (v *validationErrors) addPrefixed(prefix string, other validationErrors) {
	if len(other) == 0 {
		return
	}
	v.add(prefix, "error validating field %q, see error details", prefix)
	for _, e := range other {
		*v = append(*v, fieldViolation{field: prefix + "." + e.field, description: e.description})
	}
}

// validateConfig mirrors Validate(const RecognitionConfig&, const
// KaldiModelMap*) from original_source/src/api/validation.cc.
func validateConfig(cfg speechv1.RecognitionConfig, reg *registry.Registry) validationErrors {
	var errs validationErrors

	switch cfg.Encoding {
	case speechv1.EncodingUnspecified:
		errs.add("encoding", "the field 'encoding' must be specified")
	case speechv1.EncodingMP3:
		errs.add("encoding", "MP3 is not supported by this decoder; use LINEAR16 or FLAC")
	case speechv1.EncodingLinear16, speechv1.EncodingFLAC:
	default:
		errs.add("encoding", "unsupported encoding specified")
	}

	if cfg.LanguageCode == "" {
		errs.add("language_code", "field 'language_code' is required")
	} else if reg != nil {
		if _, ok := reg.Get(registry.ModelID{LanguageCode: cfg.LanguageCode, Variant: "generic"}); !ok {
			errs.add("language_code", "unsupported value %q for field 'language_code'", cfg.LanguageCode)
		}
	}

	if cfg.MaxAlternatives < 0 || cfg.MaxAlternatives > 30 {
		errs.add("max_alternatives", "valid values for field 'max_alternatives' are in range [0;30]")
	}

	return errs
}

// validateRecognizeRequest mirrors Validate(const RecognizeRequest&, ...).
func validateRecognizeRequest(req *speechv1.RecognizeRequest, reg *registry.Registry, allowedSchemes []string) validationErrors {
	var errs validationErrors
	errs.addPrefixed("config", validateConfig(req.Config, reg))

	switch {
	case len(req.Audio.Content) == 0 && req.Audio.Uri == "":
		errs.add("audio", "field 'audio' is empty")
	case req.Audio.Uri != "":
		if !schemeAllowed(req.Audio.Uri, allowedSchemes) {
			errs.add("audio.uri", "scheme missing or unsupported")
		}
	}
	return errs
}

func schemeAllowed(uri string, allowed []string) bool {
	scheme := uriScheme(uri)
	if scheme == "" {
		return false
	}
	for _, s := range allowed {
		if s == scheme {
			return true
		}
	}
	return false
}

func uriScheme(uri string) string {
	for i := 0; i < len(uri); i++ {
		if uri[i] == ':' {
			return uri[:i]
		}
		if !isSchemeChar(uri[i]) {
			return ""
		}
	}
	return ""
}

func isSchemeChar(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '+' || b == '-' || b == '.'
}

// validateStreamingConfig mirrors the streaming_config branch of
// Validate(const StreamingRecognizeRequest&, first_request, ...): the
// first message must carry streaming_config, LINEAR16-only.
func validateStreamingConfig(cfg *speechv1.StreamingRecognitionConfig, reg *registry.Registry) validationErrors {
	var errs validationErrors
	if cfg == nil {
		errs.add("streaming_config", "required field 'streaming_config' missing")
		return errs
	}
	configErrs := validateConfig(cfg.Config, reg)
	if cfg.Config.Encoding != speechv1.EncodingLinear16 {
		errs.add("streaming_config.config.encoding", "LINEAR16 is the only supported encoding for StreamingRecognize")
	}
	errs.addPrefixed("streaming_config.config", configErrs)
	return errs
}
