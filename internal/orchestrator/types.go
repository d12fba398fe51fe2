package orchestrator

import "github.com/tiro-is/tiro-speech-go/internal/recognizer"

// endSentinel is the literal three-byte payload that terminates a stream
// cleanly, the same convention an empty payload also signals (spec.md §6,
// "Sentinels on the streaming byte wire").
const endSentinel = "END"

// SpeechEventType mirrors the RecognizeResponse.speech_event_type field
// spec.md §6 describes.
type SpeechEventType int

const (
	SpeechEventUnspecified SpeechEventType = iota
	SpeechEventEndOfSingleUtterance
)

// DiarizationConfig is the streaming_config.diarization_config subset
// relevant to validation; diarization itself only runs on the
// non-streaming path (spec.md §9, "Open question — streaming
// diarization").
type DiarizationConfig struct {
	EnableSpeakerDiarization bool
	MinSpeakerCount          int
}

// StreamingConfig is the orchestrator's own shape of the first
// StreamingRecognizeRequest message's streaming_config field (spec.md
// §4.8 point 1), independent of the api/speech/v1 wire type; translation
// between the two lives in internal/service.
type StreamingConfig struct {
	LanguageCode               string
	SampleRateHertz            int
	MaxAlternatives            int
	EnableWordTimeOffsets      bool
	EnableAutomaticPunctuation bool
	InterimResults             bool
	SingleUtterance            bool
	Diarization                DiarizationConfig
}

// Response is one StreamingRecognizeResponse the processor emits.
type Response struct {
	IsFinal         bool
	Alternatives    []recognizer.Alternative
	SpeechEventType SpeechEventType
}

// isEndSentinel reports whether payload signals clean stream termination:
// empty, or the literal ASCII string "END".
func isEndSentinel(payload []byte) bool {
	return len(payload) == 0 || string(payload) == endSentinel
}
