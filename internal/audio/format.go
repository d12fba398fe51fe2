// Package audio implements the codec/resample stage and the pluggable
// audio sources that feed it: decoding LINEAR16/FLAC byte streams down
// (MP3 is recognized by its frame sync and rejected, not decoded) to the
// canonical mono 16 kHz signed 16-bit PCM format the rest of the
// pipeline consumes, and resampling between arbitrary input/output rates.
package audio

import "fmt"

// Encoding identifies the wire encoding of an audio byte stream.
type Encoding int

const (
	EncodingUnspecified Encoding = iota
	EncodingLinear16
	EncodingMP3
	EncodingFLAC
	// EncodingGuess defers to magic-byte sniffing in NewDecoder.
	EncodingGuess
)

func (e Encoding) String() string {
	switch e {
	case EncodingLinear16:
		return "LINEAR16"
	case EncodingMP3:
		return "MP3"
	case EncodingFLAC:
		return "FLAC"
	case EncodingGuess:
		return "GUESS"
	default:
		return "ENCODING_UNSPECIFIED"
	}
}

// CanonicalSampleRateHertz is the sample rate the Codec stage resamples
// every decoded signal to before it reaches the VAD gate or recognizer.
const CanonicalSampleRateHertz = 16000

// Format describes the wire format of an audio source. Channels is always
// 1; this pipeline never accepts multi-channel input.
type Format struct {
	Encoding        Encoding
	SampleRateHertz uint32
}

// Validate reports whether f is usable by NewDecoder.
func (f Format) Validate() error {
	if f.Encoding == EncodingUnspecified {
		return fmt.Errorf("audio: encoding must be set")
	}
	if f.Encoding != EncodingGuess && f.SampleRateHertz == 0 {
		return fmt.Errorf("audio: sample_rate_hertz must be set for encoding %s", f.Encoding)
	}
	return nil
}
