// Package recognizer implements the streaming decode loop: turning
// windows of PCM audio into word hypotheses via a pluggable acoustic
// scorer, tracking endpoint state, and producing n-best transcripts with
// word-level timing on request.
package recognizer

// WordPosterior is one candidate word an AcousticScorer proposes for a
// frame, together with its score. Higher is better; scores accumulate
// additively along a beam-search path, standing in for the WFST lattice
// original_source/src/recognizer.cc builds from Kaldi's nnet3 decoder.
type WordPosterior struct {
	Word  string
	Score float32
}

// AcousticScorer is the Recognizer's external collaborator (spec.md §1):
// an acoustic model that scores one frame of audio at a time. It is the
// Recognizer-side analogue of the teacher's engine.Engine interface,
// generalized from a single speech probability to a set of word-level
// posteriors.
type AcousticScorer interface {
	// ScoreFrame scores one frame of 16kHz mono PCM and returns candidate
	// word continuations ordered by descending score. An empty result
	// means "no confident candidate this frame" (silence/non-speech).
	ScoreFrame(pcm []int16) ([]WordPosterior, error)
	// Reset clears any internal state (e.g. recurrent hidden state)
	// between segments.
	Reset() error
	// Close releases resources.
	Close() error
}

// FrameSamples is the number of PCM samples per scored frame at 16kHz,
// a 10ms step matching the teacher's 20ms chunk convention halved to the
// shorter of the two common Kaldi frame shifts.
const FrameSamples = 160
