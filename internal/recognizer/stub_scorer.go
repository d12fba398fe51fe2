//go:build !onnx

package recognizer

import "math"

// StubVocabulary is the deterministic word list the stub scorer cycles
// through. It exists so recognizer tests and local development don't
// require a real acoustic model, mirroring the teacher's
// engine.StubEngine (itself toggling speech/silence on a fixed
// schedule rather than reading a model).
var StubVocabulary = []string{"the", "quick", "brown", "fox", "jumps"}

// StubScorer returns deterministic word posteriors by energy-gating
// frames: silent frames propose nothing, voiced frames propose the next
// word in StubVocabulary (cycling) with a fixed score.
type StubScorer struct {
	energyThreshold float64
	cursor          int
}

// NewStubScorer builds the default (non-onnx build) AcousticScorer.
func NewStubScorer() *StubScorer {
	return &StubScorer{energyThreshold: 300}
}

func (s *StubScorer) ScoreFrame(pcm []int16) ([]WordPosterior, error) {
	if !frameHasEnergy(pcm, s.energyThreshold) {
		return nil, nil
	}
	word := StubVocabulary[s.cursor%len(StubVocabulary)]
	s.cursor++
	return []WordPosterior{{Word: word, Score: 1.0}}, nil
}

func (s *StubScorer) Reset() error {
	s.cursor = 0
	return nil
}

func (s *StubScorer) Close() error { return nil }

func frameHasEnergy(pcm []int16, threshold float64) bool {
	if len(pcm) == 0 {
		return false
	}
	var sumSquares float64
	for _, v := range pcm {
		sumSquares += float64(v) * float64(v)
	}
	rms := math.Sqrt(sumSquares / float64(len(pcm)))
	return rms >= threshold
}
