package recognizer

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleARPA = `\data\
ngram 1=3
ngram 2=2

\1-grams:
-1.0 the -0.3
-2.0 fox -0.2
-3.0 jumps

\2-grams:
-0.1 the fox
-0.2 fox jumps

\end\
`

func writeARPA(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "lm.arpa")
	if err := os.WriteFile(path, []byte(sampleARPA), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConstARPALMParsesGrams(t *testing.T) {
	lm, err := LoadConstARPALM(writeARPA(t))
	if err != nil {
		t.Fatal(err)
	}
	if lm.order != 2 {
		t.Fatalf("order = %d, want 2", lm.order)
	}
	if lm.probs["the fox"] != -0.1 {
		t.Errorf("probs[the fox] = %v, want -0.1", lm.probs["the fox"])
	}
}

func TestConstARPALMScoreKnownSequenceBeatsUnknown(t *testing.T) {
	lm, err := LoadConstARPALM(writeARPA(t))
	if err != nil {
		t.Fatal(err)
	}
	known := lm.Score([]string{"the", "fox", "jumps"})
	unknown := lm.Score([]string{"brown", "brown", "brown"})
	if known <= unknown {
		t.Errorf("Score(known) = %v, want > Score(unknown) = %v", known, unknown)
	}
}

func TestRescoreReordersBeamByCombinedScore(t *testing.T) {
	lm, err := LoadConstARPALM(writeARPA(t))
	if err != nil {
		t.Fatal(err)
	}
	beam := []hypothesis{
		{words: []string{"brown", "brown"}, score: 10},
		{words: []string{"the", "fox"}, score: 9},
	}
	rescored := rescore(beam, lm, 1)
	if rescored[0].words[0] != "the" {
		t.Errorf("top hypothesis after rescoring = %v, want the in-LM sequence to win", rescored[0].words)
	}
}

func TestRescoreNoOpWithoutLM(t *testing.T) {
	beam := []hypothesis{{words: []string{"a"}, score: 1}}
	out := rescore(beam, nil, 1)
	if len(out) != 1 || out[0].score != 1 {
		t.Errorf("rescore with nil lm mutated beam: %+v", out)
	}
}

func TestRecognizerGetResultsUsesRescoreLM(t *testing.T) {
	lm, err := LoadConstARPALM(writeARPA(t))
	if err != nil {
		t.Fatal(err)
	}
	r := New(NewStubScorer(), DefaultModelTiming(), DefaultEndpointConfig())
	r.SetRescoreLM(lm, 1)
	for i := 0; i < 3; i++ {
		if err := r.Decode(loudFrame(FrameSamples)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := r.GetResults(1, false); err != nil {
		t.Fatalf("GetResults() with rescore LM attached: %v", err)
	}
}
