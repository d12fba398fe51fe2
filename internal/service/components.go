package service

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/tiro-is/tiro-speech-go/internal/diarizer"
	"github.com/tiro-is/tiro-speech-go/internal/punctuator"
	"github.com/tiro-is/tiro-speech-go/internal/recognizer"
	"github.com/tiro-is/tiro-speech-go/internal/registry"
)

// loadWordSyms reads a Kaldi word-symbol-table file (one "word id" pair
// per line, original_source/src/kaldi-model.h's word-syms-rxfilename) and
// returns the words ordered by id.
func loadWordSyms(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("service: open word symbol table: %w", err)
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		words = append(words, fields[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("service: read word symbol table: %w", err)
	}
	return words, nil
}

// newScorerFactory returns a recognizer.ScorerFactory-shaped closure that
// builds a fresh AcousticScorer for model, matching
// orchestrator.ScorerFactory's "one scorer per segment" contract.
func newScorerFactory(model *registry.Model) func() (recognizer.AcousticScorer, error) {
	return func() (recognizer.AcousticScorer, error) {
		vocab, err := loadWordSyms(model.WordSymsPath)
		if err != nil {
			return nil, err
		}
		return recognizer.NewScorer(model.NnetPath, vocab)
	}
}

// rescoreLMFor loads model's optional const-ARPA rescoring LM, or returns
// nil if the model has none configured.
func rescoreLMFor(model *registry.Model) (*recognizer.ConstARPALM, error) {
	if model.ConstARPAPath == "" {
		return nil, nil
	}
	return recognizer.LoadConstARPALM(model.ConstARPAPath)
}

// clsTokenID/sepTokenID follow BERT's reserved-id convention (far above
// any ordinary vocabulary entry) so they never collide with the id a
// missing vocabulary entry resolves to (0, a Go map's zero value).
const (
	clsTokenID       = 100
	sepTokenID       = 101
	unkToken         = "[UNK]"
	maxCharsPerWord  = 100
	punctuatorMaxLen = 512
)

// punctuatorFor builds a Punctuator for model, falling back to the
// deterministic HeuristicClassifier (full-stop-at-end-of-run) when no
// trained punctuation artifact is configured, the same "run end to end
// without a model artifact" fallback internal/punctuator.HeuristicClassifier
// documents.
func punctuatorFor(model *registry.Model) (*punctuator.Punctuator, error) {
	var classifier punctuator.Classifier
	vocab := []string{unkToken}
	if model.PunctuatorModelPath != "" && model.PunctuatorVocabPath != "" {
		loaded, err := loadWordSyms(model.PunctuatorVocabPath)
		if err != nil {
			return nil, err
		}
		vocab = loaded
		c, err := punctuator.NewClassifier(model.PunctuatorModelPath, punctuatorMaxLen, clsTokenID, sepTokenID)
		if err != nil {
			return nil, fmt.Errorf("service: build punctuator classifier: %w", err)
		}
		classifier = c
	} else {
		classifier = punctuator.NewHeuristicClassifier(clsTokenID, sepTokenID)
	}
	tokenizer := punctuator.NewWordPieceTokenizer(vocab, unkToken, maxCharsPerWord)
	return punctuator.New(tokenizer, classifier, clsTokenID, sepTokenID), nil
}

// diarizerModelFor builds a diarizer.Model for model, using an identity
// PLDA (zero mean, identity transform, unit between-class variance) when
// no trained PLDA artifact is configured — there is no spec-defined file
// format for a trained PLDA model, so the identity model lets the
// pipeline exercise embedding + clustering end to end without one
// (DESIGN.md: diarizer PLDA-loading simplification).
func diarizerModelFor(model *registry.Model) (diarizer.Model, error) {
	featDim := 13
	embedder, err := diarizer.NewEmbedder(model.DiarizerModelPath, 150, featDim, 2*featDim)
	if err != nil {
		return diarizer.Model{}, fmt.Errorf("service: build diarizer embedder: %w", err)
	}
	dim := embedder.Dim()
	transform := make([][]float64, dim)
	psi := make([]float64, dim)
	for i := range transform {
		row := make([]float64, dim)
		row[i] = 1
		transform[i] = row
		psi[i] = 1
	}
	return diarizer.Model{
		Embedder:        embedder,
		Plda:            &diarizer.Plda{Mean: make([]float64, dim), Transform: transform, Psi: psi},
		WhiteningMatrix: transform,
		CenteringVector: make([]float64, dim),
	}, nil
}
