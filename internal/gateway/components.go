package gateway

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/tiro-is/tiro-speech-go/internal/punctuator"
	"github.com/tiro-is/tiro-speech-go/internal/recognizer"
	"github.com/tiro-is/tiro-speech-go/internal/registry"
)

// clsTokenID/sepTokenID mirror internal/service's reserved-id convention
// (see that package's components.go for why 0/1 would collide with a
// missing vocabulary entry's zero-value id).
const (
	clsTokenID       = 100
	sepTokenID       = 101
	unkToken         = "[UNK]"
	maxCharsPerWord  = 100
	punctuatorMaxLen = 512
)

func loadWordSyms(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gateway: open word symbol table: %w", err)
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
		return nil, fmt.Errorf("gateway: read word symbol table: %w", err)
	}
	return words, nil
}

// newScorerFactory mirrors internal/service.newScorerFactory: a fresh
// AcousticScorer per streaming call, matching orchestrator.ScorerFactory's
// "one scorer per segment" contract.
func newScorerFactory(model *registry.Model) func() (recognizer.AcousticScorer, error) {
	return func() (recognizer.AcousticScorer, error) {
		vocab, err := loadWordSyms(model.WordSymsPath)
		if err != nil {
			return nil, err
		}
		return recognizer.NewScorer(model.NnetPath, vocab)
	}
}

// punctuatorFor mirrors internal/service.punctuatorFor, falling back to
// the deterministic HeuristicClassifier when no trained punctuation
// artifact is configured for model.
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
			return nil, fmt.Errorf("gateway: build punctuator classifier: %w", err)
		}
		classifier = c
	} else {
		classifier = punctuator.NewHeuristicClassifier(clsTokenID, sepTokenID)
	}
	tokenizer := punctuator.NewWordPieceTokenizer(vocab, unkToken, maxCharsPerWord)
	return punctuator.New(tokenizer, classifier, clsTokenID, sepTokenID), nil
}
