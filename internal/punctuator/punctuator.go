package punctuator

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Punctuator restores punctuation and capitalization to a word sequence.
// It implements spec.md §4.6: stateless predict-then-rewrite, never
// changing word count, order, or inter-word boundaries.
type Punctuator struct {
	tokenizer  *WordPieceTokenizer
	classifier Classifier
	clsTokenID int
	sepTokenID int
	titleCaser cases.Caser
}

// New builds a Punctuator from a tokenizer and classifier, with
// clsTokenID/sepTokenID marking the special boundary tokens the
// classifier's input sequence is framed with.
func New(tokenizer *WordPieceTokenizer, classifier Classifier, clsTokenID, sepTokenID int) *Punctuator {
	return &Punctuator{
		tokenizer:  tokenizer,
		classifier: classifier,
		clsTokenID: clsTokenID,
		sepTokenID: sepTokenID,
		titleCaser: cases.Title(language.Und, cases.NoLower),
	}
}

// Punctuate runs ElectraPunctuator::Punctuate's algorithm: tokenize into
// word-pieces, classify each piece, collapse to one label per word by
// keeping only the first piece's label, then append the label's
// character and optionally capitalize the next word.
func (p *Punctuator) Punctuate(words []string, capitalize bool) ([]string, error) {
	return p.punctuate(words, capitalize, false)
}

// PunctuateWithContext additionally inspects the last character of the
// last word in leftContext to decide whether the first output word
// should be capitalized, for continuity across segment boundaries.
func (p *Punctuator) PunctuateWithContext(words, leftContext []string, capitalize bool) ([]string, error) {
	capitalizeFirst := false
	if capitalize && len(leftContext) > 0 {
		last := leftContext[len(leftContext)-1]
		if r, _ := utf8.DecodeLastRuneInString(last); r != utf8.RuneError && isSentenceEnd(r) {
			capitalizeFirst = true
		}
	}
	return p.punctuate(words, capitalize, capitalizeFirst)
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '?' || r == '!'
}

func (p *Punctuator) punctuate(words []string, capitalize, capitalizeFirst bool) ([]string, error) {
	if len(words) == 0 {
		return nil, nil
	}

	pieces := p.tokenizer.Tokenize(words)
	ids := make([]int, 0, len(pieces)+2)
	ids = append(ids, p.clsTokenID)
	ids = append(ids, p.tokenizer.TokensToIds(pieces)...)
	ids = append(ids, p.sepTokenID)

	labels, err := p.classifier.Classify(ids)
	if err != nil {
		return nil, fmt.Errorf("punctuator: classify: %w", err)
	}
	if len(labels) != len(ids) {
		return nil, fmt.Errorf("punctuator: classifier returned %d labels, want %d", len(labels), len(ids))
	}

	// First and last elements of labels correspond to CLS/SEP; interior
	// elements correspond 1:1 to pieces. Keep only the label on each
	// word's first (non-subword) piece.
	wordLabels := make([]int, 0, len(words))
	for i, piece := range pieces {
		if p.tokenizer.IsSubword(piece) {
			continue
		}
		wordLabels = append(wordLabels, labels[i+1])
	}
	if len(wordLabels) != len(words) {
		return nil, fmt.Errorf("punctuator: collapsed %d word labels, want %d", len(wordLabels), len(words))
	}

	output := make([]string, len(words))
	capitalizeNext := capitalizeFirst
	for i, word := range words {
		lbl := wordLabels[i]
		out := word
		if capitalize && capitalizeNext {
			out = p.titleCaser.String(out)
		}
		out += idToChar[lbl]
		output[i] = out
		if capitalize {
			capitalizeNext = idToCapitalizeNext[lbl]
		}
	}
	return output, nil
}
