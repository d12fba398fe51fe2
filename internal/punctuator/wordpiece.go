// Package punctuator restores punctuation and capitalization to a sequence
// of recognizer words. It ports the WordPiece tokenizer and label scheme
// from original_source/src/itn/wordpiece.cc and punctuation.cc.
package punctuator

import (
	"fmt"
	"strings"
)

const subwordPrefix = "##"

// WordPieceTokenizer implements greedy longest-match-first tokenization
// over a fixed vocabulary, the same algorithm as
// WordPieceTokenizer::Tokenize in original_source/src/itn/wordpiece.cc.
type WordPieceTokenizer struct {
	vocab                []string
	vocabIndex           map[string]int
	unkToken             string
	maxInputCharsPerWord int
}

// NewWordPieceTokenizer builds a tokenizer over vocab, in on-disk line
// order (so IDs match a loaded vocabulary file's line numbers).
func NewWordPieceTokenizer(vocab []string, unkToken string, maxInputCharsPerWord int) *WordPieceTokenizer {
	index := make(map[string]int, len(vocab))
	for i, tok := range vocab {
		index[tok] = i
	}
	return &WordPieceTokenizer{
		vocab:                vocab,
		vocabIndex:           index,
		unkToken:             unkToken,
		maxInputCharsPerWord: maxInputCharsPerWord,
	}
}

// IsSubword reports whether piece is a continuation piece (## prefix).
func (t *WordPieceTokenizer) IsSubword(piece string) bool {
	return strings.HasPrefix(piece, subwordPrefix) && len(piece) > len(subwordPrefix)
}

// Tokenize splits each word into the longest vocabulary-matching pieces,
// left to right; a word with no valid split, or longer than
// maxInputCharsPerWord runes, becomes a single unkToken.
func (t *WordPieceTokenizer) Tokenize(words []string) []string {
	pieces := make([]string, 0, len(words))
	for _, word := range words {
		runes := []rune(word)
		if len(runes) > t.maxInputCharsPerWord {
			pieces = append(pieces, t.unkToken)
			continue
		}

		var subTokens []string
		startChar := 0
		bad := false
		for startChar < len(runes) {
			endChar := len(runes)
			current := ""
			for startChar < endChar {
				substr := string(runes[startChar:endChar])
				if startChar > 0 {
					substr = subwordPrefix + substr
				}
				if _, ok := t.vocabIndex[substr]; ok {
					current = substr
					break
				}
				endChar--
			}
			if current == "" {
				bad = true
				break
			}
			subTokens = append(subTokens, current)
			startChar = endChar
		}

		if bad {
			pieces = append(pieces, t.unkToken)
		} else {
			pieces = append(pieces, subTokens...)
		}
	}
	return pieces
}

// Merge is the inverse of Tokenize: it reassembles word-piece continuation
// sequences into whole words by concatenating ##-prefixed suffixes onto
// the preceding piece.
func (t *WordPieceTokenizer) Merge(pieces []string) ([]string, error) {
	words := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		if t.IsSubword(piece) {
			if len(words) == 0 {
				return nil, fmt.Errorf("punctuator: first word-piece cannot be a suffix: %q", piece)
			}
			words[len(words)-1] += piece[len(subwordPrefix):]
		} else {
			words = append(words, piece)
		}
	}
	return words, nil
}

// TokensToIds maps each piece to its vocabulary id. Unknown pieces map to
// the id of unkToken.
func (t *WordPieceTokenizer) TokensToIds(tokens []string) []int {
	ids := make([]int, len(tokens))
	unkID := t.vocabIndex[t.unkToken]
	for i, tok := range tokens {
		if id, ok := t.vocabIndex[tok]; ok {
			ids[i] = id
		} else {
			ids[i] = unkID
		}
	}
	return ids
}

// IdsToTokens is the inverse of TokensToIds.
func (t *WordPieceTokenizer) IdsToTokens(ids []int) []string {
	tokens := make([]string, len(ids))
	for i, id := range ids {
		if id >= 0 && id < len(t.vocab) {
			tokens[i] = t.vocab[id]
		} else {
			tokens[i] = t.unkToken
		}
	}
	return tokens
}

// TokenizeToIds is Tokenize followed by TokensToIds.
func (t *WordPieceTokenizer) TokenizeToIds(words []string) []int {
	return t.TokensToIds(t.Tokenize(words))
}
