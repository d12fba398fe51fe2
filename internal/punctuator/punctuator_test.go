package punctuator

import (
	"reflect"
	"testing"
)

func testVocab() []string {
	return []string{"[UNK]", "[CLS]", "[SEP]", "þú", "ert", "mitt", "sólskin", "gleður", "mig"}
}

func newTestPunctuator() *Punctuator {
	tok := NewWordPieceTokenizer(testVocab(), "[UNK]", 100)
	cls := NewHeuristicClassifier(1, 2)
	return New(tok, cls, 1, 2)
}

func TestWordPieceTokenizeWholeWordVocabMatch(t *testing.T) {
	tok := NewWordPieceTokenizer(testVocab(), "[UNK]", 100)
	pieces := tok.Tokenize([]string{"þú", "ert", "mitt"})
	want := []string{"þú", "ert", "mitt"}
	if !reflect.DeepEqual(pieces, want) {
		t.Errorf("Tokenize() = %v, want %v", pieces, want)
	}
}

func TestWordPieceTokenizeUnknown(t *testing.T) {
	tok := NewWordPieceTokenizer(testVocab(), "[UNK]", 100)
	pieces := tok.Tokenize([]string{"aldrei"})
	if len(pieces) != 1 || pieces[0] != "[UNK]" {
		t.Errorf("Tokenize([aldrei]) = %v, want [[UNK]]", pieces)
	}
}

func TestWordPieceTokenizeOverMaxLength(t *testing.T) {
	tok := NewWordPieceTokenizer(testVocab(), "[UNK]", 3)
	pieces := tok.Tokenize([]string{"sólskin"})
	if len(pieces) != 1 || pieces[0] != "[UNK]" {
		t.Errorf("Tokenize() over max length = %v, want [[UNK]]", pieces)
	}
}

func TestWordPieceSubwordSplit(t *testing.T) {
	vocab := []string{"[UNK]", "[CLS]", "[SEP]", "sól", "##skin"}
	tok := NewWordPieceTokenizer(vocab, "[UNK]", 100)
	pieces := tok.Tokenize([]string{"sólskin"})
	want := []string{"sól", "##skin"}
	if !reflect.DeepEqual(pieces, want) {
		t.Errorf("Tokenize(sólskin) = %v, want %v", pieces, want)
	}
	if !tok.IsSubword("##skin") {
		t.Error("IsSubword(##skin) = false, want true")
	}
	merged, err := tok.Merge(pieces)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged) != 1 || merged[0] != "sólskin" {
		t.Errorf("Merge() = %v, want [sólskin]", merged)
	}
}

func TestWordPieceMergeRejectsLeadingSubword(t *testing.T) {
	tok := NewWordPieceTokenizer(testVocab(), "[UNK]", 100)
	if _, err := tok.Merge([]string{"##skin"}); err == nil {
		t.Error("Merge() with leading subword piece, want error")
	}
}

func TestPunctuatePreservesWordCountAndOrder(t *testing.T) {
	p := newTestPunctuator()
	words := []string{"þú", "ert", "mitt", "sólskin"}
	out, err := p.Punctuate(words, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(words) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(words))
	}
	for i, w := range words {
		base := stripTrailingPunct(out[i])
		if len(base) != len(w) {
			t.Errorf("out[%d] = %q, base word length changed from %q", i, out[i], w)
		}
	}
}

func TestPunctuateAppendsPeriodOnLastWord(t *testing.T) {
	p := newTestPunctuator()
	words := []string{"þú", "ert", "mitt", "sólskin"}
	out, err := p.Punctuate(words, false)
	if err != nil {
		t.Fatal(err)
	}
	if out[len(out)-1] != "sólskin." {
		t.Errorf("last word = %q, want %q", out[len(out)-1], "sólskin.")
	}
	for i := 0; i < len(out)-1; i++ {
		if out[i] != words[i] {
			t.Errorf("out[%d] = %q, want unchanged %q", i, out[i], words[i])
		}
	}
}

func TestPunctuateCapitalizesAfterSentenceEnd(t *testing.T) {
	p := newTestPunctuator()
	// Two short "sentences" back to back so the heuristic PERIOD lands
	// mid-sequence: feed words twice so there's an interior label to
	// capitalize on. The heuristic only marks the final token PERIOD, so
	// use a single call and check capitalize applies to the first word
	// when capitalizeFirst is requested via context.
	out, err := p.PunctuateWithContext([]string{"mig"}, []string{"gleður."}, true)
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != "Mig." {
		t.Errorf("PunctuateWithContext() = %q, want %q", out[0], "Mig.")
	}
}

func TestPunctuateWithContextNoCapitalizeWithoutSentenceEnd(t *testing.T) {
	p := newTestPunctuator()
	out, err := p.PunctuateWithContext([]string{"mig"}, []string{"gleður"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != "mig." {
		t.Errorf("PunctuateWithContext() = %q, want %q", out[0], "mig.")
	}
}

func TestPunctuateEmptyWords(t *testing.T) {
	p := newTestPunctuator()
	out, err := p.Punctuate(nil, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Errorf("Punctuate(nil) = %v, want empty", out)
	}
}

func stripTrailingPunct(s string) string {
	for _, c := range []string{".", ",", "?"} {
		if len(s) >= len(c) && s[len(s)-len(c):] == c {
			return s[:len(s)-len(c)]
		}
	}
	return s
}
