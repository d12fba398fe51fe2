package formatter

import (
	"strconv"
	"testing"

	"github.com/tiro-is/tiro-speech-go/internal/recognizer"
)

func words(specs ...struct {
	symbol string
	start  int64
	dur    int64
}) []recognizer.AlignedWord {
	out := make([]recognizer.AlignedWord, len(specs))
	for i, s := range specs {
		out[i] = recognizer.AlignedWord{StartTimeMs: s.start, DurationMs: s.dur, Symbol: s.symbol}
	}
	return out
}

func wordSpec(symbol string, start, dur int64) struct {
	symbol string
	start  int64
	dur    int64
} {
	return struct {
		symbol string
		start  int64
		dur    int64
	}{symbol, start, dur}
}

func TestFormatCollapsesNumberRunWithConjunction(t *testing.T) {
	in := words(
		wordSpec("ég", 0, 100),
		wordSpec("á", 100, 100),
		wordSpec("tuttugu", 200, 100),
		wordSpec("og", 300, 100),
		wordSpec("fimm", 400, 100),
		wordSpec("bækur", 500, 100),
	)
	out := Format(in)
	if len(out) != 4 {
		t.Fatalf("len(out) = %d, want 4: %+v", len(out), out)
	}
	if out[2].Symbol != "25" {
		t.Errorf("out[2].Symbol = %q, want %q", out[2].Symbol, "25")
	}
	if out[2].StartTimeMs != 200 {
		t.Errorf("out[2].StartTimeMs = %d, want 200", out[2].StartTimeMs)
	}
	if out[2].StartTimeMs+out[2].DurationMs != 500 {
		t.Errorf("out[2] end = %d, want 500", out[2].StartTimeMs+out[2].DurationMs)
	}
}

func TestFormatHundredsAndThousands(t *testing.T) {
	cases := []struct {
		tokens []string
		want   int
	}{
		{[]string{"eitt", "þúsund"}, 1000},
		{[]string{"tvö", "hundruð"}, 200},
		{[]string{"tvö", "hundruð", "og", "fimmtíu"}, 250},
		{[]string{"níu"}, 9},
	}
	for _, c := range cases {
		specs := make([]struct {
			symbol string
			start  int64
			dur    int64
		}, len(c.tokens))
		for i, tok := range c.tokens {
			specs[i] = wordSpec(tok, int64(i*100), 100)
		}
		out := Format(words(specs...))
		if len(out) != 1 {
			t.Fatalf("tokens %v: len(out) = %d, want 1: %+v", c.tokens, len(out), out)
		}
		if out[0].Symbol != strconv.Itoa(c.want) {
			t.Errorf("tokens %v: Symbol = %q, want %q", c.tokens, out[0].Symbol, strconv.Itoa(c.want))
		}
	}
}

func TestFormatLeavesNonNumberWordsUntouched(t *testing.T) {
	in := words(wordSpec("hæ", 0, 100), wordSpec("heimur", 100, 100))
	out := Format(in)
	if len(out) != 2 || out[0].Symbol != "hæ" || out[1].Symbol != "heimur" {
		t.Errorf("Format() = %+v, want unchanged", out)
	}
}

func TestFormatPreservesWordCountWhenNoNumbers(t *testing.T) {
	in := words(wordSpec("þetta", 0, 50), wordSpec("er", 50, 50), wordSpec("próf", 100, 50))
	out := Format(in)
	if len(out) != len(in) {
		t.Errorf("len(out) = %d, want %d", len(out), len(in))
	}
}

func TestFormatAppliesOrdinalRewrite(t *testing.T) {
	in := words(wordSpec("þriðji", 0, 100))
	out := Format(in)
	if out[0].Symbol != "3." {
		t.Errorf("Symbol = %q, want %q", out[0].Symbol, "3.")
	}
	if out[0].StartTimeMs != 0 || out[0].DurationMs != 100 {
		t.Errorf("timing changed for 1:1 rewrite: %+v", out[0])
	}
}

func TestFormatAppliesCurrencyRewrite(t *testing.T) {
	in := words(wordSpec("fimm", 0, 100), wordSpec("krónur", 100, 100))
	out := Format(in)
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2: %+v", len(out), out)
	}
	if out[0].Symbol != "5" {
		t.Errorf("out[0].Symbol = %q, want %q", out[0].Symbol, "5")
	}
	if out[1].Symbol != "kr." {
		t.Errorf("out[1].Symbol = %q, want %q", out[1].Symbol, "kr.")
	}
}

func TestFormatDoesNotStartRunOnBareConjunction(t *testing.T) {
	in := words(wordSpec("og", 0, 100), wordSpec("hundurinn", 100, 100))
	out := Format(in)
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2: %+v", len(out), out)
	}
	if out[0].Symbol != "og" {
		t.Errorf("out[0].Symbol = %q, want unchanged %q", out[0].Symbol, "og")
	}
}
