package formatter

import (
	"strconv"
	"strings"

	"github.com/tiro-is/tiro-speech-go/internal/recognizer"
)

// rewriteRule substitutes a single spoken-form word with its written form.
// Grounded on the abbreviation/currency/ordinal tables
// original_source/src/itn/converters.cc's rewrite grammars encode as
// byte-to-byte FST arcs; here they are a flat lookup since the rewrite is
// 1:1 and carries no timing merge.
var rewriteRules = map[string]string{
	"prósent":  "%",
	"prósenta": "%",
	"króna":    "kr.",
	"krónur":   "kr.",
	"krónum":   "kr.",
	"krónu":    "kr.",
	"doktor":   "Dr.",
	"herra":    "hr.",
	"frú":      "frú.",
}

var ordinalRules = map[string]string{
	"fyrsti": "1.", "fyrsta": "1.", "fyrstu": "1.",
	"annar": "2.", "önnur": "2.", "annað": "2.",
	"þriðji": "3.", "þriðja": "3.",
	"fjórði": "4.", "fjórða": "4.",
	"fimmti": "5.", "fimmta": "5.",
	"sjötti": "6.", "sjötta": "6.",
	"sjöundi": "7.", "sjöunda": "7.",
	"áttundi": "8.", "áttunda": "8.",
	"níundi": "9.", "níunda": "9.",
	"tíundi": "10.", "tíunda": "10.",
}

// Format rewrites a sequence of recognizer word alignments into written
// form, collapsing runs of spoken-form numerals into digit strings and
// substituting abbreviation/ordinal/currency words, while preserving the
// start/duration span each output word covers. It implements spec.md
// §4.5's timing-preserving inverse text normalisation without requiring a
// general WFST composition engine: the (max,min)/(min,max) timingWeight
// semiring in weight.go plays the role of the timing FST, and the rewrite
// table plays the role of L ∘ R, applied directly over the linear chain
// instead of through FST composition.
func Format(words []recognizer.AlignedWord) []recognizer.AlignedWord {
	lower := make([]string, len(words))
	for i, w := range words {
		lower[i] = strings.ToLower(w.Symbol)
	}

	out := make([]recognizer.AlignedWord, 0, len(words))
	for i := 0; i < len(words); {
		if end, ok := extractNumberRun(lower, i); ok && end > i {
			tokens := lower[i:end]
			if value, ok := parseNumberRun(tokens); ok {
				span := spanOf(words[i:end])
				out = append(out, recognizer.AlignedWord{
					StartTimeMs: span.StartMs(),
					DurationMs:  span.EndMs() - span.StartMs(),
					Symbol:      strconv.Itoa(value),
				})
				i = end
				continue
			}
		}

		w := words[i]
		if rewritten, ok := ordinalRules[lower[i]]; ok {
			out = append(out, recognizer.AlignedWord{StartTimeMs: w.StartTimeMs, DurationMs: w.DurationMs, Symbol: rewritten})
			i++
			continue
		}
		if rewritten, ok := rewriteRules[lower[i]]; ok {
			out = append(out, recognizer.AlignedWord{StartTimeMs: w.StartTimeMs, DurationMs: w.DurationMs, Symbol: rewritten})
			i++
			continue
		}
		out = append(out, w)
		i++
	}
	return out
}

// spanOf collapses a run of aligned words into the single timing span that
// covers all of them: the earliest start and the latest end, i.e. Times
// under the timingWeight semiring (the "span of concatenation" rule in
// spec.md §4.5, matching the multi-input-word-collapses-to-one-output-word
// edge case).
func spanOf(words []recognizer.AlignedWord) timingWeight {
	span := timingWeightOne()
	for _, w := range words {
		arc := newTimingWeight(w.StartTimeMs, w.StartTimeMs+w.DurationMs)
		if span.isOne() {
			span = arc
		} else {
			span = span.Times(arc)
		}
	}
	return span
}
