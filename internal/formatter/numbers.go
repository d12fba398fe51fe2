package formatter

import "strings"

// Spoken-form number vocabulary, grounded on the cardinal/ordinal spellings
// original_source/src/itn/converters.cc's rewrite grammars normalise. Forms
// are listed in all the gendered inflections a Kaldi word-symbol table is
// likely to carry; the rewrite only needs to recognise them, not decline
// them.
var unitValues = map[string]int{
	"núll": 0,
	"einn": 1, "ein": 1, "eitt": 1,
	"tveir": 2, "tvær": 2, "tvö": 2,
	"þrír": 3, "þrjár": 3, "þrjú": 3,
	"fjórir": 4, "fjórar": 4, "fjögur": 4,
	"fimm": 5, "sex": 6, "sjö": 7, "átta": 8, "níu": 9, "tíu": 10,
	"ellefu": 11, "tólf": 12, "þrettán": 13, "fjórtán": 14, "fimmtán": 15,
	"sextán": 16, "sautján": 17, "átján": 18, "nítján": 19,
}

var tensValues = map[string]int{
	"tuttugu": 20, "þrjátíu": 30, "fjörutíu": 40, "fimmtíu": 50,
	"sextíu": 60, "sjötíu": 70, "áttatíu": 80, "níutíu": 90,
}

var hundredWords = map[string]bool{"hundrað": true, "hundruð": true}
var thousandWords = map[string]bool{"þúsund": true}

const conjunction = "og"

func isNumberWord(w string) bool {
	w = strings.ToLower(w)
	if w == conjunction {
		return true
	}
	_, isUnit := unitValues[w]
	_, isTens := tensValues[w]
	return isUnit || isTens || hundredWords[w] || thousandWords[w]
}

// extractNumberRun finds the maximal run of consecutive spoken-number
// tokens starting at start, allowing a single "og" to bridge two numeral
// tokens (e.g. "tuttugu og fimm") but never starting or ending a run on a
// bare conjunction. It returns the exclusive end index; ok is false if
// words[start] is not the start of a numeral run.
func extractNumberRun(words []string, start int) (end int, ok bool) {
	first := strings.ToLower(words[start])
	if first == conjunction || !isNumberWord(first) {
		return start, false
	}
	end = start + 1
	for end < len(words) {
		w := strings.ToLower(words[end])
		if w == conjunction {
			if end+1 < len(words) && isNumberWord(strings.ToLower(words[end+1])) && strings.ToLower(words[end+1]) != conjunction {
				end += 2
				continue
			}
			break
		}
		if isNumberWord(w) {
			end++
			continue
		}
		break
	}
	return end, true
}

// parseNumberRun evaluates a run of spoken-number tokens (as returned by
// extractNumberRun, conjunctions included) into its integer value using
// Icelandic long-form cardinal grammar: group values accumulate under
// "hundrað" and flush into the running total on "þúsund".
func parseNumberRun(tokens []string) (int, bool) {
	total := 0
	group := 0
	sawDigit := false
	for _, tok := range tokens {
		w := strings.ToLower(tok)
		switch {
		case w == conjunction:
			continue
		case thousandWords[w]:
			mult := group
			if mult == 0 {
				mult = 1
			}
			total += mult * 1000
			group = 0
			sawDigit = true
		case hundredWords[w]:
			mult := group
			if mult == 0 {
				mult = 1
			}
			group = mult * 100
			sawDigit = true
		case unitValues[w] != 0 || w == "núll":
			group += unitValues[w]
			sawDigit = true
		default:
			if v, ok := tensValues[w]; ok {
				group += v
				sawDigit = true
			}
		}
	}
	if !sawDigit {
		return 0, false
	}
	return total + group, true
}
