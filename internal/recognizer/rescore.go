package recognizer

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ConstARPALM is a back-off n-gram language model loaded from an
// ARPA-format file, standing in for Kaldi's ConstArpaLm that
// original_source/src/recognizer.cc's RescoreLattice composes onto the
// lattice before n-best extraction. Grounded on the const-arpa-rxfilename
// convention internal/registry already resolves from main.conf.
type ConstARPALM struct {
	order    int
	probs    map[string]float64
	backoffs map[string]float64
}

// LoadConstARPALM parses path as an ARPA language model file.
func LoadConstARPALM(path string) (*ConstARPALM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("recognizer: open const-arpa lm: %w", err)
	}
	defer f.Close()

	lm := &ConstARPALM{probs: make(map[string]float64), backoffs: make(map[string]float64)}
	order := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "\\end\\" || line == "\\data\\" {
			continue
		}
		if strings.HasPrefix(line, "\\") && strings.HasSuffix(line, "-grams:") {
			n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(line, "\\"), "-grams:"))
			if err == nil {
				order = n
				if order > lm.order {
					lm.order = order
				}
			}
			continue
		}
		if order == 0 || strings.HasPrefix(line, "ngram ") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 1+order {
			continue
		}
		logProb, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			continue
		}
		gram := strings.Join(fields[1:1+order], " ")
		lm.probs[gram] = logProb
		if len(fields) > 1+order {
			if backoff, err := strconv.ParseFloat(fields[len(fields)-1], 64); err == nil {
				lm.backoffs[gram] = backoff
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("recognizer: read const-arpa lm: %w", err)
	}
	return lm, nil
}

// score returns words[len(words)-1]'s log10 probability given the
// preceding words as context, backing off to shorter contexts (and
// accumulating the back-off weights of the contexts skipped over) the
// way an ARPA model's back-off arcs do.
func (lm *ConstARPALM) score(context []string) float64 {
	maxOrder := lm.order
	if maxOrder > len(context) {
		maxOrder = len(context)
	}
	var backoff float64
	for n := maxOrder; n >= 1; n-- {
		gram := strings.Join(context[len(context)-n:], " ")
		if p, ok := lm.probs[gram]; ok {
			return p + backoff
		}
		if n > 1 {
			backoff += lm.backoffs[strings.Join(context[len(context)-n:len(context)-1], " ")]
		}
	}
	return -99 + backoff // unseen unigram, a fixed out-of-vocabulary penalty
}

// Score returns the LM's total log10 probability for the word sequence,
// summing each word's conditional probability given its preceding
// context.
func (lm *ConstARPALM) Score(words []string) float64 {
	if lm == nil || len(words) == 0 {
		return 0
	}
	var total float64
	for i := range words {
		total += lm.score(words[:i+1])
	}
	return total
}

// rescore re-weights beam with the attached rescoring LM, composing it
// onto each hypothesis' acoustic score the way RescoreLattice composes
// const_arpa_fst onto the lattice, and re-sorts by the combined score.
// lmWeight mirrors the scale Kaldi applies to LM scores relative to
// acoustic ones.
func rescore(beam []hypothesis, lm *ConstARPALM, lmWeight float32) []hypothesis {
	if lm == nil || len(beam) == 0 {
		return beam
	}
	rescored := make([]hypothesis, len(beam))
	for i, h := range beam {
		nh := h.clone()
		nh.score += lmWeight * float32(lm.Score(h.words))
		rescored[i] = nh
	}
	sortHypothesesDesc(rescored)
	return rescored
}
