// Package formatter turns a sequence of recognizer word alignments into
// written-form text, rewriting spoken constructs (numbers, currency,
// abbreviations, ordinals; dates are not rewritten) while tracking the timing span each rewritten token covers.
//
// The timing itself is carried through the rewrite as a product semiring of
// two (max,min)/(min,max) weights, following
// original_source/src/itn/timing-weight.h and maxmin-weight.h: the start of
// a span is the max over constituent starts combined by min under
// concatenation, and the end is the dual. There is no general WFST
// composition here (no pack repository ships an FST library); the rewrite
// itself is a left-to-right token rewrite table applied over the timing
// chain, with Plus/Times on the weights used only to collapse adjacent
// spans when tokens merge.
package formatter

import "math"

// maxMinWeight is W_s from timing-weight.h: Plus = max, Times = min.
// Zero() is -inf (the additive identity; max(x, -inf) = x), One() is +inf
// (the multiplicative identity; min(x, +inf) = x).
type maxMinWeight float64

func maxMinZero() maxMinWeight { return maxMinWeight(math.Inf(-1)) }
func maxMinOne() maxMinWeight  { return maxMinWeight(math.Inf(1)) }

func (w maxMinWeight) Plus(other maxMinWeight) maxMinWeight {
	if w > other {
		return w
	}
	return other
}

func (w maxMinWeight) Times(other maxMinWeight) maxMinWeight {
	if w <= other {
		return w
	}
	return other
}

// minMaxWeight is W_e, the dual of maxMinWeight: Plus = min, Times = max.
// Zero() is +inf, One() is -inf.
type minMaxWeight float64

func minMaxZero() minMaxWeight { return minMaxWeight(math.Inf(1)) }
func minMaxOne() minMaxWeight  { return minMaxWeight(math.Inf(-1)) }

func (w minMaxWeight) Plus(other minMaxWeight) minMaxWeight {
	if w < other {
		return w
	}
	return other
}

func (w minMaxWeight) Times(other minMaxWeight) minMaxWeight {
	if w >= other {
		return w
	}
	return other
}

// timingWeight is fst::ProductWeight<MaxMinWeight, MinMaxWeight>: a pair
// (start, end) in milliseconds. Plus narrows two spans to their
// intersection (max start, min end); Times widens to the covering span
// (min start, max end), which is the "span of concatenation" rule. Zero and
// One are the pairwise Zero/One of the two components.
type timingWeight struct {
	start maxMinWeight
	end   minMaxWeight
}

func timingWeightZero() timingWeight {
	return timingWeight{start: maxMinZero(), end: minMaxZero()}
}

func timingWeightOne() timingWeight {
	return timingWeight{start: maxMinOne(), end: minMaxOne()}
}

func newTimingWeight(startMs, endMs int64) timingWeight {
	return timingWeight{start: maxMinWeight(startMs), end: minMaxWeight(endMs)}
}

func (w timingWeight) Plus(other timingWeight) timingWeight {
	return timingWeight{start: w.start.Plus(other.start), end: w.end.Plus(other.end)}
}

func (w timingWeight) Times(other timingWeight) timingWeight {
	return timingWeight{start: w.start.Times(other.start), end: w.end.Times(other.end)}
}

func (w timingWeight) isOne() bool {
	return w == timingWeightOne()
}

// StartMs and EndMs expose the span in milliseconds once a chain of arcs has
// been collapsed down to a single weight representing one output token.
func (w timingWeight) StartMs() int64 { return int64(w.start) }
func (w timingWeight) EndMs() int64   { return int64(w.end) }
