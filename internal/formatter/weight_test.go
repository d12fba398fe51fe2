package formatter

import "testing"

func TestMaxMinWeightIdentities(t *testing.T) {
	w := maxMinWeight(3)
	if got := w.Plus(maxMinZero()); got != w {
		t.Errorf("w.Plus(Zero()) = %v, want %v", got, w)
	}
	if got := w.Times(maxMinOne()); got != w {
		t.Errorf("w.Times(One()) = %v, want %v", got, w)
	}
}

func TestMaxMinWeightPlusIsMax(t *testing.T) {
	a, b := maxMinWeight(3), maxMinWeight(7)
	if got := a.Plus(b); got != 7 {
		t.Errorf("Plus(3, 7) = %v, want 7", got)
	}
}

func TestMaxMinWeightTimesIsMin(t *testing.T) {
	a, b := maxMinWeight(3), maxMinWeight(7)
	if got := a.Times(b); got != 3 {
		t.Errorf("Times(3, 7) = %v, want 3", got)
	}
}

func TestMinMaxWeightIdentities(t *testing.T) {
	w := minMaxWeight(3)
	if got := w.Plus(minMaxZero()); got != w {
		t.Errorf("w.Plus(Zero()) = %v, want %v", got, w)
	}
	if got := w.Times(minMaxOne()); got != w {
		t.Errorf("w.Times(One()) = %v, want %v", got, w)
	}
}

func TestMinMaxWeightPlusIsMin(t *testing.T) {
	a, b := minMaxWeight(3), minMaxWeight(7)
	if got := a.Plus(b); got != 3 {
		t.Errorf("Plus(3, 7) = %v, want 3", got)
	}
}

func TestMinMaxWeightTimesIsMax(t *testing.T) {
	a, b := minMaxWeight(3), minMaxWeight(7)
	if got := a.Times(b); got != 7 {
		t.Errorf("Times(3, 7) = %v, want 7", got)
	}
}

func TestTimingWeightIdentities(t *testing.T) {
	w := newTimingWeight(100, 250)
	if got := w.Plus(timingWeightZero()); got != w {
		t.Errorf("w.Plus(Zero()) = %+v, want %+v", got, w)
	}
	if got := w.Times(timingWeightOne()); got != w {
		t.Errorf("w.Times(One()) = %+v, want %+v", got, w)
	}
}

func TestTimingWeightPlusIsSpanIntersection(t *testing.T) {
	a := newTimingWeight(100, 300)
	b := newTimingWeight(200, 400)
	got := a.Plus(b)
	if got.StartMs() != 200 || got.EndMs() != 300 {
		t.Errorf("Plus({100,300},{200,400}) = {%d,%d}, want {200,300}", got.StartMs(), got.EndMs())
	}
}

func TestTimingWeightTimesIsSpanUnion(t *testing.T) {
	a := newTimingWeight(100, 300)
	b := newTimingWeight(200, 400)
	got := a.Times(b)
	if got.StartMs() != 100 || got.EndMs() != 400 {
		t.Errorf("Times({100,300},{200,400}) = {%d,%d}, want {100,400}", got.StartMs(), got.EndMs())
	}
}

func TestTimingWeightConcatenationGrowsSpan(t *testing.T) {
	// Concatenating two adjacent word arcs and collapsing to a single span
	// (as happens when multiple recognizer words rewrite to one output
	// token, e.g. "tuttugu og fimm" -> "25") takes the outer bounds: the
	// earliest start and the latest end, i.e. Times under this semiring's
	// definition (min start, max end).
	word1 := newTimingWeight(0, 300)
	word2 := newTimingWeight(300, 600)
	span := word1.Times(word2)
	if span.StartMs() != 0 || span.EndMs() != 600 {
		t.Errorf("concatenated span = {%d,%d}, want {0,600}", span.StartMs(), span.EndMs())
	}
}

func TestTimingWeightAssociative(t *testing.T) {
	a := newTimingWeight(0, 100)
	b := newTimingWeight(50, 150)
	c := newTimingWeight(100, 250)
	left := a.Times(b).Times(c)
	right := a.Times(b.Times(c))
	if left != right {
		t.Errorf("Times not associative: %+v != %+v", left, right)
	}
}
