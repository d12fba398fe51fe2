package diarizer

import "testing"

func identityMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1
	}
	return m
}

func TestPldaLogLikelihoodRatioHigherForSameSpeaker(t *testing.T) {
	plda := &Plda{
		Mean:      []float64{0, 0},
		Transform: identityMatrix(2),
		Psi:       []float64{5, 5},
	}
	same := plda.LogLikelihoodRatio([]float64{1, 1}, []float64{1, 1})
	different := plda.LogLikelihoodRatio([]float64{1, 1}, []float64{-5, 5})
	if same <= different {
		t.Errorf("LLR(same) = %v, want > LLR(different) = %v", same, different)
	}
}

func TestPldaTransformIvectorSubtractsMean(t *testing.T) {
	plda := &Plda{
		Mean:      []float64{1, 2},
		Transform: identityMatrix(2),
		Psi:       []float64{1, 1},
	}
	got := plda.TransformIvector([]float64{1, 2})
	if got[0] != 0 || got[1] != 0 {
		t.Errorf("TransformIvector(mean) = %v, want [0 0]", got)
	}
}

func TestIvectorNormalizeLengthScalesToExpectedNorm(t *testing.T) {
	vectors := [][]float64{{3, 4}} // norm 5
	IvectorNormalizeLength(vectors, true)
	got := vecNorm(vectors[0])
	want := vecNorm([]float64{1, 1}) // sqrt(2), the expected norm for dim=2
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("normalized norm = %v, want %v", got, want)
	}
}

func TestScorePldaProducesSymmetricMatrix(t *testing.T) {
	plda := &Plda{
		Mean:      []float64{0, 0},
		Transform: identityMatrix(2),
		Psi:       []float64{3, 3},
	}
	vectors := [][]float64{{1, 1}, {1, 1}, {-1, -1}}
	scores := ScorePlda(DefaultPldaConfig(), plda, identityMatrix(2), []float64{0, 0}, vectors, 1.0)
	if len(scores) != 3 || len(scores[0]) != 3 {
		t.Fatalf("unexpected score matrix shape: %v", scores)
	}
	if scores[0][1] <= scores[0][2] {
		t.Errorf("similar vectors should score higher than dissimilar: %v", scores)
	}
}
