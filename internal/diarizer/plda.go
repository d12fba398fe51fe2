package diarizer

import "math"

// PldaConfig mirrors the kaldi::PldaConfig fields ScorePlda actually
// consults.
type PldaConfig struct {
	NormalizeLength bool
}

// DefaultPldaConfig matches Kaldi's stock PldaConfig defaults.
func DefaultPldaConfig() PldaConfig { return PldaConfig{NormalizeLength: true} }

// Plda is a two-covariance PLDA model in its diagonalized form: Mean is
// subtracted, Transform diagonalizes the within-class covariance to
// identity, and Psi is the between-class covariance diagonal in that
// transformed space. This mirrors the quantities kaldi::Plda loads from
// a trained model file (mean_, transform_, psi_).
type Plda struct {
	Mean      []float64
	Transform [][]float64
	Psi       []float64
}

// Dim is the transformed embedding dimension.
func (p *Plda) Dim() int { return len(p.Psi) }

// TransformIvector projects v into the diagonalized PLDA space:
// Transform * (v - Mean), the same operation Plda::TransformIvector
// performs before scoring.
func (p *Plda) TransformIvector(v []float64) []float64 {
	centered := make([]float64, len(v))
	for i := range v {
		centered[i] = v[i] - p.Mean[i]
	}
	return matVec(p.Transform, centered)
}

// LogLikelihoodRatio scores a single train/test ivector pair already
// projected into PLDA space, for the n=1 (single enrollment utterance)
// case the diarizer always uses: one xvector per segment. This follows
// kaldi::Plda::LogLikelihoodRatio's closed-form two-covariance scoring
// with n=1: the posterior mean of the speaker factor collapses to
// psi/(psi+1) * train, and both the "given same speaker" and "different
// speaker" Gaussian log-likelihoods are diagonal (each dimension
// independent in the transformed space).
func (p *Plda) LogLikelihoodRatio(train, test []float64) float64 {
	var llrSum float64
	for i, psi := range p.Psi {
		mean := psi / (psi + 1) * train[i]
		varGivenClass := psi/(psi+1) + 1
		varWithoutClass := psi + 1

		diff := test[i] - mean
		loglikeGiven := -0.5*math.Log(2*math.Pi*varGivenClass) - 0.5*diff*diff/varGivenClass
		loglikeWithout := -0.5*math.Log(2*math.Pi*varWithoutClass) - 0.5*test[i]*test[i]/varWithoutClass
		llrSum += loglikeGiven - loglikeWithout
	}
	return llrSum
}

// IvectorSubtractGlobalMean subtracts mean from every vector in place,
// the port of IvectorSubtractGlobalMean.
func IvectorSubtractGlobalMean(mean []float64, vectors [][]float64) {
	for _, v := range vectors {
		for i := range v {
			v[i] -= mean[i]
		}
	}
}

// IvectorNormalizeLength scales each vector so its norm matches the
// expectation sqrt(dim) under an isotropic Gaussian assumption
// (scaleUp), or to unit norm otherwise, matching
// IvectorNormalizeLength's two modes.
func IvectorNormalizeLength(vectors [][]float64, scaleUp bool) {
	for _, v := range vectors {
		norm := vecNorm(v)
		ratio := norm
		if scaleUp {
			ratio = norm / math.Sqrt(float64(len(v)))
		}
		if ratio == 0 {
			continue
		}
		for i := range v {
			v[i] /= ratio
		}
	}
}

// ApplyWhitening multiplies each centered vector by a whitening matrix
// (rows = output dim, cols = input dim), the Go equivalent of
// TransformVec applied to every row of the ivector matrix.
func ApplyWhitening(whiteningMatrix [][]float64, centeringVector []float64, vectors [][]float64) [][]float64 {
	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		centered := make([]float64, len(v))
		for d := range v {
			centered[d] = v[d] - centeringVector[d]
		}
		out[i] = matVec(whiteningMatrix, centered)
	}
	return out
}

// ApplyPCA projects each row through pcaTransform (rows = retained
// components, cols = input dim), the Go equivalent of ApplyPca.
func ApplyPCA(pcaTransform [][]float64, vectors [][]float64) [][]float64 {
	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		out[i] = matVec(pcaTransform, v)
	}
	return out
}

// ScorePlda computes a pairwise PLDA log-likelihood-ratio matrix over
// ivectors, applying whitening, optional conversation-dependent PCA,
// length normalization, and PLDA projection first — the full pipeline
// ComputeXvectorDiarization drives through ScorePlda.
func ScorePlda(cfg PldaConfig, plda *Plda, whiteningMatrix [][]float64, centeringVector []float64, ivectors [][]float64, targetEnergy float64) [][]float64 {
	whitened := ApplyWhitening(whiteningMatrix, centeringVector, ivectors)

	if pcaTransform, ok := EstPCA(whitened, targetEnergy); ok {
		whitened = ApplyPCA(pcaTransform, whitened)
	}

	if cfg.NormalizeLength {
		IvectorNormalizeLength(whitened, true)
	}

	transformed := make([][]float64, len(whitened))
	for i, v := range whitened {
		transformed[i] = plda.TransformIvector(v)
	}

	n := len(transformed)
	scores := make([][]float64, n)
	for i := range scores {
		scores[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			scores[i][j] = plda.LogLikelihoodRatio(transformed[i], transformed[j])
		}
	}
	return scores
}
