package diarizer

// SlidingWindowCMN applies mean-only cepstral normalization over a window
// of windowFrames centred on each frame and clipped at the utterance
// edges (kaldi::SlidingWindowCmn with center =
// true, normalize_variance = false, matching the decoder's cmn_opts
// defaults for diarization).
func SlidingWindowCMN(feats [][]float64, windowFrames int) [][]float64 {
	if len(feats) == 0 {
		return feats
	}
	dim := len(feats[0])
	out := make([][]float64, len(feats))
	half := windowFrames / 2

	for t := range feats {
		lo := t - half
		hi := t + (windowFrames - half)
		if lo < 0 {
			lo = 0
		}
		if hi > len(feats) {
			hi = len(feats)
		}
		mean := make([]float64, dim)
		for i := lo; i < hi; i++ {
			for d := 0; d < dim; d++ {
				mean[d] += feats[i][d]
			}
		}
		n := float64(hi - lo)
		row := make([]float64, dim)
		for d := 0; d < dim; d++ {
			row[d] = feats[t][d] - mean[d]/n
		}
		out[t] = row
	}
	return out
}
