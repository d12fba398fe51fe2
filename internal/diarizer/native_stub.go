//go:build !onnx

package diarizer

func nativeAvailable() bool { return false }

func newEmbedder(_ string, _, featDim, _ int) (Embedder, error) {
	return NewStatsPoolingEmbedder(featDim), nil
}
