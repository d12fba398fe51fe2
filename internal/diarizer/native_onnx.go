//go:build onnx

package diarizer

func nativeAvailable() bool { return true }

func newEmbedder(modelPath string, maxChunkFrames, featDim, embedDim int) (Embedder, error) {
	return NewONNXEmbedder(modelPath, maxChunkFrames, featDim, embedDim)
}
