package diarizer

// NativeAvailable reports whether the onnx-backed Embedder was compiled
// in (build tag "onnx"), mirroring internal/recognizer.NativeAvailable.
func NativeAvailable() bool { return nativeAvailable() }

// NewEmbedder builds an Embedder for modelPath when compiled with -tags
// onnx, or the deterministic StatsPoolingEmbedder otherwise.
func NewEmbedder(modelPath string, maxChunkFrames, featDim, embedDim int) (Embedder, error) {
	return newEmbedder(modelPath, maxChunkFrames, featDim, embedDim)
}
