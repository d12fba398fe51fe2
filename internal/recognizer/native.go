package recognizer

// NativeAvailable reports whether the onnx-backed AcousticScorer was
// compiled in (build tag "onnx"), mirroring the teacher's
// engine.NativeAvailable split.
func NativeAvailable() bool { return nativeAvailable() }

// NewScorer builds an AcousticScorer for modelPath/vocab when compiled
// with -tags onnx, or the deterministic stub otherwise.
func NewScorer(modelPath string, vocab []string) (AcousticScorer, error) {
	return newScorer(modelPath, vocab)
}
