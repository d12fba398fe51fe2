//go:build onnx

package recognizer

func nativeAvailable() bool { return true }

func newScorer(modelPath string, vocab []string) (AcousticScorer, error) {
	return NewONNXScorer(modelPath, vocab)
}
