//go:build !onnx

package recognizer

func nativeAvailable() bool { return false }

func newScorer(_ string, _ []string) (AcousticScorer, error) {
	return NewStubScorer(), nil
}
