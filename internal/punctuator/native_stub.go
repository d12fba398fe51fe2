//go:build !onnx

package punctuator

func nativeAvailable() bool { return false }

func newClassifier(_ string, _, clsTokenID, sepTokenID int) (Classifier, error) {
	return NewHeuristicClassifier(clsTokenID, sepTokenID), nil
}
