package punctuator

// NativeAvailable reports whether the onnx-backed Classifier was compiled
// in (build tag "onnx"), mirroring internal/recognizer.NativeAvailable.
func NativeAvailable() bool { return nativeAvailable() }

// NewClassifier builds a Classifier for modelPath when compiled with
// -tags onnx, or the deterministic HeuristicClassifier otherwise.
func NewClassifier(modelPath string, maxSeqLen, clsTokenID, sepTokenID int) (Classifier, error) {
	return newClassifier(modelPath, maxSeqLen, clsTokenID, sepTokenID)
}
