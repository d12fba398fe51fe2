//go:build onnx

package punctuator

func nativeAvailable() bool { return true }

func newClassifier(modelPath string, maxSeqLen, _, _ int) (Classifier, error) {
	return NewONNXClassifier(modelPath, maxSeqLen)
}
