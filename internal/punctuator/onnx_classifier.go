//go:build onnx

package punctuator

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const numLabels = 4 // O, COMMA, PERIOD, QUESTIONMARK

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// ONNXClassifier runs a trained token-classification model (an ELECTRA-style
// punctuation restorer in the original) via ONNX Runtime, mirroring the
// tensor lifecycle in internal/recognizer's ONNXScorer: one input tensor
// sized to the current sequence length, one logits output tensor, argmax
// taken per position.
type ONNXClassifier struct {
	session *ort.AdvancedSession

	inputTensor  *ort.Tensor[int32]   // [1, seqLen]
	outputTensor *ort.Tensor[float32] // [1, seqLen, numLabels]

	maxSeqLen int
}

// NewONNXClassifier loads modelPath, allocating tensors sized to
// maxSeqLen (the longest input sequence the caller will ever submit,
// including the CLS/SEP markers).
func NewONNXClassifier(modelPath string, maxSeqLen int) (*ONNXClassifier, error) {
	ortInitOnce.Do(func() {
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("punctuator: onnxruntime init: %w", ortInitErr)
	}

	inputTensor, err := ort.NewEmptyTensor[int32](ort.NewShape(1, int64(maxSeqLen)))
	if err != nil {
		return nil, fmt.Errorf("punctuator: alloc input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(maxSeqLen), numLabels))
	if err != nil {
		return nil, fmt.Errorf("punctuator: alloc output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input_ids"},
		[]string{"logits"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		return nil, fmt.Errorf("punctuator: create session: %w", err)
	}

	return &ONNXClassifier{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		maxSeqLen:    maxSeqLen,
	}, nil
}

// Classify runs the model over inputIDs (CLS/SEP inclusive) and returns
// the argmax label id per position.
func (c *ONNXClassifier) Classify(inputIDs []int) ([]int, error) {
	if len(inputIDs) > c.maxSeqLen {
		return nil, fmt.Errorf("punctuator: sequence length %d exceeds max %d", len(inputIDs), c.maxSeqLen)
	}

	in := c.inputTensor.GetData()
	for i := range in {
		in[i] = 0
	}
	for i, id := range inputIDs {
		in[i] = int32(id)
	}

	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("punctuator: inference: %w", err)
	}

	out := c.outputTensor.GetData()
	labels := make([]int, len(inputIDs))
	for pos := range inputIDs {
		base := pos * numLabels
		best, bestScore := 0, out[base]
		for lbl := 1; lbl < numLabels; lbl++ {
			if out[base+lbl] > bestScore {
				best, bestScore = lbl, out[base+lbl]
			}
		}
		labels[pos] = best
	}
	return labels, nil
}

// Close releases the session and tensors.
func (c *ONNXClassifier) Close() error {
	var errs []error
	if err := c.session.Destroy(); err != nil {
		errs = append(errs, err)
	}
	if err := c.inputTensor.Destroy(); err != nil {
		errs = append(errs, err)
	}
	if err := c.outputTensor.Destroy(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("punctuator: close onnx classifier: %v", errs)
	}
	return nil
}
