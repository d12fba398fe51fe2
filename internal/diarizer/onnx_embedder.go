//go:build onnx

package diarizer

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// ONNXEmbedder runs a trained x-vector-style embedding network via ONNX
// Runtime, replacing the kaldi::nnet3 computation in
// XvectorNnet::RunNnetComputation with the same chunk-in/vector-out
// contract ComputeEmbedding expects from an Embedder.
type ONNXEmbedder struct {
	session *ort.AdvancedSession

	inputTensor  *ort.Tensor[float32] // [1, maxChunkFrames, featDim]
	outputTensor *ort.Tensor[float32] // [1, embedDim]

	featDim       int
	embedDim      int
	maxChunkFrames int
}

// NewONNXEmbedder loads modelPath and allocates tensors sized to
// maxChunkFrames x featDim.
func NewONNXEmbedder(modelPath string, maxChunkFrames, featDim, embedDim int) (*ONNXEmbedder, error) {
	ortInitOnce.Do(func() {
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("diarizer: onnxruntime init: %w", ortInitErr)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(maxChunkFrames), int64(featDim)))
	if err != nil {
		return nil, fmt.Errorf("diarizer: alloc input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(embedDim)))
	if err != nil {
		return nil, fmt.Errorf("diarizer: alloc output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"},
		[]string{"output"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		return nil, fmt.Errorf("diarizer: create session: %w", err)
	}

	return &ONNXEmbedder{
		session:        session,
		inputTensor:    inputTensor,
		outputTensor:   outputTensor,
		featDim:        featDim,
		embedDim:       embedDim,
		maxChunkFrames: maxChunkFrames,
	}, nil
}

func (e *ONNXEmbedder) Dim() int { return e.embedDim }

func (e *ONNXEmbedder) Embed(chunk [][]float64) ([]float64, error) {
	if len(chunk) > e.maxChunkFrames {
		return nil, fmt.Errorf("diarizer: chunk of %d frames exceeds max %d", len(chunk), e.maxChunkFrames)
	}
	in := e.inputTensor.GetData()
	for i := range in {
		in[i] = 0
	}
	for t, row := range chunk {
		for d, v := range row {
			in[t*e.featDim+d] = float32(v)
		}
	}

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("diarizer: inference: %w", err)
	}

	out := e.outputTensor.GetData()
	result := make([]float64, e.embedDim)
	for i, v := range out {
		result[i] = float64(v)
	}
	return result, nil
}

func (e *ONNXEmbedder) Close() error {
	var errs []error
	if err := e.session.Destroy(); err != nil {
		errs = append(errs, err)
	}
	if err := e.inputTensor.Destroy(); err != nil {
		errs = append(errs, err)
	}
	if err := e.outputTensor.Destroy(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("diarizer: close onnx embedder: %v", errs)
	}
	return nil
}
