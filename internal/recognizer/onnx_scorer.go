//go:build onnx

package recognizer

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	// onnxWindowSize is the number of float32 samples per inference call,
	// matching FrameSamples (10ms @ 16kHz).
	onnxWindowSize = FrameSamples
	// onnxStateSize is the hidden state dimension carried between frames,
	// the same shape convention the teacher's SileroEngine state tensor
	// uses, generalized from a VAD hidden state to a word-posterior head's
	// recurrent state.
	onnxStateSize = 128
	// onnxTopK bounds how many word candidates ScoreFrame returns per
	// frame, keeping the downstream beam search bounded.
	onnxTopK = 8
)

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// ONNXScorer runs a word-posterior acoustic model via ONNX Runtime. It
// mirrors the teacher's SileroEngine tensor/session lifecycle almost
// verbatim, adapted to a word-posterior output head instead of a single
// speech probability.
type ONNXScorer struct {
	session *ort.AdvancedSession

	inputTensor *ort.Tensor[float32] // [1, onnxWindowSize]
	stateTensor *ort.Tensor[float32] // [1, onnxStateSize]

	outputTensor *ort.Tensor[float32] // [1, vocabSize]
	stateNTensor *ort.Tensor[float32] // [1, onnxStateSize]

	vocab []string
	pcmBuf []float32
}

// NewONNXScorer loads modelPath and its word symbol table (one word per
// line, same convention as original_source/src/kaldi-model.h's
// word-syms-rxfilename) and allocates the input/output tensors.
func NewONNXScorer(modelPath string, vocab []string) (*ONNXScorer, error) {
	ortInitOnce.Do(func() {
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("recognizer: onnxruntime init: %w", ortInitErr)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, onnxWindowSize))
	if err != nil {
		return nil, fmt.Errorf("recognizer: alloc input tensor: %w", err)
	}
	stateTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, onnxStateSize))
	if err != nil {
		return nil, fmt.Errorf("recognizer: alloc state tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(vocab))))
	if err != nil {
		return nil, fmt.Errorf("recognizer: alloc output tensor: %w", err)
	}
	stateNTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, onnxStateSize))
	if err != nil {
		return nil, fmt.Errorf("recognizer: alloc state_n tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input", "state"},
		[]string{"output", "state_n"},
		[]ort.ArbitraryTensor{inputTensor, stateTensor},
		[]ort.ArbitraryTensor{outputTensor, stateNTensor},
		nil)
	if err != nil {
		return nil, fmt.Errorf("recognizer: create session: %w", err)
	}

	return &ONNXScorer{
		session:      session,
		inputTensor:  inputTensor,
		stateTensor:  stateTensor,
		outputTensor: outputTensor,
		stateNTensor: stateNTensor,
		vocab:        vocab,
	}, nil
}

func (s *ONNXScorer) ScoreFrame(pcm []int16) ([]WordPosterior, error) {
	if len(pcm) != onnxWindowSize {
		return nil, fmt.Errorf("recognizer: onnx scorer requires exactly %d samples, got %d", onnxWindowSize, len(pcm))
	}
	in := s.inputTensor.GetData()
	for i, v := range pcm {
		in[i] = float32(v) / 32768.0
	}

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("recognizer: inference: %w", err)
	}

	copy(s.stateTensor.GetData(), s.stateNTensor.GetData())

	out := s.outputTensor.GetData()
	posteriors := make([]WordPosterior, 0, len(out))
	for i, score := range out {
		if i >= len(s.vocab) {
			break
		}
		posteriors = append(posteriors, WordPosterior{Word: s.vocab[i], Score: score})
	}
	sortPosteriorsDesc(posteriors)
	if len(posteriors) > onnxTopK {
		posteriors = posteriors[:onnxTopK]
	}
	return posteriors, nil
}

func sortPosteriorsDesc(p []WordPosterior) {
	for i := 1; i < len(p); i++ {
		for j := i; j > 0 && p[j].Score > p[j-1].Score; j-- {
			p[j], p[j-1] = p[j-1], p[j]
		}
	}
}

func (s *ONNXScorer) Reset() error {
	data := s.stateTensor.GetData()
	for i := range data {
		data[i] = 0
	}
	return nil
}

func (s *ONNXScorer) Close() error {
	var errs []error
	if err := s.session.Destroy(); err != nil {
		errs = append(errs, err)
	}
	if err := s.inputTensor.Destroy(); err != nil {
		errs = append(errs, err)
	}
	if err := s.stateTensor.Destroy(); err != nil {
		errs = append(errs, err)
	}
	if err := s.outputTensor.Destroy(); err != nil {
		errs = append(errs, err)
	}
	if err := s.stateNTensor.Destroy(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("recognizer: close onnx scorer: %v", errs)
	}
	return nil
}
