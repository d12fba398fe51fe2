package vad

import (
	"encoding/binary"
	"fmt"

	"github.com/tiro-is/tiro-speech-go/internal/engine"
)

// SileroGate adapts internal/engine's stateful frame-at-a-time Engine
// (the teacher's Silero ONNX VAD, or its stub when built without the
// silero tag) to the Gate interface: engine.Engine keeps RNN state across
// calls, so SileroGate feeds it one NumSamplesPerFrame-sized slice at a
// time and ORs the per-frame speech decisions together.
type SileroGate struct {
	eng             engine.Engine
	sampleRate      int
	frameLenSamples int
}

// NewSileroGate wraps eng as a Gate for the given sample rate and frame
// length, the same frame/decision contract EnergyZCRGate exposes.
func NewSileroGate(eng engine.Engine, sampleRate, frameLenMs int) (*SileroGate, error) {
	if !validSampleRates[sampleRate] {
		return nil, fmt.Errorf("vad: invalid sample rate %d", sampleRate)
	}
	if !validFrameLenMs[frameLenMs] {
		return nil, fmt.Errorf("vad: invalid frame length %dms", frameLenMs)
	}
	return &SileroGate{
		eng:             eng,
		sampleRate:      sampleRate,
		frameLenSamples: frameLenMs * sampleRate / 1000,
	}, nil
}

func (g *SileroGate) NumSamplesPerFrame() int { return g.frameLenSamples }

// HasSpeech feeds pcm to the wrapped engine frame-by-frame and reports
// whether any frame was classified as speech. A read error from the
// engine is treated as silence for that frame rather than aborting the
// whole chunk, so a single bad frame doesn't drop an entire utterance.
func (g *SileroGate) HasSpeech(pcm []int16) bool {
	if len(pcm) < g.frameLenSamples {
		return true
	}
	for _, voiced := range g.DetectSpeech(pcm) {
		if voiced {
			return true
		}
	}
	return false
}

// DetectSpeech returns a per-frame voiced/unvoiced decision.
func (g *SileroGate) DetectSpeech(pcm []int16) []bool {
	nFrames := len(pcm) / g.frameLenSamples
	decisions := make([]bool, nFrames)
	buf := make([]byte, g.frameLenSamples*2)
	for i := 0; i < nFrames; i++ {
		frame := pcm[i*g.frameLenSamples : (i+1)*g.frameLenSamples]
		for j, s := range frame {
			binary.LittleEndian.PutUint16(buf[2*j:2*j+2], uint16(s))
		}
		result, err := g.eng.ProcessChunk(buf, uint32(g.sampleRate))
		decisions[i] = err == nil && result.IsSpeech
	}
	return decisions
}

// Reset clears the wrapped engine's internal RNN state between sessions.
func (g *SileroGate) Reset() error {
	return g.eng.Reset()
}

// Close releases the wrapped engine's resources.
func (g *SileroGate) Close() error {
	return g.eng.Close()
}

// defaultSileroThreshold is the speech-probability cutoff above which the
// Silero engine's per-frame confidence counts as voiced.
const defaultSileroThreshold = 0.5

// Auto builds the best available Gate for sampleRate/frameLenMs: the
// Silero ONNX engine when compiled in (build tag "silero"), falling back
// to EnergyZCRGate otherwise. Close should be called on the returned Gate
// if it implements io.Closer (SileroGate does; EnergyZCRGate is stateless
// and doesn't need to be closed).
func Auto(sampleRate, frameLenMs int) (Gate, error) {
	if engine.NativeAvailable() {
		eng, err := engine.NewNativeEngine(defaultSileroThreshold)
		if err == nil {
			gate, err := NewSileroGate(eng, sampleRate, frameLenMs)
			if err == nil {
				return gate, nil
			}
			eng.Close()
		}
	}
	return New(sampleRate, frameLenMs)
}

