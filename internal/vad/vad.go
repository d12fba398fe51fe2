// Package vad implements the VAD gate: a frame-level speech/non-speech
// classifier used to throttle the recognizer and drive endpoint timing.
package vad

import (
	"fmt"
	"math"
)

// validSampleRates mirrors the sample rates original_source/src/vad.cc
// accepted from its WebRTC VAD wrapper.
var validSampleRates = map[int]bool{8000: true, 16000: true, 32000: true, 48000: true}

// validFrameLenMs mirrors the frame lengths WebRtcVad_ValidRateAndFrameLength
// accepts.
var validFrameLenMs = map[int]bool{10: true, 20: true, 30: true}

// Gate classifies a chunk of PCM samples as containing speech or not. No
// pack repo ships a WebRTC VAD binding, so this is a hand-rolled
// energy + zero-crossing-rate detector built against the same
// frame/decision contract original_source/src/vad.cc's Vad::HasSpeech
// exposes.
type Gate interface {
	// HasSpeech reports whether pcm contains at least one voiced frame.
	// A chunk shorter than one frame is classified as speech, the same
	// quirk Vad::HasSpeech has (a TODO in the original notes this should
	// probably live in the audio source instead).
	HasSpeech(pcm []int16) bool
	// NumSamplesPerFrame is the frame size HasSpeech classifies at.
	NumSamplesPerFrame() int
}

// EnergyZCRGate is the default Gate implementation.
type EnergyZCRGate struct {
	sampleRate        int
	frameLenSamples   int
	energyThreshold   float64
	zcrMaxFraction    float64
}

// Option configures an EnergyZCRGate beyond its required constructor args.
type Option func(*EnergyZCRGate)

// WithEnergyThreshold overrides the default RMS energy threshold (in
// int16 units) above which a frame is considered voiced.
func WithEnergyThreshold(threshold float64) Option {
	return func(g *EnergyZCRGate) { g.energyThreshold = threshold }
}

// WithZCRMaxFraction overrides the maximum zero-crossing-rate fraction
// (crossings per sample) a voiced frame may have; frames above this are
// treated as noise/fricative-only and rejected even if energetic.
func WithZCRMaxFraction(fraction float64) Option {
	return func(g *EnergyZCRGate) { g.zcrMaxFraction = fraction }
}

const (
	defaultEnergyThreshold = 400.0
	defaultZCRMaxFraction  = 0.5
)

// New constructs a Gate for the given sample rate (8000, 16000, 32000 or
// 48000 Hz) and frame length (10, 20 or 30 ms), mirroring
// original_source/src/vad.cc's Vad constructor validation.
func New(sampleRate, frameLenMs int, opts ...Option) (*EnergyZCRGate, error) {
	if !validSampleRates[sampleRate] {
		return nil, fmt.Errorf("vad: invalid sample rate %d", sampleRate)
	}
	if !validFrameLenMs[frameLenMs] {
		return nil, fmt.Errorf("vad: invalid frame length %dms", frameLenMs)
	}
	g := &EnergyZCRGate{
		sampleRate:      sampleRate,
		frameLenSamples: frameLenMs * sampleRate / 1000,
		energyThreshold: defaultEnergyThreshold,
		zcrMaxFraction:  defaultZCRMaxFraction,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *EnergyZCRGate) NumSamplesPerFrame() int { return g.frameLenSamples }

// HasSpeech classifies pcm frame-by-frame and returns true if any frame
// is voiced.
func (g *EnergyZCRGate) HasSpeech(pcm []int16) bool {
	if len(pcm) < g.frameLenSamples {
		return true
	}
	decisions := g.DetectSpeech(pcm)
	for _, voiced := range decisions {
		if voiced {
			return true
		}
	}
	return false
}

// DetectSpeech returns a per-frame voiced/unvoiced decision, mirroring
// Vad::DetectSpeech.
func (g *EnergyZCRGate) DetectSpeech(pcm []int16) []bool {
	nFrames := len(pcm) / g.frameLenSamples
	decisions := make([]bool, nFrames)
	for i := 0; i < nFrames; i++ {
		frame := pcm[i*g.frameLenSamples : (i+1)*g.frameLenSamples]
		decisions[i] = g.classifyFrame(frame)
	}
	return decisions
}

func (g *EnergyZCRGate) classifyFrame(frame []int16) bool {
	if len(frame) == 0 {
		return false
	}
	var sumSquares float64
	var crossings int
	for i, s := range frame {
		sumSquares += float64(s) * float64(s)
		if i > 0 && ((frame[i-1] >= 0) != (s >= 0)) {
			crossings++
		}
	}
	rms := math.Sqrt(sumSquares / float64(len(frame)))
	zcrFraction := float64(crossings) / float64(len(frame))
	return rms >= g.energyThreshold && zcrFraction <= g.zcrMaxFraction
}
