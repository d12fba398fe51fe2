package diarizer

import "math"

// VADEnergyOptions mirrors kaldi::VadEnergyOptions: a frame is voiced if
// at least ProportionThresh of the frames within ±FrameContext of it have
// log-energy above EnergyThreshold + EnergyMeanScale × (mean log-energy of
// the whole utterance).
type VADEnergyOptions struct {
	EnergyThreshold  float64
	EnergyMeanScale  float64
	FrameContext     int
	ProportionThresh float64
}

// DefaultVADEnergyOptions matches Kaldi's stock VadEnergyOptions.
func DefaultVADEnergyOptions() VADEnergyOptions {
	return VADEnergyOptions{
		EnergyThreshold:  5.0,
		EnergyMeanScale:  0.5,
		FrameContext:     0,
		ProportionThresh: 0.6,
	}
}

// ComputeVADEnergy returns a 0/1 decision per MFCC-frame feature vector,
// whose column 0 is assumed to be log-energy (the convention
// kaldi::ComputeVadEnergy relies on: Mfcc's c0 term). It ports
// ComputeVadEnergy's context-window-averaged threshold test.
func ComputeVADEnergy(opts VADEnergyOptions, feats [][]float64) []float64 {
	n := len(feats)
	voiced := make([]float64, n)
	if n == 0 {
		return voiced
	}

	var sum float64
	for _, row := range feats {
		sum += row[0]
	}
	meanEnergy := sum / float64(n)
	threshold := opts.EnergyThreshold + opts.EnergyMeanScale*meanEnergy

	for t := 0; t < n; t++ {
		lo := t - opts.FrameContext
		hi := t + opts.FrameContext + 1
		if lo < 0 {
			lo = 0
		}
		if hi > n {
			hi = n
		}
		count := 0
		for i := lo; i < hi; i++ {
			if feats[i][0] > threshold {
				count++
			}
		}
		if float64(count)/float64(hi-lo) >= opts.ProportionThresh {
			voiced[t] = 1
		}
	}
	return voiced
}

// LogEnergy computes log total squared energy for a single time-domain
// frame, used to seed column 0 when the caller's feature extractor
// doesn't already carry a C0/log-energy term.
func LogEnergy(frame []float64) float64 {
	var sum float64
	for _, v := range frame {
		sum += v * v
	}
	const floor = 1e-10
	if sum < floor {
		sum = floor
	}
	return math.Log(sum)
}
