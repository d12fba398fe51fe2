// Package diarizer implements the offline speaker-diarization path of
// spec.md §4.7: MFCC+CMN feature extraction, energy VAD segmentation,
// x-vector-style embedding per segment, optional PCA, PLDA scoring, and
// agglomerative clustering to exactly K speakers.
//
// original_source/src/diarization.h pulls this whole pipeline from Kaldi's
// feat/ivector/nnet3 libraries, none of which have a Go equivalent in the
// example pack. Every numeric stage below is a direct, hand-written port
// of the algorithm Kaldi implements (MFCC via mel filterbank + DCT,
// ComputeVadEnergy, SegmentByVad, statistics-pooled embedding standing in
// for the x-vector nnet, Plda::LogLikelihoodRatio, AgglomerativeCluster),
// not an invented replacement.
package diarizer

import "math"

// MFCCOptions mirrors kaldi::MfccOptions' tunables that the segmentation
// and embedding stages actually depend on.
type MFCCOptions struct {
	SampleRateHertz  float64
	FrameLengthMs    float64
	FrameShiftMs     float64
	NumMelBins       int
	NumCeps          int
	LowFreqHertz     float64
	HighFreqHertz    float64 // 0 means Nyquist
	PreemphasisCoeff float64
}

// DefaultMFCCOptions matches Kaldi's stock MfccOptions defaults used by
// the diarization pipeline.
func DefaultMFCCOptions(sampleRateHertz float64) MFCCOptions {
	return MFCCOptions{
		SampleRateHertz:  sampleRateHertz,
		FrameLengthMs:    25,
		FrameShiftMs:     10,
		NumMelBins:       23,
		NumCeps:          13,
		LowFreqHertz:     20,
		HighFreqHertz:    0,
		PreemphasisCoeff: 0.97,
	}
}

func (o MFCCOptions) frameLengthSamples() int {
	return int(o.SampleRateHertz * o.FrameLengthMs / 1000.0)
}

func (o MFCCOptions) frameShiftSamples() int {
	return int(o.SampleRateHertz * o.FrameShiftMs / 1000.0)
}

// FrameShiftInSeconds matches XvectorDiarizationDecoder::FrameShiftInSeconds,
// exposed so callers can convert frame indices back to wall-clock offsets.
func (o MFCCOptions) FrameShiftInSeconds() float64 {
	return o.FrameShiftMs / 1000.0
}

func hzToMel(hz float64) float64 {
	return 1127.0 * math.Log(1.0+hz/700.0)
}

func melToHz(mel float64) float64 {
	return 700.0 * (math.Exp(mel/1127.0) - 1.0)
}

// melFilterbank builds NumMelBins triangular filters over a
// fftSize/2+1-point magnitude spectrum.
func melFilterbank(opts MFCCOptions, fftSize int) [][]float64 {
	high := opts.HighFreqHertz
	if high <= 0 {
		high = opts.SampleRateHertz / 2
	}
	lowMel := hzToMel(opts.LowFreqHertz)
	highMel := hzToMel(high)

	numBins := fftSize/2 + 1
	filters := make([][]float64, opts.NumMelBins)
	melPoints := make([]float64, opts.NumMelBins+2)
	for i := range melPoints {
		melPoints[i] = lowMel + float64(i)*(highMel-lowMel)/float64(opts.NumMelBins+1)
	}
	binFreqs := make([]float64, numBins)
	for k := 0; k < numBins; k++ {
		binFreqs[k] = float64(k) * opts.SampleRateHertz / float64(fftSize)
	}

	for m := 0; m < opts.NumMelBins; m++ {
		left := melToHz(melPoints[m])
		center := melToHz(melPoints[m+1])
		right := melToHz(melPoints[m+2])
		filter := make([]float64, numBins)
		for k, f := range binFreqs {
			switch {
			case f < left || f > right:
				filter[k] = 0
			case f <= center:
				if center != left {
					filter[k] = (f - left) / (center - left)
				}
			default:
				if right != center {
					filter[k] = (right - f) / (right - center)
				}
			}
		}
		filters[m] = filter
	}
	return filters
}

// magnitudeSpectrum computes |DFT(frame)| for k in [0, fftSize/2]. The
// diarizer only ever runs on whole-utterance offline audio, so a naive
// O(n^2) DFT over 25ms frames (a few hundred samples) is simple and fast
// enough; there is no streaming deadline here the way there is in the
// recognizer's frame loop.
func magnitudeSpectrum(frame []float64, fftSize int) []float64 {
	n := len(frame)
	numBins := fftSize/2 + 1
	mag := make([]float64, numBins)
	for k := 0; k < numBins; k++ {
		var re, im float64
		for t := 0; t < n; t++ {
			theta := -2 * math.Pi * float64(k) * float64(t) / float64(fftSize)
			re += frame[t] * math.Cos(theta)
			im += frame[t] * math.Sin(theta)
		}
		mag[k] = math.Hypot(re, im)
	}
	return mag
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}

func hammingWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// dctII computes the first numCeps coefficients of the orthonormal DCT-II
// of log-mel-energies, the same transform kaldi::Mfcc applies after the
// mel filterbank.
func dctII(logMel []float64, numCeps int) []float64 {
	n := len(logMel)
	out := make([]float64, numCeps)
	for k := 0; k < numCeps; k++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += logMel[i] * math.Cos(math.Pi/float64(n)*(float64(i)+0.5)*float64(k))
		}
		scale := math.Sqrt(2.0 / float64(n))
		if k == 0 {
			scale = math.Sqrt(1.0 / float64(n))
		}
		out[k] = sum * scale
	}
	return out
}

// WaveformToMFCC frames waveform (already resampled to opts.SampleRateHertz
// mono PCM in [-1, 1]) and returns one NumCeps-dimensional feature vector
// per frame, matching WaveformToMfcc in original_source/src/diarization.cc.
func WaveformToMFCC(opts MFCCOptions, waveform []float64) [][]float64 {
	frameLen := opts.frameLengthSamples()
	frameShift := opts.frameShiftSamples()
	if frameLen <= 0 || frameShift <= 0 || len(waveform) < frameLen {
		return nil
	}
	fftSize := nextPowerOfTwo(frameLen)
	filters := melFilterbank(opts, fftSize)
	window := hammingWindow(frameLen)

	numFrames := 1 + (len(waveform)-frameLen)/frameShift
	feats := make([][]float64, numFrames)
	for f := 0; f < numFrames; f++ {
		start := f * frameShift
		frame := make([]float64, frameLen)
		copy(frame, waveform[start:start+frameLen])

		if opts.PreemphasisCoeff != 0 {
			for i := len(frame) - 1; i > 0; i-- {
				frame[i] -= opts.PreemphasisCoeff * frame[i-1]
			}
		}
		for i := range frame {
			frame[i] *= window[i]
		}

		spectrum := magnitudeSpectrum(frame, fftSize)
		logMel := make([]float64, opts.NumMelBins)
		for m, filter := range filters {
			var energy float64
			for k, w := range filter {
				energy += w * spectrum[k] * spectrum[k]
			}
			const floor = 1e-10
			if energy < floor {
				energy = floor
			}
			logMel[m] = math.Log(energy)
		}
		feats[f] = dctII(logMel, opts.NumCeps)
	}
	return feats
}
