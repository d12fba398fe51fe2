package diarizer

import "fmt"

// DiarizationSegment is one labelled span of the input waveform, the Go
// form of original_source/src/diarization.h's DiarizationSegment.
type DiarizationSegment struct {
	SpeakerID  int
	StartFrame int
	EndFrame   int
}

// Options bundles the tunables ComputeXvectorDiarization and its callers
// (XvectorDiarizationDecoderOptions) expose.
type Options struct {
	MFCC            MFCCOptions
	CMNWindowFrames int
	VAD             VADEnergyOptions
	Xvector         XvectorOptions
	Plda            PldaConfig
	TargetEnergy    float64 // PCA retained-variance fraction, 0.9 default
	MaxSpkFraction  float64 // cap on any single cluster's share of segments, 1.0 = no cap
}

// DefaultOptions matches XvectorDiarizationDecoderOptions' constructor
// (cmn_window=300, center=true, normalize_variance=false) plus the
// plda-scoring-utils.cc ScorePlda default target_energy of 0.9 and an
// uncapped max_spk_fraction.
func DefaultOptions(sampleRateHertz float64) Options {
	return Options{
		MFCC:            DefaultMFCCOptions(sampleRateHertz),
		CMNWindowFrames: 300,
		VAD:             DefaultVADEnergyOptions(),
		Xvector:         DefaultXvectorOptions(),
		Plda:            DefaultPldaConfig(),
		TargetEnergy:    0.9,
		MaxSpkFraction:  1.0,
	}
}

// Model bundles the trained artifacts ComputeXvectorDiarization needs
// beyond the raw waveform: the embedder and the PLDA model plus its
// whitening/centering vectors.
type Model struct {
	Embedder        Embedder
	Plda            *Plda
	WhiteningMatrix [][]float64
	CenteringVector []float64
}

// Diarize runs the full offline pipeline from spec.md §4.7 over a mono
// waveform already resampled to opts.MFCC.SampleRateHertz, in [-1, 1]
// samples: MFCC+CMN, energy VAD, SegmentByVad, per-segment embedding,
// PLDA scoring, and agglomerative clustering to exactly numSpeakers
// speakers.
func Diarize(model Model, opts Options, waveform []float64, numSpeakers int) ([]DiarizationSegment, error) {
	if numSpeakers < 1 {
		return nil, fmt.Errorf("diarizer: numSpeakers must be >= 1, got %d", numSpeakers)
	}

	feats := WaveformToMFCC(opts.MFCC, waveform)
	if len(feats) == 0 {
		return nil, fmt.Errorf("diarizer: waveform too short to extract any MFCC frames")
	}

	voiced := ComputeVADEnergy(opts.VAD, feats)
	cmvnFeats := SlidingWindowCMN(feats, opts.CMNWindowFrames)

	segments := SegmentByVad(voiced, 0.2)
	if len(segments) == 0 {
		return nil, fmt.Errorf("diarizer: no voiced segments found")
	}

	if len(segments) == 1 {
		return []DiarizationSegment{{SpeakerID: 1, StartFrame: segments[0].Start, EndFrame: segments[0].End}}, nil
	}

	embeddings := make([][]float64, len(segments))
	for i, seg := range segments {
		emb, err := ComputeEmbedding(model.Embedder, opts.Xvector, cmvnFeats[seg.Start:seg.End])
		if err != nil {
			return nil, fmt.Errorf("diarizer: embed segment %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	scores := ScorePlda(opts.Plda, model.Plda, model.WhiteningMatrix, model.CenteringVector, embeddings, opts.TargetEnergy)

	dist := make([][]float64, len(scores))
	for i, row := range scores {
		dist[i] = make([]float64, len(row))
		for j, s := range row {
			dist[i][j] = -s
		}
	}

	maxSpkFraction := opts.MaxSpkFraction
	if !(1.0/float64(numSpeakers) <= maxSpkFraction && maxSpkFraction <= 1.0) {
		maxSpkFraction = 1.0
	}
	labels := AgglomerativeCluster(dist, numSpeakers, maxSpkFraction)

	out := make([]DiarizationSegment, len(segments))
	for i, seg := range segments {
		out[i] = DiarizationSegment{SpeakerID: labels[i], StartFrame: seg.Start, EndFrame: seg.End}
	}
	return out, nil
}
