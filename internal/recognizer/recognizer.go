package recognizer

import (
	"fmt"
	"math"
	"strings"
)

// AlignedWord is a single word with its position on the global output
// timeline, mirroring original_source/src/recognizer.h's AlignedWord.
type AlignedWord struct {
	StartTimeMs int64
	DurationMs  int64
	Symbol      string
}

// AdaptationState is the opaque per-speaker state a Recognizer carries
// across segments/calls, the Go analogue of
// KaldiModel::AdaptationState (an ivector extractor's running stats in
// the original). It is intentionally a value the caller only ever
// round-trips, not interprets.
type AdaptationState struct {
	FramesSeen int64
	MeanEnergy float64
}

// EndpointRule is the Go shape of kaldi::OnlineEndpointRule: a single
// condition under which decoding should stop.
type EndpointRule struct {
	MustContainNonsilence bool
	MinTrailingSilenceS   float64
	MaxRelativeCost       float64
	MinUtteranceLengthS   float64
}

// EndpointConfig bundles the ordered rules spec.md §3 "Endpoint rules
// (ordered)" describes: trailing silence threshold, minimum utterance
// length, relative lattice-cost threshold. A segment ends the moment any
// rule is satisfied.
type EndpointConfig struct {
	Rules []EndpointRule
}

// DefaultEndpointConfig mirrors model_.endpoint_config as used by
// Recognizer::HasEndpoint in the non-single-utterance path: Kaldi's
// stock four-rule OnlineEndpointConfig defaults.
func DefaultEndpointConfig() EndpointConfig {
	return EndpointConfig{Rules: []EndpointRule{
		{MustContainNonsilence: false, MinTrailingSilenceS: 5.0, MaxRelativeCost: math.Inf(1), MinUtteranceLengthS: 0},
		{MustContainNonsilence: true, MinTrailingSilenceS: 0.5, MaxRelativeCost: 2.0, MinUtteranceLengthS: 1.0},
		{MustContainNonsilence: true, MinTrailingSilenceS: 1.0, MaxRelativeCost: math.Inf(1), MinUtteranceLengthS: 0},
		{MustContainNonsilence: true, MinTrailingSilenceS: 2.0, MaxRelativeCost: math.Inf(1), MinUtteranceLengthS: 0},
	}}
}

// singleUtteranceEndpointConfig reproduces HasEndpoint's single_utterance
// override verbatim: rule1 times out after 10s of silence even with no
// decoded frames, rule2 unchanged, rules 3-4 disabled
// (min_utterance_length = +Inf).
func singleUtteranceEndpointConfig(base EndpointConfig) EndpointConfig {
	return EndpointConfig{Rules: []EndpointRule{
		{MustContainNonsilence: false, MinTrailingSilenceS: 10.0, MaxRelativeCost: math.Inf(1), MinUtteranceLengthS: 0},
		{MustContainNonsilence: true, MinTrailingSilenceS: 0.5, MaxRelativeCost: 2.0, MinUtteranceLengthS: 1.0},
		{MustContainNonsilence: true, MinTrailingSilenceS: 0, MaxRelativeCost: 0, MinUtteranceLengthS: math.Inf(1)},
		{MustContainNonsilence: true, MinTrailingSilenceS: 0, MaxRelativeCost: 0, MinUtteranceLengthS: math.Inf(1)},
	}}
}

// Satisfied reports whether r fires given the decoder's current state.
func (r EndpointRule) Satisfied(containsNonsilence bool, trailingSilenceS, utteranceLengthS, relativeCost float64) bool {
	if r.MustContainNonsilence && !containsNonsilence {
		return false
	}
	if trailingSilenceS < r.MinTrailingSilenceS {
		return false
	}
	if utteranceLengthS < r.MinUtteranceLengthS {
		return false
	}
	if relativeCost > r.MaxRelativeCost {
		return false
	}
	return true
}

// ModelTiming carries the two constants FramesToMillis needs: frame
// shift in seconds and the decoding graph's frame subsampling factor
// (Kaldi chain models typically subsample the acoustic frame rate by 3).
type ModelTiming struct {
	FrameShiftSeconds      float64
	FrameSubsamplingFactor int64
}

// DefaultModelTiming matches a 10ms frame shift and subsampling factor 3,
// the common Kaldi chain-model configuration.
func DefaultModelTiming() ModelTiming {
	return ModelTiming{FrameShiftSeconds: 0.01, FrameSubsamplingFactor: 3}
}

// FramesToMillis converts a frame count to milliseconds, exactly the
// formula in original_source/src/recognizer.cc: FramesToMillis.
func FramesToMillis(timing ModelTiming, numFrames int64) int64 {
	return int64(float64(numFrames) * timing.FrameShiftSeconds * 1000 * float64(timing.FrameSubsamplingFactor))
}

// hypothesis is one beam-search path: an accumulated word sequence plus
// cumulative score and per-word frame-start bookkeeping for alignment.
type hypothesis struct {
	words      []string
	starts     []int64 // frame index each word started at
	lengths    []int64 // frame count spanned by each word
	score      float32
}

func (h hypothesis) clone() hypothesis {
	return hypothesis{
		words:   append([]string{}, h.words...),
		starts:  append([]int64{}, h.starts...),
		lengths: append([]int64{}, h.lengths...),
		score:   h.score,
	}
}

// beamWidth bounds how many hypotheses Decode tracks concurrently,
// standing in for the pruned WFST lattice beam in the original decoder.
const beamWidth = 8

// Recognizer owns per-call decode state: the pluggable scorer, a bounded
// beam of word hypotheses, adaptation state, and the frame offset/left
// context needed for multi-segment (long-form) recognition, per
// spec.md §3 "Recognizer state".
type Recognizer struct {
	scorer AcousticScorer
	timing ModelTiming
	config EndpointConfig

	beam []hypothesis

	framesDecoded       int64
	frameOffset         int64
	trailingSilenceS    float64
	containsNonsilence  bool
	utteranceStartFrame int64

	adaptationState AdaptationState
	leftContext     []AlignedWord

	finalized bool

	rescoreLM     *ConstARPALM
	rescoreWeight float32
}

// SetRescoreLM attaches a const-ARPA rescoring LM, applied in GetResults
// before n-best extraction (spec.md: "If a rescoring LM is attached,
// apply it before path extraction"). weight scales the LM's contribution
// relative to the acoustic score; 0 disables rescoring even with lm set.
func (r *Recognizer) SetRescoreLM(lm *ConstARPALM, weight float32) {
	r.rescoreLM = lm
	r.rescoreWeight = weight
}

// New constructs a Recognizer for one streaming call.
func New(scorer AcousticScorer, timing ModelTiming, config EndpointConfig) *Recognizer {
	return &Recognizer{
		scorer: scorer,
		timing: timing,
		config: config,
		beam:   []hypothesis{{}},
	}
}

// NewWithState constructs a Recognizer seeded with adaptation state and
// left context carried over from a previous segment, mirroring the
// Recognizer(model, adaptation_state, left_context) constructor.
func NewWithState(scorer AcousticScorer, timing ModelTiming, config EndpointConfig, state AdaptationState, leftContext []AlignedWord) *Recognizer {
	r := New(scorer, timing, config)
	r.adaptationState = state
	r.leftContext = leftContext
	return r
}

// SetAdaptationState overwrites the carried adaptation state.
func (r *Recognizer) SetAdaptationState(s AdaptationState) { r.adaptationState = s }

// GetAdaptationState returns the current adaptation state, updated as a
// running mean of frame energy across all decoded frames.
func (r *Recognizer) GetAdaptationState() AdaptationState { return r.adaptationState }

// GetLeftContext returns the active left context, the tail of the
// previous segment's best transcript used to warm-start the next one.
func (r *Recognizer) GetLeftContext() []AlignedWord { return r.leftContext }

// NumFramesDecoded is the number of frames decoded in the current
// segment (resets to 0 after EndSegment/InitSegment).
func (r *Recognizer) NumFramesDecoded() int64 { return r.framesDecoded }

// Decode scores one frame-sized chunk of waveform and advances the beam.
// waveform must be an exact multiple of FrameSamples; Decode consumes it
// frame by frame, the same "advance decoding on whatever is ready" shape
// as Recognizer::Decode calling feature_pipeline_.AcceptWaveform then
// decoder_.AdvanceDecoding.
func (r *Recognizer) Decode(waveform []int16) error {
	for off := 0; off+FrameSamples <= len(waveform); off += FrameSamples {
		frame := waveform[off : off+FrameSamples]
		if err := r.decodeFrame(frame); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recognizer) decodeFrame(frame []int16) error {
	posteriors, err := r.scorer.ScoreFrame(frame)
	if err != nil {
		return fmt.Errorf("recognizer: score frame: %w", err)
	}

	r.updateAdaptationState(frame)
	r.framesDecoded++

	if len(posteriors) == 0 {
		r.trailingSilenceS += r.timing.FrameShiftSeconds * float64(r.timing.FrameSubsamplingFactor)
		return nil
	}
	r.trailingSilenceS = 0
	r.containsNonsilence = true

	r.beam = expandBeam(r.beam, posteriors, r.framesDecoded)
	return nil
}

func (r *Recognizer) updateAdaptationState(frame []int16) {
	var sum float64
	for _, v := range frame {
		sum += float64(v) * float64(v)
	}
	energy := math.Sqrt(sum / float64(len(frame)))
	n := float64(r.adaptationState.FramesSeen)
	r.adaptationState.MeanEnergy = (r.adaptationState.MeanEnergy*n + energy) / (n + 1)
	r.adaptationState.FramesSeen++
}

// expandBeam extends every hypothesis with each candidate word, keeping
// the beamWidth best-scoring resulting paths, a bounded analogue of the
// WFST lattice's pruned state expansion.
func expandBeam(beam []hypothesis, candidates []WordPosterior, frameIdx int64) []hypothesis {
	next := make([]hypothesis, 0, len(beam)*len(candidates))
	for _, h := range beam {
		for _, c := range candidates {
			nh := h.clone()
			nh.words = append(nh.words, c.Word)
			nh.starts = append(nh.starts, frameIdx)
			nh.lengths = append(nh.lengths, 1)
			nh.score += c.Score
			next = append(next, nh)
		}
	}
	sortHypothesesDesc(next)
	if len(next) > beamWidth {
		next = next[:beamWidth]
	}
	return next
}

func sortHypothesesDesc(h []hypothesis) {
	for i := 1; i < len(h); i++ {
		for j := i; j > 0 && h[j].score > h[j-1].score; j-- {
			h[j], h[j-1] = h[j-1], h[j]
		}
	}
}

// HasEndpoint reports whether any configured endpoint rule currently
// fires, mirroring Recognizer::HasEndpoint. singleUtterance swaps in the
// 10s-leading-silence rule set.
func (r *Recognizer) HasEndpoint(singleUtterance bool) bool {
	if r.framesDecoded == 0 {
		return false
	}
	config := r.config
	if singleUtterance {
		config = singleUtteranceEndpointConfig(r.config)
	}
	utteranceLengthS := float64(r.framesDecoded) * r.timing.FrameShiftSeconds * float64(r.timing.FrameSubsamplingFactor)
	relativeCost := r.relativeCost()
	for _, rule := range config.Rules {
		if rule.Satisfied(r.containsNonsilence, r.trailingSilenceS, utteranceLengthS, relativeCost) {
			return true
		}
	}
	return false
}

// relativeCost is the gap between the best and second-best beam score,
// standing in for the lattice-relative-cost Kaldi's endpoint detector
// reads off the decoder's active tokens.
func (r *Recognizer) relativeCost() float64 {
	if len(r.beam) < 2 {
		return 0
	}
	return float64(r.beam[0].score - r.beam[1].score)
}

// Finalize signals that no more Decode calls will be made, mirroring
// Recognizer::Finalize (InputFinished + one last AdvanceDecoding).
func (r *Recognizer) Finalize() {
	r.finalized = true
}

// EndSegment closes out the current segment, carrying the frame offset
// forward so a following InitSegment's timestamps stay on the global
// timeline, mirroring Recognizer::EndSegment.
func (r *Recognizer) EndSegment() {
	r.frameOffset += r.framesDecoded
}

// InitSegment resets per-segment decode state for the next segment while
// keeping frameOffset, adaptation state and left context, mirroring
// Recognizer::InitSegment.
func (r *Recognizer) InitSegment() {
	r.beam = []hypothesis{{}}
	r.framesDecoded = 0
	r.trailingSilenceS = 0
	r.containsNonsilence = false
	r.finalized = false
}

// GetBestHypothesis returns the current best hypothesis' transcript
// without alignment, mirroring Recognizer::GetBestHypothesis.
func (r *Recognizer) GetBestHypothesis() string {
	if len(r.beam) == 0 {
		return ""
	}
	return strings.Join(r.beam[0].words, " ")
}

// Alternative is one n-best transcript plus, for the first alternative
// only, word-level timing.
type Alternative struct {
	Transcript string
	Confidence float32
	Words      []AlignedWord
}

// GetResults returns up to maxAlternatives transcripts from the current
// beam, with word alignment on alternative 0, mirroring
// Recognizer::GetResults. endOfUtt controls whether the left context is
// updated from the winning hypothesis, the same semantics the original
// GetResults has.
func (r *Recognizer) GetResults(maxAlternatives int, endOfUtt bool) ([]Alternative, error) {
	if maxAlternatives <= 0 {
		maxAlternatives = 1
	}
	if len(r.beam) == 0 {
		return nil, fmt.Errorf("recognizer: no hypotheses to report")
	}

	beam := r.beam
	if r.rescoreLM != nil && r.rescoreWeight != 0 {
		beam = rescore(beam, r.rescoreLM, r.rescoreWeight)
	}

	nbest := beam
	if len(nbest) > maxAlternatives {
		nbest = nbest[:maxAlternatives]
	}

	confidences := confidenceFromCostGap(nbest)

	alts := make([]Alternative, len(nbest))
	for i, h := range nbest {
		alt := Alternative{
			Transcript: strings.Join(h.words, " "),
			Confidence: confidences[i],
		}
		if i == 0 {
			alt.Words = alignWords(h, r.frameOffset, r.timing)
		}
		alts[i] = alt
	}

	if endOfUtt {
		r.leftContext = alts[0].Words
	}
	return alts, nil
}

// confidenceFromCostGap derives per-alternative confidence from the
// score gap to the runner-up, exactly GetNbestWithConf's
// `1 - exp(-(cost[1]-cost[0]))` formula (costs are negated scores here
// since our beam tracks scores, not costs).
func confidenceFromCostGap(nbest []hypothesis) []float32 {
	conf := make([]float32, len(nbest))
	if len(nbest) == 0 {
		return conf
	}
	if len(nbest) == 1 {
		conf[0] = 1
		return conf
	}
	gap := float64(nbest[0].score - nbest[1].score)
	conf[0] = float32(1 - math.Exp(-gap))
	for i := 1; i < len(conf); i++ {
		conf[i] = 0
	}
	return conf
}

func alignWords(h hypothesis, frameOffset int64, timing ModelTiming) []AlignedWord {
	words := make([]AlignedWord, len(h.words))
	for i, w := range h.words {
		start := frameOffset + h.starts[i]
		words[i] = AlignedWord{
			StartTimeMs: FramesToMillis(timing, start),
			DurationMs:  FramesToMillis(timing, h.lengths[i]),
			Symbol:      w,
		}
	}
	return words
}
