// Package service implements speechv1.SpeechServer: spec.md §6's
// Recognize and StreamingRecognize RPCs, wiring the registry, audio
// codec, recognizer, formatter, punctuator and diarizer packages
// together behind the gRPC surface defined in api/speech/v1.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	speechv1 "github.com/tiro-is/tiro-speech-go/api/speech/v1"
	"github.com/tiro-is/tiro-speech-go/internal/audio"
	"github.com/tiro-is/tiro-speech-go/internal/config"
	"github.com/tiro-is/tiro-speech-go/internal/diarizer"
	"github.com/tiro-is/tiro-speech-go/internal/formatter"
	"github.com/tiro-is/tiro-speech-go/internal/orchestrator"
	"github.com/tiro-is/tiro-speech-go/internal/punctuator"
	"github.com/tiro-is/tiro-speech-go/internal/recognizer"
	"github.com/tiro-is/tiro-speech-go/internal/registry"
	"github.com/tiro-is/tiro-speech-go/internal/telemetry"
	"github.com/tiro-is/tiro-speech-go/internal/vad"
)

// Server implements speechv1.SpeechServer. One Server is shared by every
// call; per-call state (scorer, recognizer, source) is built fresh each
// time ("own instance per stream" isolation).
type Server struct {
	speechv1.UnimplementedSpeechServer

	reg *registry.Registry
	cfg config.Config
	log *slog.Logger

	timing         recognizer.ModelTiming
	endpointConfig recognizer.EndpointConfig

	metrics *telemetry.Metrics
	store   *telemetry.Store
}

// New returns a Server backed by reg and cfg.
func New(reg *registry.Registry, cfg config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		reg:            reg,
		cfg:            cfg,
		log:            logger.With("component", "service"),
		timing:         recognizer.DefaultModelTiming(),
		endpointConfig: recognizer.DefaultEndpointConfig(),
	}
}

// WithTelemetry attaches non-content call-metrics recording (spec.md's
// Non-goal: never transcript text or audio content) to s, returning s for
// chaining in cmd/speech-server's setup.
func (s *Server) WithTelemetry(metrics *telemetry.Metrics, store *telemetry.Store) *Server {
	s.metrics = metrics
	s.store = store
	return s
}

// recordCall reports rec's outcome to the attached Metrics/Store, if any.
func (s *Server) recordCall(ctx context.Context, rec telemetry.CallRecord) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordCall(ctx, s.store, rec)
}

// modelFor resolves the registered model for a language code, preferring
// its "generic" variant and falling back to the model registered with no
// variant.
func (s *Server) modelFor(languageCode string) (*registry.Model, bool) {
	if m, ok := s.reg.Get(registry.ModelID{LanguageCode: languageCode, Variant: "generic"}); ok {
		return m, true
	}
	return s.reg.Get(registry.ModelID{LanguageCode: languageCode})
}

// Recognize implements the unary, non-streaming RPC: spec.md §4.7's
// Codec→Source→Recognizer→Formatter→Punctuator(+Diarizer) pipeline over
// the whole submitted audio at once.
func (s *Server) Recognize(ctx context.Context, req *speechv1.RecognizeRequest) (resp *speechv1.RecognizeResponse, err error) {
	start := time.Now()
	callRec := telemetry.CallRecord{LanguageCode: req.Config.LanguageCode, Streaming: false, StartedAt: start, Status: telemetry.StatusOK}
	defer func() {
		callRec.Duration = time.Since(start)
		if resp != nil {
			callRec.ResultCount = len(resp.Results)
			if len(resp.Results) > 0 {
				callRec.AlternativeCount = len(resp.Results[0].Alternatives)
			}
		}
		s.recordCall(ctx, callRec)
	}()

	if errs := validateRecognizeRequest(req, s.reg, s.cfg.AllowedURISchemes); len(errs) > 0 {
		callRec.Status = telemetry.StatusInvalidArg
		return nil, statusFromViolations(errs)
	}

	model, ok := s.modelFor(req.Config.LanguageCode)
	if !ok {
		callRec.Status = telemetry.StatusInvalidArg
		return nil, statusFromViolations(validationErrors{{field: "config.language_code", description: "no model registered for this language"}})
	}

	waveform, err := s.decodeNonStreaming(ctx, req)
	if err != nil {
		callRec.Status = telemetry.StatusFailed
		return nil, decodeError(false, err)
	}

	scorer, err := newScorerFactory(model)()
	if err != nil {
		callRec.Status = telemetry.StatusFailed
		s.log.Error("failed to build scorer", "error", err)
		return nil, internalError("failed to initialize recognizer")
	}
	defer scorer.Close()

	rec := recognizer.New(scorer, s.timing, s.endpointConfig)
	rescoreLM, err := rescoreLMFor(model)
	if err != nil {
		s.log.Warn("failed to load rescoring LM, continuing without it", "error", err)
	} else if rescoreLM != nil {
		rec.SetRescoreLM(rescoreLM, 1.0)
	}

	if err := rec.Decode(waveform); err != nil {
		callRec.Status = telemetry.StatusFailed
		s.log.Error("decode failed", "error", err)
		return nil, internalError("recognition failed")
	}

	maxAlt := int(req.Config.MaxAlternatives)
	if maxAlt <= 0 {
		maxAlt = 1
	}
	alts, err := rec.GetResults(maxAlt, true)
	if err != nil {
		callRec.Status = telemetry.StatusFailed
		s.log.Error("get results failed", "error", err)
		return nil, internalError("recognition produced no results")
	}

	result, speakerCount, err := s.finishAlternatives(model, req.Config, alts, waveform)
	if err != nil {
		callRec.Status = telemetry.StatusFailed
		s.log.Error("post-processing failed", "error", err)
		return nil, internalError("recognition failed")
	}
	callRec.SpeakerCount = speakerCount

	return &speechv1.RecognizeResponse{Results: []speechv1.SpeechRecognitionResult{result}}, nil
}

// decodeNonStreaming materializes the request's audio into a mono
// 16 kHz PCM waveform, via CreateAudioSource/CreateAudioSourceFromURI.
func (s *Server) decodeNonStreaming(ctx context.Context, req *speechv1.RecognizeRequest) ([]int16, error) {
	info := audio.SourceInfo{Format: audio.Format{
		Encoding:        toAudioEncoding(req.Config.Encoding),
		SampleRateHertz: req.Config.SampleRateHertz,
	}}

	var src audio.Source
	if req.Audio.Uri != "" {
		built, err := audio.CreateAudioSourceFromURI(info, req.Audio.Uri, audio.CanonicalSampleRateHertz, false, s.cfg.ContentChunkSamples, s.cfg.AllowedURISchemes)
		if err != nil {
			return nil, err
		}
		src = built
	} else {
		src = audio.CreateAudioSource(info, req.Audio.Content, audio.CanonicalSampleRateHertz, s.cfg.ContentChunkSamples)
	}

	if err := src.Open(ctx); err != nil {
		return nil, err
	}
	return audio.DrainFull(ctx, src)
}

// finishAlternatives applies the Formatter to every alternative, the
// Punctuator to alternative 0 when requested, and diarization's speaker
// tags onto alternative 0's words when requested, building the response
// SpeechRecognitionResult (spec.md §4.7 points 3-5).
func (s *Server) finishAlternatives(model *registry.Model, cfg speechv1.RecognitionConfig, alts []recognizer.Alternative, waveform []int16) (speechv1.SpeechRecognitionResult, int, error) {
	out := speechv1.SpeechRecognitionResult{Alternatives: make([]speechv1.SpeechRecognitionAlternative, len(alts))}

	var speakerTags map[int]int32
	if cfg.DiarizationConfig.EnableSpeakerDiarization && len(alts) > 0 && len(alts[0].Words) > 0 {
		tags, err := s.diarize(model, cfg, alts[0].Words, waveform)
		if err != nil {
			s.log.Warn("diarization failed, returning transcript without speaker tags", "error", err)
		} else {
			speakerTags = tags
		}
	}

	for i, alt := range alts {
		words := formatter.Format(alt.Words)

		var transcriptWords []string
		for _, w := range words {
			transcriptWords = append(transcriptWords, w.Symbol)
		}

		if i == 0 && cfg.EnableAutomaticPunctuation && len(transcriptWords) > 0 {
			punct, err := punctuatorFor(model)
			if err != nil {
				return speechv1.SpeechRecognitionResult{}, 0, err
			}
			punctuated, err := punct.Punctuate(transcriptWords, true)
			if err != nil {
				return speechv1.SpeechRecognitionResult{}, 0, err
			}
			transcriptWords = punctuated
		}

		wordInfos := make([]speechv1.WordInfo, 0, len(words))
		if i == 0 && cfg.EnableWordTimeOffsets {
			for j, w := range words {
				info := speechv1.WordInfo{
					StartTimeMs: w.StartTimeMs,
					EndTimeMs:   w.StartTimeMs + w.DurationMs,
					Word:        w.Symbol,
				}
				if speakerTags != nil {
					info.SpeakerTag = speakerTags[j]
				}
				wordInfos = append(wordInfos, info)
			}
		}

		out.Alternatives[i] = speechv1.SpeechRecognitionAlternative{
			Transcript: joinWords(transcriptWords),
			Confidence: alt.Confidence,
			Words:      wordInfos,
		}
	}

	speakerCount := 0
	if len(speakerTags) > 0 {
		seen := make(map[int32]struct{}, len(speakerTags))
		for _, tag := range speakerTags {
			seen[tag] = struct{}{}
		}
		speakerCount = len(seen)
	}
	return out, speakerCount, nil
}

func joinWords(words []string) string {
	var b []byte
	for i, w := range words {
		if i > 0 {
			b = append(b, ' ')
		}
		b = append(b, w...)
	}
	return string(b)
}

// diarize runs the offline diarization pipeline over the full waveform
// and maps each output segment's speaker ID onto the word indices whose
// midpoint falls inside it.
func (s *Server) diarize(model *registry.Model, cfg speechv1.RecognitionConfig, words []recognizer.AlignedWord, waveform []int16) (map[int]int32, error) {
	dModel, err := diarizerModelFor(model)
	if err != nil {
		return nil, err
	}
	opts := diarizer.DefaultOptions(float64(audio.CanonicalSampleRateHertz))

	floatWave := make([]float64, len(waveform))
	for i, sample := range waveform {
		floatWave[i] = float64(sample) / 32768.0
	}

	numSpeakers := int(cfg.DiarizationConfig.MinSpeakerCount)
	if numSpeakers < 1 {
		numSpeakers = 2
	}

	segments, err := diarizer.Diarize(dModel, opts, floatWave, numSpeakers)
	if err != nil {
		return nil, err
	}

	frameShiftMs := s.timing.FrameShiftSeconds * 1000
	tags := make(map[int]int32, len(words))
	for j, w := range words {
		midMs := w.StartTimeMs + w.DurationMs/2
		frame := int(float64(midMs) / frameShiftMs)
		tags[j] = int32(speakerAt(segments, frame))
	}
	return tags, nil
}

func speakerAt(segments []diarizer.DiarizationSegment, frame int) int {
	for _, seg := range segments {
		if frame >= seg.StartFrame && frame < seg.EndFrame {
			return seg.SpeakerID
		}
	}
	if len(segments) > 0 {
		return segments[len(segments)-1].SpeakerID
	}
	return 0
}

func toAudioEncoding(e speechv1.Encoding) audio.Encoding {
	switch e {
	case speechv1.EncodingLinear16:
		return audio.EncodingLinear16
	case speechv1.EncodingMP3:
		return audio.EncodingMP3
	case speechv1.EncodingFLAC:
		return audio.EncodingFLAC
	default:
		return audio.EncodingUnspecified
	}
}

// StreamingRecognize implements the bidirectional streaming RPC, wiring
// internal/orchestrator.Run between the gRPC stream and the recognition
// pipeline (spec.md §4.8). Formatter/Punctuator application happens in
// the Send adapter, below orchestrator's raw recognizer.Alternative
// output, keeping the orchestrator package itself free of any
// presentation concerns.
func (s *Server) StreamingRecognize(stream speechv1.Speech_StreamingRecognizeServer) (err error) {
	ctx := stream.Context()
	start := time.Now()
	callRec := telemetry.CallRecord{Streaming: true, StartedAt: start, Status: telemetry.StatusOK}
	resultCount := 0
	defer func() {
		callRec.Duration = time.Since(start)
		callRec.ResultCount = resultCount
		s.recordCall(ctx, callRec)
	}()

	first, err := stream.Recv()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		callRec.Status = telemetry.StatusCancelled
		return orchestrator.ErrCancelled
	}

	if errs := validateStreamingConfig(first.StreamingConfig, s.reg); len(errs) > 0 {
		callRec.Status = telemetry.StatusInvalidArg
		return statusFromViolations(errs)
	}
	streamingCfg := first.StreamingConfig
	callRec.LanguageCode = streamingCfg.Config.LanguageCode

	model, ok := s.modelFor(streamingCfg.Config.LanguageCode)
	if !ok {
		callRec.Status = telemetry.StatusInvalidArg
		return statusFromViolations(validationErrors{{field: "streaming_config.config.language_code", description: "no model registered for this language"}})
	}

	gate, err := vad.Auto(int(model.SampleRateHertz), 30)
	if err != nil {
		callRec.Status = telemetry.StatusFailed
		s.log.Error("failed to build vad gate", "error", err)
		return internalError("failed to initialize recognizer")
	}

	punct, err := punctuatorFor(model)
	if err != nil {
		callRec.Status = telemetry.StatusFailed
		s.log.Error("failed to build punctuator", "error", err)
		return internalError("failed to initialize recognizer")
	}

	// The first message (streaming_config) was already consumed above;
	// recv only ever pulls subsequent audio_content messages.
	recv := func(ctx context.Context) ([]byte, error) {
		msg, err := stream.Recv()
		if err != nil {
			return nil, err
		}
		return msg.AudioContent, nil
	}

	// lastFinalWords holds alternative 0's formatted (post-punctuation)
	// words from the previous final segment in this stream, so
	// PunctuateWithContext can decide whether the next segment's first
	// word should be capitalized (spec.md's "Left context" continuity,
	// §4.4/§4.6).
	var lastFinalWords []string

	send := func(resp orchestrator.Response) error {
		resultCount++
		words := resp.Alternatives
		out := make([]speechv1.SpeechRecognitionAlternative, len(words))
		for i, alt := range words {
			formatted := formatter.Format(alt.Words)
			var wordStrs []string
			for _, w := range formatted {
				wordStrs = append(wordStrs, w.Symbol)
			}
			if i == 0 && resp.IsFinal && streamingCfg.Config.EnableAutomaticPunctuation && len(wordStrs) > 0 {
				var p []string
				var perr error
				if len(lastFinalWords) > 0 {
					p, perr = punct.PunctuateWithContext(wordStrs, lastFinalWords, true)
				} else {
					p, perr = punct.Punctuate(wordStrs, true)
				}
				if perr == nil {
					wordStrs = p
				}
			}
			if i == 0 && resp.IsFinal {
				lastFinalWords = wordStrs
			}
			var infos []speechv1.WordInfo
			if i == 0 && streamingCfg.Config.EnableWordTimeOffsets {
				for _, w := range formatted {
					infos = append(infos, speechv1.WordInfo{
						StartTimeMs: w.StartTimeMs,
						EndTimeMs:   w.StartTimeMs + w.DurationMs,
						Word:        w.Symbol,
					})
				}
			}
			out[i] = speechv1.SpeechRecognitionAlternative{
				Transcript: joinWords(wordStrs),
				Confidence: alt.Confidence,
				Words:      infos,
			}
		}

		wireResp := &speechv1.StreamingRecognizeResponse{
			Results: []speechv1.StreamingRecognitionResult{{
				Alternatives: out,
				IsFinal:      resp.IsFinal,
			}},
			SpeechEventType: speechv1.SpeechEventType(resp.SpeechEventType),
		}
		if err := stream.Send(wireResp); err != nil {
			return fmt.Errorf("streaming send failed: %w", err)
		}
		return nil
	}

	deps := orchestrator.Dependencies{
		Recv:           recv,
		Send:           send,
		Config:         toOrchestratorConfig(streamingCfg),
		NewScorer:      newScorerFactory(model),
		Timing:         s.timing,
		EndpointConfig: s.endpointConfig,
		VADGate:        gate,
		QueueCapacity:  s.cfg.QueueCapacity,
	}

	if err := orchestrator.Run(ctx, deps); err != nil {
		if err == orchestrator.ErrCancelled {
			callRec.Status = telemetry.StatusCancelled
			return orchestratorCancelledStatus()
		}
		callRec.Status = telemetry.StatusFailed
		return internalError("streaming recognition failed")
	}
	return nil
}

func toOrchestratorConfig(cfg *speechv1.StreamingRecognitionConfig) orchestrator.StreamingConfig {
	return orchestrator.StreamingConfig{
		LanguageCode:               cfg.Config.LanguageCode,
		SampleRateHertz:            int(cfg.Config.SampleRateHertz),
		MaxAlternatives:            int(cfg.Config.MaxAlternatives),
		EnableWordTimeOffsets:      cfg.Config.EnableWordTimeOffsets,
		EnableAutomaticPunctuation: cfg.Config.EnableAutomaticPunctuation,
		InterimResults:             cfg.InterimResults,
		SingleUtterance:            cfg.SingleUtterance,
		Diarization: orchestrator.DiarizationConfig{
			EnableSpeakerDiarization: cfg.Config.DiarizationConfig.EnableSpeakerDiarization,
			MinSpeakerCount:          cfg.Config.DiarizationConfig.MinSpeakerCount,
		},
	}
}
