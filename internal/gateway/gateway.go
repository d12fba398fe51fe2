// Package gateway bridges browser WebSocket clients onto the same
// streaming recognition pipeline internal/service.StreamingRecognize
// drives over gRPC (spec.md §4.8). A browser tab cannot half-close a
// WebSocket the way a gRPC client half-closes an HTTP/2 stream, so the
// wire protocol here leans on the reader's existing sentinel convention
// (empty payload or the literal "END") to signal "no more audio" without
// closing the socket (spec.md §4.8.2).
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/tiro-is/tiro-speech-go/internal/config"
	"github.com/tiro-is/tiro-speech-go/internal/formatter"
	"github.com/tiro-is/tiro-speech-go/internal/orchestrator"
	"github.com/tiro-is/tiro-speech-go/internal/punctuator"
	"github.com/tiro-is/tiro-speech-go/internal/recognizer"
	"github.com/tiro-is/tiro-speech-go/internal/registry"
	"github.com/tiro-is/tiro-speech-go/internal/vad"
)

// endSentinel matches orchestrator's own wire convention, so a browser
// that cannot half-close can still signal "done" over a text frame.
const endSentinel = "END"

// streamingConfig is the JSON twin of speechv1.StreamingRecognitionConfig,
// sent as the WebSocket connection's first text frame.
type streamingConfig struct {
	LanguageCode               string               `json:"language_code"`
	SampleRateHertz            int                  `json:"sample_rate_hertz"`
	MaxAlternatives            int32                `json:"max_alternatives"`
	EnableWordTimeOffsets      bool                 `json:"enable_word_time_offsets"`
	EnableAutomaticPunctuation bool                 `json:"enable_automatic_punctuation"`
	InterimResults             bool                 `json:"interim_results"`
	SingleUtterance            bool                 `json:"single_utterance"`
	Diarization                diarizationConfigMsg `json:"diarization_config"`
}

type diarizationConfigMsg struct {
	EnableSpeakerDiarization bool  `json:"enable_speaker_diarization"`
	MinSpeakerCount          int32 `json:"min_speaker_count"`
}

type configMessage struct {
	StreamingConfig *streamingConfig `json:"streaming_config"`
}

type wordInfo struct {
	StartTimeMs int64  `json:"start_time_ms"`
	EndTimeMs   int64  `json:"end_time_ms"`
	Word        string `json:"word"`
}

type alternative struct {
	Transcript string     `json:"transcript"`
	Confidence float32    `json:"confidence"`
	Words      []wordInfo `json:"words,omitempty"`
}

type responseMessage struct {
	Alternatives    []alternative `json:"alternatives"`
	IsFinal         bool          `json:"is_final"`
	SpeechEventType int           `json:"speech_event_type,omitempty"`
	Error           string        `json:"error,omitempty"`
}

// Handler upgrades HTTP requests to WebSocket connections and drives
// orchestrator.Run over them, reusing the same registry and timing
// configuration internal/service.Server uses for the gRPC surface.
type Handler struct {
	reg *registry.Registry
	cfg config.Config
	log *slog.Logger

	timing         recognizer.ModelTiming
	endpointConfig recognizer.EndpointConfig
}

// New returns a Handler backed by reg and cfg.
func New(reg *registry.Registry, cfg config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		reg:            reg,
		cfg:            cfg,
		log:            logger.With("component", "gateway"),
		timing:         recognizer.DefaultModelTiming(),
		endpointConfig: recognizer.DefaultEndpointConfig(),
	}
}

// ServeHTTP accepts the WebSocket upgrade and runs one streaming call to
// completion. It never returns an HTTP error body: once the socket is
// accepted, failures are reported as a final {"error": "..."} frame and
// the connection is closed.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Error("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	if err := h.run(ctx, conn); err != nil && !errors.Is(err, context.Canceled) {
		h.log.Warn("streaming call ended with error", "error", err)
		_ = writeError(ctx, conn, err)
		conn.Close(websocket.StatusInternalError, "recognition failed")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "done")
}

func (h *Handler) run(ctx context.Context, conn *websocket.Conn) error {
	_, raw, err := conn.Read(ctx)
	if err != nil {
		return fmt.Errorf("gateway: read streaming_config: %w", err)
	}
	var msg configMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.StreamingConfig == nil {
		return errors.New("gateway: first message must carry streaming_config")
	}
	streamingCfg := msg.StreamingConfig

	if streamingCfg.LanguageCode == "" {
		return errors.New("gateway: streaming_config.language_code is required")
	}
	model, ok := h.modelFor(streamingCfg.LanguageCode)
	if !ok {
		return fmt.Errorf("gateway: no model registered for language %q", streamingCfg.LanguageCode)
	}

	gate, err := vad.Auto(int(model.SampleRateHertz), 30)
	if err != nil {
		return fmt.Errorf("gateway: build vad gate: %w", err)
	}

	punct, err := punctuatorFor(model)
	if err != nil {
		return fmt.Errorf("gateway: build punctuator: %w", err)
	}

	recv := func(ctx context.Context) ([]byte, error) {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return nil, err
		}
		if typ == websocket.MessageText && string(data) == endSentinel {
			return nil, nil
		}
		return data, nil
	}

	// lastFinalWords holds alternative 0's formatted (post-punctuation)
	// words from the previous final segment in this connection, so
	// PunctuateWithContext can decide whether the next segment's first
	// word should be capitalized (spec.md's "Left context" continuity,
	// §4.4/§4.6).
	var lastFinalWords []string

	send := func(resp orchestrator.Response) error {
		out := responseMessage{IsFinal: resp.IsFinal, SpeechEventType: int(resp.SpeechEventType)}
		for i, alt := range resp.Alternatives {
			formatted := formatter.Format(alt.Words)
			var wordStrs []string
			for _, fw := range formatted {
				wordStrs = append(wordStrs, fw.Symbol)
			}
			if i == 0 && resp.IsFinal && streamingCfg.EnableAutomaticPunctuation && len(wordStrs) > 0 {
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
			var words []wordInfo
			if i == 0 && streamingCfg.EnableWordTimeOffsets {
				for _, fw := range formatted {
					words = append(words, wordInfo{
						StartTimeMs: fw.StartTimeMs,
						EndTimeMs:   fw.StartTimeMs + fw.DurationMs,
						Word:        fw.Symbol,
					})
				}
			}
			out.Alternatives = append(out.Alternatives, alternative{
				Transcript: joinWords(wordStrs),
				Confidence: alt.Confidence,
				Words:      words,
			})
		}
		data, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("gateway: marshal response: %w", err)
		}
		return conn.Write(ctx, websocket.MessageText, data)
	}

	deps := orchestrator.Dependencies{
		Recv:           recv,
		Send:           send,
		Config:         toOrchestratorConfig(streamingCfg),
		NewScorer:      newScorerFactory(model),
		Timing:         h.timing,
		EndpointConfig: h.endpointConfig,
		VADGate:        gate,
		QueueCapacity:  h.cfg.QueueCapacity,
	}

	if err := orchestrator.Run(ctx, deps); err != nil {
		if err == orchestrator.ErrCancelled {
			return nil
		}
		return fmt.Errorf("gateway: streaming recognition failed: %w", err)
	}
	return nil
}

func (h *Handler) modelFor(languageCode string) (*registry.Model, bool) {
	if m, ok := h.reg.Get(registry.ModelID{LanguageCode: languageCode, Variant: "generic"}); ok {
		return m, true
	}
	return h.reg.Get(registry.ModelID{LanguageCode: languageCode})
}

func toOrchestratorConfig(cfg *streamingConfig) orchestrator.StreamingConfig {
	return orchestrator.StreamingConfig{
		LanguageCode:               cfg.LanguageCode,
		SampleRateHertz:            cfg.SampleRateHertz,
		MaxAlternatives:            int(cfg.MaxAlternatives),
		EnableWordTimeOffsets:      cfg.EnableWordTimeOffsets,
		EnableAutomaticPunctuation: cfg.EnableAutomaticPunctuation,
		InterimResults:             cfg.InterimResults,
		SingleUtterance:            cfg.SingleUtterance,
		Diarization: orchestrator.DiarizationConfig{
			EnableSpeakerDiarization: cfg.Diarization.EnableSpeakerDiarization,
			MinSpeakerCount:          int(cfg.Diarization.MinSpeakerCount),
		},
	}
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

func writeError(ctx context.Context, conn *websocket.Conn, cause error) error {
	data, err := json.Marshal(responseMessage{Error: cause.Error()})
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
