// Package adminhttp serves the operational HTTP surface alongside the
// gRPC service: health checks, the registered-model listing, and the
// Prometheus metrics scrape endpoint, routed with chi the way
// NeboLoop-nebo/internal/httputil wires its own admin-style endpoints.
package adminhttp

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tiro-is/tiro-speech-go/internal/registry"
)

// modelSummary is the JSON shape returned by GET /models; it never
// exposes filesystem paths, only what a caller deciding which
// language_code/variant to request would need.
type modelSummary struct {
	LanguageCode    string `json:"language_code"`
	Variant         string `json:"variant,omitempty"`
	SampleRateHertz uint32 `json:"sample_rate_hertz"`
	Diarization     bool   `json:"diarization_available"`
	Punctuation     bool   `json:"punctuation_available"`
}

// Handler returns an http.Handler serving /healthz, /models and
// /metrics, backed by reg.
func Handler(reg *registry.Registry, startedAt time.Time) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "ok",
			"uptime_sec": int(time.Since(startedAt).Seconds()),
		})
	})

	router.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		models := reg.List()
		out := make([]modelSummary, 0, len(models))
		for _, m := range models {
			out = append(out, modelSummary{
				LanguageCode:    m.ID.LanguageCode,
				Variant:         m.ID.Variant,
				SampleRateHertz: m.SampleRateHertz,
				Diarization:     m.DiarizerModelPath != "",
				Punctuation:     m.PunctuatorModelPath != "",
			})
		}
		writeJSON(w, http.StatusOK, out)
	})

	router.Handle("/metrics", promhttp.Handler())

	return router
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
