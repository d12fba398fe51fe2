package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Loader loads configuration from environment variables. Tests can override
// Lookup to inject deterministic maps.
type Loader struct {
	Lookup func(string) (string, bool)

	// EnvFile is the optional dotenv path loaded before Lookup is consulted.
	// Empty uses godotenv's default (".env" in the working directory) and a
	// missing file is not an error, matching godotenv.Load's own behavior.
	EnvFile string
}

// Load retrieves the server configuration from environment variables,
// layered over an optional SPEECH_SERVER_CONFIG JSON blob and package
// defaults. Precedence, highest first: env vars, JSON blob, defaults. Flags
// parsed by cmd/speech-server override whatever Load returns.
func (l Loader) Load() (Config, error) {
	if l.Lookup == nil {
		if l.EnvFile != "" {
			_ = godotenv.Load(l.EnvFile)
		} else {
			_ = godotenv.Load()
		}
		l.Lookup = os.LookupEnv
	}

	cfg := Defaults()

	if raw, ok := l.Lookup("SPEECH_SERVER_CONFIG"); ok && strings.TrimSpace(raw) != "" {
		if err := applyJSON(raw, &cfg); err != nil {
			return Config{}, err
		}
	}

	overrideString(l.Lookup, "SPEECH_LISTEN_ADDR", &cfg.ListenAddr)
	overrideString(l.Lookup, "SPEECH_ADMIN_ADDR", &cfg.AdminAddr)
	overrideString(l.Lookup, "SPEECH_METRICS_ADDR", &cfg.MetricsAddr)
	overrideString(l.Lookup, "SPEECH_LOG_LEVEL", &cfg.LogLevel)
	overrideString(l.Lookup, "SPEECH_KALDI_MODELS", &cfg.KaldiModels)
	overrideString(l.Lookup, "SPEECH_TLS_SERVER_CERT", &cfg.TLSServerCert)
	overrideString(l.Lookup, "SPEECH_TLS_SERVER_KEY", &cfg.TLSServerKey)
	overrideString(l.Lookup, "SPEECH_TLS_CA_CERT", &cfg.TLSCACert)
	overrideString(l.Lookup, "SPEECH_TELEMETRY_DB", &cfg.TelemetryDB)

	if err := overrideBool(l.Lookup, "SPEECH_USE_TLS", &cfg.UseTLS); err != nil {
		return Config{}, err
	}
	if err := overrideBool(l.Lookup, "SPEECH_TLS_REQUIRE_CLIENT_CERT", &cfg.TLSRequireClientCert); err != nil {
		return Config{}, err
	}
	if err := overrideInt(l.Lookup, "SPEECH_CONTENT_CHUNK_SAMPLES", &cfg.ContentChunkSamples); err != nil {
		return Config{}, err
	}
	if err := overrideInt(l.Lookup, "SPEECH_URL_STREAMING_CHUNK_SAMPLES", &cfg.URLStreamingChunkSamples); err != nil {
		return Config{}, err
	}
	if err := overrideInt(l.Lookup, "SPEECH_INTERIM_THROTTLE_MS", &cfg.InterimThrottleMs); err != nil {
		return Config{}, err
	}
	if err := overrideInt(l.Lookup, "SPEECH_QUEUE_CAPACITY", &cfg.QueueCapacity); err != nil {
		return Config{}, err
	}
	if raw, ok := l.Lookup("SPEECH_ALLOWED_URI_SCHEMES"); ok && strings.TrimSpace(raw) != "" {
		cfg.AllowedURISchemes = splitAndTrim(raw)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyJSON(raw string, cfg *Config) error {
	type jsonConfig struct {
		ListenAddr               string   `json:"listen_addr"`
		AdminAddr                string   `json:"admin_addr"`
		MetricsAddr              string   `json:"metrics_addr"`
		LogLevel                 string   `json:"log_level"`
		KaldiModels              string   `json:"kaldi_models"`
		UseTLS                   *bool    `json:"use_tls"`
		TLSServerCert            string   `json:"tls_server_cert"`
		TLSServerKey             string   `json:"tls_server_key"`
		TLSCACert                string   `json:"tls_ca_cert"`
		TLSRequireClientCert     *bool    `json:"tls_require_client_cert"`
		ContentChunkSamples      *int     `json:"content_chunk_samples"`
		URLStreamingChunkSamples *int     `json:"url_streaming_chunk_samples"`
		InterimThrottleMs        *int     `json:"interim_throttle_ms"`
		QueueCapacity            *int     `json:"queue_capacity"`
		TelemetryDB              string   `json:"telemetry_db"`
		AllowedURISchemes        []string `json:"allowed_uri_schemes"`
	}
	var payload jsonConfig
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fmt.Errorf("config: decode SPEECH_SERVER_CONFIG: %w", err)
	}
	if payload.ListenAddr != "" {
		cfg.ListenAddr = payload.ListenAddr
	}
	if payload.AdminAddr != "" {
		cfg.AdminAddr = payload.AdminAddr
	}
	if payload.MetricsAddr != "" {
		cfg.MetricsAddr = payload.MetricsAddr
	}
	if payload.LogLevel != "" {
		cfg.LogLevel = payload.LogLevel
	}
	if payload.KaldiModels != "" {
		cfg.KaldiModels = payload.KaldiModels
	}
	if payload.UseTLS != nil {
		cfg.UseTLS = *payload.UseTLS
	}
	if payload.TLSServerCert != "" {
		cfg.TLSServerCert = payload.TLSServerCert
	}
	if payload.TLSServerKey != "" {
		cfg.TLSServerKey = payload.TLSServerKey
	}
	if payload.TLSCACert != "" {
		cfg.TLSCACert = payload.TLSCACert
	}
	if payload.TLSRequireClientCert != nil {
		cfg.TLSRequireClientCert = *payload.TLSRequireClientCert
	}
	if payload.ContentChunkSamples != nil {
		cfg.ContentChunkSamples = *payload.ContentChunkSamples
	}
	if payload.URLStreamingChunkSamples != nil {
		cfg.URLStreamingChunkSamples = *payload.URLStreamingChunkSamples
	}
	if payload.InterimThrottleMs != nil {
		cfg.InterimThrottleMs = *payload.InterimThrottleMs
	}
	if payload.QueueCapacity != nil {
		cfg.QueueCapacity = *payload.QueueCapacity
	}
	if payload.TelemetryDB != "" {
		cfg.TelemetryDB = payload.TelemetryDB
	}
	if len(payload.AllowedURISchemes) > 0 {
		cfg.AllowedURISchemes = payload.AllowedURISchemes
	}
	return nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideBool(lookup func(string) (string, bool), key string, target *bool) error {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("config: invalid value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}

func overrideInt(lookup func(string) (string, bool), key string, target *int) error {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("config: invalid value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}
