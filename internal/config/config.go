// Package config holds the server's runtime configuration and the
// defaults applied when a field isn't set by flag, environment variable,
// or config blob.
package config

import "fmt"

const (
	DefaultListenAddr      = "0.0.0.0:50051"
	DefaultAdminAddr       = "127.0.0.1:8080"
	DefaultMetricsAddr     = "127.0.0.1:9090"
	DefaultLogLevel        = "INFO"
	DefaultMaxAlternatives = 30

	// DefaultContentChunkSamples is the Content audio source's chunk size,
	// in samples. See SPEC_FULL §6 open question — both this and
	// DefaultURLStreamingChunkSamples are left configurable.
	DefaultContentChunkSamples = 400
	// DefaultURLStreamingChunkSamples is the streaming URL source's chunk size.
	DefaultURLStreamingChunkSamples = 2048

	// DefaultInterimThrottleMs is the minimum interval between interim
	// results (spec §4.8.3.6).
	DefaultInterimThrottleMs = 350
	// DefaultQueueBackoffMs and DefaultQueueMaxAttempts govern the
	// reader's try-enqueue back-off (spec §4.8.2).
	DefaultQueueBackoffMs          = 200
	DefaultQueueMaxAttempts        = 50
	DefaultQueueCapacity           = 64
	DefaultSingleUtteranceSilenceS = 10.0
)

// Config is the adapter-wide configuration. Zero value is not valid;
// always construct through Loader.Load or Defaults().
type Config struct {
	ListenAddr  string `json:"listen_addr"`
	AdminAddr   string `json:"admin_addr"`
	MetricsAddr string `json:"metrics_addr"`
	LogLevel    string `json:"log_level"`

	// KaldiModels is a comma-separated list of model directory paths, kept
	// under the historical flag name from spec §6 ("--kaldi-models") even
	// though models here aren't necessarily Kaldi-specific on disk.
	KaldiModels string `json:"kaldi_models"`

	UseTLS               bool   `json:"use_tls"`
	TLSServerCert        string `json:"tls_server_cert"`
	TLSServerKey         string `json:"tls_server_key"`
	TLSCACert            string `json:"tls_ca_cert"`
	TLSRequireClientCert bool   `json:"tls_require_client_cert"`

	ContentChunkSamples      int `json:"content_chunk_samples"`
	URLStreamingChunkSamples int `json:"url_streaming_chunk_samples"`
	InterimThrottleMs        int `json:"interim_throttle_ms"`
	QueueCapacity            int `json:"queue_capacity"`

	// TelemetryDB, if non-empty, enables the non-content call-metrics
	// store (internal/telemetry). Empty disables it.
	TelemetryDB string `json:"telemetry_db"`

	// AllowedURISchemes restricts which schemes CreateAudioSourceFromURI
	// accepts (spec §6 "URI schemes").
	AllowedURISchemes []string `json:"allowed_uri_schemes"`
}

// Defaults returns a Config populated with the package defaults.
func Defaults() Config {
	return Config{
		ListenAddr:               DefaultListenAddr,
		AdminAddr:                DefaultAdminAddr,
		MetricsAddr:              DefaultMetricsAddr,
		LogLevel:                 DefaultLogLevel,
		ContentChunkSamples:      DefaultContentChunkSamples,
		URLStreamingChunkSamples: DefaultURLStreamingChunkSamples,
		InterimThrottleMs:        DefaultInterimThrottleMs,
		QueueCapacity:            DefaultQueueCapacity,
		AllowedURISchemes:        []string{"http", "https"},
	}
}

// Validate checks field-level invariants that don't depend on the
// filesystem; TLS file existence is checked at startup instead, the same
// split the teacher's Config.Validate()/ValidateVADParams() made between
// cheap and expensive checks.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr must not be empty")
	}
	if c.UseTLS && (c.TLSServerCert == "" || c.TLSServerKey == "") {
		return fmt.Errorf("config: use_tls=true requires tls_server_cert and tls_server_key")
	}
	if c.ContentChunkSamples <= 0 {
		return fmt.Errorf("config: content_chunk_samples must be positive")
	}
	if c.URLStreamingChunkSamples <= 0 {
		return fmt.Errorf("config: url_streaming_chunk_samples must be positive")
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("config: queue_capacity must be positive")
	}
	return nil
}
