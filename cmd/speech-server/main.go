// Command speech-server runs the Tiro speech-to-text gRPC service: the
// Speech API defined in api/speech/v1, a browser WebSocket gateway, and an
// admin HTTP surface for health checks, model listing and Prometheus
// metrics. Flags mirror the historical adapter's bind-port-first,
// lazy-service startup sequence.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	speechv1 "github.com/tiro-is/tiro-speech-go/api/speech/v1"
	"github.com/tiro-is/tiro-speech-go/internal/adminhttp"
	"github.com/tiro-is/tiro-speech-go/internal/config"
	"github.com/tiro-is/tiro-speech-go/internal/gateway"
	"github.com/tiro-is/tiro-speech-go/internal/registry"
	"github.com/tiro-is/tiro-speech-go/internal/service"
	"github.com/tiro-is/tiro-speech-go/internal/telemetry"
)

// version is set at build time via -ldflags.
var version = "dev"

// lazySpeechServer wraps a SpeechServer and allows deferred initialization,
// the same pattern the VAD adapter uses to bind its port before the model
// registry has finished loading.
type lazySpeechServer struct {
	speechv1.UnimplementedSpeechServer
	server atomic.Pointer[speechv1.SpeechServer]
}

func (l *lazySpeechServer) setServer(srv speechv1.SpeechServer) {
	l.server.Store(&srv)
}

func (l *lazySpeechServer) current() (speechv1.SpeechServer, error) {
	srv := l.server.Load()
	if srv == nil {
		return nil, status.Error(codes.Unavailable, "speech service is initializing, please retry in a moment")
	}
	return *srv, nil
}

func (l *lazySpeechServer) Recognize(ctx context.Context, req *speechv1.RecognizeRequest) (*speechv1.RecognizeResponse, error) {
	srv, err := l.current()
	if err != nil {
		return nil, err
	}
	return srv.Recognize(ctx, req)
}

func (l *lazySpeechServer) StreamingRecognize(stream speechv1.Speech_StreamingRecognizeServer) error {
	srv, err := l.current()
	if err != nil {
		return err
	}
	return srv.StreamingRecognize(stream)
}

var (
	envFile     string
	logLevel    string
	listenAddr  string
	adminAddr   string
	metricsAddr string
	kaldiModels string

	useTLS               bool
	tlsServerCert        string
	tlsServerKey         string
	tlsCACert            string
	tlsRequireClientCert bool

	telemetryDB string
)

func main() {
	root := &cobra.Command{
		Use:     "speech-server",
		Short:   "Tiro speech recognition gRPC service",
		Version: version,
		RunE:    run,
	}

	flags := root.Flags()
	flags.StringVar(&envFile, "env-file", "", "optional .env file to load before flag/env resolution")
	flags.StringVar(&listenAddr, "listen-address", "", "gRPC listen address (default "+config.DefaultListenAddr+")")
	flags.StringVar(&kaldiModels, "kaldi-models", "", "comma-separated list of model directory paths")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&adminAddr, "admin-address", "", "address serving /healthz, /models and /metrics")
	flags.StringVar(&metricsAddr, "metrics-address", "", "address serving a bare Prometheus /metrics endpoint")
	flags.BoolVar(&useTLS, "use-tls", false, "serve gRPC over TLS")
	flags.StringVar(&tlsServerCert, "tls-server-cert", "", "PEM server certificate path")
	flags.StringVar(&tlsServerKey, "tls-server-key", "", "PEM server key path")
	flags.StringVar(&tlsCACert, "tls-ca-cert", "", "PEM CA bundle used to verify client certificates")
	flags.BoolVar(&tlsRequireClientCert, "tls-require-client-cert", false, "require and verify a client certificate (mutual TLS)")
	flags.StringVar(&telemetryDB, "telemetry-db", "", "path to the non-content call-metrics SQLite database")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := (config.Loader{EnvFile: envFile}).Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return err
	}
	applyFlagOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		return err
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("starting speech-server",
		"version", version,
		"listen_addr", cfg.ListenAddr,
		"admin_addr", cfg.AdminAddr,
		"metrics_addr", cfg.MetricsAddr,
		"use_tls", cfg.UseTLS,
		"tls_require_client_cert", cfg.TLSRequireClientCert,
	)

	// STEP 1: bind the gRPC port immediately, before the model registry or
	// telemetry store have finished initializing.
	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to bind listener", "error", err)
		return err
	}
	defer lis.Close()
	logger.Info("listener bound, port ready", "addr", lis.Addr().String())

	serverOpts, tlsCleanup, err := buildServerOptions(cfg, logger)
	if err != nil {
		logger.Error("failed to configure TLS", "error", err)
		return err
	}
	if tlsCleanup != nil {
		defer tlsCleanup()
	}

	grpcServer := grpc.NewServer(serverOpts...)
	healthServer := health.NewServer()
	healthgrpc.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	serviceName := speechv1.ServiceDesc.ServiceName
	healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(serviceName, healthgrpc.HealthCheckResponse_NOT_SERVING)

	lazyService := &lazySpeechServer{}
	speechv1.RegisterSpeechServer(grpcServer, lazyService)

	// STEP 2: start serving gRPC in the background while the registry loads.
	serverErr := make(chan error, 1)
	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serverErr <- err
		}
	}()
	logger.Info("gRPC server started (NOT_SERVING while loading models)")

	// STEP 3: load the acoustic model registry.
	reg, err := registry.Load(cfg.KaldiModels, logger)
	if err != nil {
		logger.Error("failed to load model registry", "error", err)
		return err
	}
	logger.Info("model registry loaded", "models", len(reg.List()))

	// STEP 4: wire optional telemetry (non-content call metrics).
	realService := service.New(reg, cfg, logger)
	var store *telemetry.Store
	if cfg.TelemetryDB != "" {
		store, err = telemetry.OpenStore(cfg.TelemetryDB)
		if err != nil {
			logger.Error("failed to open telemetry store", "error", err)
			return err
		}
		defer store.Close()

		shutdownMeter, err := telemetry.InitProvider()
		if err != nil {
			logger.Error("failed to initialize metrics provider", "error", err)
			return err
		}
		defer func() { _ = shutdownMeter(context.Background()) }()

		metrics, err := telemetry.NewMetrics(otel.GetMeterProvider())
		if err != nil {
			logger.Error("failed to construct metrics instruments", "error", err)
			return err
		}
		realService = realService.WithTelemetry(metrics, store)
		logger.Info("telemetry enabled", "db", cfg.TelemetryDB)
	}

	lazyService.setServer(speechv1.SpeechServer(realService))
	healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(serviceName, healthgrpc.HealthCheckResponse_SERVING)
	logger.Info("speech-server ready to serve requests")

	// STEP 5: browser WebSocket gateway, mounted alongside the admin HTTP
	// surface (health/models/metrics) on the same admin address.
	mux := http.NewServeMux()
	mux.Handle("/v1/speech:streamingrecognize", gateway.New(reg, cfg, logger))
	mux.Handle("/", adminhttp.Handler(reg, time.Now()))
	adminServer := &http.Server{Addr: cfg.AdminAddr, Handler: mux}

	go func() {
		logger.Info("admin HTTP surface listening", "addr", cfg.AdminAddr)
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("admin HTTP server stopped", "error", err)
		}
	}()

	// A bare Prometheus endpoint is also served on its own address, for
	// deployments that scrape metrics separately from the admin surface.
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		logger.Info("metrics endpoint listening", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics HTTP server stopped", "error", err)
		}
	}()

	// STEP 6: periodic registry stats, grounded on the pack's robfig/cron
	// scheduling convention (AddFunc + Start/Stop).
	var statsJob *cron.Cron
	if store != nil {
		statsJob = cron.New()
		_, err := statsJob.AddFunc("@every 1h", func() {
			counts, err := store.CountByLanguage(context.Background())
			if err != nil {
				logger.Warn("failed to collect call counts by language", "error", err)
				return
			}
			logger.Info("hourly call volume", "by_language", counts)
		})
		if err != nil {
			logger.Error("failed to schedule registry-stats job", "error", err)
			return err
		}
		statsJob.Start()
		defer statsJob.Stop()
	}

	// STEP 7: certificate change watch, grounded on the pack's fsnotify watch
	// loop. A Write/Create on a TLS file logs a warning to restart the
	// server; certificates are not reloaded in-process.
	var certWatcher *fsnotify.Watcher
	if cfg.UseTLS {
		certWatcher, err = watchTLSFiles(ctx, cfg, logger, func() {
			logger.Warn("TLS certificate files changed on disk; restart speech-server to pick up the new certificate")
		})
		if err != nil {
			logger.Warn("failed to start TLS certificate watcher", "error", err)
		} else {
			defer certWatcher.Close()
		}
	}

	// STEP 8: graceful shutdown.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		logger.Info("shutdown requested, stopping servers")
		healthServer.SetServingStatus(serviceName, healthgrpc.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_NOT_SERVING)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = adminServer.Shutdown(shutdownCtx)
		_ = metricsServer.Shutdown(shutdownCtx)

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
		case <-time.After(5 * time.Second):
			logger.Warn("graceful stop timed out, forcing stop")
			grpcServer.Stop()
		}
		close(shutdownDone)
	}()

	select {
	case err := <-serverErr:
		logger.Error("gRPC server terminated with error", "error", err)
		return err
	case <-shutdownDone:
	}

	logger.Info("speech-server stopped")
	return nil
}

func applyFlagOverrides(cfg *config.Config) {
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if adminAddr != "" {
		cfg.AdminAddr = adminAddr
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if kaldiModels != "" {
		cfg.KaldiModels = kaldiModels
	}
	if telemetryDB != "" {
		cfg.TelemetryDB = telemetryDB
	}
	if useTLS {
		cfg.UseTLS = true
	}
	if tlsServerCert != "" {
		cfg.TLSServerCert = tlsServerCert
	}
	if tlsServerKey != "" {
		cfg.TLSServerKey = tlsServerKey
	}
	if tlsCACert != "" {
		cfg.TLSCACert = tlsCACert
	}
	if tlsRequireClientCert {
		cfg.TLSRequireClientCert = true
	}
}

// buildServerOptions constructs the grpc.ServerOption slice, including TLS
// and optional mutual-TLS client-certificate verification. No example in the
// retrieval pack wires mutual TLS; this function is built directly from
// crypto/tls's standard client-auth API (see DESIGN.md).
func buildServerOptions(cfg config.Config, logger *slog.Logger) (opts []grpc.ServerOption, cleanup func(), err error) {
	opts = append(opts, grpc.MaxRecvMsgSize(32*1024*1024))
	if !cfg.UseTLS {
		return opts, nil, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.TLSServerCert, cfg.TLSServerKey)
	if err != nil {
		return nil, nil, fmt.Errorf("speech-server: load server keypair: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if cfg.TLSCACert != "" {
		caBytes, err := os.ReadFile(cfg.TLSCACert)
		if err != nil {
			return nil, nil, fmt.Errorf("speech-server: read CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, nil, fmt.Errorf("speech-server: no certificates parsed from %s", cfg.TLSCACert)
		}
		tlsConfig.ClientCAs = pool
		if cfg.TLSRequireClientCert {
			tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
		} else {
			tlsConfig.ClientAuth = tls.VerifyClientCertIfGiven
		}
	} else if cfg.TLSRequireClientCert {
		return nil, nil, fmt.Errorf("speech-server: tls_require_client_cert requires tls_ca_cert")
	}

	opts = append(opts, grpc.Creds(credentials.NewTLS(tlsConfig)))
	logger.Info("TLS enabled", "client_auth", tlsConfig.ClientAuth != tls.NoClientCert)
	return opts, nil, nil
}

// watchTLSFiles watches the server cert/key (and CA bundle, if set) for
// changes and invokes onChange when either is modified. speech-server does
// not hot-swap grpc.Creds in place; it logs so an operator-driven restart
// can pick up the new material, mirroring the pack's debounced-restart
// watch loop without the in-process reload the pack's use case allows.
func watchTLSFiles(ctx context.Context, cfg config.Config, logger *slog.Logger, onChange func()) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("speech-server: create TLS watcher: %w", err)
	}

	paths := []string{cfg.TLSServerCert, cfg.TLSServerKey}
	if cfg.TLSCACert != "" {
		paths = append(paths, cfg.TLSCACert)
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := watcher.Add(p); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("speech-server: watch %s: %w", p, err)
		}
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					logger.Info("TLS file changed", "path", event.Name)
					onChange()
				}
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("TLS watcher error", "error", werr)
			}
		}
	}()

	return watcher, nil
}

func newLogger(level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler)
}

func parseLevel(value string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
