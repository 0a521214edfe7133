package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/sentinel-intercept/proxy/internal/adapter/inbound/mitmproxy"
	"github.com/sentinel-intercept/proxy/internal/config"
	"github.com/sentinel-intercept/proxy/internal/domain/cookiejar"
	"github.com/sentinel-intercept/proxy/internal/domain/eventbus"
	"github.com/sentinel-intercept/proxy/internal/domain/history"
	"github.com/sentinel-intercept/proxy/internal/domain/intercept"
	"github.com/sentinel-intercept/proxy/internal/domain/rules"
	"github.com/sentinel-intercept/proxy/internal/domain/spider"
	"github.com/sentinel-intercept/proxy/internal/domain/wsobserver"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the proxy headless on the configured port",
	Long: `Run starts the Proxy Engine: CONNECT-tunneling TLS termination with a
locally generated root CA, the Intercept Gate, Rule Engine, Cookie overlay,
passive scanner, History, and Spider, all wired to a single Event Bus.

SIGINT/SIGTERM trigger a graceful shutdown (spec.md §5): new connections are
refused, in-flight flows get up to shutdown_drain to finish, then remaining
connections are force-closed.

Examples:
  sentinel-proxy run
  sentinel-proxy --config /path/to/sentinel-proxy.yaml run`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	rulesPath := cfg.Rules.Path
	if stateFilePath != "" {
		rulesPath = stateFilePath
	}

	logLevel := parseLogLevel(cfg.Server.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()
	go func() {
		<-ctx.Done()
		stop() // restore default signal handling: a second Ctrl+C hard-kills.
	}()

	pidPath := pidFilePath()
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("failed to write PID file", "path", pidPath, "error", err)
	} else {
		defer os.Remove(pidPath)
	}

	if err := serve(ctx, cfg, rulesPath, logger); err != nil {
		return err
	}
	logger.Info("sentinel-proxy stopped")
	return nil
}

// serve wires every collaborator into a mitmproxy.Engine and runs the
// listener until ctx is cancelled.
func serve(ctx context.Context, cfg *config.ServerConfig, rulesPath string, logger *slog.Logger) error {
	store, err := rules.NewStore(rulesPath)
	if err != nil {
		return fmt.Errorf("open rules store: %w", err)
	}
	if store.Port() != 0 && cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = fmt.Sprintf("127.0.0.1:%d", store.Port())
	}

	caDir := expandHome(cfg.TLSInspection.CADir)
	caManager, err := mitmproxy.NewCAManager(mitmproxy.CAConfig{
		CertFile:      filepath.Join(caDir, "ca-cert.pem"),
		KeyFile:       filepath.Join(caDir, "ca-key.pem"),
		Organization:  "Sentinel Intercept Proxy",
		ValidityYears: 10,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize root CA: %w", err)
	}
	certCache := mitmproxy.NewCertCache(caManager, cfg.TLSInspection.CertTTL, logger)

	bus := eventbus.New()
	gate := intercept.New(cfg.Intercept.Deadline)
	cookies := cookiejar.New()
	hist := history.New(cfg.History.Capacity)
	sp := spider.New()
	ws := wsobserver.NewManager()

	engine := mitmproxy.New(certCache, gate, store, cookies, hist, bus, sp, ws,
		cfg.Server.UpstreamTimeout, logger)

	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		metrics := mitmproxy.NewMetrics(reg)
		unsubscribe := metrics.Subscribe(bus)
		defer unsubscribe()

		feed := mitmproxy.NewLiveFeed(bus, logger, engine.TogglePause, engine.SetInterceptEnabled)
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsMux.Handle("/events", feed)
		metricsServer := &http.Server{Addr: cfg.Metrics.Addr, Handler: metricsMux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
		defer metricsServer.Close()
		logger.Info("metrics and live feed listening", "addr", cfg.Metrics.Addr)
	}

	server := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("sentinel-proxy listening",
			"addr", cfg.Server.ListenAddr,
			"rules", rulesPath,
			"ca_dir", caDir,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down", "drain", cfg.Server.ShutdownDrain)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownDrain)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("forcing close after drain timeout", "error", err)
			server.Close()
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// expandHome resolves a leading "~" to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
