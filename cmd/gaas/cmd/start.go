package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpadapter "github.com/Suyash-Gaurav/gaas-system/internal/adapter/inbound/http"
	auditstore "github.com/Suyash-Gaurav/gaas-system/internal/adapter/outbound/audit"
	"github.com/Suyash-Gaurav/gaas-system/internal/adapter/outbound/celcond"
	"github.com/Suyash-Gaurav/gaas-system/internal/adapter/outbound/file"
	"github.com/Suyash-Gaurav/gaas-system/internal/adapter/outbound/sqlite"
	"github.com/Suyash-Gaurav/gaas-system/internal/clock"
	"github.com/Suyash-Gaurav/gaas-system/internal/config"
	"github.com/Suyash-Gaurav/gaas-system/internal/service"
	"github.com/Suyash-Gaurav/gaas-system/internal/telemetry"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the governance server",
	Long: `Start the GaaS server.

The server exposes the agent governance API:
  POST /register_agent        Register an agent
  POST /submit_action_log     Submit an action log for compliance checking
  GET  /enforcement_decision  Request an enforcement decision
  POST /upload_policy         Upload or update a policy document
  GET  /compliance_report     Generate a compliance report
  GET  /health                Component health
  GET  /metrics               Prometheus metrics

Examples:
  # Start with config file settings
  gaas start

  # Start with a specific config file
  gaas --config /path/to/gaas.yaml start

  # Start in development mode
  gaas start --dev`,
	RunE: runStart,
}

var devMode bool

func init() {
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (debug logging, open policy uploads)")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	// Load configuration without validation so CLI flags can override first.
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Signal context for graceful shutdown. stop() restores default signal
	// handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logger := setupLogger(cfg)
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("gaas stopped")
	return nil
}

// run wires all components together and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.DevMode {
		logger.Warn("development mode enabled; policy uploads are unauthenticated unless a key hash is configured")
	}

	telemetryShutdown, err := telemetry.Setup(ctx, "gaas", Version, cfg.Telemetry.Enabled)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	clk := clock.System()

	// Outbound stores.
	policyStore, err := file.NewPolicyStore(cfg.Policies.Dir, logger)
	if err != nil {
		return fmt.Errorf("failed to open policy store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.ActionLog.Path), 0o700); err != nil {
		return fmt.Errorf("failed to create action log directory: %w", err)
	}
	actionLogs, err := sqlite.NewActionLogStore(cfg.ActionLog.Path)
	if err != nil {
		return fmt.Errorf("failed to open action log store: %w", err)
	}
	defer func() {
		if err := actionLogs.Close(); err != nil {
			logger.Error("failed to close action log store", "error", err)
		}
	}()
	logger.Info("action log store opened", "path", cfg.ActionLog.Path)

	decisionStore, err := auditstore.NewFileStore(auditstore.FileStoreConfig{
		Dir:           cfg.Audit.Dir,
		RetentionDays: cfg.Audit.RetentionDays,
		MaxFileSizeMB: cfg.Audit.MaxFileSizeMB,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to open decision store: %w", err)
	}
	defer func() {
		if err := decisionStore.Close(); err != nil {
			logger.Error("failed to close decision store", "error", err)
		}
	}()

	// Metrics registry, shared between handler and middleware.
	promRegistry, metrics := httpadapter.NewMetricsRegistry()

	// Async decision audit writer.
	flushInterval, _ := time.ParseDuration(cfg.Audit.FlushInterval)
	sendTimeout, _ := time.ParseDuration(cfg.Audit.SendTimeout)
	auditService := service.NewAuditService(decisionStore, logger,
		service.WithChannelSize(cfg.Audit.ChannelSize),
		service.WithBatchSize(cfg.Audit.BatchSize),
		service.WithFlushInterval(flushInterval),
		service.WithSendTimeout(sendTimeout),
		service.WithDropHook(metrics.AuditDropsTotal.Inc),
	)
	auditService.Start(ctx)
	defer auditService.Stop()

	// Rule condition evaluator.
	celEvaluator, err := celcond.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to create condition evaluator: %w", err)
	}

	// Core services.
	registry := service.NewAgentRegistry(clk)
	compliance := service.NewComplianceService(policyStore, clk, celEvaluator, logger)
	ledger := service.NewHistoryLedger(0)
	enforcement := service.NewEnforcementService(ledger, clk, logger,
		service.WithAuditor(auditService),
		service.WithSuspendHook(registry.Suspend),
	)
	reports := service.NewReportService(actionLogs, clk, logger)

	metrics.ActivePolicies.Set(float64(policyStore.Count()))

	// HTTP API.
	uploadAuth := httpadapter.NewUploadKeyAuth(cfg.Auth.UploadKeyHash, logger)
	if uploadAuth == nil && !cfg.DevMode {
		logger.Warn("no upload key hash configured; policy uploads are unauthenticated")
	}
	handler := httpadapter.NewHandler(
		registry, compliance, enforcement, reports,
		policyStore, actionLogs, clk, metrics, uploadAuth,
	)
	healthChecker := httpadapter.NewHealthChecker(registry, policyStore, auditService, Version)

	readTimeout, _ := time.ParseDuration(cfg.Server.ReadTimeout)
	writeTimeout, _ := time.ParseDuration(cfg.Server.WriteTimeout)
	shutdownTimeout, _ := time.ParseDuration(cfg.Server.ShutdownTimeout)

	server := httpadapter.NewServer(handler, promRegistry, metrics,
		httpadapter.WithAddr(cfg.Server.HTTPAddr),
		httpadapter.WithLogger(logger),
		httpadapter.WithTimeouts(readTimeout, writeTimeout, shutdownTimeout),
		httpadapter.WithHealthChecker(healthChecker),
	)

	logger.Info("gaas server starting",
		"addr", cfg.Server.HTTPAddr,
		"policies", policyStore.Count(),
		"dev_mode", cfg.DevMode,
	)

	return server.Start(ctx)
}

// setupLogger builds the process logger from config. DevMode forces debug.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Server.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

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
