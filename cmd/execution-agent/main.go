// Execution agent: tails the proposals NDJSON stream and appends execution decisions.
// Never submits an order itself (spec C8).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shadowtrader/platform/internal/audit"
	"github.com/shadowtrader/platform/internal/config"
	"github.com/shadowtrader/platform/internal/db"
	"github.com/shadowtrader/platform/internal/execagent"
	"github.com/shadowtrader/platform/internal/metrics"
	"github.com/shadowtrader/platform/internal/telemetry"
)

func main() {
	ambient, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load ambient config")
	}

	telemetry.InitLogger(ambient.App.LogLevel, ambient.App.LogFormat)

	cfg := execagent.ConfigFromEnv()
	if cfg.ProposalsPath == "" {
		log.Fatal().Msg("PROPOSALS_PATH is required")
	}

	logger := telemetry.NewAgentLogger(cfg.AgentName, cfg.AgentRole)

	killSwitch := execagent.FileKillSwitch(execagent.KillSwitchPathFromEnv())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agent := execagent.New(cfg, logger, killSwitch).WithAuditLogger(newAuditLogger(ctx, logger))

	metricsPort := config.GetComponentMetricsPort("execution-agent")
	mux := http.NewServeMux()
	metrics.RegisterHandlers(mux)
	metricsSrv := &http.Server{Addr: addrFor(metricsPort), Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- agent.Run(runCtx)
	}()

	logger.Info().Str("proposals_path", cfg.ProposalsPath).Msg("execution agent started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("execution agent run loop exited with error")
		}
	}

	runCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error shutting down metrics server")
	}

	logger.Info().Msg("execution agent stopped")
}

func addrFor(port int) string {
	if port == 0 {
		port = 9101
	}
	return fmt.Sprintf(":%d", port)
}

// newAuditLogger opens the durable audit trail when DATABASE_URL or Vault credentials
// are available, and falls back to a structured-log-only logger otherwise.
func newAuditLogger(ctx context.Context, logger zerolog.Logger) *audit.Logger {
	conn, err := db.New(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("no audit database available, audit events will be logged but not persisted")
		return audit.NewLogger(nil, true)
	}
	return audit.NewLogger(conn, true)
}
