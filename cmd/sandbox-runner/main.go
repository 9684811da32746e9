// Sandbox runner: the host-side process that packages a strategy, boots it in an
// isolated guest, streams market events to it, and collects the order intents it
// proposes (spec C12). Never submits an order itself.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shadowtrader/platform/internal/audit"
	"github.com/shadowtrader/platform/internal/config"
	"github.com/shadowtrader/platform/internal/db"
	"github.com/shadowtrader/platform/internal/metrics"
	"github.com/shadowtrader/platform/internal/sandbox"
	"github.com/shadowtrader/platform/internal/telemetry"
)

// runRequest is the wire shape a caller publishes on the run-request subject.
type runRequest struct {
	StrategySource string                `json:"strategy_source"`
	Entrypoint     string                `json:"entrypoint"`
	StrategyID     string                `json:"strategy_id"`
	Events         []sandbox.MarketEvent `json:"events"`
}

type runResponse struct {
	OrderIntents []sandbox.OrderIntent `json:"order_intents"`
	Error        string                `json:"error,omitempty"`
}

const runRequestSubject = "sandbox.run"

func main() {
	ambient, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load ambient config")
	}

	telemetry.InitLogger(ambient.App.LogLevel, ambient.App.LogFormat)
	logger := telemetry.NewComponentLogger("sandbox-runner")

	guestBinary := strings.TrimSpace(os.Getenv("SANDBOX_GUEST_BINARY"))
	if guestBinary == "" {
		log.Fatal().Msg("SANDBOX_GUEST_BINARY is required")
	}
	var guestArgs []string
	if raw := strings.TrimSpace(os.Getenv("SANDBOX_GUEST_ARGS")); raw != "" {
		guestArgs = strings.Fields(raw)
	}

	runTimeout := time.Duration(ambient.Sandbox.RunTimeoutS) * time.Second
	if runTimeout <= 0 {
		runTimeout = 30 * time.Second
	}

	nc, err := nats.Connect(ambient.NATS.URL)
	if err != nil {
		log.Fatal().Err(err).Str("url", ambient.NATS.URL).Msg("failed to connect to NATS")
	}
	defer nc.Close()

	auditLogger := newAuditLogger(context.Background())

	sub, err := nc.QueueSubscribe(runRequestSubject, "sandbox-runner", func(msg *nats.Msg) {
		handleRunRequest(msg, guestBinary, guestArgs, runTimeout, logger, auditLogger)
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to run-request subject")
	}
	defer sub.Unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsPort := config.GetComponentMetricsPort("sandbox-runner")
	mux := http.NewServeMux()
	metrics.RegisterHandlers(mux)
	metricsSrv := &http.Server{Addr: fmt.Sprintf(":%d", metricsPort), Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	logger.Info().Str("subject", runRequestSubject).Str("guest_binary", guestBinary).Msg("sandbox runner started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info().Msg("shutdown signal received")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error shutting down metrics server")
	}

	logger.Info().Msg("sandbox runner stopped")
}

func handleRunRequest(msg *nats.Msg, guestBinary string, guestArgs []string, runTimeout time.Duration, logger zerolog.Logger, auditLogger *audit.Logger) {
	var req runRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		respond(msg, runResponse{Error: fmt.Sprintf("malformed run request: %v", err)}, logger)
		return
	}

	provider := &sandbox.ProcessProvider{GuestBinary: guestBinary, GuestArgs: guestArgs}
	runner := sandbox.NewRunner(provider, logger.With().Str("strategy_id", req.StrategyID).Logger())

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	intents, err := runner.Run(ctx, sandbox.RunInput{
		StrategySource: req.StrategySource,
		Entrypoint:     req.Entrypoint,
		StrategyID:     req.StrategyID,
		Events:         req.Events,
	})
	if err != nil {
		logger.Error().Err(err).Str("strategy_id", req.StrategyID).Msg("sandbox run failed")
		if auditErr := auditLogger.LogSandboxRun(ctx, req.StrategyID, 0, false, err.Error()); auditErr != nil {
			logger.Error().Err(auditErr).Msg("failed to record sandbox-run audit event")
		}
		respond(msg, runResponse{Error: err.Error()}, logger)
		return
	}

	if auditErr := auditLogger.LogSandboxRun(ctx, req.StrategyID, len(intents), true, ""); auditErr != nil {
		logger.Error().Err(auditErr).Msg("failed to record sandbox-run audit event")
	}

	respond(msg, runResponse{OrderIntents: intents}, logger)
}

// newAuditLogger opens the durable audit trail when DATABASE_URL or Vault credentials
// are available, and falls back to a structured-log-only logger otherwise.
func newAuditLogger(ctx context.Context) *audit.Logger {
	conn, err := db.New(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("no audit database available, audit events will be logged but not persisted")
		return audit.NewLogger(nil, true)
	}
	return audit.NewLogger(conn, true)
}

func respond(msg *nats.Msg, resp runResponse, logger zerolog.Logger) {
	if msg.Reply == "" {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		logger.Error().Err(err).Msg("failed to marshal run response")
		return
	}
	if err := msg.Respond(raw); err != nil {
		logger.Error().Err(err).Msg("failed to send run response")
	}
}
