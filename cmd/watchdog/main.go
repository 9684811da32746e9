// Watchdog: periodically sweeps every tenant's recent shadow trades for anomalies
// (losing streaks, rapid drawdown, market-condition mismatch) and fires the kill switch
// when one crosses a critical threshold (spec C13).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/shadowtrader/platform/internal/audit"
	"github.com/shadowtrader/platform/internal/config"
	"github.com/shadowtrader/platform/internal/db"
	"github.com/shadowtrader/platform/internal/firestorex"
	"github.com/shadowtrader/platform/internal/metrics"
	"github.com/shadowtrader/platform/internal/telemetry"
	"github.com/shadowtrader/platform/internal/watchdog"
)

func main() {
	ambient, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load ambient config")
	}

	telemetry.InitLogger(ambient.App.LogLevel, ambient.App.LogFormat)
	logger := telemetry.NewComponentLogger("watchdog")

	tenantIDs := tenantIDsFromEnv()
	if len(tenantIDs) == 0 {
		log.Fatal().Msg("WATCHDOG_TENANT_IDS is required (comma-separated list)")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     ambient.Redis.GetRedisAddr(),
		Password: ambient.Redis.Password,
		DB:       ambient.Redis.DB,
	})
	defer redisClient.Close()

	window := watchdog.NewRedisTradeWindow(redisClient, time.Hour)
	regime := watchdog.NewRedisRegimeCache(redisClient)

	var docClient firestorex.Client
	if ambient.GCP.ProjectID == "" {
		logger.Warn().Msg("no GCP project id configured, using in-memory document store")
		docClient = firestorex.NewMemoryClient()
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		docClient, err = firestorex.NewRealClient(ctx, ambient.GCP.ProjectID, "")
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create Firestore client")
		}
	}

	killSwitch := watchdog.NewKillSwitch(docClient)
	monitor := watchdog.NewMonitor(window, regime, killSwitch, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	auditLogger := newAuditLogger(ctx)

	metricsPort := config.GetComponentMetricsPort("watchdog")
	mux := http.NewServeMux()
	metrics.RegisterHandlers(mux)
	metricsSrv := &http.Server{Addr: fmt.Sprintf(":%d", metricsPort), Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	scanInterval := ambient.Watchdog.ScanInterval()
	ticker := time.NewTicker(scanInterval)
	defer ticker.Stop()

	logger.Info().Strs("tenant_ids", tenantIDs).Dur("scan_interval", scanInterval).Msg("watchdog started")

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				outcomes := monitor.ScanTenants(ctx, tenantIDs)
				for _, o := range outcomes {
					if o.Critical != nil {
						logger.Error().Str("tenant_id", o.TenantID).Str("status", o.Status).Str("anomaly", string(o.Critical.Type)).Msg("watchdog critical finding")
						if err := auditLogger.LogKillSwitchEvent(ctx, audit.EventTypeKillSwitchActivated, o.TenantID, string(o.Critical.Type), o.Critical.Description, true); err != nil {
							logger.Error().Err(err).Msg("failed to record kill-switch audit event")
						}
					} else if len(o.Warnings) > 0 {
						logger.Warn().Str("tenant_id", o.TenantID).Str("status", o.Status).Int("warnings", len(o.Warnings)).Msg("watchdog warning")
						for _, w := range o.Warnings {
							if err := auditLogger.LogKillSwitchEvent(ctx, audit.EventTypeWatchdogWarning, o.TenantID, string(w.Type), w.Description, false); err != nil {
								logger.Error().Err(err).Msg("failed to record watchdog warning audit event")
							}
						}
					}
				}
			}
		}
	}()

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

	logger.Info().Msg("watchdog stopped")
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

func tenantIDsFromEnv() []string {
	raw := strings.TrimSpace(os.Getenv("WATCHDOG_TENANT_IDS"))
	if raw == "" {
		return nil
	}
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
