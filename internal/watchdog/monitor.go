package watchdog

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Monitor wires the rolling-window cache, the regime cache, and the kill-switch writer
// into one per-tenant sweep. Detection order is losing streak, then rapid drawdown,
// then market-condition mismatch; the first detector that sets ShouldHaltTrading wins
// and the rest are reported as warnings if they also fired.
type Monitor struct {
	Window     TradeWindowCache
	Regime     RegimeCache
	KillSwitch *KillSwitch
	Logger     zerolog.Logger
	Now        func() time.Time
}

// NewMonitor builds a Monitor; pass time.Now for Now in production, a fixed clock in
// tests.
func NewMonitor(window TradeWindowCache, regime RegimeCache, killSwitch *KillSwitch, logger zerolog.Logger) *Monitor {
	return &Monitor{Window: window, Regime: regime, KillSwitch: killSwitch, Logger: logger, Now: time.Now}
}

// ScanTenant runs one sweep for a single tenant: skip if already disabled, fetch the
// rolling window, run all three detectors, and activate the kill-switch on the first
// critical one found.
func (m *Monitor) ScanTenant(ctx context.Context, tenantID string) (ScanOutcome, error) {
	now := m.Now()

	disabled, err := m.KillSwitch.IsDisabled(ctx, tenantID)
	if err != nil {
		return ScanOutcome{}, fmt.Errorf("watchdog: check kill-switch state for %s: %w", tenantID, err)
	}
	if disabled {
		m.Logger.Info().Str("tenant_id", tenantID).Msg("trading already disabled, skipping monitoring")
		return ScanOutcome{TenantID: tenantID, Status: StatusAlreadyDisabled}, nil
	}

	trades, err := m.Window.Recent(ctx, tenantID, WindowMinutes*time.Minute, 100)
	if err != nil {
		return ScanOutcome{}, fmt.Errorf("watchdog: fetch recent trades for %s: %w", tenantID, err)
	}
	if len(trades) == 0 {
		return ScanOutcome{TenantID: tenantID, Status: StatusNoTrades}, nil
	}

	netGEX, haveRegime, err := m.Regime.NetGEX(ctx)
	if err != nil {
		m.Logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("failed to read regime cache, skipping condition-mismatch check")
	}

	losingStreak := DetectLosingStreak(trades)
	rapidDrawdown := DetectRapidDrawdown(trades)
	mismatch := DetectMarketConditionMismatch(trades, haveRegime && netGEX < 0, netGEX)

	anomalies := []Result{losingStreak, rapidDrawdown, mismatch}

	var critical *Result
	for i := range anomalies {
		if anomalies[i].Detected && anomalies[i].ShouldHaltTrading {
			critical = &anomalies[i]
			break
		}
	}

	if critical != nil {
		m.Logger.Warn().Str("tenant_id", tenantID).Str("anomaly_type", string(critical.Type)).Msg("critical anomaly detected, activating kill-switch")
		explanation := fmt.Sprintf("Agent shut down because %s", critical.Description)
		if _, _, err := m.KillSwitch.Activate(ctx, tenantID, *critical, explanation, now); err != nil {
			return ScanOutcome{}, fmt.Errorf("watchdog: activate kill-switch for %s: %w", tenantID, err)
		}
		var others []Result
		for i := range anomalies {
			if &anomalies[i] != critical && anomalies[i].Detected {
				others = append(others, anomalies[i])
			}
		}
		return ScanOutcome{TenantID: tenantID, Status: StatusKillSwitchFired, Critical: critical, Warnings: others}, nil
	}

	var warnings []Result
	for _, a := range anomalies {
		if a.Detected && !a.ShouldHaltTrading {
			warnings = append(warnings, a)
			if err := m.KillSwitch.LogWarning(ctx, tenantID, a, now); err != nil {
				m.Logger.Warn().Err(err).Str("tenant_id", tenantID).Str("anomaly_type", string(a.Type)).Msg("failed to log warning event")
			}
		}
	}
	if len(warnings) > 0 {
		return ScanOutcome{TenantID: tenantID, Status: StatusWarningsDetected, Warnings: warnings}, nil
	}

	return ScanOutcome{TenantID: tenantID, Status: StatusAllClear}, nil
}

// ScanTenants runs ScanTenant across every tenant id given, continuing past
// per-tenant errors so one bad tenant doesn't stop the sweep.
func (m *Monitor) ScanTenants(ctx context.Context, tenantIDs []string) []ScanOutcome {
	out := make([]ScanOutcome, 0, len(tenantIDs))
	for _, id := range tenantIDs {
		res, err := m.ScanTenant(ctx, id)
		if err != nil {
			m.Logger.Error().Err(err).Str("tenant_id", id).Msg("watchdog sweep error")
			out = append(out, ScanOutcome{TenantID: id, Status: "ERROR"})
			continue
		}
		out = append(out, res)
	}
	return out
}
