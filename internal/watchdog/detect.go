package watchdog

import "fmt"

// Thresholds match the platform-wide defaults; a Monitor can override them per tenant
// tier in the future, but nothing in this codebase does yet.
const (
	LosingStreakThreshold   = 5
	MinLossPercent          = 0.5 // a loss must exceed 0.5% to count toward the streak
	RapidDrawdownThreshold  = 5.0 // aggregate drawdown %, over the scan window
	WindowMinutes           = 10
	MarketMismatchBuyCount  = 3
)

// DetectLosingStreak walks trades newest-first and flags LOSING_STREAK as soon as
// LosingStreakThreshold consecutive losses accumulate. A non-loss (win, breakeven, or
// a loss under MinLossPercent) breaks the streak immediately.
func DetectLosingStreak(trades []Trade) Result {
	if len(trades) < LosingStreakThreshold {
		return Result{}
	}

	consecutive := 0
	var losingIDs []string
	totalLoss := 0.0

	for _, t := range trades {
		if t.PnLPercent >= -MinLossPercent {
			break
		}
		consecutive++
		losingIDs = append(losingIDs, t.ID)
		totalLoss += t.CurrentPnL

		if consecutive >= LosingStreakThreshold {
			return Result{
				Detected: true,
				Type:     AnomalyLosingStreak,
				Severity: SeverityCritical,
				Description: fmt.Sprintf(
					"detected %d consecutive losing trades within %d minutes, total loss $%.2f",
					consecutive, WindowMinutes, abs(totalLoss),
				),
				Metadata: map[string]any{
					"consecutive_losses": consecutive,
					"losing_trade_ids":    losingIDs,
					"total_loss_usd":      abs(totalLoss),
					"time_window_minutes": WindowMinutes,
				},
				ShouldHaltTrading: true,
			}
		}
	}
	return Result{}
}

// DetectRapidDrawdown aggregates P&L and cost basis across the whole window and flags
// RAPID_DRAWDOWN when the loss is at least RapidDrawdownThreshold percent of cost basis.
func DetectRapidDrawdown(trades []Trade) Result {
	if len(trades) == 0 {
		return Result{}
	}

	totalPnL, totalCostBasis := 0.0, 0.0
	var losing []map[string]any

	for _, t := range trades {
		totalPnL += t.CurrentPnL
		totalCostBasis += t.EntryPrice * t.Quantity
		if t.CurrentPnL < 0 {
			losing = append(losing, map[string]any{
				"id": t.ID, "symbol": t.Symbol, "pnl": t.CurrentPnL, "pnl_percent": t.PnLPercent,
			})
		}
	}

	drawdownPercent := 0.0
	if totalCostBasis > 0 {
		drawdownPercent = (abs(totalPnL) / totalCostBasis) * 100
	}

	if totalPnL >= 0 || drawdownPercent < RapidDrawdownThreshold {
		return Result{}
	}

	if len(losing) > 10 {
		losing = losing[:10]
	}

	return Result{
		Detected: true,
		Type:     AnomalyRapidDrawdown,
		Severity: SeverityHigh,
		Description: fmt.Sprintf(
			"rapid drawdown detected: %.2f%% loss ($%.2f) across %d trades within %d minutes",
			drawdownPercent, abs(totalPnL), len(trades), WindowMinutes,
		),
		Metadata: map[string]any{
			"total_pnl_usd":      totalPnL,
			"drawdown_percent":   drawdownPercent,
			"total_cost_basis":   totalCostBasis,
			"losing_trades":      losing,
			"time_window_minutes": WindowMinutes,
		},
		ShouldHaltTrading: true,
	}
}

// DetectMarketConditionMismatch is observational: it never halts trading. It flags
// MARKET_CONDITION_MISMATCH when the tenant bought into a confirmed negative-gamma
// regime at least MarketMismatchBuyCount times in the last 10 trades.
func DetectMarketConditionMismatch(trades []Trade, negativeGamma bool, netGEX float64) Result {
	if len(trades) == 0 || !negativeGamma {
		return Result{}
	}

	window := trades
	if len(window) > 10 {
		window = window[:10]
	}

	buyCount := 0
	var buys []map[string]any
	for _, t := range window {
		if t.Side == "BUY" {
			buyCount++
			buys = append(buys, map[string]any{"id": t.ID, "symbol": t.Symbol, "side": t.Side})
		}
	}

	if buyCount < MarketMismatchBuyCount {
		return Result{}
	}

	return Result{
		Detected: true,
		Type:     AnomalyMarketMismatch,
		Severity: SeverityMedium,
		Description: fmt.Sprintf(
			"%d BUY trades executed during a negative-gamma regime (net GEX $%.0f); strategy may be fighting market conditions",
			buyCount, netGEX,
		),
		Metadata: map[string]any{
			"buy_count":    buyCount,
			"buy_trades":   buys,
			"spy_net_gex":  netGEX,
		},
		ShouldHaltTrading: false,
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
