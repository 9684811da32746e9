package watchdog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func losingTrades(n int) []Trade {
	out := make([]Trade, n)
	for i := 0; i < n; i++ {
		out[i] = Trade{ID: "t" + string(rune('0'+i)), PnLPercent: -1.2, CurrentPnL: -120, CreatedAt: time.Now()}
	}
	return out
}

func TestDetectLosingStreakCritical(t *testing.T) {
	result := DetectLosingStreak(losingTrades(5))
	require.True(t, result.Detected)
	assert.Equal(t, AnomalyLosingStreak, result.Type)
	assert.Equal(t, SeverityCritical, result.Severity)
	assert.True(t, result.ShouldHaltTrading)
	assert.Equal(t, 5, result.Metadata["consecutive_losses"])
	assert.InDelta(t, 600.0, result.Metadata["total_loss_usd"], 0.001)
}

func TestDetectLosingStreakBrokenByWin(t *testing.T) {
	trades := []Trade{
		{ID: "t1", PnLPercent: -1.2, CurrentPnL: -120},
		{ID: "t2", PnLPercent: 0.8, CurrentPnL: 80},
		{ID: "t3", PnLPercent: -0.5, CurrentPnL: -50},
		{ID: "t4", PnLPercent: -0.3, CurrentPnL: -30},
		{ID: "t5", PnLPercent: -1.0, CurrentPnL: -100},
	}
	result := DetectLosingStreak(trades)
	assert.False(t, result.Detected)
}

func TestDetectLosingStreakInsufficientTrades(t *testing.T) {
	result := DetectLosingStreak(losingTrades(3))
	assert.False(t, result.Detected)
}

func TestDetectLosingStreakSmallLossesIgnored(t *testing.T) {
	trades := make([]Trade, 10)
	for i := range trades {
		trades[i] = Trade{ID: "t", PnLPercent: -0.2, CurrentPnL: -20}
	}
	result := DetectLosingStreak(trades)
	assert.False(t, result.Detected)
}

func TestDetectRapidDrawdownCritical(t *testing.T) {
	trades := []Trade{
		{ID: "t1", EntryPrice: 1000, Quantity: 10, CurrentPnL: -520, PnLPercent: -5.2},
	}
	result := DetectRapidDrawdown(trades)
	require.True(t, result.Detected)
	assert.Equal(t, AnomalyRapidDrawdown, result.Type)
	assert.Equal(t, SeverityHigh, result.Severity)
	assert.True(t, result.ShouldHaltTrading)
	assert.GreaterOrEqual(t, result.Metadata["drawdown_percent"], RapidDrawdownThreshold)
}

func TestDetectRapidDrawdownBelowThreshold(t *testing.T) {
	trades := []Trade{
		{ID: "t1", EntryPrice: 1000, Quantity: 10, CurrentPnL: -300, PnLPercent: -3.0},
	}
	result := DetectRapidDrawdown(trades)
	assert.False(t, result.Detected)
}

func TestDetectRapidDrawdownWinningTradesNoAnomaly(t *testing.T) {
	trades := []Trade{
		{ID: "t1", EntryPrice: 1000, Quantity: 10, CurrentPnL: 500, PnLPercent: 5.0},
	}
	result := DetectRapidDrawdown(trades)
	assert.False(t, result.Detected)
}

func TestDetectMarketConditionMismatchTriggersOnNegativeGEX(t *testing.T) {
	trades := []Trade{
		{ID: "t1", Symbol: "SPY", Side: "BUY"},
		{ID: "t2", Symbol: "QQQ", Side: "BUY"},
		{ID: "t3", Symbol: "SPY", Side: "BUY"},
		{ID: "t4", Symbol: "SPY", Side: "SELL"},
	}
	result := DetectMarketConditionMismatch(trades, true, -500000)
	require.True(t, result.Detected)
	assert.Equal(t, AnomalyMarketMismatch, result.Type)
	assert.Equal(t, SeverityMedium, result.Severity)
	assert.False(t, result.ShouldHaltTrading)
	assert.Equal(t, 3, result.Metadata["buy_count"])
}

func TestDetectMarketConditionMismatchSkipsWithoutNegativeRegime(t *testing.T) {
	trades := []Trade{
		{ID: "t1", Side: "BUY"}, {ID: "t2", Side: "BUY"}, {ID: "t3", Side: "BUY"},
	}
	result := DetectMarketConditionMismatch(trades, false, 100000)
	assert.False(t, result.Detected)
}

func TestDetectMarketConditionMismatchBelowBuyThreshold(t *testing.T) {
	trades := []Trade{
		{ID: "t1", Side: "BUY"}, {ID: "t2", Side: "SELL"},
	}
	result := DetectMarketConditionMismatch(trades, true, -100000)
	assert.False(t, result.Detected)
}
