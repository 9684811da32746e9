package optionselect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSelectHedgeContractZeroHedgeHolds(t *testing.T) {
	res := SelectHedgeContract(483.2, 0, nil, DTERules{}, time.Now().UTC(), DefaultLiquidityFilters())
	assert.Equal(t, HedgeHold, res.Decision)
	assert.Equal(t, "no_hedge_needed", res.ReasonCode)
}

func TestSelectHedgeContractInvalidUnderlyingPriceHolds(t *testing.T) {
	res := SelectHedgeContract(0, 10, nil, DTERules{}, time.Now().UTC(), DefaultLiquidityFilters())
	assert.Equal(t, HedgeHold, res.Decision)
	assert.Equal(t, "invalid_underlying_price", res.ReasonCode)
}

func TestSelectHedgeContractPicksClosestToATMCall(t *testing.T) {
	now := time.Date(2026, 1, 21, 15, 30, 0, 0, time.UTC)
	contracts := []RawContract{
		{
			"symbol":          "SPY260121C00480000",
			"expiration_date": "2026-01-21",
			"strike_price":    480.0,
			"type":            "call",
			"latestQuote":     map[string]any{"bp": 1.00, "ap": 1.10, "t": "2026-01-21T15:30:00Z"},
			"open_interest":   1200.0,
		},
		{
			"symbol":          "SPY260121C00485000",
			"expiration_date": "2026-01-21",
			"strike_price":    485.0,
			"type":            "call",
			"latestQuote":     map[string]any{"bp": 0.80, "ap": 0.90, "t": "2026-01-21T15:30:00Z"},
			"open_interest":   900.0,
		},
	}

	res := SelectHedgeContract(483.2, 25.0, contracts, DTERules{TargetDTE: 0}, now, DefaultLiquidityFilters())
	assert.Equal(t, HedgeSelect, res.Decision)
	assert.Equal(t, "SPY260121C00485000", res.ContractSymbol)
}

func TestSelectHedgeContractHoldsOnStaleIlliquidContracts(t *testing.T) {
	now := time.Date(2026, 1, 21, 15, 30, 0, 0, time.UTC)
	contracts := []RawContract{
		{
			"symbol":          "SPY...",
			"expiration_date": "2026-01-21",
			"strike_price":    483.0,
			"type":            "put",
			"latestQuote":     map[string]any{"bp": 0.0, "ap": 0.0, "t": "2026-01-21T13:00:00Z"},
		},
	}

	res := SelectHedgeContract(483.2, -10.0, contracts, DTERules{TargetDTE: 0}, now, DefaultLiquidityFilters())
	assert.Equal(t, HedgeHold, res.Decision)
	assert.Equal(t, "no_eligible_contracts", res.ReasonCode)
}

func TestSelectHedgeContractWrongRightRejected(t *testing.T) {
	now := time.Date(2026, 1, 21, 15, 30, 0, 0, time.UTC)
	contracts := []RawContract{
		{
			"symbol":          "SPY-PUT",
			"expiration_date": "2026-01-21",
			"strike_price":    483.0,
			"type":            "put",
			"latestQuote":     map[string]any{"bp": 1.0, "ap": 1.1, "t": "2026-01-21T15:30:00Z"},
			"open_interest":   100.0,
		},
	}
	res := SelectHedgeContract(483.2, 10.0, contracts, DTERules{TargetDTE: 0}, now, DefaultLiquidityFilters())
	assert.Equal(t, HedgeHold, res.Decision)
}

func TestDTERulesAllowedList(t *testing.T) {
	rules := DTERules{AllowedDTEs: []int{0, 1}}
	assert.True(t, rules.Allows(0))
	assert.True(t, rules.Allows(1))
	assert.False(t, rules.Allows(2))
}
