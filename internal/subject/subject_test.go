package subject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarket(t *testing.T) {
	s, err := Market("acme", "SPY")
	require.NoError(t, err)
	assert.Equal(t, "market.acme.SPY", s)
}

func TestMarketWildcard(t *testing.T) {
	s, err := MarketWildcard("acme")
	require.NoError(t, err)
	assert.Equal(t, "market.acme.>", s)
}

func TestSignalsV2SeparateNamespace(t *testing.T) {
	v1, err := Signals("acme", "scalper", "SPY")
	require.NoError(t, err)
	v2, err := SignalsV2("acme", "scalper", "SPY")
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)
	assert.Equal(t, "signals.acme.scalper.SPY", v1)
	assert.Equal(t, "signals_v2.acme.scalper.SPY", v2)
}

func TestOrdersFillsOps(t *testing.T) {
	o, err := Orders("acme", "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "orders.acme.acct-1", o)

	f, err := Fills("acme", "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "fills.acme.acct-1", f)

	ops, err := Ops("acme", "execution-agent")
	require.NoError(t, err)
	assert.Equal(t, "ops.acme.execution-agent", ops)
}

func TestTokenRejectsForbiddenChars(t *testing.T) {
	for _, bad := range []string{"a.b", "a*b", "a>b", "   ", ""} {
		_, err := Market(bad, "SPY")
		assert.Error(t, err, "expected error for tenant %q", bad)

		_, err = Market("acme", bad)
		assert.Error(t, err, "expected error for symbol %q", bad)
	}
}

func TestTokenTrimsWhitespace(t *testing.T) {
	s, err := Market("  acme  ", "SPY")
	require.NoError(t, err)
	assert.Equal(t, "market.acme.SPY", s)
}
