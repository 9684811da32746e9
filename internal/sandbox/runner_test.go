package sandbox

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newDuplex gives the test a readable/writable view of "the guest side" while the
// Runner talks to the other end.
func newDuplex() (GuestSession, *bufio.Reader, io.WriteCloser) {
	hostR, guestW := io.Pipe()
	guestR, hostW := io.Pipe()
	host := &pipeGuestSession{r: hostR, w: hostW}
	return host, bufio.NewReader(guestR), guestW
}

func writeStrategyFile(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "user_strategy.py")
	require.NoError(t, os.WriteFile(path, []byte("# noop strategy\n"), 0o644))
	return path
}

func TestRunnerRunStreamsEventsAndCollectsIntents(t *testing.T) {
	strategyPath := writeStrategyFile(t)
	hostSession, guestRead, guestWrite := newDuplex()
	provider := &FakeProvider{Session: hostSession}
	runner := NewRunner(provider, zerolog.New(io.Discard))

	done := make(chan error, 1)
	go func() {
		defer guestWrite.Close()
		// Drain events + shutdown the guest receives.
		for {
			line, err := guestRead.ReadBytes('\n')
			if len(line) > 0 {
				var obj map[string]any
				_ = json.Unmarshal(line, &obj)
				if obj["type"] == "shutdown" {
					break
				}
			}
			if err != nil {
				break
			}
		}
		intent := OrderIntent{
			Protocol: ProtocolVersion, Type: "order_intent",
			IntentID: "intent-1", EventID: "evt-1", TS: time.Now().UTC().Format(time.RFC3339Nano),
			Symbol: "SPY", Side: "buy", Qty: 1, OrderType: "market",
		}
		b, _ := json.Marshal(intent)
		done <- writeLine(guestWrite, b)
	}()

	events := []MarketEvent{NewMarketEvent("evt-1", "SPY", "test", map[string]any{"price": 500.0}, time.Now())}
	intents, err := runner.Run(context.Background(), RunInput{
		StrategySource: strategyPath,
		Events:         events,
		InitialLogWait: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, <-done)

	require.Len(t, intents, 1)
	assert.Equal(t, "intent-1", intents[0].IntentID)
	assert.Equal(t, "buy", intents[0].Side)
	assert.Equal(t, 1, provider.Booted)
	assert.Equal(t, 1, provider.Stopped)
	assert.Len(t, provider.Staged, 1)
}

func TestRunnerRunRejectsMalformedIntent(t *testing.T) {
	strategyPath := writeStrategyFile(t)
	hostSession, guestRead, guestWrite := newDuplex()
	provider := &FakeProvider{Session: hostSession}
	runner := NewRunner(provider, zerolog.New(io.Discard))

	go func() {
		defer guestWrite.Close()
		for {
			line, err := guestRead.ReadBytes('\n')
			if len(line) > 0 {
				var obj map[string]any
				_ = json.Unmarshal(line, &obj)
				if obj["type"] == "shutdown" {
					break
				}
			}
			if err != nil {
				break
			}
		}
		_ = writeLine(guestWrite, []byte(`{"protocol":"v1","type":"order_intent","intent_id":"bad id","qty":1}`))
	}()

	_, err := runner.Run(context.Background(), RunInput{
		StrategySource: strategyPath,
		InitialLogWait: 10 * time.Millisecond,
	})
	assert.Error(t, err)
}

func writeLine(w io.Writer, b []byte) error {
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err := w.Write([]byte("\n"))
	return err
}
