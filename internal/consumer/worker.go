package consumer

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// AssertPaperBrokerBaseURL is the hard boot-time safety gate: this consumer must never be
// wired to a live-trading broker host. Returns the normalized (trailing-slash-trimmed)
// base URL, or an error that callers should treat as fatal at startup.
func AssertPaperBrokerBaseURL(url string) (string, error) {
	raw := strings.TrimSpace(url)
	if raw == "" {
		raw = "https://paper-api.alpaca.markets"
	}
	lowered := strings.ToLower(raw)
	if !strings.Contains(lowered, "paper-api.alpaca.markets") {
		return "", fmt.Errorf("REFUSED: non-paper Alpaca base URL: %q", raw)
	}
	return strings.TrimSuffix(raw, "/"), nil
}

// Message is one unit of work handed to the pool.
type Message struct {
	Ctx     EventContext
	Payload map[string]any
}

// HandleFunc processes one message and reports the outcome reason, or an error for
// messages that should be nacked/retried.
type HandleFunc func(ctx context.Context, msg Message) (UpsertOutcome, error)

// Pool runs HandleFunc over incoming messages with bounded concurrency, mirroring the
// teacher's errgroup-based fan-out.
type Pool struct {
	concurrency int
	handle      HandleFunc
}

// NewPool builds a Pool; concurrency below 1 is clamped to 1.
func NewPool(concurrency int, handle HandleFunc) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{concurrency: concurrency, handle: handle}
}

// Result pairs a message's context with its handling outcome.
type Result struct {
	Ctx     EventContext
	Outcome UpsertOutcome
	Err     error
}

// Run drains messages through the pool, returning one Result per message at the same
// index as its message in the input slice. It stops launching new work once ctx is cancelled but still returns
// results for work already in flight.
func (p *Pool) Run(ctx context.Context, messages []Message) []Result {
	results := make([]Result, len(messages))
	sem := make(chan struct{}, p.concurrency)
	g, gctx := errgroup.WithContext(context.Background())

	for i, m := range messages {
		i, m := i, m
		select {
		case <-ctx.Done():
			results[i] = Result{Ctx: m.Ctx, Err: ctx.Err()}
			continue
		default:
		}
		sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-sem }()
			outcome, err := p.handle(gctx, m)
			results[i] = Result{Ctx: m.Ctx, Outcome: outcome, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
