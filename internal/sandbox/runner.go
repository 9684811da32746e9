package sandbox

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// RunnerError marks a sandbox lifecycle failure (bundle creation, boot, connect, or
// invalid guest output).
type RunnerError struct{ msg string }

func (e *RunnerError) Error() string { return e.msg }

func runnerErrf(format string, args ...any) error {
	return &RunnerError{msg: fmt.Sprintf(format, args...)}
}

// RunInput bundles one sandbox execution request.
type RunInput struct {
	StrategySource string
	Entrypoint     string
	StrategyID     string
	Events         []MarketEvent
	InitialLogWait time.Duration // default 2s
}

// Runner is the host-side orchestrator: package, stage, boot, stream, collect. It never
// imports or executes strategy code itself — that is Provider's guest's job.
type Runner struct {
	Provider VMProvider
	Logger   zerolog.Logger
	breaker  *gobreaker.CircuitBreaker
}

// NewRunner builds a Runner over the given provider, guarding boot attempts with a
// circuit breaker so a provider stuck failing to boot stops eating every run request.
func NewRunner(provider VMProvider, logger zerolog.Logger) *Runner {
	r := &Runner{Provider: provider, Logger: logger}
	r.breaker = NewBootBreaker(DefaultCircuitBreakerSettings(), func(from, to gobreaker.State) {
		r.Logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("sandbox boot breaker state change")
	})
	return r
}

// Run executes the full C12 lifecycle and returns every validated order intent the
// guest produced, in arrival order.
func (r *Runner) Run(ctx context.Context, in RunInput) ([]OrderIntent, error) {
	bundle, err := CreateBundle(in.StrategySource, in.Entrypoint, in.StrategyID, "")
	if err != nil {
		return nil, runnerErrf("package bundle: %v", err)
	}
	r.Logger.Info().Str("strategy_id", in.StrategyID).Str("sha256", bundle.SHA256).Msg("strategy bundle packaged")

	if err := r.Provider.Stage(ctx, bundle); err != nil {
		return nil, runnerErrf("stage bundle: %v", err)
	}
	defer func() { _ = r.Provider.Stop(ctx) }()

	if _, err := r.breaker.Execute(func() (any, error) {
		return nil, r.Provider.Boot(ctx)
	}); err != nil {
		return nil, runnerErrf("boot guest: %v", err)
	}

	session, err := r.Provider.Connect(ctx)
	if err != nil {
		return nil, runnerErrf("connect guest channel: %v", err)
	}
	defer func() { _ = session.Close() }()

	waitDeadline := in.InitialLogWait
	if waitDeadline <= 0 {
		waitDeadline = 2 * time.Second
	}

	// A single goroutine owns all reads off the session for its whole lifetime, so the
	// initial-log drain (which is allowed to time out mid-read) never races a later read
	// against the same bufio.Reader.
	lines := startLineReader(session)

	var pending *lineResult
	drainInitialLogs(lines, waitDeadline, r.Logger, &pending)

	toSend := make([]any, 0, len(in.Events)+1)
	for _, ev := range in.Events {
		toSend = append(toSend, ev)
	}
	toSend = append(toSend, NewShutdownMessage())
	if err := WriteNDJSON(session, toSend...); err != nil {
		return nil, runnerErrf("stream events: %v", err)
	}

	var intents []OrderIntent
	consume := func(res lineResult) (stop bool, err error) {
		if len(res.line) > 0 {
			var obj map[string]any
			if jerr := json.Unmarshal(res.line, &obj); jerr == nil {
				switch obj["type"] {
				case "order_intent":
					intent, verr := ParseOrderIntent(obj)
					if verr != nil {
						return true, runnerErrf("invalid order_intent from guest: %v", verr)
					}
					intents = append(intents, intent)
				case "log":
					r.logGuestLine(obj)
				}
			}
		}
		if res.err != nil {
			return true, nil
		}
		return false, nil
	}

	if pending != nil {
		if stop, err := consume(*pending); stop {
			return intents, err
		}
	}
	for res := range lines {
		if stop, err := consume(res); stop {
			return intents, err
		}
	}

	return intents, nil
}

type lineResult struct {
	line []byte
	err  error
}

// startLineReader reads '\n'-terminated lines off r until EOF/error, forwarding each to
// the returned channel, then closes it. It is the only goroutine that ever calls Read on
// r, so callers may freely stop consuming mid-stream without risking a concurrent read.
func startLineReader(r io.Reader) <-chan lineResult {
	out := make(chan lineResult)
	go func() {
		defer close(out)
		reader := bufio.NewReader(r)
		for {
			line, err := reader.ReadBytes('\n')
			out <- lineResult{line: line, err: err}
			if err != nil {
				return
			}
		}
	}()
	return out
}

func drainInitialLogs(lines <-chan lineResult, deadline time.Duration, logger zerolog.Logger, pending **lineResult) {
	stop := time.After(deadline)
	for {
		select {
		case res, ok := <-lines:
			if !ok {
				return
			}
			var obj map[string]any
			if len(res.line) > 0 {
				if jerr := json.Unmarshal(res.line, &obj); jerr == nil && obj["type"] == "log" {
					if msg, ok := obj["message"].(string); ok {
						logger.Debug().Str("guest_log", msg).Msg("guest startup log")
					}
					if res.err != nil {
						*pending = &res
						return
					}
					continue
				}
			}
			*pending = &res
			return
		case <-stop:
			return
		}
	}
}

func (r *Runner) logGuestLine(obj map[string]any) {
	level, _ := obj["level"].(string)
	message, _ := obj["message"].(string)
	evt := r.Logger.Info()
	switch level {
	case "error":
		evt = r.Logger.Error()
	case "warn":
		evt = r.Logger.Warn()
	case "debug":
		evt = r.Logger.Debug()
	}
	evt.Str("source", "guest").Msg(message)
}
