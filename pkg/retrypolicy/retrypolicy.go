// Package retrypolicy implements the publisher-side retry policy: bounded attempts,
// full-jitter exponential backoff, and gRPC-status-code-based retryable classification.
package retrypolicy

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Config configures the retry loop.
type Config struct {
	MaxRetries     int           // attempts beyond the first
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Deadline       time.Duration // overall budget; 0 means no deadline beyond ctx
}

// DefaultConfig mirrors the platform's exchange-layer defaults, scaled for bus publishes.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Deadline:       30 * time.Second,
	}
}

var retryableCodes = map[codes.Code]bool{
	codes.Unavailable:       true,
	codes.DeadlineExceeded:  true,
	codes.Aborted:           true,
	codes.Internal:          true,
	codes.ResourceExhausted: true,
	codes.Unknown:           true,
}

// IsRetryable classifies err by its gRPC status code. A plain error with no gRPC status
// (e.g. a wrapped stdlib error) is treated as codes.Unknown, which is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return true
	}
	return retryableCodes[st.Code()]
}

// Operation is a unit of work that may fail with a classifiable error.
type Operation func(ctx context.Context) error

// Run executes operation under cfg: retries on IsRetryable errors with full-jitter
// exponential backoff, stops immediately on a non-retryable error, and respects both ctx
// cancellation and cfg.Deadline.
func Run(ctx context.Context, cfg Config, operation Operation) error {
	if cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Deadline)
		defer cancel()
	}

	var lastErr error
	backoff := cfg.InitialBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("retrypolicy: cancelled before attempt %d: %w", attempt+1, ctx.Err())
		default:
		}

		err := operation(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info().Int("attempt", attempt+1).Msg("publish succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			log.Debug().Err(err).Msg("non-retryable error, aborting")
			return err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		wait, jerr := fullJitter(backoff)
		if jerr != nil {
			wait = backoff / 2
		}
		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", cfg.MaxRetries+1).
			Dur("backoff", wait).
			Msg("publish failed, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("retrypolicy: cancelled during backoff: %w", ctx.Err())
		case <-time.After(wait):
		}

		backoff = time.Duration(math.Min(float64(backoff)*2, float64(cfg.MaxBackoff)))
	}

	return fmt.Errorf("retrypolicy: exhausted %d attempts: %w", cfg.MaxRetries+1, lastErr)
}

// fullJitter picks a uniform random duration in [0, cap), per the AWS full-jitter
// backoff algorithm, avoiding thundering-herd retries.
func fullJitter(cap time.Duration) (time.Duration, error) {
	if cap <= 0 {
		return 0, nil
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(cap)))
	if err != nil {
		return 0, err
	}
	return time.Duration(n.Int64()), nil
}
