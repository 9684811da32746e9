// Package freshness decides FRESH / STALE / MISSING for any timestamped stream.
//
// Pure, no I/O: every function here is a deterministic function of its arguments
// plus an optional caller-supplied "now", so callers in tests never depend on the
// wall clock.
package freshness

import "time"

// ReasonCode classifies the outcome of a freshness check.
type ReasonCode string

const (
	ReasonFresh            ReasonCode = "FRESH"
	ReasonStaleData        ReasonCode = "STALE_DATA"
	ReasonMissingTimestamp ReasonCode = "MISSING_TIMESTAMP"
)

// Check is the result of evaluating freshness for one timestamped stream.
type Check struct {
	OK           bool
	ReasonCode   ReasonCode
	LatestTSUTC  *time.Time
	NowUTC       time.Time
	Age          *time.Duration
	StaleAfter   time.Duration
	Source       string
	AssumedUTC   bool
	AgeSeconds   *float64
	ThresholdSec float64
}

// coerceUTC normalizes t to UTC. Naive-equivalent Go times (those not already in
// time.UTC) are treated as already representing UTC wall-clock values, matching the
// "naive timestamps assumed UTC" rule: Go has no naive/aware distinction, so the
// signal we use is whether the location is exactly time.UTC already.
func coerceUTC(t time.Time) (utc time.Time, assumedUTC bool) {
	if t.Location() == time.UTC {
		return t, false
	}
	// Any other location (including time.Local) is reinterpreted as a UTC wall clock,
	// not converted, mirroring Python's "naive datetimes are assumed to already be UTC".
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, mo, d, h, mi, s, t.Nanosecond(), time.UTC), true
}

// LatestTimestamp extracts the maximum timestamp from a slice via the supplied
// accessor, returning (zero, false) for an empty slice.
func LatestTimestamp[T any](items []T, ts func(T) time.Time) (time.Time, bool) {
	var (
		latest time.Time
		found  bool
	)
	for _, item := range items {
		t := ts(item)
		if !found || t.After(latest) {
			latest = t
			found = true
		}
	}
	return latest, found
}

// StaleAfterForBarInterval returns multiplier*barInterval, falling back to a
// multiplier of 2 when multiplier <= 0.
func StaleAfterForBarInterval(barInterval time.Duration, multiplier float64) time.Duration {
	if multiplier <= 0 {
		multiplier = 2.0
	}
	seconds := barInterval.Seconds() * multiplier
	if seconds < 0 {
		seconds = 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// CheckFreshness evaluates freshness of latestTS against staleAfter, as of now
// (defaulting to time.Now().UTC() when now is nil).
func CheckFreshness(latestTS *time.Time, staleAfter time.Duration, now *time.Time, source string) Check {
	nowUTC := time.Now().UTC()
	if now != nil {
		u, _ := coerceUTC(*now)
		nowUTC = u
	}

	if latestTS == nil {
		return Check{
			OK:           false,
			ReasonCode:   ReasonMissingTimestamp,
			NowUTC:       nowUTC,
			StaleAfter:   staleAfter,
			Source:       source,
			ThresholdSec: staleAfter.Seconds(),
		}
	}

	latestUTC, assumedUTC := coerceUTC(*latestTS)
	age := nowUTC.Sub(latestUTC)
	ok := age <= staleAfter
	reason := ReasonFresh
	if !ok {
		reason = ReasonStaleData
	}
	ageSeconds := age.Seconds()

	return Check{
		OK:           ok,
		ReasonCode:   reason,
		LatestTSUTC:  &latestUTC,
		NowUTC:       nowUTC,
		Age:          &age,
		StaleAfter:   staleAfter,
		Source:       source,
		AssumedUTC:   assumedUTC,
		AgeSeconds:   &ageSeconds,
		ThresholdSec: staleAfter.Seconds(),
	}
}
