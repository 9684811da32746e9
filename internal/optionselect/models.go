// Package optionselect implements the deterministic option contract selector
// (spec §4.C9): a pure ranking function over an option chain plus quote snapshots,
// and a hedging-oriented liquidity-gated variant that can return HOLD.
package optionselect

import (
	"time"
)

// Right distinguishes calls from puts. Lowercase to match the wire/quote-provider
// convention this package was grounded on.
type Right string

const (
	RightCall Right = "call"
	RightPut  Right = "put"
)

// Contract is one leg of an option chain.
type Contract struct {
	Symbol           string
	UnderlyingSymbol string
	ExpirationDate   time.Time
	Strike           float64
	Right            Right
}

// QuoteMetrics holds a snapshot's parsed bid/ask/size/volume/open-interest, each
// optional since provider payloads are inconsistently populated; missing is
// represented as a nil pointer, never zero, so ranking can tell "unknown" from "none".
type QuoteMetrics struct {
	Bid          *float64
	Ask          *float64
	BidSize      *float64
	AskSize      *float64
	Volume       *float64
	OpenInterest *float64
	SnapshotTime *string
}

// Mid is (bid+ask)/2, or nil if either side is missing or non-positive.
func (q QuoteMetrics) Mid() *float64 {
	if q.Bid == nil || q.Ask == nil || *q.Bid <= 0 || *q.Ask <= 0 {
		return nil
	}
	v := (*q.Bid + *q.Ask) / 2.0
	return &v
}

// Spread is ask-bid, or nil if either side is missing or non-positive.
func (q QuoteMetrics) Spread() *float64 {
	if q.Bid == nil || q.Ask == nil || *q.Bid <= 0 || *q.Ask <= 0 {
		return nil
	}
	v := *q.Ask - *q.Bid
	return &v
}

// RelSpread is Spread/Mid, or nil if either is unavailable or mid is non-positive.
func (q QuoteMetrics) RelSpread() *float64 {
	mid := q.Mid()
	spread := q.Spread()
	if mid == nil || spread == nil || *mid <= 0 {
		return nil
	}
	v := *spread / *mid
	return &v
}

// TotalSize is bid_size+ask_size, treating a missing side as zero.
func (q QuoteMetrics) TotalSize() float64 {
	var total float64
	if q.BidSize != nil {
		total += *q.BidSize
	}
	if q.AskSize != nil {
		total += *q.AskSize
	}
	return total
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// SelectedContract is the outcome of the primary ranking selector.
type SelectedContract struct {
	ContractSymbol   string
	UnderlyingSymbol string
	Right            Right
	Strike           float64
	ExpirationDate   time.Time
	DTE              int
	UnderlyingPrice  float64
	Quote            QuoteMetrics
	RawSnapshot      map[string]any
}
