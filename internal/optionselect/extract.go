package optionselect

import (
	"fmt"
	"strconv"
	"strings"
)

// asMapping returns v as a map[string]any, or an empty map if it isn't one — the Go
// analogue of as_mapping's "never raise on shape surprises" stance.
func asMapping(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// num coerces a permissively-shaped numeric field (float64 from JSON, int, or numeric
// string) to *float64, or nil if it can't be parsed.
func num(v any) *float64 {
	if v == nil {
		return nil
	}
	switch t := v.(type) {
	case float64:
		return &t
	case int:
		f := float64(t)
		return &f
	case int64:
		f := float64(t)
		return &f
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return &f
		}
	}
	return nil
}

func firstNonNil(values ...any) any {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func str(v any) *string {
	if v == nil {
		return nil
	}
	s := fmt.Sprintf("%v", v)
	return &s
}

// ExtractQuoteMetrics parses a quote-provider snapshot permissively, tolerating every
// field-name shape this platform has seen in the wild (latestQuote/latest_quote/quote,
// bp/ask_price/askPrice, camelCase and snake_case size/volume/open-interest fields).
func ExtractQuoteMetrics(snapshot map[string]any) QuoteMetrics {
	snap := asMapping(snapshot)
	latestQuote := asMapping(firstNonNil(snap["latestQuote"], snap["latest_quote"], snap["quote"]))
	latestTrade := asMapping(firstNonNil(snap["latestTrade"], snap["latest_trade"], snap["trade"]))

	bid := num(firstNonNil(latestQuote["bp"], latestQuote["bid_price"], latestQuote["bidPrice"], snap["bid"]))
	ask := num(firstNonNil(latestQuote["ap"], latestQuote["ask_price"], latestQuote["askPrice"], snap["ask"]))
	bidSize := num(firstNonNil(latestQuote["bs"], latestQuote["bid_size"], latestQuote["bidSize"], snap["bid_size"]))
	askSize := num(firstNonNil(latestQuote["as"], latestQuote["ask_size"], latestQuote["askSize"], snap["ask_size"]))

	dailyBar := asMapping(firstNonNil(snap["dailyBar"], snap["daily_bar"]))
	volume := num(firstNonNil(
		snap["volume"], snap["dailyVolume"],
		dailyBar["v"], dailyBar["volume"],
		latestTrade["v"], latestTrade["volume"],
	))
	openInterest := num(firstNonNil(snap["open_interest"], snap["openInterest"], snap["oi"]))

	var snapshotTime *string
	for _, key := range []string{"t", "timestamp", "updated", "updated_at", "snapshot_time", "snap_time"} {
		if v, ok := latestQuote[key]; ok && v != nil {
			snapshotTime = str(v)
			break
		}
		if v, ok := snap[key]; ok && v != nil {
			snapshotTime = str(v)
			break
		}
	}

	return QuoteMetrics{
		Bid:          bid,
		Ask:          ask,
		BidSize:      bidSize,
		AskSize:      askSize,
		Volume:       volume,
		OpenInterest: openInterest,
		SnapshotTime: snapshotTime,
	}
}
