package optionselect

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// HedgeDecision is the outcome of the hedging-oriented liquidity-gated variant: either
// a single SELECT with a contract symbol, or a HOLD with a reason code.
type HedgeDecision string

const (
	HedgeSelect HedgeDecision = "SELECT"
	HedgeHold   HedgeDecision = "HOLD"
)

// DTERules filters eligible contracts by days-to-expiry. The zero value is 0DTE-only,
// matching the default gamma-scalper posture.
type DTERules struct {
	AllowedDTEs []int
	TargetDTE   int
	MinDTE      *int
	MaxDTE      *int
}

// Allows reports whether d falls inside the rule set.
func (r DTERules) Allows(d int) bool {
	if len(r.AllowedDTEs) > 0 {
		for _, allowed := range r.AllowedDTEs {
			if allowed == d {
				return true
			}
		}
		return false
	}
	lo, hi := r.TargetDTE, r.TargetDTE
	if r.MinDTE != nil {
		lo = *r.MinDTE
	}
	if r.MaxDTE != nil {
		hi = *r.MaxDTE
	}
	return d >= lo && d <= hi
}

// LiquidityFilters are the hard, deterministic safety gates applied before a contract
// can be selected for hedging — never an optimization, only a pass/fail gate.
type LiquidityFilters struct {
	MaxQuoteAge    time.Duration
	MinOpenInterest int
	MinVolume       int
	MaxSpreadPct    float64
}

// DefaultLiquidityFilters mirrors the gamma scalper's defaults.
func DefaultLiquidityFilters() LiquidityFilters {
	return LiquidityFilters{
		MaxQuoteAge:     120 * time.Second,
		MinOpenInterest: 10,
		MinVolume:       1,
		MaxSpreadPct:    0.35,
	}
}

// RawContract is a single candidate contract in whatever shape the ingest pipeline
// produced; RawContract walks a small set of common nesting shapes
// (top-level, "payload", "payload.details", "payload.contract", "details", "contract").
type RawContract map[string]any

func walkDicts(raw RawContract) []map[string]any {
	dicts := []map[string]any{raw}
	if payload, ok := raw["payload"].(map[string]any); ok {
		dicts = append(dicts, payload)
		if details, ok := payload["details"].(map[string]any); ok {
			dicts = append(dicts, details)
		}
		if contract, ok := payload["contract"].(map[string]any); ok {
			dicts = append(dicts, contract)
		}
	}
	if details, ok := raw["details"].(map[string]any); ok {
		dicts = append(dicts, details)
	}
	if contract, ok := raw["contract"].(map[string]any); ok {
		dicts = append(dicts, contract)
	}
	return dicts
}

func lookupAny(dicts []map[string]any, keys ...string) any {
	for _, d := range dicts {
		for _, k := range keys {
			if v, ok := d[k]; ok && v != nil {
				return v
			}
		}
	}
	return nil
}

func rawSymbol(raw RawContract) (string, bool) {
	v := lookupAny(walkDicts(raw), "contract_symbol", "contractSymbol", "option_symbol", "optionSymbol", "symbol", "id", "occ_symbol", "occSymbol")
	if v == nil {
		return "", false
	}
	s := strings.ToUpper(strings.TrimSpace(fmt.Sprintf("%v", v)))
	if s == "" {
		return "", false
	}
	return s, true
}

func rawExpiration(raw RawContract) (time.Time, bool) {
	v := lookupAny(walkDicts(raw), "expiration_date", "expirationDate", "expiration", "expiry", "exp")
	if v == nil {
		return time.Time{}, false
	}
	s := strings.TrimSpace(fmt.Sprintf("%v", v))
	if len(s) < 10 {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s[:10])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func rawStrike(raw RawContract) (float64, bool) {
	v := lookupAny(walkDicts(raw), "strike_price", "strikePrice", "strike", "k")
	f := num(v)
	if f == nil || *f <= 0 {
		return 0, false
	}
	return *f, true
}

func rawRight(raw RawContract) (Right, bool) {
	v := lookupAny(walkDicts(raw), "right", "type", "put_call", "putCall", "call_put", "callPut")
	if v == nil {
		return "", false
	}
	s := strings.ToUpper(strings.TrimSpace(fmt.Sprintf("%v", v)))
	switch s {
	case "CALL", "C", "CALLS", "CALL_OPTION":
		return RightCall, true
	case "PUT", "P", "PUTS", "PUT_OPTION":
		return RightPut, true
	}
	return "", false
}

func parseFlexibleTS(v any) (time.Time, bool) {
	if v == nil {
		return time.Time{}, false
	}
	if f := num(v); f != nil && *f > 0 {
		secs := *f
		if secs > 1e12 {
			secs /= 1000.0
		}
		return time.Unix(int64(secs), 0).UTC(), true
	}
	s := strings.TrimSpace(fmt.Sprintf("%v", v))
	if s == "" {
		return time.Time{}, false
	}
	if strings.HasSuffix(s, "Z") {
		s = s[:len(s)-1] + "+00:00"
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

type rawQuote struct {
	bid, ask *float64
	quoteTS  *time.Time
}

func extractRawQuote(raw RawContract) rawQuote {
	var q rawQuote
	for _, d := range walkDicts(raw) {
		if lq, ok := d["latestQuote"].(map[string]any); ok {
			q.merge(lq)
		} else if lq, ok := d["latest_quote"].(map[string]any); ok {
			q.merge(lq)
		} else if lq, ok := d["quote"].(map[string]any); ok {
			q.merge(lq)
		}
		if q.bid == nil {
			q.bid = num(lookupAny([]map[string]any{d}, "bid", "bid_price", "bp"))
		}
		if q.ask == nil {
			q.ask = num(lookupAny([]map[string]any{d}, "ask", "ask_price", "ap"))
		}
		if q.quoteTS == nil {
			if t, ok := parseFlexibleTS(lookupAny([]map[string]any{d}, "quote_time", "quoteTime", "updated_at", "updatedAt", "snapshot_time")); ok {
				q.quoteTS = &t
			}
		}
	}
	return q
}

func (q *rawQuote) merge(lq map[string]any) {
	if q.bid == nil {
		q.bid = num(lookupAny([]map[string]any{lq}, "bp", "bid_price", "bidPrice", "bid"))
	}
	if q.ask == nil {
		q.ask = num(lookupAny([]map[string]any{lq}, "ap", "ask_price", "askPrice", "ask"))
	}
	if q.quoteTS == nil {
		if t, ok := parseFlexibleTS(lookupAny([]map[string]any{lq}, "t", "timestamp", "ts", "time")); ok {
			q.quoteTS = &t
		}
	}
}

func intish(v any) *int {
	f := num(v)
	if f == nil {
		return nil
	}
	i := int(*f)
	return &i
}

func extractOpenInterest(raw RawContract) *int {
	return intish(lookupAny(walkDicts(raw), "open_interest", "openInterest", "oi"))
}

func extractVolume(raw RawContract) *int {
	dicts := walkDicts(raw)
	if v := lookupAny(dicts, "volume", "vol", "v"); v != nil {
		return intish(v)
	}
	for _, d := range dicts {
		daily, ok := d["dailyBar"].(map[string]any)
		if !ok {
			daily, ok = d["daily_bar"].(map[string]any)
		}
		if ok {
			if v := lookupAny([]map[string]any{daily}, "v", "volume"); v != nil {
				return intish(v)
			}
		}
	}
	return nil
}

func extractQuoteSizes(raw RawContract) (*int, *int) {
	var bidSize, askSize *int
	for _, d := range walkDicts(raw) {
		lq, _ := d["latestQuote"].(map[string]any)
		if lq == nil {
			lq, _ = d["latest_quote"].(map[string]any)
		}
		if lq == nil {
			lq, _ = d["quote"].(map[string]any)
		}
		if lq != nil {
			if bidSize == nil {
				bidSize = intish(lookupAny([]map[string]any{lq}, "bs", "bid_size", "bidSize"))
			}
			if askSize == nil {
				askSize = intish(lookupAny([]map[string]any{lq}, "as", "ask_size", "askSize"))
			}
		}
		if bidSize == nil {
			bidSize = intish(lookupAny([]map[string]any{d}, "bid_size", "bidSize", "bs"))
		}
		if askSize == nil {
			askSize = intish(lookupAny([]map[string]any{d}, "ask_size", "askSize", "as"))
		}
	}
	return bidSize, askSize
}

// liquidityCheck runs the hard safety gates and returns ("", fields) on success or a
// reason code from spec §4.C9's vocabulary on failure.
func liquidityCheck(raw RawContract, bid, ask *float64, quoteTS *time.Time, now time.Time, filters LiquidityFilters) (string, map[string]any) {
	fields := map[string]any{}

	if quoteTS == nil {
		return "missing_quote_ts", fields
	}
	age := now.Sub(*quoteTS)
	fields["quote_age_seconds"] = age.Seconds()
	if age < -5*time.Second {
		return "quote_from_future", fields
	}
	if age > filters.MaxQuoteAge {
		return "stale_quote", fields
	}

	if bid == nil || ask == nil {
		return "missing_bid_ask", fields
	}
	b, a := *bid, *ask
	fields["bid"], fields["ask"] = b, a
	if !(b > 0 && a > 0 && a >= b) {
		return "non_marketable_bid_ask", fields
	}

	mid := (a + b) / 2.0
	spread := a - b
	if mid <= 0 {
		return "invalid_mid", fields
	}
	spreadPct := spread / mid
	fields["mid"], fields["spread"], fields["spread_pct"] = mid, spread, spreadPct
	if spreadPct > filters.MaxSpreadPct {
		return "wide_spread", fields
	}

	oi := extractOpenInterest(raw)
	vol := extractVolume(raw)
	bs, as := extractQuoteSizes(raw)
	fields["open_interest"], fields["volume"], fields["bid_size"], fields["ask_size"] = oi, vol, bs, as

	hasOI := oi != nil
	hasVol := vol != nil
	hasSizes := (bs != nil && *bs > 0) || (as != nil && *as > 0)

	if hasOI && *oi < filters.MinOpenInterest {
		return "low_open_interest", fields
	}
	if hasVol && *vol < filters.MinVolume {
		return "low_volume", fields
	}
	if !hasOI && !hasVol && !hasSizes {
		return "unknown_liquidity", fields
	}

	return "", fields
}

// HedgeSelectionResult is the outcome of SelectHedgeContract.
type HedgeSelectionResult struct {
	Decision       HedgeDecision
	ContractSymbol string
	ReasonCode     string
	Metadata       map[string]any
}

type hedgeCandidate struct {
	symbol         string
	dte            int
	strikeDistance float64
	spreadPct      *float64
}

// SelectHedgeContract implements the hedging/HOLD liquidity-gated variant of the
// selector: desiredDeltaHedge > 0 picks a CALL, < 0 a PUT, == 0 is always HOLD.
func SelectHedgeContract(
	underlyingPrice, desiredDeltaHedge float64,
	contracts []RawContract,
	rules DTERules,
	now time.Time,
	filters LiquidityFilters,
) HedgeSelectionResult {
	if underlyingPrice <= 0 {
		return HedgeSelectionResult{Decision: HedgeHold, ReasonCode: "invalid_underlying_price"}
	}
	if desiredDeltaHedge == 0 {
		return HedgeSelectionResult{Decision: HedgeHold, ReasonCode: "no_hedge_needed"}
	}

	desiredRight := RightPut
	if desiredDeltaHedge > 0 {
		desiredRight = RightCall
	}

	var candidates []hedgeCandidate
	rejections := map[string]int{}

	for _, raw := range contracts {
		symbol, ok := rawSymbol(raw)
		if !ok {
			rejections["missing_contract_symbol"]++
			continue
		}
		exp, ok := rawExpiration(raw)
		if !ok {
			rejections["missing_expiration"]++
			continue
		}
		strike, ok := rawStrike(raw)
		if !ok {
			rejections["missing_strike"]++
			continue
		}
		right, ok := rawRight(raw)
		if !ok {
			rejections["missing_right"]++
			continue
		}
		if right != desiredRight {
			rejections["wrong_right"]++
			continue
		}

		d := int(exp.Sub(now.Truncate(24 * time.Hour)).Hours() / 24)
		if !rules.Allows(d) {
			rejections["dte_not_allowed"]++
			continue
		}

		q := extractRawQuote(raw)
		reason, fields := liquidityCheck(raw, q.bid, q.ask, q.quoteTS, now, filters)
		if reason != "" {
			rejections[reason]++
			continue
		}

		var spreadPct *float64
		if v, ok := fields["spread_pct"].(float64); ok {
			spreadPct = &v
		}

		candidates = append(candidates, hedgeCandidate{
			symbol:         symbol,
			dte:            d,
			strikeDistance: math.Abs(strike - underlyingPrice),
			spreadPct:      spreadPct,
		})
	}

	if len(candidates) == 0 {
		return HedgeSelectionResult{
			Decision:   HedgeHold,
			ReasonCode: "no_eligible_contracts",
			Metadata:   map[string]any{"desired_right": string(desiredRight), "rejections_by_reason_code": rejections},
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.strikeDistance != b.strikeDistance {
			return a.strikeDistance < b.strikeDistance
		}
		if a.dte != b.dte {
			return a.dte < b.dte
		}
		av, bv := math.Inf(1), math.Inf(1)
		if a.spreadPct != nil {
			av = *a.spreadPct
		}
		if b.spreadPct != nil {
			bv = *b.spreadPct
		}
		if av != bv {
			return av < bv
		}
		return a.symbol < b.symbol
	})

	chosen := candidates[0]
	return HedgeSelectionResult{
		Decision:       HedgeSelect,
		ContractSymbol: chosen.symbol,
		Metadata: map[string]any{
			"desired_right":   string(desiredRight),
			"dte":             chosen.dte,
			"strike_distance": chosen.strikeDistance,
			"candidates":      len(candidates),
		},
	}
}

