package optionselect

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// NoEligibleContractsError is returned when no contract in the chain survives the
// underlying/right/DTE filter.
type NoEligibleContractsError struct {
	UnderlyingSymbol string
	Right            Right
	DTEMax           int
}

func (e *NoEligibleContractsError) Error() string {
	return fmt.Sprintf("no eligible %s %s contracts found for dte<=%d", e.UnderlyingSymbol, e.Right, e.DTEMax)
}

// NoSnapshotRowsError is returned when no ATM candidate row is left to rank. A
// candidate without a quote snapshot still gets a row, with its quote metrics unset,
// so a missing snapshot does not by itself produce this error.
type NoSnapshotRowsError struct{}

func (e *NoSnapshotRowsError) Error() string {
	return "no snapshot rows available for atm candidates"
}

func dte(today, exp time.Time) int {
	return int(exp.Truncate(24*time.Hour).Sub(today.Truncate(24*time.Hour)).Hours() / 24)
}

func otmBias(right Right, strike, underlyingPrice float64) int {
	if right == RightCall {
		if strike >= underlyingPrice {
			return 0
		}
		return 1
	}
	if strike <= underlyingPrice {
		return 0
	}
	return 1
}

type sortKey struct {
	atmDistance   float64
	relSpread     float64
	negTotalSize  float64
	negVolume     float64
	negOI         float64
	dte           int
	otmBias       int
	symbol        string
}

func liquiditySortKey(c Contract, today time.Time, underlyingPrice float64, q QuoteMetrics) sortKey {
	relSpread := math.Inf(1)
	if rs := q.RelSpread(); rs != nil {
		relSpread = *rs
	}
	return sortKey{
		atmDistance:  math.Abs(c.Strike - underlyingPrice),
		relSpread:    relSpread,
		negTotalSize: -q.TotalSize(),
		negVolume:    -valueOr(q.Volume, 0),
		negOI:        -valueOr(q.OpenInterest, 0),
		dte:          dte(today, c.ExpirationDate),
		otmBias:      otmBias(c.Right, c.Strike, underlyingPrice),
		symbol:       c.Symbol,
	}
}

func lessSortKey(a, b sortKey) bool {
	if a.atmDistance != b.atmDistance {
		return a.atmDistance < b.atmDistance
	}
	if a.relSpread != b.relSpread {
		return a.relSpread < b.relSpread
	}
	if a.negTotalSize != b.negTotalSize {
		return a.negTotalSize < b.negTotalSize
	}
	if a.negVolume != b.negVolume {
		return a.negVolume < b.negVolume
	}
	if a.negOI != b.negOI {
		return a.negOI < b.negOI
	}
	if a.dte != b.dte {
		return a.dte < b.dte
	}
	if a.otmBias != b.otmBias {
		return a.otmBias < b.otmBias
	}
	return a.symbol < b.symbol
}

// atmTolerance absorbs float error when comparing strike distances derived from
// floating-point arithmetic; strikes themselves are typically discrete.
const atmTolerance = 1e-9

// SelectScalperContract deterministically selects a single-leg option contract: the
// nearest-ATM, highest-liquidity contract matching underlyingSymbol/right with
// 0 <= dte <= dteMax. snapshotsBySymbol maps a contract symbol to its raw quote
// snapshot (any shape ExtractQuoteMetrics tolerates).
func SelectScalperContract(
	underlyingSymbol string,
	right Right,
	today time.Time,
	underlyingPrice float64,
	contracts []Contract,
	snapshotsBySymbol map[string]map[string]any,
	dteMax int,
) (SelectedContract, error) {
	u := strings.ToUpper(strings.TrimSpace(underlyingSymbol))
	if u == "" {
		return SelectedContract{}, fmt.Errorf("underlying_symbol is required")
	}
	if underlyingPrice <= 0 {
		return SelectedContract{}, fmt.Errorf("underlying_price must be > 0")
	}
	if dteMax < 0 {
		dteMax = 0
	}

	var eligible []Contract
	for _, c := range contracts {
		if strings.ToUpper(c.UnderlyingSymbol) != u {
			continue
		}
		if c.Right != right {
			continue
		}
		d := dte(today, c.ExpirationDate)
		if d >= 0 && d <= dteMax {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return SelectedContract{}, &NoEligibleContractsError{UnderlyingSymbol: u, Right: right, DTEMax: dteMax}
	}

	bestDist := math.Inf(1)
	for _, c := range eligible {
		d := math.Abs(c.Strike - underlyingPrice)
		if d < bestDist {
			bestDist = d
		}
	}

	var atm []Contract
	for _, c := range eligible {
		if math.Abs(math.Abs(c.Strike-underlyingPrice)-bestDist) <= atmTolerance {
			atm = append(atm, c)
		}
	}

	type row struct {
		contract Contract
		quote    QuoteMetrics
		snapshot map[string]any
	}
	var rows []row
	for _, c := range atm {
		snap := snapshotsBySymbol[c.Symbol]
		rows = append(rows, row{contract: c, quote: ExtractQuoteMetrics(snap), snapshot: snap})
	}
	if len(rows) == 0 {
		return SelectedContract{}, &NoSnapshotRowsError{}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return lessSortKey(
			liquiditySortKey(rows[i].contract, today, underlyingPrice, rows[i].quote),
			liquiditySortKey(rows[j].contract, today, underlyingPrice, rows[j].quote),
		)
	})

	best := rows[0]
	return SelectedContract{
		ContractSymbol:   best.contract.Symbol,
		UnderlyingSymbol: u,
		Right:            best.contract.Right,
		Strike:           best.contract.Strike,
		ExpirationDate:   best.contract.ExpirationDate,
		DTE:              dte(today, best.contract.ExpirationDate),
		UnderlyingPrice:  underlyingPrice,
		Quote:            best.quote,
		RawSnapshot:      best.snapshot,
	}, nil
}
