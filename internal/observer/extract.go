package observer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

func asStr(v any) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}

func firstStr(plan map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := plan[k]; ok {
			if s := asStr(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func asFloatPtr(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case int:
		f := float64(t)
		return &f
	case string:
		if s := strings.TrimSpace(t); s != "" {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

func asIntPtr(v any) *int {
	switch t := v.(type) {
	case float64:
		n := int(t)
		return &n
	case int:
		return &t
	case string:
		if s := strings.TrimSpace(t); s != "" {
			if n, err := strconv.Atoi(s); err == nil {
				return &n
			}
		}
	}
	return nil
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// extractContract pulls an option leg out of a plan's "option" or "contract" field,
// accepting several historically-observed field-name spellings for each subfield,
// the same permissive-parsing posture the selector package already uses.
func extractContract(underlying string, plan map[string]any) *ContractSelection {
	opt := asMap(plan["option"])
	if opt == nil {
		opt = asMap(plan["contract"])
	}
	if opt == nil {
		if underlying == "" {
			return nil
		}
		return &ContractSelection{UnderlyingSymbol: underlying}
	}

	expiration := firstStr(opt, "expiration", "expiry", "exp")
	right := strings.ToUpper(firstStr(opt, "right", "type", "cp"))
	strike := asFloatPtr(opt["strike"])
	contractSymbol := firstStr(opt, "contract_symbol", "symbol", "occ_symbol")

	if underlying == "" {
		underlying = firstStr(plan, "symbol", "underlying")
		if underlying == "" {
			underlying = firstStr(opt, "underlying_symbol", "underlying")
		}
	}
	if underlying == "" {
		underlying = "UNKNOWN"
	}

	return &ContractSelection{
		UnderlyingSymbol: underlying,
		Expiration:       expiration,
		Right:            right,
		Strike:           strike,
		ContractSymbol:   contractSymbol,
	}
}

// coerceKeyFactors turns a rationale's `indicators` field into a stable, bounded
// key-factor list. A handful of well-known names are preferred if present; otherwise
// the first dozen top-level keys in sorted order are surfaced.
func coerceKeyFactors(indicators any) []KeyFactor {
	switch t := indicators.(type) {
	case []any:
		var out []KeyFactor
		for _, item := range t {
			m := asMap(item)
			if len(m) == 0 {
				continue
			}
			out = append(out, KeyFactor{Name: firstStr(m, "name", "key"), Value: m["value"], Weight: m["weight"]})
		}
		return out
	case map[string]any:
		preferred := []string{"signal", "thesis", "regime", "trend", "flow", "gex", "iv", "delta", "gamma"}
		var out []KeyFactor
		for _, k := range preferred {
			if v, ok := t[k]; ok {
				out = append(out, KeyFactor{Name: k, Value: v})
			}
		}
		if len(out) == 0 {
			keys := make([]string, 0, len(t))
			for k := range t {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			if len(keys) > 12 {
				keys = keys[:12]
			}
			for _, k := range keys {
				out = append(out, KeyFactor{Name: k, Value: t[k]})
			}
		}
		return out
	default:
		return nil
	}
}
