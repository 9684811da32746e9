// Package shadow implements the shadow-only option executor and trade store: it
// simulates fills for selected contracts and persists exactly one append-only record
// per (tenant, intent) pair. It never calls a broker and never places a real order.
package shadow

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// shadowNamespace is a fixed v5 UUID namespace so doc_id derivation is stable across
// process restarts and across languages reading the same key.
var shadowNamespace = uuid.MustParse("7b6e9a0e-3b0a-4e9a-9c2e-4b6a2e9d9c70")

// StableUUID derives a deterministic UUID from an arbitrary string key, the same value
// every time for the same key. Used to make shadow-trade document ids restart-safe.
func StableUUID(key string) uuid.UUID {
	return uuid.NewSHA1(shadowNamespace, []byte(key))
}

// OptionOrderIntent is the minimal shape the shadow executor needs out of an order
// intent: tenant/correlation identity, the contract it targets, and enough metadata to
// detect a HOLD/no-op signal.
type OptionOrderIntent struct {
	TenantID       string
	IntentID       string
	CorrelationID  string
	ContractSymbol string
	Side           string
	// Quantity is kept as the raw string the producer sent so integer-vs-fractional
	// rejection matches what was actually on the wire, not a post-parse float.
	Quantity string
	// Options/Meta are permissive metadata bags; HOLD detection inspects both.
	Options map[string]any
	Meta    map[string]any
}

// detectHold inspects intent metadata for an explicit hold/no-op signal. Returns the
// reason string ("hold:<key>=<value>") or "" if no hold signal is present.
func detectHold(intent OptionOrderIntent) string {
	holdValues := map[string]bool{"hold": true, "no_op": true, "noop": true, "none": true}
	keys := []string{"action", "signal_action", "signalAction", "decision", "intent_action", "intentAction"}
	for _, container := range []map[string]any{intent.Options, intent.Meta} {
		if container == nil {
			continue
		}
		for _, k := range keys {
			v, ok := container[k]
			if !ok || v == nil {
				continue
			}
			s := strings.ToLower(strings.TrimSpace(toStr(v)))
			if holdValues[s] {
				return "hold:" + k + "=" + s
			}
		}
	}
	return ""
}

func toStr(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// parseContracts determines the integer contract count from a raw quantity string,
// rejecting anything non-positive or with a fractional part.
func parseContracts(raw string) (int, string) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, "missing_quantity_contracts"
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, "invalid_quantity_contracts"
	}
	if f <= 0 {
		return 0, "non_positive_quantity_contracts"
	}
	whole := float64(int64(f))
	if f != whole {
		return 0, "non_integer_quantity_contracts"
	}
	return int(whole), ""
}

// resolveOptionSymbol prefers the resolved contract's own symbol field over the
// intent's, matching the producer-side contract resolution order.
func resolveOptionSymbol(intent OptionOrderIntent, resolvedContract map[string]any) string {
	for _, k := range []string{"contract_symbol", "symbol", "option_symbol", "occ_symbol", "occSymbol"} {
		if v, ok := resolvedContract[k]; ok && v != nil {
			if s := strings.TrimSpace(toStr(v)); s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(intent.ContractSymbol)
}
