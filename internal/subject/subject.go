// Package subject builds and validates hierarchical NATS subjects per tenant.
package subject

import (
	"fmt"
	"strings"
)

// TokenError names the offending field when a subject token is invalid.
type TokenError struct {
	Field string
	Value string
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("invalid subject token %q: %s", e.Value, e.Field)
}

var forbiddenTokenChars = []string{".", "*", ">"}

func token(value, name string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", &TokenError{Field: name + " must be non-empty", Value: value}
	}
	for _, c := range forbiddenTokenChars {
		if strings.Contains(trimmed, c) {
			return "", &TokenError{Field: fmt.Sprintf("%s must not contain %q", name, c), Value: value}
		}
	}
	return trimmed, nil
}

// Market builds market.{tenant}.{symbol}.
func Market(tenantID, symbol string) (string, error) {
	t, err := token(tenantID, "tenant_id")
	if err != nil {
		return "", err
	}
	s, err := token(symbol, "symbol")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("market.%s.%s", t, s), nil
}

// MarketWildcard builds market.{tenant}.> for subscribing to every symbol of a tenant.
func MarketWildcard(tenantID string) (string, error) {
	t, err := token(tenantID, "tenant_id")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("market.%s.>", t), nil
}

// Signals builds signals.{tenant}.{strategy}.{symbol}.
func Signals(tenantID, strategyID, symbol string) (string, error) {
	t, err := token(tenantID, "tenant_id")
	if err != nil {
		return "", err
	}
	st, err := token(strategyID, "strategy_id")
	if err != nil {
		return "", err
	}
	s, err := token(symbol, "symbol")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("signals.%s.%s.%s", t, st, s), nil
}

// SignalsV2 builds signals_v2.{tenant}.{strategy}.{symbol} — a separate namespace so a
// v1 subscriber never decodes a v2 payload by accident.
func SignalsV2(tenantID, strategyID, symbol string) (string, error) {
	t, err := token(tenantID, "tenant_id")
	if err != nil {
		return "", err
	}
	st, err := token(strategyID, "strategy_id")
	if err != nil {
		return "", err
	}
	s, err := token(symbol, "symbol")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("signals_v2.%s.%s.%s", t, st, s), nil
}

// Orders builds orders.{tenant}.{account}.
func Orders(tenantID, accountID string) (string, error) {
	t, err := token(tenantID, "tenant_id")
	if err != nil {
		return "", err
	}
	a, err := token(accountID, "account_id")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("orders.%s.%s", t, a), nil
}

// Fills builds fills.{tenant}.{account}.
func Fills(tenantID, accountID string) (string, error) {
	t, err := token(tenantID, "tenant_id")
	if err != nil {
		return "", err
	}
	a, err := token(accountID, "account_id")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("fills.%s.%s", t, a), nil
}

// Ops builds ops.{tenant}.{service}.
func Ops(tenantID, service string) (string, error) {
	t, err := token(tenantID, "tenant_id")
	if err != nil {
		return "", err
	}
	sv, err := token(service, "service")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ops.%s.%s", t, sv), nil
}
