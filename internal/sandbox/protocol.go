// Package sandbox hosts untrusted strategy code over an isolated, NDJSON-framed
// bidirectional channel. The host never imports or executes strategy code; it only
// packages bundles and speaks the wire protocol below.
package sandbox

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"time"
)

// ProtocolVersion is the only version this host speaks; any mismatch fails the
// connection.
const ProtocolVersion = "v1"

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_\-]{0,127}$`)

// ValidID reports whether v matches the id grammar shared by event_id/intent_id.
func ValidID(v string) bool { return idPattern.MatchString(v) }

// ProtocolError marks a malformed or unsupported wire message.
type ProtocolError struct{ msg string }

func (e *ProtocolError) Error() string { return e.msg }

func protoErrf(format string, args ...any) error {
	return &ProtocolError{msg: fmt.Sprintf(format, args...)}
}

// MarketEvent is the only input a strategy receives.
type MarketEvent struct {
	Protocol string         `json:"protocol"`
	Type     string         `json:"type"`
	EventID  string         `json:"event_id"`
	TS       string         `json:"ts"`
	Symbol   string         `json:"symbol"`
	Source   string         `json:"source"`
	Payload  map[string]any `json:"payload"`
}

// NewMarketEvent stamps protocol/type and the current UTC timestamp.
func NewMarketEvent(eventID, symbol, source string, payload map[string]any, now time.Time) MarketEvent {
	return MarketEvent{
		Protocol: ProtocolVersion,
		Type:     "market_event",
		EventID:  eventID,
		TS:       now.UTC().Format(time.RFC3339Nano),
		Symbol:   symbol,
		Source:   source,
		Payload:  payload,
	}
}

// ShutdownMessage is the terminal host->guest message.
type ShutdownMessage struct {
	Protocol string `json:"protocol"`
	Type     string `json:"type"`
}

// NewShutdownMessage builds the one shutdown frame sent at the end of every run.
func NewShutdownMessage() ShutdownMessage {
	return ShutdownMessage{Protocol: ProtocolVersion, Type: "shutdown"}
}

// OrderIntent is the only output a strategy produces.
type OrderIntent struct {
	Protocol      string         `json:"protocol"`
	Type          string         `json:"type"`
	IntentID      string         `json:"intent_id"`
	EventID       string         `json:"event_id"`
	TS            string         `json:"ts"`
	Symbol        string         `json:"symbol"`
	Side          string         `json:"side"`
	Qty           float64        `json:"qty"`
	OrderType     string         `json:"order_type"`
	LimitPrice    *float64       `json:"limit_price,omitempty"`
	TimeInForce   *string        `json:"time_in_force,omitempty"`
	ClientTag     *string        `json:"client_tag,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// LogMessage is a guest diagnostic line; it never affects host behavior beyond logging.
type LogMessage struct {
	Protocol string `json:"protocol"`
	Type     string `json:"type"`
	TS       string `json:"ts"`
	Level    string `json:"level"`
	Message  string `json:"message"`
}

var validSides = map[string]bool{"buy": true, "sell": true}
var validOrderTypes = map[string]bool{"market": true, "limit": true, "stop": true, "stop_limit": true}
var validTIF = map[string]bool{"day": true, "gtc": true, "ioc": true, "fok": true}

// ParseOrderIntent validates and decodes a raw guest frame into an OrderIntent. Field
// strictness mirrors the C3/C4 decode idiom: required fields present and well-typed,
// enums checked, quantity strictly positive.
func ParseOrderIntent(raw map[string]any) (OrderIntent, error) {
	var out OrderIntent

	protocol, _ := raw["protocol"].(string)
	if protocol != ProtocolVersion {
		return out, protoErrf("unsupported protocol: %v", raw["protocol"])
	}
	msgType, _ := raw["type"].(string)
	if msgType != "order_intent" {
		return out, protoErrf("expected order_intent, got: %v", raw["type"])
	}

	intentID, err := requireID(raw, "intent_id")
	if err != nil {
		return out, err
	}
	eventID, err := requireID(raw, "event_id")
	if err != nil {
		return out, err
	}
	ts, err := requireString(raw, "ts")
	if err != nil {
		return out, err
	}
	symbol, err := requireString(raw, "symbol")
	if err != nil {
		return out, err
	}
	side, err := requireString(raw, "side")
	if err != nil {
		return out, err
	}
	if !validSides[side] {
		return out, protoErrf("field side must be 'buy' or 'sell', got %q", side)
	}
	qty, err := requireNumber(raw, "qty")
	if err != nil {
		return out, err
	}
	if qty <= 0 {
		return out, protoErrf("field qty must be > 0")
	}
	orderType, err := requireString(raw, "order_type")
	if err != nil {
		return out, err
	}
	if !validOrderTypes[orderType] {
		return out, protoErrf("field order_type invalid: %q", orderType)
	}

	out = OrderIntent{
		Protocol:  protocol,
		Type:      msgType,
		IntentID:  intentID,
		EventID:   eventID,
		TS:        ts,
		Symbol:    symbol,
		Side:      side,
		Qty:       qty,
		OrderType: orderType,
	}

	if v, ok := raw["limit_price"]; ok && v != nil {
		f, err := optionalNumber(v)
		if err != nil {
			return OrderIntent{}, protoErrf("field limit_price must be number")
		}
		out.LimitPrice = &f
	}
	if v, ok := raw["time_in_force"]; ok && v != nil {
		s, ok := v.(string)
		if !ok || s == "" {
			return OrderIntent{}, protoErrf("field time_in_force must be non-empty string")
		}
		if !validTIF[s] {
			return OrderIntent{}, protoErrf("field time_in_force invalid: %q", s)
		}
		out.TimeInForce = &s
	}
	if v, ok := raw["client_tag"]; ok && v != nil {
		s, ok := v.(string)
		if !ok || s == "" {
			return OrderIntent{}, protoErrf("field client_tag must be non-empty string")
		}
		out.ClientTag = &s
	}
	if v, ok := raw["metadata"]; ok && v != nil {
		m, ok := v.(map[string]any)
		if !ok {
			return OrderIntent{}, protoErrf("field metadata must be object")
		}
		out.Metadata = m
	}

	return out, nil
}

func requireString(raw map[string]any, key string) (string, error) {
	v, ok := raw[key]
	if !ok {
		return "", protoErrf("missing required field: %s", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", protoErrf("field %s must be non-empty string", key)
	}
	return s, nil
}

func requireID(raw map[string]any, key string) (string, error) {
	s, err := requireString(raw, key)
	if err != nil {
		return "", err
	}
	if !ValidID(s) {
		return "", protoErrf("field %s must match %s", key, idPattern.String())
	}
	return s, nil
}

func requireNumber(raw map[string]any, key string) (float64, error) {
	v, ok := raw[key]
	if !ok {
		return 0, protoErrf("missing required field: %s", key)
	}
	return optionalNumber(v)
}

func optionalNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, protoErrf("expected a number")
	}
}

// WriteNDJSON marshals each object and writes it as one '\n'-terminated UTF-8 line.
func WriteNDJSON(w io.Writer, objs ...any) error {
	bw := bufio.NewWriter(w)
	for _, o := range objs {
		b, err := json.Marshal(o)
		if err != nil {
			return err
		}
		if _, err := bw.Write(b); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadNDJSON decodes every non-empty line from r into a raw map, in order.
func ReadNDJSON(r io.Reader) ([]map[string]any, error) {
	var out []map[string]any
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bufTrim(line)) == 0 {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(line, &obj); err != nil {
			return out, err
		}
		out = append(out, obj)
	}
	if err := scanner.Err(); err != nil {
		return out, err
	}
	return out, nil
}

func bufTrim(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\r' || c == '\n' }
