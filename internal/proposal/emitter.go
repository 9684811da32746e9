package proposal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// secretKeyMarkers flags any map key containing one of these substrings (after
// lowercasing) as sensitive; its value is redacted before the proposal is persisted
// or echoed to stdout.
var secretKeyMarkers = []string{"secret", "token", "password", "passwd", "key", "credential", "private"}

func isSecretKey(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	for _, marker := range secretKeyMarkers {
		if strings.Contains(k, marker) {
			return true
		}
	}
	return false
}

// redact walks an arbitrary decoded-JSON value, replacing the value of any map key
// that looks secret-shaped with a fixed marker. It never inspects environment
// variables, only the map keys it is handed.
func redact(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if isSecretKey(k) {
				out[k] = "***REDACTED***"
			} else {
				out[k] = redact(val)
			}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = redact(val)
		}
		return out
	default:
		return v
	}
}

// auditRoot is the base directory proposals are appended under. Spec-mandated layout
// is audit/<date>/proposals.ndjson; AUDIT_ARTIFACTS_DIR overrides the "audit" root.
func auditRoot() string {
	if v := strings.TrimSpace(os.Getenv("AUDIT_ARTIFACTS_DIR")); v != "" {
		return v
	}
	return "audit"
}

func proposalAuditPath(createdAtUTC time.Time) string {
	day := createdAtUTC.UTC().Format("2006-01-02")
	return filepath.Join(auditRoot(), day, "proposals.ndjson")
}

func jsonLine(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(raw, '\n'), nil
}

// toRedactedMap round-trips a proposal through JSON to get a plain map, then redacts
// rationale.indicators before it touches disk or stdout; no other field is redacted.
func toRedactedMap(p OrderProposal) (map[string]any, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if rationale, ok := m["rationale"].(map[string]any); ok {
		if indicators, ok := rationale["indicators"]; ok {
			rationale["indicators"] = redact(indicators)
		}
		m["rationale"] = rationale
	}
	return m, nil
}

// Emitter validates, logs, persists, and tracks the lifecycle of order proposals. It
// never submits orders; the furthest downstream effect of Emit is an NDJSON append
// (or, on filesystem failure, a stdout fallback line).
type Emitter struct {
	logger    zerolog.Logger
	lifecycle *Lifecycle
	opts      ValidatorOptions

	mu sync.Mutex
}

// NewEmitter constructs an Emitter. opts is passed to Validate on every Emit, so a
// non-zero opts.Now fixes the validation clock; pass a zero Now in long-lived use.
// Lifecycle registration and expiry always use the wall clock.
func NewEmitter(logger zerolog.Logger, lifecycle *Lifecycle, opts ValidatorOptions) *Emitter {
	return &Emitter{logger: logger, lifecycle: lifecycle, opts: opts}
}

// Emit validates proposal and, if valid, logs an intent summary, registers it with
// the lifecycle store, and appends the full (redacted) proposal to the day's audit
// NDJSON file. A rejected proposal is logged with its validation errors and never
// reaches disk.
func (e *Emitter) Emit(p OrderProposal) {
	e.mu.Lock()
	defer e.mu.Unlock()

	normalized, err := Validate(p, e.opts)
	if err != nil {
		e.logger.Warn().
			Str("event", "rejected").
			Str("proposal_id", p.ProposalID.String()).
			Str("strategy_name", p.StrategyName).
			Str("symbol", p.Symbol).
			Err(err).
			Msg("order proposal rejected")
		return
	}

	e.logger.Info().
		Str("event", "proposed").
		Str("proposal_id", normalized.ProposalID.String()).
		Str("strategy_name", normalized.StrategyName).
		Str("symbol", normalized.Symbol).
		Str("asset_type", string(normalized.AssetType)).
		Str("side", string(normalized.Side)).
		Int("quantity", normalized.Quantity).
		Str("time_in_force", string(normalized.TimeInForce)).
		Time("valid_until_utc", normalized.Constraints.ValidUntilUTC).
		Bool("requires_human_approval", normalized.Constraints.RequiresHumanApproval).
		Msg("order proposal accepted")

	if e.lifecycle != nil {
		e.lifecycle.Register(normalized)
		e.lifecycle.Expire(time.Now().UTC())
	}

	e.persist(normalized)
}

func (e *Emitter) persist(p OrderProposal) {
	m, err := toRedactedMap(p)
	if err != nil {
		e.fallback(p, err)
		return
	}
	line, err := jsonLine(m)
	if err != nil {
		e.fallback(p, err)
		return
	}

	path := proposalAuditPath(p.CreatedAtUTC)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		e.fallback(p, err)
		return
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		e.fallback(p, err)
		return
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		e.fallback(p, err)
	}
}

// fallback handles a filesystem write failure (e.g. a read-only container) by logging
// the failure and echoing the full redacted proposal to stdout as a JSON line, so the
// proposal is never silently lost.
func (e *Emitter) fallback(p OrderProposal, writeErr error) {
	e.logger.Warn().
		Str("event", "audit_write_failed").
		Str("proposal_id", p.ProposalID.String()).
		Err(writeErr).
		Msg("order proposal audit write failed, falling back to stdout")

	m, err := toRedactedMap(p)
	if err != nil {
		return
	}
	m["event_type"] = "order_proposal_fallback"
	line, err := jsonLine(m)
	if err != nil {
		return
	}
	_, _ = os.Stdout.Write(line)
}

// lifecycleKey groups proposals that target the same logical contract for the same
// strategy: a later proposal in this group supersedes the earlier one within the
// supersede window.
type lifecycleKey struct {
	strategyName string
	symbol       string
	contractKey  string
}

func keyFor(p OrderProposal) lifecycleKey {
	return lifecycleKey{strategyName: p.StrategyName, symbol: p.Symbol, contractKey: p.ContractKey()}
}

type lifecycleEntry struct {
	proposal  OrderProposal
	createdAt time.Time
}

// Lifecycle tracks proposal status transitions (PROPOSED -> SUPERSEDED/EXPIRED) purely
// in memory; it requires no database and is safe for concurrent use.
type Lifecycle struct {
	supersedeWindow time.Duration
	logger          zerolog.Logger

	mu         sync.Mutex
	latestByKey map[lifecycleKey]lifecycleEntry
	byID        map[string]OrderProposal
}

// NewLifecycle constructs a Lifecycle with the given supersede window (a non-positive
// window disables superseding entirely).
func NewLifecycle(logger zerolog.Logger, supersedeWindow time.Duration) *Lifecycle {
	if supersedeWindow < 0 {
		supersedeWindow = 0
	}
	return &Lifecycle{
		supersedeWindow: supersedeWindow,
		logger:          logger,
		latestByKey:     make(map[lifecycleKey]lifecycleEntry),
		byID:            make(map[string]OrderProposal),
	}
}

// Register records a newly-accepted proposal, marking any prior proposal for the same
// (strategy, symbol, contract) as SUPERSEDED if it was registered within the
// supersede window.
func (l *Lifecycle) Register(p OrderProposal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().UTC()
	key := keyFor(p)
	if prev, ok := l.latestByKey[key]; ok {
		if now.Sub(prev.createdAt) <= l.supersedeWindow {
			superseded := prev.proposal
			superseded.Status = StatusSuperseded
			l.byID[superseded.ProposalID.String()] = superseded
			l.logger.Info().
				Str("event", "superseded").
				Str("superseded_proposal_id", superseded.ProposalID.String()).
				Str("new_proposal_id", p.ProposalID.String()).
				Str("strategy_name", p.StrategyName).
				Str("symbol", p.Symbol).
				Msg("proposal superseded")
		}
	}
	l.latestByKey[key] = lifecycleEntry{proposal: p, createdAt: now}
	l.byID[p.ProposalID.String()] = p
}

// Expire marks every still-PROPOSED proposal whose valid_until_utc has passed as
// EXPIRED.
func (l *Lifecycle) Expire(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, p := range l.byID {
		if p.Status == StatusProposed && !p.Constraints.ValidUntilUTC.After(now) {
			expired := p
			expired.Status = StatusExpired
			l.byID[id] = expired
			l.logger.Info().
				Str("event", "expired").
				Str("proposal_id", id).
				Str("strategy_name", p.StrategyName).
				Str("symbol", p.Symbol).
				Msg("proposal expired")
		}
	}
}

// Get returns the current tracked status of a proposal by id, if known.
func (l *Lifecycle) Get(proposalID string) (OrderProposal, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.byID[proposalID]
	return p, ok
}

// SupersedeWindowFromEnv reads PROPOSAL_SUPERSEDE_WINDOW_S (default 30).
func SupersedeWindowFromEnv() time.Duration {
	raw := strings.TrimSpace(os.Getenv("PROPOSAL_SUPERSEDE_WINDOW_S"))
	if raw == "" {
		return 30 * time.Second
	}
	var seconds int
	if _, err := fmt.Sscanf(raw, "%d", &seconds); err != nil || seconds < 0 {
		return 30 * time.Second
	}
	return time.Duration(seconds) * time.Second
}
