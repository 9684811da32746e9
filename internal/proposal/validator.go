package proposal

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// AgentMode names the execution posture a proposal was generated under. Only
// AgentModeExecute is treated as authorized to waive human approval, and nothing in
// this platform currently runs in that mode end-to-end (spec §1, §9 open question).
type AgentMode string

const (
	AgentModeObserve AgentMode = "OBSERVE"
	AgentModeExecute AgentMode = "EXECUTE"
)

// ValidationErrors aggregates every rule violation found while validating a single
// proposal, mirroring the emitter/validator's "collect everything, reject once" shape
// used across this codebase's other validators.
type ValidationErrors struct {
	Errors []string
}

func (e *ValidationErrors) add(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

func (e *ValidationErrors) Error() string {
	return "order proposal validation failed: " + strings.Join(e.Errors, "; ")
}

func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// ValidatorOptions parameterizes Validate with the pieces that come from config or
// runtime state rather than the proposal itself.
type ValidatorOptions struct {
	// SymbolAllowlist, if non-nil, restricts which symbols may be proposed. A nil
	// allowlist means no restriction.
	SymbolAllowlist []string
	// AgentMode is the current runtime's execution posture. Any mode other than
	// AgentModeExecute forces Constraints.RequiresHumanApproval to true.
	AgentMode AgentMode
	// Now overrides the clock for testability; zero means time.Now().UTC().
	Now time.Time
}

// SymbolAllowlistFromEnv parses the optional SYMBOL_ALLOWLIST env var (comma
// separated, case-insensitive) into an allowlist, or nil if unset/blank.
func SymbolAllowlistFromEnv() []string {
	raw := strings.TrimSpace(os.Getenv("SYMBOL_ALLOWLIST"))
	if raw == "" {
		return nil
	}
	var symbols []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			symbols = append(symbols, strings.ToUpper(part))
		}
	}
	if len(symbols) == 0 {
		return nil
	}
	return symbols
}

// Validate checks a proposal against every fail-closed rule and, if it passes,
// returns a normalized copy (currently: requires_human_approval forced to true
// outside AgentModeExecute). On any violation it returns a *ValidationErrors
// describing every violation found, not just the first.
func Validate(p OrderProposal, opts ValidatorOptions) (OrderProposal, error) {
	var errs ValidationErrors

	if p.Status != StatusProposed {
		errs.add("status must be PROPOSED on emit (got %s)", p.Status)
	}

	if p.Quantity <= 0 {
		errs.add("quantity must be > 0")
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	vu := p.Constraints.ValidUntilUTC
	if vu.IsZero() {
		errs.add("constraints.valid_until_utc is required")
	} else if vu.Location() != time.UTC {
		errs.add("constraints.valid_until_utc must be timezone-aware (UTC)")
	} else if !vu.After(now) {
		errs.add("constraints.valid_until_utc is in the past")
	}

	if len(opts.SymbolAllowlist) > 0 {
		allowed := false
		upperSymbol := strings.ToUpper(p.Symbol)
		for _, s := range opts.SymbolAllowlist {
			if strings.ToUpper(s) == upperSymbol {
				allowed = true
				break
			}
		}
		if !allowed {
			errs.add("symbol %q not in allowlist", p.Symbol)
		}
	}

	if p.AssetType == AssetOption {
		if p.Option == nil {
			errs.add("asset_type=OPTION requires option details")
		} else {
			if p.Option.Expiration.IsZero() {
				errs.add("option.expiration is required")
			}
			if p.Option.Right == "" {
				errs.add("option.right is required")
			}
			if p.Option.Strike == 0 {
				errs.add("option.strike is required")
			}
		}
	}

	normalized := p
	if opts.AgentMode != AgentModeExecute && !p.Constraints.RequiresHumanApproval {
		normalized.Constraints.RequiresHumanApproval = true
	}

	if errs.HasErrors() {
		return OrderProposal{}, &errs
	}
	return normalized, nil
}
