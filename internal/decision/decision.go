// Package decision implements the execution decider (spec §4.C7): a pure function
// turning a validated order proposal plus a safety snapshot into an audit-only
// APPROVE/REJECT record. It never places an order — only the shadow executor acts on
// an APPROVE, and only into the shadow store.
package decision

import (
	"time"

	"github.com/google/uuid"
	"github.com/shadowtrader/platform/internal/proposal"
)

// Decision is the APPROVE/REJECT verdict.
type Decision string

const (
	Approve Decision = "APPROVE"
	Reject  Decision = "REJECT"
)

// SafetySnapshot is the minimal safety state captured at decision time.
type SafetySnapshot struct {
	KillSwitch        bool
	MarketdataFresh   bool
	MarketdataLastTS  *time.Time
	AgentMode         string
}

// ExecutionDecision is an audit artifact only; it must never be read as an order
// having been placed.
type ExecutionDecision struct {
	ProposalID        string         `json:"proposal_id"`
	CorrelationID     *string        `json:"correlation_id"`
	AgentName         string         `json:"agent_name"`
	AgentRole         string         `json:"agent_role"`
	Decision          Decision       `json:"decision"`
	RejectReasonCodes []string       `json:"reject_reason_codes"`
	Notes             string         `json:"notes"`
	RecommendedOrder  map[string]any `json:"recommended_order"`
	SafetySnapshot    SafetySnapshot `json:"safety_snapshot"`
	DecisionID        string         `json:"decision_id"`
	DecidedAtUTC      time.Time      `json:"decided_at_utc"`
}

func compactRecommendedOrder(p proposal.OrderProposal) map[string]any {
	return map[string]any{
		"proposal_id":              p.ProposalID.String(),
		"correlation_id":           nilIfEmpty(p.CorrelationID),
		"strategy_name":            nilIfEmpty(p.StrategyName),
		"symbol":                   p.Symbol,
		"asset_type":               string(p.AssetType),
		"side":                     string(p.Side),
		"quantity":                 p.Quantity,
		"limit_price":              p.LimitPrice,
		"time_in_force":            string(p.TimeInForce),
		"valid_until_utc":          p.Constraints.ValidUntilUTC.UTC().Format(time.RFC3339Nano),
		"requires_human_approval":  p.Constraints.RequiresHumanApproval,
	}
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Decide evaluates the four-condition REJECT cascade in order — kill switch, stale or
// missing marketdata, required human approval, expired proposal — and returns the
// corresponding ExecutionDecision. A clean pass yields APPROVE; this never implies
// anything executes it.
func Decide(p proposal.OrderProposal, safety SafetySnapshot, agentName, agentRole string, now time.Time) ExecutionDecision {
	now = now.UTC()

	var correlationID *string
	if p.CorrelationID != "" {
		id := p.CorrelationID
		correlationID = &id
	}

	var reject []string
	if safety.KillSwitch {
		reject = append(reject, "kill_switch_enabled")
	}
	if !safety.MarketdataFresh {
		reject = append(reject, "marketdata_stale_or_missing")
	}
	if p.Constraints.RequiresHumanApproval {
		reject = append(reject, "requires_human_approval")
	}
	if p.Constraints.ValidUntilUTC.UTC().Before(now) {
		reject = append(reject, "proposal_expired")
	}

	d := Reject
	notes := "Rejected by deterministic stub."
	if len(reject) == 0 {
		d = Approve
		notes = "Approved by deterministic stub (NO ORDER WILL BE PLACED)."
	}

	return ExecutionDecision{
		ProposalID:        p.ProposalID.String(),
		CorrelationID:     correlationID,
		AgentName:         agentName,
		AgentRole:         agentRole,
		Decision:          d,
		RejectReasonCodes: reject,
		Notes:             notes,
		RecommendedOrder:  compactRecommendedOrder(p),
		SafetySnapshot:    safety,
		DecisionID:        uuid.New().String(),
		DecidedAtUTC:      time.Now().UTC(),
	}
}
