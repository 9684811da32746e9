// Package observer implements the read-only plan explainer (spec §4.C14): given an
// option plan, or the latest one discovered in today's audit artifacts, it
// reconstructs why the plan was created, which contract it targeted, and whether it
// was ultimately approved or rejected. It never writes a file, never imports a broker
// client, and never triggers execution — it only reads what C4/C5/C7 already wrote.
package observer

// ContractSelection names the option leg extracted from a plan, permissively.
type ContractSelection struct {
	UnderlyingSymbol string   `json:"underlying_symbol"`
	Expiration       string   `json:"expiration,omitempty"`
	Right            string   `json:"right,omitempty"`
	Strike           *float64 `json:"strike,omitempty"`
	ContractSymbol   string   `json:"contract_symbol,omitempty"`
}

// ExecutionEvidence is what the explainer could establish about the plan's outcome.
type ExecutionEvidence struct {
	Decision          string   `json:"decision"` // APPROVE|REJECT|UNKNOWN
	DecidedAtUTC      string   `json:"decided_at_utc,omitempty"`
	DecisionID        string   `json:"decision_id,omitempty"`
	RejectReasonCodes []string `json:"reject_reason_codes,omitempty"`
	Notes             string   `json:"notes,omitempty"`
	Source            string   `json:"source,omitempty"` // file path, or "stdout_logs:<log path>"
}

// KeyFactor is one entry of the rationale's indicators, surfaced as name/value/weight.
type KeyFactor struct {
	Name   string `json:"name"`
	Value  any    `json:"value,omitempty"`
	Weight any    `json:"weight,omitempty"`
}

// Explanation is the full read-only reconstruction the explainer returns.
type Explanation struct {
	PlanID        string `json:"plan_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	CreatedAtUTC  string `json:"created_at_utc,omitempty"`
	StrategyName  string `json:"strategy_name,omitempty"`
	AgentName     string `json:"agent_name,omitempty"`

	UnderlyingSymbol string             `json:"underlying_symbol,omitempty"`
	SelectedContract *ContractSelection `json:"selected_contract,omitempty"`
	Side             string             `json:"side,omitempty"`
	Quantity         *int               `json:"quantity,omitempty"`
	LimitPrice       *float64           `json:"limit_price,omitempty"`
	TimeInForce      string             `json:"time_in_force,omitempty"`

	Why        string      `json:"why,omitempty"`
	KeyFactors []KeyFactor `json:"key_factors,omitempty"`

	ExecutionSucceeded *bool             `json:"execution_succeeded,omitempty"`
	Execution          ExecutionEvidence `json:"execution"`

	Sources []string `json:"sources,omitempty"`
}

// maxKeyFactors bounds how many rationale indicators surface in an explanation.
const maxKeyFactors = 10
