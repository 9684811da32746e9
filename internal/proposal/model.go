// Package proposal implements the order-proposal schema, its fail-closed validator,
// and the append-only emitter/lifecycle manager (spec §4.C4, §4.C5).
package proposal

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Side is the proposal's buy/sell direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// AssetType is the instrument class a proposal targets.
type AssetType string

const (
	AssetOption AssetType = "OPTION"
	AssetEquity AssetType = "EQUITY"
	AssetFuture AssetType = "FUTURE"
)

// Status is the proposal lifecycle state.
type Status string

const (
	StatusProposed  Status = "PROPOSED"
	StatusRejected  Status = "REJECTED"
	StatusSuperseded Status = "SUPERSEDED"
	StatusExpired   Status = "EXPIRED"
)

// TimeInForce governs how long an order stays live once submitted (never actually
// submitted in this platform's committed posture — see spec §1).
type TimeInForce string

const (
	TIFDay TimeInForce = "DAY"
	TIFGTC TimeInForce = "GTC"
	TIFIOC TimeInForce = "IOC"
)

// OptionRight distinguishes calls from puts.
type OptionRight string

const (
	RightCall OptionRight = "CALL"
	RightPut  OptionRight = "PUT"
)

// Option carries the option-specific leg of an OPTION-asset proposal.
type Option struct {
	Expiration     time.Time   `json:"expiration"`
	Right          OptionRight `json:"right"`
	Strike         float64     `json:"strike"`
	ContractSymbol string      `json:"contract_symbol,omitempty"`
}

// Rationale documents why the proposal was generated.
type Rationale struct {
	ShortReason string         `json:"short_reason"`
	Indicators  map[string]any `json:"indicators,omitempty"`
}

// Risk carries optional risk bounds for the proposal.
type Risk struct {
	MaxLossUSD *float64 `json:"max_loss_usd,omitempty"`
	StopLoss   *float64 `json:"stop_loss,omitempty"`
	TakeProfit *float64 `json:"take_profit,omitempty"`
}

// Constraints bound when and how a proposal may be acted upon.
type Constraints struct {
	ValidUntilUTC         time.Time `json:"valid_until_utc"`
	RequiresHumanApproval bool      `json:"requires_human_approval"`
}

// OrderProposal is the immutable record a strategy emits. Construction always goes
// through New, which fills identity/defaults; once appended to the audit log, a
// proposal is never mutated — only its status is advanced via lifecycle bookkeeping
// kept out-of-band (see Lifecycle).
type OrderProposal struct {
	ProposalID      uuid.UUID   `json:"proposal_id"`
	CreatedAtUTC    time.Time   `json:"created_at_utc"`
	RepoID          string      `json:"repo_id"`
	AgentName       string      `json:"agent_name"`
	StrategyName    string      `json:"strategy_name"`
	StrategyVersion string      `json:"strategy_version,omitempty"`
	CorrelationID   string      `json:"correlation_id"`
	Symbol          string      `json:"symbol"`
	AssetType       AssetType   `json:"asset_type"`
	Option          *Option     `json:"option,omitempty"`
	Side            Side        `json:"side"`
	Quantity        int         `json:"quantity"`
	LimitPrice      *float64    `json:"limit_price,omitempty"`
	TimeInForce     TimeInForce `json:"time_in_force"`
	Rationale       Rationale   `json:"rationale"`
	Risk            Risk        `json:"risk"`
	Constraints     Constraints `json:"constraints"`
	Status          Status      `json:"status"`
}

// New constructs a proposal with a fresh identity, CreatedAtUTC=now, AssetType
// defaulting to OPTION, TimeInForce defaulting to DAY, and Status=PROPOSED — the same
// defaulting the source schema applies.
func New(fields OrderProposal) OrderProposal {
	p := fields
	if p.ProposalID == uuid.Nil {
		p.ProposalID = uuid.New()
	}
	if p.CreatedAtUTC.IsZero() {
		p.CreatedAtUTC = time.Now().UTC()
	}
	if p.AssetType == "" {
		p.AssetType = AssetOption
	}
	if p.TimeInForce == "" {
		p.TimeInForce = TIFDay
	}
	if p.Status == "" {
		p.Status = StatusProposed
	}
	return p
}

// ContractKey identifies the logical contract a proposal targets, used by the
// lifecycle manager to detect superseding proposals for the same (strategy, symbol,
// contract).
func (p OrderProposal) ContractKey() string {
	if p.Option != nil {
		return p.Symbol + ":" + p.Option.Expiration.Format("2006-01-02") + ":" + string(p.Option.Right) + ":" + strconv.FormatFloat(p.Option.Strike, 'f', -1, 64)
	}
	return p.Symbol + ":" + string(p.AssetType)
}
