package shadow

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ExecutionResult mirrors the executor's single return shape: applied is true only when
// a new record was written.
type ExecutionResult struct {
	Applied bool
	Status  string // "simulated" | "skipped"
	Reason  string
	DocID   string
	Record  map[string]any
}

// Executor is the shadow-only executor for option order intents. It never calls a
// broker and never places a real order; every call either writes exactly one append-only
// record or produces a typed skip reason.
type Executor struct {
	store  *TradeStore
	logger zerolog.Logger
}

// NewExecutor builds an Executor over a TradeStore.
func NewExecutor(store *TradeStore, logger zerolog.Logger) *Executor {
	return &Executor{store: store, logger: logger}
}

// ExecuteInput bundles Execute's arguments.
type ExecuteInput struct {
	Intent           OptionOrderIntent
	ResolvedContract map[string]any
	Reason           string
	MetadataSnapshot map[string]any
	NowUTC           time.Time
}

// Execute simulates an option fill and persists it. The reason defaults to
// "shadow_only_execution" when unset.
func (e *Executor) Execute(ctx context.Context, in ExecuteInput) ExecutionResult {
	ts := in.NowUTC
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	reason := in.Reason
	if reason == "" {
		reason = "shadow_only_execution"
	}

	optSymbol := resolveOptionSymbol(in.Intent, in.ResolvedContract)
	side := strings.ToLower(strings.TrimSpace(in.Intent.Side))

	log := e.logger.With().
		Str("correlation_id", in.Intent.CorrelationID).
		Str("tenant_id", in.Intent.TenantID).
		Str("intent_id", in.Intent.IntentID).
		Str("option_symbol", optSymbol).
		Str("side", side).
		Logger()

	log.Info().Time("timestamp", ts).Msg("option.execution.attempt")

	if holdReason := detectHold(in.Intent); holdReason != "" {
		log.Info().Str("reason", holdReason).Msg("option.execution.skipped")
		return ExecutionResult{Applied: false, Status: "skipped", Reason: holdReason}
	}

	contracts, contractsErr := parseContracts(in.Intent.Quantity)
	if contractsErr != "" {
		log.Warn().Str("reason", contractsErr).Msg("option.execution.skipped")
		return ExecutionResult{Applied: false, Status: "skipped", Reason: contractsErr}
	}

	docID := StableUUID(in.Intent.TenantID + ":shadow_option_intent:" + in.Intent.IntentID).String()

	snapshot := map[string]any{
		"intent":            intentToMap(in.Intent),
		"resolved_contract": in.ResolvedContract,
	}
	if in.MetadataSnapshot != nil {
		snapshot["metadata"] = in.MetadataSnapshot
	}

	record, created, err := e.store.CreateSimulatedOnce(ctx, CreateSimulatedOnceInput{
		DocID:            docID,
		IntentID:         in.Intent.IntentID,
		OptionSymbol:     optSymbol,
		Contracts:        contracts,
		Side:             side,
		Reason:           reason,
		MetadataSnapshot: snapshot,
		NowUTC:           ts,
	})
	if err != nil {
		log.Error().Err(err).Str("doc_id", docID).Msg("option.execution.store_error")
		return ExecutionResult{Applied: false, Status: "skipped", Reason: "store_error", DocID: docID}
	}

	if created {
		log.Info().
			Int("contracts", contracts).
			Str("status", "simulated").
			Str("reason", reason).
			Str("doc_id", docID).
			Msg("option.execution.simulated")
		return ExecutionResult{Applied: true, Status: "simulated", Reason: reason, DocID: docID, Record: record}
	}

	log.Info().Str("reason", "duplicate_intent_replay").Str("doc_id", docID).Msg("option.execution.skipped")
	return ExecutionResult{Applied: false, Status: "skipped", Reason: "duplicate_intent_replay", DocID: docID, Record: record}
}

func intentToMap(intent OptionOrderIntent) map[string]any {
	return map[string]any{
		"tenant_id":       intent.TenantID,
		"intent_id":       intent.IntentID,
		"correlation_id":  intent.CorrelationID,
		"contract_symbol": intent.ContractSymbol,
		"side":            intent.Side,
		"quantity":        intent.Quantity,
		"options":         intent.Options,
		"meta":            intent.Meta,
	}
}
