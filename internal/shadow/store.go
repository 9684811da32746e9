package shadow

import (
	"context"
	"errors"
	"time"

	"github.com/shadowtrader/platform/internal/firestorex"
)

// TradeCollection is the only collection this store ever writes to.
const TradeCollection = "shadowTradeHistory"

// TradeStore writes shadow-only option execution records, idempotent on doc id.
type TradeStore struct {
	client firestorex.Client
}

// NewTradeStore wraps a document-store client. Pass firestorex.NewMemoryClient() in
// tests; production wires firestorex.NewRealClient.
func NewTradeStore(client firestorex.Client) *TradeStore {
	return &TradeStore{client: client}
}

// CreateSimulatedOnceInput bundles the fields persisted into one shadowTradeHistory doc.
type CreateSimulatedOnceInput struct {
	DocID            string
	IntentID         string
	OptionSymbol     string
	Contracts        int
	Side             string
	Reason           string
	MetadataSnapshot map[string]any
	NowUTC           time.Time
}

// CreateSimulatedOnce creates one record per doc id. Returns (record, true) when this
// call created it, (existing record, false) when a prior call already had.
func (s *TradeStore) CreateSimulatedOnce(ctx context.Context, in CreateSimulatedOnceInput) (map[string]any, bool, error) {
	docID := in.DocID
	if docID == "" {
		return nil, false, errors.New("shadow: doc id must be non-empty")
	}
	ts := in.NowUTC
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	record := map[string]any{
		"intent_id":         in.IntentID,
		"option_symbol":     in.OptionSymbol,
		"contracts":         in.Contracts,
		"side":              in.Side,
		"timestamp_iso":     ts.UTC().Format(time.RFC3339Nano),
		"status":            "simulated",
		"reason":            in.Reason,
		"metadata_snapshot": in.MetadataSnapshot,
	}

	ref := s.client.Collection(TradeCollection).Doc(docID)
	err := ref.Create(ctx, record)
	if err == nil {
		return record, true, nil
	}
	if !errors.Is(err, firestorex.ErrAlreadyExists) {
		return nil, false, err
	}

	snap, getErr := ref.Get(ctx)
	if getErr != nil {
		return nil, false, getErr
	}
	if snap.Exists() {
		return snap.Data(), false, nil
	}
	return record, false, nil
}
