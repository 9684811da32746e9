package consumer

import (
	"context"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/shadowtrader/platform/internal/firestorex"
)

// DispatcherConfig configures collection names and the DLQ sample rate the dispatcher
// uses once it falls through the entity-specific handlers below.
type DispatcherConfig struct {
	TradeSignalsCollection string
	MarketTicksCollection  string
	MarketBarsCollection   string
	DLQSampleRate          float64
	DLQTTLSeconds          int
}

// DefaultDispatcherConfig mirrors the collection names used throughout this package's
// own tests and the teacher's Firestore-backed consumer.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		TradeSignalsCollection: "trade_signals",
		MarketTicksCollection:  "market_ticks",
		MarketBarsCollection:   "market_bars",
		DLQSampleRate:          0.01,
	}
}

// Dispatcher wires a Router, a Firestore client (guarded by a circuit breaker), and the
// entity-specific upsert functions into one HandleFunc the worker Pool can run.
type Dispatcher struct {
	router  *Router
	client  firestorex.Client
	breaker *gobreaker.CircuitBreaker
	cfg     DispatcherConfig
	replay  ReplayContext
}

// NewDispatcher builds a Dispatcher. breakerSettings configures the document-store
// breaker; pass a zero ReplayContext for normal (non-replay) operation.
func NewDispatcher(router *Router, client firestorex.Client, breakerSettings CircuitBreakerSettings, onBreakerStateChange func(from, to gobreaker.State), cfg DispatcherConfig, replay ReplayContext) *Dispatcher {
	return &Dispatcher{
		router:  router,
		client:  client,
		breaker: NewDocStoreBreaker(breakerSettings, onBreakerStateChange),
		cfg:     cfg,
		replay:  replay,
	}
}

// Handle routes msg to the matching upsert path and records delivery visibility. It
// satisfies HandleFunc and is the function cmd/consumer wires into a Pool.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) (UpsertOutcome, error) {
	topic := d.router.ResolveTopic(msg.Ctx.Subscription, msg.Ctx.Attributes, msg.Payload)
	eventType := d.router.ResolveEventType(msg.Ctx.Attributes, msg.Payload)
	kind := d.router.HandlerFor(topic, eventType, msg.Payload)

	source := SourceInfo{Topic: topic, MessageID: msg.Ctx.MessageID, PublishedAt: msg.Ctx.PublishedAt}
	ObserveDelivery(ctx, d.client, msg.Ctx.MessageID, source, string(kind))

	result, err := d.breaker.Execute(func() (any, error) {
		return d.dispatch(ctx, kind, topic, source, msg)
	})
	if err != nil {
		MaybeWriteSampledDLQEvent(ctx, d.client, DLQSampleInput{
			MessageID:       msg.Ctx.MessageID,
			Subscription:    msg.Ctx.Subscription,
			Topic:           topic,
			Handler:         string(kind),
			Reason:          "handler_error",
			Error:           err.Error(),
			DeliveryAttempt: msg.Ctx.DeliveryAttempt,
			Attributes:      msg.Ctx.Attributes,
			Payload:         msg.Payload,
			SampleRate:      d.cfg.DLQSampleRate,
		})
		return UpsertOutcome{}, err
	}
	return result.(UpsertOutcome), nil
}

func (d *Dispatcher) dispatch(ctx context.Context, kind HandlerKind, topic string, source SourceInfo, msg Message) (UpsertOutcome, error) {
	eventTime := OrderingTimestamp(msg.Payload, msg.Ctx.PublishedAt)
	docID := ChooseDocID(msg.Payload, msg.Ctx.MessageID)

	switch kind {
	case HandlerOpsService:
		return DedupeAndUpsertOpsService(ctx, d.client, OpsServiceUpsertInput{
			MessageID:       msg.Ctx.MessageID,
			Replay:          d.replay,
			ReplayDedupeKey: docID,
			ServiceID:       docID,
			LastHeartbeatAt: eventTime,
			UpdatedAt:       eventTime,
			Source:          source,
		})
	case HandlerTradeSignal:
		return UpsertEvent(ctx, d.client, UpsertEventInput{
			Collection:      d.cfg.TradeSignalsCollection,
			DocID:           docID,
			EventTime:       eventTime,
			Source:          source,
			Doc:             msg.Payload,
			Replay:          d.replay,
			ReplayDedupeKey: docID,
		})
	case HandlerMarketTick:
		return UpsertEvent(ctx, d.client, UpsertEventInput{
			Collection:      d.cfg.MarketTicksCollection,
			DocID:           docID,
			EventTime:       eventTime,
			Source:          source,
			Doc:             msg.Payload,
			Replay:          d.replay,
			ReplayDedupeKey: docID,
		})
	case HandlerMarketBar:
		return UpsertEvent(ctx, d.client, UpsertEventInput{
			Collection:      d.cfg.MarketBarsCollection,
			DocID:           docID,
			EventTime:       eventTime,
			Source:          source,
			Doc:             msg.Payload,
			Replay:          d.replay,
			ReplayDedupeKey: docID,
		})
	case HandlerIngestHealth:
		return UpsertEvent(ctx, d.client, UpsertEventInput{
			Collection:      "ingest_health",
			DocID:           docID,
			EventTime:       eventTime,
			Source:          source,
			Doc:             msg.Payload,
			Replay:          d.replay,
			ReplayDedupeKey: docID,
		})
	default:
		return UpsertOutcome{Applied: false, Reason: ReasonNoDedupeKey}, nil
	}
}

// ConfigFromEnv reads CONSUMER_* env vars naming the collections this dispatcher writes
// to, falling back to DefaultDispatcherConfig's names.
func ConfigFromEnv(getenv func(string) string) DispatcherConfig {
	cfg := DefaultDispatcherConfig()
	if v := strings.TrimSpace(getenv("CONSUMER_TRADE_SIGNALS_COLLECTION")); v != "" {
		cfg.TradeSignalsCollection = v
	}
	if v := strings.TrimSpace(getenv("CONSUMER_MARKET_TICKS_COLLECTION")); v != "" {
		cfg.MarketTicksCollection = v
	}
	if v := strings.TrimSpace(getenv("CONSUMER_MARKET_BARS_COLLECTION")); v != "" {
		cfg.MarketBarsCollection = v
	}
	return cfg
}
