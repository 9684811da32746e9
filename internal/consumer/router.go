package consumer

import "strings"

// HandlerKind identifies which entity family a message routes to.
type HandlerKind string

const (
	HandlerTradeSignal  HandlerKind = "trade_signal"
	HandlerOpsService   HandlerKind = "ops_service"
	HandlerIngestHealth HandlerKind = "ingest_health"
	HandlerMarketTick   HandlerKind = "market_tick"
	HandlerMarketBar    HandlerKind = "market_bar"
	HandlerUnknown      HandlerKind = ""
)

// Router resolves topic/event-type from attributes+payload, then picks a handler.
type Router struct {
	SubscriptionTopicMap map[string]string
	DefaultTopic         string
}

// NewRouter builds a Router with DefaultTopic="unknown" unless overridden.
func NewRouter(subscriptionTopicMap map[string]string) *Router {
	return &Router{SubscriptionTopicMap: subscriptionTopicMap, DefaultTopic: "unknown"}
}

// ResolveTopic mirrors the Python router: explicit attribute/payload hints first, then a
// subscription->topic map, else DefaultTopic.
func (r *Router) ResolveTopic(subscription string, attributes map[string]string, payload map[string]any) string {
	for _, k := range []string{"topic", "pubsubTopic", "sourceTopic"} {
		if v, ok := attributes[k]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		if v, ok := payload[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if subscription != "" {
		if t, ok := r.SubscriptionTopicMap[subscription]; ok {
			return t
		}
	}
	def := r.DefaultTopic
	if def == "" {
		def = "unknown"
	}
	return def
}

// ResolveEventType mirrors the Python router's eventType/type/kind precedence.
func (r *Router) ResolveEventType(attributes map[string]string, payload map[string]any) string {
	for _, k := range []string{"eventType", "type", "kind"} {
		if v, ok := attributes[k]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		if v, ok := payload[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return "unknown"
}

// HandlerFor routes by explicit eventType first, then topic substring, then
// payload-shape hints, matching the teacher's layered fallback.
func (r *Router) HandlerFor(topic, eventType string, payload map[string]any) HandlerKind {
	t := strings.ToLower(topic)
	et := strings.ToLower(eventType)

	if hasPrefix(et, "system.", "ops.", "service.") || isOneOf(et, "system_event", "service_status", "ops_service") {
		return HandlerOpsService
	}
	if hasPrefix(et, "ingest.", "pipeline.") || isOneOf(et, "ingest_health", "pipeline_status", "ingest_pipeline") {
		return HandlerIngestHealth
	}
	if hasPrefix(et, "trade_signal", "signal.") || isOneOf(et, "trade_signal") {
		return HandlerTradeSignal
	}
	if hasPrefix(et, "market_tick", "tick.") {
		return HandlerMarketTick
	}
	if hasPrefix(et, "market_bar", "bar.") {
		return HandlerMarketBar
	}

	if containsAny(t, "system", "ops", "service") {
		return HandlerOpsService
	}
	if containsAny(t, "ingest", "pipeline", "health") {
		return HandlerIngestHealth
	}
	if containsAny(t, "trade-signal", "trade_signal", "signal") {
		return HandlerTradeSignal
	}
	if containsAny(t, "market-tick", "tick") {
		return HandlerMarketTick
	}
	if containsAny(t, "market-bar", "bar") {
		return HandlerMarketBar
	}

	if hasAnyKey(payload, "service", "serviceName", "component", "app", "service_id") {
		return HandlerOpsService
	}
	if hasAnyKey(payload, "pipeline", "pipelineName", "ingestPipeline", "pipeline_id") {
		return HandlerIngestHealth
	}
	if hasAnyKey(payload, "symbol", "strategy", "signal_type") {
		return HandlerTradeSignal
	}

	return HandlerUnknown
}

func hasPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasAnyKey(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}
