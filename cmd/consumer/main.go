// Consumer: subscribes to every tenant-addressed NATS subject this platform emits and
// materializes each delivery into Firestore with at-least-once-delivery-to-exactly-once-
// effect semantics (spec C11). Never originates an order.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/shadowtrader/platform/internal/audit"
	"github.com/shadowtrader/platform/internal/config"
	"github.com/shadowtrader/platform/internal/consumer"
	"github.com/shadowtrader/platform/internal/db"
	"github.com/shadowtrader/platform/internal/firestorex"
	"github.com/shadowtrader/platform/internal/metrics"
	"github.com/shadowtrader/platform/internal/telemetry"
)

var wildcardSubjects = []string{
	"market.*.>",
	"signals.*.>",
	"signals_v2.*.>",
	"orders.*.>",
	"fills.*.>",
	"ops.*.>",
}

func main() {
	ambient, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load ambient config")
	}

	telemetry.InitLogger(ambient.App.LogLevel, ambient.App.LogFormat)
	logger := telemetry.NewComponentLogger("consumer")

	if _, err := consumer.AssertPaperBrokerBaseURL(ambient.Consumer.BrokerBaseURL); err != nil {
		log.Fatal().Err(err).Msg("refusing to start: consumer is not wired to a paper-trading broker host")
	}

	client, closeClient := newFirestoreClient(ambient, logger)
	defer closeClient()

	router := consumer.NewRouter(nil)
	dispatcherCfg := consumer.ConfigFromEnv(os.Getenv)
	breakerSettings := consumer.DefaultCircuitBreakerSettings()
	dispatcher := consumer.NewDispatcher(router, client, breakerSettings, func(from, to gobreaker.State) {
		logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("docstore breaker state change")
	}, dispatcherCfg, consumer.ReplayContext{})

	workerCount := ambient.Consumer.WorkerCount
	if workerCount < 1 {
		workerCount = 4
	}
	pool := consumer.NewPool(workerCount, dispatcher.Handle)

	nc, err := nats.Connect(ambient.NATS.URL)
	if err != nil {
		log.Fatal().Err(err).Str("url", ambient.NATS.URL).Msg("failed to connect to NATS")
	}
	defer nc.Close()

	var js nats.JetStreamContext
	if ambient.NATS.EnableJetStream {
		js, err = nc.JetStream()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to get JetStream context")
		}
	}

	var buf messageBuffer
	var subs []*nats.Subscription
	for _, subj := range wildcardSubjects {
		subject := subj
		handler := func(msg *nats.Msg) {
			buf.add(toConsumerMessage(subject, msg))
			if js != nil {
				_ = msg.Ack()
			}
		}
		var sub *nats.Subscription
		if js != nil {
			sub, err = js.Subscribe(subject, handler, nats.Durable(durableName(subject)), nats.ManualAck())
		} else {
			sub, err = nc.Subscribe(subject, handler)
		}
		if err != nil {
			log.Fatal().Err(err).Str("subject", subject).Msg("failed to subscribe")
		}
		subs = append(subs, sub)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsPort := config.GetComponentMetricsPort("consumer")
	mux := http.NewServeMux()
	metrics.RegisterHandlers(mux)
	metricsSrv := &http.Server{Addr: fmt.Sprintf(":%d", metricsPort), Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	auditLogger := newAuditLogger(ctx)

	go flushLoop(ctx, &buf, pool, logger, auditLogger)

	logger.Info().Strs("subjects", wildcardSubjects).Int("workers", workerCount).Msg("consumer started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info().Msg("shutdown signal received")

	cancel()
	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error shutting down metrics server")
	}

	logger.Info().Msg("consumer stopped")
}

func newFirestoreClient(ambient *config.Config, logger zerolog.Logger) (firestorex.Client, func()) {
	if ambient.GCP.ProjectID == "" {
		logger.Warn().Msg("no GCP project id configured, using in-memory document store")
		c := firestorex.NewMemoryClient()
		return c, func() {}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	c, err := firestorex.NewRealClient(ctx, ambient.GCP.ProjectID, "")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Firestore client")
	}
	return c, func() { _ = c.Close() }
}

// messageBuffer accumulates inbound NATS deliveries between flush ticks. A batch
// interface (Pool.Run takes a slice) is a poor fit for a push-based subscription, so the
// consumer bridges the two with a small buffered queue flushed on a fixed cadence.
type messageBuffer struct {
	mu   sync.Mutex
	msgs []consumer.Message
}

func (b *messageBuffer) add(m consumer.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, m)
}

func (b *messageBuffer) drain() []consumer.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.msgs) == 0 {
		return nil
	}
	out := b.msgs
	b.msgs = nil
	return out
}

func flushLoop(ctx context.Context, buf *messageBuffer, pool *consumer.Pool, logger zerolog.Logger, auditLogger *audit.Logger) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if batch := buf.drain(); len(batch) > 0 {
				pool.Run(context.Background(), batch)
			}
			return
		case <-ticker.C:
			batch := buf.drain()
			if len(batch) == 0 {
				continue
			}
			results := pool.Run(ctx, batch)
			for _, r := range results {
				if r.Err != nil {
					logger.Error().Err(r.Err).Str("message_id", r.Ctx.MessageID).Msg("dispatch failed")
					if err := auditLogger.LogDispatchFailure(ctx, r.Ctx.MessageID, r.Ctx.Topic, r.Ctx.Subscription, r.Err.Error()); err != nil {
						logger.Error().Err(err).Msg("failed to record dispatch-failure audit event")
					}
				}
			}
		}
	}
}

// newAuditLogger opens the durable audit trail when DATABASE_URL or Vault credentials
// are available, and falls back to a structured-log-only logger otherwise.
func newAuditLogger(ctx context.Context) *audit.Logger {
	conn, err := db.New(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("no audit database available, audit events will be logged but not persisted")
		return audit.NewLogger(nil, true)
	}
	return audit.NewLogger(conn, true)
}

func toConsumerMessage(subject string, msg *nats.Msg) consumer.Message {
	var payload map[string]any
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		payload = map[string]any{}
	}

	attrs := map[string]string{}
	if msg.Header != nil {
		for k := range msg.Header {
			attrs[k] = msg.Header.Get(k)
		}
	}

	messageID := attrs["messageId"]
	if messageID == "" {
		messageID = fmt.Sprintf("%s-%d", subject, time.Now().UnixNano())
	}

	var deliveryAttempt *int
	if meta, err := msg.Metadata(); err == nil && meta != nil {
		n := int(meta.NumDelivered)
		deliveryAttempt = &n
	}

	return consumer.Message{
		Ctx: consumer.EventContext{
			MessageID:       messageID,
			Topic:           subject,
			PublishedAt:     time.Now().UTC(),
			Subscription:    subjectPrefix(subject),
			Attributes:      attrs,
			DeliveryAttempt: deliveryAttempt,
		},
		Payload: payload,
	}
}

func subjectPrefix(subject string) string {
	return strings.SplitN(subject, ".", 2)[0]
}

func durableName(subject string) string {
	return "consumer_" + strings.NewReplacer(".", "_", "*", "star", ">", "gt").Replace(subject)
}
