// Package publisher drains the outbox into Kafka and, on a slower tick,
// settles orders stuck in PENDING by re-asking the processor.
package publisher

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/m41na/payment-agent-sub001/internal/domain"
	"github.com/m41na/payment-agent-sub001/internal/repository"
)

// OutboxRepo is the slice of the persistence surface the poller drains.
type OutboxRepo interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*repository.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

// OrderRecovery settles orders whose verification never finished in-band.
type OrderRecovery interface {
	PendingVerification(ctx context.Context, limit int) ([]*domain.Order, error)
	Complete(ctx context.Context, order *domain.Order) error
	Fail(ctx context.Context, orderID uuid.UUID) error
}

// IntentFetcher re-fetches the authoritative intent state.
type IntentFetcher interface {
	GetIntent(ctx context.Context, id string) (*domain.PaymentIntent, error)
}

type OutboxPoller struct {
	eventTick    time.Duration
	recoveryTick time.Duration
	// orders younger than this are left alone; their checkout may still be
	// verifying in-band
	recoveryAge time.Duration

	repo     OutboxRepo
	recovery OrderRecovery
	intents  IntentFetcher
	writer   *kafka.Writer
}

func NewOutboxPoller(repo OutboxRepo, recovery OrderRecovery, intents IntentFetcher, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  "order-events",
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &OutboxPoller{
		eventTick:    time.Second,
		recoveryTick: 30 * time.Second,
		recoveryAge:  2 * time.Minute,
		repo:         repo,
		recovery:     recovery,
		intents:      intents,
		writer:       w,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	recoveryTicker := time.NewTicker(p.recoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-recoveryTicker.C:
			p.recoverPendingOrders(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, 100)
	if err != nil {
		log.Printf("failed to fetch outbox events: %v", err)
		return
	}

	for _, event := range events {
		if err := p.publishToKafka(ctx, event); err != nil {
			log.Printf("failed to publish event id=%v: %v", event.ID, err)
			continue
		}
		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			log.Printf("failed to mark event id=%v processed: %v", event.ID, err)
		}
	}
}

// recoverPendingOrders resolves the gap the in-band verification can leave:
// an order recorded after client-observed success whose settlement fetch
// failed or reported processing. The processor's answer decides the order's
// fate; an unreachable processor just leaves it for the next tick.
func (p *OutboxPoller) recoverPendingOrders(ctx context.Context) {
	orders, err := p.recovery.PendingVerification(ctx, 50)
	if err != nil {
		log.Printf("failed to fetch pending orders: %v", err)
		return
	}

	now := time.Now()
	for _, order := range orders {
		if now.Sub(order.CreatedAt) < p.recoveryAge {
			continue
		}

		intent, err := p.intents.GetIntent(ctx, order.IntentID)
		if err != nil {
			log.Printf("settlement check for order %s failed: %v", order.ID, err)
			continue
		}

		switch {
		case intent.Status == domain.IntentStatusSucceeded:
			if err := p.recovery.Complete(ctx, order); err != nil {
				log.Printf("failed to complete recovered order %s: %v", order.ID, err)
				continue
			}
			log.Printf("order %s settled by recovery", order.ID)
		case intent.Status.IsTerminal():
			// failed or canceled processor-side, the order will never settle
			if err := p.recovery.Fail(ctx, order.ID); err != nil {
				log.Printf("failed to fail order %s: %v", order.ID, err)
				continue
			}
			log.Printf("order %s failed by recovery, intent status %s", order.ID, intent.Status)
		}
		// processing / requires_action: leave for the next tick
	}
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *repository.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateId), // order_id for ordering
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
