package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/service"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher публикует события бронирований. Канал AMQP не потокобезопасен,
// поэтому публикации идут под мьютексом.
type Publisher struct {
	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
	now  func() time.Time
}

var _ service.EventPublisher = (*Publisher)(nil)

func NewPublisher(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}

	// Объявление очереди идемпотентно
	for _, name := range outboundQueues {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("queue declare %s: %w", name, err)
		}
	}

	return &Publisher{conn: conn, ch: ch, now: time.Now}, nil
}

func (p *Publisher) PublishBookingCancelled(ctx context.Context, event model.BookingCancelledEvent) error {
	return p.publish(ctx, BookingCancelledQueue, event.BookingID.String(), event)
}

func (p *Publisher) PublishRefundRequested(ctx context.Context, refund model.CompensationRefund) error {
	return p.publish(ctx, RefundRequestedQueue, refund.SessionID, refund)
}

func (p *Publisher) PublishBookingApproved(ctx context.Context, event model.BookingApprovedEvent) error {
	return p.publish(ctx, BookingApprovedQueue, event.BookingID.String(), event)
}

func (p *Publisher) publish(ctx context.Context, queue, messageID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", queue, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    p.now().UTC(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.PublishWithContext(ctx, "", queue, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", queue, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_ = p.ch.Close()
	return p.conn.Close()
}
