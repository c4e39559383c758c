package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/service"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// PaymentHandler создаёт бронирование по событию оплаты
type PaymentHandler interface {
	HandlePaymentConfirmed(ctx context.Context, event model.PaymentConfirmedEvent) (*model.Booking, error)
}

// outcome что сделать с сообщением после обработки
type outcome int

const (
	ack outcome = iota
	reject
	requeue
)

type Consumer struct {
	url     string
	handler PaymentHandler
	logger  *zap.Logger
}

func NewConsumer(url string, handler PaymentHandler, logger *zap.Logger) *Consumer {
	return &Consumer{
		url:     url,
		handler: handler,
		logger:  logger,
	}
}

// Run слушает payment.confirmed и переподключается при обрыве, пока не отменён ctx
func (c *Consumer) Run(ctx context.Context) {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("Failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			c.logger.Info("Payment consumer stopped")
			return
		}

		c.logger.Warn("Consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(20, 0, false); err != nil {
		c.logger.Warn("Set QoS failed", zap.Error(err))
	}

	if _, err := ch.QueueDeclare(PaymentConfirmedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(PaymentConfirmedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	c.logger.Info("Payment consumer started", zap.String("queue", PaymentConfirmedQueue))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			switch c.handleMessage(ctx, d.Body) {
			case ack:
				_ = d.Ack(false)
			case reject:
				_ = d.Nack(false, false)
			case requeue:
				_ = d.Nack(false, true)
			}
		}
	}
}

// handleMessage доставка at-least-once: повтор безопасен, обработчик идемпотентен
func (c *Consumer) handleMessage(ctx context.Context, body []byte) outcome {
	var event model.PaymentConfirmedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.logger.Error("Malformed payment event", zap.Error(err))
		return reject
	}

	booking, err := c.handler.HandlePaymentConfirmed(ctx, event)
	switch {
	case err == nil:
		c.logger.Debug("Payment event handled",
			zap.String("session_id", event.SessionID),
			zap.String("booking_id", booking.ID.String()),
		)
		return ack
	case errors.Is(err, service.ErrConflict):
		// Возврат уже помечен, повторять нечего
		return ack
	case errors.Is(err, service.ErrValidation):
		c.logger.Error("Invalid payment event",
			zap.String("session_id", event.SessionID),
			zap.String("reason", service.Reason(err)),
		)
		return reject
	default:
		c.logger.Error("Failed to handle payment event",
			zap.String("session_id", event.SessionID),
			zap.Error(err),
		)
		return requeue
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
