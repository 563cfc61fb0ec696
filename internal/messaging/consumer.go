package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"teapot/internal/logger"
	"teapot/internal/models"
)

const processingTimeout = 30 * time.Second

// ErrDiscard marks a message that can never be processed; it is dropped instead of requeued
var ErrDiscard = errors.New("discard message")

// MessageHandler processes one message body
type MessageHandler func(ctx context.Context, body []byte) error

// Consumer handles message consumption from RabbitMQ
type Consumer struct {
	conn        *Connection
	logger      *logger.Logger
	queueName   string
	consumerTag string
	prefetch    int
}

// NewConsumer creates a new message consumer
func NewConsumer(conn *Connection, log *logger.Logger, queueName, consumerTag string, prefetch int) *Consumer {
	return &Consumer{
		conn:        conn,
		logger:      log,
		queueName:   queueName,
		consumerTag: consumerTag,
		prefetch:    prefetch,
	}
}

// StartConsuming consumes until ctx is done, reconnecting when the broker closes the channel
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	for {
		err := c.consume(ctx, handler)
		if ctx.Err() != nil {
			c.logger.Info("consumer_stopped", "Consumer stopped by context", "", nil)
			return nil
		}
		if err != nil {
			return err
		}
		c.logger.Error("consumer_channel_closed", "Message channel closed, attempting to reconnect", "", nil, nil)
	}
}

func (c *Consumer) consume(ctx context.Context, handler MessageHandler) error {
	ch, err := c.conn.Channel(ctx)
	if err != nil {
		return err
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		c.queueName,   // queue
		c.consumerTag, // consumer
		false,         // auto-ack
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("consumer_started",
		fmt.Sprintf("Started consuming from queue %s", c.queueName),
		"", map[string]interface{}{
			"queue":    c.queueName,
			"consumer": c.consumerTag,
			"prefetch": c.prefetch,
		})

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			c.processMessage(ctx, d, handler)
		}
	}
}

// processMessage runs the handler and acks, requeues, or drops the delivery
func (c *Consumer) processMessage(ctx context.Context, delivery amqp091.Delivery, handler MessageHandler) {
	startTime := time.Now()

	processingCtx, cancel := context.WithTimeout(ctx, processingTimeout)
	defer cancel()

	err := handler(processingCtx, delivery.Body)
	duration := time.Since(startTime)

	if err == nil {
		c.logger.Debug("message_processed", "Successfully processed message", "", map[string]interface{}{
			"queue":        c.queueName,
			"duration_ms":  duration.Milliseconds(),
			"delivery_tag": delivery.DeliveryTag,
		})
		if ackErr := delivery.Ack(false); ackErr != nil {
			c.logger.Error("message_ack_failed", "Failed to ack message", "", ackErr, nil)
		}
		return
	}

	requeue := !errors.Is(err, ErrDiscard)
	c.logger.Error("message_processing_failed", "Failed to process message", "", err, map[string]interface{}{
		"queue":        c.queueName,
		"duration_ms":  duration.Milliseconds(),
		"delivery_tag": delivery.DeliveryTag,
		"requeue":      requeue,
	})
	if nackErr := delivery.Nack(false, requeue); nackErr != nil {
		c.logger.Error("message_nack_failed", "Failed to nack message", "", nackErr, nil)
	}
}

// DecodeOrderPlaced parses an order-placed message body; malformed bodies wrap ErrDiscard
func DecodeOrderPlaced(body []byte) (*models.OrderPlacedMessage, error) {
	var msg models.OrderPlacedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse order placed message: %v", ErrDiscard, err)
	}
	if msg.OrderID == "" || len(msg.Items) == 0 {
		return nil, fmt.Errorf("%w: order placed message without id or items", ErrDiscard)
	}
	return &msg, nil
}

// Close cancels the consumer and closes the connection
func (c *Consumer) Close() error {
	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	ch, err := c.conn.Channel(context.Background())
	if err == nil {
		if err := ch.Cancel(c.consumerTag, false); err != nil {
			c.logger.Error("consumer_cancel_failed", "Failed to cancel consumer", "", err, nil)
		}
	}
	return c.conn.Close()
}
