package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"teapot/internal/events"
	"teapot/internal/logger"
	"teapot/internal/models"
)

const publishTimeout = 10 * time.Second

// Publisher sends order-placed messages to the orders fanout exchange
type Publisher struct {
	conn   *Connection
	logger *logger.Logger
}

// NewPublisher creates a new message publisher
func NewPublisher(conn *Connection, log *logger.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: log,
	}
}

// PublishOrderPlaced broadcasts a placed order as a persistent message
func (p *Publisher) PublishOrderPlaced(ctx context.Context, msg *models.OrderPlacedMessage) error {
	publishing, err := encodeOrderPlaced(msg, time.Now())
	if err != nil {
		return err
	}

	ch, err := p.conn.Channel(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(
		ctx,
		OrdersExchange, // exchange
		"",             // routing key
		false,          // mandatory
		false,          // immediate
		publishing,
	)
	if err != nil {
		p.logger.Error("message_publish_failed",
			fmt.Sprintf("Failed to publish message to exchange %s", OrdersExchange),
			"", err, map[string]interface{}{
				"order_id": msg.OrderID,
			})
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug("message_published",
		fmt.Sprintf("Published message to exchange %s", OrdersExchange),
		"", map[string]interface{}{
			"order_id":     msg.OrderID,
			"message_size": len(publishing.Body),
		})

	return nil
}

// Close closes the underlying connection
func (p *Publisher) Close() error {
	return p.conn.Close()
}

func encodeOrderPlaced(msg *models.OrderPlacedMessage, now time.Time) (amqp091.Publishing, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return amqp091.Publishing{}, fmt.Errorf("failed to marshal message: %w", err)
	}

	return amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		MessageId:    msg.OrderID,
		Type:         "order.placed",
		Timestamp:    now,
	}, nil
}

// OrderPlacedPublisher is satisfied by *Publisher
type OrderPlacedPublisher interface {
	PublishOrderPlaced(ctx context.Context, msg *models.OrderPlacedMessage) error
}

// Bridge forwards OrderPlaced messages from a session bus to the broker
type Bridge struct {
	publisher OrderPlacedPublisher
	logger    *logger.Logger
	now       func() time.Time
}

// NewBridge creates a bus handler that publishes placed orders
func NewBridge(publisher OrderPlacedPublisher, log *logger.Logger) *Bridge {
	return &Bridge{
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
}

// HandleMessage publishes OrderPlaced messages; broker failures are logged
func (b *Bridge) HandleMessage(ctx context.Context, msg events.Message) {
	placed, ok := msg.(events.OrderPlaced)
	if !ok {
		return
	}

	if err := b.publisher.PublishOrderPlaced(ctx, models.CreateOrderPlacedMessage(placed.Order, b.now())); err != nil {
		b.logger.Error("order_broadcast_failed", "Failed to broadcast placed order", "", err, map[string]interface{}{
			"order_id": placed.Order.ID,
		})
	}
}
