package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"teapot/internal/config"
	"teapot/internal/logger"
)

// Topology names
const (
	OrdersExchange     = "orders_fanout"
	NotificationsQueue = "order_notifications_queue"
)

const maxConnectRetries = 5

// Connection wraps a RabbitMQ connection and channel with reconnection logic
type Connection struct {
	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
	logger  *logger.Logger
	url     string
}

// New connects to RabbitMQ and declares the order fanout topology
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Connection, error) {
	conn := &Connection{
		logger: log,
		url:    cfg.RabbitMQURL(),
	}

	if err := conn.connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to establish initial connection: %w", err)
	}

	return conn, nil
}

// connect must be called with c.mu held or before c is shared
func (c *Connection) connect(ctx context.Context) error {
	var err error

	for i := 0; i < maxConnectRetries; i++ {
		if err = c.dial(); err == nil {
			return nil
		}

		if i < maxConnectRetries-1 {
			waitTime := time.Duration(i+1) * 2 * time.Second
			c.logger.Error("rabbitmq_connection_failed",
				fmt.Sprintf("Failed to connect to RabbitMQ, retrying in %v", waitTime),
				"startup", err, nil)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitTime):
			}
		}
	}

	return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxConnectRetries, err)
}

func (c *Connection) dial() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	if err := setupTopology(ch); err != nil {
		c.logger.Error("rabbitmq_setup_failed", "Failed to set up topology", "startup", err, nil)
		ch.Close()
		conn.Close()
		return err
	}

	c.conn, c.channel = conn, ch
	return nil
}

// setupTopology declares the orders fanout exchange and the staff notification queue bound to it
func setupTopology(ch *amqp091.Channel) error {
	err := ch.ExchangeDeclare(
		OrdersExchange, // name
		"fanout",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare %s exchange: %w", OrdersExchange, err)
	}

	_, err = ch.QueueDeclare(
		NotificationsQueue, // name
		true,               // durable
		false,              // delete when unused
		false,              // exclusive
		false,              // no-wait
		amqp091.Table{
			"x-message-ttl": int32(24 * time.Hour / time.Millisecond),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare %s queue: %w", NotificationsQueue, err)
	}

	err = ch.QueueBind(
		NotificationsQueue, // queue name
		"",                 // routing key (ignored for fanout)
		OrdersExchange,     // exchange
		false,              // no-wait
		nil,                // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to bind %s queue: %w", NotificationsQueue, err)
	}

	return nil
}

// Channel returns a live channel, reconnecting first if the connection dropped
func (c *Connection) Channel(ctx context.Context) (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isClosed() {
		c.closeLocked()
		if err := c.connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to reconnect: %w", err)
		}
	}
	return c.channel, nil
}

// Close closes the channel and the connection
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Connection) closeLocked() error {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// IsClosed reports whether the connection or its channel is gone
func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isClosed()
}

func (c *Connection) isClosed() bool {
	return c.conn == nil || c.conn.IsClosed() || c.channel == nil || c.channel.IsClosed()
}
