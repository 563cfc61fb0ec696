package notification

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"teapot/internal/logger"
	"teapot/internal/messaging"
	"teapot/internal/models"
)

// Sender delivers a message to a Telegram chat; *tgbotapi.BotAPI satisfies it
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Subscriber prints a line for every placed order and forwards it to the staff chat
type Subscriber struct {
	consumer *messaging.Consumer
	sender   Sender
	chatID   int64
	out      io.Writer
	logger   *logger.Logger
}

// NewSubscriber creates a subscriber. sender may be nil to only print; out
// defaults to stdout.
func NewSubscriber(consumer *messaging.Consumer, sender Sender, chatID int64, out io.Writer, log *logger.Logger) *Subscriber {
	if out == nil {
		out = os.Stdout
	}
	return &Subscriber{
		consumer: consumer,
		sender:   sender,
		chatID:   chatID,
		out:      out,
		logger:   log,
	}
}

// Start consumes order notifications until ctx is done
func (s *Subscriber) Start(ctx context.Context) error {
	requestID := logger.GenerateRequestID()

	s.logger.Info("service_started", "Notification subscriber started", requestID, map[string]interface{}{
		"queue":    messaging.NotificationsQueue,
		"telegram": s.sender != nil,
	})

	err := s.consumer.StartConsuming(ctx, s.HandleMessage)

	s.logger.Info("graceful_shutdown", "Starting graceful shutdown", requestID, nil)
	if closeErr := s.consumer.Close(); closeErr != nil {
		s.logger.Error("shutdown_failed", "Failed to close consumer", requestID, closeErr, nil)
	}
	s.logger.Info("graceful_shutdown", "Graceful shutdown completed", requestID, nil)

	return err
}

// HandleMessage displays one order-placed message. Malformed bodies are
// discarded; a failed Telegram push is logged and the message still acked.
func (s *Subscriber) HandleMessage(ctx context.Context, body []byte) error {
	requestID := logger.GenerateRequestID()

	msg, err := messaging.DecodeOrderPlaced(body)
	if err != nil {
		s.logger.Error("message_parsing_failed", "Failed to parse order notification", requestID, err, nil)
		return err
	}

	text := FormatOrderPlaced(msg)
	fmt.Fprintln(s.out, text)

	s.logger.Info("notification_displayed", "Order notification displayed", requestID, map[string]interface{}{
		"order_id":     msg.OrderID,
		"order_number": msg.OrderNumber,
		"total":        msg.Total.StringFixed(2),
	})

	if s.sender != nil && s.chatID != 0 {
		if _, err := s.sender.Send(tgbotapi.NewMessage(s.chatID, text)); err != nil {
			s.logger.Error("telegram_send_failed", "Failed to forward order to staff chat", requestID, err, map[string]interface{}{
				"order_id": msg.OrderID,
				"chat_id":  s.chatID,
			})
		}
	}

	return nil
}

// FormatOrderPlaced renders a human-readable notification line
func FormatOrderPlaced(msg *models.OrderPlacedMessage) string {
	ref := msg.OrderID
	if msg.OrderNumber > 0 {
		ref = fmt.Sprintf("#%d", msg.OrderNumber)
	}

	items := make([]string, 0, len(msg.Items))
	for _, l := range msg.Items {
		items = append(items, fmt.Sprintf("%s x %d", l.Name, l.Quantity))
	}

	return fmt.Sprintf(
		"🛎 [%s] New order %s: %s. Total %s. Deliver to %s, phone %s.",
		msg.PlacedAt.Local().Format(models.TimestampLayout),
		ref,
		strings.Join(items, ", "),
		models.FormatPrice(msg.Total.Decimal),
		msg.DeliveryInfo.Address,
		msg.DeliveryInfo.Phone,
	)
}
