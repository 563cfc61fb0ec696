package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teapot/internal/logger"
	"teapot/internal/messaging"
	"teapot/internal/models"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, f.err
}

var placedAt = time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)

func message(number int) *models.OrderPlacedMessage {
	o := models.NewOrder("ord-1", []models.CartLine{
		{MenuItem: models.MenuItem{Name: "Mango Lassi", Price: "$4.99"}, Quantity: 2},
		{MenuItem: models.MenuItem{Name: "Samosas", Price: "$3.99"}, Quantity: 1},
	}, models.DeliveryInfo{Address: "12 Moi Avenue", Phone: "0712345678"}, decimal.RequireFromString("2.99"), placedAt)
	o.OrderNumber = number
	return models.CreateOrderPlacedMessage(o, placedAt)
}

func body(t *testing.T, msg *models.OrderPlacedMessage) []byte {
	t.Helper()
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	return b
}

func TestFormatOrderPlaced(t *testing.T) {
	stamp := placedAt.Local().Format(models.TimestampLayout)

	assert.Equal(t,
		"🛎 ["+stamp+"] New order #4: Mango Lassi x 2, Samosas x 1. Total $16.96. Deliver to 12 Moi Avenue, phone 0712345678.",
		FormatOrderPlaced(message(4)))

	assert.Contains(t, FormatOrderPlaced(message(0)), "New order ord-1:")
}

func TestHandleMessage_PrintsAndForwards(t *testing.T) {
	var out bytes.Buffer
	sender := &fakeSender{}
	s := NewSubscriber(nil, sender, -100123, &out, logger.Nop())

	require.NoError(t, s.HandleMessage(context.Background(), body(t, message(4))))

	assert.Equal(t, FormatOrderPlaced(message(4))+"\n", out.String())
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(-100123), sender.sent[0].ChatID)
	assert.Equal(t, FormatOrderPlaced(message(4)), sender.sent[0].Text)
}

func TestHandleMessage_TelegramFailureStillAcks(t *testing.T) {
	var out bytes.Buffer
	s := NewSubscriber(nil, &fakeSender{err: errors.New("bot blocked")}, 42, &out, logger.Nop())

	assert.NoError(t, s.HandleMessage(context.Background(), body(t, message(1))))
	assert.NotEmpty(t, out.String())
}

func TestHandleMessage_PrintOnly(t *testing.T) {
	var out bytes.Buffer
	sender := &fakeSender{}
	s := NewSubscriber(nil, sender, 0, &out, logger.Nop())

	require.NoError(t, s.HandleMessage(context.Background(), body(t, message(1))))
	assert.Empty(t, sender.sent)
	assert.NotEmpty(t, out.String())
}

func TestHandleMessage_MalformedIsDiscarded(t *testing.T) {
	var out bytes.Buffer
	s := NewSubscriber(nil, nil, 0, &out, logger.Nop())

	err := s.HandleMessage(context.Background(), []byte(`{"order_id":`))
	assert.ErrorIs(t, err, messaging.ErrDiscard)
	assert.Empty(t, out.String())
}
