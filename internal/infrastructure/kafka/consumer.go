package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/avoronin/bankaccounts/internal/models"
	"github.com/avoronin/bankaccounts/internal/repository"
	"github.com/segmentio/kafka-go"
)

// AccountEvent is the wire format published by the account service and
// consumed here into the audit ledger.
type AccountEvent struct {
	EventType string  `json:"event_type"`
	Username  string  `json:"username"`
	Amount    float64 `json:"amount"`
	Balance   float64 `json:"balance"`
	CreatedAt string  `json:"created_at"`
}

type Consumer struct {
	reader     *kafka.Reader
	ledgerRepo repository.LedgerRepository
}

func NewConsumer(brokers []string, topic, groupID string, ledgerRepo repository.LedgerRepository) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3,
			MaxBytes: 10e6,
		}),
		ledgerRepo: ledgerRepo,
	}
}

func (c *Consumer) Consume(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("failed to read Kafka message", "topic", c.reader.Config().Topic, "error", err)
			continue
		}

		slog.Info("Kafka message received", "topic", msg.Topic, "key", string(msg.Key))

		var event AccountEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			slog.Error("failed to unmarshal account event", "error", err)
			continue
		}

		createdAt, err := time.Parse(time.RFC3339, event.CreatedAt)
		if err != nil {
			slog.Error("invalid created_at format", "value", event.CreatedAt, "error", err)
			continue
		}

		entryType := models.EntryType(event.EventType)
		if !entryType.Valid() {
			slog.Error("unknown event type", "type", event.EventType)
			continue
		}
		if event.Username == "" {
			slog.Error("invalid account event: missing username")
			continue
		}

		entry := &models.LedgerEntry{
			Username:  event.Username,
			Type:      entryType,
			Amount:    event.Amount,
			Balance:   event.Balance,
			CreatedAt: createdAt,
		}

		entryID, err := c.ledgerRepo.Create(ctx, entry)
		if err != nil {
			slog.Error("failed to create ledger entry", "username", event.Username, "type", entryType, "error", err)
			continue
		}

		slog.Info("ledger entry recorded", "username", event.Username, "type", entryType, "entry_id", entryID)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
