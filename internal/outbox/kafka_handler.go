package outbox

import (
	"context"
	"fmt"

	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/models"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/kafka"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/logger"
)

// KafkaHandler publishes change-feed messages to the Kafka topic the
// realtime view sync subscribes to.
type KafkaHandler struct {
	producer *kafka.Producer
	topic    string
	logger   logger.Logger
}

// NewKafkaHandler creates a new KafkaHandler
func NewKafkaHandler(producer *kafka.Producer, topic string, logger logger.Logger) *KafkaHandler {
	return &KafkaHandler{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// HandleMessage publishes one outbox message, keyed by aggregate id so all
// events for a load land on the same partition in order.
func (h *KafkaHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	err := h.producer.SendMessage(ctx, h.topic, message.AggregateID, message.Payload)

	if err != nil {
		h.logger.Error("Failed to publish change-feed message",
			"error", err,
			"messageID", message.ID,
			"aggregateID", message.AggregateID)
		return fmt.Errorf("failed to publish change-feed message: %w", err)
	}

	return nil
}
