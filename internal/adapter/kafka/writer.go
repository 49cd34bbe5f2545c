package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/constitution-forecast-service/internal/config"
	"github.com/couchcryptid/constitution-forecast-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces forecasts to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes multiple forecasts to the sink topic in
// a single WriteMessages call. Messages are keyed by forecast ID so every
// recomputation of a user's day lands on the same partition.
func (w *Writer) LoadBatch(ctx context.Context, forecasts []domain.Forecast) error {
	if len(forecasts) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(forecasts))
	for i := range forecasts {
		msg, err := serializeToMessage(forecasts[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write forecasts: %w", err)
	}
	w.logger.Debug("forecasts published", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Forecast into a Kafka message.
func serializeToMessage(f domain.Forecast) (kafkago.Message, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize forecast: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(f.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "level", Value: []byte(f.Assessment.LevelLabel)},
			{Key: "degraded", Value: []byte(strconv.FormatBool(f.Degraded))},
			{Key: "computed_at", Value: []byte(f.ComputedAt.Format(time.RFC3339))},
		},
	}, nil
}
