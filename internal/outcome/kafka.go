package outcome

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"rollcall/internal/gateway"
)

// Producer is the subset of *kgo.Client the publisher uses.
type Producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Flush(ctx context.Context) error
}

// KafkaPublisher produces one record per outcome, keyed by target address
// so a student's outcomes stay ordered within a partition. Production is
// asynchronous; failures are logged and counted.
type KafkaPublisher struct {
	producer Producer
	topic    string
	logger   *slog.Logger
	metrics  *Metrics
}

func NewKafkaPublisher(producer Producer, topic string, logger *slog.Logger, m *Metrics) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger, metrics: m}
}

func (p *KafkaPublisher) HandleOutcome(ctx context.Context, o gateway.Outcome) {
	event := FromOutcome(o)
	value, err := json.Marshal(event)
	if err != nil {
		p.metrics.IncrementFailed()
		p.logger.ErrorContext(ctx, "encode outcome event", "call_id", event.ID, "error", err)
		return
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(o.Command.Target().Hex()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "method", Value: []byte(event.Method)},
			{Key: "status", Value: []byte(event.Status)},
		},
	}
	p.producer.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if err != nil {
			p.metrics.IncrementFailed()
			p.logger.Error("outcome event not delivered",
				"call_id", event.ID,
				"topic", r.Topic,
				"error", err,
			)
			return
		}
		p.metrics.IncrementPublished(string(event.Method))
	})
}

// Close flushes buffered records.
func (p *KafkaPublisher) Close(ctx context.Context) error {
	return p.producer.Flush(ctx)
}
