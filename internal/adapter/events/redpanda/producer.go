// Package redpanda publishes interview lifecycle events to Redpanda/Kafka.
// Downstream consumers (analytics, notification fan-out) subscribe to the
// turn and session topics; publishing is best-effort from the caller's view.
package redpanda

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

const (
	// TopicTurnEvaluated carries one event per evaluated answer.
	TopicTurnEvaluated = "interview.turn.evaluated"
	// TopicSessionFinished carries one event per finished session.
	TopicSessionFinished = "interview.session.finished"
)

// Producer implements domain.EventPublisher over a franz-go client.
type Producer struct {
	client *kgo.Client
}

// NewProducer connects to the brokers and ensures both topics exist.
func NewProducer(ctx domain.Context, brokers []string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=events.new: no seed brokers provided")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1_000_000),
	)
	if err != nil {
		return nil, fmt.Errorf("op=events.new: %w", err)
	}

	for _, topic := range []string{TopicTurnEvaluated, TopicSessionFinished} {
		if err := createTopicIfNotExists(ctx, client, topic, 1, 1); err != nil {
			slog.Warn("topic create failed, it may already exist",
				slog.String("topic", topic), slog.Any("error", err))
		}
	}
	return &Producer{client: client}, nil
}

type turnEvaluatedEvent struct {
	SessionID string         `json:"session_id"`
	Label     string         `json:"label"`
	Dossier   domain.Dossier `json:"dossier"`
	At        time.Time      `json:"at"`
}

type sessionFinishedEvent struct {
	SessionID      string                `json:"session_id"`
	Recommendation domain.HiringDecision `json:"recommendation"`
	At             time.Time             `json:"at"`
}

// PublishTurnEvaluated emits the dossier for one answered question. Records
// are keyed by session so per-session ordering holds across partitions.
func (p *Producer) PublishTurnEvaluated(ctx domain.Context, sessionID, label string, d domain.Dossier) error {
	body, err := json.Marshal(turnEvaluatedEvent{
		SessionID: sessionID, Label: label, Dossier: d, At: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("op=events.turn_evaluated: marshal: %w", err)
	}
	return p.produce(ctx, "op=events.turn_evaluated", &kgo.Record{
		Topic: TopicTurnEvaluated,
		Key:   []byte(sessionID),
		Value: body,
		Headers: []kgo.RecordHeader{
			{Key: "session_id", Value: []byte(sessionID)},
			{Key: "label", Value: []byte(label)},
		},
	})
}

// PublishSessionFinished emits the final recommendation for a session.
func (p *Producer) PublishSessionFinished(ctx domain.Context, sessionID string, rec domain.HiringDecision) error {
	body, err := json.Marshal(sessionFinishedEvent{
		SessionID: sessionID, Recommendation: rec, At: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("op=events.session_finished: marshal: %w", err)
	}
	return p.produce(ctx, "op=events.session_finished", &kgo.Record{
		Topic: TopicSessionFinished,
		Key:   []byte(sessionID),
		Value: body,
		Headers: []kgo.RecordHeader{
			{Key: "session_id", Value: []byte(sessionID)},
		},
	})
}

func (p *Producer) produce(ctx domain.Context, op string, rec *kgo.Record) error {
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	slog.Debug("event published", slog.String("topic", rec.Topic), slog.String("key", string(rec.Key)))
	return nil
}

// Close flushes and closes the underlying client.
func (p *Producer) Close() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}
