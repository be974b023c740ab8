package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/tribal-hazard-alerts/internal/config"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/domain"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/severity"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces each snapshot to Kafka: one message per alert on the
// alerts topic and one per matched boundary on the matches topic.
// It implements pipeline.Publisher.
type Publisher struct {
	writer       messageWriter
	alertsTopic  string
	matchesTopic string
	logger       *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured topics.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return newPublisher(w, cfg.KafkaAlertsTopic, cfg.KafkaMatchesTopic, logger)
}

func newPublisher(w messageWriter, alertsTopic, matchesTopic string, logger *slog.Logger) *Publisher {
	return &Publisher{writer: w, alertsTopic: alertsTopic, matchesTopic: matchesTopic, logger: logger}
}

func (p *Publisher) Name() string { return "kafka" }

// Publish writes the whole snapshot in a single WriteMessages call.
func (p *Publisher) Publish(ctx context.Context, snap domain.Snapshot) error {
	msgs := make([]kafkago.Message, 0, len(snap.Alerts)+len(snap.Matches))
	for i := range snap.Alerts {
		msg, err := serializeAlert(snap.Alerts[i], snap.GeneratedAt)
		if err != nil {
			return err
		}
		msg.Topic = p.alertsTopic
		msgs = append(msgs, msg)
	}

	ids := make([]string, 0, len(snap.Matches))
	for id := range snap.Matches {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		msg, err := serializeMatch(id, snap.Matches[id], snap.GeneratedAt)
		if err != nil {
			return err
		}
		msg.Topic = p.matchesTopic
		msgs = append(msgs, msg)
	}

	if len(msgs) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka publish: %w", err)
	}
	p.logger.Debug("snapshot published to kafka", "alerts", len(snap.Alerts), "matches", len(snap.Matches))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

type matchMessage struct {
	BoundaryID  string         `json:"boundary_id"`
	Level       severity.Level `json:"level"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// serializeAlert marshals an alert keyed by its id.
func serializeAlert(a domain.Alert, generatedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert %s: %w", a.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(a.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "agency", Value: []byte(a.Agency)},
			{Key: "level", Value: []byte(strconv.Itoa(int(a.Level)))},
			{Key: "generated_at", Value: []byte(generatedAt.Format(time.RFC3339))},
		},
	}, nil
}

// serializeMatch marshals one boundary's highest level keyed by boundary id.
func serializeMatch(boundaryID string, lvl severity.Level, generatedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(matchMessage{BoundaryID: boundaryID, Level: lvl, GeneratedAt: generatedAt})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize match %s: %w", boundaryID, err)
	}
	return kafkago.Message{
		Key:   []byte(boundaryID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "level", Value: []byte(strconv.Itoa(int(lvl)))},
			{Key: "generated_at", Value: []byte(generatedAt.Format(time.RFC3339))},
		},
	}, nil
}
