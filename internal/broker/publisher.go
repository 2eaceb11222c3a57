package appkafka

import (
	"encoding/json"
	"fmt"
	"time"

	"example.com/postfeed/internal/logger"
	"example.com/postfeed/internal/models"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

var logg = logger.New()

// Publisher turns domain events into Kafka messages keyed by event kind.
type Publisher struct {
	writer EventWriter
	now    func() time.Time
}

func NewPublisher(w EventWriter) *Publisher {
	return &Publisher{writer: w, now: func() time.Time { return time.Now().UTC() }}
}

// Publish stamps the event with an id and time when missing and writes it.
func (p *Publisher) Publish(e models.Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = p.now()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.writer.WriteMessages(kafka.Message{Key: []byte(e.Kind), Value: data}); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// PublishBestEffort logs a failed publish instead of returning it.
func (p *Publisher) PublishBestEffort(e models.Event) {
	if err := p.Publish(e); err != nil {
		logg.Error("broker", "Failed to publish "+e.Kind+" event", err)
	}
}

// Close closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// DecodeEvent parses a message written by Publish.
func DecodeEvent(msg []byte) (models.Event, error) {
	var e models.Event
	if err := json.Unmarshal(msg, &e); err != nil {
		return models.Event{}, err
	}
	if e.ID == "" || e.Kind == "" {
		return models.Event{}, fmt.Errorf("event is missing id or kind")
	}
	return e, nil
}
