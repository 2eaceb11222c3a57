package appkafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	config "example.com/postfeed/internal/init"
	"github.com/segmentio/kafka-go"
)

const (
	defaultBroker       = "localhost:9092"
	defaultWriteTimeout = 10 * time.Second
	maxMessageBytes     = 10e6
)

// EventWriter publishes encoded events.
type EventWriter interface {
	WriteMessages(messages ...kafka.Message) error
	Close() error
}

// EventReader consumes encoded events.
type EventReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Config locates the events topic.
type Config struct {
	Brokers      []string
	Topic        string
	Partition    int           // leader partition the server writes to
	WriteTimeout time.Duration
	ReadTimeout  time.Duration // max wait per fetch in the consumer group
	GroupID      string
}

// ConfigFrom maps the application config onto Config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Brokers:      []string{cfg.KafkaBroker},
		Topic:        cfg.KafkaTopic,
		Partition:    cfg.KafkaPartition,
		WriteTimeout: cfg.KafkaWriteTO,
		ReadTimeout:  cfg.KafkaReadTO,
		GroupID:      cfg.KafkaGroupID,
	}
}

func (c Config) withDefaults() Config {
	if len(c.Brokers) == 0 || c.Brokers[0] == "" {
		c.Brokers = []string{defaultBroker}
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	return c
}

// --- Writer ---

// LeaderWriter writes to the partition leader over a single connection.
// A failed write drops the connection; the next write dials again.
type LeaderWriter struct {
	mu   sync.Mutex
	conn *kafka.Conn
	cfg  Config
	dial func(ctx context.Context) (*kafka.Conn, error)
}

// DialWriter connects to the leader of cfg.Partition, creating the topic first
// when the broker does not know it.
func DialWriter(ctx context.Context, cfg Config) (*LeaderWriter, error) {
	cfg = cfg.withDefaults()
	if err := EnsureTopic(ctx, cfg); err != nil {
		logg.Warn("kafka", "Could not ensure topic "+cfg.Topic+": "+err.Error())
	}

	w := &LeaderWriter{
		cfg: cfg,
		dial: func(ctx context.Context) (*kafka.Conn, error) {
			return kafka.DialLeader(ctx, "tcp", cfg.Brokers[0], cfg.Topic, cfg.Partition)
		},
	}
	conn, err := w.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to dial partition leader: %w", err)
	}
	w.conn = conn
	logg.Info("kafka", "Connected to topic "+cfg.Topic)
	return w, nil
}

func (w *LeaderWriter) WriteMessages(messages ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		ctx, cancel := context.WithTimeout(context.Background(), w.cfg.WriteTimeout)
		conn, err := w.dial(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("kafka redial failed: %w", err)
		}
		w.conn = conn
	}

	w.conn.SetWriteDeadline(time.Now().Add(w.cfg.WriteTimeout))
	if _, err := w.conn.WriteMessages(messages...); err != nil {
		w.conn.Close()
		w.conn = nil
		return err
	}
	return nil
}

func (w *LeaderWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	return err
}

// DiscardWriter accepts and drops every message. Used when Kafka is disabled.
type DiscardWriter struct{}

func (DiscardWriter) WriteMessages(...kafka.Message) error { return nil }
func (DiscardWriter) Close() error                         { return nil }

// EnsureTopic creates cfg.Topic on the cluster controller when it is missing.
func EnsureTopic(ctx context.Context, cfg Config) error {
	cfg = cfg.withDefaults()
	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(cfg.Topic)
	if err == nil && len(partitions) > 0 {
		return nil
	}
	if err != nil && !errors.Is(err, kafka.UnknownTopicOrPartition) {
		return err
	}

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	cc, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer cc.Close()

	return cc.CreateTopics(kafka.TopicConfig{
		Topic:             cfg.Topic,
		NumPartitions:     cfg.Partition + 1,
		ReplicationFactor: 1,
	})
}

// --- Reader ---

// GroupReader consumes the topic as a member of a consumer group.
type GroupReader struct {
	reader *kafka.Reader
}

func NewGroupReader(cfg Config) *GroupReader {
	cfg = cfg.withDefaults()
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       1,
		MaxBytes:       maxMessageBytes,
		MaxWait:        cfg.ReadTimeout,
		CommitInterval: time.Second,
	})
	return &GroupReader{reader: r}
}

func (r *GroupReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	return r.reader.ReadMessage(ctx)
}

// Lag reports how many messages the group is behind, as of the last fetch.
func (r *GroupReader) Lag() int64 {
	return r.reader.Stats().Lag
}

func (r *GroupReader) Close() error {
	return r.reader.Close()
}
