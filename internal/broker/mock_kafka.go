package appkafka

import (
	"context"
	"errors"
	"sync"

	"github.com/segmentio/kafka-go"
)

var (
	errMockWrite = errors.New("mock kafka write failed")
	errMockRead  = errors.New("mock kafka read failed")
	errMockEmpty = errors.New("mock kafka: no unread messages")
)

// MockKafka is an in-memory topic: every written message is kept, and
// ReadMessage returns them in write order.
type MockKafka struct {
	mu         sync.Mutex
	log        []kafka.Message
	offset     int
	ShouldFail bool // simulate broker failures on both ends
}

var (
	_ EventWriter = (*MockKafka)(nil)
	_ EventReader = (*MockKafka)(nil)
	_ EventWriter = (*MockKafkaFail)(nil)
	_ EventReader = (*MockKafkaFail)(nil)
)

func (m *MockKafka) WriteMessages(messages ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockWrite
	}
	for _, msg := range messages {
		msg.Topic = "mock"
		msg.Offset = int64(len(m.log))
		m.log = append(m.log, msg)
	}
	return nil
}

// Written returns a copy of every message written so far.
func (m *MockKafka) Written() []kafka.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]kafka.Message(nil), m.log...)
}

// ReadMessage returns the next unread message, or an error when caught up.
func (m *MockKafka) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return kafka.Message{}, errMockRead
	}
	if m.offset >= len(m.log) {
		return kafka.Message{}, errMockEmpty
	}
	msg := m.log[m.offset]
	m.offset++
	return msg, nil
}

// Lag is the number of written but unread messages.
func (m *MockKafka) Lag() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.log) - m.offset)
}

func (m *MockKafka) Close() error { return nil }

// MockKafkaFail always fails.
type MockKafkaFail struct{}

func (*MockKafkaFail) WriteMessages(...kafka.Message) error { return errMockWrite }

func (*MockKafkaFail) ReadMessage(context.Context) (kafka.Message, error) {
	return kafka.Message{}, errMockRead
}

func (*MockKafkaFail) Close() error { return nil }
