package messaging_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/serroba/doclinks/internal/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEvent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func noopHandler(context.Context, *testEvent) error { return nil }

// startConsumer starts a consumer on test.topic and stops it when the test ends.
func startConsumer(t *testing.T, sub *mockSubscriber, handler messaging.Handler[testEvent]) *messaging.Consumer[testEvent] {
	t.Helper()

	consumer := messaging.NewConsumer(sub, "test.topic", handler, zap.NewNop())
	require.NoError(t, consumer.Start(context.Background()))

	t.Cleanup(func() { _ = consumer.Shutdown() })

	return consumer
}

func deliver(t *testing.T, sub *mockSubscriber, payload []byte) (acked bool) {
	t.Helper()

	return deliverMessage(t, sub, message.NewMessage(uuid.NewString(), payload))
}

func deliverMessage(t *testing.T, sub *mockSubscriber, msg *message.Message) (acked bool) {
	t.Helper()

	sub.msgChan <- msg

	select {
	case <-msg.Acked():
		return true
	case <-msg.Nacked():
		return false
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for ack or nack")

		return false
	}
}

type mockSubscriber struct {
	msgChan      chan *message.Message
	subscribeErr error
	mu           sync.Mutex
	closed       bool
}

func newMockSubscriber() *mockSubscriber {
	return &mockSubscriber{
		msgChan: make(chan *message.Message, 10),
	}
}

func (m *mockSubscriber) Subscribe(_ context.Context, _ string) (<-chan *message.Message, error) {
	if m.subscribeErr != nil {
		return nil, m.subscribeErr
	}

	return m.msgChan, nil
}

func (m *mockSubscriber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.msgChan)
	}

	return nil
}

func TestConsumer_Start(t *testing.T) {
	t.Run("starts successfully", func(t *testing.T) {
		consumer := startConsumer(t, newMockSubscriber(), noopHandler)

		assert.Equal(t, "test.topic", consumer.Topic())
	})

	t.Run("returns error when subscribe fails", func(t *testing.T) {
		sub := &mockSubscriber{subscribeErr: errors.New("subscribe error")}
		consumer := messaging.NewConsumer(sub, "test.topic", noopHandler, zap.NewNop())

		assert.Error(t, consumer.Start(context.Background()))
	})
}

func TestConsumer_HandleMessage(t *testing.T) {
	t.Run("acks on successful handling", func(t *testing.T) {
		sub := newMockSubscriber()
		received := make(chan *testEvent, 1)

		startConsumer(t, sub, func(_ context.Context, event *testEvent) error {
			received <- event

			return nil
		})

		payload, err := json.Marshal(&testEvent{ID: "123", Name: "test"})
		require.NoError(t, err)

		assert.True(t, deliver(t, sub, payload))

		event := <-received
		assert.Equal(t, "123", event.ID)
		assert.Equal(t, "test", event.Name)
	})

	t.Run("drops malformed payloads", func(t *testing.T) {
		sub := newMockSubscriber()
		called := false

		startConsumer(t, sub, func(context.Context, *testEvent) error {
			called = true

			return nil
		})

		assert.True(t, deliver(t, sub, []byte("invalid json")), "malformed message should not be redelivered")
		assert.False(t, called)
	})

	t.Run("nacks on handler error", func(t *testing.T) {
		sub := newMockSubscriber()

		startConsumer(t, sub, func(context.Context, *testEvent) error {
			return errors.New("handler error")
		})

		assert.False(t, deliver(t, sub, []byte(`{"id":"123"}`)))
	})

	t.Run("drops events published to another topic", func(t *testing.T) {
		sub := newMockSubscriber()
		called := false

		consumer := startConsumer(t, sub, func(context.Context, *testEvent) error {
			called = true

			return nil
		})

		msg := message.NewMessage(uuid.NewString(), []byte(`{"id":"123"}`))
		msg.Metadata.Set(messaging.MetadataTopic, "other.topic")

		assert.True(t, deliverMessage(t, sub, msg))
		assert.False(t, called)
		assert.Equal(t, messaging.Stats{Dropped: 1}, consumer.Stats())
	})

	t.Run("handles events stamped with its own topic", func(t *testing.T) {
		sub := newMockSubscriber()
		consumer := startConsumer(t, sub, noopHandler)

		msg := message.NewMessage(uuid.NewString(), []byte(`{"id":"123"}`))
		msg.Metadata.Set(messaging.MetadataTopic, "test.topic")

		assert.True(t, deliverMessage(t, sub, msg))
		assert.Equal(t, messaging.Stats{Handled: 1}, consumer.Stats())
	})
}

func TestConsumer_Stats(t *testing.T) {
	sub := newMockSubscriber()
	fail := true

	consumer := startConsumer(t, sub, func(context.Context, *testEvent) error {
		if fail {
			fail = false

			return errors.New("handler error")
		}

		return nil
	})

	assert.False(t, deliver(t, sub, []byte(`{"id":"1"}`)))
	assert.True(t, deliver(t, sub, []byte(`{"id":"2"}`)))
	assert.True(t, deliver(t, sub, []byte("invalid json")))

	assert.Equal(t, messaging.Stats{Handled: 1, Failed: 1, Dropped: 1}, consumer.Stats())
}

func TestConsumer_Shutdown(t *testing.T) {
	t.Run("stops when the subscription closes", func(t *testing.T) {
		sub := newMockSubscriber()
		consumer := messaging.NewConsumer(sub, "test.topic", noopHandler, zap.NewNop())
		require.NoError(t, consumer.Start(context.Background()))

		require.NoError(t, sub.Close())

		assert.NoError(t, consumer.Shutdown())
	})

	t.Run("shuts down gracefully while subscribed", func(t *testing.T) {
		sub := newMockSubscriber()
		consumer := messaging.NewConsumer(sub, "test.topic", noopHandler, zap.NewNop())
		require.NoError(t, consumer.Start(context.Background()))

		assert.NoError(t, consumer.Shutdown())
	})

	t.Run("never started is a no-op", func(t *testing.T) {
		consumer := messaging.NewConsumer(newMockSubscriber(), "test.topic", noopHandler, zap.NewNop())

		assert.NoError(t, consumer.Shutdown())
	})

	t.Run("returns after a failed start", func(t *testing.T) {
		sub := &mockSubscriber{subscribeErr: errors.New("subscribe error")}
		consumer := messaging.NewConsumer(sub, "test.topic", noopHandler, zap.NewNop())
		require.Error(t, consumer.Start(context.Background()))

		assert.NoError(t, consumer.Shutdown())
	})
}
