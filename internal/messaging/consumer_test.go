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
	"github.com/serroba/millennium-gate/internal/engagement"
	"github.com/serroba/millennium-gate/internal/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeSubscriber hands out a single channel fed by the test.
type fakeSubscriber struct {
	mu           sync.Mutex
	msgs         chan *message.Message
	subscribeErr error
	closed       bool
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{msgs: make(chan *message.Message, 10)}
}

func (f *fakeSubscriber) Subscribe(_ context.Context, _ string) (<-chan *message.Message, error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}

	return f.msgs, nil
}

func (f *fakeSubscriber) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.closed {
		f.closed = true
		close(f.msgs)
	}

	return nil
}

func strokeMessage(t *testing.T, stroke engagement.StrokeEvent) *message.Message {
	t.Helper()

	payload, err := json.Marshal(stroke)
	require.NoError(t, err)

	return message.NewMessage(uuid.NewString(), payload)
}

func ignoreStroke(_ context.Context, _ *engagement.StrokeEvent) error { return nil }

// awaitAck returns true on ack and false on nack.
func awaitAck(t *testing.T, msg *message.Message) bool {
	t.Helper()

	select {
	case <-msg.Acked():
		return true
	case <-msg.Nacked():
		return false
	case <-time.After(time.Second):
		t.Fatal("message was neither acked nor nacked")

		return false
	}
}

func TestConsumer_Start(t *testing.T) {
	t.Run("subscribes to its topic", func(t *testing.T) {
		consumer := messaging.NewConsumer(
			newFakeSubscriber(), engagement.TopicWhiteboardStrokes, ignoreStroke, zap.NewNop())

		require.NoError(t, consumer.Start(context.Background()))
		assert.Equal(t, engagement.TopicWhiteboardStrokes, consumer.Topic())

		require.NoError(t, consumer.Shutdown())
	})

	t.Run("shutdown after a failed start returns", func(t *testing.T) {
		sub := &fakeSubscriber{subscribeErr: errors.New("stream group missing")}
		consumer := messaging.NewConsumer(sub, engagement.TopicWhiteboardStrokes, ignoreStroke, zap.NewNop())

		require.ErrorContains(t, consumer.Start(context.Background()), "stream group missing")

		done := make(chan error, 1)

		go func() { done <- consumer.Shutdown() }()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("Shutdown blocked after a failed Start")
		}
	})

	t.Run("stops when the subscription closes", func(t *testing.T) {
		sub := newFakeSubscriber()
		consumer := messaging.NewConsumer(sub, engagement.TopicWhiteboardStrokes, ignoreStroke, zap.NewNop())

		require.NoError(t, consumer.Start(context.Background()))
		require.NoError(t, sub.Close())

		assert.NoError(t, consumer.Shutdown())
	})
}

func TestConsumer_HandleMessage(t *testing.T) {
	stroke := engagement.StrokeEvent{
		ID:      "s-1",
		Room:    "room-1",
		Subject: "user:42",
		Color:   "#000",
		Width:   2,
		Points:  []engagement.Point{{X: 1, Y: 2}, {X: 3, Y: 4}},
	}

	t.Run("acks and decodes the event", func(t *testing.T) {
		sub := newFakeSubscriber()
		received := make(chan engagement.StrokeEvent, 1)

		consumer := messaging.NewConsumer(sub, engagement.TopicWhiteboardStrokes,
			func(_ context.Context, event *engagement.StrokeEvent) error {
				received <- *event

				return nil
			},
			zap.NewNop(),
		)
		require.NoError(t, consumer.Start(context.Background()))
		t.Cleanup(func() { _ = consumer.Shutdown() })

		msg := strokeMessage(t, stroke)
		sub.msgs <- msg

		require.True(t, awaitAck(t, msg))

		got := <-received
		assert.Equal(t, "room-1", got.Room)
		assert.Equal(t, "user:42", got.Subject)
		assert.Equal(t, stroke.Points, got.Points)
	})

	t.Run("nacks an undecodable payload and logs its id", func(t *testing.T) {
		core, logs := observer.New(zapcore.ErrorLevel)
		sub := newFakeSubscriber()
		consumer := messaging.NewConsumer(sub, engagement.TopicWhiteboardStrokes, ignoreStroke, zap.New(core))
		require.NoError(t, consumer.Start(context.Background()))
		t.Cleanup(func() { _ = consumer.Shutdown() })

		msg := message.NewMessage(uuid.NewString(), []byte("{not json"))
		sub.msgs <- msg

		require.False(t, awaitAck(t, msg))
		require.Eventually(t, func() bool { return logs.Len() == 1 }, time.Second, 5*time.Millisecond)

		entry := logs.All()[0]
		assert.Equal(t, "failed to unmarshal event", entry.Message)
		assert.Equal(t, msg.UUID, entry.ContextMap()["message_id"])
		assert.Equal(t, engagement.TopicWhiteboardStrokes, entry.ContextMap()["topic"])
	})

	t.Run("nacks when the handler fails and logs its id", func(t *testing.T) {
		core, logs := observer.New(zapcore.ErrorLevel)
		sub := newFakeSubscriber()
		consumer := messaging.NewConsumer(sub, engagement.TopicWhiteboardStrokes,
			func(_ context.Context, _ *engagement.StrokeEvent) error {
				return errors.New("room closed")
			},
			zap.New(core),
		)
		require.NoError(t, consumer.Start(context.Background()))
		t.Cleanup(func() { _ = consumer.Shutdown() })

		msg := strokeMessage(t, stroke)
		sub.msgs <- msg

		require.False(t, awaitAck(t, msg))
		require.Eventually(t, func() bool { return logs.Len() == 1 }, time.Second, 5*time.Millisecond)

		entry := logs.All()[0]
		assert.Equal(t, "failed to handle event", entry.Message)
		assert.Equal(t, msg.UUID, entry.ContextMap()["message_id"])
	})
}

func TestConsumer_Shutdown(t *testing.T) {
	t.Run("is safe to call twice", func(t *testing.T) {
		sub := newFakeSubscriber()
		consumer := messaging.NewConsumer(sub, engagement.TopicWhiteboardStrokes, ignoreStroke, zap.NewNop())

		require.NoError(t, consumer.Start(context.Background()))
		require.NoError(t, consumer.Shutdown())
		assert.NoError(t, consumer.Shutdown())
	})

	t.Run("waits for the in-flight handler", func(t *testing.T) {
		sub := newFakeSubscriber()
		entered := make(chan struct{})
		release := make(chan struct{})

		var finished bool

		consumer := messaging.NewConsumer(sub, engagement.TopicWhiteboardStrokes,
			func(_ context.Context, _ *engagement.StrokeEvent) error {
				close(entered)
				<-release

				finished = true

				return nil
			},
			zap.NewNop(),
		)
		require.NoError(t, consumer.Start(context.Background()))

		sub.msgs <- strokeMessage(t, engagement.StrokeEvent{ID: "s-2", Room: "room-1"})
		<-entered

		time.AfterFunc(20*time.Millisecond, func() { close(release) })
		require.NoError(t, consumer.Shutdown())

		assert.True(t, finished)
	})
}
