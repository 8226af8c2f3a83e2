package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestKafkaSink_PublishesSuccess(t *testing.T) {
	w := &mockWriter{}
	sink := newKafkaSink(w, discardLogger())
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sink.now = func() time.Time { return fixed }

	sink.Notify(context.Background(), Outcome{Op: "add", ProductID: 7, Amount: 2})

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "7", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "cart.add", string(msg.Headers[0].Value))

	var ev event
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	_, err := uuid.Parse(ev.EventID)
	assert.NoError(t, err)
	assert.Equal(t, "add", ev.Op)
	assert.Equal(t, int64(7), ev.ProductID)
	assert.Equal(t, 2, ev.Amount)
	assert.True(t, ev.Success)
	assert.Empty(t, ev.ErrorKind)
	assert.Equal(t, fixed, ev.OccurredAt)
}

func TestKafkaSink_PublishesFailure(t *testing.T) {
	w := &mockWriter{}
	sink := newKafkaSink(w, discardLogger())

	sink.Notify(context.Background(), Outcome{
		Op:        "set_amount",
		ProductID: 3,
		Kind:      "out_of_stock",
		Message:   "requested quantity out of stock",
		Err:       errors.New("out of stock"),
	})

	require.Len(t, w.messages, 1)
	var ev event
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &ev))
	assert.False(t, ev.Success)
	assert.Equal(t, "out_of_stock", ev.ErrorKind)
	assert.Equal(t, "requested quantity out of stock", ev.Message)
}

func TestKafkaSink_WriteErrorIsLogged(t *testing.T) {
	logger, hook := test.NewNullLogger()
	w := &mockWriter{err: errors.New("broker down")}
	sink := newKafkaSink(w, logger)

	sink.Notify(context.Background(), Outcome{Op: "remove", ProductID: 1})

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "failed to publish cart notification", hook.LastEntry().Message)
}

func TestKafkaSink_CancelledCallerStillPublishes(t *testing.T) {
	w := &mockWriter{}
	sink := newKafkaSink(w, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink.Notify(ctx, Outcome{Op: "add", ProductID: 1, Amount: 1})
	assert.Len(t, w.messages, 1)
}

func TestKafkaSink_Close(t *testing.T) {
	w := &mockWriter{}
	sink := newKafkaSink(w, discardLogger())

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
}

func TestNewKafkaWriter_WritesEachEventWithoutWaiting(t *testing.T) {
	w := newKafkaWriter("", "localhost:9092")
	defer w.Close()

	assert.Equal(t, DefaultTopic, w.Topic)
	assert.Equal(t, 1, w.BatchSize)
	assert.Greater(t, w.BatchTimeout, time.Duration(0))
	assert.LessOrEqual(t, w.BatchTimeout, 10*time.Millisecond)
}
