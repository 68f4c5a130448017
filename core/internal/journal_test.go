package internal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xKoRx/echo/sdk/domain"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestJournalPublishesAfterDelivery(t *testing.T) {
	ctx := context.Background()
	tel := newTestTelemetryClient(t)
	next := &recordingPresenter{}
	writer := &fakeWriter{}
	journal := NewJournal(next, writer, tel, newTestMetrics(t, tel))

	source := uuid.New()
	r1, r2 := uuid.New(), uuid.New()
	msg := domain.OutTradeMessage{TerminalID: source, Body: buyOrder()}
	deliveries := []Delivery{
		{Recipients: []domain.TerminalID{r1, r2}, Message: msg},
		{Recipients: []domain.TerminalID{source}, Message: domain.NewAskRegistration(source)},
	}

	require.NoError(t, journal.Present(ctx, source, deliveries))
	assert.Equal(t, deliveries, next.deliveries())
	require.Len(t, writer.msgs, 2)

	first := writer.msgs[0]
	assert.Equal(t, source.String(), string(first.Key))

	var rec struct {
		Source     string          `json:"source"`
		Recipients []string        `json:"recipients"`
		Message    json.RawMessage `json:"message"`
		AtMs       int64           `json:"at_ms"`
	}
	require.NoError(t, json.Unmarshal(first.Value, &rec))
	assert.Equal(t, source.String(), rec.Source)
	assert.Equal(t, []string{r1.String(), r2.String()}, rec.Recipients)
	assert.Positive(t, rec.AtMs)

	var body domain.OutTradeMessage
	require.NoError(t, json.Unmarshal(rec.Message, &body))
	assert.Equal(t, msg, body)

	require.NoError(t, journal.Close())
	assert.True(t, writer.closed)
}

func TestJournalWriteFailureDoesNotFailDelivery(t *testing.T) {
	ctx := context.Background()
	tel := newTestTelemetryClient(t)
	next := &recordingPresenter{}
	writer := &fakeWriter{err: errors.New("broker unavailable")}
	journal := NewJournal(next, writer, tel, newTestMetrics(t, tel))

	source := uuid.New()
	deliveries := []Delivery{{
		Recipients: []domain.TerminalID{uuid.New()},
		Message:    domain.OutTradeMessage{TerminalID: source, Body: buyOrder()},
	}}

	require.NoError(t, journal.Present(ctx, source, deliveries))
	assert.Len(t, next.deliveries(), 1)
}

func TestNewKafkaWriter(t *testing.T) {
	tel := newTestTelemetryClient(t)
	w := NewKafkaWriter([]string{"k1:9092", "k2:9092"}, "echo.trades", tel, newTestMetrics(t, tel))
	t.Cleanup(func() { _ = w.Close() })

	assert.Equal(t, "echo.trades", w.Topic)
	assert.True(t, w.Async)
	assert.Equal(t, kafka.RequireOne, w.RequiredAcks)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
	require.NotNil(t, w.Completion)
}
