package internal

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xKoRx/echo/sdk/domain"
)

type fakeSession struct {
	id      string
	sendErr error

	mu     sync.Mutex
	sent   []domain.OutgoingMessage
	closed bool
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Send(_ context.Context, msg domain.OutgoingMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func newTestRegistry(t *testing.T) *TerminalRegistry {
	tel := newTestTelemetryClient(t)
	return NewTerminalRegistry(tel, newTestMetrics(t, tel))
}

func TestTerminalRegistryLastWriteWins(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)
	id := uuid.New()
	first := &fakeSession{id: "s1"}
	second := &fakeSession{id: "s2"}

	reg.Register(ctx, id, first)
	reg.Register(ctx, id, first)
	assert.Equal(t, []domain.TerminalID{id}, reg.GetTerminalsBySession("s1"))

	reg.Register(ctx, id, second)
	owner, ok := reg.GetSession(id)
	require.True(t, ok)
	assert.Equal(t, "s2", owner.ID())
	assert.Empty(t, reg.GetTerminalsBySession("s1"))
	assert.False(t, first.closed, "displaced session is not closed")

	terminals, sessions := reg.GetStats()
	assert.Equal(t, 1, terminals)
	assert.Equal(t, 1, sessions)
}

func TestTerminalRegistryUnregisterOnlyOwned(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)
	moved, kept := uuid.New(), uuid.New()
	old := &fakeSession{id: "old"}
	current := &fakeSession{id: "current"}

	reg.Register(ctx, moved, old)
	reg.Register(ctx, kept, old)
	reg.Register(ctx, moved, current)

	reg.UnregisterSession(ctx, "old")

	assert.True(t, reg.IsConnected(moved))
	assert.False(t, reg.IsConnected(kept))

	reg.UnregisterSession(ctx, "current")
	assert.False(t, reg.IsConnected(moved))

	terminals, sessions := reg.GetStats()
	assert.Zero(t, terminals)
	assert.Zero(t, sessions)
}

func TestTerminalRegistrySendMessage(t *testing.T) {
	ctx := context.Background()
	msg := domain.NewAskRegistration(uuid.New())

	cases := []struct {
		name    string
		session *fakeSession
		want    bool
	}{
		{name: "delivered", session: &fakeSession{id: "ok"}, want: true},
		{name: "closed", session: &fakeSession{id: "closed", sendErr: ErrSessionClosed}, want: false},
		{name: "queue_full", session: &fakeSession{id: "full", sendErr: ErrSendQueueFull}, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := newTestRegistry(t)
			id := uuid.New()
			reg.Register(ctx, id, tc.session)

			assert.Equal(t, tc.want, reg.SendMessage(ctx, id, msg))
			if tc.want {
				assert.Equal(t, []domain.OutgoingMessage{msg}, tc.session.sent)
			}
		})
	}

	t.Run("unknown", func(t *testing.T) {
		reg := newTestRegistry(t)
		assert.False(t, reg.SendMessage(ctx, uuid.New(), msg))
	})
}

func TestTerminalRegistryDisconnect(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)
	id := uuid.New()
	session := &fakeSession{id: "s"}

	reg.Disconnect(ctx, id)

	reg.Register(ctx, id, session)
	reg.Disconnect(ctx, id)
	assert.True(t, session.closed)
}

func TestRegistryPresenterSendsToEveryRecipient(t *testing.T) {
	ctx := context.Background()
	tel := newTestTelemetryClient(t)
	reg := newTestRegistry(t)
	a, b, missing := uuid.New(), uuid.New(), uuid.New()
	sa := &fakeSession{id: "a"}
	sb := &fakeSession{id: "b"}
	reg.Register(ctx, a, sa)
	reg.Register(ctx, b, sb)

	msg := domain.OutTradeMessage{TerminalID: uuid.New(), Body: buyOrder()}
	presenter := NewRegistryPresenter(reg, tel)
	err := presenter.Present(ctx, msg.TerminalID, []Delivery{
		{Recipients: []domain.TerminalID{a, missing, b}, Message: msg},
	})
	require.NoError(t, err)

	assert.Equal(t, []domain.OutgoingMessage{msg}, sa.sent)
	assert.Equal(t, []domain.OutgoingMessage{msg}, sb.sent)
}
