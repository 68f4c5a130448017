package internal

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xKoRx/echo/core/internal/repository"
	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/telemetry/metricbundle"
)

func newTestTelemetryClient(t *testing.T) *telemetry.Client {
	t.Helper()
	ctx := context.Background()
	client, err := telemetry.New(ctx, "core-test", "test",
		telemetry.WithLogsDisabled(),
		telemetry.WithMetricsDisabled(),
		telemetry.WithTracesDisabled(),
	)
	if err != nil {
		t.Fatalf("failed to init telemetry: %v", err)
	}
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = client.Shutdown(shutdownCtx)
	})
	return client
}

func newTestMetrics(t *testing.T, tel *telemetry.Client) *metricbundle.EchoMetrics {
	t.Helper()
	metrics, err := metricbundle.NewEchoMetrics(tel.Meter())
	require.NoError(t, err)
	return metrics
}

func newTestRepositories(t *testing.T) *repository.SQLFactory {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, repository.Migrate(ctx, db, repository.DriverSQLite))

	factory, err := repository.NewSQLFactory(db, repository.DriverSQLite)
	require.NoError(t, err)
	return factory
}

// fakeRegistry marca como conectadas las terminales en connected.
type fakeRegistry struct {
	mu        sync.Mutex
	connected map[domain.TerminalID]bool
	sent      map[domain.TerminalID][]domain.OutgoingMessage
}

func newFakeRegistry(ids ...domain.TerminalID) *fakeRegistry {
	r := &fakeRegistry{
		connected: make(map[domain.TerminalID]bool),
		sent:      make(map[domain.TerminalID][]domain.OutgoingMessage),
	}
	for _, id := range ids {
		r.connected[id] = true
	}
	return r
}

func (r *fakeRegistry) Disconnect(_ context.Context, id domain.TerminalID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connected, id)
}

func (r *fakeRegistry) IsConnected(id domain.TerminalID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected[id]
}

func (r *fakeRegistry) SendMessage(_ context.Context, id domain.TerminalID, msg domain.OutgoingMessage) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.connected[id] {
		return false
	}
	r.sent[id] = append(r.sent[id], msg)
	return true
}

// recordingPresenter guarda cada llamada a Present.
type recordingPresenter struct {
	mu    sync.Mutex
	calls [][]Delivery
}

func (p *recordingPresenter) Present(_ context.Context, _ domain.TerminalID, deliveries []Delivery) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, deliveries)
	return nil
}

func (p *recordingPresenter) deliveries() []Delivery {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Delivery
	for _, call := range p.calls {
		out = append(out, call...)
	}
	return out
}

type routerFixture struct {
	ctx       context.Context
	repos     *repository.SQLFactory
	registry  *fakeRegistry
	presenter *recordingPresenter
	router    *Router
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	tel := newTestTelemetryClient(t)
	repos := newTestRepositories(t)
	registry := newFakeRegistry()
	presenter := &recordingPresenter{}
	return &routerFixture{
		ctx:       context.Background(),
		repos:     repos,
		registry:  registry,
		presenter: presenter,
		router:    NewRouter(repos, registry, presenter, tel, newTestMetrics(t, tel)),
	}
}

// terminal crea una terminal conectada con la cadena dada (nil = sin cadena).
func (f *routerFixture) terminal(t *testing.T, label string, specs []domain.RuleSpec) *domain.Terminal {
	t.Helper()
	term := domain.NewTerminal(uuid.New(), label, domain.TierBronze)
	require.NoError(t, f.repos.TerminalRepository().Save(f.ctx, term))
	if specs != nil {
		chain, err := domain.BuildRuleChain(term.ID, specs)
		require.NoError(t, err)
		require.NoError(t, f.repos.RuleRepository().Save(f.ctx, term.ID, chain))
	}
	f.registry.connected[term.ID] = true
	return term
}

func (f *routerFixture) route(t *testing.T, src, dst *domain.Terminal) {
	t.Helper()
	route, err := domain.NewRoute(src, dst, domain.RouteBoth)
	require.NoError(t, err)
	_, err = f.repos.RouteRepository().Save(f.ctx, route)
	require.NoError(t, err)
}

func sortedIDs(ids ...domain.TerminalID) []domain.TerminalID {
	out := append([]domain.TerminalID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func buyOrder() domain.Order {
	return domain.Order{
		Action:    domain.TradeActionDeal,
		Symbol:    "EURUSD",
		Volume:    0.1,
		Price:     1.1000,
		OrderType: domain.OrderTypeBuy,
	}
}

func TestRouterRegister(t *testing.T) {
	f := newRouterFixture(t)
	id := uuid.New()
	terminals := f.repos.TerminalRepository()

	require.NoError(t, f.router.Execute(f.ctx, domain.RegisterMessage{TerminalID: id, Label: "alpha"}))
	term, err := terminals.Get(f.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, term)
	assert.Equal(t, domain.TierBronze, term.Tier)
	assert.Equal(t, "alpha", term.Label)
	assert.True(t, term.Enabled)

	require.NoError(t, f.router.Execute(f.ctx, domain.RegisterMessage{TerminalID: id, IsCyphered: true}))
	term, err = terminals.Get(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.TierSilver, term.Tier)
	assert.Equal(t, "alpha", term.Label, "empty label keeps the stored one")

	require.NoError(t, f.router.Execute(f.ctx, domain.RegisterMessage{TerminalID: id, Label: "beta"}))
	term, err = terminals.Get(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.TierSilver, term.Tier, "tier is never downgraded")
	assert.Equal(t, "beta", term.Label)
}

func TestRouterRegisterCypheredStartsSilver(t *testing.T) {
	f := newRouterFixture(t)
	id := uuid.New()

	require.NoError(t, f.router.Execute(f.ctx, domain.RegisterMessage{TerminalID: id, IsCyphered: true}))
	term, err := f.repos.TerminalRepository().Get(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.TierSilver, term.Tier)
}

func TestRouterUnknownSenderAsksRegistration(t *testing.T) {
	f := newRouterFixture(t)
	id := uuid.New()

	require.NoError(t, f.router.Execute(f.ctx, domain.TradeMessage{TerminalID: id, Body: buyOrder()}))

	deliveries := f.presenter.deliveries()
	require.Len(t, deliveries, 1)
	assert.Equal(t, []domain.TerminalID{id}, deliveries[0].Recipients)
	assert.Equal(t, domain.NewAskRegistration(id), deliveries[0].Message)
}

func TestRouterMissingSourceChain(t *testing.T) {
	f := newRouterFixture(t)
	src := f.terminal(t, "src", nil)
	dst := f.terminal(t, "dst", []domain.RuleSpec{})
	f.route(t, src, dst)

	err := f.router.Execute(f.ctx, domain.TradeMessage{TerminalID: src.ID, Body: buyOrder()})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrEntityNotFound))
	assert.Empty(t, f.presenter.deliveries())
}

func TestRouterGroupsIdenticalOutputs(t *testing.T) {
	f := newRouterFixture(t)
	double := []domain.RuleSpec{
		{Field: "volume", Value: domain.NumberValue(2), Operator: domain.TransformMultiply},
	}
	src := f.terminal(t, "src", []domain.RuleSpec{})
	d1 := f.terminal(t, "d1", double)
	d2 := f.terminal(t, "d2", double)
	d3 := f.terminal(t, "d3", double)
	f.route(t, src, d1)
	f.route(t, src, d2)
	f.route(t, src, d3)

	require.NoError(t, f.router.Execute(f.ctx, domain.TradeMessage{TerminalID: src.ID, Body: buyOrder()}))

	deliveries := f.presenter.deliveries()
	require.Len(t, deliveries, 1)
	assert.Equal(t, sortedIDs(d1.ID, d2.ID, d3.ID), deliveries[0].Recipients)

	out, ok := deliveries[0].Message.(domain.OutTradeMessage)
	require.True(t, ok)
	want := buyOrder()
	want.Volume = 0.2
	assert.Equal(t, src.ID, out.TerminalID)
	assert.Equal(t, want, out.Body)
}

func TestRouterReverseThenMultiply(t *testing.T) {
	f := newRouterFixture(t)
	src := f.terminal(t, "src", []domain.RuleSpec{})
	dst := f.terminal(t, "dst", []domain.RuleSpec{
		{Field: domain.ReverseField, Operator: domain.OperatorUnset},
		{Field: "volume", Value: domain.NumberValue(2), Operator: domain.TransformMultiply},
	})
	f.route(t, src, dst)

	order := domain.Order{
		Action:    domain.TradeActionDeal,
		Symbol:    "EURUSD",
		Volume:    5,
		Price:     10,
		OrderType: domain.OrderTypeBuy,
	}
	require.NoError(t, f.router.Execute(f.ctx, domain.TradeMessage{TerminalID: src.ID, Body: order}))

	deliveries := f.presenter.deliveries()
	require.Len(t, deliveries, 1)
	assert.Equal(t, []domain.TerminalID{dst.ID}, deliveries[0].Recipients)

	out, ok := deliveries[0].Message.(domain.OutTradeMessage)
	require.True(t, ok)
	assert.Equal(t, domain.OrderTypeSell, out.Body.OrderType)
	assert.InDelta(t, 10, out.Body.Volume, 1e-9)
	assert.InDelta(t, 10, out.Body.Price, 1e-9)
}

func TestRouterDispatchPerDestination(t *testing.T) {
	f := newRouterFixture(t)
	src := f.terminal(t, "src", []domain.RuleSpec{
		{Field: "symbol", Value: domain.StringValue("EURUSD"), Operator: domain.FilterEQ},
	})
	plain := f.terminal(t, "plain", []domain.RuleSpec{})
	doubled := f.terminal(t, "doubled", []domain.RuleSpec{
		{Field: "volume", Value: domain.NumberValue(2), Operator: domain.TransformMultiply},
	})
	reversed := f.terminal(t, "reversed", []domain.RuleSpec{
		{Field: domain.ReverseField, Operator: domain.OperatorUnset},
	})
	filtered := f.terminal(t, "filtered", []domain.RuleSpec{
		{Field: "volume", Value: domain.NumberValue(1), Operator: domain.FilterGT},
	})
	noChain := f.terminal(t, "no-chain", nil)
	offline := f.terminal(t, "offline", []domain.RuleSpec{})
	f.registry.Disconnect(f.ctx, offline.ID)

	for _, dst := range []*domain.Terminal{plain, doubled, reversed, filtered, noChain, offline} {
		f.route(t, src, dst)
	}

	require.NoError(t, f.router.Execute(f.ctx, domain.TradeMessage{TerminalID: src.ID, Body: buyOrder()}))

	got := make(map[domain.TerminalID]domain.Order)
	for _, d := range f.presenter.deliveries() {
		require.Len(t, d.Recipients, 1)
		out, ok := d.Message.(domain.OutTradeMessage)
		require.True(t, ok)
		got[d.Recipients[0]] = out.Body
	}

	require.Len(t, got, 3)
	assert.Equal(t, buyOrder(), got[plain.ID])
	assert.InDelta(t, 0.2, got[doubled.ID].Volume, 1e-9)
	assert.Equal(t, domain.OrderTypeBuy, got[doubled.ID].OrderType)
	assert.Equal(t, domain.OrderTypeSell, got[reversed.ID].OrderType)
	assert.InDelta(t, 0.1, got[reversed.ID].Volume, 1e-9)
	assert.NotContains(t, got, filtered.ID)
	assert.NotContains(t, got, noChain.ID)
	assert.NotContains(t, got, offline.ID)
}

func TestRouterSourceFilterDropsTrade(t *testing.T) {
	f := newRouterFixture(t)
	src := f.terminal(t, "src", []domain.RuleSpec{
		{Field: "symbol", Value: domain.StringValue("GBPUSD"), Operator: domain.FilterEQ},
	})
	dst := f.terminal(t, "dst", []domain.RuleSpec{})
	f.route(t, src, dst)

	require.NoError(t, f.router.Execute(f.ctx, domain.TradeMessage{TerminalID: src.ID, Body: buyOrder()}))
	assert.Empty(t, f.presenter.deliveries())
}

func TestRouterSourceTransformErrorDropsTrade(t *testing.T) {
	f := newRouterFixture(t)
	src := f.terminal(t, "src", []domain.RuleSpec{
		{Field: domain.ReverseField, Operator: domain.OperatorUnset},
	})
	dst := f.terminal(t, "dst", []domain.RuleSpec{})
	f.route(t, src, dst)

	order := buyOrder()
	order.OrderType = domain.OrderTypeCloseBy
	require.NoError(t, f.router.Execute(f.ctx, domain.TradeMessage{TerminalID: src.ID, Body: order}))
	assert.Empty(t, f.presenter.deliveries())
}

func TestRouterInactiveSenderDropped(t *testing.T) {
	f := newRouterFixture(t)
	src := f.terminal(t, "src", []domain.RuleSpec{})
	dst := f.terminal(t, "dst", []domain.RuleSpec{})
	f.route(t, src, dst)

	src.Enabled = false
	require.NoError(t, f.repos.TerminalRepository().Save(f.ctx, src))

	require.NoError(t, f.router.Execute(f.ctx, domain.TradeMessage{TerminalID: src.ID, Body: buyOrder()}))
	assert.Empty(t, f.presenter.deliveries())
}

func TestRouterSourceChainDoesNotLeakBetweenDestinations(t *testing.T) {
	f := newRouterFixture(t)
	src := f.terminal(t, "src", []domain.RuleSpec{})
	d1 := f.terminal(t, "d1", []domain.RuleSpec{
		{Field: "comment", Value: domain.StringValue("-copy"), Operator: domain.TransformAppend},
	})
	d2 := f.terminal(t, "d2", []domain.RuleSpec{})
	f.route(t, src, d1)
	f.route(t, src, d2)

	order := buyOrder()
	order.SL = domain.Ptr(1.0950)
	order.SLPoints = domain.Ptr(int64(50))
	require.NoError(t, f.router.Execute(f.ctx, domain.TradeMessage{TerminalID: src.ID, Body: order}))

	got := make(map[domain.TerminalID]domain.Order)
	for _, d := range f.presenter.deliveries() {
		for _, id := range d.Recipients {
			got[id] = d.Message.(domain.OutTradeMessage).Body
		}
	}
	require.Len(t, got, 2)
	assert.Equal(t, "-copy", got[d1.ID].Comment)
	assert.Empty(t, got[d2.ID].Comment)
	assert.Equal(t, order, got[d2.ID])
}
