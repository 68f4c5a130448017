package internal

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xKoRx/echo/core/internal/repository"
	"github.com/xKoRx/echo/sdk/domain"
)

type provisionerFixture struct {
	ctx   context.Context
	repos *repository.SQLFactory
	p     *Provisioner
}

func newProvisionerFixture(t *testing.T, maxRoutes int) *provisionerFixture {
	t.Helper()
	tel := newTestTelemetryClient(t)
	repos := newTestRepositories(t)
	return &provisionerFixture{
		ctx:   context.Background(),
		repos: repos,
		p:     NewProvisioner(repos, maxRoutes, tel, newTestMetrics(t, tel)),
	}
}

func (f *provisionerFixture) terminal(t *testing.T) *domain.Terminal {
	t.Helper()
	term := domain.NewTerminal(uuid.New(), "", domain.TierBronze)
	require.NoError(t, f.repos.TerminalRepository().Save(f.ctx, term))
	return term
}

func (f *provisionerFixture) add(t *testing.T, source, destination string) ProvisionResult {
	t.Helper()
	results := f.p.AddRoutes(f.ctx, []string{source}, []string{destination})
	require.Len(t, results, 1)
	return results[0]
}

func TestProvisionerAddRoutesErrors(t *testing.T) {
	f := newProvisionerFixture(t, 0)
	a := f.terminal(t)
	b := f.terminal(t)

	cases := []struct {
		name        string
		source      string
		destination string
		code        domain.ErrorCode
	}{
		{name: "malformed_source", source: "xyz", destination: b.ID.String(), code: domain.ErrValidation},
		{name: "malformed_destination", source: a.ID.String(), destination: "not-a-terminal", code: domain.ErrValidation},
		{name: "both_tails", source: a.Tail(), destination: b.Tail(), code: domain.ErrValidation},
		{name: "not_found", source: a.ID.String(), destination: uuid.NewString(), code: domain.ErrEntityNotFound},
		{name: "tail_not_found", source: a.ID.String(), destination: "000000000000", code: domain.ErrEntityNotFound},
		{name: "self_loop", source: a.ID.String(), destination: a.ID.String(), code: domain.ErrInvalidRoute},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := f.add(t, tc.source, tc.destination)
			require.Error(t, res.Err)
			assert.Nil(t, res.Route)
			assert.True(t, domain.IsCode(res.Err, tc.code), "got %v", res.Err)
		})
	}
}

func TestProvisionerStatusFromTails(t *testing.T) {
	cases := []struct {
		name string
		ref  func(src, dst *domain.Terminal) (string, string)
		want domain.RouteStatus
	}{
		{
			name: "full_ids",
			ref:  func(src, dst *domain.Terminal) (string, string) { return src.ID.String(), dst.ID.String() },
			want: domain.RouteBoth,
		},
		{
			name: "source_tail",
			ref:  func(src, dst *domain.Terminal) (string, string) { return src.Tail(), dst.ID.String() },
			want: domain.RouteDestinationPending,
		},
		{
			name: "destination_tail",
			ref:  func(src, dst *domain.Terminal) (string, string) { return src.ID.String(), dst.Tail() },
			want: domain.RouteSourcePending,
		},
		{
			name: "compact_id",
			ref: func(src, dst *domain.Terminal) (string, string) {
				return src.ID.String(), dst.ID.String()[0:8] + dst.ID.String()[9:13] +
					dst.ID.String()[14:18] + dst.ID.String()[19:23] + dst.ID.String()[24:]
			},
			want: domain.RouteBoth,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newProvisionerFixture(t, 0)
			src, dst := f.terminal(t), f.terminal(t)
			source, destination := tc.ref(src, dst)

			res := f.add(t, source, destination)
			require.NoError(t, res.Err)
			assert.Equal(t, tc.want, res.Route.Status)
			assert.Equal(t, src.ID, res.Route.Source.ID)
			assert.Equal(t, dst.ID, res.Route.Destination.ID)
			assert.NotZero(t, res.Route.ID)
		})
	}
}

func TestProvisionerMergesOnReAdd(t *testing.T) {
	f := newProvisionerFixture(t, 1)
	src, dst := f.terminal(t), f.terminal(t)

	first := f.add(t, src.ID.String(), dst.Tail())
	require.NoError(t, first.Err)
	assert.Equal(t, domain.RouteSourcePending, first.Route.Status)

	second := f.add(t, src.Tail(), dst.ID.String())
	require.NoError(t, second.Err, "re-adding an existing pair is not counted against the limit")
	assert.Equal(t, domain.RouteBoth, second.Route.Status)
	assert.Equal(t, first.Route.ID, second.Route.ID)

	routes, err := f.repos.RouteRepository().GetByTerminal(f.ctx, src.ID, domain.RoleSource)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, domain.RouteBoth, routes[0].Status)
}

func TestProvisionerRejectsOppositeRoute(t *testing.T) {
	f := newProvisionerFixture(t, 0)
	a, b := f.terminal(t), f.terminal(t)

	require.NoError(t, f.add(t, a.ID.String(), b.ID.String()).Err)

	res := f.add(t, b.ID.String(), a.ID.String())
	require.Error(t, res.Err)
	assert.True(t, domain.IsCode(res.Err, domain.ErrInvalidRoute))
}

func TestProvisionerTooManyRoutes(t *testing.T) {
	f := newProvisionerFixture(t, 2)
	src := f.terminal(t)
	d1, d2, d3 := f.terminal(t), f.terminal(t), f.terminal(t)

	results := f.p.AddRoutes(f.ctx,
		[]string{src.ID.String(), src.ID.String(), src.ID.String()},
		[]string{d1.ID.String(), d2.ID.String(), d3.ID.String()},
	)
	require.Len(t, results, 3)
	require.NoError(t, results[0].Err)
	require.NoError(t, results[1].Err)
	require.Error(t, results[2].Err)
	assert.True(t, domain.IsCode(results[2].Err, domain.ErrTooManyRoutes))
}

func TestProvisionerUnpairedInput(t *testing.T) {
	f := newProvisionerFixture(t, 0)
	a, b, c := f.terminal(t), f.terminal(t), f.terminal(t)

	results := f.p.AddRoutes(f.ctx,
		[]string{a.ID.String(), c.ID.String()},
		[]string{b.ID.String()},
	)
	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	assert.True(t, domain.IsCode(results[1].Err, domain.ErrValidation))
	assert.Contains(t, results[1].Err.Error(), "input #1 has no pair")
}

func TestProvisionerAddRouteForInfersRole(t *testing.T) {
	f := newProvisionerFixture(t, 0)
	caller := f.terminal(t)
	upstream := f.terminal(t)
	other := f.terminal(t)

	t.Run("no_routes_uses_request", func(t *testing.T) {
		res := f.p.AddRouteFor(f.ctx, caller.ID, upstream.ID.String(), caller.ID.String())
		require.NoError(t, res.Err)
		assert.Equal(t, upstream.ID, res.Route.Source.ID)
		assert.Equal(t, caller.ID, res.Route.Destination.ID)
	})

	t.Run("destination_role_overrides_destination", func(t *testing.T) {
		res := f.p.AddRouteFor(f.ctx, caller.ID, other.Tail(), other.ID.String())
		require.NoError(t, res.Err)
		assert.Equal(t, other.ID, res.Route.Source.ID)
		assert.Equal(t, caller.ID, res.Route.Destination.ID)
		assert.Equal(t, domain.RouteDestinationPending, res.Route.Status)
	})
}

func TestProvisionerDeleteRoute(t *testing.T) {
	f := newProvisionerFixture(t, 0)
	src, dst, stranger := f.terminal(t), f.terminal(t), f.terminal(t)

	res := f.add(t, src.ID.String(), dst.ID.String())
	require.NoError(t, res.Err)
	id := res.Route.ID

	_, _, err := f.p.DeleteRoute(f.ctx, stranger.ID, id)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrInvalidRoute))

	route, removed, err := f.p.DeleteRoute(f.ctx, src.ID, id)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, domain.RouteDestinationPending, route.Status)

	_, _, err = f.p.DeleteRoute(f.ctx, src.ID, id)
	require.Error(t, err, "source already withdrew")
	assert.True(t, domain.IsCode(err, domain.ErrInvalidRoute))

	_, removed, err = f.p.DeleteRoute(f.ctx, dst.ID, id)
	require.NoError(t, err)
	assert.True(t, removed)

	stored, err := f.repos.RouteRepository().Get(f.ctx, id)
	require.NoError(t, err)
	assert.Nil(t, stored)

	_, _, err = f.p.DeleteRoute(f.ctx, dst.ID, id)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrEntityNotFound))
}
