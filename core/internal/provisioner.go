package internal

import (
	"context"
	"fmt"

	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/telemetry/metricbundle"
	"github.com/xKoRx/echo/sdk/telemetry/semconv"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultMaxRoutesPerSource es el fan-out máximo por defecto de una terminal origen.
const DefaultMaxRoutesPerSource = 10

// ProvisionResult es el resultado de aprovisionar un par (origen, destino).
//
// Exactamente uno de Route o Err es no nulo.
type ProvisionResult struct {
	Route *domain.Route
	Err   error
}

// Provisioner resuelve identificadores de terminales en aristas del grafo.
//
// Cada par se procesa de forma independiente (soft-fail).
type Provisioner struct {
	terminals domain.TerminalRepository
	routes    domain.RouteRepository

	maxRoutesPerSource int

	telemetry *telemetry.Client
	metrics   *metricbundle.EchoMetrics
}

// NewProvisioner crea un provisioner. maxRoutes <= 0 usa DefaultMaxRoutesPerSource.
func NewProvisioner(repos domain.RepositoryFactory, maxRoutes int, tel *telemetry.Client, metrics *metricbundle.EchoMetrics) *Provisioner {
	if maxRoutes <= 0 {
		maxRoutes = DefaultMaxRoutesPerSource
	}
	return &Provisioner{
		terminals:          repos.TerminalRepository(),
		routes:             repos.RouteRepository(),
		maxRoutesPerSource: maxRoutes,
		telemetry:          tel,
		metrics:            metrics,
	}
}

// terminalRef es un identificador ya parseado: id completo o sufijo.
type terminalRef struct {
	id   domain.TerminalID
	tail string
}

func (r terminalRef) isTail() bool { return r.tail != "" }

func parseTerminalRef(s, side string) (terminalRef, error) {
	switch {
	case len(s) == 36 || len(s) == 32:
		id, err := domain.ParseTerminalID(s)
		if err != nil {
			return terminalRef{}, domain.NewValidationError(side, s, "incorrectly formed "+side)
		}
		return terminalRef{id: id}, nil
	case domain.IsTail(s):
		return terminalRef{tail: s}, nil
	}
	return terminalRef{}, domain.NewValidationError(side, s, "incorrectly formed "+side)
}

// AddRoutes aprovisiona los pares (sources[i], destinations[i]).
//
// Retorna un resultado por índice. Una entrada sin pareja es un error de ese índice.
func (p *Provisioner) AddRoutes(ctx context.Context, sources, destinations []string) []ProvisionResult {
	n := max(len(sources), len(destinations))
	results := make([]ProvisionResult, 0, n)

	for i := 0; i < n; i++ {
		if i >= len(sources) || i >= len(destinations) {
			err := domain.NewValidationError("routes", i, fmt.Sprintf("input #%d has no pair", i))
			results = append(results, p.finish(ctx, nil, err))
			continue
		}
		route, err := p.addPair(ctx, nil, sources[i], destinations[i])
		results = append(results, p.finish(ctx, route, err))
	}
	return results
}

// AddRouteFor aprovisiona una ruta pedida por caller.
//
// El rol del caller se infiere del grafo existente: con rutas como destino es
// el destino; si no, con rutas como origen es el origen; si no, se usa el
// pedido tal cual. El lado inferido se completa con el id del caller.
func (p *Provisioner) AddRouteFor(ctx context.Context, caller domain.TerminalID, source, destination string) ProvisionResult {
	route, err := p.addPair(ctx, &caller, source, destination)
	return p.finish(ctx, route, err)
}

func (p *Provisioner) finish(ctx context.Context, route *domain.Route, err error) ProvisionResult {
	if err != nil {
		p.metrics.RecordRouteProvisioned(ctx, "error",
			semconv.Echo.ErrorCode.String(string(domain.CodeOf(err))),
		)
		p.telemetry.Warn(ctx, "Route not provisioned",
			semconv.Echo.ErrorCode.String(string(domain.CodeOf(err))),
			attribute.String("error", err.Error()),
		)
		return ProvisionResult{Err: err}
	}
	p.metrics.RecordRouteProvisioned(ctx, "ok")
	p.telemetry.Info(ctx, "Route provisioned",
		semconv.Echo.RouteID.Int64(int64(route.ID)),
		semconv.Echo.TerminalID.String(route.Source.ID.String()),
		semconv.Echo.DestinationID.String(route.Destination.ID.String()),
		semconv.Echo.Status.String(route.Status.String()),
	)
	return ProvisionResult{Route: route}
}

func (p *Provisioner) addPair(ctx context.Context, caller *domain.TerminalID, source, destination string) (*domain.Route, error) {
	src, err := parseTerminalRef(source, "source")
	if err != nil {
		return nil, err
	}
	dst, err := parseTerminalRef(destination, "destination")
	if err != nil {
		return nil, err
	}

	if caller != nil {
		role, err := p.inferRole(ctx, *caller)
		if err != nil {
			return nil, err
		}
		switch role {
		case domain.RoleDestination:
			dst = terminalRef{id: *caller}
		case domain.RoleSource:
			src = terminalRef{id: *caller}
		}
	}

	if src.isTail() && dst.isTail() {
		return nil, domain.NewValidationError("routes", source+" "+destination, "both terminals are passed as tail")
	}

	status := domain.RouteBoth
	switch {
	case src.isTail():
		status = domain.RouteDestinationPending
	case dst.isTail():
		status = domain.RouteSourcePending
	}

	srcTerm, err := p.resolve(ctx, src)
	if err != nil {
		return nil, err
	}
	dstTerm, err := p.resolve(ctx, dst)
	if err != nil {
		return nil, err
	}
	if srcTerm == nil || dstTerm == nil {
		return nil, domain.NewError(domain.ErrEntityNotFound, "source or destination wasn't found").
			WithDetail("source", source).
			WithDetail("destination", destination)
	}

	route, err := domain.NewRoute(srcTerm, dstTerm, status)
	if err != nil {
		return nil, err
	}

	opposite, err := p.findRoute(ctx, dstTerm.ID, srcTerm.ID)
	if err != nil {
		return nil, err
	}
	if opposite != nil {
		return nil, domain.NewError(domain.ErrInvalidRoute, "opposite route already exists").
			WithDetail("route_id", int64(opposite.ID))
	}

	existing, fanOut, err := p.sourceRoutes(ctx, srcTerm.ID, dstTerm.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		route.ID = existing.ID
		route.Status = domain.MergeStatus(existing.Status, status)
	} else if fanOut >= p.maxRoutesPerSource {
		return nil, domain.NewError(domain.ErrTooManyRoutes, "source has too many routes").
			WithDetail("terminal_id", srcTerm.ID.String()).
			WithDetail("max_routes", p.maxRoutesPerSource)
	}

	if _, err := p.routes.Save(ctx, route); err != nil {
		return nil, domain.WrapError(domain.ErrInternal, "failed to save route", err)
	}
	return route, nil
}

func (p *Provisioner) inferRole(ctx context.Context, caller domain.TerminalID) (domain.TerminalRole, error) {
	asDest, err := p.routes.GetByTerminal(ctx, caller, domain.RoleDestination)
	if err != nil {
		return domain.RoleUnknown, domain.WrapError(domain.ErrInternal, "failed to load routes", err)
	}
	if len(asDest) > 0 {
		return domain.RoleDestination, nil
	}
	asSource, err := p.routes.GetByTerminal(ctx, caller, domain.RoleSource)
	if err != nil {
		return domain.RoleUnknown, domain.WrapError(domain.ErrInternal, "failed to load routes", err)
	}
	if len(asSource) > 0 {
		return domain.RoleSource, nil
	}
	return domain.RoleUnknown, nil
}

func (p *Provisioner) resolve(ctx context.Context, ref terminalRef) (*domain.Terminal, error) {
	var (
		term *domain.Terminal
		err  error
	)
	if ref.isTail() {
		term, err = p.terminals.GetByTail(ctx, ref.tail)
	} else {
		term, err = p.terminals.Get(ctx, ref.id)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrInternal, "failed to load terminal", err)
	}
	return term, nil
}

// sourceRoutes busca la ruta (source, destination) y cuenta el fan-out de source.
func (p *Provisioner) sourceRoutes(ctx context.Context, source, destination domain.TerminalID) (*domain.Route, int, error) {
	routes, err := p.routes.GetByTerminal(ctx, source, domain.RoleSource)
	if err != nil {
		return nil, 0, domain.WrapError(domain.ErrInternal, "failed to load routes", err)
	}
	for _, r := range routes {
		if r.Destination.ID == destination {
			return r, len(routes), nil
		}
	}
	return nil, len(routes), nil
}

func (p *Provisioner) findRoute(ctx context.Context, source, destination domain.TerminalID) (*domain.Route, error) {
	route, _, err := p.sourceRoutes(ctx, source, destination)
	return route, err
}

// DeleteRoute aplica la baja de la ruta desde el lado del caller.
//
// Retorna la ruta resultante y si se eliminó. Con BOTH la ruta se degrada al
// pendiente del otro extremo.
func (p *Provisioner) DeleteRoute(ctx context.Context, caller domain.TerminalID, routeID domain.RouteID) (*domain.Route, bool, error) {
	route, err := p.routes.Get(ctx, routeID)
	if err != nil {
		return nil, false, domain.WrapError(domain.ErrInternal, "failed to load route", err)
	}
	if route == nil {
		return nil, false, domain.NewError(domain.ErrEntityNotFound, "route not found").
			WithDetail("route_id", int64(routeID))
	}

	remove, err := route.Withdraw(caller)
	if err != nil {
		return nil, false, err
	}

	if remove {
		if err := p.routes.Delete(ctx, routeID); err != nil {
			return nil, false, domain.WrapError(domain.ErrInternal, "failed to delete route", err)
		}
	} else if _, err := p.routes.Save(ctx, route); err != nil {
		return nil, false, domain.WrapError(domain.ErrInternal, "failed to save route", err)
	}

	p.telemetry.Info(ctx, "Route withdrawn",
		semconv.Echo.RouteID.Int64(int64(routeID)),
		semconv.Echo.TerminalID.String(caller.String()),
		semconv.Echo.Status.String(route.Status.String()),
		attribute.Bool("removed", remove),
	)
	return route, remove, nil
}
