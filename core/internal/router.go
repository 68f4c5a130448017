package internal

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/telemetry/metricbundle"
	"github.com/xKoRx/echo/sdk/telemetry/semconv"
	"github.com/xKoRx/echo/sdk/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Router procesa los mensajes decodificados de las terminales.
//
// Responsabilidades:
//   - Alta y actualización de terminales (RegisterMessage)
//   - Pedir registro a terminales desconocidas
//   - Despacho de TradeMessage: cadena origen, rutas, cadena destino
//   - Agrupar destinos por contenido y presentar las entregas
//   - Telemetría
//
// Sin estado propio: cada sesión llama a Execute en su goroutine de lectura.
type Router struct {
	terminals domain.TerminalRepository
	routes    domain.RouteRepository
	rules     domain.RuleRepository

	registry  ConnectionRegistry
	presenter Presenter

	telemetry *telemetry.Client
	metrics   *metricbundle.EchoMetrics
}

// NewRouter crea un nuevo router.
func NewRouter(
	repos domain.RepositoryFactory,
	registry ConnectionRegistry,
	presenter Presenter,
	tel *telemetry.Client,
	metrics *metricbundle.EchoMetrics,
) *Router {
	return &Router{
		terminals: repos.TerminalRepository(),
		routes:    repos.RouteRepository(),
		rules:     repos.RuleRepository(),
		registry:  registry,
		presenter: presenter,
		telemetry: tel,
		metrics:   metrics,
	}
}

// Execute procesa un mensaje entrante.
//
// Solo retorna error por cadena origen ausente o por fallas del repositorio.
func (r *Router) Execute(ctx context.Context, msg domain.IncomingMessage) error {
	ctx = telemetry.AppendEventAttrs(ctx,
		semconv.Echo.TerminalID.String(msg.Sender().String()),
	)
	ctx, span := r.telemetry.StartSpan(ctx, "echo.router.execute",
		trace.WithAttributes(semconv.Echo.TerminalID.String(msg.Sender().String())),
	)
	defer span.End()

	var err error
	switch m := msg.(type) {
	case domain.RegisterMessage:
		err = r.handleRegister(ctx, m)
	case domain.TradeMessage:
		err = r.handleTrade(ctx, m)
	default:
		err = domain.NewError(domain.ErrInternal, fmt.Sprintf("unsupported message type %T", msg))
	}

	if err != nil {
		r.telemetry.RecordError(ctx, err,
			semconv.Echo.ErrorCode.String(string(domain.CodeOf(err))),
		)
	}
	return err
}

// handleRegister crea la terminal o actualiza label y tier.
//
// Un registro cifrado promueve BRONZE a SILVER. Nunca degrada.
func (r *Router) handleRegister(ctx context.Context, m domain.RegisterMessage) error {
	term, err := r.terminals.Get(ctx, m.TerminalID)
	if err != nil {
		return domain.WrapError(domain.ErrInternal, "failed to load terminal", err)
	}

	if term == nil {
		tier := domain.TierBronze
		if m.IsCyphered {
			tier = domain.TierSilver
		}
		term = domain.NewTerminal(m.TerminalID, m.Label, tier)
		if err := r.terminals.Save(ctx, term); err != nil {
			return domain.WrapError(domain.ErrInternal, "failed to create terminal", err)
		}
		r.metrics.RecordTerminalRegistered(ctx, "created")
		r.telemetry.Info(ctx, "Terminal registered",
			semconv.Echo.Tier.String(tier.String()),
			semconv.Echo.AccountID.String(m.AccountID),
			attribute.String("label", m.Label),
		)
		return nil
	}

	changed := false
	if m.Label != "" && m.Label != term.Label {
		term.Label = m.Label
		changed = true
	}
	if m.IsCyphered && term.Tier == domain.TierBronze {
		term.Tier = domain.TierSilver
		changed = true
	}
	if !changed {
		r.telemetry.Debug(ctx, "Terminal re-registered without changes")
		return nil
	}

	if err := r.terminals.Save(ctx, term); err != nil {
		return domain.WrapError(domain.ErrInternal, "failed to update terminal", err)
	}
	r.metrics.RecordTerminalRegistered(ctx, "updated")
	r.telemetry.Info(ctx, "Terminal updated",
		semconv.Echo.Tier.String(term.Tier.String()),
		attribute.String("label", term.Label),
	)
	return nil
}

func (r *Router) handleTrade(ctx context.Context, m domain.TradeMessage) error {
	start := time.Now()
	ctx = telemetry.AppendEventAttrs(ctx,
		semconv.Echo.Symbol.String(m.Body.Symbol),
		semconv.Echo.OrderType.String(m.Body.OrderType.String()),
		semconv.Echo.Volume.Float64(m.Body.Volume),
	)
	defer func() {
		r.metrics.RecordDispatchLatency(ctx, utils.ElapsedMsSince(start))
	}()

	sender, err := r.terminals.Get(ctx, m.TerminalID)
	if err != nil {
		return domain.WrapError(domain.ErrInternal, "failed to load terminal", err)
	}

	if sender == nil {
		r.telemetry.Info(ctx, "Trade from unknown terminal, asking for registration")
		ask := Delivery{
			Recipients: []domain.TerminalID{m.TerminalID},
			Message:    domain.NewAskRegistration(m.TerminalID),
		}
		return r.presenter.Present(ctx, m.TerminalID, []Delivery{ask})
	}

	if !sender.IsActive() {
		r.telemetry.Debug(ctx, "Trade from inactive terminal dropped")
		r.metrics.RecordDispatchDropped(ctx, "inactive")
		return nil
	}

	deliveries, err := r.Dispatch(ctx, sender, m)
	if err != nil {
		return err
	}
	if len(deliveries) == 0 {
		return nil
	}
	return r.presenter.Present(ctx, sender.ID, deliveries)
}

// Dispatch ejecuta el despacho completo de un trade de una terminal activa.
//
// Los destinos se recorren en orden de id y se agrupan por contenido saliente.
func (r *Router) Dispatch(ctx context.Context, sender *domain.Terminal, m domain.TradeMessage) ([]Delivery, error) {
	chain, err := r.rules.Get(ctx, sender.ID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInternal, "failed to load source rules", err)
	}
	if chain == nil {
		return nil, domain.NewError(domain.ErrEntityNotFound, "source rule chain not found").
			WithDetail("terminal_id", sender.ID.String())
	}

	outgoing, ok, err := chain.Apply(m)
	if err != nil {
		r.telemetry.Warn(ctx, "Source rules failed, trade dropped",
			semconv.Echo.ErrorCode.String(string(domain.CodeOf(err))),
			attribute.String("error", err.Error()),
		)
		r.metrics.RecordDispatchDropped(ctx, "error")
		return nil, nil
	}
	if !ok {
		r.telemetry.Debug(ctx, "Trade filtered by source rules")
		r.metrics.RecordDispatchDropped(ctx, "filtered")
		return nil, nil
	}

	destinations, err := r.activeDestinations(ctx, sender.ID)
	if err != nil {
		return nil, err
	}

	var (
		deliveries []Delivery
		byContent  = make(map[string]int)
	)
	for _, dest := range destinations {
		dctx := telemetry.AppendEventAttrs(ctx, semconv.Echo.DestinationID.String(dest.ID.String()))

		if !r.registry.IsConnected(dest.ID) {
			r.telemetry.Debug(dctx, "Destination not connected, skipped")
			r.metrics.RecordDispatchDropped(dctx, "unreachable")
			continue
		}

		destChain, err := r.rules.Get(ctx, dest.ID)
		if err != nil {
			return nil, domain.WrapError(domain.ErrInternal, "failed to load destination rules", err)
		}
		if destChain == nil {
			r.telemetry.Warn(dctx, "Destination has no rule chain, skipped")
			r.metrics.RecordDispatchDropped(dctx, "missing_rule")
			continue
		}

		transformed, ok, err := destChain.Apply(outgoing.Clone())
		if err != nil {
			r.telemetry.Warn(dctx, "Destination rules failed, skipped",
				semconv.Echo.ErrorCode.String(string(domain.CodeOf(err))),
				attribute.String("error", err.Error()),
			)
			r.metrics.RecordDispatchDropped(dctx, "error")
			continue
		}
		if !ok {
			r.telemetry.Debug(dctx, "Trade filtered by destination rules")
			r.metrics.RecordDispatchDropped(dctx, "filtered")
			continue
		}

		out := domain.OutTradeMessage{TerminalID: sender.ID, Body: transformed.Body}
		key, err := out.ContentKey()
		if err != nil {
			r.telemetry.Error(dctx, "Failed to key outgoing trade", err)
			r.metrics.RecordDispatchDropped(dctx, "error")
			continue
		}

		if idx, seen := byContent[key]; seen {
			deliveries[idx].Recipients = append(deliveries[idx].Recipients, dest.ID)
			continue
		}
		byContent[key] = len(deliveries)
		deliveries = append(deliveries, Delivery{
			Recipients: []domain.TerminalID{dest.ID},
			Message:    out,
		})
	}

	r.telemetry.SetSpanAttributes(ctx,
		attribute.Int("destinations", len(destinations)),
		attribute.Int("deliveries", len(deliveries)),
	)
	r.telemetry.Info(ctx, "Trade dispatched",
		attribute.Int("destinations", len(destinations)),
		attribute.Int("deliveries", len(deliveries)),
	)
	return deliveries, nil
}

// activeDestinations retorna los destinos activos distintos, ordenados por id.
//
// Las rutas pendientes también entregan.
func (r *Router) activeDestinations(ctx context.Context, source domain.TerminalID) ([]*domain.Terminal, error) {
	routes, err := r.routes.GetByTerminal(ctx, source, domain.RoleSource)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInternal, "failed to load routes", err)
	}

	seen := make(map[domain.TerminalID]bool, len(routes))
	out := make([]*domain.Terminal, 0, len(routes))
	for _, route := range routes {
		dest := route.Destination
		if dest == nil || seen[dest.ID] || !dest.IsActive() {
			continue
		}
		seen[dest.ID] = true
		out = append(out, dest)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}
