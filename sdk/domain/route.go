package domain

import "fmt"

// RouteID identifica una ruta persistida.
type RouteID int64

// RouteStatus modela el handshake de doble aceptación de una ruta.
type RouteStatus int

const (
	// RouteSourcePending: solo el lado origen pidió la ruta.
	RouteSourcePending RouteStatus = 0
	// RouteDestinationPending: solo el lado destino pidió la ruta.
	RouteDestinationPending RouteStatus = 1
	// RouteBoth: ambos lados aceptaron.
	RouteBoth RouteStatus = 2
)

// String implementa fmt.Stringer.
func (s RouteStatus) String() string {
	switch s {
	case RouteSourcePending:
		return "SOURCE_PENDING"
	case RouteDestinationPending:
		return "DESTINATION_PENDING"
	case RouteBoth:
		return "BOTH"
	default:
		return fmt.Sprintf("RouteStatus(%d)", int(s))
	}
}

// MergeStatus combina el estado guardado con el solicitado al re-agregar una ruta.
//
// Pendientes opuestos (o cualquier BOTH) completan el handshake.
func MergeStatus(stored, requested RouteStatus) RouteStatus {
	if stored == requested {
		return stored
	}
	return RouteBoth
}

// TerminalRole indica desde qué extremo se consulta una ruta.
type TerminalRole int

const (
	RoleSource      TerminalRole = 0
	RoleDestination TerminalRole = 1
	RoleUnknown     TerminalRole = 2
)

// String implementa fmt.Stringer.
func (r TerminalRole) String() string {
	switch r {
	case RoleSource:
		return "SOURCE"
	case RoleDestination:
		return "DESTINATION"
	default:
		return "UNKNOWN"
	}
}

// Route es una arista dirigida del grafo de copiado.
type Route struct {
	ID          RouteID // 0 si aún no se persistió
	Source      *Terminal
	Destination *Terminal
	Status      RouteStatus
}

// NewRoute valida los invariantes locales de una ruta.
//
// El chequeo de ciclo directo (ruta opuesta existente) requiere el repositorio
// y lo realiza el aprovisionamiento.
func NewRoute(source, destination *Terminal, status RouteStatus) (*Route, error) {
	if source == nil || destination == nil {
		return nil, NewError(ErrInvalidRoute, "route endpoints are required")
	}
	if source.ID == destination.ID {
		return nil, NewError(ErrInvalidRoute, "source and destination are the same terminal").
			WithDetail("terminal_id", source.ID.String())
	}
	if !source.IsActive() {
		return nil, NewError(ErrInvalidRoute, "source must be active").
			WithDetail("terminal_id", source.ID.String())
	}
	if !destination.IsActive() {
		return nil, NewError(ErrInvalidRoute, "destination must be active").
			WithDetail("terminal_id", destination.ID.String())
	}
	if status < RouteSourcePending || status > RouteBoth {
		return nil, NewValidationError("status", status, "unknown route status")
	}
	return &Route{Source: source, Destination: destination, Status: status}, nil
}

// Withdraw aplica la baja de la ruta desde el extremo side.
//
// Retorna remove=true si la arista debe eliminarse. Con BOTH la ruta se degrada
// al pendiente del otro extremo.
func (r *Route) Withdraw(side TerminalID) (remove bool, err error) {
	var role TerminalRole
	switch side {
	case r.Source.ID:
		role = RoleSource
	case r.Destination.ID:
		role = RoleDestination
	default:
		return false, NewError(ErrInvalidRoute, "terminal is not an endpoint of the route").
			WithDetail("route_id", int64(r.ID)).
			WithDetail("terminal_id", side.String())
	}

	switch {
	case r.Status == RouteBoth && role == RoleSource:
		r.Status = RouteDestinationPending
		return false, nil
	case r.Status == RouteBoth && role == RoleDestination:
		r.Status = RouteSourcePending
		return false, nil
	case r.Status == RouteSourcePending && role == RoleSource,
		r.Status == RouteDestinationPending && role == RoleDestination:
		return true, nil
	}
	return false, NewError(ErrInvalidRoute, "terminal has not accepted this route").
		WithDetail("route_id", int64(r.ID)).
		WithDetail("status", r.Status.String())
}

// String implementa fmt.Stringer.
func (r *Route) String() string {
	return fmt.Sprintf("Route(%d): %s -> %s [%s]", r.ID, r.Source.ID, r.Destination.ID, r.Status)
}
