package domain

import "context"

// TerminalRepository define operaciones de persistencia para Terminal.
//
// Implementaciones:
//   - SQL (PostgreSQL / SQLite): en core/internal/repository/terminal_sql.go
type TerminalRepository interface {
	// Get obtiene una terminal por id.
	// Retorna nil si no existe.
	Get(ctx context.Context, id TerminalID) (*Terminal, error)

	// GetByTail obtiene la terminal cuyo id termina en el sufijo dado.
	// Retorna nil si no existe.
	GetByTail(ctx context.Context, tail string) (*Terminal, error)

	// Save inserta o actualiza la terminal (upsert por id).
	Save(ctx context.Context, terminal *Terminal) error
}

// RouteRepository define operaciones de persistencia para Route.
type RouteRepository interface {
	// Get obtiene una ruta con sus terminales.
	// Retorna nil si no existe.
	Get(ctx context.Context, id RouteID) (*Route, error)

	// GetByTerminal obtiene las rutas donde la terminal cumple el rol dado.
	GetByTerminal(ctx context.Context, id TerminalID, role TerminalRole) ([]*Route, error)

	// Save hace upsert por (source, destination) y retorna el id persistido.
	Save(ctx context.Context, route *Route) (RouteID, error)

	// Delete elimina la ruta. No falla si no existe.
	Delete(ctx context.Context, id RouteID) error
}

// RuleRepository define operaciones de persistencia para cadenas de reglas.
type RuleRepository interface {
	// Get obtiene la cadena de una terminal.
	// Retorna nil si la terminal no tiene cadena (distinto de cadena vacía).
	Get(ctx context.Context, id TerminalID) (*ComplexRule, error)

	// Save reemplaza la cadena completa de la terminal.
	Save(ctx context.Context, id TerminalID, chain *ComplexRule) error
}

// RepositoryFactory crea instancias de repositorios.
type RepositoryFactory interface {
	TerminalRepository() TerminalRepository
	RouteRepository() RouteRepository
	RuleRepository() RuleRepository
}
