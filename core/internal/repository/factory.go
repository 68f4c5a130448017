// Package repository provee implementaciones de persistencia para Echo Core.
//
// Los repositorios usan database/sql sobre PostgreSQL (lib/pq) o SQLite
// (modernc.org/sqlite). Las consultas se escriben con placeholders "?" y se
// reescriben al dialecto del driver.
package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq" // Driver PostgreSQL
	"github.com/xKoRx/echo/sdk/domain"
	_ "modernc.org/sqlite" // Driver SQLite
)

// Drivers soportados.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Open abre y verifica la conexión a la base.
//
// Con SQLite se limita el pool a una conexión: una base ":memory:" es
// privada de cada conexión.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	if _, err := dialectFor(driver); err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", driver, err)
	}
	return db, nil
}

// Migrate aplica el esquema embebido del driver. Es idempotente.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	if _, err := dialectFor(driver); err != nil {
		return err
	}
	script, err := schemaFS.ReadFile("schema/" + driver + ".sql")
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}
	for _, stmt := range splitStatements(string(script)) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func splitStatements(script string) []string {
	var b strings.Builder
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	var out []string
	for _, stmt := range strings.Split(b.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// dialect reescribe consultas escritas con "?".
type dialect struct {
	numbered bool
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverPostgres:
		return dialect{numbered: true}, nil
	case DriverSQLite:
		return dialect{}, nil
	}
	return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
}

// rebind convierte "?" en $1..$N para PostgreSQL.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// SQLFactory implementa domain.RepositoryFactory sobre database/sql.
type SQLFactory struct {
	db *sql.DB
	d  dialect

	terminalRepo domain.TerminalRepository
	routeRepo    domain.RouteRepository
	ruleRepo     domain.RuleRepository
}

// NewSQLFactory crea un factory de repositorios para el driver dado.
//
// Uso:
//
//	db, err := repository.Open(ctx, "postgres", dsn)
//	factory, err := repository.NewSQLFactory(db, "postgres")
//	terminals := factory.TerminalRepository()
func NewSQLFactory(db *sql.DB, driver string) (*SQLFactory, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	f := &SQLFactory{db: db, d: d}
	f.terminalRepo = &sqlTerminalRepo{db: db, d: d}
	f.routeRepo = &sqlRouteRepo{db: db, d: d}
	f.ruleRepo = &sqlRuleRepo{db: db, d: d}
	return f, nil
}

// TerminalRepository retorna el repositorio de terminales.
func (f *SQLFactory) TerminalRepository() domain.TerminalRepository {
	return f.terminalRepo
}

// RouteRepository retorna el repositorio de rutas.
func (f *SQLFactory) RouteRepository() domain.RouteRepository {
	return f.routeRepo
}

// RuleRepository retorna el repositorio de cadenas de reglas.
func (f *SQLFactory) RuleRepository() domain.RuleRepository {
	return f.ruleRepo
}

// DB retorna la conexión subyacente.
func (f *SQLFactory) DB() *sql.DB {
	return f.db
}
