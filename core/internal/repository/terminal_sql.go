package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/utils"
)

// ===========================================================================
// sqlTerminalRepo
// ===========================================================================

type sqlTerminalRepo struct {
	db *sql.DB
	d  dialect
}

const terminalColumns = `id, label, registered_at_ms, expire_at_ms, tier, enabled`

// rowScanner abstrae *sql.Row y *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *sqlTerminalRepo) Get(ctx context.Context, id domain.TerminalID) (*domain.Terminal, error) {
	query := r.d.rebind(`SELECT ` + terminalColumns + ` FROM terminals WHERE id = ?`)
	t, err := scanTerminal(r.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get terminal: %w", err)
	}
	return t, nil
}

func (r *sqlTerminalRepo) GetByTail(ctx context.Context, tail string) (*domain.Terminal, error) {
	query := r.d.rebind(`
		SELECT ` + terminalColumns + `
		FROM terminals
		WHERE id LIKE ?
		ORDER BY registered_at_ms
		LIMIT 1
	`)
	t, err := scanTerminal(r.db.QueryRowContext(ctx, query, "%"+strings.ToLower(tail)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get terminal by tail: %w", err)
	}
	return t, nil
}

func (r *sqlTerminalRepo) Save(ctx context.Context, t *domain.Terminal) error {
	query := r.d.rebind(`
		INSERT INTO terminals (` + terminalColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			label = excluded.label,
			expire_at_ms = excluded.expire_at_ms,
			tier = excluded.tier,
			enabled = excluded.enabled
	`)
	var expireAt sql.NullInt64
	if t.ExpireAt != nil {
		expireAt = sql.NullInt64{Int64: utils.TimeToUnixMilli(*t.ExpireAt), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query,
		t.ID.String(),
		t.Label,
		utils.TimeToUnixMilli(t.RegisteredAt),
		expireAt,
		int(t.Tier),
		t.Enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to save terminal: %w", err)
	}
	return nil
}

func scanTerminal(row rowScanner) (*domain.Terminal, error) {
	var (
		id           string
		t            domain.Terminal
		registeredAt int64
		expireAt     sql.NullInt64
		tier         int
	)
	if err := row.Scan(&id, &t.Label, &registeredAt, &expireAt, &tier, &t.Enabled); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseTerminalID(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt terminal id %q: %w", id, err)
	}
	t.ID = parsed
	t.RegisteredAt = utils.UnixMilliToTime(registeredAt)
	if expireAt.Valid {
		ts := utils.UnixMilliToTime(expireAt.Int64)
		t.ExpireAt = &ts
	}
	t.Tier = domain.Tier(tier)
	return &t, nil
}
