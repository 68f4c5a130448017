package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/utils"
)

// ===========================================================================
// sqlRuleRepo
// ===========================================================================

type sqlRuleRepo struct {
	db *sql.DB
	d  dialect
}

func (r *sqlRuleRepo) Get(ctx context.Context, id domain.TerminalID) (*domain.ComplexRule, error) {
	var exists int
	err := r.db.QueryRowContext(ctx,
		r.d.rebind(`SELECT 1 FROM rule_chains WHERE terminal_id = ?`), id.String(),
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule chain: %w", err)
	}

	query := r.d.rebind(`
		SELECT kind, field, value, operator
		FROM rules
		WHERE terminal_id = ?
		ORDER BY position
	`)
	rows, err := r.db.QueryContext(ctx, query, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var specs []domain.RuleSpec
	for rows.Next() {
		var (
			kind, field, value string
			operator           int
		)
		if err := rows.Scan(&kind, &field, &value, &operator); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		v, err := domain.DecodeValue(value)
		if err != nil {
			return nil, fmt.Errorf("corrupt rule value: %w", err)
		}
		specs = append(specs, domain.RuleSpec{
			Kind:     domain.RuleKind(kind),
			Field:    field,
			Value:    v,
			Operator: domain.Operator(operator),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}

	chain, err := domain.BuildRuleChain(id, specs)
	if err != nil {
		return nil, fmt.Errorf("stored rule chain is invalid: %w", err)
	}
	return chain, nil
}

// Save reemplaza la cadena completa en una transacción.
func (r *sqlRuleRepo) Save(ctx context.Context, id domain.TerminalID, chain *domain.ComplexRule) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, r.d.rebind(`
		INSERT INTO rule_chains (terminal_id, updated_at_ms)
		VALUES (?, ?)
		ON CONFLICT (terminal_id) DO UPDATE SET
			updated_at_ms = excluded.updated_at_ms
	`), id.String(), utils.NowUnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save rule chain: %w", err)
	}

	if _, err := tx.ExecContext(ctx, r.d.rebind(`DELETE FROM rules WHERE terminal_id = ?`), id.String()); err != nil {
		return fmt.Errorf("failed to clear rules: %w", err)
	}

	insert := r.d.rebind(`
		INSERT INTO rules (terminal_id, position, kind, field, value, operator)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if chain != nil {
		for i, spec := range chain.Specs() {
			_, err := tx.ExecContext(ctx, insert,
				id.String(),
				i,
				string(spec.Kind),
				spec.Field,
				domain.EncodeValue(spec.Value),
				int(spec.Operator),
			)
			if err != nil {
				return fmt.Errorf("failed to insert rule #%d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rule chain: %w", err)
	}
	return nil
}
