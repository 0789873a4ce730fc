package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lochiel/hacienda/internal/matching"
)

//go:embed schema.sql
var Schema string

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// FindClient picks the longest pattern contained in the raw holder, newest
// first on ties.
func (s *Store) FindClient(ctx context.Context, rawHolder string) (string, error) {
	query := `
		SELECT client
		FROM client_mappings
		WHERE $1 ILIKE '%' || pattern || '%'
		ORDER BY LENGTH(pattern) DESC, created_at DESC
		LIMIT 1
	`

	var client string

	err := s.db.QueryRowContext(ctx, query, rawHolder).Scan(&client)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}

		return "", fmt.Errorf("finding client: %w", err)
	}

	return client, nil
}

func (s *Store) SaveMapping(ctx context.Context, m *matching.Mapping) error {
	query := `
		INSERT INTO client_mappings (pattern, client, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (pattern) DO UPDATE SET client = EXCLUDED.client
		RETURNING id, created_at
	`

	if err := s.db.QueryRowContext(ctx, query, m.Pattern, m.Client).Scan(&m.ID, &m.CreatedAt); err != nil {
		return fmt.Errorf("saving mapping: %w", err)
	}

	return nil
}

func (s *Store) ListMappings(ctx context.Context) ([]*matching.Mapping, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, pattern, client, created_at FROM client_mappings ORDER BY client, pattern`)
	if err != nil {
		return nil, fmt.Errorf("listing mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*matching.Mapping

	for rows.Next() {
		var m matching.Mapping
		if err := rows.Scan(&m.ID, &m.Pattern, &m.Client, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning mapping: %w", err)
		}

		mappings = append(mappings, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mapping rows: %w", err)
	}

	return mappings, nil
}

func (s *Store) DeleteMapping(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM client_mappings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting mapping: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}

	if n == 0 {
		return matching.ErrNotFound
	}

	return nil
}
