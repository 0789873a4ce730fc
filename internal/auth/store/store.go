package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lochiel/hacienda/internal/auth"
)

//go:embed schema.sql
var Schema string

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (*auth.User, error) {
	query := `SELECT id, email, name, password_hash, role, active, created_at FROM users WHERE ` + where

	var (
		u    auth.User
		role string
	)

	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &u.Active, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}

		return nil, fmt.Errorf("getting user: %w", err)
	}

	u.Role = auth.Role(role)

	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.getUser(ctx, "email = $1", email)
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	return s.getUser(ctx, "id = $1", id)
}

func (s *Store) UpsertUser(ctx context.Context, u *auth.User) error {
	query := `
		INSERT INTO users (email, name, password_hash, role, active, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name, password_hash = EXCLUDED.password_hash,
			role = EXCLUDED.role, active = EXCLUDED.active
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query, u.Email, u.Name, u.PasswordHash, u.Role, u.Active).
		Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}

	return nil
}
