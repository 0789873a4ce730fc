package matching

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("mapping not found")
	ErrEmptyPattern = errors.New("pattern and client are required")
)

// Mapping ties a fragment of a raw holder name, as it appears on a DUT, to the
// client name the office uses.
type Mapping struct {
	ID        uuid.UUID
	Pattern   string
	Client    string
	CreatedAt time.Time
}

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=matching

type Repository interface {
	FindClient(ctx context.Context, rawHolder string) (string, error)
	SaveMapping(ctx context.Context, mapping *Mapping) error
	ListMappings(ctx context.Context) ([]*Mapping, error)
	DeleteMapping(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Resolve returns the client name for a raw holder, or the raw holder itself
// when nothing matches.
func (s *Service) Resolve(ctx context.Context, rawHolder string) (string, error) {
	rawHolder = strings.TrimSpace(rawHolder)
	if rawHolder == "" {
		return "", nil
	}

	client, err := s.repo.FindClient(ctx, rawHolder)
	if err != nil {
		return "", err
	}

	if client == "" {
		return rawHolder, nil
	}

	slog.Debug("holder mapped", "raw", rawHolder, "client", client)

	return client, nil
}

// Learn stores a mapping. Saving a pattern again replaces its client.
func (s *Service) Learn(ctx context.Context, pattern, client string) (*Mapping, error) {
	m := &Mapping{
		Pattern: strings.TrimSpace(pattern),
		Client:  strings.TrimSpace(client),
	}

	if m.Pattern == "" || m.Client == "" {
		return nil, ErrEmptyPattern
	}

	if err := s.repo.SaveMapping(ctx, m); err != nil {
		return nil, err
	}

	return m, nil
}

func (s *Service) List(ctx context.Context) ([]*Mapping, error) {
	return s.repo.ListMappings(ctx)
}

func (s *Service) Forget(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteMapping(ctx, id)
}
