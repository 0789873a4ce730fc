package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lochiel/hacienda/internal/metrics"
)

var (
	ErrUnavailable  = errors.New("exchange rate source unavailable")
	ErrUnknownHouse = errors.New("unknown exchange house")
)

//go:generate mockgen -source=service.go -destination=service_mock.go -package=exchange

type Provider interface {
	Quotes(ctx context.Context) ([]Quote, error)
	Quote(ctx context.Context, house string) (*Quote, error)
}

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type Service struct {
	provider Provider
	cache    Cache
	house    string
	ttl      time.Duration
}

// NewService returns a quote service. cache may be nil.
func NewService(provider Provider, cache Cache, house string, ttl time.Duration) *Service {
	return &Service{
		provider: provider,
		cache:    cache,
		house:    house,
		ttl:      ttl,
	}
}

func (s *Service) Quotes(ctx context.Context) ([]Quote, error) {
	var quotes []Quote

	err := s.cached(ctx, "all", &quotes, func() (any, error) {
		return s.provider.Quotes(ctx)
	})
	if err != nil {
		return nil, err
	}

	return quotes, nil
}

func (s *Service) Quote(ctx context.Context, house string) (*Quote, error) {
	house = strings.ToLower(strings.TrimSpace(house))

	var q Quote

	err := s.cached(ctx, "house:"+house, &q, func() (any, error) {
		return s.provider.Quote(ctx, house)
	})
	if err != nil {
		return nil, err
	}

	return &q, nil
}

// Suggest is the sell rate of the configured house, offered as the default
// exchange rate when pricing in dollars.
func (s *Service) Suggest(ctx context.Context) (decimal.Decimal, error) {
	q, err := s.Quote(ctx, s.house)
	if err != nil {
		return decimal.Decimal{}, err
	}

	return q.Sell, nil
}

// cached serves key from the cache when present. Otherwise it calls fetch and
// stores the result; cache faults are logged and never fail the lookup.
func (s *Service) cached(ctx context.Context, key string, out any, fetch func() (any, error)) error {
	if s.cache != nil {
		b, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			slog.Warn("exchange cache read failed", "key", key, "error", err)
		}

		if ok && json.Unmarshal(b, out) == nil {
			metrics.ExchangeLookups.WithLabelValues("cache").Inc()
			return nil
		}
	}

	v, err := fetch()
	if err != nil {
		if errors.Is(err, ErrUnknownHouse) {
			return err
		}

		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	metrics.ExchangeLookups.WithLabelValues("api").Inc()

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding quote: %w", err)
	}

	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decoding quote: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, b, s.ttl); err != nil {
			slog.Warn("exchange cache write failed", "key", key, "error", err)
		}
	}

	return nil
}
