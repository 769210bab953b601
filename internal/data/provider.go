package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tradeforge/trading-backend/pkg/types"
)

// ErrUnknownSymbol is returned for symbols outside the index catalog.
var ErrUnknownSymbol = errors.New("unknown symbol")

// Provider supplies quotes, history and option chains for catalog indices.
type Provider interface {
	Quote(ctx context.Context, symbol string) (*types.Quote, error)
	History(ctx context.Context, symbol, period, interval string) ([]types.PricePoint, error)
	OptionChain(ctx context.Context, symbol string) (*types.OptionChain, error)
}

// Service fronts a Provider with a persistent history cache. Quotes and
// option chains pass straight through; history is served from the store
// while fresh and refreshed from the provider otherwise. A provider
// failure falls back to stale cached history when any exists.
type Service struct {
	provider Provider
	store    *Store
	ttl      time.Duration
	logger   *zap.Logger
}

// NewService creates a data service. A zero ttl disables freshness
// checks, so cached history never expires.
func NewService(provider Provider, store *Store, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{
		provider: provider,
		store:    store,
		ttl:      ttl,
		logger:   logger.Named("data"),
	}
}

// Quote returns a real-time snapshot for the symbol.
func (s *Service) Quote(ctx context.Context, symbol string) (*types.Quote, error) {
	return s.provider.Quote(ctx, symbol)
}

// OptionChain returns the option chain for the symbol's nearest expiry.
func (s *Service) OptionChain(ctx context.Context, symbol string) (*types.OptionChain, error) {
	return s.provider.OptionChain(ctx, symbol)
}

// History returns OHLCV bars for the symbol covering the requested period
// at the requested interval, ascending with no duplicate timestamps.
func (s *Service) History(ctx context.Context, symbol, period, interval string) ([]types.PricePoint, error) {
	info, ok := Lookup(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	// Cache under the canonical symbol so "nifty 50" and "NIFTY 50" share
	// one series.
	symbol = info.Symbol

	cached, meta, ok := s.store.History(symbol, period, interval)
	if ok && s.fresh(meta) {
		return cached, nil
	}

	points, err := s.provider.History(ctx, symbol, period, interval)
	if err == nil {
		points = Normalize(points)
		err = ValidateSeries(points)
	}
	if err != nil {
		if ok {
			s.logger.Warn("Serving stale history after provider failure",
				zap.String("symbol", symbol),
				zap.Time("fetchedAt", meta.FetchedAt),
				zap.Error(err))
			return cached, nil
		}
		return nil, err
	}

	if err := s.store.SaveHistory(symbol, period, interval, points); err != nil {
		s.logger.Warn("Failed to persist history", zap.String("symbol", symbol), zap.Error(err))
	}
	return points, nil
}

func (s *Service) fresh(meta *HistoryMeta) bool {
	if s.ttl <= 0 {
		return true
	}
	return time.Since(meta.FetchedAt) < s.ttl
}

// Store exposes the underlying history store.
func (s *Service) Store() *Store {
	return s.store
}
