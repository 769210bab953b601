package data_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tradeforge/trading-backend/internal/data"
	"github.com/tradeforge/trading-backend/pkg/types"
)

// stubProvider counts calls and can be switched into a failing state.
type stubProvider struct {
	calls   int
	failing bool
	bars    []types.PricePoint
}

func (p *stubProvider) Quote(ctx context.Context, symbol string) (*types.Quote, error) {
	return &types.Quote{Symbol: symbol}, nil
}

func (p *stubProvider) History(ctx context.Context, symbol, period, interval string) ([]types.PricePoint, error) {
	p.calls++
	if p.failing {
		return nil, errors.New("upstream down")
	}
	return p.bars, nil
}

func (p *stubProvider) OptionChain(ctx context.Context, symbol string) (*types.OptionChain, error) {
	return &types.OptionChain{Symbol: symbol}, nil
}

func TestServiceCachesHistory(t *testing.T) {
	store, err := data.NewStore(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	provider := &stubProvider{bars: dailyBars(10, 22000)}
	service := data.NewService(provider, store, time.Hour, zap.NewNop())

	first, err := service.History(context.Background(), "NIFTY 50", "1mo", "1d")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(first) != 10 {
		t.Fatalf("Expected 10 bars, got %d", len(first))
	}

	// Second call is served from the store.
	if _, err := service.History(context.Background(), "NIFTY 50", "1mo", "1d"); err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if provider.calls != 1 {
		t.Errorf("Expected 1 provider call, got %d", provider.calls)
	}
}

func TestServiceRefreshesStaleHistory(t *testing.T) {
	store, err := data.NewStore(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	provider := &stubProvider{bars: dailyBars(10, 22000)}
	service := data.NewService(provider, store, time.Nanosecond, zap.NewNop())

	if _, err := service.History(context.Background(), "NIFTY 50", "1mo", "1d"); err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if _, err := service.History(context.Background(), "NIFTY 50", "1mo", "1d"); err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if provider.calls != 2 {
		t.Errorf("Stale entry should refetch: %d calls", provider.calls)
	}
}

func TestServiceServesStaleOnFailure(t *testing.T) {
	store, err := data.NewStore(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	provider := &stubProvider{bars: dailyBars(10, 22000)}
	service := data.NewService(provider, store, time.Nanosecond, zap.NewNop())

	if _, err := service.History(context.Background(), "NIFTY 50", "1mo", "1d"); err != nil {
		t.Fatalf("History failed: %v", err)
	}

	provider.failing = true
	stale, err := service.History(context.Background(), "NIFTY 50", "1mo", "1d")
	if err != nil {
		t.Fatalf("Expected stale fallback, got error: %v", err)
	}
	if len(stale) != 10 {
		t.Errorf("Stale fallback returned %d bars", len(stale))
	}

	// With nothing cached the failure surfaces.
	if _, err := service.History(context.Background(), "SENSEX", "1mo", "1d"); err == nil {
		t.Error("Uncached failure should surface")
	}
}

func TestServiceRejectsInvalidProviderData(t *testing.T) {
	store, err := data.NewStore(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	bad := dailyBars(5, 22000)
	bad[2].High = bad[2].Close - 100
	provider := &stubProvider{bars: bad}
	service := data.NewService(provider, store, time.Hour, zap.NewNop())

	if _, err := service.History(context.Background(), "NIFTY 50", "1mo", "1d"); err == nil {
		t.Error("Inconsistent OHLC data should be rejected")
	}
	if store.SeriesCount() != 0 {
		t.Error("Rejected data must not be persisted")
	}
}

func TestServiceRejectsUnknownSymbol(t *testing.T) {
	store, err := data.NewStore(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	service := data.NewService(&stubProvider{}, store, time.Hour, zap.NewNop())

	if _, err := service.History(context.Background(), "NASDAQ", "1mo", "1d"); !errors.Is(err, data.ErrUnknownSymbol) {
		t.Errorf("Expected ErrUnknownSymbol, got %v", err)
	}
}
