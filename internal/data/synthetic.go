package data

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tradeforge/trading-backend/pkg/types"
	"github.com/tradeforge/trading-backend/pkg/utils"
)

const (
	maxSyntheticBars = 5000
	baseIndexVolume  = 250_000_000
)

// Synthetic generates market data offline. Bar values are derived from a
// seed hashed from symbol and interval, so repeated calls produce
// identical series; only the anchor timestamp tracks the clock.
type Synthetic struct {
	logger *zap.Logger

	// Now supplies the clock; replaceable in tests.
	Now func() time.Time
}

// NewSynthetic creates a synthetic market data provider.
func NewSynthetic(logger *zap.Logger) *Synthetic {
	return &Synthetic{
		logger: logger.Named("synthetic"),
		Now:    time.Now,
	}
}

// History generates OHLCV bars covering the period at the given interval.
func (s *Synthetic) History(ctx context.Context, symbol, period, interval string) ([]types.PricePoint, error) {
	info, ok := Lookup(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	periodDur, err := utils.ParsePeriod(period)
	if err != nil {
		return nil, err
	}
	intervalDur, err := utils.ParseInterval(interval)
	if err != nil {
		return nil, err
	}

	n := int(periodDur / intervalDur)
	if n < 2 {
		n = 2
	}
	if n > maxSyntheticBars {
		n = maxSyntheticBars
	}

	anchor := s.Now().UTC().Truncate(intervalDur)
	rng := rand.New(rand.NewSource(seedFor(info.Symbol, interval)))

	points := make([]types.PricePoint, n)
	price := info.BaseLevel * 0.92
	for i := 0; i < n; i++ {
		change := (rng.Float64()*2-1)*0.008 + 0.0004
		open := price
		close := price * (1 + change)

		high := math.Max(open, close) * (1 + rng.Float64()*0.004)
		low := math.Min(open, close) * (1 - rng.Float64()*0.004)
		volume := math.Floor(baseIndexVolume * (0.6 + rng.Float64()*0.8))

		points[i] = types.PricePoint{
			Timestamp: anchor.Add(-time.Duration(n-1-i) * intervalDur),
			Open:      round2(open),
			High:      round2(high),
			Low:       round2(low),
			Close:     round2(close),
			Volume:    volume,
		}
		price = close
	}
	return points, nil
}

// Quote derives a snapshot from the last two daily bars.
func (s *Synthetic) Quote(ctx context.Context, symbol string) (*types.Quote, error) {
	info, ok := Lookup(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	points, err := s.History(ctx, symbol, "5d", "1d")
	if err != nil {
		return nil, err
	}
	last := points[len(points)-1]
	prev := points[len(points)-2]

	return &types.Quote{
		Symbol:        info.Symbol,
		Exchange:      info.Exchange,
		Price:         last.Close,
		Change:        round2(last.Close - prev.Close),
		ChangePercent: round2(utils.PercentChange(prev.Close, last.Close)),
		Open:          last.Open,
		High:          last.High,
		Low:           last.Low,
		PreviousClose: prev.Close,
		Volume:        last.Volume,
		Timestamp:     last.Timestamp,
	}, nil
}

// OptionChain generates a chain of strikes around the current level for
// the next weekly expiry.
func (s *Synthetic) OptionChain(ctx context.Context, symbol string) (*types.OptionChain, error) {
	info, ok := Lookup(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	quote, err := s.Quote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	spot := quote.Price
	atm := math.Round(spot/info.StrikeStep) * info.StrikeStep
	expiry := nextThursday(s.Now().UTC()).Format("2006-01-02")
	rng := rand.New(rand.NewSource(seedFor(info.Symbol, "options")))

	chain := &types.OptionChain{
		Symbol: info.Symbol,
		Expiry: expiry,
		Calls:  make([]types.OptionContract, 0, 11),
		Puts:   make([]types.OptionContract, 0, 11),
	}

	compact := strings.ReplaceAll(info.Symbol, " ", "")
	for offset := -5; offset <= 5; offset++ {
		strike := atm + float64(offset)*info.StrikeStep

		// Time value peaks at the money and decays with distance.
		distance := math.Abs(spot - strike)
		timeValue := spot * 0.009 * info.StrikeStep / (info.StrikeStep + distance)

		callPrice := round2(math.Max(spot-strike, 0) + timeValue)
		putPrice := round2(math.Max(strike-spot, 0) + timeValue)
		iv := round2(12 + rng.Float64()*8)
		spread := round2(0.2 + rng.Float64()*0.6)

		chain.Calls = append(chain.Calls, types.OptionContract{
			ContractSymbol:    fmt.Sprintf("%s-%s-%.0f-CE", compact, expiry, strike),
			Strike:            strike,
			LastPrice:         callPrice,
			Bid:               round2(math.Max(callPrice-spread, 0)),
			Ask:               round2(callPrice + spread),
			Volume:            math.Floor(rng.Float64() * 100000),
			OpenInterest:      math.Floor(rng.Float64() * 2_000_000),
			ImpliedVolatility: iv,
		})
		chain.Puts = append(chain.Puts, types.OptionContract{
			ContractSymbol:    fmt.Sprintf("%s-%s-%.0f-PE", compact, expiry, strike),
			Strike:            strike,
			LastPrice:         putPrice,
			Bid:               round2(math.Max(putPrice-spread, 0)),
			Ask:               round2(putPrice + spread),
			Volume:            math.Floor(rng.Float64() * 100000),
			OpenInterest:      math.Floor(rng.Float64() * 2_000_000),
			ImpliedVolatility: iv,
		})
	}
	return chain, nil
}

func seedFor(symbol, interval string) int64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	h.Write([]byte{'|'})
	h.Write([]byte(interval))
	return int64(h.Sum64())
}

// nextThursday returns the upcoming weekly index expiry date.
func nextThursday(t time.Time) time.Time {
	days := (int(time.Thursday) - int(t.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return t.AddDate(0, 0, days)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
