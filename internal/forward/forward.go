// Package forward replays a strategy against a growing live price series.
//
// A Tester owns an append-only copy of the series. Every appended bar
// re-invokes the signal generator over the full history, so the signal
// emitted for the newest bar is identical to what a batch backtest over
// the same series would produce at that index.
package forward

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tradeforge/trading-backend/internal/strategy"
	"github.com/tradeforge/trading-backend/pkg/types"
)

// Tester evaluates a strategy incrementally as new bars arrive.
// All methods are safe for concurrent use.
type Tester struct {
	mu        sync.Mutex
	generator strategy.Generator
	cfg       types.StrategyConfig
	points    []types.PricePoint
	latest    types.Signal
	hasSignal bool
	logger    *zap.Logger
}

// NewTester validates the config and seeds the tester with warmup history.
// Warmup bars must carry strictly increasing timestamps.
func NewTester(cfg types.StrategyConfig, warmup []types.PricePoint, logger *zap.Logger) (*Tester, error) {
	generator, err := strategy.New(cfg)
	if err != nil {
		return nil, err
	}

	for i := 1; i < len(warmup); i++ {
		if !warmup[i].Timestamp.After(warmup[i-1].Timestamp) {
			return nil, fmt.Errorf("warmup bar %d out of order: %s does not follow %s",
				i, warmup[i].Timestamp, warmup[i-1].Timestamp)
		}
	}

	t := &Tester{
		generator: generator,
		cfg:       cfg,
		points:    make([]types.PricePoint, len(warmup)),
		logger:    logger.Named("forward"),
	}
	copy(t.points, warmup)

	if len(t.points) > 0 {
		signals := generator.Signals(t.points)
		t.latest = signals[len(signals)-1]
		t.hasSignal = true
	}
	return t, nil
}

// Append adds one bar and returns the signal for it. The bar's timestamp
// must strictly follow the last held bar; stale or duplicate bars are
// rejected without mutating the series.
func (t *Tester) Append(point types.PricePoint) (types.Signal, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.points); n > 0 && !point.Timestamp.After(t.points[n-1].Timestamp) {
		return types.Signal{}, fmt.Errorf("bar out of order: %s does not follow %s",
			point.Timestamp, t.points[n-1].Timestamp)
	}

	t.points = append(t.points, point)
	signals := t.generator.Signals(t.points)
	t.latest = signals[len(signals)-1]
	t.hasSignal = true

	if t.latest.Action != types.SignalHold {
		t.logger.Info("Signal fired",
			zap.String("symbol", t.cfg.Symbol),
			zap.String("strategy", string(t.cfg.StrategyType)),
			zap.String("action", string(t.latest.Action)),
			zap.Float64("price", t.latest.Price),
			zap.Time("timestamp", t.latest.Timestamp))
	}
	return t.latest, nil
}

// Latest returns the signal for the most recent bar, if any bar exists.
func (t *Tester) Latest() (types.Signal, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest, t.hasSignal
}

// Len returns the number of bars held.
func (t *Tester) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.points)
}

// Warm reports whether enough bars have accumulated for the strategy's
// full lookback.
func (t *Tester) Warm() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.points) >= t.generator.MinBars()
}

// History returns a copy of the held series.
func (t *Tester) History() []types.PricePoint {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]types.PricePoint, len(t.points))
	copy(out, t.points)
	return out
}

// Config returns the strategy config the tester was built with.
func (t *Tester) Config() types.StrategyConfig {
	return t.cfg
}
