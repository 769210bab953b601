package backtester

import (
	"go.uber.org/zap"

	"github.com/tradeforge/trading-backend/internal/strategy"
	"github.com/tradeforge/trading-backend/pkg/types"
)

// Engine is the backtest orchestrator: it wires signal generation, position
// simulation and performance aggregation together and is the sole entry
// point callers use. A run is a pure function of its inputs; the engine
// itself holds no per-run state, so one Engine serves concurrent runs
// without locking.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates a new backtest engine.
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{logger: logger.Named("backtester")}
}

// Run executes one backtest of cfg over points. The series must be ordered
// ascending by timestamp with no duplicates; the data layer guarantees this
// before the engine is invoked.
//
// Run fails with *types.InvalidConfigError when the config violates its
// constraints and with *InsufficientDataError when the series is shorter
// than the strategy's minimum lookback. No partial result is ever returned:
// on error the result is nil, and identical inputs always produce identical
// results.
func (e *Engine) Run(points []types.PricePoint, cfg types.StrategyConfig) (*types.BacktestResult, error) {
	gen, err := strategy.New(cfg)
	if err != nil {
		return nil, err
	}
	if len(points) < gen.MinBars() {
		return nil, &InsufficientDataError{
			Symbol:   cfg.Symbol,
			Required: gen.MinBars(),
			Got:      len(points),
		}
	}

	signals := gen.Signals(points)
	sim := newSimulator(cfg.Symbol, cfg.InitialCapital, cfg.PositionSizePct)
	trades := sim.run(signals, points)
	result := CalculateResult(cfg.Symbol, cfg.StrategyType, cfg.InitialCapital, trades)

	e.logger.Debug("Backtest complete",
		zap.String("symbol", cfg.Symbol),
		zap.String("strategy", gen.Name()),
		zap.Int("bars", len(points)),
		zap.Int("trades", result.TotalTrades),
		zap.Float64("totalPnL", result.TotalPnL))

	return result, nil
}
