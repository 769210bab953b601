package backtester

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tradeforge/trading-backend/internal/workers"
	"github.com/tradeforge/trading-backend/pkg/types"
)

// BatchEntry is the outcome of one strategy in a batch run. Exactly one of
// Result and Error is set.
type BatchEntry struct {
	ID     string                `json:"id"`
	Config types.StrategyConfig  `json:"config"`
	Result *types.BacktestResult `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

// BatchRunner executes several backtests over the same price series in
// parallel on a worker pool. Runs never share state, so entries complete in
// any order; the returned slice preserves input order.
type BatchRunner struct {
	engine *Engine
	pool   *workers.Pool
	logger *zap.Logger
}

// NewBatchRunner creates a batch runner on top of engine and pool.
func NewBatchRunner(engine *Engine, pool *workers.Pool, logger *zap.Logger) *BatchRunner {
	return &BatchRunner{
		engine: engine,
		pool:   pool,
		logger: logger.Named("batch"),
	}
}

// RunAll backtests every config over points and blocks until all entries
// are complete.
func (b *BatchRunner) RunAll(points []types.PricePoint, configs []types.StrategyConfig) []BatchEntry {
	entries := make([]BatchEntry, len(configs))
	var wg sync.WaitGroup

	for i, cfg := range configs {
		i, cfg := i, cfg
		entries[i].ID = uuid.NewString()
		entries[i].Config = cfg

		wg.Add(1)
		submitErr := b.pool.SubmitFunc(func() error {
			defer wg.Done()
			result, err := b.engine.Run(points, cfg)
			if err != nil {
				entries[i].Error = err.Error()
				return err
			}
			entries[i].Result = result
			return nil
		})
		if submitErr != nil {
			// Queue full or pool stopped; run inline so the entry still
			// completes.
			wg.Done()
			result, err := b.engine.Run(points, cfg)
			if err != nil {
				entries[i].Error = err.Error()
			} else {
				entries[i].Result = result
			}
		}
	}
	wg.Wait()

	b.logger.Debug("Batch complete", zap.Int("strategies", len(configs)))
	return entries
}
