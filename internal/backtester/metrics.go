// Package backtester runs strategy backtests: signal generation, position
// simulation and performance aggregation over a historical price series.
package backtester

import (
	"math"

	"github.com/tradeforge/trading-backend/pkg/types"
)

// CalculateResult reduces a closed-trade ledger into summary statistics. The
// result is derived entirely from the ledger and the initial capital, so
// finalCapital equals initialCapital plus the summed PnL by construction.
func CalculateResult(symbol string, strategyType types.StrategyType, initialCapital float64, trades []types.Trade) *types.BacktestResult {
	var totalPnL, grossProfit, grossLoss float64
	var winning, losing int

	for _, trade := range trades {
		totalPnL += trade.PnL
		switch {
		case trade.PnL > 0:
			winning++
			grossProfit += trade.PnL
		case trade.PnL < 0:
			losing++
			grossLoss += -trade.PnL
		}
	}

	result := &types.BacktestResult{
		Symbol:         symbol,
		StrategyType:   string(strategyType),
		InitialCapital: initialCapital,
		FinalCapital:   initialCapital + totalPnL,
		TotalPnL:       totalPnL,
		TotalTrades:    len(trades),
		WinningTrades:  winning,
		LosingTrades:   losing,
		Trades:         trades,
	}
	if result.Trades == nil {
		result.Trades = []types.Trade{}
	}

	if len(trades) > 0 {
		result.WinRate = float64(winning) / float64(len(trades)) * 100
	}
	if winning > 0 {
		result.AvgWin = grossProfit / float64(winning)
	}
	if losing > 0 {
		// Average loss keeps its sign, matching the ledger.
		result.AvgLoss = -grossLoss / float64(losing)
	}

	switch {
	case len(trades) == 0:
		result.ProfitFactor = 0
	case grossLoss == 0 && grossProfit > 0:
		result.ProfitFactor = math.Inf(1)
	case grossLoss == 0:
		result.ProfitFactor = 0
	default:
		result.ProfitFactor = grossProfit / grossLoss
	}

	return result
}
