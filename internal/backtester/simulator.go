package backtester

import (
	"math"
	"time"

	"github.com/tradeforge/trading-backend/pkg/types"
)

// positionState tracks whether the simulator currently holds a position.
type positionState int

const (
	stateFlat positionState = iota
	stateLong
)

// simulator is the two-state machine that turns a signal stream into a trade
// ledger. It owns at most one open position at any simulated instant and
// processes signals strictly in chronological order.
type simulator struct {
	symbol  string
	sizePct float64
	capital float64
	state   positionState
	open    *types.Position
	trades  []types.Trade
}

func newSimulator(symbol string, initialCapital, sizePct float64) *simulator {
	return &simulator{
		symbol:  symbol,
		sizePct: sizePct,
		capital: initialCapital,
		state:   stateFlat,
		trades:  []types.Trade{},
	}
}

// run consumes the whole signal stream and returns the closed-trade ledger.
// Any position still open after the last signal is force-closed at the final
// period's close, so the ledger always reflects all capital deployed.
func (s *simulator) run(signals []types.Signal, points []types.PricePoint) []types.Trade {
	last := len(points) - 1
	for _, sig := range signals {
		if s.state == stateFlat && sig.Index == last {
			// An entry on the final period would have to close in the same
			// instant; exits must strictly follow entries, so no position
			// opens here.
			continue
		}
		s.process(sig)
	}
	if last >= 0 {
		s.finish(points[last])
	}
	return s.trades
}

// process applies a single signal to the state machine. BUY opens a position
// only in FLAT, SELL closes only in LONG; every other combination is a
// no-op. There is no pyramiding and no reversal on an opposing signal.
func (s *simulator) process(sig types.Signal) {
	switch s.state {
	case stateFlat:
		if sig.Action != types.SignalBuy {
			return
		}
		quantity := int64(math.Floor(s.capital * s.sizePct / 100 / sig.Price))
		if quantity <= 0 {
			// Not enough capital for a single unit; the signal is ignored.
			return
		}
		s.open = &types.Position{
			Symbol:         s.symbol,
			Side:           types.PositionSideLong,
			EntryTimestamp: sig.Timestamp,
			EntryPrice:     sig.Price,
			Quantity:       quantity,
		}
		s.state = stateLong
	case stateLong:
		if sig.Action != types.SignalSell {
			return
		}
		s.closePosition(sig.Timestamp, sig.Price)
	}
}

// finish force-closes an open position at the final period's close.
func (s *simulator) finish(last types.PricePoint) {
	if s.state == stateLong {
		s.closePosition(last.Timestamp, last.Close)
	}
}

func (s *simulator) closePosition(exitTime time.Time, exitPrice float64) {
	pos := s.open
	pnl := (exitPrice - pos.EntryPrice) * float64(pos.Quantity)
	s.capital += pnl
	s.trades = append(s.trades, types.Trade{
		Symbol:         s.symbol,
		EntryTimestamp: pos.EntryTimestamp,
		EntryPrice:     pos.EntryPrice,
		ExitTimestamp:  exitTime,
		ExitPrice:      exitPrice,
		Quantity:       pos.Quantity,
		PnL:            pnl,
		PnLPct:         (exitPrice/pos.EntryPrice - 1) * 100,
	})
	s.open = nil
	s.state = stateFlat
}
