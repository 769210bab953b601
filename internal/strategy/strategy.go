// Package strategy converts indicator outputs into per-period trading
// signals. Each supported strategy type is a separate Generator variant
// closing over its own validated parameters. All variants share the edge
// crossing rule: a signal fires at the index where one line moves across
// another, never repeatedly while it stays on one side.
package strategy

import (
	"github.com/tradeforge/trading-backend/internal/indicator"
	"github.com/tradeforge/trading-backend/pkg/types"
)

// Generator produces the signal stream for one strategy over a price series.
type Generator interface {
	// Name returns the strategy type string.
	Name() string

	// MinBars returns the minimum series length the strategy requires.
	MinBars() int

	// Signals returns exactly one signal per input index. Indices where the
	// required indicators are not yet defined, and the first index where
	// they are (no prior point to compare against), carry HOLD.
	Signals(points []types.PricePoint) []types.Signal
}

// New validates cfg and returns the Generator for its strategy type.
func New(cfg types.StrategyConfig) (Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.StrategyType {
	case types.StrategySMACrossover:
		return &smaCrossover{short: cfg.ShortPeriod, long: cfg.LongPeriod}, nil
	case types.StrategyRSI:
		return &rsiLevels{period: cfg.RSIPeriod, oversold: cfg.Oversold, overbought: cfg.Overbought}, nil
	default:
		return &macdCross{fast: cfg.FastPeriod, slow: cfg.SlowPeriod, signal: cfg.SignalPeriod}, nil
	}
}

// closes extracts the close column from a price series.
func closes(points []types.PricePoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Close
	}
	return out
}

// holdSignals returns one HOLD signal per point; generators overwrite the
// action at crossing indices.
func holdSignals(points []types.PricePoint) []types.Signal {
	out := make([]types.Signal, len(points))
	for i, p := range points {
		out[i] = types.Signal{
			Index:     i,
			Timestamp: p.Timestamp,
			Price:     p.Close,
			Action:    types.SignalHold,
		}
	}
	return out
}

// smaCrossover signals on the short moving average crossing the long one.
type smaCrossover struct {
	short int
	long  int
}

func (s *smaCrossover) Name() string { return string(types.StrategySMACrossover) }

func (s *smaCrossover) MinBars() int { return s.long }

func (s *smaCrossover) Signals(points []types.PricePoint) []types.Signal {
	sigs := holdSignals(points)
	series := closes(points)
	shortMA := indicator.SMA(series, s.short)
	longMA := indicator.SMA(series, s.long)

	for i := 1; i < len(points); i++ {
		curShort, ok1 := shortMA.At(i)
		curLong, ok2 := longMA.At(i)
		prevShort, ok3 := shortMA.At(i - 1)
		prevLong, ok4 := longMA.At(i - 1)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}
		crossedUp := prevShort <= prevLong && curShort > curLong
		crossedDown := prevShort >= prevLong && curShort < curLong
		switch {
		case crossedUp:
			sigs[i].Action = types.SignalBuy
		case crossedDown:
			sigs[i].Action = types.SignalSell
		}
	}
	return sigs
}

// rsiLevels signals on RSI crossing out of its oversold and overbought
// bands.
type rsiLevels struct {
	period     int
	oversold   float64
	overbought float64
}

func (r *rsiLevels) Name() string { return string(types.StrategyRSI) }

func (r *rsiLevels) MinBars() int { return r.period }

func (r *rsiLevels) Signals(points []types.PricePoint) []types.Signal {
	sigs := holdSignals(points)
	rsi := indicator.RSI(closes(points), r.period)

	for i := 1; i < len(points); i++ {
		cur, ok1 := rsi.At(i)
		prev, ok2 := rsi.At(i - 1)
		if !ok1 || !ok2 {
			continue
		}
		crossedUp := prev <= r.oversold && cur > r.oversold
		crossedDown := prev >= r.overbought && cur < r.overbought
		switch {
		case crossedUp:
			sigs[i].Action = types.SignalBuy
		case crossedDown:
			sigs[i].Action = types.SignalSell
		}
	}
	return sigs
}

// macdCross signals on the MACD line crossing its signal line.
type macdCross struct {
	fast   int
	slow   int
	signal int
}

func (m *macdCross) Name() string { return string(types.StrategyMACD) }

func (m *macdCross) MinBars() int { return m.slow + m.signal }

func (m *macdCross) Signals(points []types.PricePoint) []types.Signal {
	sigs := holdSignals(points)
	lines := indicator.MACD(closes(points), m.fast, m.slow, m.signal)

	for i := 1; i < len(points); i++ {
		curMACD, ok1 := lines.MACD.At(i)
		curSignal, ok2 := lines.Signal.At(i)
		prevMACD, ok3 := lines.MACD.At(i - 1)
		prevSignal, ok4 := lines.Signal.At(i - 1)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}
		crossedUp := prevMACD <= prevSignal && curMACD > curSignal
		crossedDown := prevMACD >= prevSignal && curMACD < curSignal
		switch {
		case crossedUp:
			sigs[i].Action = types.SignalBuy
		case crossedDown:
			sigs[i].Action = types.SignalSell
		}
	}
	return sigs
}
