// Package strategy_test provides tests for the signal generators.
package strategy_test

import (
	"errors"
	"testing"
	"time"

	"github.com/tradeforge/trading-backend/internal/indicator"
	"github.com/tradeforge/trading-backend/internal/strategy"
	"github.com/tradeforge/trading-backend/pkg/types"
)

// seriesFromCloses builds a daily price series from close values.
func seriesFromCloses(closes []float64) []types.PricePoint {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]types.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = types.PricePoint{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1000,
		}
	}
	return points
}

func smaConfig(short, long int) types.StrategyConfig {
	return types.StrategyConfig{
		StrategyType:    types.StrategySMACrossover,
		Symbol:          "NIFTY 50",
		PositionSizePct: 10,
		InitialCapital:  100000,
		ShortPeriod:     short,
		LongPeriod:      long,
	}
}

func TestSMACrossoverRisingSeriesNeverBuys(t *testing.T) {
	gen, err := strategy.New(smaConfig(2, 4))
	if err != nil {
		t.Fatalf("Failed to build generator: %v", err)
	}

	points := seriesFromCloses([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	sigs := gen.Signals(points)

	if len(sigs) != len(points) {
		t.Fatalf("Signal count mismatch: expected %d, got %d", len(points), len(sigs))
	}

	// The long average is undefined before index 3, so nothing may fire
	// there; and the short average sits above the long one from the first
	// eligible comparison on, so no crossing ever happens.
	for _, sig := range sigs {
		if sig.Index < 3 && sig.Action != types.SignalHold {
			t.Errorf("Signal %s before index 3 (index %d)", sig.Action, sig.Index)
		}
		if sig.Action == types.SignalBuy {
			t.Errorf("Unexpected BUY at index %d on a monotonically rising series", sig.Index)
		}
	}
}

func TestSMACrossoverFiresOncePerCrossing(t *testing.T) {
	gen, err := strategy.New(smaConfig(2, 4))
	if err != nil {
		t.Fatalf("Failed to build generator: %v", err)
	}

	// Falls, recovers, rolls over: one rising cross, one falling cross.
	points := seriesFromCloses([]float64{5, 4, 3, 2, 1, 2, 3, 4, 3, 2, 1})
	sigs := gen.Signals(points)

	var buys, sells []int
	for _, sig := range sigs {
		switch sig.Action {
		case types.SignalBuy:
			buys = append(buys, sig.Index)
		case types.SignalSell:
			sells = append(sells, sig.Index)
		}
	}

	if len(buys) != 1 || buys[0] != 6 {
		t.Errorf("Expected exactly one BUY at index 6, got %v", buys)
	}
	if len(sells) != 1 || sells[0] != 9 {
		t.Errorf("Expected exactly one SELL at index 9, got %v", sells)
	}

	// The short average stays above the long one at index 7 and 8; the
	// crossing must not re-fire there.
	for _, i := range []int{7, 8} {
		if sigs[i].Action != types.SignalHold {
			t.Errorf("Expected HOLD at index %d, got %s", i, sigs[i].Action)
		}
	}
}

func TestRSILevelCrossings(t *testing.T) {
	cfg := types.StrategyConfig{
		StrategyType:    types.StrategyRSI,
		Symbol:          "NIFTY 50",
		PositionSizePct: 10,
		InitialCapital:  100000,
		RSIPeriod:       2,
		Oversold:        40,
		Overbought:      70,
	}
	gen, err := strategy.New(cfg)
	if err != nil {
		t.Fatalf("Failed to build generator: %v", err)
	}

	// Alternating closes swing the 2-period RSI across both bands:
	// 50, 75, 37.5, 68.75, 34.375, 67.1875 from index 2 on.
	points := seriesFromCloses([]float64{1, 2, 1, 2, 1, 2, 1, 2})
	sigs := gen.Signals(points)

	expected := map[int]types.SignalAction{
		0: types.SignalHold,
		1: types.SignalHold,
		2: types.SignalHold, // first defined RSI value, no prior point
		3: types.SignalHold,
		4: types.SignalSell, // 75 -> 37.5 falls through 70
		5: types.SignalBuy,  // 37.5 -> 68.75 rises through 40
		6: types.SignalHold,
		7: types.SignalBuy, // 34.375 -> 67.1875 rises through 40
	}
	for i, want := range expected {
		if sigs[i].Action != want {
			t.Errorf("Signal at index %d incorrect: expected %s, got %s", i, want, sigs[i].Action)
		}
	}
}

func TestMACDCrossoverMatchesIndicator(t *testing.T) {
	cfg := types.StrategyConfig{
		StrategyType:    types.StrategyMACD,
		Symbol:          "NIFTY 50",
		PositionSizePct: 10,
		InitialCapital:  100000,
		FastPeriod:      2,
		SlowPeriod:      4,
		SignalPeriod:    3,
	}
	gen, err := strategy.New(cfg)
	if err != nil {
		t.Fatalf("Failed to build generator: %v", err)
	}

	closes := []float64{10, 8, 11, 7, 12, 6, 13, 9, 8, 12, 7, 11, 6, 10}
	points := seriesFromCloses(closes)
	sigs := gen.Signals(points)

	lines := indicator.MACD(closes, 2, 4, 3)
	for i := 1; i < len(closes); i++ {
		cur, ok1 := lines.MACD.At(i)
		curSig, ok2 := lines.Signal.At(i)
		prev, ok3 := lines.MACD.At(i - 1)
		prevSig, ok4 := lines.Signal.At(i - 1)

		want := types.SignalHold
		if ok1 && ok2 && ok3 && ok4 {
			if prev <= prevSig && cur > curSig {
				want = types.SignalBuy
			} else if prev >= prevSig && cur < curSig {
				want = types.SignalSell
			}
		}
		if sigs[i].Action != want {
			t.Errorf("Signal at index %d incorrect: expected %s, got %s", i, want, sigs[i].Action)
		}
	}

	// The signal line is undefined until slow+signal-2, so nothing may fire
	// through that index.
	for i := 0; i <= 5; i++ {
		if sigs[i].Action != types.SignalHold {
			t.Errorf("Expected HOLD during warmup at index %d, got %s", i, sigs[i].Action)
		}
	}
}

func TestMinBars(t *testing.T) {
	cases := []struct {
		cfg  types.StrategyConfig
		want int
	}{
		{smaConfig(2, 4), 4},
		{types.StrategyConfig{StrategyType: types.StrategyRSI, Symbol: "SENSEX", PositionSizePct: 10, InitialCapital: 1000, RSIPeriod: 14, Oversold: 30, Overbought: 70}, 14},
		{types.StrategyConfig{StrategyType: types.StrategyMACD, Symbol: "SENSEX", PositionSizePct: 10, InitialCapital: 1000, FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9}, 35},
	}
	for _, tc := range cases {
		gen, err := strategy.New(tc.cfg)
		if err != nil {
			t.Fatalf("Failed to build %s generator: %v", tc.cfg.StrategyType, err)
		}
		if got := gen.MinBars(); got != tc.want {
			t.Errorf("MinBars for %s incorrect: expected %d, got %d", tc.cfg.StrategyType, tc.want, got)
		}
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cases := []types.StrategyConfig{
		{StrategyType: "momentum", Symbol: "NIFTY 50", PositionSizePct: 10, InitialCapital: 1000},
		{StrategyType: types.StrategySMACrossover, Symbol: "NIFTY 50", PositionSizePct: 10, InitialCapital: 1000, ShortPeriod: 50, LongPeriod: 10},
		{StrategyType: types.StrategySMACrossover, Symbol: "NIFTY 50", PositionSizePct: 0, InitialCapital: 1000, ShortPeriod: 10, LongPeriod: 50},
		{StrategyType: types.StrategyRSI, Symbol: "NIFTY 50", PositionSizePct: 10, InitialCapital: 1000, RSIPeriod: 14, Oversold: 70, Overbought: 30},
		{StrategyType: types.StrategyMACD, Symbol: "", PositionSizePct: 10, InitialCapital: 1000, FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9},
	}
	for _, cfg := range cases {
		_, err := strategy.New(cfg)
		if err == nil {
			t.Errorf("Expected error for config %+v", cfg)
			continue
		}
		var invalid *types.InvalidConfigError
		if !errors.As(err, &invalid) {
			t.Errorf("Expected InvalidConfigError, got %T: %v", err, err)
		}
	}
}
