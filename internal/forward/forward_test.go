package forward_test

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tradeforge/trading-backend/internal/forward"
	"github.com/tradeforge/trading-backend/internal/strategy"
	"github.com/tradeforge/trading-backend/pkg/types"
)

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

func smaConfig() types.StrategyConfig {
	return types.StrategyConfig{
		StrategyType:    types.StrategySMACrossover,
		Symbol:          "NIFTY 50",
		PositionSizePct: 10,
		InitialCapital:  100000,
		ShortPeriod:     2,
		LongPeriod:      4,
	}
}

func TestTesterMatchesBatchSignals(t *testing.T) {
	cfg := smaConfig()
	points := seriesFromCloses([]float64{5, 4, 3, 2, 1, 2, 3, 4, 3, 2, 1, 2, 3, 4, 5})

	generator, err := strategy.New(cfg)
	if err != nil {
		t.Fatalf("Failed to build generator: %v", err)
	}
	batch := generator.Signals(points)

	warmup := 4
	tester, err := forward.NewTester(cfg, points[:warmup], zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to build tester: %v", err)
	}

	for i := warmup; i < len(points); i++ {
		live, err := tester.Append(points[i])
		if err != nil {
			t.Fatalf("Append failed at bar %d: %v", i, err)
		}
		if live.Action != batch[i].Action {
			t.Errorf("Signal mismatch at bar %d: live %s, batch %s", i, live.Action, batch[i].Action)
		}
		if live.Index != i {
			t.Errorf("Signal index incorrect at bar %d: got %d", i, live.Index)
		}
		if !live.Timestamp.Equal(points[i].Timestamp) {
			t.Errorf("Signal timestamp incorrect at bar %d", i)
		}
	}

	if tester.Len() != len(points) {
		t.Errorf("Expected %d bars held, got %d", len(points), tester.Len())
	}
}

func TestTesterRejectsOutOfOrderBars(t *testing.T) {
	points := seriesFromCloses([]float64{1, 2, 3, 4, 5})
	tester, err := forward.NewTester(smaConfig(), points, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to build tester: %v", err)
	}

	// Duplicate timestamp.
	if _, err := tester.Append(points[len(points)-1]); err == nil {
		t.Error("Expected error for duplicate timestamp")
	}
	// Earlier timestamp.
	if _, err := tester.Append(points[0]); err == nil {
		t.Error("Expected error for stale timestamp")
	}
	if tester.Len() != len(points) {
		t.Errorf("Rejected bars must not mutate the series: len %d", tester.Len())
	}
}

func TestTesterWarmupThreshold(t *testing.T) {
	points := seriesFromCloses([]float64{1, 2, 3, 4, 5, 6})
	tester, err := forward.NewTester(smaConfig(), points[:2], zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to build tester: %v", err)
	}

	if tester.Warm() {
		t.Error("Tester should not be warm with 2 of 4 required bars")
	}
	if _, err := tester.Append(points[2]); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if tester.Warm() {
		t.Error("Tester should not be warm with 3 of 4 required bars")
	}
	if _, err := tester.Append(points[3]); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if !tester.Warm() {
		t.Error("Tester should be warm once the lookback is satisfied")
	}
}

func TestTesterLatest(t *testing.T) {
	tester, err := forward.NewTester(smaConfig(), nil, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to build tester: %v", err)
	}

	if _, ok := tester.Latest(); ok {
		t.Error("Empty tester should report no latest signal")
	}

	points := seriesFromCloses([]float64{1})
	if _, err := tester.Append(points[0]); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	signal, ok := tester.Latest()
	if !ok {
		t.Fatal("Expected a latest signal after one bar")
	}
	if signal.Action != types.SignalHold {
		t.Errorf("First bar must hold, got %s", signal.Action)
	}
}

func TestNewTesterRejectsBadInput(t *testing.T) {
	cfg := smaConfig()
	cfg.ShortPeriod = 9
	cfg.LongPeriod = 3
	if _, err := forward.NewTester(cfg, nil, zap.NewNop()); err == nil {
		t.Error("Expected error for invalid config")
	}

	points := seriesFromCloses([]float64{1, 2, 3})
	unordered := []types.PricePoint{points[0], points[2], points[1]}
	if _, err := forward.NewTester(smaConfig(), unordered, zap.NewNop()); err == nil {
		t.Error("Expected error for unordered warmup history")
	}
}
