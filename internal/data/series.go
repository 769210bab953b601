package data

import (
	"fmt"
	"sort"

	"github.com/tradeforge/trading-backend/pkg/types"
)

// Normalize sorts bars ascending by timestamp and drops duplicate
// timestamps, keeping the later entry. The input is not mutated.
func Normalize(points []types.PricePoint) []types.PricePoint {
	if len(points) == 0 {
		return []types.PricePoint{}
	}

	sorted := make([]types.PricePoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := sorted[:1]
	for _, p := range sorted[1:] {
		if p.Timestamp.Equal(out[len(out)-1].Timestamp) {
			out[len(out)-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

// ValidateSeries checks the ordering and OHLC consistency a price series
// must satisfy before it can drive a backtest.
func ValidateSeries(points []types.PricePoint) error {
	for i, p := range points {
		if i > 0 {
			prev := points[i-1].Timestamp
			if p.Timestamp.Equal(prev) {
				return fmt.Errorf("bar %d: duplicate timestamp %s", i, p.Timestamp)
			}
			if p.Timestamp.Before(prev) {
				return fmt.Errorf("bar %d: timestamp %s out of order", i, p.Timestamp)
			}
		}
		if p.High < p.Open || p.High < p.Close {
			return fmt.Errorf("bar %d: high %v below open/close", i, p.High)
		}
		if p.Low > p.Open || p.Low > p.Close {
			return fmt.Errorf("bar %d: low %v above open/close", i, p.Low)
		}
		if p.Low > p.High {
			return fmt.Errorf("bar %d: low %v above high %v", i, p.Low, p.High)
		}
		if p.Volume < 0 {
			return fmt.Errorf("bar %d: negative volume %v", i, p.Volume)
		}
	}
	return nil
}
