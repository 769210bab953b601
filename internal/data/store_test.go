// Package data_test provides tests for the data store.
package data_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tradeforge/trading-backend/internal/data"
	"github.com/tradeforge/trading-backend/pkg/types"
)

func dailyBars(n int, firstClose float64) []types.PricePoint {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]types.PricePoint, n)
	for i := 0; i < n; i++ {
		c := firstClose + float64(i)
		points[i] = types.PricePoint{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c - 0.5,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
		}
	}
	return points
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := data.NewStore(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if _, _, ok := store.History("NIFTY 50", "1mo", "1d"); ok {
		t.Fatal("Empty store should miss")
	}

	bars := dailyBars(5, 22000)
	if err := store.SaveHistory("NIFTY 50", "1mo", "1d", bars); err != nil {
		t.Fatalf("Failed to save history: %v", err)
	}

	loaded, meta, ok := store.History("NIFTY 50", "1mo", "1d")
	if !ok {
		t.Fatal("Saved history not found")
	}
	if len(loaded) != len(bars) {
		t.Fatalf("Loaded %d bars, expected %d", len(loaded), len(bars))
	}
	if loaded[4].Close != bars[4].Close {
		t.Errorf("Bar value mismatch: %v vs %v", loaded[4].Close, bars[4].Close)
	}
	if meta.BarCount != 5 || !meta.StartDate.Equal(bars[0].Timestamp) || !meta.EndDate.Equal(bars[4].Timestamp) {
		t.Errorf("Metadata incorrect: %+v", meta)
	}
	if meta.FetchedAt.IsZero() {
		t.Error("FetchedAt should be set on save")
	}
}

func TestStoreKeysAreScoped(t *testing.T) {
	store, err := data.NewStore(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store.SaveHistory("NIFTY 50", "1mo", "1d", dailyBars(3, 100)); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	if err := store.SaveHistory("NIFTY 50", "1mo", "1h", dailyBars(4, 100)); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	// Different interval must not collide.
	daily, _, _ := store.History("NIFTY 50", "1mo", "1d")
	hourly, _, _ := store.History("NIFTY 50", "1mo", "1h")
	if len(daily) != 3 || len(hourly) != 4 {
		t.Errorf("Series collided: %d daily, %d hourly", len(daily), len(hourly))
	}

	if keys := store.Keys(); len(keys) != 2 {
		t.Errorf("Expected 2 keys, got %v", keys)
	}
	if store.SeriesCount() != 2 {
		t.Errorf("Expected 2 series, got %d", store.SeriesCount())
	}

	// Clearing the cache must not lose data; History reloads from disk.
	store.ClearCache()
	if store.CacheSize() != 0 {
		t.Errorf("Cache not empty after clear: %d", store.CacheSize())
	}
	reloaded, _, ok := store.History("NIFTY 50", "1mo", "1d")
	if !ok || len(reloaded) != 3 {
		t.Errorf("History lost after cache clear: ok=%v len=%d", ok, len(reloaded))
	}
}

func TestStorePersistence(t *testing.T) {
	dir := t.TempDir()
	bars := dailyBars(7, 48000)

	store1, err := data.NewStore(zap.NewNop(), dir)
	if err != nil {
		t.Fatalf("Failed to create store 1: %v", err)
	}
	if err := store1.SaveHistory("NIFTY BANK", "6mo", "1d", bars); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	// A fresh store over the same directory sees everything.
	store2, err := data.NewStore(zap.NewNop(), dir)
	if err != nil {
		t.Fatalf("Failed to create store 2: %v", err)
	}
	loaded, meta, ok := store2.History("NIFTY BANK", "6mo", "1d")
	if !ok {
		t.Fatal("Persisted history not found by fresh store")
	}
	if len(loaded) != 7 {
		t.Errorf("Expected 7 bars, got %d", len(loaded))
	}
	if meta.FetchedAt.IsZero() {
		t.Error("FetchedAt should survive reload")
	}
}

func TestStoreDiscardsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	store, err := data.NewStore(zap.NewNop(), dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "SENSEX_1y_1d.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("Failed to plant corrupt file: %v", err)
	}

	if _, _, ok := store.History("SENSEX", "1y", "1d"); ok {
		t.Error("Corrupt file should be treated as a miss")
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	store, err := data.NewStore(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	done := make(chan bool)
	for i := 0; i < 4; i++ {
		go func() {
			for j := 0; j < 50; j++ {
				store.History("NIFTY 50", "1mo", "1d")
				store.CacheSize()
			}
			done <- true
		}()
	}
	for i := 0; i < 2; i++ {
		go func(id int) {
			for j := 0; j < 25; j++ {
				store.SaveHistory("NIFTY 50", "1mo", "1d", dailyBars(3+id, 100))
			}
			done <- true
		}(i)
	}
	for i := 0; i < 6; i++ {
		<-done
	}
}

func TestNormalize(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := []types.PricePoint{
		{Timestamp: start.AddDate(0, 0, 2), Open: 3, High: 3, Low: 3, Close: 3},
		{Timestamp: start, Open: 1, High: 1, Low: 1, Close: 1},
		{Timestamp: start, Open: 9, High: 9, Low: 9, Close: 9},
		{Timestamp: start.AddDate(0, 0, 1), Open: 2, High: 2, Low: 2, Close: 2},
	}

	normalized := data.Normalize(points)
	if len(normalized) != 3 {
		t.Fatalf("Expected 3 bars after dedup, got %d", len(normalized))
	}
	// Duplicate timestamps keep the later entry.
	if normalized[0].Close != 9 {
		t.Errorf("Dedup kept the wrong bar: close %v", normalized[0].Close)
	}
	if err := data.ValidateSeries(normalized); err != nil {
		t.Errorf("Normalized series should validate: %v", err)
	}
	if len(points) != 4 {
		t.Error("Normalize must not mutate its input")
	}
}

func TestValidateSeries(t *testing.T) {
	good := dailyBars(5, 100)
	if err := data.ValidateSeries(good); err != nil {
		t.Errorf("Valid series rejected: %v", err)
	}

	dup := dailyBars(3, 100)
	dup[2].Timestamp = dup[1].Timestamp
	if err := data.ValidateSeries(dup); err == nil {
		t.Error("Duplicate timestamps should be rejected")
	}

	unordered := dailyBars(3, 100)
	unordered[0].Timestamp, unordered[1].Timestamp = unordered[1].Timestamp, unordered[0].Timestamp
	if err := data.ValidateSeries(unordered); err == nil {
		t.Error("Out-of-order timestamps should be rejected")
	}

	badHigh := dailyBars(2, 100)
	badHigh[1].High = badHigh[1].Close - 5
	if err := data.ValidateSeries(badHigh); err == nil {
		t.Error("High below close should be rejected")
	}

	badVolume := dailyBars(2, 100)
	badVolume[0].Volume = -1
	if err := data.ValidateSeries(badVolume); err == nil {
		t.Error("Negative volume should be rejected")
	}
}
