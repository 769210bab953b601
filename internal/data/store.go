package data

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tradeforge/trading-backend/pkg/types"
)

// HistoryMeta describes one cached history series.
type HistoryMeta struct {
	Symbol    string    `json:"symbol"`
	Period    string    `json:"period"`
	Interval  string    `json:"interval"`
	FetchedAt time.Time `json:"fetchedAt"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	BarCount  int       `json:"barCount"`
}

// Store persists history series as JSON files under a data directory,
// with an in-memory cache in front and a metadata sidecar describing
// what is held.
type Store struct {
	mu       sync.RWMutex
	logger   *zap.Logger
	dataDir  string
	cache    map[string][]types.PricePoint
	metadata map[string]*HistoryMeta
}

// NewStore creates a history store rooted at dataDir.
func NewStore(logger *zap.Logger, dataDir string) (*Store, error) {
	store := &Store{
		logger:   logger.Named("store"),
		dataDir:  dataDir,
		cache:    make(map[string][]types.PricePoint),
		metadata: make(map[string]*HistoryMeta),
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := store.loadMetadata(); err != nil {
		store.logger.Warn("Failed to load metadata", zap.Error(err))
	}

	return store, nil
}

// History returns the cached series for (symbol, period, interval), if any.
func (s *Store) History(symbol, period, interval string) ([]types.PricePoint, *HistoryMeta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := historyKey(symbol, period, interval)

	points, ok := s.cache[key]
	if !ok {
		raw, err := os.ReadFile(s.filename(key))
		if err != nil {
			return nil, nil, false
		}
		if err := json.Unmarshal(raw, &points); err != nil {
			s.logger.Warn("Discarding corrupt history file",
				zap.String("key", key), zap.Error(err))
			return nil, nil, false
		}
		s.cache[key] = points
	}

	meta, ok := s.metadata[key]
	if !ok {
		// File present without a metadata entry: usable, but of
		// unknown age.
		meta = metaFor(symbol, period, interval, points)
		s.metadata[key] = meta
	}

	out := make([]types.PricePoint, len(points))
	copy(out, points)
	return out, meta, true
}

// SaveHistory persists a series and updates its metadata entry.
func (s *Store) SaveHistory(symbol, period, interval string, points []types.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := historyKey(symbol, period, interval)

	data, err := json.MarshalIndent(points, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := os.WriteFile(s.filename(key), data, 0o644); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}

	cached := make([]types.PricePoint, len(points))
	copy(cached, points)
	s.cache[key] = cached

	meta := metaFor(symbol, period, interval, points)
	meta.FetchedAt = time.Now().UTC()
	s.metadata[key] = meta

	if err := s.saveMetadata(); err != nil {
		s.logger.Warn("Failed to save metadata", zap.Error(err))
	}
	return nil
}

// Keys returns the cache keys of all stored series, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.metadata))
	for key := range s.metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ClearCache drops the in-memory cache; files on disk are untouched.
func (s *Store) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache = make(map[string][]types.PricePoint)
}

// CacheSize returns the number of series held in memory.
func (s *Store) CacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.cache)
}

// SeriesCount returns the number of series known to the store.
func (s *Store) SeriesCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.metadata)
}

func (s *Store) filename(key string) string {
	return filepath.Join(s.dataDir, key+".json")
}

func (s *Store) loadMetadata() error {
	raw, err := os.ReadFile(filepath.Join(s.dataDir, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var metadata map[string]*HistoryMeta
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return err
	}
	s.metadata = metadata
	return nil
}

func (s *Store) saveMetadata() error {
	data, err := json.MarshalIndent(s.metadata, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dataDir, "metadata.json"), data, 0o644)
}

var keySanitizer = strings.NewReplacer(" ", "-", "/", "-", "^", "", "\\", "-")

func historyKey(symbol, period, interval string) string {
	return fmt.Sprintf("%s_%s_%s", keySanitizer.Replace(symbol), period, interval)
}

func metaFor(symbol, period, interval string, points []types.PricePoint) *HistoryMeta {
	meta := &HistoryMeta{
		Symbol:   symbol,
		Period:   period,
		Interval: interval,
		BarCount: len(points),
	}
	if len(points) > 0 {
		meta.StartDate = points[0].Timestamp
		meta.EndDate = points[len(points)-1].Timestamp
	}
	return meta
}
