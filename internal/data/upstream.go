package data

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tradeforge/trading-backend/pkg/types"
)

// UpstreamConfig configures the upstream market data client.
type UpstreamConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries uint64
	RateLimit  float64
	Burst      int
}

// DefaultUpstreamConfig returns conservative client defaults.
func DefaultUpstreamConfig(baseURL string) UpstreamConfig {
	return UpstreamConfig{
		BaseURL:    baseURL,
		Timeout:    10 * time.Second,
		MaxRetries: 3,
		RateLimit:  5,
		Burst:      5,
	}
}

// Upstream fetches market data from an external quote API. Requests pass
// through a rate limiter and a circuit breaker; transient failures retry
// with exponential backoff.
type Upstream struct {
	config  UpstreamConfig
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewUpstream creates an upstream market data client.
func NewUpstream(config UpstreamConfig, logger *zap.Logger) *Upstream {
	log := logger.Named("upstream")

	settings := gobreaker.Settings{
		Name:        "upstream",
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Upstream{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.Burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  log,
	}
}

type quoteResponse struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	PreviousClose float64 `json:"previousClose"`
	Volume        float64 `json:"volume"`
	Timestamp     int64   `json:"timestamp"`
}

type historyResponse struct {
	Symbol string `json:"symbol"`
	Bars   []struct {
		Timestamp int64   `json:"timestamp"`
		Open      float64 `json:"open"`
		High      float64 `json:"high"`
		Low       float64 `json:"low"`
		Close     float64 `json:"close"`
		Volume    float64 `json:"volume"`
	} `json:"bars"`
}

// Quote fetches a real-time snapshot for the symbol.
func (u *Upstream) Quote(ctx context.Context, symbol string) (*types.Quote, error) {
	info, ok := Lookup(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	body, err := u.get(ctx, "/v1/quote", url.Values{"symbol": {info.Ticker}})
	if err != nil {
		return nil, err
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse quote response: %w", err)
	}

	change := resp.Price - resp.PreviousClose
	var changePct float64
	if resp.PreviousClose != 0 {
		changePct = change / resp.PreviousClose * 100
	}

	return &types.Quote{
		Symbol:        info.Symbol,
		Exchange:      info.Exchange,
		Price:         resp.Price,
		Change:        change,
		ChangePercent: changePct,
		Open:          resp.Open,
		High:          resp.High,
		Low:           resp.Low,
		PreviousClose: resp.PreviousClose,
		Volume:        resp.Volume,
		Timestamp:     time.Unix(resp.Timestamp, 0).UTC(),
	}, nil
}

// History fetches OHLCV bars covering the period at the given interval.
func (u *Upstream) History(ctx context.Context, symbol, period, interval string) ([]types.PricePoint, error) {
	info, ok := Lookup(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	query := url.Values{
		"symbol":   {info.Ticker},
		"period":   {period},
		"interval": {interval},
	}
	body, err := u.get(ctx, "/v1/history", query)
	if err != nil {
		return nil, err
	}

	var resp historyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse history response: %w", err)
	}

	points := make([]types.PricePoint, 0, len(resp.Bars))
	for _, bar := range resp.Bars {
		points = append(points, types.PricePoint{
			Timestamp: time.Unix(bar.Timestamp, 0).UTC(),
			Open:      bar.Open,
			High:      bar.High,
			Low:       bar.Low,
			Close:     bar.Close,
			Volume:    bar.Volume,
		})
	}
	return Normalize(points), nil
}

// OptionChain fetches the option chain for the symbol's nearest expiry.
func (u *Upstream) OptionChain(ctx context.Context, symbol string) (*types.OptionChain, error) {
	info, ok := Lookup(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	body, err := u.get(ctx, "/v1/options", url.Values{"symbol": {info.Ticker}})
	if err != nil {
		return nil, err
	}

	var chain types.OptionChain
	if err := json.Unmarshal(body, &chain); err != nil {
		return nil, fmt.Errorf("failed to parse option chain response: %w", err)
	}
	chain.Symbol = info.Symbol
	return &chain, nil
}

// get performs a rate-limited GET through the circuit breaker, retrying
// transient failures with exponential backoff.
func (u *Upstream) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := u.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	result, err := u.breaker.Execute(func() (interface{}, error) {
		return u.fetch(ctx, path, query)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (u *Upstream) fetch(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := u.config.BaseURL + path + "?" + query.Encode()

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		if u.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+u.config.APIKey)
		}

		resp, err := u.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("upstream returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			// Client errors will not heal on retry.
			return backoff.Permanent(fmt.Errorf("upstream returned %d", resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 200 * time.Millisecond
	expo.MaxInterval = 2 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(expo, u.config.MaxRetries), ctx))
	if err != nil {
		u.logger.Error("Upstream request failed",
			zap.String("path", path),
			zap.Error(err))
		return nil, err
	}
	return body, nil
}

// BreakerState reports the circuit breaker state.
func (u *Upstream) BreakerState() string {
	return u.breaker.State().String()
}
