package api

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tradeforge/trading-backend/internal/data"
	"github.com/tradeforge/trading-backend/internal/forward"
	"github.com/tradeforge/trading-backend/pkg/types"
	"github.com/tradeforge/trading-backend/pkg/utils"
)

// ForwardStartRequest is the payload of a forward:start message.
type ForwardStartRequest struct {
	Strategy types.StrategyConfig `json:"strategy"`
	Period   string               `json:"period,omitempty"`
	Interval string               `json:"interval,omitempty"`
}

// ForwardState acknowledges a forward session transition.
type ForwardState struct {
	SessionID string             `json:"sessionId"`
	Status    string             `json:"status"`
	Symbol    string             `json:"symbol"`
	Strategy  types.StrategyType `json:"strategyType"`
	Warm      bool               `json:"warm,omitempty"`
	Bars      int                `json:"bars"`
}

// ForwardUpdate carries one live bar and the signal it produced.
type ForwardUpdate struct {
	SessionID string             `json:"sessionId"`
	Symbol    string             `json:"symbol"`
	Strategy  types.StrategyType `json:"strategyType"`
	Bar       types.PricePoint   `json:"bar"`
	Signal    types.Signal       `json:"signal"`
	Warm      bool               `json:"warm"`
	Bars      int                `json:"bars"`
}

// Streamer drives the live side of the WebSocket API: it polls quotes for
// subscribed symbols and runs forward-testing sessions that grow a price
// series one bar per poll.
type Streamer struct {
	logger    *zap.Logger
	data      *data.Service
	poll      time.Duration
	period    string
	interval  string
	stop      chan struct{}
	closeOnce sync.Once
}

// NewStreamer creates a streamer polling at the given interval. period and
// interval are used for warmup history when a forward:start omits them.
func NewStreamer(svc *data.Service, poll time.Duration, period, interval string, logger *zap.Logger) *Streamer {
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &Streamer{
		logger:   logger.Named("stream"),
		data:     svc,
		poll:     poll,
		period:   period,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Close stops the quote poller and every running forward session. Safe
// to call more than once.
func (st *Streamer) Close() {
	st.closeOnce.Do(func() { close(st.stop) })
}

// RunQuotes polls quotes for all subscribed quote channels until Close.
func (st *Streamer) RunQuotes(hub *Hub) {
	ticker := time.NewTicker(st.poll)
	defer ticker.Stop()

	for {
		select {
		case <-st.stop:
			return
		case <-ticker.C:
			st.publishQuotes(hub)
		}
	}
}

func (st *Streamer) publishQuotes(hub *Hub) {
	channels := hub.ActiveChannels("quotes:")
	if len(channels) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), st.poll)
	defer cancel()

	for _, channel := range channels {
		symbol := strings.TrimPrefix(channel, "quotes:")
		quote, err := st.data.Quote(ctx, symbol)
		if err != nil {
			st.logger.Warn("Quote poll failed", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		hub.PublishToChannel(channel, MsgTypeQuote, quote)
	}
}

// Start validates the request, seeds a forward tester with warmup history
// and launches the session loop. The caller subscribes the client to the
// returned session's channel.
func (st *Streamer) Start(client *Client, req ForwardStartRequest) (*forwardSession, error) {
	cfg := req.Strategy
	cfg.ApplyDefaults()

	period := req.Period
	if period == "" {
		period = st.period
	}
	interval := req.Interval
	if interval == "" {
		interval = st.interval
	}
	step, err := utils.ParseInterval(interval)
	if err != nil {
		return nil, err
	}
	if _, err := utils.ParsePeriod(period); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	warmup, err := st.data.History(ctx, cfg.Symbol, period, interval)
	if err != nil {
		return nil, err
	}

	tester, err := forward.NewTester(cfg, warmup, st.logger)
	if err != nil {
		return nil, err
	}

	s := &forwardSession{
		id:       uuid.NewString(),
		client:   client,
		hub:      client.hub,
		tester:   tester,
		step:     step,
		streamer: st,
		stop:     make(chan struct{}),
	}
	s.channel = "forward:" + s.id
	if len(warmup) > 0 {
		s.last = warmup[len(warmup)-1]
	}
	go s.run()

	st.logger.Info("Forward session started",
		zap.String("session", s.id),
		zap.String("symbol", cfg.Symbol),
		zap.String("strategy", string(cfg.StrategyType)),
		zap.Int("warmupBars", tester.Len()))
	return s, nil
}

// forwardSession grows one tester by one bar per poll tick and publishes
// the resulting signal to its own channel.
type forwardSession struct {
	id       string
	channel  string
	client   *Client
	hub      *Hub
	tester   *forward.Tester
	step     time.Duration
	streamer *Streamer
	last     types.PricePoint
	stop     chan struct{}
	once     sync.Once
}

// Stop ends the session. Safe to call more than once.
func (s *forwardSession) Stop() {
	s.once.Do(func() { close(s.stop) })
}

func (s *forwardSession) run() {
	ticker := time.NewTicker(s.streamer.poll)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			s.streamer.logger.Info("Forward session stopped", zap.String("session", s.id))
			return
		case <-s.streamer.stop:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick fetches the current quote, folds it into the next bar and appends
// it to the tester. Bar timestamps advance by one interval per tick, so
// the tester's ordering invariant holds regardless of wall-clock jitter.
func (s *forwardSession) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.streamer.poll)
	defer cancel()

	cfg := s.tester.Config()
	quote, err := s.streamer.data.Quote(ctx, cfg.Symbol)
	if err != nil {
		s.streamer.logger.Warn("Forward quote fetch failed",
			zap.String("session", s.id), zap.Error(err))
		return
	}

	next := s.nextBar(quote)
	signal, err := s.tester.Append(next)
	if err != nil {
		s.streamer.logger.Warn("Forward append rejected",
			zap.String("session", s.id), zap.Error(err))
		return
	}
	s.last = next

	s.hub.PublishToChannel(s.channel, MsgTypeForwardSignal, ForwardUpdate{
		SessionID: s.id,
		Symbol:    cfg.Symbol,
		Strategy:  cfg.StrategyType,
		Bar:       next,
		Signal:    signal,
		Warm:      s.tester.Warm(),
		Bars:      s.tester.Len(),
	})
}

func (s *forwardSession) nextBar(quote *types.Quote) types.PricePoint {
	if s.last.Timestamp.IsZero() {
		return types.PricePoint{
			Timestamp: quote.Timestamp.Truncate(s.step),
			Open:      quote.Price,
			High:      quote.Price,
			Low:       quote.Price,
			Close:     quote.Price,
			Volume:    quote.Volume,
		}
	}
	open := s.last.Close
	return types.PricePoint{
		Timestamp: s.last.Timestamp.Add(s.step),
		Open:      open,
		High:      math.Max(open, quote.Price),
		Low:       math.Min(open, quote.Price),
		Close:     quote.Price,
		Volume:    quote.Volume,
	}
}
