package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/tradeforge/trading-backend/internal/backtester"
	"github.com/tradeforge/trading-backend/internal/data"
	"github.com/tradeforge/trading-backend/internal/indicator"
	"github.com/tradeforge/trading-backend/internal/paper"
	"github.com/tradeforge/trading-backend/pkg/types"
	"github.com/tradeforge/trading-backend/pkg/utils"
)

const apiVersion = "1.0.0"

// backtestRequest is the body of POST /api/backtest.
type backtestRequest struct {
	Strategy types.StrategyConfig `json:"strategy"`
	Period   string               `json:"period,omitempty"`
	Interval string               `json:"interval,omitempty"`
}

// batchRequest is the body of POST /api/backtest/batch. Every strategy
// runs over the same series; strategies without a symbol inherit the
// top-level one.
type batchRequest struct {
	Symbol     string                 `json:"symbol" validate:"required"`
	Period     string                 `json:"period,omitempty"`
	Interval   string                 `json:"interval,omitempty"`
	Strategies []types.StrategyConfig `json:"strategies" validate:"required,min=1,max=50,dive"`
}

// executeRequest is the body of POST /api/paper-trade/execute.
type executeRequest struct {
	Symbol    string          `json:"symbol" validate:"required"`
	OrderType types.OrderSide `json:"orderType" validate:"required,oneof=BUY SELL"`
	Quantity  int64           `json:"quantity" validate:"required,gt=0"`
}

func (s *Server) respond(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respond(w, status, map[string]string{"error": message})
}

// decodeJSON decodes the request body into v, answering 400 itself on
// malformed input.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// validationMessage flattens the first validator failure into a readable
// message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return fmt.Sprintf("field %s failed %s validation", e.Field(), e.Tag())
	}
	return err.Error()
}

// respondEngineError maps engine failures onto HTTP statuses: bad configs
// are the client's fault, short series are unprocessable.
func (s *Server) respondEngineError(w http.ResponseWriter, err error) {
	var cfgErr *types.InvalidConfigError
	if errors.As(err, &cfgErr) {
		s.respond(w, http.StatusBadRequest, map[string]string{
			"error": cfgErr.Error(),
			"field": cfgErr.Field,
		})
		return
	}
	var dataErr *backtester.InsufficientDataError
	if errors.As(err, &dataErr) {
		s.respond(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":    dataErr.Error(),
			"required": dataErr.Required,
			"got":      dataErr.Got,
		})
		return
	}
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   apiVersion,
		"uptime":    utils.FormatDuration(time.Since(s.started)),
	})
}

func (s *Server) handleIndices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	indices := data.Indices()
	quotes := make([]*types.Quote, 0, len(indices))
	for _, idx := range indices {
		quote, err := s.data.Quote(ctx, idx.Symbol)
		if err != nil {
			s.metrics.ProviderErrors.WithLabelValues("quote").Inc()
			s.logger.Warn("Quote failed", zap.String("symbol", idx.Symbol), zap.Error(err))
			continue
		}
		quotes = append(quotes, quote)
	}
	s.respond(w, http.StatusOK, map[string]interface{}{
		"indices": quotes,
		"count":   len(quotes),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	quote, err := s.data.Quote(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, data.ErrUnknownSymbol) {
			s.respondError(w, http.StatusNotFound, fmt.Sprintf("unknown symbol %q", symbol))
			return
		}
		s.metrics.ProviderErrors.WithLabelValues("quote").Inc()
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.respond(w, http.StatusOK, quote)
}

// rangeParams resolves and validates the period/interval query
// parameters, falling back to the configured defaults.
func (s *Server) rangeParams(r *http.Request) (string, string, error) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = s.config.Backtest.DefaultPeriod
	}
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = s.config.Backtest.DefaultInterval
	}
	if _, err := utils.ParsePeriod(period); err != nil {
		return "", "", err
	}
	if _, err := utils.ParseInterval(interval); err != nil {
		return "", "", err
	}
	return period, interval, nil
}

func (s *Server) handleHistorical(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	info, ok := data.Lookup(symbol)
	if !ok {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("unknown symbol %q", symbol))
		return
	}

	period, interval, err := s.rangeParams(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	points, err := s.data.History(r.Context(), info.Symbol, period, interval)
	if err != nil {
		s.metrics.ProviderErrors.WithLabelValues("history").Inc()
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	if len(points) == 0 {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("no historical data for %q", info.Symbol))
		return
	}

	s.respond(w, http.StatusOK, map[string]interface{}{
		"symbol":   info.Symbol,
		"period":   period,
		"interval": interval,
		"count":    len(points),
		"data":     points,
	})
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	chain, err := s.data.OptionChain(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, data.ErrUnknownSymbol) {
			s.respondError(w, http.StatusNotFound, fmt.Sprintf("unknown symbol %q", symbol))
			return
		}
		s.metrics.ProviderErrors.WithLabelValues("options").Inc()
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.respond(w, http.StatusOK, chain)
}

// intParam reads a positive integer query parameter with a default.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

// renderSeries turns an indicator series into a JSON-friendly slice with
// nulls where the indicator is undefined.
func renderSeries(s indicator.Series) []*float64 {
	out := make([]*float64, s.Len())
	for i := range out {
		if v, ok := s.At(i); ok {
			v := v
			out[i] = &v
		}
	}
	return out
}

func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	info, ok := data.Lookup(symbol)
	if !ok {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("unknown symbol %q", symbol))
		return
	}

	period, interval, err := s.rangeParams(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	windows := struct {
		sma, ema, rsi, bollinger, fast, slow, signal int
	}{}
	for _, p := range []struct {
		name string
		def  int
		dst  *int
	}{
		{"sma", 20, &windows.sma},
		{"ema", 20, &windows.ema},
		{"rsi", 14, &windows.rsi},
		{"bollinger", 20, &windows.bollinger},
		{"fast", 12, &windows.fast},
		{"slow", 26, &windows.slow},
		{"signal", 9, &windows.signal},
	} {
		v, err := intParam(r, p.name, p.def)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		*p.dst = v
	}
	if windows.fast >= windows.slow {
		s.respondError(w, http.StatusBadRequest,
			fmt.Sprintf("fast period %d must be less than slow period %d", windows.fast, windows.slow))
		return
	}

	points, err := s.data.History(r.Context(), info.Symbol, period, interval)
	if err != nil {
		s.metrics.ProviderErrors.WithLabelValues("history").Inc()
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	closes := make([]float64, len(points))
	timestamps := make([]time.Time, len(points))
	for i, p := range points {
		closes[i] = p.Close
		timestamps[i] = p.Timestamp
	}

	macd := indicator.MACD(closes, windows.fast, windows.slow, windows.signal)
	bands := indicator.Bollinger(closes, windows.bollinger, 2)

	s.respond(w, http.StatusOK, map[string]interface{}{
		"symbol":     info.Symbol,
		"period":     period,
		"interval":   interval,
		"count":      len(points),
		"timestamps": timestamps,
		"close":      closes,
		"indicators": map[string]interface{}{
			"sma": renderSeries(indicator.SMA(closes, windows.sma)),
			"ema": renderSeries(indicator.EMA(closes, windows.ema)),
			"rsi": renderSeries(indicator.RSI(closes, windows.rsi)),
			"macd": map[string]interface{}{
				"macd":      renderSeries(macd.MACD),
				"signal":    renderSeries(macd.Signal),
				"histogram": renderSeries(macd.Histogram),
			},
			"bollinger": map[string]interface{}{
				"upper":  renderSeries(bands.Upper),
				"middle": renderSeries(bands.Middle),
				"lower":  renderSeries(bands.Lower),
			},
		},
	})
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req backtestRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	req.Strategy.ApplyDefaults()
	if err := s.validate.Struct(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	period := req.Period
	if period == "" {
		period = s.config.Backtest.DefaultPeriod
	}
	interval := req.Interval
	if interval == "" {
		interval = s.config.Backtest.DefaultInterval
	}
	if _, err := utils.ParsePeriod(period); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := utils.ParseInterval(interval); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	points, err := s.data.History(r.Context(), req.Strategy.Symbol, period, interval)
	if err != nil {
		if errors.Is(err, data.ErrUnknownSymbol) {
			s.respondError(w, http.StatusBadRequest,
				fmt.Sprintf("unknown symbol %q", req.Strategy.Symbol))
			return
		}
		s.metrics.ProviderErrors.WithLabelValues("history").Inc()
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	start := time.Now()
	result, err := s.engine.Run(points, req.Strategy)
	s.metrics.ObserveBacktest(string(req.Strategy.StrategyType), err, time.Since(start))
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respond(w, http.StatusOK, result)
}

func (s *Server) handleBacktestBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	for i := range req.Strategies {
		if req.Strategies[i].Symbol == "" {
			req.Strategies[i].Symbol = req.Symbol
		}
		req.Strategies[i].ApplyDefaults()
	}
	if err := s.validate.Struct(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	period := req.Period
	if period == "" {
		period = s.config.Backtest.DefaultPeriod
	}
	interval := req.Interval
	if interval == "" {
		interval = s.config.Backtest.DefaultInterval
	}
	if _, err := utils.ParsePeriod(period); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := utils.ParseInterval(interval); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	points, err := s.data.History(r.Context(), req.Symbol, period, interval)
	if err != nil {
		if errors.Is(err, data.ErrUnknownSymbol) {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown symbol %q", req.Symbol))
			return
		}
		s.metrics.ProviderErrors.WithLabelValues("history").Inc()
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	start := time.Now()
	entries := s.batch.RunAll(points, req.Strategies)
	for _, entry := range entries {
		var runErr error
		if entry.Error != "" {
			runErr = errors.New(entry.Error)
		}
		s.metrics.ObserveBacktest(string(entry.Config.StrategyType), runErr, 0)
	}
	s.logger.Info("Batch backtest complete",
		zap.String("symbol", req.Symbol),
		zap.Int("strategies", len(entries)),
		zap.Duration("elapsed", time.Since(start)))

	s.respond(w, http.StatusOK, map[string]interface{}{
		"symbol":   req.Symbol,
		"period":   period,
		"interval": interval,
		"bars":     len(points),
		"count":    len(entries),
		"entries":  entries,
	})
}

func (s *Server) handleStrategyValidate(w http.ResponseWriter, r *http.Request) {
	var cfg types.StrategyConfig
	if !s.decodeJSON(w, r, &cfg) {
		return
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		var cfgErr *types.InvalidConfigError
		field := ""
		if errors.As(err, &cfgErr) {
			field = cfgErr.Field
		}
		s.respond(w, http.StatusBadRequest, map[string]interface{}{
			"valid": false,
			"error": err.Error(),
			"field": field,
		})
		return
	}
	s.respond(w, http.StatusOK, map[string]interface{}{
		"valid":  true,
		"config": cfg,
	})
}

func (s *Server) handlePaperExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	quote, err := s.data.Quote(r.Context(), req.Symbol)
	if err != nil {
		if errors.Is(err, data.ErrUnknownSymbol) {
			s.respondError(w, http.StatusNotFound, fmt.Sprintf("unknown symbol %q", req.Symbol))
			return
		}
		s.metrics.ProviderErrors.WithLabelValues("quote").Inc()
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	order, err := s.account.Execute(quote.Symbol, req.OrderType, req.Quantity, quote.Price)
	if err != nil {
		switch {
		case errors.Is(err, paper.ErrInsufficientFunds),
			errors.Is(err, paper.ErrInsufficientHoldings):
			s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			s.respondError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	s.metrics.PaperOrders.WithLabelValues(string(order.Side)).Inc()
	s.hub.BroadcastOrderUpdate(order)

	s.respond(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"id":        order.ID,
		"orderType": order.Side,
		"symbol":    order.Symbol,
		"quantity":  order.Quantity,
		"price":     order.Price,
		"total":     order.Total,
		"timestamp": order.Timestamp,
	})
}

func (s *Server) handlePaperAccount(w http.ResponseWriter, r *http.Request) {
	// Mark holdings to the current quotes before the snapshot; a failed
	// quote just leaves the previous mark in place.
	ctx := r.Context()
	for _, symbol := range s.account.Symbols() {
		quote, err := s.data.Quote(ctx, symbol)
		if err != nil {
			s.logger.Warn("Mark-to-market quote failed", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		s.account.UpdatePrice(symbol, quote.Price)
	}

	s.respond(w, http.StatusOK, map[string]interface{}{
		"account": s.account.Snapshot(),
		"orders":  s.account.Orders(50),
	})
}

func (s *Server) handlePaperOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 50)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	orders := s.account.Orders(limit)
	s.respond(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
		"count":  len(orders),
	})
}
