// Package api exposes the trading backend over HTTP and WebSocket:
// market data, backtests, strategy validation, paper trading and live
// forward testing.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/tradeforge/trading-backend/internal/backtester"
	"github.com/tradeforge/trading-backend/internal/config"
	"github.com/tradeforge/trading-backend/internal/data"
	"github.com/tradeforge/trading-backend/internal/metrics"
	"github.com/tradeforge/trading-backend/internal/paper"
)

// Server is the HTTP/WebSocket API server.
type Server struct {
	logger     *zap.Logger
	config     *config.Config
	router     *mux.Router
	httpServer *http.Server
	hub        *Hub
	streamer   *Streamer
	data       *data.Service
	engine     *backtester.Engine
	batch      *backtester.BatchRunner
	account    *paper.Account
	metrics    *metrics.Registry
	validate   *validator.Validate
	started    time.Time
}

// NewServer creates the API server, wires up its routes and starts the
// WebSocket hub and quote poller. Stop shuts them down again.
func NewServer(
	cfg *config.Config,
	svc *data.Service,
	engine *backtester.Engine,
	batch *backtester.BatchRunner,
	account *paper.Account,
	registry *metrics.Registry,
	logger *zap.Logger,
) *Server {
	s := &Server{
		logger:   logger.Named("api"),
		config:   cfg,
		router:   mux.NewRouter(),
		data:     svc,
		engine:   engine,
		batch:    batch,
		account:  account,
		metrics:  registry,
		validate: validator.New(),
		started:  time.Now(),
	}
	s.streamer = NewStreamer(svc, cfg.Forward.PollInterval,
		cfg.Backtest.DefaultPeriod, cfg.Backtest.DefaultInterval, logger)
	s.hub = NewHub(logger, s.streamer)
	registry.RegisterClientsGauge(s.hub.ClientCount)

	s.setupRoutes()

	go s.hub.Run()
	go s.streamer.RunQuotes(s.hub)
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.logRequests, s.observeRequests)

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	api.HandleFunc("/market/indices", s.handleIndices).Methods("GET")
	api.HandleFunc("/market/index/{symbol}", s.handleIndex).Methods("GET")
	api.HandleFunc("/market/historical/{symbol}", s.handleHistorical).Methods("GET")
	api.HandleFunc("/market/options/{symbol}", s.handleOptions).Methods("GET")
	api.HandleFunc("/market/indicators/{symbol}", s.handleIndicators).Methods("GET")

	api.HandleFunc("/backtest", s.handleBacktest).Methods("POST")
	api.HandleFunc("/backtest/batch", s.handleBacktestBatch).Methods("POST")
	api.HandleFunc("/strategy/validate", s.handleStrategyValidate).Methods("POST")

	api.HandleFunc("/paper-trade/execute", s.handlePaperExecute).Methods("POST")
	api.HandleFunc("/paper-trade/account", s.handlePaperAccount).Methods("GET")
	api.HandleFunc("/paper-trade/orders", s.handlePaperOrders).Methods("GET")

	// The WebSocket and scrape endpoints stay off the instrumented
	// subrouter; the upgrade needs the raw ResponseWriter.
	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
}

// Router returns the HTTP handler, for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Server.Port,
		Handler:      c.Handler(s.router),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down: forward sessions and the quote poller
// first, then the hub, then in-flight HTTP requests.
func (s *Server) Stop(ctx context.Context) error {
	s.streamer.Close()
	s.hub.Shutdown()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
