// Package types provides shared type definitions for the trading backend.
package types

import (
	"encoding/json"
	"math"
	"time"
)

// Exchange identifies the listing exchange of an index.
type Exchange string

const (
	ExchangeNSE Exchange = "NSE"
	ExchangeBSE Exchange = "BSE"
)

// SignalAction represents the per-period decision of a strategy.
type SignalAction string

const (
	SignalBuy  SignalAction = "BUY"
	SignalSell SignalAction = "SELL"
	SignalHold SignalAction = "HOLD"
)

// OrderSide represents the side of a paper-trading order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// PositionSide represents the direction of a position. The backtester only
// ever opens long positions.
type PositionSide string

const (
	PositionSideLong PositionSide = "long"
)

// PricePoint represents one OHLCV period of a price series. A series is
// ordered ascending by timestamp with no duplicate timestamps and is never
// mutated once handed to the engine.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Signal represents the strategy decision at a single series index.
type Signal struct {
	Index     int          `json:"index"`
	Timestamp time.Time    `json:"timestamp"`
	Price     float64      `json:"price"`
	Action    SignalAction `json:"action"`
}

// Position represents the single open position owned by the simulator.
type Position struct {
	Symbol         string       `json:"symbol"`
	Side           PositionSide `json:"side"`
	EntryTimestamp time.Time    `json:"entryTimestamp"`
	EntryPrice     float64      `json:"entryPrice"`
	Quantity       int64        `json:"quantity"`
}

// Trade represents a closed round trip. Trades are immutable once appended
// to the ledger.
type Trade struct {
	Symbol         string    `json:"symbol"`
	EntryTimestamp time.Time `json:"entryTimestamp"`
	EntryPrice     float64   `json:"entryPrice"`
	ExitTimestamp  time.Time `json:"exitTimestamp"`
	ExitPrice      float64   `json:"exitPrice"`
	Quantity       int64     `json:"quantity"`
	PnL            float64   `json:"pnl"`
	PnLPct         float64   `json:"pnlPct"`
}

// BacktestResult represents the outcome of a single backtest run. It is
// derived entirely from the trade ledger and the initial capital and is never
// mutated after construction.
type BacktestResult struct {
	Symbol         string  `json:"symbol"`
	StrategyType   string  `json:"strategyType"`
	InitialCapital float64 `json:"initialCapital"`
	FinalCapital   float64 `json:"finalCapital"`
	TotalPnL       float64 `json:"totalPnL"`
	TotalTrades    int     `json:"totalTrades"`
	WinningTrades  int     `json:"winningTrades"`
	LosingTrades   int     `json:"losingTrades"`
	WinRate        float64 `json:"winRate"`
	AvgWin         float64 `json:"avgWin"`
	AvgLoss        float64 `json:"avgLoss"`
	ProfitFactor   float64 `json:"profitFactor"`
	Trades         []Trade `json:"trades"`
}

// MarshalJSON renders an unbounded profit factor as null; JSON has no
// representation for infinity.
func (r BacktestResult) MarshalJSON() ([]byte, error) {
	type alias BacktestResult
	out := struct {
		alias
		ProfitFactor *float64 `json:"profitFactor"`
	}{alias: alias(r)}
	if !math.IsInf(r.ProfitFactor, 0) {
		pf := r.ProfitFactor
		out.ProfitFactor = &pf
	}
	return json.Marshal(out)
}

// Quote represents a real-time snapshot of an index.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Exchange      Exchange  `json:"exchange"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	PreviousClose float64   `json:"previousClose"`
	Volume        float64   `json:"volume"`
	Timestamp     time.Time `json:"timestamp"`
}

// OptionContract represents one strike row of an option chain.
type OptionContract struct {
	ContractSymbol    string  `json:"contractSymbol"`
	Strike            float64 `json:"strike"`
	LastPrice         float64 `json:"lastPrice"`
	Bid               float64 `json:"bid"`
	Ask               float64 `json:"ask"`
	Volume            float64 `json:"volume"`
	OpenInterest      float64 `json:"openInterest"`
	ImpliedVolatility float64 `json:"impliedVolatility"`
}

// OptionChain represents an option chain snapshot for the nearest expiry.
type OptionChain struct {
	Symbol string           `json:"symbol"`
	Expiry string           `json:"expiry"`
	Calls  []OptionContract `json:"calls"`
	Puts   []OptionContract `json:"puts"`
}
