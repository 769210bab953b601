// Package paper provides a simulated trading account. Balances are kept
// in decimals so paper fills and the ledger stay exact.
package paper

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradeforge/trading-backend/pkg/types"
)

var (
	// ErrInvalidQuantity is returned for zero or negative order quantities.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrInsufficientFunds is returned when a buy exceeds available cash.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientHoldings is returned when a sell exceeds the held quantity.
	ErrInsufficientHoldings = errors.New("insufficient holdings")
)

// Order represents one executed paper order.
type Order struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Side      types.OrderSide `json:"orderType"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`
	Timestamp time.Time       `json:"timestamp"`
}

// Holding represents the account's aggregate position in one symbol.
type Holding struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	AvgPrice      decimal.Decimal `json:"avgPrice"`
	CurrentPrice  decimal.Decimal `json:"currentPrice"`
	UnrealizedPnL decimal.Decimal `json:"unrealizedPnL"`
	OpenedAt      time.Time       `json:"openedAt"`
	Trades        int             `json:"trades"`
}

// Snapshot is a point-in-time view of the account.
type Snapshot struct {
	Cash          decimal.Decimal `json:"cash"`
	InitialCash   decimal.Decimal `json:"initialCash"`
	Equity        decimal.Decimal `json:"equity"`
	RealizedPnL   decimal.Decimal `json:"realizedPnL"`
	UnrealizedPnL decimal.Decimal `json:"unrealizedPnL"`
	TotalReturn   decimal.Decimal `json:"totalReturnPct"`
	Drawdown      decimal.Decimal `json:"drawdown"`
	Holdings      []Holding       `json:"holdings"`
	OrderCount    int             `json:"orderCount"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Account manages paper-trading state. All methods are safe for
// concurrent use.
type Account struct {
	mu          sync.RWMutex
	logger      *zap.Logger
	cash        decimal.Decimal
	initialCash decimal.Decimal
	realized    decimal.Decimal
	peakEquity  decimal.Decimal
	holdings    map[string]*Holding
	orders      []Order
}

// NewAccount creates a paper account funded with initialCash.
func NewAccount(initialCash decimal.Decimal, logger *zap.Logger) *Account {
	return &Account{
		logger:      logger.Named("paper"),
		cash:        initialCash,
		initialCash: initialCash,
		peakEquity:  initialCash,
		holdings:    make(map[string]*Holding),
		orders:      make([]Order, 0),
	}
}

// Execute fills a market order at the given price and returns it.
func (a *Account) Execute(symbol string, side types.OrderSide, quantity int64, price float64) (*Order, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	qty := decimal.NewFromInt(quantity)
	px := decimal.NewFromFloat(price)
	total := qty.Mul(px)

	switch side {
	case types.OrderSideBuy:
		if total.GreaterThan(a.cash) {
			return nil, fmt.Errorf("%w: order %s exceeds cash %s", ErrInsufficientFunds, total, a.cash)
		}
		a.cash = a.cash.Sub(total)
		a.applyBuy(symbol, qty, px)

	case types.OrderSideSell:
		holding, ok := a.holdings[symbol]
		if !ok || qty.GreaterThan(holding.Quantity) {
			return nil, fmt.Errorf("%w: %s", ErrInsufficientHoldings, symbol)
		}
		a.cash = a.cash.Add(total)
		a.realized = a.realized.Add(px.Sub(holding.AvgPrice).Mul(qty))
		holding.Quantity = holding.Quantity.Sub(qty)
		holding.CurrentPrice = px
		holding.Trades++
		if holding.Quantity.LessThanOrEqual(decimal.Zero) {
			delete(a.holdings, symbol)
		}

	default:
		return nil, fmt.Errorf("unknown order side: %s", side)
	}

	order := Order{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Side:      side,
		Quantity:  qty,
		Price:     px,
		Total:     total,
		Timestamp: time.Now().UTC(),
	}
	a.orders = append(a.orders, order)
	a.trackPeak()

	a.logger.Info("Paper order executed",
		zap.String("id", order.ID),
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.Int64("quantity", quantity),
		zap.Float64("price", price))

	return &order, nil
}

func (a *Account) applyBuy(symbol string, qty, px decimal.Decimal) {
	if holding, ok := a.holdings[symbol]; ok {
		totalQty := holding.Quantity.Add(qty)
		totalCost := holding.Quantity.Mul(holding.AvgPrice).Add(qty.Mul(px))
		holding.AvgPrice = totalCost.Div(totalQty)
		holding.Quantity = totalQty
		holding.CurrentPrice = px
		holding.Trades++
		return
	}
	a.holdings[symbol] = &Holding{
		Symbol:       symbol,
		Quantity:     qty,
		AvgPrice:     px,
		CurrentPrice: px,
		OpenedAt:     time.Now().UTC(),
		Trades:       1,
	}
}

// UpdatePrice marks a held symbol to market.
func (a *Account) UpdatePrice(symbol string, price float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if holding, ok := a.holdings[symbol]; ok {
		holding.CurrentPrice = decimal.NewFromFloat(price)
	}
	a.trackPeak()
}

// Symbols returns the symbols currently held.
func (a *Account) Symbols() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	symbols := make([]string, 0, len(a.holdings))
	for symbol := range a.holdings {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// Snapshot returns a consistent view of the account.
func (a *Account) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	equity := a.equity()
	holdings := make([]Holding, 0, len(a.holdings))
	for _, h := range a.holdings {
		copied := *h
		copied.UnrealizedPnL = h.CurrentPrice.Sub(h.AvgPrice).Mul(h.Quantity)
		holdings = append(holdings, copied)
	}
	sort.Slice(holdings, func(i, j int) bool {
		return holdings[i].Symbol < holdings[j].Symbol
	})

	var drawdown decimal.Decimal
	if a.peakEquity.IsPositive() {
		drawdown = a.peakEquity.Sub(equity).Div(a.peakEquity)
	}
	var totalReturn decimal.Decimal
	if a.initialCash.IsPositive() {
		totalReturn = equity.Sub(a.initialCash).Div(a.initialCash).Mul(decimal.NewFromInt(100))
	}

	return Snapshot{
		Cash:          a.cash,
		InitialCash:   a.initialCash,
		Equity:        equity,
		RealizedPnL:   a.realized,
		UnrealizedPnL: equity.Sub(a.cash).Sub(a.costBasis()),
		TotalReturn:   totalReturn,
		Drawdown:      drawdown,
		Holdings:      holdings,
		OrderCount:    len(a.orders),
		UpdatedAt:     time.Now().UTC(),
	}
}

// Orders returns up to limit most recent orders, newest first. A non-positive
// limit returns all orders.
func (a *Account) Orders(limit int) []Order {
	a.mu.RLock()
	defer a.mu.RUnlock()

	n := len(a.orders)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Order, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, a.orders[i])
	}
	return out
}

// equity returns cash plus the market value of holdings (lock held).
func (a *Account) equity() decimal.Decimal {
	equity := a.cash
	for _, h := range a.holdings {
		equity = equity.Add(h.Quantity.Mul(h.CurrentPrice))
	}
	return equity
}

// costBasis returns the total cost basis of holdings (lock held).
func (a *Account) costBasis() decimal.Decimal {
	var basis decimal.Decimal
	for _, h := range a.holdings {
		basis = basis.Add(h.Quantity.Mul(h.AvgPrice))
	}
	return basis
}

func (a *Account) trackPeak() {
	if equity := a.equity(); equity.GreaterThan(a.peakEquity) {
		a.peakEquity = equity
	}
}
