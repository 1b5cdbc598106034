// Package exchange defines the abstract exchange capability the trading
// core depends on. The core never imports a vendor SDK directly; every
// call is fallible, asynchronous and potentially rate-limited.
package exchange

import (
	"context"

	"github.com/helix-lab/helix-trading/internal/types"
)

// Balance is one asset balance on the account.
type Balance struct {
	// Asset is the asset symbol (e.g., "USDT").
	Asset string `yaml:"asset" json:"asset"`
	// Free is the available amount.
	Free float64 `yaml:"free" json:"free"`
	// Locked is the amount reserved by open orders.
	Locked float64 `yaml:"locked" json:"locked"`
}

// OrderRequest describes an order submission.
type OrderRequest struct {
	// Symbol is the trading pair.
	Symbol string `yaml:"symbol" json:"symbol"`
	// Side is BUY or SELL.
	Side types.OrderSide `yaml:"side" json:"side"`
	// Quantity is the base-asset quantity.
	Quantity float64 `yaml:"quantity" json:"quantity"`
	// Price is the reference price; market orders fill at the venue price.
	Price float64 `yaml:"price" json:"price"`
	// Reason records why the order was submitted (strategy, stop, target).
	Reason string `yaml:"reason" json:"reason"`
}

// OrderAck acknowledges an accepted order.
type OrderAck struct {
	// OrderID is the venue-assigned order identifier.
	OrderID string `yaml:"order_id" json:"order_id"`
	// ExecutedPrice is the fill price when known, otherwise the request price.
	ExecutedPrice float64 `yaml:"executed_price" json:"executed_price"`
	// ExecutedQuantity is the filled quantity.
	ExecutedQuantity float64 `yaml:"executed_quantity" json:"executed_quantity"`
	// Commission is the fee charged for the fill, when reported.
	Commission float64 `yaml:"commission" json:"commission"`
}

// Unsubscribe stops a price or bar subscription.
type Unsubscribe func()

// Exchange is the consumed exchange capability. Implementations must be
// safe for use by a single orchestrator goroutine; callbacks may be
// invoked from transport goroutines.
type Exchange interface {
	// Ready reports whether the collaborator is configured and reachable.
	Ready() bool
	// GetHistoricalBars returns up to limit bars ascending by open time.
	GetHistoricalBars(ctx context.Context, symbol, interval string, limit int) ([]types.Bar, error)
	// GetCurrentPrice returns the latest traded price.
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
	// GetAccountBalances returns the account balances.
	GetAccountBalances(ctx context.Context) ([]Balance, error)
	// SubmitOrder submits an order and returns the acknowledgement.
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderAck, error)
	// CancelOrder cancels one open order.
	CancelOrder(ctx context.Context, symbol, orderID string) error
	// CancelAllOrders cancels all open orders for a symbol.
	CancelAllOrders(ctx context.Context, symbol string) error
	// SubscribeToPrice streams trade prices until unsubscribed.
	SubscribeToPrice(symbol string, fn func(price float64)) (Unsubscribe, error)
	// SubscribeToBars streams finalized bars until unsubscribed.
	SubscribeToBars(symbol, interval string, fn func(bar types.Bar)) (Unsubscribe, error)
}
