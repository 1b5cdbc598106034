package types

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
)

// PositionSide is the direction of an open position.
type PositionSide string

const (
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
)

// OrderSide is the direction of an order submission.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Position represents one open holding. At most one open position exists
// per symbol per engine instance; the position lifecycle manager owns it
// exclusively and mutates it only on price refresh or close.
type Position struct {
	// ID is the unique identifier of the position.
	ID string `yaml:"id" json:"id"`
	// Symbol is the trading pair.
	Symbol string `yaml:"symbol" json:"symbol"`
	// Side is LONG or SHORT.
	Side PositionSide `yaml:"side" json:"side"`
	// EntryPrice is the average fill price at open.
	EntryPrice float64 `yaml:"entry_price" json:"entry_price"`
	// CurrentPrice is the latest observed mark price.
	CurrentPrice float64 `yaml:"current_price" json:"current_price"`
	// Quantity is the position size in base asset units.
	Quantity float64 `yaml:"quantity" json:"quantity"`
	// Leverage applied to the position.
	Leverage float64 `yaml:"leverage" json:"leverage"`
	// UnrealizedPnL is the side-adjusted mark-to-market profit.
	UnrealizedPnL float64 `yaml:"unrealized_pnl" json:"unrealized_pnl"`
	// UnrealizedPnLPercent is UnrealizedPnL relative to the entry notional.
	UnrealizedPnLPercent float64 `yaml:"unrealized_pnl_percent" json:"unrealized_pnl_percent"`
	// StopLoss is the protective stop level, if set.
	StopLoss optional.Option[float64] `yaml:"stop_loss" json:"stop_loss"`
	// TakeProfit is the profit target level, if set.
	TakeProfit optional.Option[float64] `yaml:"take_profit" json:"take_profit"`
	// OpenTime is when the position was opened.
	OpenTime time.Time `yaml:"open_time" json:"open_time"`
}

// UpdatePrice refreshes the mark price and the unrealized PnL figures.
func (p *Position) UpdatePrice(price float64) {
	p.CurrentPrice = price
	p.UnrealizedPnL = p.PnLAt(price)

	notional := p.EntryPrice * p.Quantity
	if notional != 0 {
		p.UnrealizedPnLPercent = p.UnrealizedPnL / notional * 100
	}
}

// PnLAt returns the side-adjusted profit of closing the full position at
// the given price.
func (p *Position) PnLAt(price float64) float64 {
	entry := decimal.NewFromFloat(p.EntryPrice)
	exit := decimal.NewFromFloat(price)
	qty := decimal.NewFromFloat(p.Quantity)

	diff := exit.Sub(entry)
	if p.Side == PositionSideShort {
		// Short profits when the exit price is below the entry price.
		diff = entry.Sub(exit)
	}

	pnl, _ := diff.Mul(qty).Float64()

	return pnl
}

// Trade is an immutable execution record. Order submissions are recorded
// with Realized=false; closes carry the realized PnL. The trade log is
// append-only for the life of the process.
type Trade struct {
	// ID is the unique identifier of the trade record.
	ID string `yaml:"id" json:"id"`
	// OrderID is the exchange order identifier, when known.
	OrderID string `yaml:"order_id" json:"order_id"`
	// Symbol is the trading pair.
	Symbol string `yaml:"symbol" json:"symbol"`
	// Side is the order direction.
	Side OrderSide `yaml:"side" json:"side"`
	// Price is the execution price.
	Price float64 `yaml:"price" json:"price"`
	// Quantity is the executed quantity.
	Quantity float64 `yaml:"quantity" json:"quantity"`
	// Commission is the fee paid for this execution.
	Commission float64 `yaml:"commission" json:"commission"`
	// Time is the execution time.
	Time time.Time `yaml:"time" json:"time"`
	// Realized is true when this record closes a position.
	Realized bool `yaml:"realized" json:"realized"`
	// PnL is the realized profit, meaningful only when Realized is true.
	PnL float64 `yaml:"pnl" json:"pnl"`
	// PnLPercent is PnL relative to the entry notional.
	PnLPercent float64 `yaml:"pnl_percent" json:"pnl_percent"`
}
