package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/helix-lab/helix-trading/internal/exchange"
	"github.com/helix-lab/helix-trading/internal/logger"
	"github.com/helix-lab/helix-trading/internal/types"
	"github.com/helix-lab/helix-trading/pkg/errors"
)

// Close reasons recorded on exit trades.
const (
	CloseReasonSignal     = "opposite_signal"
	CloseReasonStopLoss   = "stop_loss"
	CloseReasonTakeProfit = "take_profit"
	CloseReasonShutdown   = "shutdown"
)

// OrderExecutor submits orders. The live orchestrator passes the
// exchange; backtests pass a simulated fill executor.
type OrderExecutor interface {
	SubmitOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderAck, error)
}

// PositionManager owns the position lifecycle: at most one open position
// per symbol, an append-only trade log, and realized PnL bucketed by UTC
// calendar day. A failed order submission never mutates state.
type PositionManager struct {
	mu sync.Mutex

	executor  OrderExecutor
	bus       *Bus
	log       *logger.Logger
	positions map[string]*types.Position
	trades    []types.Trade
	dailyPnL  map[string]float64
	now       func() time.Time
}

// NewPositionManager creates an empty manager submitting through the
// given executor.
func NewPositionManager(executor OrderExecutor, bus *Bus, log *logger.Logger) *PositionManager {
	return &PositionManager{
		executor:  executor,
		bus:       bus,
		log:       log,
		positions: make(map[string]*types.Position),
		trades:    nil,
		dailyPnL:  make(map[string]float64),
		now:       time.Now,
	}
}

// SetClock overrides the time source. Backtests point it at the
// simulated bar clock so trade times and daily buckets follow the
// replayed data.
func (m *PositionManager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Open enters a position from an actionable signal. The entry order is
// submitted first; any submission failure leaves the manager unchanged.
func (m *PositionManager) Open(ctx context.Context, signal types.Signal, quantity float64) (types.Position, error) {
	if quantity <= 0 {
		return types.Position{}, errors.Newf(errors.ErrCodeInvalidParameter, "position quantity must be positive, got %f", quantity)
	}

	side := types.PositionSideLong
	orderSide := types.OrderSideBuy

	if signal.IsSell() {
		side = types.PositionSideShort
		orderSide = types.OrderSideSell
	}

	m.mu.Lock()

	if _, exists := m.positions[signal.Symbol]; exists {
		m.mu.Unlock()

		return types.Position{}, errors.Newf(errors.ErrCodePositionExists, "position already open for %s", signal.Symbol)
	}

	ack, err := m.executor.SubmitOrder(ctx, exchange.OrderRequest{
		Symbol:   signal.Symbol,
		Side:     orderSide,
		Quantity: quantity,
		Price:    signal.Price,
		Reason:   signal.StrategyName,
	})
	if err != nil {
		m.mu.Unlock()

		return types.Position{}, errors.Wrapf(errors.ErrCodeOrderFailed, err, "entry order for %s failed", signal.Symbol)
	}

	openTime := m.now()

	position := &types.Position{
		ID:                   uuid.NewString(),
		Symbol:               signal.Symbol,
		Side:                 side,
		EntryPrice:           ack.ExecutedPrice,
		CurrentPrice:         ack.ExecutedPrice,
		Quantity:             ack.ExecutedQuantity,
		Leverage:             1,
		UnrealizedPnL:        0,
		UnrealizedPnLPercent: 0,
		StopLoss:             optional.None[float64](),
		TakeProfit:           optional.None[float64](),
		OpenTime:             openTime,
	}

	if signal.StopLoss > 0 {
		position.StopLoss = optional.Some(signal.StopLoss)
	}

	if signal.TakeProfit > 0 {
		position.TakeProfit = optional.Some(signal.TakeProfit)
	}

	m.positions[signal.Symbol] = position

	entry := types.Trade{
		ID:         uuid.NewString(),
		OrderID:    ack.OrderID,
		Symbol:     signal.Symbol,
		Side:       orderSide,
		Price:      ack.ExecutedPrice,
		Quantity:   ack.ExecutedQuantity,
		Commission: ack.Commission,
		Time:       openTime,
		Realized:   false,
		PnL:        0,
		PnLPercent: 0,
	}
	m.trades = append(m.trades, entry)

	snapshot := *position
	m.mu.Unlock()

	m.log.Info("Position opened",
		zap.String("symbol", signal.Symbol),
		zap.String("side", string(side)),
		zap.Float64("entry_price", snapshot.EntryPrice),
		zap.Float64("quantity", snapshot.Quantity),
		zap.String("strategy", signal.StrategyName),
	)

	// Published outside the lock so handlers may query the manager.
	m.publish(Event{Type: EventPositionOpened, Time: openTime, Position: &snapshot, Trade: &entry})

	return snapshot, nil
}

// Close exits the position for the symbol at the given price. The exit
// order is submitted first; any submission failure leaves the position
// open.
func (m *PositionManager) Close(ctx context.Context, symbol string, price float64, reason string) (types.Trade, error) {
	m.mu.Lock()

	position, exists := m.positions[symbol]
	if !exists {
		m.mu.Unlock()

		return types.Trade{}, errors.Newf(errors.ErrCodePositionNotFound, "no open position for %s", symbol)
	}

	orderSide := types.OrderSideSell
	if position.Side == types.PositionSideShort {
		orderSide = types.OrderSideBuy
	}

	ack, err := m.executor.SubmitOrder(ctx, exchange.OrderRequest{
		Symbol:   symbol,
		Side:     orderSide,
		Quantity: position.Quantity,
		Price:    price,
		Reason:   reason,
	})
	if err != nil {
		m.mu.Unlock()

		return types.Trade{}, errors.Wrapf(errors.ErrCodeOrderFailed, err, "exit order for %s failed", symbol)
	}

	closeTime := m.now()
	pnl := position.PnLAt(ack.ExecutedPrice) - ack.Commission

	pnlPercent := 0.0
	if notional := position.EntryPrice * position.Quantity; notional != 0 {
		pnlPercent = pnl / notional * 100
	}

	trade := types.Trade{
		ID:         uuid.NewString(),
		OrderID:    ack.OrderID,
		Symbol:     symbol,
		Side:       orderSide,
		Price:      ack.ExecutedPrice,
		Quantity:   position.Quantity,
		Commission: ack.Commission,
		Time:       closeTime,
		Realized:   true,
		PnL:        pnl,
		PnLPercent: pnlPercent,
	}

	delete(m.positions, symbol)
	m.trades = append(m.trades, trade)
	m.dailyPnL[closeTime.UTC().Format(time.DateOnly)] += pnl

	closed := *position
	closed.UpdatePrice(ack.ExecutedPrice)
	m.mu.Unlock()

	m.log.Info("Position closed",
		zap.String("symbol", symbol),
		zap.String("reason", reason),
		zap.Float64("exit_price", ack.ExecutedPrice),
		zap.Float64("pnl", pnl),
	)

	m.publish(Event{Type: EventPositionClosed, Time: closeTime, Position: &closed, Trade: &trade})

	return trade, nil
}

// CloseAll exits every open position at its last known price. Errors are
// collected per symbol; the first error is returned after all attempts.
func (m *PositionManager) CloseAll(ctx context.Context, reason string) error {
	m.mu.Lock()
	symbols := make([]string, 0, len(m.positions))
	prices := make(map[string]float64, len(m.positions))

	for symbol, position := range m.positions {
		symbols = append(symbols, symbol)
		prices[symbol] = position.CurrentPrice
	}
	m.mu.Unlock()

	var firstErr error

	for _, symbol := range symbols {
		if _, err := m.Close(ctx, symbol, prices[symbol], reason); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// UpdatePrice refreshes the mark price of an open position, if any.
func (m *PositionManager) UpdatePrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if position, exists := m.positions[symbol]; exists {
		position.UpdatePrice(price)
	}
}

// ExitReason reports whether the price breaches the position's protective
// levels. The stop takes precedence over the target when both trigger.
func ExitReason(position types.Position, price float64) (string, bool) {
	stop, stopErr := position.StopLoss.Take()
	take, takeErr := position.TakeProfit.Take()
	hasStop := stopErr == nil
	hasTake := takeErr == nil

	if position.Side == types.PositionSideLong {
		if hasStop && price <= stop {
			return CloseReasonStopLoss, true
		}

		if hasTake && price >= take {
			return CloseReasonTakeProfit, true
		}

		return "", false
	}

	if hasStop && price >= stop {
		return CloseReasonStopLoss, true
	}

	if hasTake && price <= take {
		return CloseReasonTakeProfit, true
	}

	return "", false
}

// Get returns a copy of the open position for the symbol.
func (m *PositionManager) Get(symbol string) (types.Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	position, exists := m.positions[symbol]
	if !exists {
		return types.Position{}, false
	}

	return *position, true
}

// List returns copies of all open positions.
func (m *PositionManager) List() []types.Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]types.Position, 0, len(m.positions))
	for _, position := range m.positions {
		out = append(out, *position)
	}

	return out
}

// Count returns the number of open positions.
func (m *PositionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.positions)
}

// Trades returns a copy of the append-only trade log.
func (m *PositionManager) Trades() []types.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]types.Trade, len(m.trades))
	copy(out, m.trades)

	return out
}

// DailyPnL returns the realized PnL for the UTC calendar day of t.
func (m *PositionManager) DailyPnL(t time.Time) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.dailyPnL[t.UTC().Format(time.DateOnly)]
}

// TotalPnL returns the realized PnL over the life of the process.
func (m *PositionManager) TotalPnL() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total float64
	for _, trade := range m.trades {
		if trade.Realized {
			total += trade.PnL
		}
	}

	return total
}

func (m *PositionManager) publish(event Event) {
	if m.bus != nil {
		m.bus.Publish(event)
	}
}
