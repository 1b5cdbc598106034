package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/helix-lab/helix-trading/internal/types"
	"github.com/helix-lab/helix-trading/pkg/errors"
)

// Fake is a scripted in-memory Exchange for tests. Bars and prices are
// preloaded per symbol; failures and latency can be injected per call.
// All methods are safe for concurrent use.
type Fake struct {
	mu sync.Mutex

	ready     bool
	bars      map[string][]types.Bar
	prices    map[string]float64
	balances  []Balance
	nextOrder int

	// Orders records every accepted order submission in order.
	Orders []OrderRequest

	// FailSubmit makes SubmitOrder fail until cleared.
	FailSubmit bool
	// FailBars makes GetHistoricalBars fail until cleared.
	FailBars bool
	// Delay is applied before each blocking call returns, honoring
	// context cancellation.
	Delay time.Duration
}

// NewFake creates a ready fake with no data loaded.
func NewFake() *Fake {
	return &Fake{
		ready:    true,
		bars:     make(map[string][]types.Bar),
		prices:   make(map[string]float64),
		balances: []Balance{{Asset: "USDT", Free: 10000, Locked: 0}},
	}
}

// SetReady toggles the readiness flag.
func (f *Fake) SetReady(ready bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = ready
}

// LoadBars scripts the historical bars for a symbol and sets the current
// price to the last close.
func (f *Fake) LoadBars(symbol string, bars []types.Bar) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.bars[symbol] = bars
	if len(bars) > 0 {
		f.prices[symbol] = bars[len(bars)-1].Close
	}
}

// SetPrice scripts the current price for a symbol.
func (f *Fake) SetPrice(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = price
}

// Ready implements Exchange.
func (f *Fake) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.ready
}

// GetHistoricalBars implements Exchange.
func (f *Fake) GetHistoricalBars(ctx context.Context, symbol, _ string, limit int) ([]types.Bar, error) {
	if err := f.sleep(ctx); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailBars {
		return nil, errors.Newf(errors.ErrCodeDataFetchFailed, "scripted bar fetch failure for %s", symbol)
	}

	bars, ok := f.bars[symbol]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeNoDataFound, "no bars scripted for %s", symbol)
	}

	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}

	out := make([]types.Bar, len(bars))
	copy(out, bars)

	return out, nil
}

// GetCurrentPrice implements Exchange.
func (f *Fake) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if err := f.sleep(ctx); err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	price, ok := f.prices[symbol]
	if !ok {
		return 0, errors.Newf(errors.ErrCodeNoDataFound, "no price scripted for %s", symbol)
	}

	return price, nil
}

// GetAccountBalances implements Exchange.
func (f *Fake) GetAccountBalances(ctx context.Context) ([]Balance, error) {
	if err := f.sleep(ctx); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Balance, len(f.balances))
	copy(out, f.balances)

	return out, nil
}

// SubmitOrder implements Exchange. Accepted orders fill immediately at
// the scripted price (falling back to the request price).
func (f *Fake) SubmitOrder(ctx context.Context, req OrderRequest) (OrderAck, error) {
	if err := f.sleep(ctx); err != nil {
		return OrderAck{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailSubmit {
		return OrderAck{}, errors.Newf(errors.ErrCodeOrderFailed, "scripted order failure for %s", req.Symbol)
	}

	f.nextOrder++
	f.Orders = append(f.Orders, req)

	price := req.Price
	if scripted, ok := f.prices[req.Symbol]; ok && price == 0 {
		price = scripted
	}

	return OrderAck{
		OrderID:          fmt.Sprintf("fake-%d", f.nextOrder),
		ExecutedPrice:    price,
		ExecutedQuantity: req.Quantity,
		Commission:       0,
	}, nil
}

// CancelOrder implements Exchange.
func (f *Fake) CancelOrder(ctx context.Context, _, _ string) error {
	return f.sleep(ctx)
}

// CancelAllOrders implements Exchange.
func (f *Fake) CancelAllOrders(ctx context.Context, _ string) error {
	return f.sleep(ctx)
}

// SubscribeToPrice implements Exchange. The fake never emits; tests
// drive the orchestrator through polling instead.
func (f *Fake) SubscribeToPrice(_ string, _ func(price float64)) (Unsubscribe, error) {
	return func() {}, nil
}

// SubscribeToBars implements Exchange.
func (f *Fake) SubscribeToBars(_, _ string, _ func(bar types.Bar)) (Unsubscribe, error) {
	return func() {}, nil
}

// OrderCount returns the number of accepted orders.
func (f *Fake) OrderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.Orders)
}

func (f *Fake) sleep(ctx context.Context) error {
	f.mu.Lock()
	delay := f.Delay
	f.mu.Unlock()

	if delay <= 0 {
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// Ensure Fake implements Exchange.
var _ Exchange = (*Fake)(nil)
