package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/helix-lab/helix-trading/internal/exchange"
	"github.com/helix-lab/helix-trading/internal/indicator"
	"github.com/helix-lab/helix-trading/internal/logger"
	"github.com/helix-lab/helix-trading/internal/risk"
	"github.com/helix-lab/helix-trading/internal/strategy"
	"github.com/helix-lab/helix-trading/internal/types"
	"github.com/helix-lab/helix-trading/pkg/errors"
)

const (
	// barFetchPadding is fetched on top of the warm-up so the breakout
	// window and trailing averages always have data behind them.
	barFetchPadding = 100

	// reoptimizeInterval is how often the adaptive selector re-evaluates
	// the active strategy.
	reoptimizeInterval = 24 * time.Hour

	// quoteAsset is the balance used for position sizing.
	quoteAsset = "USDT"

	// defaultFallbackBalance is used when the account balance cannot be
	// fetched.
	defaultFallbackBalance = 10000.0

	// errorRingSize bounds the errors retained in status snapshots.
	errorRingSize = 50
)

// StrategySelector proposes a strategy configuration for a symbol. The
// returned config must preserve the symbols and risk limits of the
// current one; the reason string describes the choice. When force is
// set the selector must recompute instead of serving a cached result.
type StrategySelector interface {
	Select(ctx context.Context, symbol string, current types.StrategyConfig, force bool) (types.StrategyConfig, string, error)
}

// Orchestrator drives the trading loop: on each cycle it fetches bars,
// generates signals and applies the position lifecycle rules per symbol.
// Lifecycle is Stopped -> Running -> Stopped; Start and Stop are safe to
// call from any goroutine.
type Orchestrator struct {
	mu    sync.Mutex
	cfg   types.StrategyConfig
	strat strategy.Strategy

	exch      exchange.Exchange
	positions *PositionManager
	bus       *Bus
	log       *logger.Logger
	selector  StrategySelector
	errRing   *types.ErrorRing

	running       atomic.Bool
	cycleInFlight atomic.Bool
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	startTime     time.Time

	lastReoptimize time.Time
	now            func() time.Time

	fallbackBalance float64
}

// NewOrchestrator creates a stopped orchestrator for the given config.
func NewOrchestrator(cfg types.StrategyConfig, exch exchange.Exchange, bus *Bus, log *logger.Logger) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	strat, err := strategy.ForName(cfg.Name)
	if err != nil {
		return nil, err
	}

	if bus == nil {
		bus = NewBus()
	}

	return &Orchestrator{
		mu:              sync.Mutex{},
		cfg:             cfg,
		strat:           strat,
		exch:            exch,
		positions:       NewPositionManager(exch, bus, log),
		bus:             bus,
		log:             log,
		selector:        nil,
		errRing:         types.NewErrorRing(errorRingSize),
		running:         atomic.Bool{},
		cycleInFlight:   atomic.Bool{},
		cancel:          nil,
		wg:              sync.WaitGroup{},
		startTime:       time.Time{},
		lastReoptimize:  time.Time{},
		now:             time.Now,
		fallbackBalance: defaultFallbackBalance,
	}, nil
}

// SetSelector wires the adaptive strategy selector. Must be called
// before Start.
func (o *Orchestrator) SetSelector(selector StrategySelector) {
	o.selector = selector
}

// Positions exposes the position manager.
func (o *Orchestrator) Positions() *PositionManager {
	return o.positions
}

// Bus exposes the event bus.
func (o *Orchestrator) Bus() *Bus {
	return o.bus
}

// Start transitions to Running and launches the cycle loop. The first
// cycle runs immediately; subsequent cycles follow the timeframe
// schedule.
func (o *Orchestrator) Start(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return errors.New(errors.ErrCodeEngineAlreadyRunning, "orchestrator is already running")
	}

	o.mu.Lock()
	timeframe := o.cfg.Timeframe
	symbols := o.cfg.Symbols
	name := o.cfg.Name
	o.mu.Unlock()

	interval, err := types.IntervalDuration(timeframe)
	if err != nil {
		o.running.Store(false)

		return err
	}

	if !o.exch.Ready() {
		o.running.Store(false)

		return errors.New(errors.ErrCodeExchangeNotReady, "exchange is not ready")
	}

	runCtx, cancel := context.WithCancel(ctx)

	o.mu.Lock()
	o.cancel = cancel
	o.startTime = o.now()
	// The starting config is a fresh selection; the first
	// re-optimization comes a full interval later.
	o.lastReoptimize = o.startTime
	o.mu.Unlock()

	o.log.Info("Orchestrator started",
		zap.String("strategy", name),
		zap.Strings("symbols", symbols),
		zap.String("timeframe", timeframe),
	)
	o.publishStatus()

	o.wg.Add(1)

	go o.run(runCtx, interval)

	return nil
}

// Stop transitions to Stopped and waits for the in-flight cycle to
// finish. Stopping an already stopped orchestrator logs a warning and
// returns nil.
func (o *Orchestrator) Stop() error {
	if !o.running.CompareAndSwap(true, false) {
		o.log.Warn("Stop called on a stopped orchestrator")

		return nil
	}

	o.mu.Lock()
	cancel := o.cancel
	o.cancel = nil
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	o.wg.Wait()

	o.log.Info("Orchestrator stopped")
	o.publishStatus()

	return nil
}

// Status returns an observable snapshot of the orchestrator.
func (o *Orchestrator) Status() types.BotStatus {
	o.mu.Lock()
	startTime := o.startTime
	o.mu.Unlock()

	openPositions := o.positions.List()

	var unrealized float64
	for _, position := range openPositions {
		unrealized += position.UnrealizedPnL
	}

	return types.BotStatus{
		IsRunning:       o.running.Load(),
		StartTime:       startTime,
		ActivePositions: len(openPositions),
		TotalTrades:     len(o.positions.Trades()),
		CurrentPnL:      o.positions.TotalPnL() + unrealized,
		Errors:          o.errRing.Snapshot(),
	}
}

// UpdateConfig applies a partial config change. The merged config is
// validated before it replaces the active one; an invalid patch leaves
// the configuration untouched.
func (o *Orchestrator) UpdateConfig(patch types.StrategyConfigPatch) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	merged := o.cfg.Merge(patch)
	if err := merged.Validate(); err != nil {
		return err
	}

	if merged.Name != o.cfg.Name {
		strat, err := strategy.ForName(merged.Name)
		if err != nil {
			return err
		}

		o.strat = strat
	}

	o.cfg = merged

	o.log.Info("Configuration updated", zap.String("strategy", merged.Name))
	o.bus.Publish(Event{Type: EventStrategyUpdated, Message: merged.Name})

	return nil
}

// Config returns a copy of the active configuration.
func (o *Orchestrator) Config() types.StrategyConfig {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.cfg
}

func (o *Orchestrator) run(ctx context.Context, interval time.Duration) {
	defer o.wg.Done()

	o.RunCycle(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.RunCycle(ctx)
		}
	}
}

// RunCycle executes one analysis cycle: the re-optimization check first,
// then every configured symbol in order. A cycle still in flight is
// never queued behind: the new tick is skipped with a warning.
// Per-symbol failures are isolated; the cycle continues with the
// remaining symbols.
func (o *Orchestrator) RunCycle(ctx context.Context) {
	if !o.cycleInFlight.CompareAndSwap(false, true) {
		o.log.Warn("Previous cycle still in flight, skipping tick")

		return
	}
	defer o.cycleInFlight.Store(false)

	o.mu.Lock()
	lastReopt := o.lastReoptimize
	o.mu.Unlock()

	if o.selector != nil && o.now().Sub(lastReopt) >= reoptimizeInterval {
		o.reoptimize(ctx)

		o.mu.Lock()
		o.lastReoptimize = o.now()
		o.mu.Unlock()
	}

	o.mu.Lock()
	cfg := o.cfg
	strat := o.strat
	o.mu.Unlock()

	balance := o.fetchBalance(ctx)

	for _, symbol := range cfg.Symbols {
		if ctx.Err() != nil {
			return
		}

		err := o.processSymbol(ctx, symbol, cfg, strat, balance)
		if err == nil {
			continue
		}

		o.errRing.Append(err.Error())

		if errors.IsInsufficientDataError(err) {
			o.log.Warn("Symbol skipped, not enough bars",
				zap.String("symbol", symbol),
				zap.Error(err),
			)

			continue
		}

		o.log.Error("Symbol cycle failed",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) processSymbol(ctx context.Context, symbol string, cfg types.StrategyConfig, strat strategy.Strategy, balance float64) error {
	limit := indicator.WarmupBars + cfg.Indicators.BreakoutLookback + barFetchPadding

	bars, err := o.exch.GetHistoricalBars(ctx, symbol, cfg.Timeframe, limit)
	if err != nil {
		return err
	}

	if ctx.Err() != nil {
		return nil
	}

	signal, err := strat.GenerateSignal(bars, cfg)
	if err != nil {
		return err
	}

	o.bus.Publish(Event{Type: EventSignal, Signal: &signal})

	price, err := o.exch.GetCurrentPrice(ctx, symbol)
	if err != nil {
		// Stale but usable; the close of the latest bar stands in.
		price = bars[len(bars)-1].Close
	}

	if ctx.Err() != nil {
		return nil
	}

	o.positions.UpdatePrice(symbol, price)

	if position, open := o.positions.Get(symbol); open {
		closedOnSignal, err := o.manageOpenPosition(ctx, position, signal, price)
		if err != nil || !closedOnSignal {
			return err
		}

		// A signal-triggered close falls through so the reversal can
		// open in the same cycle.
	}

	return o.maybeOpenPosition(ctx, signal, price, balance, cfg)
}

// manageOpenPosition applies the exit rules: protective levels first,
// then any opposite non-neutral signal, regardless of its confidence.
// Reports whether the position was closed on the signal, so the caller
// can evaluate the reversal entry.
func (o *Orchestrator) manageOpenPosition(ctx context.Context, position types.Position, signal types.Signal, price float64) (bool, error) {
	if reason, triggered := ExitReason(position, price); triggered {
		_, err := o.positions.Close(ctx, position.Symbol, price, reason)

		return false, err
	}

	opposite := (position.Side == types.PositionSideLong && signal.IsSell()) ||
		(position.Side == types.PositionSideShort && signal.IsBuy())

	if opposite {
		if _, err := o.positions.Close(ctx, position.Symbol, price, CloseReasonSignal); err != nil {
			return false, err
		}

		return true, nil
	}

	return false, nil
}

// maybeOpenPosition applies the entry rules: actionable signal, risk
// limits, correlation guard, then sizing. Blocked entries are logged,
// never errors.
func (o *Orchestrator) maybeOpenPosition(ctx context.Context, signal types.Signal, price float64, balance float64, cfg types.StrategyConfig) error {
	if !signal.IsActionable(strategy.MinOpenConfidence) {
		return nil
	}

	if signal.IsSell() && !cfg.Risk.AllowShort {
		o.log.Debug("Short entry skipped, shorting disabled",
			zap.String("symbol", signal.Symbol),
		)

		return nil
	}

	if ok, reason := risk.CanOpenPosition(o.positions.Count(), o.positions.DailyPnL(time.Now()), cfg.Risk); !ok {
		o.log.Warn("Entry blocked by risk limits",
			zap.String("symbol", signal.Symbol),
			zap.String("reason", reason),
		)

		return nil
	}

	candidateSide := types.PositionSideLong
	if signal.IsSell() {
		candidateSide = types.PositionSideShort
	}

	projected := append(o.positions.List(), types.Position{Side: candidateSide})
	if risk.CheckCorrelation(projected) {
		o.log.Warn("Entry blocked by correlation guard",
			zap.String("symbol", signal.Symbol),
			zap.String("side", string(candidateSide)),
		)

		return nil
	}

	quantity := risk.PositionSize(balance, cfg.Risk.MaxPositionSizePercent, price, signal.StopLoss)
	if quantity <= 0 {
		o.log.Debug("Entry skipped, zero position size",
			zap.String("symbol", signal.Symbol),
		)

		return nil
	}

	// Spot quantity never exceeds what the balance can buy.
	if maxAffordable := balance / price; quantity > maxAffordable {
		quantity = maxAffordable
	}

	entry := signal
	entry.Price = price

	_, err := o.positions.Open(ctx, entry, quantity)

	return err
}

// reoptimize consults the adaptive selector and swaps the active
// strategy when it proposes a different configuration. Symbols and risk
// limits always carry over.
func (o *Orchestrator) reoptimize(ctx context.Context) {
	if o.selector == nil {
		return
	}

	o.mu.Lock()
	cfg := o.cfg
	o.mu.Unlock()

	if len(cfg.Symbols) == 0 {
		return
	}

	// The orchestrator owns the cadence, so the selector's own cache is
	// always bypassed.
	proposed, reason, err := o.selector.Select(ctx, cfg.Symbols[0], cfg, true)
	if err != nil {
		o.errRing.Append(err.Error())
		o.log.Error("Adaptive re-optimization failed", zap.Error(err))

		return
	}

	proposed.Symbols = cfg.Symbols
	proposed.Risk = cfg.Risk

	strat, err := strategy.ForName(proposed.Name)
	if err != nil {
		o.errRing.Append(err.Error())

		return
	}

	o.mu.Lock()
	o.cfg = proposed
	o.strat = strat
	o.mu.Unlock()

	o.log.Info("Strategy re-optimized",
		zap.String("strategy", proposed.Name),
		zap.String("reason", reason),
	)
	o.bus.Publish(Event{Type: EventStrategyUpdated, Message: reason})
}

func (o *Orchestrator) fetchBalance(ctx context.Context) float64 {
	balances, err := o.exch.GetAccountBalances(ctx)
	if err != nil {
		o.log.Warn("Balance fetch failed, using fallback",
			zap.Float64("fallback", o.fallbackBalance),
			zap.Error(err),
		)

		return o.fallbackBalance
	}

	for _, balance := range balances {
		if balance.Asset == quoteAsset {
			return balance.Free
		}
	}

	return o.fallbackBalance
}

func (o *Orchestrator) publishStatus() {
	status := o.Status()
	o.bus.Publish(Event{Type: EventStatusChange, Status: &status})
}
