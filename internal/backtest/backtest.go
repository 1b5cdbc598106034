// Package backtest replays historical bars through a strategy and the
// shared position lifecycle, producing an equity curve and trade
// statistics identical in shape to live results.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/helix-lab/helix-trading/internal/engine"
	"github.com/helix-lab/helix-trading/internal/exchange"
	"github.com/helix-lab/helix-trading/internal/indicator"
	"github.com/helix-lab/helix-trading/internal/logger"
	"github.com/helix-lab/helix-trading/internal/risk"
	"github.com/helix-lab/helix-trading/internal/strategy"
	"github.com/helix-lab/helix-trading/internal/types"
	"github.com/helix-lab/helix-trading/pkg/errors"
)

// CloseReasonEndOfData marks the forced close of the last open position
// when the replay runs out of bars.
const CloseReasonEndOfData = "end_of_data"

// ProgressFunc receives replay progress as (processed, total) bars.
type ProgressFunc func(done, total int)

// simExecutor fills every order instantly at the requested price with a
// flat commission rate. Order IDs are sequential so runs are
// reproducible.
type simExecutor struct {
	nextOrder      int
	commissionRate float64
}

func (s *simExecutor) SubmitOrder(_ context.Context, req exchange.OrderRequest) (exchange.OrderAck, error) {
	s.nextOrder++

	return exchange.OrderAck{
		OrderID:          fmt.Sprintf("sim-%d", s.nextOrder),
		ExecutedPrice:    req.Price,
		ExecutedQuantity: req.Quantity,
		Commission:       req.Price * req.Quantity * s.commissionRate,
	}, nil
}

// Engine replays one symbol's bars through a strategy.
type Engine struct {
	log *logger.Logger

	// CommissionRate is charged per fill as a fraction of notional.
	CommissionRate float64

	progress optional.Option[ProgressFunc]
}

// NewEngine creates a backtest engine with zero commission.
func NewEngine(log *logger.Logger) *Engine {
	return &Engine{
		log:            log,
		CommissionRate: 0,
		progress:       optional.None[ProgressFunc](),
	}
}

// SetProgressCallback registers a progress callback for long replays.
func (e *Engine) SetProgressCallback(fn ProgressFunc) {
	e.progress = optional.Some(fn)
}

// Run replays the bars through the configured strategy and returns the
// full result. Bars must be ascending by open time and cover at least
// the indicator warm-up.
func (e *Engine) Run(bars []types.Bar, cfg types.StrategyConfig, initialBalance float64) (types.BacktestResult, error) {
	if err := cfg.Validate(); err != nil {
		return types.BacktestResult{}, err
	}

	if initialBalance <= 0 {
		return types.BacktestResult{}, errors.Newf(errors.ErrCodeBacktestConfigError,
			"initial balance must be positive, got %f", initialBalance)
	}

	if len(bars) <= indicator.WarmupBars {
		return types.BacktestResult{}, errors.NewInsufficientDataErrorf(
			indicator.WarmupBars+1, len(bars), symbolOf(bars),
			"backtest needs more than %d bars, got %d", indicator.WarmupBars, len(bars))
	}

	strat, err := strategy.ForName(cfg.Name)
	if err != nil {
		return types.BacktestResult{}, err
	}

	executor := &simExecutor{nextOrder: 0, commissionRate: e.CommissionRate}
	positions := engine.NewPositionManager(executor, nil, e.log)

	clock := bars[indicator.WarmupBars].CloseTime
	positions.SetClock(func() time.Time { return clock })

	symbol := symbolOf(bars)
	balance := initialBalance
	total := len(bars) - indicator.WarmupBars
	equityCurve := make([]types.EquityPoint, 0, total)

	ctx := context.Background()

	for i := indicator.WarmupBars; i < len(bars); i++ {
		bar := bars[i]
		clock = bar.CloseTime
		window := bars[:i+1]

		if position, open := positions.Get(symbol); open {
			if exitPrice, reason, triggered := intrabarExit(position, bar); triggered {
				trade, closeErr := positions.Close(ctx, symbol, exitPrice, reason)
				if closeErr != nil {
					return types.BacktestResult{}, closeErr
				}

				balance += trade.PnL
			}
		}

		signal, sigErr := strat.GenerateSignal(window, cfg)
		if sigErr != nil {
			return types.BacktestResult{}, errors.Wrapf(errors.ErrCodeStrategyConfigError, sigErr,
				"signal generation failed at bar %d", i)
		}

		if position, open := positions.Get(symbol); open {
			opposite := (position.Side == types.PositionSideLong && signal.IsSell()) ||
				(position.Side == types.PositionSideShort && signal.IsBuy())

			// Any opposite non-neutral signal closes, regardless of its
			// confidence; only the reversal entry is confidence-gated.
			if opposite {
				trade, closeErr := positions.Close(ctx, symbol, bar.Close, engine.CloseReasonSignal)
				if closeErr != nil {
					return types.BacktestResult{}, closeErr
				}

				balance += trade.PnL
			}
		}

		// Re-checked rather than chained off the branch above: a close on
		// this bar leaves the book flat for the reversal entry.
		if _, open := positions.Get(symbol); !open && signal.IsActionable(strategy.MinOpenConfidence) {
			if !(signal.IsSell() && !cfg.Risk.AllowShort) {
				if ok, _ := risk.CanOpenPosition(positions.Count(), positions.DailyPnL(clock), cfg.Risk); ok {
					quantity := risk.PositionSize(balance, cfg.Risk.MaxPositionSizePercent, bar.Close, signal.StopLoss)
					if maxAffordable := balance / bar.Close; quantity > maxAffordable {
						quantity = maxAffordable
					}

					if quantity > 0 {
						entry := signal
						entry.Price = bar.Close

						if _, openErr := positions.Open(ctx, entry, quantity); openErr != nil {
							return types.BacktestResult{}, openErr
						}

						// The entry fee comes straight out of cash.
						balance -= bar.Close * quantity * e.CommissionRate
					}
				}
			}
		}

		equity := balance

		if position, open := positions.Get(symbol); open {
			equity += position.PnLAt(bar.Close)
		}

		equityCurve = append(equityCurve, types.EquityPoint{Time: bar.CloseTime, Balance: equity})

		if fn, take := e.progress.Take(); take == nil {
			fn(i-indicator.WarmupBars+1, total)
		}
	}

	// Any position left open is closed at the final bar.
	if _, open := positions.Get(symbol); open {
		lastBar := bars[len(bars)-1]

		trade, closeErr := positions.Close(ctx, symbol, lastBar.Close, CloseReasonEndOfData)
		if closeErr != nil {
			return types.BacktestResult{}, closeErr
		}

		balance += trade.PnL
		equityCurve[len(equityCurve)-1].Balance = balance
	}

	trades := positions.Trades()
	stats := risk.ComputeStats(trades)
	stats.MaxDrawdown = risk.MaxDrawdown(equityCurve)

	result := types.BacktestResult{
		Symbol:             symbol,
		StrategyName:       cfg.Name,
		StartTime:          bars[indicator.WarmupBars].OpenTime,
		EndTime:            bars[len(bars)-1].CloseTime,
		InitialBalance:     initialBalance,
		FinalBalance:       balance,
		TotalReturnPercent: (balance - initialBalance) / initialBalance * 100,
		BuyAndHoldPnL:      buyAndHoldPnL(bars, initialBalance),
		Trades:             trades,
		Stats:              stats,
		EquityCurve:        equityCurve,
		DrawdownCurve:      risk.DrawdownCurve(equityCurve),
	}

	e.log.Debug("Backtest finished",
		zap.String("symbol", symbol),
		zap.String("strategy", cfg.Name),
		zap.Int("trades", stats.TotalTrades),
		zap.Float64("return_percent", result.TotalReturnPercent),
	)

	return result, nil
}

// intrabarExit checks the protective levels against the bar's range. The
// stop is assumed to fill before the target when both lie inside one
// bar.
func intrabarExit(position types.Position, bar types.Bar) (float64, string, bool) {
	stop, stopErr := position.StopLoss.Take()
	take, takeErr := position.TakeProfit.Take()
	hasStop := stopErr == nil
	hasTake := takeErr == nil

	if position.Side == types.PositionSideLong {
		if hasStop && bar.Low <= stop {
			return stop, engine.CloseReasonStopLoss, true
		}

		if hasTake && bar.High >= take {
			return take, engine.CloseReasonTakeProfit, true
		}

		return 0, "", false
	}

	if hasStop && bar.High >= stop {
		return stop, engine.CloseReasonStopLoss, true
	}

	if hasTake && bar.Low <= take {
		return take, engine.CloseReasonTakeProfit, true
	}

	return 0, "", false
}

// buyAndHoldPnL is the benchmark: the whole balance invested at the
// first tradable close and held to the end.
func buyAndHoldPnL(bars []types.Bar, initialBalance float64) float64 {
	entry := bars[indicator.WarmupBars].Close
	if entry <= 0 {
		return 0
	}

	quantity := initialBalance / entry

	return quantity * (bars[len(bars)-1].Close - entry)
}

func symbolOf(bars []types.Bar) string {
	if len(bars) == 0 {
		return ""
	}

	return bars[0].Symbol
}
