// Package optimizer searches indicator parameter combinations by
// replaying them through the backtest engine, and validates them
// out-of-sample with walk-forward analysis.
package optimizer

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/helix-lab/helix-trading/internal/backtest"
	"github.com/helix-lab/helix-trading/internal/indicator"
	"github.com/helix-lab/helix-trading/internal/logger"
	"github.com/helix-lab/helix-trading/internal/types"
	"github.com/helix-lab/helix-trading/pkg/errors"
)

// ParameterSpace enumerates the candidate values per tunable parameter.
// An empty dimension keeps the base configuration's value.
type ParameterSpace struct {
	RSIPeriods    []int     `yaml:"rsi_periods" json:"rsi_periods"`
	RSIOverbought []float64 `yaml:"rsi_overbought" json:"rsi_overbought"`
	RSIOversold   []float64 `yaml:"rsi_oversold" json:"rsi_oversold"`
	MACDFast      []int     `yaml:"macd_fast" json:"macd_fast"`
	MACDSlow      []int     `yaml:"macd_slow" json:"macd_slow"`
}

// Enumerate expands the space against a base parameter set, in a fixed
// nesting order so ties always resolve to the same combination.
// Combinations with a MACD fast period at or above the slow period are
// skipped.
func (s ParameterSpace) Enumerate(base types.IndicatorParams) []types.IndicatorParams {
	rsiPeriods := orDefaultInts(s.RSIPeriods, base.RSIPeriod)
	overboughts := orDefaultFloats(s.RSIOverbought, base.RSIOverbought)
	oversolds := orDefaultFloats(s.RSIOversold, base.RSIOversold)
	fasts := orDefaultInts(s.MACDFast, base.MACDFast)
	slows := orDefaultInts(s.MACDSlow, base.MACDSlow)

	var combos []types.IndicatorParams

	for _, rsiPeriod := range rsiPeriods {
		for _, overbought := range overboughts {
			for _, oversold := range oversolds {
				for _, fast := range fasts {
					for _, slow := range slows {
						if fast >= slow {
							continue
						}

						params := base
						params.RSIPeriod = rsiPeriod
						params.RSIOverbought = overbought
						params.RSIOversold = oversold
						params.MACDFast = fast
						params.MACDSlow = slow
						combos = append(combos, params)
					}
				}
			}
		}
	}

	return combos
}

// Result pairs one parameter combination with its backtest outcome.
type Result struct {
	Params   types.IndicatorParams `yaml:"params" json:"params"`
	Backtest types.BacktestResult  `yaml:"backtest" json:"backtest"`
}

// WindowResult is one walk-forward window: parameters chosen on the
// train segment, evaluated on the unseen test segment.
type WindowResult struct {
	TrainStart time.Time             `yaml:"train_start" json:"train_start"`
	TrainEnd   time.Time             `yaml:"train_end" json:"train_end"`
	TestStart  time.Time             `yaml:"test_start" json:"test_start"`
	TestEnd    time.Time             `yaml:"test_end" json:"test_end"`
	BestParams types.IndicatorParams `yaml:"best_params" json:"best_params"`
	Test       types.BacktestResult  `yaml:"test" json:"test"`
}

// WalkForwardResult aggregates all windows.
type WalkForwardResult struct {
	Windows           []WindowResult `yaml:"windows" json:"windows"`
	MeanReturnPercent float64        `yaml:"mean_return_percent" json:"mean_return_percent"`
	MeanSharpe        float64        `yaml:"mean_sharpe" json:"mean_sharpe"`
}

// Optimizer runs parameter searches.
type Optimizer struct {
	log *logger.Logger

	// Parallelism bounds concurrent backtests during a grid search.
	Parallelism int
}

// New creates an optimizer using one worker per CPU.
func New(log *logger.Logger) *Optimizer {
	return &Optimizer{
		log:         log,
		Parallelism: runtime.NumCPU(),
	}
}

// GridSearch backtests every combination of the space and returns the
// best result plus all results in enumeration order. Best means the
// strictly highest Sharpe ratio; ties keep the earlier-enumerated
// combination.
func (o *Optimizer) GridSearch(ctx context.Context, bars []types.Bar, cfg types.StrategyConfig, space ParameterSpace, initialBalance float64) (Result, []Result, error) {
	combos := space.Enumerate(cfg.Indicators)
	if len(combos) == 0 {
		return Result{}, nil, errors.New(errors.ErrCodeEmptyParameterSpace, "parameter space has no valid combinations")
	}

	results := make([]Result, len(combos))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.Parallelism)

	for i, combo := range combos {
		group.Go(func() error {
			if groupCtx.Err() != nil {
				return groupCtx.Err()
			}

			comboCfg := cfg
			comboCfg.Indicators = combo

			outcome, err := backtest.NewEngine(o.log).Run(bars, comboCfg, initialBalance)
			if err != nil {
				return err
			}

			results[i] = Result{Params: combo, Backtest: outcome}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return Result{}, nil, err
	}

	best := 0
	for i := 1; i < len(results); i++ {
		if results[i].Backtest.Stats.SharpeRatio > results[best].Backtest.Stats.SharpeRatio {
			best = i
		}
	}

	o.log.Debug("Grid search finished",
		zap.Int("combinations", len(combos)),
		zap.Float64("best_sharpe", results[best].Backtest.Stats.SharpeRatio),
	)

	return results[best], results, nil
}

// WalkForward slides non-overlapping test windows across the bars: each
// window optimizes on optimizeDays of history and evaluates the winner
// on the following testDays it never saw. The test segment is prefixed
// with the warm-up tail of the train segment so indicators are primed.
func (o *Optimizer) WalkForward(ctx context.Context, bars []types.Bar, cfg types.StrategyConfig, space ParameterSpace, initialBalance float64, optimizeDays, testDays int) (WalkForwardResult, error) {
	optimizeBars := types.BarsForDays(cfg.Timeframe, optimizeDays)
	testBars := types.BarsForDays(cfg.Timeframe, testDays)

	if optimizeBars <= indicator.WarmupBars {
		return WalkForwardResult{}, errors.Newf(errors.ErrCodeWindowTooLarge,
			"optimize window of %d bars does not cover the %d-bar warm-up", optimizeBars, indicator.WarmupBars)
	}

	if optimizeBars+testBars > len(bars) {
		return WalkForwardResult{}, errors.Newf(errors.ErrCodeWindowTooLarge,
			"window of %d bars exceeds the %d available", optimizeBars+testBars, len(bars))
	}

	var windows []WindowResult

	for start := 0; start+optimizeBars+testBars <= len(bars); start += testBars {
		if ctx.Err() != nil {
			return WalkForwardResult{}, ctx.Err()
		}

		train := bars[start : start+optimizeBars]

		bestResult, _, err := o.GridSearch(ctx, train, cfg, space, initialBalance)
		if err != nil {
			return WalkForwardResult{}, err
		}

		testCfg := cfg
		testCfg.Indicators = bestResult.Params

		testSlice := bars[start+optimizeBars-indicator.WarmupBars : start+optimizeBars+testBars]

		testOutcome, err := backtest.NewEngine(o.log).Run(testSlice, testCfg, initialBalance)
		if err != nil {
			return WalkForwardResult{}, err
		}

		windows = append(windows, WindowResult{
			TrainStart: train[0].OpenTime,
			TrainEnd:   train[len(train)-1].CloseTime,
			TestStart:  testOutcome.StartTime,
			TestEnd:    testOutcome.EndTime,
			BestParams: bestResult.Params,
			Test:       testOutcome,
		})
	}

	result := WalkForwardResult{Windows: windows, MeanReturnPercent: 0, MeanSharpe: 0}

	for _, window := range windows {
		result.MeanReturnPercent += window.Test.TotalReturnPercent
		result.MeanSharpe += window.Test.Stats.SharpeRatio
	}

	if len(windows) > 0 {
		result.MeanReturnPercent /= float64(len(windows))
		result.MeanSharpe /= float64(len(windows))
	}

	o.log.Debug("Walk-forward finished",
		zap.Int("windows", len(windows)),
		zap.Float64("mean_return_percent", result.MeanReturnPercent),
		zap.Float64("mean_sharpe", result.MeanSharpe),
	)

	return result, nil
}

func orDefaultInts(values []int, fallback int) []int {
	if len(values) == 0 {
		return []int{fallback}
	}

	return values
}

func orDefaultFloats(values []float64, fallback float64) []float64 {
	if len(values) == 0 {
		return []float64{fallback}
	}

	return values
}
