// Package adaptive classifies the current market regime and selects the
// strategy whose recent backtest scores best, feeding the orchestrator's
// periodic re-optimization.
package adaptive

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/markcheno/go-talib"
	"go.uber.org/zap"

	"github.com/helix-lab/helix-trading/internal/backtest"
	"github.com/helix-lab/helix-trading/internal/exchange"
	"github.com/helix-lab/helix-trading/internal/indicator"
	"github.com/helix-lab/helix-trading/internal/logger"
	"github.com/helix-lab/helix-trading/internal/strategy"
	"github.com/helix-lab/helix-trading/internal/types"
	"github.com/helix-lab/helix-trading/pkg/errors"
)

const (
	// lookbackDays of history feed the regime classification and the
	// strategy scoreboard.
	lookbackDays = 90

	// cacheTTL is how long a selection stays valid per symbol.
	cacheTTL = 24 * time.Hour

	// trendThreshold is the minimum EMA20/EMA50 divergence, relative to
	// EMA20, to call the market trending.
	trendThreshold = 0.02

	// volatileRatio marks the market volatile when the latest ATR
	// exceeds its trailing average by this factor; calmRatio marks it
	// calm below that factor.
	volatileRatio = 1.5
	calmRatio     = 0.5

	regimeEMAFast = 20
	regimeEMASlow = 50
	regimeATR     = 14

	// scoreBalance is the notional balance used for scoreboard runs.
	scoreBalance = 10000.0
)

// RegimeKind labels the market regime.
type RegimeKind string

const (
	RegimeTrending RegimeKind = "TRENDING"
	RegimeVolatile RegimeKind = "VOLATILE"
	RegimeRanging  RegimeKind = "RANGING"
	RegimeCalm     RegimeKind = "CALM"
)

// Regime is the classification of a bar series.
type Regime struct {
	Kind RegimeKind `yaml:"kind" json:"kind"`
	// Strategy is the variant recommended for this regime.
	Strategy string `yaml:"strategy" json:"strategy"`
	// Confidence is the recommendation strength in [0, 100].
	Confidence float64 `yaml:"confidence" json:"confidence"`
	// TrendStrength is the relative EMA divergence, in percent.
	TrendStrength float64 `yaml:"trend_strength" json:"trend_strength"`
	// VolatilityRatio is the latest ATR over its trailing average.
	VolatilityRatio float64 `yaml:"volatility_ratio" json:"volatility_ratio"`
}

// ClassifyRegime labels the series by trend strength and volatility
// expansion. Trending markets recommend momentum; volatile and ranging
// markets recommend breakout.
func ClassifyRegime(bars []types.Bar) (Regime, error) {
	if len(bars) < indicator.WarmupBars {
		return Regime{}, errors.NewInsufficientDataErrorf(
			indicator.WarmupBars, len(bars), symbolOf(bars),
			"regime classification needs %d bars, got %d", indicator.WarmupBars, len(bars))
	}

	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))

	for i, bar := range bars {
		closes[i] = bar.Close
		highs[i] = bar.High
		lows[i] = bar.Low
	}

	emaFast := talib.Ema(closes, regimeEMAFast)
	emaSlow := talib.Ema(closes, regimeEMASlow)
	atr := talib.Atr(highs, lows, closes, regimeATR)

	fast := emaFast[len(emaFast)-1]
	slow := emaSlow[len(emaSlow)-1]

	trendStrength := 0.0
	if fast != 0 {
		trendStrength = math.Abs(fast-slow) / fast * 100
	}

	latestATR := atr[len(atr)-1]

	var atrSum float64

	atrCount := 0

	for _, v := range atr[regimeATR:] {
		atrSum += v
		atrCount++
	}

	volatilityRatio := 0.0
	if atrCount > 0 && atrSum > 0 {
		volatilityRatio = latestATR / (atrSum / float64(atrCount))
	}

	trending := trendStrength > trendThreshold*100
	volatile := volatilityRatio > volatileRatio

	regime := Regime{
		Kind:            RegimeRanging,
		Strategy:        strategy.NameBreakout,
		Confidence:      60,
		TrendStrength:   trendStrength,
		VolatilityRatio: volatilityRatio,
	}

	switch {
	case trending && volatile:
		regime.Kind = RegimeTrending
		regime.Strategy = strategy.NameMomentum
		regime.Confidence = 85
	case trending:
		regime.Kind = RegimeTrending
		regime.Strategy = strategy.NameMomentum
		regime.Confidence = 75
	case volatile:
		regime.Kind = RegimeVolatile
		regime.Strategy = strategy.NameBreakout
		regime.Confidence = 80
	case volatilityRatio < calmRatio:
		regime.Kind = RegimeCalm
		regime.Strategy = strategy.NameMomentum
		regime.Confidence = 60
	}

	return regime, nil
}

// Score collapses a backtest into one comparable figure: risk-adjusted
// return first, raw return and consistency behind it, drawdown as a
// penalty.
func Score(result types.BacktestResult) float64 {
	return 0.4*result.Stats.SharpeRatio +
		0.3*result.TotalReturnPercent +
		0.2*result.Stats.WinRate -
		0.1*result.Stats.MaxDrawdown
}

type cachedSelection struct {
	cfg    types.StrategyConfig
	reason string
	at     time.Time
}

// Selector picks the strategy for a symbol by backtesting every variant
// over the lookback window and scoring the outcomes. Selections are
// cached per symbol for a day.
type Selector struct {
	exch exchange.Exchange
	log  *logger.Logger

	mu    sync.Mutex
	cache map[string]cachedSelection
	now   func() time.Time
}

// NewSelector creates a selector reading history from the exchange.
func NewSelector(exch exchange.Exchange, log *logger.Logger) *Selector {
	return &Selector{
		exch:  exch,
		log:   log,
		cache: make(map[string]cachedSelection),
		now:   time.Now,
	}
}

// Select returns the strategy configuration to run for the symbol and a
// human-readable reason. Symbols and risk limits of the current config
// always carry over. A fresh cached selection is served unless force is
// set, which always recomputes.
func (s *Selector) Select(ctx context.Context, symbol string, current types.StrategyConfig, force bool) (types.StrategyConfig, string, error) {
	if !force {
		s.mu.Lock()
		if cached, ok := s.cache[symbol]; ok && s.now().Sub(cached.at) < cacheTTL {
			s.mu.Unlock()

			return cached.cfg, cached.reason, nil
		}
		s.mu.Unlock()
	}

	limit := types.BarsForDays(current.Timeframe, lookbackDays)

	bars, err := s.exch.GetHistoricalBars(ctx, symbol, current.Timeframe, limit)
	if err != nil {
		return types.StrategyConfig{}, "", err
	}

	regime, err := ClassifyRegime(bars)
	if err != nil {
		return types.StrategyConfig{}, "", err
	}

	type scored struct {
		name   string
		result types.BacktestResult
		score  float64
	}

	var board []scored

	for _, name := range strategy.Names() {
		candidate := current
		candidate.Name = name

		result, runErr := backtest.NewEngine(s.log).Run(bars, candidate, scoreBalance)
		if runErr != nil {
			return types.StrategyConfig{}, "", runErr
		}

		board = append(board, scored{name: name, result: result, score: Score(result)})
	}

	best := 0
	for i := 1; i < len(board); i++ {
		if board[i].score > board[best].score {
			best = i
		}
	}

	runnerUp := (best + 1) % len(board)

	selected := current
	selected.Name = board[best].name

	reason := fmt.Sprintf("regime %s (trend %.2f%%, volatility ratio %.2f): %s scored %.2f vs %s %.2f",
		regime.Kind, regime.TrendStrength, regime.VolatilityRatio,
		board[best].name, board[best].score,
		board[runnerUp].name, board[runnerUp].score)

	s.log.Info("Strategy selected",
		zap.String("symbol", symbol),
		zap.String("strategy", selected.Name),
		zap.String("regime", string(regime.Kind)),
		zap.Float64("score", board[best].score),
	)

	s.mu.Lock()
	s.cache[symbol] = cachedSelection{cfg: selected, reason: reason, at: s.now()}
	s.mu.Unlock()

	return selected, reason, nil
}

func symbolOf(bars []types.Bar) string {
	if len(bars) == 0 {
		return ""
	}

	return bars[0].Symbol
}
