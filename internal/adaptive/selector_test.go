package adaptive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/helix-lab/helix-trading/internal/exchange"
	"github.com/helix-lab/helix-trading/internal/logger"
	"github.com/helix-lab/helix-trading/internal/strategy"
	"github.com/helix-lab/helix-trading/internal/testutil"
	"github.com/helix-lab/helix-trading/internal/types"
	"github.com/helix-lab/helix-trading/pkg/errors"
)

type SelectorTestSuite struct {
	suite.Suite

	fake     *exchange.Fake
	selector *Selector
	cfg      types.StrategyConfig
}

func TestSelectorSuite(t *testing.T) {
	suite.Run(t, new(SelectorTestSuite))
}

func (suite *SelectorTestSuite) SetupTest() {
	suite.fake = exchange.NewFake()
	suite.selector = NewSelector(suite.fake, logger.NewTestLogger())
	suite.cfg = types.StrategyConfig{
		Name:       strategy.NameMomentum,
		Symbols:    []string{"BTCUSDT"},
		Timeframe:  "1h",
		Indicators: types.DefaultIndicatorParams(),
		Risk:       types.DefaultRiskConfig(),
	}
}

func (suite *SelectorTestSuite) TestClassifyTrending() {
	regime, err := ClassifyRegime(testutil.UptrendBars("BTCUSDT", 300))
	suite.Require().NoError(err)

	suite.Equal(RegimeTrending, regime.Kind)
	suite.Equal(strategy.NameMomentum, regime.Strategy)
	suite.Equal(75.0, regime.Confidence)
	suite.Greater(regime.TrendStrength, 2.0)
}

func (suite *SelectorTestSuite) TestClassifyTrendingVolatile() {
	// A trend with a late volatility expansion outranks the plain trend.
	regime, err := ClassifyRegime(testutil.TrendingVolatileBars("BTCUSDT", 300))
	suite.Require().NoError(err)

	suite.Equal(RegimeTrending, regime.Kind)
	suite.Equal(strategy.NameMomentum, regime.Strategy)
	suite.Equal(85.0, regime.Confidence)
	suite.Greater(regime.TrendStrength, 2.0)
	suite.Greater(regime.VolatilityRatio, 1.5)
}

func (suite *SelectorTestSuite) TestClassifyVolatile() {
	regime, err := ClassifyRegime(testutil.VolatileBars("BTCUSDT", 300))
	suite.Require().NoError(err)

	suite.Equal(RegimeVolatile, regime.Kind)
	suite.Equal(strategy.NameBreakout, regime.Strategy)
	suite.Equal(80.0, regime.Confidence)
	suite.Greater(regime.VolatilityRatio, 1.5)
}

func (suite *SelectorTestSuite) TestClassifyRanging() {
	regime, err := ClassifyRegime(testutil.MildRangeBars("BTCUSDT", 300))
	suite.Require().NoError(err)

	suite.Equal(RegimeRanging, regime.Kind)
	suite.Equal(strategy.NameBreakout, regime.Strategy)
	suite.Equal(60.0, regime.Confidence)
}

func (suite *SelectorTestSuite) TestClassifyCalm() {
	regime, err := ClassifyRegime(testutil.FlatBars("BTCUSDT", 300, 100))
	suite.Require().NoError(err)

	suite.Equal(RegimeCalm, regime.Kind)
	suite.Equal(strategy.NameMomentum, regime.Strategy)
}

func (suite *SelectorTestSuite) TestClassifyNeedsHistory() {
	_, err := ClassifyRegime(testutil.RangeBars("BTCUSDT", 100))
	suite.Require().Error(err)
	suite.True(errors.IsInsufficientDataError(err))
}

func (suite *SelectorTestSuite) TestScoreOrdersResults() {
	strong := types.BacktestResult{
		TotalReturnPercent: 12,
		Stats:              types.TradingStats{SharpeRatio: 2, WinRate: 60, MaxDrawdown: 5},
	}
	weak := types.BacktestResult{
		TotalReturnPercent: -3,
		Stats:              types.TradingStats{SharpeRatio: -0.5, WinRate: 20, MaxDrawdown: 30},
	}

	suite.Greater(Score(strong), Score(weak))
}

func (suite *SelectorTestSuite) TestSelectPreservesSymbolsAndRisk() {
	suite.fake.LoadBars("BTCUSDT", testutil.BreakoutTrendBars("BTCUSDT", 301, 100))

	selected, reason, err := suite.selector.Select(context.Background(), "BTCUSDT", suite.cfg, false)
	suite.Require().NoError(err)

	suite.Equal(suite.cfg.Symbols, selected.Symbols)
	suite.Equal(suite.cfg.Risk, selected.Risk)
	suite.Contains([]string{strategy.NameMomentum, strategy.NameBreakout}, selected.Name)
	suite.Contains(reason, "regime")
	suite.Contains(reason, "scored")
}

func (suite *SelectorTestSuite) TestSelectPrefersProfitableStrategy() {
	// Only the breakout strategy trades this series; momentum stays
	// flat, so the breakout run scores higher.
	suite.fake.LoadBars("BTCUSDT", testutil.BreakoutTrendBars("BTCUSDT", 301, 100))

	selected, _, err := suite.selector.Select(context.Background(), "BTCUSDT", suite.cfg, false)
	suite.Require().NoError(err)
	suite.Equal(strategy.NameBreakout, selected.Name)
}

func (suite *SelectorTestSuite) TestSelectCachesForADay() {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	suite.selector.now = func() time.Time { return now }

	suite.fake.LoadBars("BTCUSDT", testutil.BreakoutTrendBars("BTCUSDT", 301, 100))

	first, _, err := suite.selector.Select(context.Background(), "BTCUSDT", suite.cfg, false)
	suite.Require().NoError(err)

	// New data arrives, but the cache is still fresh.
	suite.fake.LoadBars("BTCUSDT", testutil.FlatBars("BTCUSDT", 300, 100))

	cached, _, err := suite.selector.Select(context.Background(), "BTCUSDT", suite.cfg, false)
	suite.Require().NoError(err)
	suite.Equal(first.Name, cached.Name)

	// A day later the selection is recomputed from the flat series.
	now = now.Add(25 * time.Hour)

	refreshed, reason, err := suite.selector.Select(context.Background(), "BTCUSDT", suite.cfg, false)
	suite.Require().NoError(err)
	suite.NotEmpty(reason)
	suite.Contains([]string{strategy.NameMomentum, strategy.NameBreakout}, refreshed.Name)
}

func (suite *SelectorTestSuite) TestSelectForceBypassesCache() {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	suite.selector.now = func() time.Time { return now }

	suite.fake.LoadBars("BTCUSDT", testutil.BreakoutTrendBars("BTCUSDT", 301, 100))

	first, _, err := suite.selector.Select(context.Background(), "BTCUSDT", suite.cfg, false)
	suite.Require().NoError(err)
	suite.Equal(strategy.NameBreakout, first.Name)

	// Flat data would pick momentum, but only a forced call sees it
	// inside the TTL.
	suite.fake.LoadBars("BTCUSDT", testutil.FlatBars("BTCUSDT", 300, 100))

	forced, reason, err := suite.selector.Select(context.Background(), "BTCUSDT", suite.cfg, true)
	suite.Require().NoError(err)
	suite.Equal(strategy.NameMomentum, forced.Name)
	suite.NotEmpty(reason)

	// The forced result replaces the cached one.
	cached, _, err := suite.selector.Select(context.Background(), "BTCUSDT", suite.cfg, false)
	suite.Require().NoError(err)
	suite.Equal(strategy.NameMomentum, cached.Name)
}

func (suite *SelectorTestSuite) TestSelectFailsWithoutData() {
	_, _, err := suite.selector.Select(context.Background(), "BTCUSDT", suite.cfg, false)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeNoDataFound))
}
