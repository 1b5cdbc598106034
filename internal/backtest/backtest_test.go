package backtest

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/helix-lab/helix-trading/internal/logger"
	"github.com/helix-lab/helix-trading/internal/strategy"
	"github.com/helix-lab/helix-trading/internal/testutil"
	"github.com/helix-lab/helix-trading/internal/types"
	"github.com/helix-lab/helix-trading/pkg/errors"
)

type BacktestTestSuite struct {
	suite.Suite

	engine *Engine
}

func TestBacktestSuite(t *testing.T) {
	suite.Run(t, new(BacktestTestSuite))
}

func (suite *BacktestTestSuite) SetupTest() {
	suite.engine = NewEngine(logger.NewTestLogger())
}

func (suite *BacktestTestSuite) config(name string) types.StrategyConfig {
	return types.StrategyConfig{
		Name:       name,
		Symbols:    []string{"BTCUSDT"},
		Timeframe:  "1h",
		Indicators: types.DefaultIndicatorParams(),
		Risk:       types.DefaultRiskConfig(),
	}
}

func (suite *BacktestTestSuite) TestFlatSeriesProducesNoTrades() {
	bars := testutil.FlatBars("BTCUSDT", 300, 100)

	result, err := suite.engine.Run(bars, suite.config(strategy.NameMomentum), 10000)
	suite.Require().NoError(err)

	suite.Zero(result.Stats.TotalTrades)
	suite.Zero(result.TotalReturnPercent)
	suite.InDelta(10000.0, result.FinalBalance, 1e-9)
	suite.Zero(result.Stats.MaxDrawdown)
	suite.Zero(result.BuyAndHoldPnL)
	suite.Len(result.EquityCurve, 100)
	suite.Len(result.DrawdownCurve, 100)
}

func (suite *BacktestTestSuite) TestBreakoutTrendTradesProfitably() {
	bars := testutil.BreakoutTrendBars("BTCUSDT", 301, 100)

	result, err := suite.engine.Run(bars, suite.config(strategy.NameBreakout), 10000)
	suite.Require().NoError(err)

	suite.GreaterOrEqual(result.Stats.TotalTrades, 1)
	suite.Greater(result.FinalBalance, result.InitialBalance)
	suite.Greater(result.Stats.WinRate, 0.0)

	// Equity points cover every analyzed bar.
	suite.Len(result.EquityCurve, len(bars)-200)
}

func (suite *BacktestTestSuite) TestOpenPositionForcedClosedAtEnd() {
	// Breakout on the final bar: the entry opens and is immediately
	// force-closed when the data runs out.
	bars := testutil.BreakoutBars("BTCUSDT", 400)

	result, err := suite.engine.Run(bars, suite.config(strategy.NameBreakout), 10000)
	suite.Require().NoError(err)

	suite.Require().NotEmpty(result.Trades)
	last := result.Trades[len(result.Trades)-1]
	suite.True(last.Realized)
	suite.InDelta(result.FinalBalance, result.EquityCurve[len(result.EquityCurve)-1].Balance, 1e-9)
}

func (suite *BacktestTestSuite) TestOppositeSignalReversesOnSameBar() {
	// Breakdown short, then an upward break of the post-breakdown range:
	// the short closes and the long opens on the very same bar.
	bars := testutil.ReversalBars("BTCUSDT")

	cfg := suite.config(strategy.NameBreakout)
	cfg.Risk.AllowShort = true

	result, err := suite.engine.Run(bars, cfg, 10000)
	suite.Require().NoError(err)

	// Short entry, short close, long entry, forced close at end.
	suite.Require().Len(result.Trades, 4)

	shortClose := result.Trades[1]
	longEntry := result.Trades[2]

	suite.True(shortClose.Realized)
	suite.Equal(types.OrderSideBuy, shortClose.Side)
	suite.False(longEntry.Realized)
	suite.Equal(types.OrderSideBuy, longEntry.Side)
	suite.True(longEntry.Time.Equal(shortClose.Time), "reversal entry must land on the close bar")
}

func (suite *BacktestTestSuite) TestDeterministic() {
	bars := testutil.BreakoutTrendBars("ETHUSDT", 301, 60)
	cfg := suite.config(strategy.NameBreakout)

	first, err := suite.engine.Run(bars, cfg, 10000)
	suite.Require().NoError(err)

	second, err := NewEngine(logger.NewTestLogger()).Run(bars, cfg, 10000)
	suite.Require().NoError(err)

	suite.Equal(first.FinalBalance, second.FinalBalance)
	suite.Equal(first.Trades, second.Trades)
	suite.Equal(first.Stats, second.Stats)
}

func (suite *BacktestTestSuite) TestInsufficientHistoryRefused() {
	bars := testutil.FlatBars("BTCUSDT", 150, 100)

	_, err := suite.engine.Run(bars, suite.config(strategy.NameMomentum), 10000)
	suite.Require().Error(err)
	suite.True(errors.IsInsufficientDataError(err))
}

func (suite *BacktestTestSuite) TestRejectsNonPositiveBalance() {
	bars := testutil.FlatBars("BTCUSDT", 300, 100)

	_, err := suite.engine.Run(bars, suite.config(strategy.NameMomentum), 0)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeBacktestConfigError))
}

func (suite *BacktestTestSuite) TestProgressCallbackCoversAllBars() {
	bars := testutil.FlatBars("BTCUSDT", 250, 100)

	var calls, lastDone, total int

	suite.engine.SetProgressCallback(func(done, totalBars int) {
		calls++
		lastDone = done
		total = totalBars
	})

	_, err := suite.engine.Run(bars, suite.config(strategy.NameMomentum), 10000)
	suite.Require().NoError(err)

	suite.Equal(50, calls)
	suite.Equal(50, lastDone)
	suite.Equal(50, total)
}

func (suite *BacktestTestSuite) TestCommissionReducesPnL() {
	bars := testutil.BreakoutTrendBars("BTCUSDT", 301, 100)
	cfg := suite.config(strategy.NameBreakout)

	free, err := suite.engine.Run(bars, cfg, 10000)
	suite.Require().NoError(err)

	paid := NewEngine(logger.NewTestLogger())
	paid.CommissionRate = 0.001

	charged, err := paid.Run(bars, cfg, 10000)
	suite.Require().NoError(err)

	suite.Less(charged.FinalBalance, free.FinalBalance)
}
