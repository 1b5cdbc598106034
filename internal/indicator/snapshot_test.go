package indicator

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/helix-lab/helix-trading/internal/testutil"
	"github.com/helix-lab/helix-trading/internal/types"
	"github.com/helix-lab/helix-trading/pkg/errors"
)

type SnapshotTestSuite struct {
	suite.Suite

	provider *Provider
}

func TestSnapshotSuite(t *testing.T) {
	suite.Run(t, new(SnapshotTestSuite))
}

func (suite *SnapshotTestSuite) SetupTest() {
	suite.provider = NewProvider(types.DefaultIndicatorParams())
}

func (suite *SnapshotTestSuite) TestRefusesBelowWarmup() {
	bars := testutil.UptrendBars("BTCUSDT", WarmupBars-1)

	_, err := suite.provider.Compute(bars)
	suite.Require().Error(err)
	suite.True(errors.IsInsufficientDataError(err))

	var insufficient *errors.InsufficientDataError
	suite.Require().True(errors.As(err, &insufficient))
	suite.Equal(WarmupBars, insufficient.Required)
	suite.Equal(WarmupBars-1, insufficient.Actual)
	suite.Equal("BTCUSDT", insufficient.Symbol)
}

func (suite *SnapshotTestSuite) TestUptrendSnapshot() {
	bars := testutil.UptrendBars("BTCUSDT", 250)

	snapshot, err := suite.provider.Compute(bars)
	suite.Require().NoError(err)

	// A monotonic uptrend saturates RSI and stacks the short EMAs on top.
	suite.Greater(snapshot.RSI, 70.0)
	suite.LessOrEqual(snapshot.RSI, 100.0)
	suite.Greater(snapshot.EMA9, snapshot.EMA21)
	suite.Greater(snapshot.EMA21, snapshot.EMA50)
	suite.Greater(snapshot.EMA50, snapshot.EMA200)
	suite.Greater(snapshot.MACD, 0.0)
	suite.Greater(snapshot.BollingerUpper, snapshot.BollingerMiddle)
	suite.Greater(snapshot.BollingerMiddle, snapshot.BollingerLower)
	suite.Greater(snapshot.ATR, 0.0)
}

func (suite *SnapshotTestSuite) TestFlatSeriesProducesNeutralDefaults() {
	bars := testutil.FlatBars("BTCUSDT", 300, 100)

	snapshot, err := suite.provider.Compute(bars)
	suite.Require().NoError(err)

	// No price movement: the bands collapse onto the price and RSI falls
	// back to its neutral default instead of NaN.
	suite.InDelta(100.0, snapshot.BollingerMiddle, 1e-9)
	suite.InDelta(100.0, snapshot.BollingerUpper, 1e-9)
	suite.InDelta(100.0, snapshot.BollingerLower, 1e-9)
	suite.InDelta(0.0, snapshot.MACD, 1e-9)
	suite.InDelta(0.0, snapshot.ATR, 1e-9)
	suite.InDelta(1.0, snapshot.VolumeRatio, 1e-9)
	suite.False(snapshot.RSI != snapshot.RSI, "RSI must not be NaN")
}

func (suite *SnapshotTestSuite) TestDeterministic() {
	bars := testutil.RangeBars("ETHUSDT", 260)

	first, err := suite.provider.Compute(bars)
	suite.Require().NoError(err)

	second, err := suite.provider.Compute(bars)
	suite.Require().NoError(err)

	suite.Equal(first, second)
}
