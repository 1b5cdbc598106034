package engine

import (
	"context"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/helix-lab/helix-trading/internal/exchange"
	"github.com/helix-lab/helix-trading/internal/logger"
	"github.com/helix-lab/helix-trading/internal/types"
	"github.com/helix-lab/helix-trading/pkg/errors"
)

type PositionManagerTestSuite struct {
	suite.Suite

	fake    *exchange.Fake
	bus     *Bus
	manager *PositionManager
}

func TestPositionManagerSuite(t *testing.T) {
	suite.Run(t, new(PositionManagerTestSuite))
}

func (suite *PositionManagerTestSuite) SetupTest() {
	suite.fake = exchange.NewFake()
	suite.bus = NewBus()
	suite.manager = NewPositionManager(suite.fake, suite.bus, logger.NewTestLogger())
}

func buySignal(symbol string, price float64) types.Signal {
	return types.Signal{
		Symbol:       symbol,
		Strength:     types.SignalBuy,
		Confidence:   80,
		Price:        price,
		Reasons:      []string{"test"},
		StopLoss:     price * 0.98,
		TakeProfit:   price * 1.04,
		StrategyName: "momentum",
	}
}

func (suite *PositionManagerTestSuite) TestOpenCreatesPositionAndEntryTrade() {
	var opened int

	suite.bus.Subscribe(EventPositionOpened, func(Event) { opened++ })

	position, err := suite.manager.Open(context.Background(), buySignal("BTCUSDT", 100), 2)
	suite.Require().NoError(err)

	suite.Equal("BTCUSDT", position.Symbol)
	suite.Equal(types.PositionSideLong, position.Side)
	suite.InDelta(100.0, position.EntryPrice, 1e-9)
	suite.InDelta(2.0, position.Quantity, 1e-9)
	suite.True(position.StopLoss.IsSome())
	suite.Equal(1, suite.manager.Count())
	suite.Equal(1, opened)

	trades := suite.manager.Trades()
	suite.Require().Len(trades, 1)
	suite.False(trades[0].Realized)
	suite.Equal(types.OrderSideBuy, trades[0].Side)
}

func (suite *PositionManagerTestSuite) TestOpenRejectsDuplicate() {
	_, err := suite.manager.Open(context.Background(), buySignal("BTCUSDT", 100), 1)
	suite.Require().NoError(err)

	_, err = suite.manager.Open(context.Background(), buySignal("BTCUSDT", 101), 1)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodePositionExists))
	suite.Equal(1, suite.fake.OrderCount())
}

func (suite *PositionManagerTestSuite) TestFailedEntryLeavesStateUnchanged() {
	suite.fake.FailSubmit = true

	_, err := suite.manager.Open(context.Background(), buySignal("BTCUSDT", 100), 1)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeOrderFailed))

	suite.Zero(suite.manager.Count())
	suite.Empty(suite.manager.Trades())
}

func (suite *PositionManagerTestSuite) TestCloseRealizesPnL() {
	var closedTrade *types.Trade

	suite.bus.Subscribe(EventPositionClosed, func(e Event) { closedTrade = e.Trade })

	_, err := suite.manager.Open(context.Background(), buySignal("BTCUSDT", 100), 2)
	suite.Require().NoError(err)

	trade, err := suite.manager.Close(context.Background(), "BTCUSDT", 110, CloseReasonTakeProfit)
	suite.Require().NoError(err)

	suite.True(trade.Realized)
	suite.InDelta(20.0, trade.PnL, 1e-9)
	suite.InDelta(10.0, trade.PnLPercent, 1e-9)
	suite.Zero(suite.manager.Count())
	suite.Require().NotNil(closedTrade)
	suite.InDelta(20.0, closedTrade.PnL, 1e-9)

	suite.InDelta(20.0, suite.manager.DailyPnL(time.Now()), 1e-9)
	suite.InDelta(20.0, suite.manager.TotalPnL(), 1e-9)
}

func (suite *PositionManagerTestSuite) TestCloseShortProfitsOnDecline() {
	signal := buySignal("ETHUSDT", 200)
	signal.Strength = types.SignalSell
	signal.StopLoss = 204
	signal.TakeProfit = 192

	_, err := suite.manager.Open(context.Background(), signal, 1)
	suite.Require().NoError(err)

	position, _ := suite.manager.Get("ETHUSDT")
	suite.Equal(types.PositionSideShort, position.Side)

	trade, err := suite.manager.Close(context.Background(), "ETHUSDT", 190, CloseReasonTakeProfit)
	suite.Require().NoError(err)
	suite.InDelta(10.0, trade.PnL, 1e-9)
	suite.Equal(types.OrderSideBuy, trade.Side)
}

func (suite *PositionManagerTestSuite) TestFailedExitKeepsPositionOpen() {
	_, err := suite.manager.Open(context.Background(), buySignal("BTCUSDT", 100), 1)
	suite.Require().NoError(err)

	suite.fake.FailSubmit = true

	_, err = suite.manager.Close(context.Background(), "BTCUSDT", 110, CloseReasonSignal)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeOrderFailed))
	suite.Equal(1, suite.manager.Count())
}

func (suite *PositionManagerTestSuite) TestCloseUnknownSymbol() {
	_, err := suite.manager.Close(context.Background(), "DOGEUSDT", 1, CloseReasonSignal)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodePositionNotFound))
}

func (suite *PositionManagerTestSuite) TestCloseAll() {
	_, err := suite.manager.Open(context.Background(), buySignal("BTCUSDT", 100), 1)
	suite.Require().NoError(err)

	_, err = suite.manager.Open(context.Background(), buySignal("ETHUSDT", 200), 1)
	suite.Require().NoError(err)

	suite.Require().NoError(suite.manager.CloseAll(context.Background(), CloseReasonShutdown))
	suite.Zero(suite.manager.Count())
}

func (suite *PositionManagerTestSuite) TestDailyPnLBucketsByUTCDay() {
	day1 := time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 1, 0, 0, 0, time.UTC)
	now := day1
	suite.manager.now = func() time.Time { return now }

	_, err := suite.manager.Open(context.Background(), buySignal("BTCUSDT", 100), 1)
	suite.Require().NoError(err)

	_, err = suite.manager.Close(context.Background(), "BTCUSDT", 110, CloseReasonSignal)
	suite.Require().NoError(err)

	now = day2

	_, err = suite.manager.Open(context.Background(), buySignal("BTCUSDT", 100), 1)
	suite.Require().NoError(err)

	_, err = suite.manager.Close(context.Background(), "BTCUSDT", 95, CloseReasonStopLoss)
	suite.Require().NoError(err)

	suite.InDelta(10.0, suite.manager.DailyPnL(day1), 1e-9)
	suite.InDelta(-5.0, suite.manager.DailyPnL(day2), 1e-9)
}

func TestExitReason(t *testing.T) {
	long := types.Position{
		Side:       types.PositionSideLong,
		StopLoss:   optional.Some(95.0),
		TakeProfit: optional.Some(110.0),
	}

	reason, triggered := ExitReason(long, 100)
	if triggered {
		t.Fatalf("no exit expected at 100, got %s", reason)
	}

	reason, triggered = ExitReason(long, 94)
	if !triggered || reason != CloseReasonStopLoss {
		t.Fatalf("expected stop loss at 94, got %s triggered=%v", reason, triggered)
	}

	reason, triggered = ExitReason(long, 111)
	if !triggered || reason != CloseReasonTakeProfit {
		t.Fatalf("expected take profit at 111, got %s triggered=%v", reason, triggered)
	}

	short := types.Position{
		Side:       types.PositionSideShort,
		StopLoss:   optional.Some(105.0),
		TakeProfit: optional.Some(90.0),
	}

	reason, triggered = ExitReason(short, 106)
	if !triggered || reason != CloseReasonStopLoss {
		t.Fatalf("expected short stop at 106, got %s triggered=%v", reason, triggered)
	}

	reason, triggered = ExitReason(short, 89)
	if !triggered || reason != CloseReasonTakeProfit {
		t.Fatalf("expected short take profit at 89, got %s triggered=%v", reason, triggered)
	}

	bare := types.Position{Side: types.PositionSideLong}
	if _, triggered = ExitReason(bare, 1); triggered {
		t.Fatal("position without protective levels never triggers an exit")
	}
}
