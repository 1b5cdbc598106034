package types

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
)

type PositionTestSuite struct {
	suite.Suite
}

func TestPositionSuite(t *testing.T) {
	suite.Run(t, new(PositionTestSuite))
}

func (suite *PositionTestSuite) TestLongPnL() {
	pos := Position{
		ID:         "p1",
		Symbol:     "BTCUSDT",
		Side:       PositionSideLong,
		EntryPrice: 100,
		Quantity:   2,
		Leverage:   1,
		StopLoss:   optional.Some(95.0),
		TakeProfit: optional.Some(110.0),
		OpenTime:   time.Now(),
	}

	suite.InDelta(20.0, pos.PnLAt(110), 1e-9)
	suite.InDelta(-10.0, pos.PnLAt(95), 1e-9)
}

func (suite *PositionTestSuite) TestShortPnL() {
	pos := Position{
		Symbol:     "ETHUSDT",
		Side:       PositionSideShort,
		EntryPrice: 200,
		Quantity:   1.5,
	}

	// Short profits when price falls.
	suite.InDelta(30.0, pos.PnLAt(180), 1e-9)
	suite.InDelta(-15.0, pos.PnLAt(210), 1e-9)
}

func (suite *PositionTestSuite) TestUpdatePrice() {
	pos := Position{
		Side:       PositionSideLong,
		EntryPrice: 50,
		Quantity:   10,
	}

	pos.UpdatePrice(55)
	suite.Equal(55.0, pos.CurrentPrice)
	suite.InDelta(50.0, pos.UnrealizedPnL, 1e-9)
	suite.InDelta(10.0, pos.UnrealizedPnLPercent, 1e-9)
}

func (suite *PositionTestSuite) TestSignalHelpers() {
	buy := Signal{Strength: SignalStrongBuy, Confidence: 82}
	suite.True(buy.IsBuy())
	suite.False(buy.IsSell())
	suite.True(buy.IsActionable(70))

	weak := Signal{Strength: SignalSell, Confidence: 55}
	suite.True(weak.IsSell())
	suite.False(weak.IsActionable(70))

	neutral := Signal{Strength: SignalNeutral, Confidence: 100}
	suite.False(neutral.IsActionable(0))
}

func (suite *PositionTestSuite) TestErrorRingBounds() {
	ring := NewErrorRing(3)
	ring.Append("a")
	ring.Append("b")
	ring.Append("c")
	ring.Append("d")

	suite.Equal([]string{"b", "c", "d"}, ring.Snapshot())
}
