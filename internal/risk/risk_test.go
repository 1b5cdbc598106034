package risk

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/helix-lab/helix-trading/internal/types"
)

func realizedTrade(symbol string, pnl, pnlPct float64, at time.Time) types.Trade {
	return types.Trade{
		ID:         "t",
		Symbol:     symbol,
		Side:       types.OrderSideSell,
		Price:      100,
		Quantity:   1,
		Time:       at,
		Realized:   true,
		PnL:        pnl,
		PnLPercent: pnlPct,
	}
}

func TestPositionSize(t *testing.T) {
	// balance=10000, risk=2% => 200 at risk over a 2-point stop distance.
	assert.InDelta(t, 100.0, PositionSize(10000, 2, 100, 98), 1e-9)

	assert.Zero(t, PositionSize(10000, 2, 100, 100))
	assert.Zero(t, PositionSize(0, 2, 100, 98))
	assert.Zero(t, PositionSize(10000, 0, 100, 98))
}

func TestRiskReward(t *testing.T) {
	assert.InDelta(t, 2.0, RiskReward(100, 98, 104), 1e-9)
	assert.InDelta(t, 1.5, RiskReward(100, 102, 97), 1e-9)
	assert.Zero(t, RiskReward(100, 100, 104))
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(nil)

	assert.Zero(t, stats.TotalTrades)
	assert.Zero(t, stats.WinRate)
	assert.Zero(t, stats.TotalPnL)
	assert.Zero(t, stats.ProfitFactor)
	assert.Zero(t, stats.SharpeRatio)
	assert.Zero(t, stats.MaxDrawdown)
}

func TestComputeStatsWinRate(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := []types.Trade{
		realizedTrade("BTCUSDT", 100, 2, start),
		realizedTrade("BTCUSDT", -50, -1, start.Add(time.Hour)),
		realizedTrade("BTCUSDT", 200, 4, start.Add(2*time.Hour)),
		realizedTrade("BTCUSDT", 50, 1, start.Add(3*time.Hour)),
	}

	stats := ComputeStats(trades)

	assert.Equal(t, 4, stats.TotalTrades)
	assert.Equal(t, 3, stats.WinningTrades)
	assert.Equal(t, 1, stats.LosingTrades)
	assert.InDelta(t, 75.0, stats.WinRate, 1e-9)
	assert.InDelta(t, 300.0, stats.TotalPnL, 1e-9)
	assert.InDelta(t, 350.0/50.0, stats.ProfitFactor, 1e-9)
	assert.InDelta(t, 350.0/3.0, stats.AverageWin, 1e-9)
	assert.InDelta(t, 50.0, stats.AverageLoss, 1e-9)
}

func TestProfitFactorEdgeCases(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Only winners: infinite profit factor.
	winners := []types.Trade{
		realizedTrade("BTCUSDT", 100, 2, start),
		realizedTrade("BTCUSDT", 50, 1, start.Add(time.Hour)),
	}
	assert.True(t, math.IsInf(ComputeStats(winners).ProfitFactor, 1))

	// Only losers: zero profit factor.
	losers := []types.Trade{
		realizedTrade("BTCUSDT", -100, -2, start),
	}
	assert.Zero(t, ComputeStats(losers).ProfitFactor)
}

func TestSharpeRatio(t *testing.T) {
	// Fewer than two returns or zero deviation yield zero.
	assert.Zero(t, SharpeRatio(nil))
	assert.Zero(t, SharpeRatio([]float64{5}))
	assert.Zero(t, SharpeRatio([]float64{2, 2, 2}))

	// Consistently positive returns beat a mostly-flat series.
	strong := SharpeRatio([]float64{2, 3, 2.5, 2.8})
	weak := SharpeRatio([]float64{0.1, -0.1, 0.2, 0})
	assert.Greater(t, strong, weak)
	assert.Greater(t, strong, 0.0)
}

func TestMaxDrawdownMonotonicCurve(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var curve []types.EquityPoint
	for i := range 10 {
		curve = append(curve, types.EquityPoint{
			Time:    start.Add(time.Duration(i) * time.Hour),
			Balance: 1000 + float64(i)*10,
		})
	}

	// Strictly increasing equity: zero drawdown.
	assert.Zero(t, MaxDrawdown(curve))
}

func TestMaxDrawdownBounds(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	curve := []types.EquityPoint{
		{Time: start, Balance: 1000},
		{Time: start.Add(time.Hour), Balance: 1200},
		{Time: start.Add(2 * time.Hour), Balance: 600},
		{Time: start.Add(3 * time.Hour), Balance: 900},
	}

	dd := MaxDrawdown(curve)
	assert.InDelta(t, 50.0, dd, 1e-9)
	assert.GreaterOrEqual(t, dd, 0.0)
	assert.LessOrEqual(t, dd, 100.0)
}

func TestDrawdownCurve(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	curve := []types.EquityPoint{
		{Time: start, Balance: 1000},
		{Time: start.Add(time.Hour), Balance: 800},
		{Time: start.Add(2 * time.Hour), Balance: 1100},
	}

	ddCurve := DrawdownCurve(curve)
	assert.Len(t, ddCurve, 3)
	assert.Zero(t, ddCurve[0].Drawdown)
	assert.InDelta(t, 20.0, ddCurve[1].Drawdown, 1e-9)
	assert.Zero(t, ddCurve[2].Drawdown)
}

func TestCheckCorrelation(t *testing.T) {
	long := types.Position{Side: types.PositionSideLong}
	short := types.Position{Side: types.PositionSideShort}

	assert.False(t, CheckCorrelation(nil))
	assert.False(t, CheckCorrelation([]types.Position{long, long, long, short, short}))
	assert.False(t, CheckCorrelation([]types.Position{long, long, long, long, long}))
	assert.True(t, CheckCorrelation([]types.Position{long, long, long, long, long, long}))
}

func TestCanOpenPosition(t *testing.T) {
	cfg := types.DefaultRiskConfig() // max 3 positions, 500 daily loss

	ok, _ := CanOpenPosition(0, 0, cfg)
	assert.True(t, ok)

	ok, reason := CanOpenPosition(3, 0, cfg)
	assert.False(t, ok)
	assert.Contains(t, reason, "open positions")

	ok, reason = CanOpenPosition(0, -600, cfg)
	assert.False(t, ok)
	assert.Contains(t, reason, "daily loss")

	// Zero limit disables the daily loss guard.
	cfg.MaxDailyLossAbs = 0
	ok, _ = CanOpenPosition(0, -10000, cfg)
	assert.True(t, ok)
}

func TestHoldingTimePairing(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := []types.Trade{
		{Symbol: "BTCUSDT", Side: types.OrderSideBuy, Time: start, Realized: false},
		realizedTrade("BTCUSDT", 10, 1, start.Add(2*time.Hour)),
		{Symbol: "BTCUSDT", Side: types.OrderSideBuy, Time: start.Add(3 * time.Hour), Realized: false},
		realizedTrade("BTCUSDT", -5, -0.5, start.Add(7*time.Hour)),
	}

	stats := ComputeStats(trades)
	assert.Equal(t, 2*3600, stats.HoldingTime.Min)
	assert.Equal(t, 4*3600, stats.HoldingTime.Max)
	assert.Equal(t, 3*3600, stats.HoldingTime.Avg)
}
