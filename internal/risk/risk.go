// Package risk provides the stateless risk arithmetic: position sizing,
// trade statistics, drawdown and exposure guards. All functions are pure,
// never panic, and return zero/neutral defaults on insufficient data.
package risk

import (
	"math"

	"github.com/helix-lab/helix-trading/internal/types"
)

const (
	// annualizationPeriods is the conventional number of trading periods
	// used to annualize per-trade returns.
	annualizationPeriods = 252

	// riskFreeRate is the annual risk-free rate used for the Sharpe ratio.
	riskFreeRate = 0.02

	// maxSameSidePositions is the correlation guard threshold: more open
	// positions sharing one side than this is flagged as concentrated.
	maxSameSidePositions = 5
)

// PositionSize returns the quantity that risks riskPct percent of the
// balance between entry and stop. Zero when the stop distance is zero.
func PositionSize(balance, riskPct, entry, stop float64) float64 {
	distance := math.Abs(entry - stop)
	if distance == 0 || balance <= 0 || riskPct <= 0 {
		return 0
	}

	return balance * riskPct / 100 / distance
}

// RiskReward returns the reward-to-risk ratio of a planned trade. Zero
// when the stop distance is zero.
func RiskReward(entry, stop, target float64) float64 {
	riskDistance := math.Abs(entry - stop)
	if riskDistance == 0 {
		return 0
	}

	return math.Abs(target-entry) / riskDistance
}

// ComputeStats aggregates a trade log into trading statistics. Only
// realized trades contribute; an empty log yields all-zero stats.
func ComputeStats(trades []types.Trade) types.TradingStats {
	stats := types.TradingStats{}

	var grossProfit, grossLoss float64

	var returns []float64

	// Holding times are paired from the latest order submission per symbol
	// to the realized close that follows it.
	entryTimes := make(map[string]int64)

	var holdingSeconds []int

	for _, trade := range trades {
		if !trade.Realized {
			entryTimes[trade.Symbol] = trade.Time.Unix()

			continue
		}

		stats.TotalTrades++
		stats.TotalPnL += trade.PnL
		stats.TotalPnLPercent += trade.PnLPercent
		returns = append(returns, trade.PnLPercent)

		if trade.PnL > 0 {
			stats.WinningTrades++
			grossProfit += trade.PnL
		} else if trade.PnL < 0 {
			stats.LosingTrades++
			grossLoss += -trade.PnL
		}

		if opened, ok := entryTimes[trade.Symbol]; ok {
			holdingSeconds = append(holdingSeconds, int(trade.Time.Unix()-opened))
			delete(entryTimes, trade.Symbol)
		}
	}

	if stats.TotalTrades == 0 {
		return stats
	}

	stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades) * 100

	if stats.WinningTrades > 0 {
		stats.AverageWin = grossProfit / float64(stats.WinningTrades)
	}

	if stats.LosingTrades > 0 {
		stats.AverageLoss = grossLoss / float64(stats.LosingTrades)
	}

	stats.ProfitFactor = profitFactor(grossProfit, grossLoss)
	stats.SharpeRatio = SharpeRatio(returns)
	stats.MaxDrawdown, stats.CurrentDrawdown = drawdownFromReturns(trades)
	stats.HoldingTime = holdingTime(holdingSeconds)

	return stats
}

// profitFactor is gross profit over gross loss, infinite when there are
// winners and no losers, and zero otherwise when gross loss is zero.
func profitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossProfit > 0 {
			return math.Inf(1)
		}

		return 0
	}

	return grossProfit / grossLoss
}

// SharpeRatio computes the annualized Sharpe ratio from per-trade
// percentage returns. Zero with fewer than two returns or zero deviation.
func SharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}

	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}

	variance /= float64(len(returns) - 1)

	stdDev := math.Sqrt(variance)
	if stdDev == 0 {
		return 0
	}

	annualizedMean := mean / 100 * annualizationPeriods
	annualizedStdDev := stdDev / 100 * math.Sqrt(annualizationPeriods)

	return (annualizedMean - riskFreeRate) / annualizedStdDev
}

// MaxDrawdown returns the largest percentage decline from a running peak
// of the equity curve, in [0, 100].
func MaxDrawdown(curve []types.EquityPoint) float64 {
	var maxDD, peak float64

	for _, point := range curve {
		if point.Balance > peak {
			peak = point.Balance
		}

		if peak <= 0 {
			continue
		}

		if dd := (peak - point.Balance) / peak * 100; dd > maxDD {
			maxDD = dd
		}
	}

	return maxDD
}

// DrawdownCurve derives the per-point drawdown from the running peak of
// the equity curve.
func DrawdownCurve(curve []types.EquityPoint) []types.DrawdownPoint {
	out := make([]types.DrawdownPoint, 0, len(curve))

	var peak float64

	for _, point := range curve {
		if point.Balance > peak {
			peak = point.Balance
		}

		dd := 0.0
		if peak > 0 {
			dd = (peak - point.Balance) / peak * 100
		}

		out = append(out, types.DrawdownPoint{Time: point.Time, Drawdown: dd})
	}

	return out
}

// CheckCorrelation flags a position set where too many open positions
// share the same side, concentrating directional exposure.
func CheckCorrelation(positions []types.Position) bool {
	var longs, shorts int

	for _, p := range positions {
		if p.Side == types.PositionSideLong {
			longs++
		} else {
			shorts++
		}
	}

	return longs > maxSameSidePositions || shorts > maxSameSidePositions
}

// CanOpenPosition applies the soft risk limits for opening a new position.
// Blocked openings are reported with a reason and logged by the caller as
// warnings; they are never errors.
func CanOpenPosition(openCount int, dailyPnL float64, cfg types.RiskManagementConfig) (bool, string) {
	if openCount >= cfg.MaxOpenPositions {
		return false, "maximum open positions reached"
	}

	if cfg.MaxDailyLossAbs > 0 && dailyPnL < -cfg.MaxDailyLossAbs {
		return false, "daily loss limit breached"
	}

	return true, ""
}

// drawdownFromReturns walks the cumulative realized PnL of the trade log
// as an equity proxy and returns (max, current) drawdown.
func drawdownFromReturns(trades []types.Trade) (float64, float64) {
	var equity, peak, maxDD, currentDD float64

	for _, trade := range trades {
		if !trade.Realized {
			continue
		}

		equity += trade.PnL
		if equity > peak {
			peak = equity
		}

		currentDD = 0
		if peak > 0 {
			currentDD = (peak - equity) / peak * 100
		}

		if currentDD > maxDD {
			maxDD = currentDD
		}
	}

	return maxDD, currentDD
}

func holdingTime(seconds []int) types.TradeHoldingTime {
	ht := types.TradeHoldingTime{}
	if len(seconds) == 0 {
		return ht
	}

	ht.Min = seconds[0]
	ht.Max = seconds[0]

	var total int

	for _, s := range seconds {
		if s < ht.Min {
			ht.Min = s
		}

		if s > ht.Max {
			ht.Max = s
		}

		total += s
	}

	ht.Avg = total / len(seconds)

	return ht
}
