// Package testutil provides synthetic bar series generators shared by the
// engine, strategy and backtest tests.
package testutil

import (
	"math"
	"time"

	"github.com/helix-lab/helix-trading/internal/types"
)

// SeriesStart is the fixed origin of every generated series so tests stay
// deterministic.
var SeriesStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// bar builds one hourly bar at index i.
func bar(symbol string, i int, open, high, low, closePrice, volume float64) types.Bar {
	openTime := SeriesStart.Add(time.Duration(i) * time.Hour)

	return types.Bar{
		Symbol:    symbol,
		OpenTime:  openTime,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
		CloseTime: openTime.Add(time.Hour),
	}
}

// UptrendBars returns n hourly bars with monotonically rising closes and a
// volume expansion on the final bar.
func UptrendBars(symbol string, n int) []types.Bar {
	bars := make([]types.Bar, n)
	for i := range n {
		base := 100 + float64(i)*0.5
		volume := 1000.0
		if i == n-1 {
			volume = 2500
		}

		bars[i] = bar(symbol, i, base, base+1, base-0.5, base+0.8, volume)
	}

	return bars
}

// SteadyUptrendBars returns n hourly bars with monotonically rising
// closes and constant volume.
func SteadyUptrendBars(symbol string, n int) []types.Bar {
	bars := make([]types.Bar, n)
	for i := range n {
		base := 100 + float64(i)*0.5
		bars[i] = bar(symbol, i, base, base+1, base-0.5, base+0.8, 1000)
	}

	return bars
}

// DowntrendBars returns n hourly bars with monotonically falling closes.
func DowntrendBars(symbol string, n int) []types.Bar {
	bars := make([]types.Bar, n)
	for i := range n {
		base := 500 - float64(i)*0.5
		bars[i] = bar(symbol, i, base, base+0.5, base-1, base-0.8, 1000+float64(i%10)*50)
	}

	return bars
}

// FlatBars returns n hourly bars at a constant price.
func FlatBars(symbol string, n int, price float64) []types.Bar {
	bars := make([]types.Bar, n)
	for i := range n {
		bars[i] = bar(symbol, i, price, price, price, price, 1000)
	}

	return bars
}

// RangeBars returns n hourly bars oscillating inside a fixed channel.
func RangeBars(symbol string, n int) []types.Bar {
	bars := make([]types.Bar, n)
	for i := range n {
		offset := 5 * math.Sin(float64(i)/6)
		base := 100 + offset
		bars[i] = bar(symbol, i, base, base+0.6, base-0.6, base+0.2, 1000)
	}

	return bars
}

// MildRangeBars returns n bars oscillating inside a narrow one-point
// channel, with no trend and steady volatility.
func MildRangeBars(symbol string, n int) []types.Bar {
	bars := make([]types.Bar, n)
	for i := range n {
		base := 100 + math.Sin(float64(i)/6)
		bars[i] = bar(symbol, i, base, base+0.4, base-0.4, base+0.1, 1000)
	}

	return bars
}

// BreakoutBars returns n bars ranging inside a channel, with the last bar
// breaking above the channel high on elevated volume.
func BreakoutBars(symbol string, n int) []types.Bar {
	bars := RangeBars(symbol, n)
	lastIdx := n - 1
	prev := bars[lastIdx-1]

	breakPrice := 110.0
	bars[lastIdx] = bar(symbol, lastIdx, prev.Close, breakPrice+1, prev.Close-0.2, breakPrice, 3000)

	return bars
}

// BreakoutTrendBars returns a breakout series followed by rise bars that
// keep climbing from the breakout price, so a long entry at the breakout
// eventually reaches its profit target.
func BreakoutTrendBars(symbol string, n, rise int) []types.Bar {
	bars := BreakoutBars(symbol, n)
	last := bars[len(bars)-1].Close

	for i := range rise {
		base := last + float64(i)*0.5
		bars = append(bars, bar(symbol, n+i, base, base+1, base-0.3, base+0.5, 2000))
	}

	return bars
}

// BreakdownBars returns n bars ranging inside a channel, with the last
// bar breaking below the channel low on elevated volume.
func BreakdownBars(symbol string, n int) []types.Bar {
	bars := RangeBars(symbol, n)
	lastIdx := n - 1
	prev := bars[lastIdx-1]

	breakPrice := 90.0
	bars[lastIdx] = bar(symbol, lastIdx, prev.Close, prev.Close+0.2, breakPrice-1, breakPrice, 3000)

	return bars
}

// ReversalBars returns 361 bars: a narrow range that breaks down on
// volume (a short setup), a drift near the breakdown price, then a
// final bar breaking back above the post-breakdown range on volume. The
// last bar's range stays inside the ATR-derived protective levels of a
// short entered at the breakdown.
func ReversalBars(symbol string) []types.Bar {
	bars := MildRangeBars(symbol, 300)

	prev := bars[299]
	bars = append(bars, bar(symbol, 300, prev.Close, prev.Close+0.2, 89, 90, 3000))

	for i := 301; i < 360; i++ {
		base := 90 + 0.3*math.Sin(float64(i)/6)
		bars = append(bars, bar(symbol, i, base, base+0.4, base-0.4, base+0.1, 1000))
	}

	return append(bars, bar(symbol, 360, 90.2, 92.5, 90, 92, 3000))
}

// TrendingVolatileBars returns n rising bars whose trading range widens
// sharply in the final quarter.
func TrendingVolatileBars(symbol string, n int) []types.Bar {
	bars := make([]types.Bar, n)
	for i := range n {
		spread := 0.5
		if i > n*3/4 {
			spread = 5
		}

		base := 100 + float64(i)*0.5
		bars[i] = bar(symbol, i, base, base+spread, base-spread, base+0.3, 1000)
	}

	return bars
}

// VolatileBars returns n bars whose trading range widens sharply in the
// final quarter of the series.
func VolatileBars(symbol string, n int) []types.Bar {
	bars := make([]types.Bar, n)
	for i := range n {
		spread := 0.5
		if i > n*3/4 {
			spread = 5
		}

		base := 100 + 2*math.Sin(float64(i)/8)
		bars[i] = bar(symbol, i, base, base+spread, base-spread, base+spread/2, 1000)
	}

	return bars
}
