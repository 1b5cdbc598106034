package types

import (
	"time"

	"github.com/helix-lab/helix-trading/pkg/errors"
)

// Bar represents a single OHLCV price observation over a fixed time interval.
// Bars are immutable once produced and a series is ordered ascending by open time.
type Bar struct {
	// Symbol is the trading pair this bar belongs to (e.g., "BTCUSDT").
	Symbol string `yaml:"symbol" json:"symbol"`
	// OpenTime is the start of the bar interval.
	OpenTime time.Time `yaml:"open_time" json:"open_time"`
	// Open is the first traded price of the interval.
	Open float64 `yaml:"open" json:"open"`
	// High is the highest traded price of the interval.
	High float64 `yaml:"high" json:"high"`
	// Low is the lowest traded price of the interval.
	Low float64 `yaml:"low" json:"low"`
	// Close is the last traded price of the interval.
	Close float64 `yaml:"close" json:"close"`
	// Volume is the base-asset volume traded during the interval.
	Volume float64 `yaml:"volume" json:"volume"`
	// CloseTime is the end of the bar interval.
	CloseTime time.Time `yaml:"close_time" json:"close_time"`
}

// IndicatorSnapshot holds the indicator values derived from a bar series
// for the latest bar. Derived purely from bars and never mutated.
type IndicatorSnapshot struct {
	// RSI is the Relative Strength Index in [0, 100].
	RSI float64 `yaml:"rsi" json:"rsi"`
	// MACD is the MACD line value.
	MACD float64 `yaml:"macd" json:"macd"`
	// MACDSignal is the MACD signal line value.
	MACDSignal float64 `yaml:"macd_signal" json:"macd_signal"`
	// MACDHistogram is MACD minus the signal line.
	MACDHistogram float64 `yaml:"macd_histogram" json:"macd_histogram"`
	// EMA9/EMA21/EMA50/EMA200 are exponential moving averages of the close.
	EMA9   float64 `yaml:"ema_9" json:"ema_9"`
	EMA21  float64 `yaml:"ema_21" json:"ema_21"`
	EMA50  float64 `yaml:"ema_50" json:"ema_50"`
	EMA200 float64 `yaml:"ema_200" json:"ema_200"`
	// Bollinger band values around the middle moving average.
	BollingerUpper  float64 `yaml:"bollinger_upper" json:"bollinger_upper"`
	BollingerMiddle float64 `yaml:"bollinger_middle" json:"bollinger_middle"`
	BollingerLower  float64 `yaml:"bollinger_lower" json:"bollinger_lower"`
	// ATR is the Average True Range.
	ATR float64 `yaml:"atr" json:"atr"`
	// VolumeRatio is the latest volume divided by its 20-period average.
	VolumeRatio float64 `yaml:"volume_ratio" json:"volume_ratio"`
}

// intervalDurations maps supported timeframes to their bar durations.
var intervalDurations = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// IntervalDuration returns the duration of one bar for the given timeframe.
func IntervalDuration(interval string) (time.Duration, error) {
	d, ok := intervalDurations[interval]
	if !ok {
		return 0, errors.Newf(errors.ErrCodeUnknownTimeframe, "unknown timeframe: %s", interval)
	}

	return d, nil
}

// BarsForDays returns the number of bars that cover the given number of
// calendar days at the given timeframe. Unknown timeframes fall back to
// one bar per hour.
func BarsForDays(interval string, days int) int {
	d, err := IntervalDuration(interval)
	if err != nil {
		d = time.Hour
	}

	return int((time.Duration(days) * 24 * time.Hour) / d)
}
