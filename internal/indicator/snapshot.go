// Package indicator computes the per-bar indicator snapshot consumed by
// the strategies. The indicator math itself is delegated to go-talib; this
// package only extracts the latest values and guards the warm-up window.
package indicator

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/helix-lab/helix-trading/internal/types"
	"github.com/helix-lab/helix-trading/pkg/errors"
)

const (
	// WarmupBars is the minimum bar count required for indicator stability.
	WarmupBars = 200

	// volumeAveragePeriod is the window for the volume ratio baseline.
	volumeAveragePeriod = 20
)

// Provider computes indicator snapshots for a configured parameter set.
type Provider struct {
	params types.IndicatorParams
}

// NewProvider creates a provider using the given indicator parameters.
func NewProvider(params types.IndicatorParams) *Provider {
	return &Provider{
		params: params,
	}
}

// Compute derives the indicator snapshot for the latest bar of the series.
// It refuses to compute below the warm-up window rather than returning
// unstable values.
func (p *Provider) Compute(bars []types.Bar) (types.IndicatorSnapshot, error) {
	if len(bars) < WarmupBars {
		symbol := ""
		if len(bars) > 0 {
			symbol = bars[0].Symbol
		}

		return types.IndicatorSnapshot{}, errors.NewInsufficientDataErrorf(
			WarmupBars, len(bars), symbol,
			"need %d bars for indicator warm-up, have %d", WarmupBars, len(bars))
	}

	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	volumes := make([]float64, len(bars))

	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
		volumes[i] = b.Volume
	}

	rsi := talib.Rsi(closes, p.params.RSIPeriod)
	macd, macdSignal, macdHist := talib.Macd(closes, p.params.MACDFast, p.params.MACDSlow, p.params.MACDSignal)
	upper, middle, lower := talib.BBands(closes, p.params.BollingerPeriod, p.params.BollingerStdDev, p.params.BollingerStdDev, talib.SMA)
	atr := talib.Atr(highs, lows, closes, p.params.ATRPeriod)
	volumeAvg := talib.Sma(volumes, volumeAveragePeriod)

	snapshot := types.IndicatorSnapshot{
		RSI:             sanitize(last(rsi), 50),
		MACD:            sanitize(last(macd), 0),
		MACDSignal:      sanitize(last(macdSignal), 0),
		MACDHistogram:   sanitize(last(macdHist), 0),
		EMA9:            sanitize(last(talib.Ema(closes, 9)), 0),
		EMA21:           sanitize(last(talib.Ema(closes, 21)), 0),
		EMA50:           sanitize(last(talib.Ema(closes, 50)), 0),
		EMA200:          sanitize(last(talib.Ema(closes, 200)), 0),
		BollingerUpper:  sanitize(last(upper), 0),
		BollingerMiddle: sanitize(last(middle), 0),
		BollingerLower:  sanitize(last(lower), 0),
		ATR:             sanitize(last(atr), 0),
		VolumeRatio:     volumeRatio(volumes, volumeAvg),
	}

	return snapshot, nil
}

// last returns the final value of a series, or NaN for an empty series.
func last(series []float64) float64 {
	if len(series) == 0 {
		return math.NaN()
	}

	return series[len(series)-1]
}

// sanitize replaces non-finite values with a neutral default so that a
// single degenerate input (e.g., a zero-range series) never propagates
// NaN into signal scoring.
func sanitize(v, neutral float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return neutral
	}

	return v
}

func volumeRatio(volumes, volumeAvg []float64) float64 {
	avg := last(volumeAvg)
	if math.IsNaN(avg) || avg == 0 {
		// Neutral ratio when no volume baseline exists.
		return 1
	}

	return sanitize(last(volumes)/avg, 1)
}
