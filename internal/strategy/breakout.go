package strategy

import (
	"fmt"

	"github.com/helix-lab/helix-trading/internal/indicator"
	"github.com/helix-lab/helix-trading/internal/types"
)

const (
	// breakoutVolumeRatio is the minimum volume expansion required to
	// confirm a break of the range.
	breakoutVolumeRatio = 1.3

	breakoutBaseConfidence = 85.0
	breakoutRSIBonus       = 10.0
)

// Breakout detects closes beyond the rolling support/resistance range,
// confirmed by a volume expansion.
type Breakout struct{}

// NewBreakout creates the breakout strategy variant.
func NewBreakout() *Breakout {
	return &Breakout{}
}

// Name implements Strategy.
func (s *Breakout) Name() string {
	return NameBreakout
}

// GenerateSignal implements Strategy.
func (s *Breakout) GenerateSignal(bars []types.Bar, cfg types.StrategyConfig) (types.Signal, error) {
	snapshot, err := indicator.NewProvider(cfg.Indicators).Compute(bars)
	if err != nil {
		return types.Signal{}, err
	}

	lastBar := bars[len(bars)-1]
	prevClose := bars[len(bars)-2].Close
	price := lastBar.Close

	// Rolling range over the trailing window, excluding the current bar so
	// a fresh break can be detected against it.
	lookback := cfg.Indicators.BreakoutLookback
	window := bars[len(bars)-1-lookback : len(bars)-1]

	resistance := window[0].High
	support := window[0].Low

	for _, b := range window[1:] {
		if b.High > resistance {
			resistance = b.High
		}

		if b.Low < support {
			support = b.Low
		}
	}

	signal := types.Signal{
		Symbol:       lastBar.Symbol,
		Strength:     types.SignalNeutral,
		Confidence:   50,
		Price:        price,
		Indicators:   snapshot,
		Reasons:      nil,
		StopLoss:     0,
		TakeProfit:   0,
		StrategyName: s.Name(),
		Timestamp:    lastBar.CloseTime,
	}

	volumeConfirmed := snapshot.VolumeRatio > breakoutVolumeRatio

	switch {
	case price > resistance && prevClose <= resistance && volumeConfirmed:
		signal.Strength = types.SignalStrongBuy
		signal.Confidence = breakoutBaseConfidence
		signal.Reasons = append(signal.Reasons,
			fmt.Sprintf("resistance break at %.2f on %.2fx volume", resistance, snapshot.VolumeRatio))

		if snapshot.RSI < cfg.Indicators.RSIOverbought {
			signal.Confidence += breakoutRSIBonus
			signal.Reasons = append(signal.Reasons, fmt.Sprintf("RSI has headroom (%.1f)", snapshot.RSI))
		}
	case price < support && prevClose >= support && volumeConfirmed:
		signal.Strength = types.SignalStrongSell
		signal.Confidence = breakoutBaseConfidence
		signal.Reasons = append(signal.Reasons,
			fmt.Sprintf("support break at %.2f on %.2fx volume", support, snapshot.VolumeRatio))

		if snapshot.RSI > cfg.Indicators.RSIOversold {
			signal.Confidence += breakoutRSIBonus
			signal.Reasons = append(signal.Reasons, fmt.Sprintf("RSI has headroom (%.1f)", snapshot.RSI))
		}
	default:
		signal.Reasons = append(signal.Reasons,
			fmt.Sprintf("price %.2f inside range [%.2f, %.2f]", price, support, resistance))
	}

	if signal.IsBuy() || signal.IsSell() {
		signal.StopLoss, signal.TakeProfit = s.ComputeExitLevels(signal, cfg.Risk)
	}

	return signal, nil
}

// ComputeExitLevels implements Strategy.
func (s *Breakout) ComputeExitLevels(signal types.Signal, risk types.RiskManagementConfig) (float64, float64) {
	return atrExitLevels(!signal.IsSell(), signal.Price, signal.Indicators, risk)
}
