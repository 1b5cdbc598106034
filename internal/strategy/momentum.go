package strategy

import (
	"fmt"

	"github.com/helix-lab/helix-trading/internal/indicator"
	"github.com/helix-lab/helix-trading/internal/types"
)

// Signal strength score thresholds.
const (
	strongScoreThreshold = 70.0
	actionScoreThreshold = 40.0
)

// Momentum scores weighted indicator contributions into competing buy and
// sell scores and classifies the winner.
type Momentum struct{}

// NewMomentum creates the momentum strategy variant.
func NewMomentum() *Momentum {
	return &Momentum{}
}

// Name implements Strategy.
func (s *Momentum) Name() string {
	return NameMomentum
}

// GenerateSignal implements Strategy.
func (s *Momentum) GenerateSignal(bars []types.Bar, cfg types.StrategyConfig) (types.Signal, error) {
	snapshot, err := indicator.NewProvider(cfg.Indicators).Compute(bars)
	if err != nil {
		return types.Signal{}, err
	}

	lastBar := bars[len(bars)-1]
	price := lastBar.Close

	var buyScore, sellScore float64

	var reasons []string

	// EMA ordering, also used to read extreme RSI values below.
	uptrend := snapshot.EMA9 > snapshot.EMA21 && snapshot.EMA21 > snapshot.EMA50
	downtrend := snapshot.EMA9 < snapshot.EMA21 && snapshot.EMA21 < snapshot.EMA50

	// RSI contribution. An extreme reading against a confirmed EMA trend
	// is trend persistence, not a reversal setup, and scores nothing.
	switch {
	case snapshot.RSI < cfg.Indicators.RSIOversold:
		if downtrend {
			reasons = append(reasons, fmt.Sprintf("RSI oversold (%.1f) discounted, downtrend intact", snapshot.RSI))
		} else {
			buyScore += 25
			reasons = append(reasons, fmt.Sprintf("RSI oversold (%.1f < %.1f)", snapshot.RSI, cfg.Indicators.RSIOversold))
		}
	case snapshot.RSI < 45:
		buyScore += 10
		reasons = append(reasons, fmt.Sprintf("RSI leaning bullish (%.1f)", snapshot.RSI))
	case snapshot.RSI > cfg.Indicators.RSIOverbought:
		if uptrend {
			reasons = append(reasons, fmt.Sprintf("RSI overbought (%.1f) discounted, uptrend intact", snapshot.RSI))
		} else {
			sellScore += 25
			reasons = append(reasons, fmt.Sprintf("RSI overbought (%.1f > %.1f)", snapshot.RSI, cfg.Indicators.RSIOverbought))
		}
	case snapshot.RSI > 55:
		sellScore += 10
		reasons = append(reasons, fmt.Sprintf("RSI leaning bearish (%.1f)", snapshot.RSI))
	}

	// MACD crossover with matching histogram sign.
	if snapshot.MACD > snapshot.MACDSignal && snapshot.MACDHistogram > 0 {
		buyScore += 20
		reasons = append(reasons, "MACD bullish crossover")
	} else if snapshot.MACD < snapshot.MACDSignal && snapshot.MACDHistogram < 0 {
		sellScore += 20
		reasons = append(reasons, "MACD bearish crossover")
	}

	// Price inside the outer 20% of the Bollinger channel.
	if width := snapshot.BollingerUpper - snapshot.BollingerLower; width > 0 {
		if price <= snapshot.BollingerLower+0.2*width {
			buyScore += 15
			reasons = append(reasons, "price near lower Bollinger band")
		} else if price >= snapshot.BollingerUpper-0.2*width {
			sellScore += 15
			reasons = append(reasons, "price near upper Bollinger band")
		}
	}

	if snapshot.EMA9 > snapshot.EMA21 && uptrend {
		buyScore += 20
		reasons = append(reasons, "EMA stack confirms uptrend")
	} else if snapshot.EMA9 < snapshot.EMA21 && downtrend {
		sellScore += 20
		reasons = append(reasons, "EMA stack confirms downtrend")
	}

	// A volume expansion is accumulation; fading volume at an elevated
	// RSI is distribution.
	if snapshot.VolumeRatio > 1.5 {
		buyScore += 10
		reasons = append(reasons, fmt.Sprintf("volume surge (%.2fx)", snapshot.VolumeRatio))
	} else if snapshot.VolumeRatio < 0.7 && snapshot.RSI > 60 {
		sellScore += 10
		reasons = append(reasons, fmt.Sprintf("fading volume at elevated RSI (%.2fx)", snapshot.VolumeRatio))
	}

	strength, confidence := classifyScores(buyScore, sellScore)
	if len(reasons) == 0 {
		reasons = append(reasons, "no dominant momentum")
	}

	signal := types.Signal{
		Symbol:       lastBar.Symbol,
		Strength:     strength,
		Confidence:   confidence,
		Price:        price,
		Indicators:   snapshot,
		Reasons:      reasons,
		StopLoss:     0,
		TakeProfit:   0,
		StrategyName: s.Name(),
		Timestamp:    lastBar.CloseTime,
	}

	if signal.IsBuy() || signal.IsSell() {
		signal.StopLoss, signal.TakeProfit = s.ComputeExitLevels(signal, cfg.Risk)
	}

	return signal, nil
}

// ComputeExitLevels implements Strategy.
func (s *Momentum) ComputeExitLevels(signal types.Signal, risk types.RiskManagementConfig) (float64, float64) {
	return atrExitLevels(!signal.IsSell(), signal.Price, signal.Indicators, risk)
}

// classifyScores maps the competing scores onto a strength and confidence.
// A tie resolves to NEUTRAL with confidence 50.
func classifyScores(buyScore, sellScore float64) (types.SignalStrength, float64) {
	if buyScore == sellScore {
		return types.SignalNeutral, 50
	}

	leading := buyScore
	isBuy := true

	if sellScore > buyScore {
		leading = sellScore
		isBuy = false
	}

	confidence := min(leading, 100)

	switch {
	case leading >= strongScoreThreshold && isBuy:
		return types.SignalStrongBuy, confidence
	case leading >= strongScoreThreshold:
		return types.SignalStrongSell, confidence
	case leading >= actionScoreThreshold && isBuy:
		return types.SignalBuy, confidence
	case leading >= actionScoreThreshold:
		return types.SignalSell, confidence
	default:
		return types.SignalNeutral, confidence
	}
}
