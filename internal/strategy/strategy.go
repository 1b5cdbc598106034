// Package strategy implements the signal-generating strategy variants.
// The variant set is closed: strategies are selected once at configuration
// time, and the live and offline paths run the exact same code.
package strategy

import (
	"github.com/helix-lab/helix-trading/internal/types"
	"github.com/helix-lab/helix-trading/pkg/errors"
)

// Strategy variant names.
const (
	NameMomentum = "momentum"
	NameBreakout = "breakout"
)

// MinOpenConfidence is the confidence floor for opening a position.
const MinOpenConfidence = 70.0

// Strategy turns a bar series into a trading signal. Implementations must
// be deterministic: identical bars and config produce an identical signal.
type Strategy interface {
	// Name returns the strategy variant name.
	Name() string
	// GenerateSignal analyzes the bar series and produces a signal for the
	// latest bar. Returns an InsufficientDataError below the warm-up window.
	GenerateSignal(bars []types.Bar, cfg types.StrategyConfig) (types.Signal, error)
	// ComputeExitLevels returns the stop-loss and take-profit levels for
	// acting on the given signal.
	ComputeExitLevels(signal types.Signal, risk types.RiskManagementConfig) (stopLoss, takeProfit float64)
}

// ForName returns the strategy variant for the given name.
func ForName(name string) (Strategy, error) {
	switch name {
	case NameMomentum:
		return NewMomentum(), nil
	case NameBreakout:
		return NewBreakout(), nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnknownStrategy, "unknown strategy: %s", name)
	}
}

// Names returns the closed set of known strategy names, in a fixed order.
func Names() []string {
	return []string{NameMomentum, NameBreakout}
}

// bollingerStopBuffer keeps stops from sitting inside the opposite
// Bollinger band by pushing them 0.5% beyond it.
const bollingerStopBuffer = 0.005

// atrExitLevels derives exit levels from the ATR: the stop sits two ATRs
// away and the target at the configured risk/reward multiple of the stop
// distance. Falls back to the percentage stop when the ATR is degenerate.
func atrExitLevels(isLong bool, price float64, snapshot types.IndicatorSnapshot, risk types.RiskManagementConfig) (float64, float64) {
	stopDistance := snapshot.ATR * 2
	if stopDistance <= 0 {
		stopDistance = price * risk.StopLossPercent / 100
	}

	takeDistance := stopDistance * risk.MinRiskRewardRatio

	if isLong {
		stop := price - stopDistance
		if snapshot.BollingerLower > 0 && stop > snapshot.BollingerLower*(1-bollingerStopBuffer) {
			stop = snapshot.BollingerLower * (1 - bollingerStopBuffer)
		}

		return stop, price + takeDistance
	}

	stop := price + stopDistance
	if snapshot.BollingerUpper > 0 && stop < snapshot.BollingerUpper*(1+bollingerStopBuffer) {
		stop = snapshot.BollingerUpper * (1 + bollingerStopBuffer)
	}

	return stop, price - takeDistance
}
