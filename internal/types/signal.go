package types

import "time"

// SignalStrength classifies how strongly a strategy recommends acting.
type SignalStrength string

const (
	SignalStrongBuy  SignalStrength = "STRONG_BUY"
	SignalBuy        SignalStrength = "BUY"
	SignalNeutral    SignalStrength = "NEUTRAL"
	SignalSell       SignalStrength = "SELL"
	SignalStrongSell SignalStrength = "STRONG_SELL"
)

// Signal is an immutable trading recommendation produced once per analysis
// cycle by a strategy.
type Signal struct {
	// Symbol is the trading pair the signal applies to.
	Symbol string `yaml:"symbol" json:"symbol"`
	// Strength is the signal classification.
	Strength SignalStrength `yaml:"strength" json:"strength"`
	// Confidence is the strategy's confidence in [0, 100].
	Confidence float64 `yaml:"confidence" json:"confidence"`
	// Price is the close price the signal was computed at.
	Price float64 `yaml:"price" json:"price"`
	// Indicators is the snapshot the signal was derived from.
	Indicators IndicatorSnapshot `yaml:"indicators" json:"indicators"`
	// Reasons lists the human-readable contributions, in scoring order.
	Reasons []string `yaml:"reasons" json:"reasons"`
	// StopLoss is the proposed protective stop level, 0 when not applicable.
	StopLoss float64 `yaml:"stop_loss" json:"stop_loss"`
	// TakeProfit is the proposed profit target, 0 when not applicable.
	TakeProfit float64 `yaml:"take_profit" json:"take_profit"`
	// StrategyName is the name of the strategy that produced the signal.
	StrategyName string `yaml:"strategy_name" json:"strategy_name"`
	// Timestamp is the close time of the bar the signal was computed on.
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
}

// IsBuy reports whether the signal recommends entering or adding to a long.
func (s Signal) IsBuy() bool {
	return s.Strength == SignalBuy || s.Strength == SignalStrongBuy
}

// IsSell reports whether the signal recommends entering or adding to a short.
func (s Signal) IsSell() bool {
	return s.Strength == SignalSell || s.Strength == SignalStrongSell
}

// IsActionable reports whether the signal is non-neutral and meets the
// given confidence floor.
func (s Signal) IsActionable(minConfidence float64) bool {
	return s.Strength != SignalNeutral && s.Confidence >= minConfidence
}
