package types

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"

	"github.com/helix-lab/helix-trading/pkg/errors"
)

// RiskManagementConfig bounds the risk the engine is allowed to take.
// Immutable per run; supplied externally.
type RiskManagementConfig struct {
	// MaxPositionSizePercent is the balance percentage risked per trade.
	MaxPositionSizePercent float64 `yaml:"max_position_size_percent" json:"max_position_size_percent" validate:"gt=0,lte=100"`
	// MaxLeverage is the maximum leverage per position.
	MaxLeverage float64 `yaml:"max_leverage" json:"max_leverage" validate:"gte=1"`
	// StopLossPercent is the fallback stop distance when no ATR stop applies.
	StopLossPercent float64 `yaml:"stop_loss_percent" json:"stop_loss_percent" validate:"gte=0"`
	// TakeProfitPercent is the fallback profit target distance.
	TakeProfitPercent float64 `yaml:"take_profit_percent" json:"take_profit_percent" validate:"gte=0"`
	// MaxDailyLossAbs blocks new positions once today's realized loss
	// exceeds this absolute amount.
	MaxDailyLossAbs float64 `yaml:"max_daily_loss" json:"max_daily_loss" validate:"gte=0"`
	// MaxOpenPositions caps concurrently open positions.
	MaxOpenPositions int `yaml:"max_open_positions" json:"max_open_positions" validate:"gte=1"`
	// MinRiskRewardRatio is the required take-profit to stop distance ratio.
	MinRiskRewardRatio float64 `yaml:"min_risk_reward_ratio" json:"min_risk_reward_ratio" validate:"gt=0"`
	// AllowShort enables opening short positions. Short entries are skipped
	// with a logged reason when false; closing an existing short is always
	// allowed.
	AllowShort bool `yaml:"allow_short" json:"allow_short"`
}

// IndicatorParams holds the tunable indicator parameters of a strategy.
type IndicatorParams struct {
	RSIPeriod     int     `yaml:"rsi_period" json:"rsi_period" validate:"gt=1"`
	RSIOverbought float64 `yaml:"rsi_overbought" json:"rsi_overbought" validate:"gt=0,lte=100"`
	RSIOversold   float64 `yaml:"rsi_oversold" json:"rsi_oversold" validate:"gte=0,lt=100"`

	MACDFast   int `yaml:"macd_fast" json:"macd_fast" validate:"gt=1"`
	MACDSlow   int `yaml:"macd_slow" json:"macd_slow" validate:"gt=1"`
	MACDSignal int `yaml:"macd_signal" json:"macd_signal" validate:"gt=0"`

	BollingerPeriod int     `yaml:"bollinger_period" json:"bollinger_period" validate:"gt=1"`
	BollingerStdDev float64 `yaml:"bollinger_std_dev" json:"bollinger_std_dev" validate:"gt=0"`

	ATRPeriod int `yaml:"atr_period" json:"atr_period" validate:"gt=1"`

	// BreakoutLookback is the trailing window for support/resistance.
	BreakoutLookback int `yaml:"breakout_lookback" json:"breakout_lookback" validate:"gt=1"`
}

// StrategyConfig is the full configuration of one engine run. Supplied at
// start and replaceable via UpdateConfig or the adaptive selector.
type StrategyConfig struct {
	// Name selects the strategy variant ("momentum" or "breakout").
	Name string `yaml:"name" json:"name" validate:"required,oneof=momentum breakout"`
	// Symbols are analyzed in configured order each cycle.
	Symbols []string `yaml:"symbols" json:"symbols" validate:"required,min=1,dive,required"`
	// Timeframe is the bar interval, which also drives the cycle schedule.
	Timeframe string `yaml:"timeframe" json:"timeframe" validate:"required"`
	// Indicators holds the indicator parameter set.
	Indicators IndicatorParams `yaml:"indicators" json:"indicators"`
	// Risk holds the risk limits.
	Risk RiskManagementConfig `yaml:"risk" json:"risk"`
}

// StrategyConfigPatch is a partial configuration used by UpdateConfig.
// Unset fields keep their current values.
type StrategyConfigPatch struct {
	Name       optional.Option[string]               `yaml:"name" json:"name"`
	Symbols    optional.Option[[]string]             `yaml:"symbols" json:"symbols"`
	Timeframe  optional.Option[string]               `yaml:"timeframe" json:"timeframe"`
	Indicators optional.Option[IndicatorParams]      `yaml:"indicators" json:"indicators"`
	Risk       optional.Option[RiskManagementConfig] `yaml:"risk" json:"risk"`
}

// DefaultIndicatorParams returns the standard indicator parameter set.
func DefaultIndicatorParams() IndicatorParams {
	return IndicatorParams{
		RSIPeriod:        14,
		RSIOverbought:    70,
		RSIOversold:      30,
		MACDFast:         12,
		MACDSlow:         26,
		MACDSignal:       9,
		BollingerPeriod:  20,
		BollingerStdDev:  2.0,
		ATRPeriod:        14,
		BreakoutLookback: 50,
	}
}

// DefaultRiskConfig returns conservative default risk limits.
func DefaultRiskConfig() RiskManagementConfig {
	return RiskManagementConfig{
		MaxPositionSizePercent: 2,
		MaxLeverage:            1,
		StopLossPercent:        2,
		TakeProfitPercent:      4,
		MaxDailyLossAbs:        500,
		MaxOpenPositions:       3,
		MinRiskRewardRatio:     2,
		AllowShort:             false,
	}
}

// Validate checks required fields and value ranges.
func (c *StrategyConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid strategy config", err)
	}

	if _, err := IntervalDuration(c.Timeframe); err != nil {
		return err
	}

	if c.Indicators.MACDFast >= c.Indicators.MACDSlow {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"macd fast period (%d) must be below slow period (%d)",
			c.Indicators.MACDFast, c.Indicators.MACDSlow)
	}

	return nil
}

// Merge applies a partial patch and returns the merged configuration.
// The receiver is not modified.
func (c StrategyConfig) Merge(patch StrategyConfigPatch) StrategyConfig {
	merged := c

	if patch.Name.IsSome() {
		merged.Name = patch.Name.Unwrap()
	}

	if patch.Symbols.IsSome() {
		merged.Symbols = patch.Symbols.Unwrap()
	}

	if patch.Timeframe.IsSome() {
		merged.Timeframe = patch.Timeframe.Unwrap()
	}

	if patch.Indicators.IsSome() {
		merged.Indicators = patch.Indicators.Unwrap()
	}

	if patch.Risk.IsSome() {
		merged.Risk = patch.Risk.Unwrap()
	}

	return merged
}

// LoadStrategyConfig reads and validates a strategy config from a YAML file.
func LoadStrategyConfig(path string) (StrategyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return StrategyConfig{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	config := StrategyConfig{
		Name:       "momentum",
		Symbols:    nil,
		Timeframe:  "1h",
		Indicators: DefaultIndicatorParams(),
		Risk:       DefaultRiskConfig(),
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return StrategyConfig{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config file", err)
	}

	if err := config.Validate(); err != nil {
		return StrategyConfig{}, err
	}

	return config, nil
}
