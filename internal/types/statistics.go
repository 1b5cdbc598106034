package types

import "time"

// TradeHoldingTime summarizes how long realized trades were held.
type TradeHoldingTime struct {
	// Minimum holding time of a trade in seconds
	Min int `yaml:"min" json:"min"`
	// Maximum holding time of a trade in seconds
	Max int `yaml:"max" json:"max"`
	// Average holding time of a trade in seconds
	Avg int `yaml:"avg" json:"avg"`
}

// TradingStats is a pure function of a trade list. Zero trades yield all
// zero fields.
type TradingStats struct {
	// TotalTrades counts realized trades.
	TotalTrades int `yaml:"total_trades" json:"total_trades"`
	// WinningTrades counts realized trades with positive PnL.
	WinningTrades int `yaml:"winning_trades" json:"winning_trades"`
	// LosingTrades counts realized trades with negative PnL.
	LosingTrades int `yaml:"losing_trades" json:"losing_trades"`
	// WinRate is WinningTrades over TotalTrades, in percent.
	WinRate float64 `yaml:"win_rate" json:"win_rate"`
	// TotalPnL is the sum of realized PnL.
	TotalPnL float64 `yaml:"total_pnl" json:"total_pnl"`
	// TotalPnLPercent is the sum of realized per-trade percentage returns.
	TotalPnLPercent float64 `yaml:"total_pnl_percent" json:"total_pnl_percent"`
	// AverageWin is the mean PnL of winning trades.
	AverageWin float64 `yaml:"average_win" json:"average_win"`
	// AverageLoss is the mean PnL of losing trades, reported positive.
	AverageLoss float64 `yaml:"average_loss" json:"average_loss"`
	// ProfitFactor is gross profit over gross loss. Infinite when there are
	// winners and no losers, zero otherwise when gross loss is zero.
	ProfitFactor float64 `yaml:"profit_factor" json:"profit_factor"`
	// SharpeRatio is the annualized excess-return-to-volatility ratio of
	// per-trade percentage returns.
	SharpeRatio float64 `yaml:"sharpe_ratio" json:"sharpe_ratio"`
	// MaxDrawdown is the largest percentage decline from a running equity
	// peak, in [0, 100].
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown"`
	// CurrentDrawdown is the decline from the running peak at the end of
	// the trade list.
	CurrentDrawdown float64 `yaml:"current_drawdown" json:"current_drawdown"`
	// HoldingTime summarizes trade durations.
	HoldingTime TradeHoldingTime `yaml:"holding_time" json:"holding_time"`
}

// EquityPoint is one mark-to-market balance observation.
type EquityPoint struct {
	Time    time.Time `yaml:"time" json:"time"`
	Balance float64   `yaml:"balance" json:"balance"`
}

// DrawdownPoint is the percentage decline from the running equity peak at
// one point in time.
type DrawdownPoint struct {
	Time     time.Time `yaml:"time" json:"time"`
	Drawdown float64   `yaml:"drawdown" json:"drawdown"`
}

// BacktestResult is produced once per backtest run and never mutated.
type BacktestResult struct {
	// Symbol is the simulated trading pair.
	Symbol string `yaml:"symbol" json:"symbol"`
	// StrategyName is the strategy variant that was replayed.
	StrategyName string `yaml:"strategy_name" json:"strategy_name"`
	// StartTime/EndTime bound the simulated period.
	StartTime time.Time `yaml:"start_time" json:"start_time"`
	EndTime   time.Time `yaml:"end_time" json:"end_time"`
	// InitialBalance is the starting cash balance.
	InitialBalance float64 `yaml:"initial_balance" json:"initial_balance"`
	// FinalBalance is the ending balance after the forced close.
	FinalBalance float64 `yaml:"final_balance" json:"final_balance"`
	// TotalReturnPercent is the balance change in percent.
	TotalReturnPercent float64 `yaml:"total_return_percent" json:"total_return_percent"`
	// BuyAndHoldPnL is the benchmark PnL of holding from the first analyzed
	// bar to the last.
	BuyAndHoldPnL float64 `yaml:"buy_and_hold_pnl" json:"buy_and_hold_pnl"`
	// Trades is the full execution log of the run.
	Trades []Trade `yaml:"trades" json:"trades"`
	// Stats aggregates the trade log.
	Stats TradingStats `yaml:"stats" json:"stats"`
	// EquityCurve holds one mark-to-market point per analyzed bar.
	EquityCurve []EquityPoint `yaml:"equity_curve" json:"equity_curve"`
	// DrawdownCurve is derived from the running peak of the equity curve.
	DrawdownCurve []DrawdownPoint `yaml:"drawdown_curve" json:"drawdown_curve"`
}
