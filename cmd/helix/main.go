package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/helix-lab/helix-trading/internal/adaptive"
	"github.com/helix-lab/helix-trading/internal/backtest"
	"github.com/helix-lab/helix-trading/internal/engine"
	"github.com/helix-lab/helix-trading/internal/exchange"
	"github.com/helix-lab/helix-trading/internal/indicator"
	"github.com/helix-lab/helix-trading/internal/logger"
	"github.com/helix-lab/helix-trading/internal/optimizer"
	"github.com/helix-lab/helix-trading/internal/types"
)

func main() {
	cmd := &cli.Command{
		Name:  "helix",
		Usage: "Signal-driven crypto trading: live orchestration, backtests and parameter search",
		Commands: []*cli.Command{
			runCommand(),
			backtestCommand(),
			optimizeCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the strategy config YAML",
		Value:   "config/config.yaml",
	}
}

func testnetFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:  "testnet",
		Usage: "Use the Binance spot testnet",
		Value: false,
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the live trading orchestrator until interrupted",
		Flags: []cli.Flag{
			configFlag(),
			testnetFlag(),
			&cli.BoolFlag{
				Name:  "adaptive",
				Usage: "Re-select the strategy daily from recent performance",
				Value: true,
			},
		},
		Action: runAction,
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := types.LoadStrategyConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	logg, err := logger.NewLogger()
	if err != nil {
		return err
	}

	exch, err := exchange.NewBinance(exchange.BinanceConfig{
		APIKey:     os.Getenv("BINANCE_API_KEY"),
		SecretKey:  os.Getenv("BINANCE_SECRET_KEY"),
		UseTestnet: cmd.Bool("testnet"),
		BaseURL:    "",
	})
	if err != nil {
		return err
	}

	bus := engine.NewBus()
	bus.Subscribe(engine.EventPositionClosed, func(event engine.Event) {
		if event.Trade != nil {
			logg.Info("Trade realized",
				zap.String("symbol", event.Trade.Symbol),
				zap.Float64("pnl", event.Trade.PnL),
			)
		}
	})

	orch, err := engine.NewOrchestrator(cfg, exch, bus, logg)
	if err != nil {
		return err
	}

	if cmd.Bool("adaptive") {
		orch.SetSelector(adaptive.NewSelector(exch, logg))
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := orch.Start(runCtx); err != nil {
		return err
	}

	<-runCtx.Done()

	return orch.Stop()
}

func backtestCommand() *cli.Command {
	return &cli.Command{
		Name:  "backtest",
		Usage: "Replay recent history through the configured strategy",
		Flags: []cli.Flag{
			configFlag(),
			testnetFlag(),
			&cli.IntFlag{
				Name:    "days",
				Aliases: []string{"d"},
				Usage:   "Days of history to replay",
				Value:   30,
			},
			&cli.FloatFlag{
				Name:    "balance",
				Aliases: []string{"b"},
				Usage:   "Initial balance",
				Value:   10000,
			},
		},
		Action: backtestAction,
	}
}

func backtestAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := types.LoadStrategyConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	logg, err := logger.NewLogger()
	if err != nil {
		return err
	}

	bars, err := fetchHistory(ctx, cmd, cfg, int(cmd.Int("days")))
	if err != nil {
		return err
	}

	bt := backtest.NewEngine(logg)

	bar := progressbar.Default(int64(len(bars)-indicator.WarmupBars), "replaying")
	bt.SetProgressCallback(func(done, _ int) {
		_ = bar.Set(done)
	})

	result, err := bt.Run(bars, cfg, cmd.Float("balance"))
	if err != nil {
		return err
	}

	_ = bar.Finish()
	printResult(result)

	return nil
}

func optimizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "optimize",
		Usage: "Grid-search indicator parameters, optionally walk-forward validated",
		Flags: []cli.Flag{
			configFlag(),
			testnetFlag(),
			&cli.IntFlag{
				Name:    "days",
				Aliases: []string{"d"},
				Usage:   "Days of history to search over",
				Value:   90,
			},
			&cli.FloatFlag{
				Name:    "balance",
				Aliases: []string{"b"},
				Usage:   "Initial balance per run",
				Value:   10000,
			},
			&cli.StringFlag{
				Name:  "rsi-periods",
				Usage: "Comma-separated RSI periods to try",
				Value: "7,14,21",
			},
			&cli.StringFlag{
				Name:  "rsi-overbought",
				Usage: "Comma-separated RSI overbought levels to try",
				Value: "70,80",
			},
			&cli.StringFlag{
				Name:  "rsi-oversold",
				Usage: "Comma-separated RSI oversold levels to try",
				Value: "20,30",
			},
			&cli.StringFlag{
				Name:  "macd-fast",
				Usage: "Comma-separated MACD fast periods to try",
				Value: "8,12",
			},
			&cli.StringFlag{
				Name:  "macd-slow",
				Usage: "Comma-separated MACD slow periods to try",
				Value: "21,26",
			},
			&cli.BoolFlag{
				Name:  "walk-forward",
				Usage: "Validate the search with sliding out-of-sample windows",
				Value: false,
			},
			&cli.IntFlag{
				Name:  "optimize-days",
				Usage: "Train window in days for walk-forward",
				Value: 30,
			},
			&cli.IntFlag{
				Name:  "test-days",
				Usage: "Test window in days for walk-forward",
				Value: 7,
			},
		},
		Action: optimizeAction,
	}
}

func optimizeAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := types.LoadStrategyConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	logg, err := logger.NewLogger()
	if err != nil {
		return err
	}

	space, err := parseSpace(cmd)
	if err != nil {
		return err
	}

	bars, err := fetchHistory(ctx, cmd, cfg, int(cmd.Int("days")))
	if err != nil {
		return err
	}

	opt := optimizer.New(logg)
	balance := cmd.Float("balance")

	if cmd.Bool("walk-forward") {
		result, wfErr := opt.WalkForward(ctx, bars, cfg, space, balance,
			int(cmd.Int("optimize-days")), int(cmd.Int("test-days")))
		if wfErr != nil {
			return wfErr
		}

		fmt.Printf("Walk-forward: %d windows, mean return %.2f%%, mean Sharpe %.2f\n",
			len(result.Windows), result.MeanReturnPercent, result.MeanSharpe)

		for i, window := range result.Windows {
			fmt.Printf("  window %d: %s..%s return %.2f%% sharpe %.2f (rsi=%d macd=%d/%d)\n",
				i+1,
				window.TestStart.Format("2006-01-02"), window.TestEnd.Format("2006-01-02"),
				window.Test.TotalReturnPercent, window.Test.Stats.SharpeRatio,
				window.BestParams.RSIPeriod, window.BestParams.MACDFast, window.BestParams.MACDSlow)
		}

		return nil
	}

	best, all, err := opt.GridSearch(ctx, bars, cfg, space, balance)
	if err != nil {
		return err
	}

	fmt.Printf("Searched %d combinations\n", len(all))
	fmt.Printf("Best: rsi=%d overbought=%.0f oversold=%.0f macd=%d/%d\n",
		best.Params.RSIPeriod, best.Params.RSIOverbought, best.Params.RSIOversold,
		best.Params.MACDFast, best.Params.MACDSlow)
	printResult(best.Backtest)

	return nil
}

func fetchHistory(ctx context.Context, cmd *cli.Command, cfg types.StrategyConfig, days int) ([]types.Bar, error) {
	exch := exchange.NewBinancePublic(exchange.BinanceConfig{
		APIKey:     os.Getenv("BINANCE_API_KEY"),
		SecretKey:  os.Getenv("BINANCE_SECRET_KEY"),
		UseTestnet: cmd.Bool("testnet"),
		BaseURL:    "",
	})

	limit := types.BarsForDays(cfg.Timeframe, days)

	return exch.GetHistoricalBars(ctx, cfg.Symbols[0], cfg.Timeframe, limit)
}

func printResult(result types.BacktestResult) {
	fmt.Printf("\n%s / %s  %s .. %s\n",
		result.Symbol, result.StrategyName,
		result.StartTime.Format("2006-01-02 15:04"), result.EndTime.Format("2006-01-02 15:04"))
	fmt.Printf("  balance:       %.2f -> %.2f (%.2f%%)\n",
		result.InitialBalance, result.FinalBalance, result.TotalReturnPercent)
	fmt.Printf("  buy and hold:  %.2f\n", result.BuyAndHoldPnL)
	fmt.Printf("  trades:        %d (win rate %.1f%%)\n", result.Stats.TotalTrades, result.Stats.WinRate)

	if math.IsInf(result.Stats.ProfitFactor, 1) {
		fmt.Printf("  profit factor: inf\n")
	} else {
		fmt.Printf("  profit factor: %.2f\n", result.Stats.ProfitFactor)
	}

	fmt.Printf("  sharpe:        %.2f\n", result.Stats.SharpeRatio)
	fmt.Printf("  max drawdown:  %.2f%%\n", result.Stats.MaxDrawdown)
}

func parseSpace(cmd *cli.Command) (optimizer.ParameterSpace, error) {
	rsiPeriods, err := parseInts(cmd.String("rsi-periods"))
	if err != nil {
		return optimizer.ParameterSpace{}, err
	}

	overbought, err := parseFloats(cmd.String("rsi-overbought"))
	if err != nil {
		return optimizer.ParameterSpace{}, err
	}

	oversold, err := parseFloats(cmd.String("rsi-oversold"))
	if err != nil {
		return optimizer.ParameterSpace{}, err
	}

	fast, err := parseInts(cmd.String("macd-fast"))
	if err != nil {
		return optimizer.ParameterSpace{}, err
	}

	slow, err := parseInts(cmd.String("macd-slow"))
	if err != nil {
		return optimizer.ParameterSpace{}, err
	}

	return optimizer.ParameterSpace{
		RSIPeriods:    rsiPeriods,
		RSIOverbought: overbought,
		RSIOversold:   oversold,
		MACDFast:      fast,
		MACDSlow:      slow,
	}, nil
}

func parseInts(csv string) ([]int, error) {
	if csv == "" {
		return nil, nil
	}

	var out []int

	for _, field := range strings.Split(csv, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, fmt.Errorf("invalid integer list %q: %w", csv, err)
		}

		out = append(out, v)
	}

	return out, nil
}

func parseFloats(csv string) ([]float64, error) {
	if csv == "" {
		return nil, nil
	}

	var out []float64

	for _, field := range strings.Split(csv, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number list %q: %w", csv, err)
		}

		out = append(out, v)
	}

	return out, nil
}
