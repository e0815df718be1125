package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/polyscalp/config"
	"github.com/alejandrodnm/polyscalp/internal/adapters/feeds"
	"github.com/alejandrodnm/polyscalp/internal/adapters/notify"
	"github.com/alejandrodnm/polyscalp/internal/adapters/polymarket"
	"github.com/alejandrodnm/polyscalp/internal/adapters/storage"
	"github.com/alejandrodnm/polyscalp/internal/application/engine"
	"github.com/alejandrodnm/polyscalp/internal/paper"
	"github.com/alejandrodnm/polyscalp/internal/ports"
	"github.com/alejandrodnm/polyscalp/internal/strategy"
	"github.com/alejandrodnm/polyscalp/internal/tracker"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	breakdown := flag.Bool("breakdown", false, "print the full signal breakdown for every emitted signal")
	once := flag.Bool("once", false, "resolve the market, run one evaluation cycle and exit")
	paperCapital := flag.Float64("paper-capital", 0, "override starting paper capital in USDC")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *paperCapital > 0 {
		cfg.Paper.StartingCapital = *paperCapital
	}
	setupLogger(cfg.Log)

	slog.Info("polyscalp starting",
		"config", *configPath,
		"series", cfg.Engine.SeriesSlug,
		"eval_interval", cfg.EvalInterval(),
		"capital", cfg.Paper.StartingCapital,
		"compound", cfg.Paper.Compound,
	)

	client := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase)
	client.SetSeries(cfg.Engine.SeriesSlug)

	tradeLog, err := storage.NewSQLiteTradeLog(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer tradeLog.Close()

	ledger := paper.NewLedger(cfg.Paper.StartingCapital, tradeLog)
	track := tracker.New(tracker.Config{})
	scorer := strategy.New(buildStrategyConfig(cfg))

	fast := feeds.NewBinance(
		cfg.Feeds.Binance.BaseURL,
		cfg.Feeds.Binance.Symbol,
		time.Duration(cfg.Feeds.Binance.PollSeconds)*time.Second,
		cfg.FeedMomentumWindow(),
	)
	oracle := feeds.NewChainlink(
		cfg.Feeds.Chainlink.RPCURL,
		cfg.Feeds.Chainlink.Aggregator,
		time.Duration(cfg.Feeds.Chainlink.PollSeconds)*time.Second,
		cfg.FeedMomentumWindow(),
	)

	// El stream necesita el engine como handler y el engine necesita el
	// stream: se resuelve con un closure sobre la variable.
	var eng *engine.Engine
	stream := polymarket.NewStream(cfg.API.WSURL, func(ev ports.StreamEvent) {
		eng.HandleStreamEvent(ev)
	})

	eng = engine.New(engine.Config{
		EvalInterval:    cfg.EvalInterval(),
		BookRefetch:     cfg.BookRefetch(),
		SignalCooldown:  cfg.SignalCooldown(),
		StartingCapital: cfg.Paper.StartingCapital,
		Compound:        cfg.Paper.Compound,
	}, engine.Deps{
		Markets: client,
		Books:   client,
		Stream:  stream,
		Fast:    fast,
		Oracle:  oracle,
		Tracker: track,
		Scorer:  scorer,
		Ledger:  ledger,
		Handler: notify.NewConsole(*breakdown),
		Log:     tradeLog,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	run := eng.Run
	if *once {
		run = eng.RunOnce
	}
	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("engine exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("polyscalp stopped cleanly")
}

// buildStrategyConfig parte de los defaults de producción y aplica solo
// los campos presentes en el YAML.
func buildStrategyConfig(cfg *config.Config) strategy.Config {
	sc := strategy.DefaultConfig()

	if len(cfg.Strategy.Weights) > 0 {
		sc.Weights = cfg.Strategy.Weights
	}
	if cfg.Strategy.MinConfidence > 0 {
		sc.MinConfidence = cfg.Strategy.MinConfidence
	}
	if cfg.Strategy.MinScore > 0 {
		sc.MinScore = cfg.Strategy.MinScore
	}
	if cfg.Strategy.TimeDecayActivationMin > 0 {
		sc.TimeDecayActivationMin = cfg.Strategy.TimeDecayActivationMin
	}
	if cfg.Strategy.KellyFraction > 0 {
		sc.KellyFraction = cfg.Strategy.KellyFraction
	}
	if cfg.Strategy.MaxPositionUSDC > 0 {
		sc.MaxPositionUSDC = cfg.Strategy.MaxPositionUSDC
	}
	sc.MomentumLookback = cfg.MomentumLookback()
	if cfg.Strategy.MinMomentumTrades > 0 {
		sc.MinMomentumTrades = cfg.Strategy.MinMomentumTrades
	}

	sc.Validate()
	return sc
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
