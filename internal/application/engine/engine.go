package engine

// engine.go — evaluation loop del paper trader.
//
// Cada tick: chequear expiración/rotación, refrescar books si toca,
// evaluar el scorer y ejecutar la señal en el ledger. Todo el flujo de
// mutación pasa por aquí o por el stream handler; el tick lleva guard
// de re-entrada para que un refetch lento no solape el siguiente ciclo.

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/polyscalp/internal/domain"
	"github.com/alejandrodnm/polyscalp/internal/paper"
	"github.com/alejandrodnm/polyscalp/internal/ports"
	"github.com/alejandrodnm/polyscalp/internal/strategy"
	"github.com/alejandrodnm/polyscalp/internal/tracker"
)

const (
	defaultEvalInterval   = 5 * time.Second
	defaultBookRefetch    = 30 * time.Second
	defaultSignalCooldown = 30 * time.Second
	defaultCapital        = 1000
)

// Config holds engine-level settings.
type Config struct {
	EvalInterval   time.Duration
	BookRefetch    time.Duration
	SignalCooldown time.Duration

	StartingCapital float64
	// Compound carries the settled capital into the next market instead
	// of resetting to StartingCapital.
	Compound bool
}

// Deps are the collaborators the engine drives. Fast, Oracle, Handler
// and Log may be nil; the engine degrades without them.
type Deps struct {
	Markets ports.MarketProvider
	Books   ports.BookProvider
	Stream  ports.MarketStream
	Fast    ports.ReferenceFeed
	Oracle  ports.ReferenceFeed
	Tracker *tracker.Tracker
	Scorer  *strategy.Scorer
	Ledger  *paper.Ledger
	Handler ports.SignalHandler
	Log     ports.TradeLog
}

// Engine runs the signal-fusion and paper-trading loop for the rotating
// Up/Down market.
type Engine struct {
	cfg Config

	markets ports.MarketProvider
	books   ports.BookProvider
	stream  ports.MarketStream
	fast    ports.ReferenceFeed
	oracle  ports.ReferenceFeed
	tracker *tracker.Tracker
	scorer  *strategy.Scorer
	ledger  *paper.Ledger
	handler ports.SignalHandler
	log     ports.TradeLog

	inCycle     atomic.Bool
	lastRefetch time.Time
	lastTrade   time.Time
}

// New creates an engine. Zero config fields get production defaults.
func New(cfg Config, deps Deps) *Engine {
	if cfg.EvalInterval <= 0 {
		cfg.EvalInterval = defaultEvalInterval
	}
	if cfg.BookRefetch <= 0 {
		cfg.BookRefetch = defaultBookRefetch
	}
	if cfg.SignalCooldown <= 0 {
		cfg.SignalCooldown = defaultSignalCooldown
	}
	if cfg.StartingCapital <= 0 {
		cfg.StartingCapital = defaultCapital
	}
	return &Engine{
		cfg:     cfg,
		markets: deps.Markets,
		books:   deps.Books,
		stream:  deps.Stream,
		fast:    deps.Fast,
		oracle:  deps.Oracle,
		tracker: deps.Tracker,
		scorer:  deps.Scorer,
		ledger:  deps.Ledger,
		handler: deps.Handler,
		log:     deps.Log,
	}
}

// HandleStreamEvent applies one normalized stream event to the tracker.
// Wired as the stream's handler; events arrive in stream order.
func (e *Engine) HandleStreamEvent(ev ports.StreamEvent) {
	switch ev.Kind {
	case ports.EventPriceUpdate:
		e.tracker.ApplyPrice(ev.TokenID, ev.Price)
	case ports.EventBookUpdate:
		if ev.Bids != nil || ev.Asks != nil {
			e.tracker.ApplyBook(domain.OrderBook{
				TokenID:   ev.TokenID,
				Bids:      ev.Bids,
				Asks:      ev.Asks,
				Hash:      ev.Hash,
				Timestamp: time.Now(),
			})
		} else {
			e.tracker.ApplyBestQuote(ev.TokenID, ev.BestBid, ev.BestAsk)
		}
	case ports.EventTrade:
		e.tracker.ApplyTrade(ev.TokenID, ev.Side, ev.Price, ev.Size, ev.Timestamp)
	}
}

// Run connects the feeds and the stream, then drives the evaluation
// loop until ctx is cancelled or the stream dies terminally.
func (e *Engine) Run(ctx context.Context) error {
	e.connectFeeds(ctx)

	if err := e.stream.Connect(ctx); err != nil {
		return fmt.Errorf("engine.Run: connect stream: %w", err)
	}
	defer e.stream.Close()

	if err := e.rotate(ctx); err != nil {
		slog.Warn("engine: initial market resolution failed, retrying on next tick", "err", err)
	}

	ticker := time.NewTicker(e.cfg.EvalInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("engine: stopping")
			return ctx.Err()
		case err := <-e.stream.Errors():
			return fmt.Errorf("engine.Run: stream: %w", err)
		case <-ticker.C:
			e.runCycle(ctx)
		}
	}
}

// RunOnce connects the collaborators, resolves the active market and
// runs a single evaluation cycle. Smoke-check mode for the -once flag.
func (e *Engine) RunOnce(ctx context.Context) error {
	e.connectFeeds(ctx)

	if err := e.stream.Connect(ctx); err != nil {
		return fmt.Errorf("engine.RunOnce: connect stream: %w", err)
	}
	defer e.stream.Close()

	if err := e.rotate(ctx); err != nil {
		return fmt.Errorf("engine.RunOnce: %w", err)
	}
	e.runCycle(ctx)
	return nil
}

// connectFeeds arranca los dos reference feeds. Un feed que no conecta
// se queda en el wiring (el scorer degrada sin él) y puede recuperarse
// solo si su loop de polling revive.
func (e *Engine) connectFeeds(ctx context.Context) {
	if e.fast != nil {
		if err := e.fast.Connect(ctx); err != nil {
			slog.Warn("engine: fast feed connect failed", "feed", e.fast.Name(), "err", err)
		}
	}
	if e.oracle != nil {
		if err := e.oracle.Connect(ctx); err != nil {
			slog.Warn("engine: oracle feed connect failed", "feed", e.oracle.Name(), "err", err)
		}
	}
}

// runCycle executes one evaluation tick. The CAS guard drops the tick
// wholesale if the previous one is still in flight.
func (e *Engine) runCycle(ctx context.Context) {
	if !e.inCycle.CompareAndSwap(false, true) {
		slog.Warn("engine: previous cycle still running, skipping tick")
		return
	}
	defer e.inCycle.Store(false)

	now := time.Now()
	market, ok := e.tracker.Market()

	if !ok || market.Expired(now) {
		if ok {
			e.settle(ctx, market)
		}
		if err := e.rotate(ctx); err != nil {
			slog.Warn("engine: rotation failed", "err", err)
		}
		return
	}

	if now.Sub(e.lastRefetch) >= e.cfg.BookRefetch {
		e.refetchBooks(ctx, market)
	}

	e.evaluate(ctx, market, now)
}

func (e *Engine) evaluate(ctx context.Context, market domain.Market, now time.Time) {
	cfg := e.scorer.Config()
	momentum := e.tracker.TradeMomentum(cfg.MomentumLookback)

	var book *domain.BookAnalysis
	if ba, ok := e.tracker.BookAnalysis(); ok {
		book = &ba
	}

	sig, _ := e.scorer.Evaluate(strategy.EvalInput{
		Market:   market,
		Now:      now,
		Momentum: momentum,
		Book:     book,
		Fast:     e.fast,
		Oracle:   e.oracle,
	})
	if sig == nil {
		return
	}

	if now.Sub(e.lastTrade) < e.cfg.SignalCooldown {
		slog.Debug("engine: signal suppressed by cooldown",
			"outcome", sig.Outcome, "confidence", sig.Confidence)
		return
	}

	trade := e.ledger.ExecuteTrade(ctx, *sig)
	if trade == nil {
		return
	}
	e.lastTrade = now

	slog.Info("engine: paper trade opened",
		"outcome", trade.Outcome,
		"price", trade.EntryPrice,
		"size_usdc", trade.Cost,
		"confidence", sig.Confidence,
	)
	if e.handler != nil {
		if err := e.handler.HandleSignal(ctx, *sig); err != nil {
			slog.Warn("engine: signal handler failed", "err", err)
		}
	}
}

// settle closes every open position against the realized outcome and
// reports the session metrics.
func (e *Engine) settle(ctx context.Context, market domain.Market) {
	outcome := e.resolveOutcome(market)
	closed := e.ledger.CloseAllTrades(ctx, outcome)
	metrics := e.ledger.Metrics()

	slog.Info("engine: market settled",
		"market", market.Slug,
		"outcome", outcome,
		"closed", closed,
		"session_pnl", fmt.Sprintf("%.2f", metrics.TotalPnL),
		"capital", fmt.Sprintf("%.2f", metrics.Capital),
	)

	if e.handler != nil {
		if err := e.handler.HandleSettlement(ctx, market, outcome, metrics); err != nil {
			slog.Warn("engine: settlement handler failed", "err", err)
		}
	}
	if e.log != nil {
		if err := e.log.SaveSession(ctx, market, outcome, metrics); err != nil {
			slog.Warn("engine: session persist failed", "err", err)
		}
	}
}

// resolveOutcome derives the realized outcome at expiry. Preference
// order: oracle window direction, fast feed window direction, final
// market pricing (yes ≥ 0.5).
func (e *Engine) resolveOutcome(market domain.Market) string {
	if outcome, ok := feedOutcome(e.oracle); ok {
		return outcome
	}
	if outcome, ok := feedOutcome(e.fast); ok {
		return outcome
	}
	if market.YesToken().Price >= 0.5 {
		return domain.SideYes
	}
	return domain.SideNo
}

func feedOutcome(feed ports.ReferenceFeed) (string, bool) {
	if feed == nil || !feed.IsConnected() {
		return "", false
	}
	_, pct, ok := feed.WindowChange()
	if !ok || pct == 0 {
		return "", false
	}
	if pct > 0 {
		return domain.SideYes, true
	}
	return domain.SideNo, true
}

// rotate resolves the next active market, points the tracker and the
// stream at it, restarts the feed windows and resets the ledger.
func (e *Engine) rotate(ctx context.Context) error {
	market, err := e.markets.ResolveActiveMarket(ctx)
	if err != nil {
		return fmt.Errorf("engine.rotate: %w", err)
	}

	if current, ok := e.tracker.Market(); ok && current.ConditionID == market.ConditionID {
		return nil
	}

	e.tracker.SetMarket(market)
	if err := e.stream.Subscribe(market.TokenIDs()); err != nil {
		slog.Warn("engine: resubscribe failed", "err", err)
	}
	e.refetchBooks(ctx, market)

	if e.fast != nil {
		e.fast.StartWindow()
	}
	if e.oracle != nil {
		e.oracle.StartWindow()
	}

	if e.cfg.Compound {
		e.ledger.Reset(0)
	} else {
		e.ledger.Reset(e.cfg.StartingCapital)
	}
	e.lastTrade = time.Time{}

	slog.Info("engine: tracking market",
		"market", market.Slug,
		"ends_in", market.EndDate.Sub(time.Now()).Round(time.Second),
		"capital", e.ledger.Capital(),
	)
	return nil
}

func (e *Engine) refetchBooks(ctx context.Context, market domain.Market) {
	books, err := e.books.FetchOrderBooks(ctx, market.TokenIDs())
	if err != nil {
		slog.Warn("engine: book refetch failed", "err", err)
		return
	}
	for _, book := range books {
		e.tracker.ApplyBook(book)
	}
	e.lastRefetch = time.Now()
}
