// Package paper simulates capital allocation and position settlement
// so the strategy can be evaluated without risking funds.
package paper

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/polyscalp/internal/domain"
	"github.com/alejandrodnm/polyscalp/internal/ports"
)

const defaultCapital = 1000

// Ledger owns the simulated trade list and capital counter. No other
// component mutates them.
type Ledger struct {
	mu      sync.Mutex
	capital float64
	initial float64
	trades  []domain.PaperTrade
	log     ports.TradeLog // optional, best-effort
}

// NewLedger creates a ledger with the given starting capital.
// log may be nil; a failing log never blocks a trade.
func NewLedger(startingCapital float64, log ports.TradeLog) *Ledger {
	if startingCapital <= 0 {
		startingCapital = defaultCapital
	}
	return &Ledger{capital: startingCapital, initial: startingCapital, log: log}
}

// Capital returns the available simulated capital.
func (l *Ledger) Capital() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.capital
}

// OpenTrades returns copies of all currently open trades.
func (l *Ledger) OpenTrades() []domain.PaperTrade {
	l.mu.Lock()
	defer l.mu.Unlock()
	var open []domain.PaperTrade
	for _, t := range l.trades {
		if t.Status == domain.PaperStatusOpen {
			open = append(open, t)
		}
	}
	return open
}

// ExecuteTrade opens a simulated position from a trading signal.
// Returns nil without state change if cost exceeds available capital
// (capacity fault: reject, log, continue).
func (l *Ledger) ExecuteTrade(ctx context.Context, sig domain.TradingSignal) *domain.PaperTrade {
	if sig.Price <= 0 || sig.Size <= 0 {
		return nil
	}

	l.mu.Lock()
	shares := sig.Size / sig.Price
	cost := sig.Price * shares // == sig.Size in USDC
	if cost > l.capital {
		available := l.capital
		l.mu.Unlock()
		slog.Warn("paper: trade rejected, insufficient capital",
			"cost", cost, "available", available, "outcome", sig.Outcome)
		return nil
	}

	trade := domain.PaperTrade{
		ID:          uuid.NewString(),
		ConditionID: sig.ConditionID,
		Question:    sig.Question,
		Outcome:     sig.Outcome,
		TokenID:     sig.TokenID,
		EntryPrice:  sig.Price,
		EntryTime:   time.Now(),
		Size:        shares,
		Cost:        cost,
		Status:      domain.PaperStatusOpen,
	}
	l.capital -= cost
	l.trades = append(l.trades, trade)
	l.mu.Unlock()

	slog.Info("paper: trade opened",
		"id", trade.ID[:8],
		"outcome", trade.Outcome,
		"entry", trade.EntryPrice,
		"shares", math.Round(trade.Size*100)/100,
		"cost", math.Round(trade.Cost*100)/100,
	)
	l.persist(ctx, trade, false)
	return &trade
}

// CloseTrade settles a single open trade at exitPrice.
// exitPrice ≥ 0.99 is a win (pnl = size × (1−entry)), ≤ 0.01 a total
// loss (pnl = −cost), anything in between a partial close. Capital is
// credited with cost+pnl. Returns false if the trade is unknown or
// already closed.
func (l *Ledger) CloseTrade(ctx context.Context, id string, exitPrice float64, reason string) bool {
	l.mu.Lock()

	var trade *domain.PaperTrade
	for i := range l.trades {
		if l.trades[i].ID == id {
			trade = &l.trades[i]
			break
		}
	}
	if trade == nil || trade.Status != domain.PaperStatusOpen {
		l.mu.Unlock()
		return false
	}

	var pnl float64
	switch {
	case exitPrice >= 0.99:
		pnl = trade.Size * (1 - trade.EntryPrice)
	case exitPrice <= 0.01:
		pnl = -trade.Cost
	default:
		pnl = trade.Size * (exitPrice - trade.EntryPrice)
	}

	now := time.Now()
	trade.ExitPrice = &exitPrice
	trade.ExitTime = &now
	trade.PnL = &pnl
	trade.Status = domain.PaperStatusClosed
	trade.CloseReason = reason
	l.capital += trade.Cost + pnl
	closed := *trade
	l.mu.Unlock()

	slog.Info("paper: trade closed",
		"id", closed.ID[:8],
		"outcome", closed.Outcome,
		"exit", exitPrice,
		"pnl", math.Round(pnl*100)/100,
		"reason", reason,
	)
	l.persist(ctx, closed, true)
	return true
}

// CloseAllTrades settles every open trade at market expiry against the
// realized outcome: exit 1.0 if the trade's outcome matches, else 0.0.
// Binary settlement only, no partial-close path at expiry.
func (l *Ledger) CloseAllTrades(ctx context.Context, finalOutcome string) int {
	open := l.OpenTrades()
	for _, t := range open {
		exit := 0.0
		if t.Outcome == finalOutcome {
			exit = 1.0
		}
		l.CloseTrade(ctx, t.ID, exit, domain.CloseReasonSettlement)
	}
	if len(open) > 0 {
		slog.Info("paper: settled open trades", "count", len(open), "outcome", finalOutcome)
	}
	return len(open)
}

// Metrics aggregates performance over closed trades only.
func (l *Ledger) Metrics() domain.PaperMetrics {
	l.mu.Lock()
	defer l.mu.Unlock()

	m := domain.PaperMetrics{TotalTrades: len(l.trades), Capital: l.capital}

	var grossProfit, grossLoss float64
	var returns []float64

	for _, t := range l.trades {
		if t.Status != domain.PaperStatusClosed {
			m.OpenTrades++
			continue
		}
		m.ClosedTrades++
		pnl := 0.0
		if t.PnL != nil {
			pnl = *t.PnL
		}
		m.TotalPnL += pnl
		// PnL cero (cierre parcial al precio de entrada): ni win ni loss.
		switch {
		case pnl > 0:
			m.Wins++
			grossProfit += pnl
			if pnl > m.LargestWin {
				m.LargestWin = pnl
			}
		case pnl < 0:
			m.Losses++
			grossLoss += -pnl
			if pnl < m.LargestLoss {
				m.LargestLoss = pnl
			}
		}
		if t.Cost > 0 {
			returns = append(returns, pnl/t.Cost)
		}
	}

	if m.ClosedTrades > 0 {
		m.WinRate = float64(m.Wins) / float64(m.ClosedTrades)
		m.AvgPnL = m.TotalPnL / float64(m.ClosedTrades)
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		m.ProfitFactor = math.Inf(1)
	}
	m.SharpeRatio = sharpe(returns)
	return m
}

// Reset discards all trades and restarts capital for a new market
// rotation. newCapital <= 0 keeps the current capital (compounding).
func (l *Ledger) Reset(newCapital float64) {
	l.mu.Lock()
	if newCapital > 0 {
		l.capital = newCapital
		l.initial = newCapital
	}
	l.trades = nil
	l.mu.Unlock()
}

// sharpe is the simplified per-trade Sharpe: mean/σ of percent
// returns, 0 if σ is 0.
func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance)
}

func (l *Ledger) persist(ctx context.Context, trade domain.PaperTrade, closed bool) {
	if l.log == nil {
		return
	}
	var err error
	if closed {
		err = l.log.UpdatePaperTradeClose(ctx, trade)
	} else {
		err = l.log.SavePaperTrade(ctx, trade)
	}
	if err != nil {
		slog.Warn("paper: trade log write failed", "err", err, "id", trade.ID[:8])
	}
}
