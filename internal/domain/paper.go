package domain

import "time"

// PaperTradeStatus is the lifecycle of a simulated position.
// The only transition is Open → Closed.
type PaperTradeStatus string

const (
	PaperStatusOpen   PaperTradeStatus = "OPEN"
	PaperStatusClosed PaperTradeStatus = "CLOSED"
)

// Close reasons recorded on settlement.
const (
	CloseReasonManual     = "manual"
	CloseReasonSettlement = "market_settlement"
)

// PaperTrade is a simulated position. Created on execution, mutated
// exactly once at close, never reopened.
type PaperTrade struct {
	ID          string
	ConditionID string
	Question    string
	Outcome     string // SideYes | SideNo
	TokenID     string
	EntryPrice  float64
	EntryTime   time.Time
	Size        float64 // shares
	Cost        float64 // EntryPrice × Size, in USDC
	ExitPrice   *float64
	ExitTime    *time.Time
	PnL         *float64
	Status      PaperTradeStatus
	CloseReason string
}

// Won reports whether the trade settled as a winner (exit at ~$1).
func (t PaperTrade) Won() bool {
	return t.Status == PaperStatusClosed && t.ExitPrice != nil && *t.ExitPrice >= 0.99
}

// PaperMetrics aggregates performance across closed trades only.
type PaperMetrics struct {
	TotalTrades  int
	OpenTrades   int
	ClosedTrades int
	Wins         int
	Losses       int
	WinRate      float64
	TotalPnL     float64
	AvgPnL       float64
	LargestWin   float64
	LargestLoss  float64
	ProfitFactor float64 // gross profit / gross loss
	SharpeRatio  float64 // mean/σ of per-trade percent returns
	Capital      float64 // current simulated capital
}
