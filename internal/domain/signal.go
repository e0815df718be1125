package domain

import "time"

// Direction is the directional call of a reference feed or signal.
type Direction string

const (
	DirectionUp      Direction = "UP"
	DirectionDown    Direction = "DOWN"
	DirectionNeutral Direction = "NEUTRAL"
)

// Prediction is a reference feed's directional read of the current window.
type Prediction struct {
	Direction  Direction
	Confidence float64 // [0, 1]
	ChangePct  float64 // window change in percent
}

// Signal names, used as weight keys in the strategy config and as
// breakdown labels in logs and persistence.
const (
	SignalTimeDecay     = "time_decay"
	SignalBookImbalance = "book_imbalance"
	SignalTradeMomentum = "trade_momentum"
	SignalRefMovement   = "ref_movement"
	SignalInefficiency  = "inefficiency"
	SignalDivergence    = "divergence"
)

// SignalScore is one sub-signal's output. Pure value, never mutated.
type SignalScore struct {
	Score      float64 // [-1, 1], positive = bullish toward YES
	Confidence float64 // [0, 1]
	Reason     string
}

// SignalBreakdown holds every sub-signal plus the weighted composite
// for one evaluation cycle.
type SignalBreakdown struct {
	TimeDecay     SignalScore
	BookImbalance SignalScore
	TradeMomentum SignalScore
	RefMovement   SignalScore
	Inefficiency  SignalScore
	Divergence    SignalScore
	Composite     SignalScore
}

// Each returns the sub-signals keyed by name, in a stable order.
func (b SignalBreakdown) Each(fn func(name string, s SignalScore)) {
	fn(SignalTimeDecay, b.TimeDecay)
	fn(SignalBookImbalance, b.BookImbalance)
	fn(SignalTradeMomentum, b.TradeMomentum)
	fn(SignalRefMovement, b.RefMovement)
	fn(SignalInefficiency, b.Inefficiency)
	fn(SignalDivergence, b.Divergence)
}

// TradingSignal is the sized recommendation the engine emits.
// Immutable once produced.
type TradingSignal struct {
	ConditionID string
	Question    string
	Outcome     string // SideYes | SideNo
	TokenID     string
	Price       float64
	Size        float64 // USDC
	Confidence  float64
	Reason      string
	Breakdown   SignalBreakdown
	CreatedAt   time.Time
}

// BookAnalysis is the tracker's derived view of both order books.
type BookAnalysis struct {
	YesBidDepth float64
	YesAskDepth float64
	NoBidDepth  float64
	NoAskDepth  float64
	YesBestBid  float64
	YesBestAsk  float64
	NoBestBid   float64
	NoBestAsk   float64
	YesSpread   float64
	NoSpread    float64
	Imbalance   float64 // [-1, 1], yes bid share minus no bid share
}

// TotalDepth returns the summed size across both books' analysed levels.
func (a BookAnalysis) TotalDepth() float64 {
	return a.YesBidDepth + a.YesAskDepth + a.NoBidDepth + a.NoAskDepth
}

// AvgSpread returns the mean of both sides' spreads.
func (a BookAnalysis) AvgSpread() float64 {
	return (a.YesSpread + a.NoSpread) / 2
}
