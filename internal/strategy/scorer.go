// Package strategy fuses six independent market signals into one
// directional recommendation for the active Up/Down market, and sizes
// it with fractional Kelly.
package strategy

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/alejandrodnm/polyscalp/internal/domain"
	"github.com/alejandrodnm/polyscalp/internal/ports"
)

const (
	// maxDecayShift is the weight mass moved toward time-decay at the
	// expiry boundary (ramp = 1); redistributed evenly from the rest.
	maxDecayShift = 0.30

	agreementGate  = 0.1  // |score| for a signal to count as voting
	confidenceCap  = 0.95 // absolute cap after the agreement boost
	agreementFloor = 0.8  // multiplicative factor range [0.8, 1.2]
	agreementSpan  = 0.4
)

// EvalInput is everything one evaluation cycle reads. The scorer is a
// pure function of this input plus its config.
type EvalInput struct {
	Market   domain.Market
	Now      time.Time
	Momentum domain.Momentum
	Book     *domain.BookAnalysis // nil when either side's book is missing
	Fast     ports.ReferenceFeed  // low-latency exchange feed
	Oracle   ports.ReferenceFeed  // authoritative settlement oracle
}

// Scorer computes SignalBreakdowns. It owns no state beyond config.
type Scorer struct {
	mu  sync.RWMutex
	cfg Config
}

// New creates a scorer. The config is validated and defaulted.
func New(cfg Config) *Scorer {
	cfg.Validate()
	return &Scorer{cfg: cfg}
}

// Config returns the active configuration.
func (s *Scorer) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// UpdateConfig replaces the configuration wholesale.
func (s *Scorer) UpdateConfig(cfg Config) {
	cfg.Validate()
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	slog.Info("strategy: config replaced", "min_confidence", cfg.MinConfidence, "min_score", cfg.MinScore)
}

// Evaluate computes all six sub-signals, aggregates them with the
// time-varying weights, and derives a sized trade recommendation.
// Returns a nil signal when thresholds are not met or the divergence
// veto is active; the breakdown is always returned for observability.
func (s *Scorer) Evaluate(in EvalInput) (*domain.TradingSignal, domain.SignalBreakdown) {
	cfg := s.Config()

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	minsToExpiry := in.Market.MinutesToExpiry(now)
	yesPrice := in.Market.YesToken().Price

	pred := referencePrediction(in.Oracle, in.Fast)

	var bd domain.SignalBreakdown
	bd.TimeDecay = s.timeDecaySignal(cfg, minsToExpiry, pred, yesPrice)
	bd.BookImbalance = s.bookImbalanceSignal(in.Book)
	bd.TradeMomentum = s.tradeMomentumSignal(cfg, in.Momentum)
	bd.RefMovement = s.refMovementSignal(in.Fast)
	bd.Inefficiency = s.inefficiencySignal(in.Fast, yesPrice)

	var veto bool
	bd.Divergence, veto = s.divergenceSignal(in.Fast, in.Oracle)

	weights := s.effectiveWeights(cfg, minsToExpiry)
	bd.Composite = aggregate(bd, weights)

	if veto {
		slog.Debug("strategy: divergence veto active", "reason", bd.Divergence.Reason)
		return nil, bd
	}
	if bd.Composite.Confidence < cfg.MinConfidence || math.Abs(bd.Composite.Score) < cfg.MinScore {
		return nil, bd
	}

	outcome := domain.SideYes
	token := in.Market.YesToken()
	if bd.Composite.Score < 0 {
		outcome = domain.SideNo
		token = in.Market.NoToken()
	}
	if token.Price <= 0 || token.Price >= 1 {
		slog.Debug("strategy: no tradable price for outcome", "outcome", outcome)
		return nil, bd
	}

	size := domain.KellySize(bd.Composite.Confidence, token.Price, cfg.KellyFraction, cfg.MaxPositionUSDC)
	if size <= 0 {
		return nil, bd
	}

	return &domain.TradingSignal{
		ConditionID: in.Market.ConditionID,
		Question:    in.Market.Question,
		Outcome:     outcome,
		TokenID:     token.TokenID,
		Price:       token.Price,
		Size:        size,
		Confidence:  bd.Composite.Confidence,
		Reason:      bd.Composite.Reason,
		Breakdown:   bd,
		CreatedAt:   now,
	}, bd
}

// effectiveWeights shifts weight mass toward time-decay inside the
// activation window, proportionally to closeness-to-expiry, taking
// the shift evenly from the remaining signals. Weights are assumed
// non-negative under normal configurations.
func (s *Scorer) effectiveWeights(cfg Config, minsToExpiry float64) map[string]float64 {
	weights := make(map[string]float64, len(cfg.Weights))
	for name, w := range cfg.Weights {
		weights[name] = w
	}

	if minsToExpiry <= 0 || minsToExpiry >= cfg.TimeDecayActivationMin {
		return weights
	}
	if len(weights) < 2 {
		// Sin señales de las que restar masa no hay shift posible.
		return weights
	}

	ramp := domain.Clamp(1-minsToExpiry/cfg.TimeDecayActivationMin, 0, 1)
	shift := maxDecayShift * ramp
	perSignal := shift / float64(len(weights)-1)

	for name := range weights {
		if name == domain.SignalTimeDecay {
			weights[name] += shift
		} else {
			weights[name] = math.Max(0, weights[name]-perSignal)
		}
	}
	return weights
}

// aggregate dots the sub-signals with the weights and applies the
// agreement confidence factor.
func aggregate(bd domain.SignalBreakdown, weights map[string]float64) domain.SignalScore {
	var score, confidence float64
	bd.Each(func(name string, sig domain.SignalScore) {
		w := weights[name]
		score += w * sig.Score
		confidence += w * sig.Confidence
	})

	// agreement factor: fraction of voting signals sharing the
	// majority sign, mapped into [0.8, 1.2]
	var voting, bullish, bearish int
	bd.Each(func(_ string, sig domain.SignalScore) {
		if math.Abs(sig.Score) <= agreementGate {
			return
		}
		voting++
		if sig.Score > 0 {
			bullish++
		} else {
			bearish++
		}
	})

	if voting > 0 {
		majority := bullish
		if bearish > majority {
			majority = bearish
		}
		factor := agreementFloor + agreementSpan*float64(majority)/float64(voting)
		confidence *= factor
	}

	score = domain.Clamp(score, -1, 1)
	confidence = domain.Clamp(confidence, 0, confidenceCap)

	return domain.SignalScore{
		Score:      score,
		Confidence: confidence,
		Reason:     fmt.Sprintf("composite %.2f @ %.0f%% (%d/%d signals agree)", score, confidence*100, maxInt(bullish, bearish), voting),
	}
}

// referencePrediction prefers the authoritative oracle when connected,
// falling back to the fast exchange feed.
func referencePrediction(oracle, fast ports.ReferenceFeed) domain.Prediction {
	if oracle != nil && oracle.IsConnected() {
		return oracle.PredictOutcome()
	}
	if fast != nil && fast.IsConnected() {
		return fast.PredictOutcome()
	}
	return domain.Prediction{Direction: domain.DirectionNeutral}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
