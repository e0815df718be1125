package strategy

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/polyscalp/internal/domain"
	"github.com/alejandrodnm/polyscalp/internal/ports"
)

// Signal tuning constants. The thresholds are gates: below them a
// signal degrades to zero-score/low-confidence instead of guessing.
const (
	minImbalance      = 0.10 // |imbalance| gate for the book signal
	minMomentumScore  = 0.20 // |score| gate for trade momentum
	minMispricing     = 0.05 // 5% edge gate for the inefficiency signal
	pricedInEdge      = 0.05 // below this the decay signal is damped, not zeroed
	pricedInDamping   = 0.3
	refNoiseFloorPct  = 0.01 // window change below this is noise
	refSaturationPct  = 2.0  // ±1 score at a 2% window move
	fairValueSlope    = 2.0  // fair yes-prob moves this much per 1% window change
	divergenceVetoBps = 5.0  // above this the divergence signal vetoes trading
	divergenceLowBps  = 2.0  // below this, agreement boosts confidence
	highDepthSize     = 1000 // book depth considered "deep"
	tightSpread       = 0.02 // average spread considered "tight"
)

// timeDecaySignal bets the reference-predicted outcome once the market
// is close enough to expiry that a reversal is unlikely. Inactive
// outside the activation window. ramp ∈ (0,1] grows toward expiry.
func (s *Scorer) timeDecaySignal(cfg Config, minsToExpiry float64, pred domain.Prediction, yesPrice float64) domain.SignalScore {
	if minsToExpiry <= 0 || minsToExpiry >= cfg.TimeDecayActivationMin {
		return domain.SignalScore{Reason: "outside activation window"}
	}
	if pred.Direction == domain.DirectionNeutral || pred.Confidence <= 0 {
		return domain.SignalScore{Reason: "reference prediction neutral"}
	}

	ramp := domain.Clamp(1-minsToExpiry/cfg.TimeDecayActivationMin, 0, 1)

	sign := 1.0
	predictedPrice := yesPrice
	if pred.Direction == domain.DirectionDown {
		sign = -1
		predictedPrice = 1 - yesPrice
	}

	// edge: how far the market still is from the predicted outcome
	edge := pred.Confidence - predictedPrice
	score := sign * domain.Clamp(math.Abs(edge)*5, 0, 1)
	confidence := pred.Confidence * (0.6 + 0.4*ramp)

	reason := fmt.Sprintf("%.1fm to expiry, ref %s edge %.2f", minsToExpiry, pred.Direction, edge)
	if edge < pricedInEdge {
		// already priced in: still contributes, but damped
		score *= pricedInDamping
		reason += " (priced in)"
	}

	return domain.SignalScore{Score: score, Confidence: confidence, Reason: reason}
}

// bookImbalanceSignal reads directional pressure from bid-depth share.
func (s *Scorer) bookImbalanceSignal(book *domain.BookAnalysis) domain.SignalScore {
	if book == nil {
		return domain.SignalScore{Reason: "no order book"}
	}
	imb := book.Imbalance
	if math.Abs(imb) < minImbalance {
		return domain.SignalScore{Reason: fmt.Sprintf("imbalance %.3f below threshold", imb)}
	}

	confidence := domain.Clamp(math.Abs(imb)*1.5, 0, 0.7)
	if book.TotalDepth() > highDepthSize {
		confidence += 0.1
	}
	if avg := book.AvgSpread(); avg > 0 && avg < tightSpread {
		confidence += 0.1
	}

	return domain.SignalScore{
		Score:      domain.Clamp(imb, -1, 1),
		Confidence: domain.Clamp(confidence, 0, 0.9),
		Reason:     fmt.Sprintf("bid imbalance %.2f, depth %.0f", imb, book.TotalDepth()),
	}
}

// tradeMomentumSignal reads directional trade flow over the lookback.
func (s *Scorer) tradeMomentumSignal(cfg Config, m domain.Momentum) domain.SignalScore {
	if m.TradeCount < cfg.MinMomentumTrades {
		return domain.SignalScore{Reason: fmt.Sprintf("only %d trades in window", m.TradeCount)}
	}

	score := (m.YesRatio - 0.5) * 2
	if math.Abs(score) < minMomentumScore {
		return domain.SignalScore{Reason: fmt.Sprintf("flow balanced (ratio %.2f)", m.YesRatio)}
	}

	confidence := 0.3 + domain.Clamp(m.TotalVolume/5000, 0, 0.4) + domain.Clamp(float64(m.TradeCount)/100, 0, 0.2)
	return domain.SignalScore{
		Score:      domain.Clamp(score, -1, 1),
		Confidence: domain.Clamp(confidence, 0, 0.9),
		Reason:     fmt.Sprintf("yes ratio %.2f over %d trades ($%.0f)", m.YesRatio, m.TradeCount, m.TotalVolume),
	}
}

// refMovementSignal follows the fast exchange feed's window move.
func (s *Scorer) refMovementSignal(feed ports.ReferenceFeed) domain.SignalScore {
	if feed == nil || !feed.IsConnected() {
		return domain.SignalScore{Reason: "exchange feed offline"}
	}
	_, pct, ok := feed.WindowChange()
	if !ok {
		return domain.SignalScore{Reason: "no window baseline"}
	}
	if math.Abs(pct) < refNoiseFloorPct {
		return domain.SignalScore{Reason: fmt.Sprintf("%.4f%% within noise floor", pct)}
	}

	score := domain.Clamp(pct/refSaturationPct, -1, 1)
	confidence := domain.Clamp(0.2+math.Abs(pct)/refSaturationPct*0.6, 0, 0.8)

	momentum := feed.RecentMomentum()
	agrees := momentum != 0 && math.Signbit(momentum) == math.Signbit(pct)
	if agrees {
		confidence = domain.Clamp(confidence*1.25, 0, 0.9)
	}

	return domain.SignalScore{
		Score:      score,
		Confidence: confidence,
		Reason:     fmt.Sprintf("window %+.3f%%, momentum agrees=%v", pct, agrees),
	}
}

// inefficiencySignal compares the market's yes price with a fair
// probability implied by the reference window move.
func (s *Scorer) inefficiencySignal(feed ports.ReferenceFeed, yesPrice float64) domain.SignalScore {
	if feed == nil || !feed.IsConnected() {
		return domain.SignalScore{Reason: "exchange feed offline"}
	}
	if yesPrice <= 0 || yesPrice >= 1 {
		return domain.SignalScore{Reason: "no market price"}
	}
	_, pct, ok := feed.WindowChange()
	if !ok {
		return domain.SignalScore{Reason: "no window baseline"}
	}

	fair := 0.5
	if math.Abs(pct) >= refNoiseFloorPct {
		fair = domain.Clamp(0.5+pct*fairValueSlope, 0.05, 0.95)
	}

	mispricing := fair - yesPrice
	if math.Abs(mispricing) < minMispricing {
		return domain.SignalScore{Reason: fmt.Sprintf("fair %.2f vs market %.2f, no edge", fair, yesPrice)}
	}

	return domain.SignalScore{
		Score:      domain.Clamp(mispricing*5, -1, 1),
		Confidence: domain.Clamp(0.3+math.Abs(mispricing)*2, 0, 0.85),
		Reason:     fmt.Sprintf("fair %.2f vs market %.2f (%+.0f%% edge)", fair, yesPrice, mispricing*100),
	}
}

// divergenceSignal compares the two reference feeds' window changes in
// basis points. High divergence is basis risk near the settlement
// boundary: the signal vetoes trading instead of voting. veto is true
// in that case regardless of any direction.
func (s *Scorer) divergenceSignal(fast, oracle ports.ReferenceFeed) (sig domain.SignalScore, veto bool) {
	if fast == nil || oracle == nil || !fast.IsConnected() || !oracle.IsConnected() {
		return domain.SignalScore{Reason: "divergence check needs both feeds", Confidence: 0.1}, false
	}
	_, fastPct, okF := fast.WindowChange()
	_, oraclePct, okO := oracle.WindowChange()
	if !okF || !okO {
		return domain.SignalScore{Reason: "window baselines missing", Confidence: 0.1}, false
	}

	divBps := math.Abs(fastPct-oraclePct) * 100
	sameSign := fastPct*oraclePct > 0

	switch {
	case divBps > divergenceVetoBps:
		return domain.SignalScore{
			Score:      0,
			Confidence: 0.02,
			Reason:     fmt.Sprintf("feeds diverge %.1f bps — trading suppressed", divBps),
		}, true

	case divBps <= divergenceLowBps && sameSign:
		score := domain.Clamp((fastPct+oraclePct)/2/refSaturationPct, -1, 1)
		return domain.SignalScore{
			Score:      score,
			Confidence: 0.6,
			Reason:     fmt.Sprintf("feeds agree within %.1f bps", divBps),
		}, false

	case sameSign && math.Abs(fastPct) > math.Abs(oraclePct):
		// exchange leading the oracle in the same direction: small
		// early-entry bonus before settlement pricing catches up
		score := 0.3
		if fastPct < 0 {
			score = -0.3
		}
		return domain.SignalScore{
			Score:      score,
			Confidence: 0.4,
			Reason:     fmt.Sprintf("exchange leads oracle by %.1f bps", divBps),
		}, false
	}

	return domain.SignalScore{Reason: fmt.Sprintf("divergence %.1f bps, neutral", divBps), Confidence: 0.1}, false
}
