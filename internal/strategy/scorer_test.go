package strategy

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyscalp/internal/domain"
)

// fakeFeed is a scripted ports.ReferenceFeed.
type fakeFeed struct {
	name      string
	connected bool
	baseline  bool
	changePct float64
	momentum  float64
	pred      domain.Prediction
}

func (f *fakeFeed) Connect(context.Context) error { return nil }
func (f *fakeFeed) StartWindow()                  {}
func (f *fakeFeed) WindowChange() (float64, float64, bool) {
	if !f.baseline {
		return 0, 0, false
	}
	return f.changePct * 1000, f.changePct, true
}
func (f *fakeFeed) RecentMomentum() float64           { return f.momentum }
func (f *fakeFeed) PredictOutcome() domain.Prediction { return f.pred }
func (f *fakeFeed) IsConnected() bool                 { return f.connected }
func (f *fakeFeed) Name() string                      { return f.name }

func upFeed(pct float64, conf float64) *fakeFeed {
	dir := domain.DirectionUp
	if pct < 0 {
		dir = domain.DirectionDown
	}
	return &fakeFeed{
		name: "fake", connected: true, baseline: true,
		changePct: pct, momentum: pct / 2,
		pred: domain.Prediction{Direction: dir, Confidence: conf, ChangePct: pct},
	}
}

func evalMarket(yesPrice float64, minsToExpiry float64) domain.Market {
	return domain.Market{
		ConditionID: "0xcond",
		Question:    "Bitcoin Up or Down",
		EndDate:     time.Now().Add(time.Duration(minsToExpiry * float64(time.Minute))),
		Tokens: [2]domain.Token{
			{TokenID: "tok-up", Outcome: "Up", Price: yesPrice},
			{TokenID: "tok-down", Outcome: "Down", Price: 1 - yesPrice},
		},
	}
}

// --- time decay ---

func TestTimeDecay_InactiveOutsideWindow(t *testing.T) {
	s := New(DefaultConfig())
	sig := s.timeDecaySignal(s.Config(), 10, domain.Prediction{Direction: domain.DirectionUp, Confidence: 0.8}, 0.45)
	assert.Equal(t, 0.0, sig.Score)
}

func TestTimeDecay_NearExpiryScenario(t *testing.T) {
	// 2 min to expiry, activation 5 min, ref UP conf 0.8, yes price 0.45:
	// edge = 0.8 − 0.45 = 0.35 → score = min(1, 0.35×5) = 1
	// ramp = 1 − 2/5 = 0.6 → confidence = 0.8 × (0.6 + 0.4×0.6) = 0.672
	s := New(DefaultConfig())
	sig := s.timeDecaySignal(s.Config(), 2, domain.Prediction{Direction: domain.DirectionUp, Confidence: 0.8}, 0.45)
	assert.Greater(t, sig.Score, 0.0)
	assert.InDelta(t, 1.0, sig.Score, 1e-9)
	assert.InDelta(t, 0.672, sig.Confidence, 1e-9)
}

func TestTimeDecay_PricedInDamped(t *testing.T) {
	// market already near the predicted outcome: damped ×0.3, not zeroed
	s := New(DefaultConfig())
	sig := s.timeDecaySignal(s.Config(), 2, domain.Prediction{Direction: domain.DirectionUp, Confidence: 0.8}, 0.78)
	assert.Greater(t, sig.Score, 0.0)
	assert.InDelta(t, 0.1*0.3, sig.Score, 1e-9)
}

func TestTimeDecay_DownDirection(t *testing.T) {
	s := New(DefaultConfig())
	sig := s.timeDecaySignal(s.Config(), 2, domain.Prediction{Direction: domain.DirectionDown, Confidence: 0.8}, 0.60)
	assert.Less(t, sig.Score, 0.0)
}

// --- order book imbalance ---

func TestBookImbalance_Gate(t *testing.T) {
	s := New(DefaultConfig())
	assert.Equal(t, 0.0, s.bookImbalanceSignal(&domain.BookAnalysis{Imbalance: 0.05}).Score)
	assert.Equal(t, 0.0, s.bookImbalanceSignal(nil).Score)

	sig := s.bookImbalanceSignal(&domain.BookAnalysis{Imbalance: 0.30})
	assert.InDelta(t, 0.30, sig.Score, 1e-9)
	assert.Greater(t, sig.Confidence, 0.0)
}

func TestBookImbalance_DepthAndSpreadBoost(t *testing.T) {
	s := New(DefaultConfig())
	thin := s.bookImbalanceSignal(&domain.BookAnalysis{Imbalance: 0.30, YesSpread: 0.1, NoSpread: 0.1})
	deep := s.bookImbalanceSignal(&domain.BookAnalysis{
		Imbalance: 0.30, YesBidDepth: 600, NoAskDepth: 600,
		YesSpread: 0.01, NoSpread: 0.01,
	})
	assert.Greater(t, deep.Confidence, thin.Confidence)
}

// --- trade momentum ---

func TestTradeMomentum_RequiresFiveTrades(t *testing.T) {
	s := New(DefaultConfig())
	sig := s.tradeMomentumSignal(s.Config(), domain.Momentum{YesRatio: 0.9, TradeCount: 4, TotalVolume: 500})
	assert.Equal(t, 0.0, sig.Score)
}

func TestTradeMomentum_SuppressedWhenBalanced(t *testing.T) {
	s := New(DefaultConfig())
	// ratio 0.55 → score 0.10 < 0.20 gate
	sig := s.tradeMomentumSignal(s.Config(), domain.Momentum{YesRatio: 0.55, TradeCount: 20, TotalVolume: 500})
	assert.Equal(t, 0.0, sig.Score)
}

func TestTradeMomentum_Directional(t *testing.T) {
	s := New(DefaultConfig())
	sig := s.tradeMomentumSignal(s.Config(), domain.Momentum{YesRatio: 0.80, TradeCount: 20, TotalVolume: 2000})
	assert.InDelta(t, 0.6, sig.Score, 1e-9)
	assert.Greater(t, sig.Confidence, 0.3)
}

// --- reference movement ---

func TestRefMovement_Disconnected(t *testing.T) {
	s := New(DefaultConfig())
	sig := s.refMovementSignal(&fakeFeed{connected: false})
	assert.Equal(t, 0.0, sig.Score)
}

func TestRefMovement_NoiseFloor(t *testing.T) {
	s := New(DefaultConfig())
	sig := s.refMovementSignal(upFeed(0.005, 0.5))
	assert.Equal(t, 0.0, sig.Score)
}

func TestRefMovement_SaturatesAtTwoPercent(t *testing.T) {
	s := New(DefaultConfig())
	sig := s.refMovementSignal(upFeed(3.0, 0.9))
	assert.Equal(t, 1.0, sig.Score)
}

func TestRefMovement_MomentumAgreementBoost(t *testing.T) {
	s := New(DefaultConfig())
	agree := upFeed(0.5, 0.5)
	disagree := upFeed(0.5, 0.5)
	disagree.momentum = -0.1
	assert.Greater(t, s.refMovementSignal(agree).Confidence, s.refMovementSignal(disagree).Confidence)
}

// --- inefficiency ---

func TestInefficiency_NoEdge(t *testing.T) {
	s := New(DefaultConfig())
	// fair = 0.5 + 0.02×2 = 0.54 vs market 0.52 → mispricing 0.02 < 5%
	sig := s.inefficiencySignal(upFeed(0.02, 0.5), 0.52)
	assert.Equal(t, 0.0, sig.Score)
}

func TestInefficiency_Mispriced(t *testing.T) {
	s := New(DefaultConfig())
	// fair = 0.5 + 0.1×2 = 0.70 vs market 0.45 → mispricing 0.25 → score 1
	sig := s.inefficiencySignal(upFeed(0.1, 0.5), 0.45)
	assert.InDelta(t, 1.0, sig.Score, 1e-9)
	assert.InDelta(t, 0.8, sig.Confidence, 1e-9)
}

// --- divergence ---

func TestDivergence_VetoAboveThreshold(t *testing.T) {
	s := New(DefaultConfig())
	fast := upFeed(-0.02, 0.5)
	oracle := upFeed(0.10, 0.5)
	// 12 bps apart, above the 5 bps veto threshold
	sig, veto := s.divergenceSignal(fast, oracle)
	assert.True(t, veto)
	assert.Equal(t, 0.0, sig.Score)
	assert.LessOrEqual(t, sig.Confidence, 0.05)
}

func TestDivergence_AgreementBoost(t *testing.T) {
	s := New(DefaultConfig())
	sig, veto := s.divergenceSignal(upFeed(0.010, 0.5), upFeed(0.012, 0.5))
	assert.False(t, veto)
	assert.Greater(t, sig.Confidence, 0.5)
	assert.Greater(t, sig.Score, 0.0)
}

func TestDivergence_LeadLagBonus(t *testing.T) {
	s := New(DefaultConfig())
	// same direction, 3 bps apart, exchange ahead of the oracle
	sig, veto := s.divergenceSignal(upFeed(0.05, 0.5), upFeed(0.02, 0.5))
	assert.False(t, veto)
	assert.InDelta(t, 0.3, sig.Score, 1e-9)
}

func TestDivergence_MissingFeedNotVeto(t *testing.T) {
	s := New(DefaultConfig())
	sig, veto := s.divergenceSignal(upFeed(0.05, 0.5), &fakeFeed{connected: false})
	assert.False(t, veto)
	assert.Equal(t, 0.0, sig.Score)
}

// --- weights & aggregation ---

func TestEffectiveWeights_ShiftTowardDecay(t *testing.T) {
	s := New(DefaultConfig())
	cfg := s.Config()

	base := s.effectiveWeights(cfg, 10)
	assert.InDelta(t, 0.30, base[domain.SignalTimeDecay], 1e-9)

	// 2.5 of 5 min → ramp 0.5 → shift 0.15, 0.03 from each other signal
	shifted := s.effectiveWeights(cfg, 2.5)
	assert.InDelta(t, 0.45, shifted[domain.SignalTimeDecay], 1e-9)
	assert.InDelta(t, 0.12, shifted[domain.SignalBookImbalance], 1e-9)

	var sum float64
	for _, w := range shifted {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestEffectiveWeights_SingleWeightEntry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights = map[string]float64{domain.SignalTimeDecay: 1.0}
	s := New(cfg)

	shifted := s.effectiveWeights(s.Config(), 2.5)
	require.Len(t, shifted, 1)
	w := shifted[domain.SignalTimeDecay]
	assert.False(t, math.IsInf(w, 0) || math.IsNaN(w))
	assert.InDelta(t, 1.0, w, 1e-9)
}

func TestAggregate_AgreementBoostAndCap(t *testing.T) {
	weights := DefaultConfig().Weights
	bd := domain.SignalBreakdown{
		TimeDecay:     domain.SignalScore{Score: 1, Confidence: 0.9},
		BookImbalance: domain.SignalScore{Score: 0.8, Confidence: 0.9},
		TradeMomentum: domain.SignalScore{Score: 0.9, Confidence: 0.9},
		RefMovement:   domain.SignalScore{Score: 1, Confidence: 0.9},
		Inefficiency:  domain.SignalScore{Score: 1, Confidence: 0.9},
		Divergence:    domain.SignalScore{Score: 0.5, Confidence: 0.9},
	}
	comp := aggregate(bd, weights)
	assert.Equal(t, 0.95, comp.Confidence, "confidence capped at 0.95")
	assert.Greater(t, comp.Score, 0.8)
}

func TestAggregate_DisagreementDampens(t *testing.T) {
	weights := DefaultConfig().Weights
	aligned := domain.SignalBreakdown{
		TimeDecay:   domain.SignalScore{Score: 0.5, Confidence: 0.5},
		RefMovement: domain.SignalScore{Score: 0.5, Confidence: 0.5},
	}
	split := domain.SignalBreakdown{
		TimeDecay:   domain.SignalScore{Score: 0.5, Confidence: 0.5},
		RefMovement: domain.SignalScore{Score: -0.5, Confidence: 0.5},
	}
	assert.Greater(t, aggregate(aligned, weights).Confidence, aggregate(split, weights).Confidence)
}

// --- full evaluation ---

func TestEvaluate_EmitsSizedSignal(t *testing.T) {
	s := New(DefaultConfig())
	in := EvalInput{
		Market:   evalMarket(0.45, 2),
		Momentum: domain.Momentum{YesRatio: 0.85, TradeCount: 30, TotalVolume: 3000},
		Book:     &domain.BookAnalysis{Imbalance: 0.4, YesBidDepth: 800, NoAskDepth: 800, YesSpread: 0.01, NoSpread: 0.01},
		Fast:     upFeed(0.10, 0.8),
		Oracle:   upFeed(0.11, 0.8),
	}

	sig, bd := s.Evaluate(in)
	require.NotNil(t, sig, "strongly aligned bullish inputs must emit")
	assert.Equal(t, domain.SideYes, sig.Outcome)
	assert.Equal(t, "tok-up", sig.TokenID)
	assert.Equal(t, 0.45, sig.Price)
	assert.Greater(t, sig.Size, 0.0)
	assert.LessOrEqual(t, sig.Size, s.Config().MaxPositionUSDC)
	assert.GreaterOrEqual(t, sig.Confidence, s.Config().MinConfidence)
	assert.Greater(t, bd.Composite.Score, 0.0)
}

func TestEvaluate_VetoSuppressesTrade(t *testing.T) {
	s := New(DefaultConfig())
	in := EvalInput{
		Market:   evalMarket(0.45, 2),
		Momentum: domain.Momentum{YesRatio: 0.85, TradeCount: 30, TotalVolume: 3000},
		Book:     &domain.BookAnalysis{Imbalance: 0.4, YesBidDepth: 800, NoAskDepth: 800, YesSpread: 0.01, NoSpread: 0.01},
		Fast:     upFeed(-0.02, 0.8),
		Oracle:   upFeed(0.10, 0.8),
	}

	sig, bd := s.Evaluate(in)
	assert.Nil(t, sig, "divergence veto overrides every other signal")
	assert.LessOrEqual(t, bd.Divergence.Confidence, 0.05)
}

func TestEvaluate_QuietMarketNoSignal(t *testing.T) {
	s := New(DefaultConfig())
	in := EvalInput{
		Market:   evalMarket(0.50, 10),
		Momentum: domain.Momentum{YesRatio: 0.5},
		Fast:     upFeed(0.001, 0.2),
		Oracle:   upFeed(0.001, 0.2),
	}
	sig, _ := s.Evaluate(in)
	assert.Nil(t, sig)
}

func TestEvaluate_DegradesWithoutFeeds(t *testing.T) {
	s := New(DefaultConfig())
	in := EvalInput{Market: evalMarket(0.50, 10)}
	sig, bd := s.Evaluate(in)
	assert.Nil(t, sig)
	assert.Equal(t, 0.0, bd.RefMovement.Score)
	assert.Equal(t, 0.0, bd.TimeDecay.Score)
}
