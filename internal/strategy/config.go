package strategy

import (
	"log/slog"
	"math"
	"time"

	"github.com/alejandrodnm/polyscalp/internal/domain"
)

// Config are the tunables of the composite scorer. Supplied at
// construction, replaceable wholesale at runtime, read every cycle.
type Config struct {
	// Weights per signal name, expected to sum to 1.0.
	Weights map[string]float64

	// Emission thresholds: both must pass for a signal to be emitted.
	MinConfidence float64
	MinScore      float64

	// TimeDecayActivationMin is the minutes-to-expiry under which the
	// time-decay signal activates and weight starts shifting toward it.
	TimeDecayActivationMin float64

	// KellyFraction scales the full Kelly stake (0.25 = quarter-Kelly).
	KellyFraction float64
	// MaxPositionUSDC is the hard cap per trade.
	MaxPositionUSDC float64

	// MomentumLookback bounds the trade momentum window.
	MomentumLookback time.Duration
	// MinMomentumTrades suppresses the momentum signal below this count.
	MinMomentumTrades int
}

// DefaultConfig returns the weights and thresholds used in production.
func DefaultConfig() Config {
	return Config{
		Weights: map[string]float64{
			domain.SignalTimeDecay:     0.30,
			domain.SignalBookImbalance: 0.15,
			domain.SignalTradeMomentum: 0.15,
			domain.SignalRefMovement:   0.20,
			domain.SignalInefficiency:  0.10,
			domain.SignalDivergence:    0.10,
		},
		MinConfidence:          0.60,
		MinScore:               0.25,
		TimeDecayActivationMin: 5,
		KellyFraction:          0.25,
		MaxPositionUSDC:        100,
		MomentumLookback:       60 * time.Second,
		MinMomentumTrades:      5,
	}
}

// Validate logs a warning if the weights drift from summing to 1.0 and
// fills zero-value tunables with defaults. The scorer still runs with
// skewed weights; the design assumes they stay non-negative.
func (c *Config) Validate() {
	def := DefaultConfig()
	if len(c.Weights) == 0 {
		c.Weights = def.Weights
	}
	var sum float64
	for _, w := range c.Weights {
		sum += w
	}
	if math.Abs(sum-1.0) > 0.01 {
		slog.Warn("strategy: signal weights do not sum to 1.0", "sum", sum)
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = def.MinConfidence
	}
	if c.MinScore <= 0 {
		c.MinScore = def.MinScore
	}
	if c.TimeDecayActivationMin <= 0 {
		c.TimeDecayActivationMin = def.TimeDecayActivationMin
	}
	if c.KellyFraction <= 0 {
		c.KellyFraction = def.KellyFraction
	}
	if c.MaxPositionUSDC <= 0 {
		c.MaxPositionUSDC = def.MaxPositionUSDC
	}
	if c.MomentumLookback <= 0 {
		c.MomentumLookback = def.MomentumLookback
	}
	if c.MinMomentumTrades <= 0 {
		c.MinMomentumTrades = def.MinMomentumTrades
	}
}
