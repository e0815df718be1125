package ports

import (
	"context"

	"github.com/alejandrodnm/polyscalp/internal/domain"
)

// ReferenceFeed is an external BTC price observer. Two implementations
// exist: the fast exchange feed (Binance) and the authoritative
// settlement oracle (Chainlink). Both expose the same window contract
// so the scorer can treat them interchangeably.
type ReferenceFeed interface {
	// Connect starts the feed's polling loop. Fetch failures inside the
	// loop are logged and retried on the next tick, never fatal.
	Connect(ctx context.Context) error

	// StartWindow captures the current price as the baseline for the
	// active market window. Called exactly once per market rotation.
	StartWindow()

	// WindowChange returns the absolute and percent delta since the
	// window baseline. ok is false if no baseline has been set.
	WindowChange() (abs, pct float64, ok bool)

	// RecentMomentum returns the percent change over the trailing
	// momentum window (configurable, much shorter than the market window).
	RecentMomentum() float64

	// PredictOutcome maps the window change to a directional call.
	// Sub-threshold changes come back NEUTRAL with low confidence.
	PredictOutcome() domain.Prediction

	IsConnected() bool
	Name() string
}
