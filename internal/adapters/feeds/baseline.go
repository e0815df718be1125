package feeds

// baseline.go — shared window/momentum state for reference feeds.
//
// Both feed adapters (Binance REST, Chainlink on-chain) poll a price and
// push samples here; the window math is identical for both so the scorer
// can treat them interchangeably.

import (
	"sync"
	"time"

	"github.com/alejandrodnm/polyscalp/internal/domain"
)

const (
	// Cambios por debajo del noise floor se tratan como NEUTRAL.
	noiseFloorPct = 0.01
	// Un movimiento de ±2% satura la confianza direccional.
	saturationPct = 2.0

	neutralConfidence = 0.25
	baseConfidence    = 0.5
	confidenceSpan    = 0.35
	momentumBoost     = 1.15
	maxConfidence     = 0.95

	defaultMomentumWindow = 60 * time.Second
	staleAfter            = 45 * time.Second
)

type sample struct {
	price float64
	at    time.Time
}

// priceWindow holds the rolling sample history and window baseline for a
// feed. Embedded by the concrete adapters, which only have to feed it
// prices via record().
type priceWindow struct {
	name           string
	momentumWindow time.Duration

	mu          sync.RWMutex
	samples     []sample
	last        sample
	baseline    float64
	hasBaseline bool
}

func newPriceWindow(name string, momentumWindow time.Duration) *priceWindow {
	if momentumWindow <= 0 {
		momentumWindow = defaultMomentumWindow
	}
	return &priceWindow{name: name, momentumWindow: momentumWindow}
}

// record appends a price sample and prunes history older than twice the
// momentum window.
func (w *priceWindow) record(price float64, now time.Time) {
	if price <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.last = sample{price: price, at: now}
	w.samples = append(w.samples, w.last)

	cutoff := now.Add(-2 * w.momentumWindow)
	i := 0
	for i < len(w.samples) && w.samples[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		w.samples = append(w.samples[:0], w.samples[i:]...)
	}
}

// Name devuelve el identificador del feed.
func (w *priceWindow) Name() string {
	return w.name
}

// StartWindow captures the last observed price as the window baseline.
// With no price yet the baseline stays unset and WindowChange reports
// not-ok until the first sample after the next StartWindow call.
func (w *priceWindow) StartWindow() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.last.price <= 0 {
		w.hasBaseline = false
		w.baseline = 0
		return
	}
	w.baseline = w.last.price
	w.hasBaseline = true
}

// WindowChange returns the absolute and percent move since the baseline.
func (w *priceWindow) WindowChange() (abs, pct float64, ok bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if !w.hasBaseline || w.last.price <= 0 {
		return 0, 0, false
	}
	abs = w.last.price - w.baseline
	pct = abs / w.baseline * 100
	return abs, pct, true
}

// RecentMomentum returns the percent change over the trailing momentum
// window, 0 with fewer than two samples in range.
func (w *priceWindow) RecentMomentum() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if len(w.samples) == 0 {
		return 0
	}
	cutoff := w.samples[len(w.samples)-1].at.Add(-w.momentumWindow)

	var oldest sample
	found := false
	for _, s := range w.samples {
		if !s.at.Before(cutoff) {
			oldest = s
			found = true
			break
		}
	}
	newest := w.samples[len(w.samples)-1]
	if !found || oldest.at.Equal(newest.at) || oldest.price <= 0 {
		return 0
	}
	return (newest.price - oldest.price) / oldest.price * 100
}

// PredictOutcome maps the window change to a directional call. Changes
// under the noise floor are NEUTRAL with low confidence; confidence
// grows with magnitude and gets a boost when short-term momentum agrees
// in sign with the window direction.
func (w *priceWindow) PredictOutcome() domain.Prediction {
	_, pct, ok := w.WindowChange()
	if !ok || abs(pct) < noiseFloorPct {
		return domain.Prediction{
			Direction:  domain.DirectionNeutral,
			Confidence: neutralConfidence,
			ChangePct:  pct,
		}
	}

	dir := domain.DirectionUp
	if pct < 0 {
		dir = domain.DirectionDown
	}

	magnitude := abs(pct) / saturationPct
	if magnitude > 1 {
		magnitude = 1
	}
	conf := baseConfidence + magnitude*confidenceSpan

	if mom := w.RecentMomentum(); mom != 0 && sameSign(mom, pct) {
		conf *= momentumBoost
	}
	if conf > maxConfidence {
		conf = maxConfidence
	}

	return domain.Prediction{Direction: dir, Confidence: conf, ChangePct: pct}
}

// fresh reports whether the last sample is recent enough to consider
// the feed alive.
func (w *priceWindow) fresh(now time.Time) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last.price > 0 && now.Sub(w.last.at) < staleAfter
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}
