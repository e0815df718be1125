package ports

import (
	"context"

	"github.com/alejandrodnm/polyscalp/internal/domain"
)

// SignalHandler receives every emitted trading signal and the metrics
// produced when a market settles. The engine does not care what the
// handler does with them (console, alerting, live execution).
type SignalHandler interface {
	HandleSignal(ctx context.Context, sig domain.TradingSignal) error

	// HandleSettlement is invoked after closeAllTrades at a rotation
	// boundary with the realized outcome and the session metrics.
	HandleSettlement(ctx context.Context, market domain.Market, outcome string, metrics domain.PaperMetrics) error
}
