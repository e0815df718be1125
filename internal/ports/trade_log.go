package ports

import (
	"context"

	"github.com/alejandrodnm/polyscalp/internal/domain"
)

// TradeLog persists paper trading activity. The ledger treats it as
// best-effort: a failing sink is logged and never blocks a cycle.
type TradeLog interface {
	SavePaperTrade(ctx context.Context, trade domain.PaperTrade) error
	UpdatePaperTradeClose(ctx context.Context, trade domain.PaperTrade) error

	// SaveSession persists the per-market summary written at settlement.
	SaveSession(ctx context.Context, market domain.Market, outcome string, metrics domain.PaperMetrics) error

	Close() error
}
