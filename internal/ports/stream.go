package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/polyscalp/internal/domain"
)

// EventKind discriminates the canonical stream events.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventPriceUpdate
	EventBookUpdate
	EventTrade
)

// StreamEvent is one normalized market event. For EventBookUpdate,
// non-nil Bids/Asks mean a full snapshot; nil means a top-of-book delta
// carrying only BestBid/BestAsk.
type StreamEvent struct {
	Kind    EventKind
	TokenID string

	// EventPriceUpdate
	Price float64

	// EventBookUpdate
	Bids    []domain.BookEntry
	Asks    []domain.BookEntry
	BestBid float64
	BestAsk float64
	Hash    string

	// EventTrade
	Side      string
	Size      float64
	Timestamp time.Time
}

// StreamHandler receives each decoded event. Called from the stream's
// read loop; must not block.
type StreamHandler func(StreamEvent)

// MarketStream is the persistent market-data connection. Reconnection
// and resubscription happen inside the adapter; only reconnect
// exhaustion surfaces on Errors.
type MarketStream interface {
	Connect(ctx context.Context) error

	// Subscribe replaces the subscribed token set. Replayed
	// automatically after every reconnect.
	Subscribe(tokenIDs []string) error

	// Errors delivers terminal stream failures.
	Errors() <-chan error

	Close() error
}
