// Package tracker maintains the live state of the currently active
// Up/Down market: token prices, both order books, and a bounded trade
// history from which momentum and depth analytics are derived.
package tracker

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/polyscalp/internal/domain"
)

const (
	DefaultTradeCapacity = 1000
	DefaultDepthLevels   = 5
)

// Config controls tracker bounds.
type Config struct {
	TradeCapacity int // ring buffer size for trade history
	DepthLevels   int // best price levels summed in BookAnalysis
}

// Snapshot is a consistent read-only view of the tracked market state.
type Snapshot struct {
	Market     domain.Market
	YesBook    *domain.OrderBook
	NoBook     *domain.OrderBook
	LastUpdate time.Time
}

// Observer is notified synchronously after every committed mutation.
type Observer func(Snapshot)

// Tracker owns the MarketState. It is replaced wholesale on rotation;
// the WS read goroutine and the engine ticker both touch it, so a
// mutex guards all state.
type Tracker struct {
	mu        sync.RWMutex
	cfg       Config
	market    domain.Market
	hasMarket bool
	yesBook   *domain.OrderBook
	noBook    *domain.OrderBook
	lastSeen  time.Time

	// trade history ring: oldest evicted first
	trades []domain.Trade
	head   int
	count  int

	observers map[int]Observer
	nextObsID int
}

// New creates a tracker with bounded trade history.
func New(cfg Config) *Tracker {
	if cfg.TradeCapacity <= 0 {
		cfg.TradeCapacity = DefaultTradeCapacity
	}
	if cfg.DepthLevels <= 0 {
		cfg.DepthLevels = DefaultDepthLevels
	}
	return &Tracker{
		cfg:       cfg,
		trades:    make([]domain.Trade, cfg.TradeCapacity),
		observers: make(map[int]Observer),
	}
}

// SetMarket replaces the tracked market wholesale. Books and trade
// history from the previous market are discarded.
func (t *Tracker) SetMarket(m domain.Market) {
	t.mu.Lock()
	t.market = m
	t.hasMarket = true
	t.yesBook = nil
	t.noBook = nil
	t.head = 0
	t.count = 0
	t.lastSeen = time.Now()
	t.mu.Unlock()

	slog.Info("tracker: market set",
		"condition", m.ConditionID,
		"question", domain.TruncateQuestion(m.Question, m.ConditionID, 40),
		"ends", m.EndDate.Format(time.RFC3339),
	)
	t.notify()
}

// Market returns the tracked market descriptor, false if none set.
func (t *Tracker) Market() (domain.Market, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.market, t.hasMarket
}

// Snapshot returns a consistent copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	s := Snapshot{Market: t.market, LastUpdate: t.lastSeen}
	if t.yesBook != nil {
		b := *t.yesBook
		s.YesBook = &b
	}
	if t.noBook != nil {
		b := *t.noBook
		s.NoBook = &b
	}
	return s
}

// Expired reports whether wall-clock time passed the market's end time.
func (t *Tracker) Expired(now time.Time) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.hasMarket && t.market.Expired(now)
}

// ApplyPrice updates the current price of the given token. Re-applying
// an identical update is a no-op besides the timestamp.
func (t *Tracker) ApplyPrice(tokenID string, price float64) {
	t.mu.Lock()
	if !t.hasMarket || price <= 0 {
		t.mu.Unlock()
		return
	}
	updated := false
	for i := range t.market.Tokens {
		if t.market.Tokens[i].TokenID == tokenID {
			t.market.Tokens[i].Price = price
			updated = true
		}
	}
	t.lastSeen = time.Now()
	t.mu.Unlock()

	if updated {
		t.notify()
	}
}

// ApplyBook replaces the matching side's book wholesale (full snapshot
// shape) and opportunistically refreshes the token price from the best
// ask.
func (t *Tracker) ApplyBook(book domain.OrderBook) {
	t.mu.Lock()
	if !t.hasMarket {
		t.mu.Unlock()
		return
	}
	side := t.market.SideForToken(book.TokenID)
	if side == "" {
		t.mu.Unlock()
		return
	}
	if book.Timestamp.IsZero() {
		book.Timestamp = time.Now()
	}
	if side == domain.SideYes {
		t.yesBook = &book
	} else {
		t.noBook = &book
	}
	if ask := book.BestAsk(); ask > 0 {
		for i := range t.market.Tokens {
			if t.market.Tokens[i].TokenID == book.TokenID {
				t.market.Tokens[i].Price = ask
			}
		}
	}
	t.lastSeen = time.Now()
	t.mu.Unlock()
	t.notify()
}

// ApplyBestQuote handles the partial best-bid/best-ask delta shape.
// If no book exists yet for the side it synthesizes a one-level book,
// otherwise only the top level is overwritten.
func (t *Tracker) ApplyBestQuote(tokenID string, bestBid, bestAsk float64) {
	t.mu.Lock()
	if !t.hasMarket {
		t.mu.Unlock()
		return
	}
	side := t.market.SideForToken(tokenID)
	if side == "" {
		t.mu.Unlock()
		return
	}

	book := t.yesBook
	if side == domain.SideNo {
		book = t.noBook
	}

	if book == nil {
		nb := domain.OrderBook{TokenID: tokenID, Timestamp: time.Now()}
		if bestBid > 0 {
			nb.Bids = []domain.BookEntry{{Price: bestBid, Size: 0}}
		}
		if bestAsk > 0 {
			nb.Asks = []domain.BookEntry{{Price: bestAsk, Size: 0}}
		}
		book = &nb
	} else {
		nb := *book
		if bestBid > 0 {
			if len(nb.Bids) > 0 {
				nb.Bids = append([]domain.BookEntry{{Price: bestBid, Size: nb.Bids[0].Size}}, nb.Bids[1:]...)
			} else {
				nb.Bids = []domain.BookEntry{{Price: bestBid, Size: 0}}
			}
		}
		if bestAsk > 0 {
			if len(nb.Asks) > 0 {
				nb.Asks = append([]domain.BookEntry{{Price: bestAsk, Size: nb.Asks[0].Size}}, nb.Asks[1:]...)
			} else {
				nb.Asks = []domain.BookEntry{{Price: bestAsk, Size: 0}}
			}
		}
		nb.Timestamp = time.Now()
		book = &nb
	}

	if side == domain.SideYes {
		t.yesBook = book
	} else {
		t.noBook = book
	}
	t.lastSeen = time.Now()
	t.mu.Unlock()
	t.notify()
}

// ApplyLegacyBook handles the legacy single-sided shape keyed by a
// combined "conditionID:tokenID" asset identifier.
func (t *Tracker) ApplyLegacyBook(assetKey string, book domain.OrderBook) {
	tokenID := assetKey
	if idx := strings.LastIndex(assetKey, ":"); idx >= 0 {
		tokenID = assetKey[idx+1:]
	}
	book.TokenID = tokenID
	t.ApplyBook(book)
}

// ApplyTrade appends a trade to the bounded history ring. The outcome
// side is derived from the token mapping; trades for unknown tokens
// are dropped.
func (t *Tracker) ApplyTrade(tokenID, side string, price, size float64, ts time.Time) {
	t.mu.Lock()
	if !t.hasMarket {
		t.mu.Unlock()
		return
	}
	outcome := t.market.SideForToken(tokenID)
	if outcome == "" || price <= 0 || size <= 0 {
		t.mu.Unlock()
		return
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	trade := domain.NewTrade(tokenID, outcome, side, price, size, ts)
	idx := (t.head + t.count) % len(t.trades)
	t.trades[idx] = trade
	if t.count < len(t.trades) {
		t.count++
	} else {
		t.head = (t.head + 1) % len(t.trades) // oldest evicted
	}
	t.lastSeen = time.Now()
	t.mu.Unlock()
	t.notify()
}

// TradeMomentum sums directional volume within the lookback window.
// BUY on YES and SELL on NO both count as bullish. YesRatio defaults
// to 0.5 with zero trades.
func (t *Tracker) TradeMomentum(lookback time.Duration) domain.Momentum {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := time.Now().Add(-lookback)
	var bullish, bearish float64
	count := 0

	for i := 0; i < t.count; i++ {
		tr := t.trades[(t.head+i)%len(t.trades)]
		if tr.Timestamp.Before(cutoff) {
			continue
		}
		count++
		if tr.Bullish() {
			bullish += tr.Volume
		} else {
			bearish += tr.Volume
		}
	}

	m := domain.Momentum{YesRatio: 0.5, TotalVolume: bullish + bearish, TradeCount: count}
	if bullish+bearish > 0 {
		m.YesRatio = bullish / (bullish + bearish)
	}
	return m
}

// BookAnalysis derives per-outcome depth over the configured number of
// best levels, best bid/ask, spread, and the bid-share imbalance.
// Returns false if either side's book is missing.
func (t *Tracker) BookAnalysis() (domain.BookAnalysis, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.yesBook == nil || t.noBook == nil {
		return domain.BookAnalysis{}, false
	}

	n := t.cfg.DepthLevels
	a := domain.BookAnalysis{
		YesBidDepth: t.yesBook.BidDepth(n),
		YesAskDepth: t.yesBook.AskDepth(n),
		NoBidDepth:  t.noBook.BidDepth(n),
		NoAskDepth:  t.noBook.AskDepth(n),
		YesBestBid:  t.yesBook.BestBid(),
		YesBestAsk:  t.yesBook.BestAsk(),
		NoBestBid:   t.noBook.BestBid(),
		NoBestAsk:   t.noBook.BestAsk(),
		YesSpread:   t.yesBook.Spread(),
		NoSpread:    t.noBook.Spread(),
	}

	yesShare := bidShare(a.YesBidDepth, a.YesAskDepth)
	noShare := bidShare(a.NoBidDepth, a.NoAskDepth)
	a.Imbalance = domain.Clamp(yesShare-noShare, -1, 1)
	return a, true
}

func bidShare(bidDepth, askDepth float64) float64 {
	total := bidDepth + askDepth
	if total <= 0 {
		return 0.5
	}
	return bidDepth / total
}

// Subscribe registers an observer and returns its unsubscribe func.
// Observers run synchronously after each committed mutation; no
// ordering among them is guaranteed.
func (t *Tracker) Subscribe(obs Observer) func() {
	t.mu.Lock()
	id := t.nextObsID
	t.nextObsID++
	t.observers[id] = obs
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.observers, id)
		t.mu.Unlock()
	}
}

func (t *Tracker) notify() {
	t.mu.RLock()
	snap := t.snapshotLocked()
	obs := make([]Observer, 0, len(t.observers))
	for _, o := range t.observers {
		obs = append(obs, o)
	}
	t.mu.RUnlock()

	for _, o := range obs {
		o(snap)
	}
}
