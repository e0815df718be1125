package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyscalp/internal/domain"
)

func testMarket(end time.Time) domain.Market {
	return domain.Market{
		ConditionID: "0xcond",
		Question:    "Bitcoin Up or Down - test window",
		EndDate:     end,
		Tokens: [2]domain.Token{
			{TokenID: "tok-up", Outcome: "Up", Price: 0.50},
			{TokenID: "tok-down", Outcome: "Down", Price: 0.50},
		},
	}
}

func newTestTracker() *Tracker {
	tr := New(Config{TradeCapacity: 8, DepthLevels: 3})
	tr.SetMarket(testMarket(time.Now().Add(15 * time.Minute)))
	return tr
}

func TestApplyBook_PriceFromBestAsk(t *testing.T) {
	tr := newTestTracker()
	tr.ApplyBook(domain.OrderBook{
		TokenID: "tok-up",
		Bids:    []domain.BookEntry{{Price: 0.52, Size: 100}},
		Asks:    []domain.BookEntry{{Price: 0.55, Size: 80}, {Price: 0.56, Size: 40}},
	})

	m, ok := tr.Market()
	require.True(t, ok)
	assert.Equal(t, 0.55, m.YesToken().Price, "current price must equal the first ask's price")
}

func TestApplyPrice_Idempotent(t *testing.T) {
	tr := newTestTracker()
	tr.ApplyPrice("tok-up", 0.61)
	m1, _ := tr.Market()
	tr.ApplyPrice("tok-up", 0.61)
	m2, _ := tr.Market()
	assert.Equal(t, m1.YesToken().Price, m2.YesToken().Price)
	assert.Equal(t, 0.61, m2.YesToken().Price)
}

func TestTradeMomentum_EmptyDefaults(t *testing.T) {
	tr := newTestTracker()
	m := tr.TradeMomentum(time.Minute)
	assert.Equal(t, 0.5, m.YesRatio)
	assert.Equal(t, 0, m.TradeCount)
	assert.Equal(t, 0.0, m.TotalVolume)
}

func TestTradeMomentum_DirectionalVolume(t *testing.T) {
	tr := newTestTracker()
	now := time.Now()

	// bullish: BUY up, SELL down
	tr.ApplyTrade("tok-up", domain.TradeBuy, 0.50, 100, now)   // vol 50
	tr.ApplyTrade("tok-down", domain.TradeSell, 0.50, 60, now) // vol 30
	// bearish: SELL up
	tr.ApplyTrade("tok-up", domain.TradeSell, 0.50, 40, now) // vol 20

	m := tr.TradeMomentum(time.Minute)
	assert.Equal(t, 3, m.TradeCount)
	assert.InDelta(t, 100.0, m.TotalVolume, 1e-9)
	assert.InDelta(t, 0.80, m.YesRatio, 1e-9)
	assert.GreaterOrEqual(t, m.YesRatio, 0.0)
	assert.LessOrEqual(t, m.YesRatio, 1.0)
}

func TestTradeMomentum_LookbackExcludesOld(t *testing.T) {
	tr := newTestTracker()
	tr.ApplyTrade("tok-up", domain.TradeBuy, 0.50, 100, time.Now().Add(-2*time.Minute))
	m := tr.TradeMomentum(time.Minute)
	assert.Equal(t, 0, m.TradeCount)
	assert.Equal(t, 0.5, m.YesRatio)
}

func TestTradeRing_EvictsOldest(t *testing.T) {
	tr := newTestTracker()
	now := time.Now()
	for i := 0; i < 12; i++ { // capacity is 8
		tr.ApplyTrade("tok-up", domain.TradeBuy, 0.50, float64(i+1), now)
	}
	m := tr.TradeMomentum(time.Minute)
	assert.Equal(t, 8, m.TradeCount)
	// sizes 5..12 remain → volume 0.5 × (5+...+12) = 34
	assert.InDelta(t, 34.0, m.TotalVolume, 1e-9)
}

func TestBookAnalysis_MissingSide(t *testing.T) {
	tr := newTestTracker()
	tr.ApplyBook(domain.OrderBook{
		TokenID: "tok-up",
		Bids:    []domain.BookEntry{{Price: 0.52, Size: 100}},
		Asks:    []domain.BookEntry{{Price: 0.54, Size: 100}},
	})
	_, ok := tr.BookAnalysis()
	assert.False(t, ok, "analysis requires both books")
}

func TestBookAnalysis_Imbalance(t *testing.T) {
	tr := newTestTracker()
	tr.ApplyBook(domain.OrderBook{
		TokenID: "tok-up",
		Bids:    []domain.BookEntry{{Price: 0.52, Size: 300}},
		Asks:    []domain.BookEntry{{Price: 0.54, Size: 100}},
	})
	tr.ApplyBook(domain.OrderBook{
		TokenID: "tok-down",
		Bids:    []domain.BookEntry{{Price: 0.46, Size: 100}},
		Asks:    []domain.BookEntry{{Price: 0.48, Size: 300}},
	})

	a, ok := tr.BookAnalysis()
	require.True(t, ok)
	// yes bidShare = 0.75, no bidShare = 0.25 → imbalance +0.5
	assert.InDelta(t, 0.5, a.Imbalance, 1e-9)
	assert.InDelta(t, 0.02, a.YesSpread, 1e-9)
}

func TestBookAnalysis_DepthLevelsBounded(t *testing.T) {
	tr := newTestTracker()
	bids := make([]domain.BookEntry, 6)
	for i := range bids {
		bids[i] = domain.BookEntry{Price: 0.52 - float64(i)*0.01, Size: 10}
	}
	tr.ApplyBook(domain.OrderBook{TokenID: "tok-up", Bids: bids, Asks: []domain.BookEntry{{Price: 0.55, Size: 10}}})
	tr.ApplyBook(domain.OrderBook{TokenID: "tok-down", Bids: []domain.BookEntry{{Price: 0.44, Size: 10}}, Asks: []domain.BookEntry{{Price: 0.46, Size: 10}}})

	a, ok := tr.BookAnalysis()
	require.True(t, ok)
	assert.Equal(t, 30.0, a.YesBidDepth, "only the top 3 levels count")
}

func TestApplyBestQuote_SynthesizesBook(t *testing.T) {
	tr := newTestTracker()
	tr.ApplyBestQuote("tok-up", 0.51, 0.53)
	tr.ApplyBestQuote("tok-down", 0.46, 0.48)

	a, ok := tr.BookAnalysis()
	require.True(t, ok)
	assert.Equal(t, 0.51, a.YesBestBid)
	assert.Equal(t, 0.53, a.YesBestAsk)
}

func TestApplyBestQuote_OverwritesTopLevelOnly(t *testing.T) {
	tr := newTestTracker()
	tr.ApplyBook(domain.OrderBook{
		TokenID: "tok-up",
		Bids:    []domain.BookEntry{{Price: 0.52, Size: 100}, {Price: 0.51, Size: 200}},
		Asks:    []domain.BookEntry{{Price: 0.54, Size: 50}},
	})
	tr.ApplyBestQuote("tok-up", 0.53, 0.55)

	snap := tr.Snapshot()
	require.NotNil(t, snap.YesBook)
	assert.Equal(t, 0.53, snap.YesBook.BestBid())
	assert.Len(t, snap.YesBook.Bids, 2)
	assert.Equal(t, 0.51, snap.YesBook.Bids[1].Price, "deeper levels untouched")
}

func TestApplyLegacyBook_CombinedKey(t *testing.T) {
	tr := newTestTracker()
	tr.ApplyLegacyBook("0xcond:tok-up", domain.OrderBook{
		Bids: []domain.BookEntry{{Price: 0.52, Size: 10}},
		Asks: []domain.BookEntry{{Price: 0.54, Size: 10}},
	})
	snap := tr.Snapshot()
	require.NotNil(t, snap.YesBook)
	assert.Equal(t, "tok-up", snap.YesBook.TokenID)
}

func TestExpired(t *testing.T) {
	tr := New(Config{})
	tr.SetMarket(testMarket(time.Now().Add(-time.Second)))
	assert.True(t, tr.Expired(time.Now()))
}

func TestObservers_NotifiedAndUnsubscribed(t *testing.T) {
	tr := newTestTracker()
	calls := 0
	unsub := tr.Subscribe(func(Snapshot) { calls++ })

	tr.ApplyPrice("tok-up", 0.60)
	assert.Equal(t, 1, calls)

	unsub()
	tr.ApplyPrice("tok-up", 0.61)
	assert.Equal(t, 1, calls)
}
