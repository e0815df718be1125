package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyscalp/internal/domain"
	"github.com/alejandrodnm/polyscalp/internal/paper"
	"github.com/alejandrodnm/polyscalp/internal/ports"
	"github.com/alejandrodnm/polyscalp/internal/strategy"
	"github.com/alejandrodnm/polyscalp/internal/tracker"
)

type fakeMarkets struct {
	market domain.Market
	err    error
	calls  int
}

func (f *fakeMarkets) ResolveActiveMarket(ctx context.Context) (domain.Market, error) {
	f.calls++
	return f.market, f.err
}

type fakeBooks struct {
	books map[string]domain.OrderBook
	calls int
}

func (f *fakeBooks) FetchOrderBooks(ctx context.Context, tokenIDs []string) (map[string]domain.OrderBook, error) {
	f.calls++
	return f.books, nil
}

type fakeStream struct {
	subs [][]string
	errs chan error
}

func newFakeStream() *fakeStream {
	return &fakeStream{errs: make(chan error, 1)}
}

func (f *fakeStream) Connect(ctx context.Context) error { return nil }
func (f *fakeStream) Subscribe(tokenIDs []string) error {
	f.subs = append(f.subs, tokenIDs)
	return nil
}
func (f *fakeStream) Errors() <-chan error { return f.errs }
func (f *fakeStream) Close() error         { return nil }

type fakeFeed struct {
	name         string
	connected    bool
	pct          float64
	hasWindow    bool
	windowStarts int
}

func (f *fakeFeed) Connect(ctx context.Context) error { return nil }
func (f *fakeFeed) StartWindow()                      { f.windowStarts++ }
func (f *fakeFeed) WindowChange() (float64, float64, bool) {
	return f.pct * 1000, f.pct, f.hasWindow
}
func (f *fakeFeed) RecentMomentum() float64 { return f.pct / 2 }
func (f *fakeFeed) PredictOutcome() domain.Prediction {
	dir := domain.DirectionNeutral
	if f.pct > 0 {
		dir = domain.DirectionUp
	} else if f.pct < 0 {
		dir = domain.DirectionDown
	}
	return domain.Prediction{Direction: dir, Confidence: 0.7, ChangePct: f.pct}
}
func (f *fakeFeed) IsConnected() bool { return f.connected }
func (f *fakeFeed) Name() string      { return f.name }

type fakeHandler struct {
	signals     []domain.TradingSignal
	settlements []string
}

func (f *fakeHandler) HandleSignal(ctx context.Context, sig domain.TradingSignal) error {
	f.signals = append(f.signals, sig)
	return nil
}

func (f *fakeHandler) HandleSettlement(ctx context.Context, market domain.Market, outcome string, metrics domain.PaperMetrics) error {
	f.settlements = append(f.settlements, outcome)
	return nil
}

func testMarket(id string, end time.Time) domain.Market {
	return domain.Market{
		ConditionID: id,
		Question:    "Bitcoin Up or Down?",
		Slug:        "bitcoin-up-or-down",
		EndDate:     end,
		Tokens: [2]domain.Token{
			{TokenID: "tok-up", Outcome: "Up", Price: 0.52},
			{TokenID: "tok-down", Outcome: "Down", Price: 0.48},
		},
	}
}

func newTestEngine(markets *fakeMarkets, stream *fakeStream, oracle, fast ports.ReferenceFeed, handler *fakeHandler) (*Engine, *tracker.Tracker, *paper.Ledger) {
	tr := tracker.New(tracker.Config{})
	ledger := paper.NewLedger(100, nil)
	eng := New(Config{StartingCapital: 100, Compound: true}, Deps{
		Markets: markets,
		Books:   &fakeBooks{},
		Stream:  stream,
		Fast:    fast,
		Oracle:  oracle,
		Tracker: tr,
		Scorer:  strategy.New(strategy.DefaultConfig()),
		Ledger:  ledger,
		Handler: handler,
	})
	return eng, tr, ledger
}

func TestHandleStreamEventDispatch(t *testing.T) {
	eng, tr, _ := newTestEngine(&fakeMarkets{}, newFakeStream(), nil, nil, nil)
	tr.SetMarket(testMarket("0xcond", time.Now().Add(15*time.Minute)))

	eng.HandleStreamEvent(ports.StreamEvent{
		Kind:    ports.EventBookUpdate,
		TokenID: "tok-up",
		Bids:    []domain.BookEntry{{Price: 0.52, Size: 100}},
		Asks:    []domain.BookEntry{{Price: 0.54, Size: 80}},
	})
	snap := tr.Snapshot()
	require.NotNil(t, snap.YesBook)
	assert.Equal(t, 0.54, snap.Market.YesToken().Price, "precio desde best ask")

	eng.HandleStreamEvent(ports.StreamEvent{
		Kind:    ports.EventPriceUpdate,
		TokenID: "tok-up",
		Price:   0.56,
	})
	snap = tr.Snapshot()
	assert.Equal(t, 0.56, snap.Market.YesToken().Price)

	eng.HandleStreamEvent(ports.StreamEvent{
		Kind:    ports.EventBookUpdate,
		TokenID: "tok-down",
		BestBid: 0.45,
		BestAsk: 0.47,
	})
	snap = tr.Snapshot()
	require.NotNil(t, snap.NoBook)
	assert.Equal(t, 0.45, snap.NoBook.BestBid())

	eng.HandleStreamEvent(ports.StreamEvent{
		Kind:      ports.EventTrade,
		TokenID:   "tok-up",
		Side:      domain.TradeBuy,
		Price:     0.53,
		Size:      20,
		Timestamp: time.Now(),
	})
	mom := tr.TradeMomentum(time.Minute)
	assert.Equal(t, 1, mom.TradeCount)
}

func TestResolveOutcomePreferenceOrder(t *testing.T) {
	market := testMarket("0xcond", time.Now())

	// Oracle conectado con ventana positiva decide YES.
	oracle := &fakeFeed{name: "chainlink", connected: true, pct: 0.08, hasWindow: true}
	fast := &fakeFeed{name: "binance", connected: true, pct: -0.05, hasWindow: true}
	eng, _, _ := newTestEngine(&fakeMarkets{}, newFakeStream(), oracle, fast, nil)
	assert.Equal(t, domain.SideYes, eng.resolveOutcome(market))

	// Oracle caído: decide el fast feed.
	oracle.connected = false
	assert.Equal(t, domain.SideNo, eng.resolveOutcome(market))

	// Sin feeds: decide el precio final del mercado (yes 0.52 ≥ 0.5).
	fast.connected = false
	assert.Equal(t, domain.SideYes, eng.resolveOutcome(market))

	// Yes por debajo de 0.5 → NO.
	market.Tokens[0].Price = 0.41
	assert.Equal(t, domain.SideNo, eng.resolveOutcome(market))
}

func TestRunCycleSettlesAndRotates(t *testing.T) {
	expired := testMarket("0xold", time.Now().Add(-time.Minute))
	next := testMarket("0xnew", time.Now().Add(15*time.Minute))

	oracle := &fakeFeed{name: "chainlink", connected: true, pct: 0.10, hasWindow: true}
	markets := &fakeMarkets{market: next}
	stream := newFakeStream()
	handler := &fakeHandler{}

	eng, tr, ledger := newTestEngine(markets, stream, oracle, nil, handler)
	tr.SetMarket(expired)

	sig := domain.TradingSignal{
		ConditionID: "0xold",
		Outcome:     domain.SideYes,
		TokenID:     "tok-up",
		Price:       0.52,
		Size:        5.2,
		Confidence:  0.7,
	}
	require.NotNil(t, ledger.ExecuteTrade(context.Background(), sig))

	eng.runCycle(context.Background())

	// Settlement con outcome YES: 10 shares × (1−0.52) = 4.8 de pnl.
	require.Len(t, handler.settlements, 1)
	assert.Equal(t, domain.SideYes, handler.settlements[0])
	assert.InDelta(t, 104.8, ledger.Capital(), 1e-9, "compounding mantiene el capital")

	// Rotación al mercado nuevo: tracker y suscripción apuntan allí.
	current, ok := tr.Market()
	require.True(t, ok)
	assert.Equal(t, "0xnew", current.ConditionID)
	require.NotEmpty(t, stream.subs)
	assert.Equal(t, []string{"tok-up", "tok-down"}, stream.subs[len(stream.subs)-1])
	assert.Equal(t, 1, oracle.windowStarts)
	assert.Empty(t, ledger.OpenTrades())
}

func TestRunCycleReentrancyGuard(t *testing.T) {
	markets := &fakeMarkets{}
	eng, _, _ := newTestEngine(markets, newFakeStream(), nil, nil, nil)

	eng.inCycle.Store(true)
	eng.runCycle(context.Background())
	assert.Zero(t, markets.calls, "tick solapado no hace trabajo")

	eng.inCycle.Store(false)
	eng.runCycle(context.Background())
	assert.Equal(t, 1, markets.calls)
}

func TestRotateSameMarketIsNoop(t *testing.T) {
	market := testMarket("0xsame", time.Now().Add(10*time.Minute))
	markets := &fakeMarkets{market: market}
	stream := newFakeStream()

	eng, tr, _ := newTestEngine(markets, stream, nil, nil, nil)
	require.NoError(t, eng.rotate(context.Background()))
	require.Len(t, stream.subs, 1)

	// El mismo mercado sigue activo: la rotación no re-suscribe ni resetea.
	require.NoError(t, eng.rotate(context.Background()))
	assert.Len(t, stream.subs, 1)
	_, ok := tr.Market()
	assert.True(t, ok)
}

func TestRotateWithoutCompoundResetsCapital(t *testing.T) {
	market := testMarket("0xcond", time.Now().Add(10*time.Minute))
	markets := &fakeMarkets{market: market}

	tr := tracker.New(tracker.Config{})
	ledger := paper.NewLedger(250, nil)
	eng := New(Config{StartingCapital: 100, Compound: false}, Deps{
		Markets: markets,
		Books:   &fakeBooks{},
		Stream:  newFakeStream(),
		Tracker: tr,
		Scorer:  strategy.New(strategy.DefaultConfig()),
		Ledger:  ledger,
	})

	require.NoError(t, eng.rotate(context.Background()))
	assert.InDelta(t, 100.0, ledger.Capital(), 1e-9)
}
