package notify_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyscalp/internal/adapters/notify"
	"github.com/alejandrodnm/polyscalp/internal/domain"
)

func makeSignal() domain.TradingSignal {
	return domain.TradingSignal{
		ConditionID: "0xcond",
		Question:    "Bitcoin Up or Down - 3PM ET",
		Outcome:     domain.SideYes,
		TokenID:     "tok-up",
		Price:       0.52,
		Size:        15.50,
		Confidence:  0.78,
		Reason:      "composite 0.68",
		Breakdown: domain.SignalBreakdown{
			TimeDecay: domain.SignalScore{Score: 1.0, Confidence: 0.67, Reason: "2.0min left, UP"},
			Composite: domain.SignalScore{Score: 0.68, Confidence: 0.78},
		},
		CreatedAt: time.Now(),
	}
}

func TestConsole_HandleSignal(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, false)

	require.NoError(t, c.HandleSignal(context.Background(), makeSignal()))

	out := buf.String()
	assert.Contains(t, out, "SIGNAL YES")
	assert.Contains(t, out, "Bitcoin Up or Down")
	assert.Contains(t, out, "$15.50")
	assert.Contains(t, out, "78%")
}

func TestConsole_HandleSignalVerbose(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, true)

	require.NoError(t, c.HandleSignal(context.Background(), makeSignal()))

	out := buf.String()
	assert.Contains(t, out, "time_decay")
	assert.Contains(t, out, "composite")
	assert.NotContains(t, out, "book_imbalance", "señales vacías no se imprimen")
}

func TestConsole_HandleSettlement(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, false)

	market := domain.Market{ConditionID: "0xcond", Question: "Bitcoin Up or Down - 3PM ET"}
	metrics := domain.PaperMetrics{
		ClosedTrades: 3,
		Wins:         2,
		Losses:       1,
		WinRate:      2.0 / 3.0,
		TotalPnL:     7.4,
		AvgPnL:       7.4 / 3,
		ProfitFactor: 1.85,
		Capital:      107.4,
	}

	require.NoError(t, c.HandleSettlement(context.Background(), market, domain.SideYes, metrics))

	out := buf.String()
	assert.Contains(t, out, "SETTLEMENT")
	assert.Contains(t, out, "YES")
	assert.Contains(t, out, "$7.40")
	assert.Contains(t, out, "67%")
}

func TestConsole_HandleSettlementNoTrades(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, false)

	err := c.HandleSettlement(context.Background(), domain.Market{ConditionID: "0xc"}, domain.SideNo, domain.PaperMetrics{})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "no trades this session")
}
