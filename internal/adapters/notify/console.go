package notify

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/polyscalp/internal/domain"
)

// Console implementa ports.SignalHandler escribiendo a stdout.
// Las señales salen en una línea compacta; el settlement imprime la
// tabla de métricas de la sesión.
type Console struct {
	out     io.Writer
	verbose bool
}

// NewConsole crea un handler que escribe a stdout. Con verbose se
// imprime además el breakdown completo de cada señal.
func NewConsole(verbose bool) *Console {
	return &Console{out: os.Stdout, verbose: verbose}
}

// NewConsoleWriter crea un handler para tests.
func NewConsoleWriter(w io.Writer, verbose bool) *Console {
	return &Console{out: w, verbose: verbose}
}

// HandleSignal imprime la señal emitida.
func (c *Console) HandleSignal(_ context.Context, sig domain.TradingSignal) error {
	now := time.Now().Format("15:04:05")
	fmt.Fprintf(c.out, "[%s] SIGNAL %s %s @ %.3f size $%.2f conf %.0f%% — %s\n",
		now, sig.Outcome, domain.TruncateQuestion(sig.Question, sig.ConditionID, 40),
		sig.Price, sig.Size, sig.Confidence*100, sig.Reason)

	if c.verbose {
		c.printBreakdown(sig.Breakdown)
	}
	return nil
}

// HandleSettlement imprime el resumen de la sesión al liquidar el mercado.
func (c *Console) HandleSettlement(_ context.Context, market domain.Market, outcome string, m domain.PaperMetrics) error {
	fmt.Fprintf(c.out, "\n=== SETTLEMENT %s → %s ===\n",
		domain.TruncateQuestion(market.Question, market.ConditionID, 50), outcome)

	if m.ClosedTrades == 0 {
		fmt.Fprintln(c.out, "no trades this session")
		return nil
	}

	pf := fmt.Sprintf("%.2f", m.ProfitFactor)
	if math.IsInf(m.ProfitFactor, 1) {
		pf = "INF"
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Trades", "Wins", "Losses", "Win rate", "Total PnL", "Avg PnL", "Profit factor", "Sharpe", "Capital")
	table.Append(
		fmt.Sprintf("%d", m.ClosedTrades),
		fmt.Sprintf("%d", m.Wins),
		fmt.Sprintf("%d", m.Losses),
		fmt.Sprintf("%.0f%%", m.WinRate*100),
		fmt.Sprintf("$%.2f", m.TotalPnL),
		fmt.Sprintf("$%.2f", m.AvgPnL),
		pf,
		fmt.Sprintf("%.2f", m.SharpeRatio),
		fmt.Sprintf("$%.2f", m.Capital),
	)
	table.Render()
	return nil
}

func (c *Console) printBreakdown(b domain.SignalBreakdown) {
	var sb strings.Builder
	b.Each(func(name string, s domain.SignalScore) {
		if s.Score == 0 && s.Confidence == 0 {
			return
		}
		fmt.Fprintf(&sb, "  %-15s score %+.2f conf %.2f  %s\n", name, s.Score, s.Confidence, s.Reason)
	})
	fmt.Fprintf(&sb, "  %-15s score %+.2f conf %.2f\n", "composite", b.Composite.Score, b.Composite.Confidence)
	fmt.Fprint(c.out, sb.String())
}
