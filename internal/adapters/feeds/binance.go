package feeds

// binance.go — fast exchange feed vía Binance REST.
//
// Binance es el feed de baja latencia: refleja el movimiento del spot
// segundos antes que el oracle de settlement. No decide el settlement,
// solo anticipa.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultBinanceURL    = "https://api.binance.com"
	defaultBinanceSymbol = "BTCUSDT"
	binanceTickerPath    = "/api/v3/ticker/price"

	defaultBinancePoll = 2 * time.Second
)

// Binance implementa ports.ReferenceFeed haciendo polling del ticker spot.
type Binance struct {
	*priceWindow

	baseURL  string
	symbol   string
	interval time.Duration
	http     *http.Client
}

// NewBinance crea el feed. Strings vacíos y duraciones ≤0 usan defaults.
func NewBinance(baseURL, symbol string, pollInterval, momentumWindow time.Duration) *Binance {
	if baseURL == "" {
		baseURL = defaultBinanceURL
	}
	if symbol == "" {
		symbol = defaultBinanceSymbol
	}
	if pollInterval <= 0 {
		pollInterval = defaultBinancePoll
	}
	return &Binance{
		priceWindow: newPriceWindow("binance", momentumWindow),
		baseURL:     baseURL,
		symbol:      symbol,
		interval:    pollInterval,
		http:        &http.Client{Timeout: 5 * time.Second},
	}
}

// Connect hace un fetch inicial y arranca el polling loop. Un fallo del
// fetch inicial no es fatal: el loop reintenta en el siguiente tick.
func (b *Binance) Connect(ctx context.Context) error {
	if err := b.fetchOnce(ctx); err != nil {
		slog.Warn("binance: initial fetch failed", "err", err)
	}
	go b.pollLoop(ctx)
	return nil
}

// IsConnected informa si hay un sample reciente.
func (b *Binance) IsConnected() bool {
	return b.fresh(time.Now())
}

func (b *Binance) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.fetchOnce(ctx); err != nil {
				slog.Warn("binance: fetch failed", "err", err)
			}
		}
	}
}

func (b *Binance) fetchOnce(ctx context.Context) error {
	url := fmt.Sprintf("%s%s?symbol=%s", b.baseURL, binanceTickerPath, b.symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("binance: ticker status %d", resp.StatusCode)
	}

	var body struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("binance: decode ticker: %w", err)
	}

	price, err := strconv.ParseFloat(body.Price, 64)
	if err != nil || price <= 0 {
		return fmt.Errorf("binance: bad price %q", body.Price)
	}

	b.record(price, time.Now())
	return nil
}
