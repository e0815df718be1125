package domain

import "time"

// Trade directions as reported by the market feed.
const (
	TradeBuy  = "BUY"
	TradeSell = "SELL"
)

// Trade representa un trade ejecutado en el mercado.
type Trade struct {
	TokenID   string
	Outcome   string  // SideYes | SideNo
	Side      string  // TradeBuy | TradeSell
	Price     float64
	Size      float64
	Volume    float64 // Price × Size, derivado al construir
	Timestamp time.Time
}

// NewTrade construye un Trade con el volumen derivado.
func NewTrade(tokenID, outcome, side string, price, size float64, ts time.Time) Trade {
	return Trade{
		TokenID:   tokenID,
		Outcome:   outcome,
		Side:      side,
		Price:     price,
		Size:      size,
		Volume:    price * size,
		Timestamp: ts,
	}
}

// Bullish devuelve true si el trade empuja hacia el lado YES:
// un BUY del lado YES o un SELL del lado NO.
func (t Trade) Bullish() bool {
	return (t.Outcome == SideYes && t.Side == TradeBuy) ||
		(t.Outcome == SideNo && t.Side == TradeSell)
}

// Momentum resume la presión direccional de los trades recientes.
type Momentum struct {
	YesRatio    float64 // bullishVolume / totalVolume, 0.5 sin trades
	TotalVolume float64
	TradeCount  int
}
