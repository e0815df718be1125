package polymarket

// ws_types.go — DTOs del canal WS "market" de Polymarket.
// Todos los números llegan como strings en el wire.

// wsSubscribeMsg es el mensaje inicial de suscripción al canal market.
type wsSubscribeMsg struct {
	Type     string   `json:"type"` // "market"
	AssetIDs []string `json:"assets_ids"`
}

type wsPriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// wsBookEvent es un snapshot completo del orderbook de un token.
// Según la versión del feed los niveles llegan como bids/asks o buys/sells.
type wsBookEvent struct {
	EventType string         `json:"event_type"` // "book"
	AssetID   string         `json:"asset_id"`
	Market    string         `json:"market"`
	Hash      string         `json:"hash"`
	Timestamp string         `json:"timestamp"`
	Bids      []wsPriceLevel `json:"bids"`
	Asks      []wsPriceLevel `json:"asks"`
	Buys      []wsPriceLevel `json:"buys"`
	Sells     []wsPriceLevel `json:"sells"`
}

// wsPriceChange es un cambio de nivel dentro de un evento price_change.
// Trae el nuevo best bid/ask tras aplicar el cambio.
type wsPriceChange struct {
	AssetID string `json:"asset_id"`
	Price   string `json:"price"`
	Size    string `json:"size"`
	Side    string `json:"side"` // "BUY" | "SELL"
	Hash    string `json:"hash"`
	BestBid string `json:"best_bid"`
	BestAsk string `json:"best_ask"`
}

type wsPriceChangeEvent struct {
	EventType    string          `json:"event_type"` // "price_change"
	Market       string          `json:"market"`
	AssetID      string          `json:"asset_id"`
	Timestamp    string          `json:"timestamp"`
	PriceChanges []wsPriceChange `json:"price_changes"`
}

// wsLastTradePrice notifica el precio del último trade ejecutado.
type wsLastTradePrice struct {
	EventType string `json:"event_type"` // "last_trade_price"
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Price     string `json:"price"`
	Side      string `json:"side"`
	Size      string `json:"size"`
	Timestamp string `json:"timestamp"`
}

// wsTradeEvent es un trade ejecutado en el mercado.
type wsTradeEvent struct {
	EventType string `json:"event_type"` // "trade"
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Side      string `json:"side"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Timestamp string `json:"timestamp"`
}
