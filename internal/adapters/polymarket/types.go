package polymarket

import "encoding/json"

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// --- Gamma API ---

// gammaMarketsResponse es la respuesta de GET /markets de Gamma.
type gammaMarketsResponse []gammaMarket

// gammaMarket es la metadata de un mercado. Gamma serializa varios
// campos como JSON embebido en strings (outcomes, clobTokenIds,
// outcomePrices) y los numéricos como json.Number.
type gammaMarket struct {
	ConditionID   string      `json:"conditionId"`
	Question      string      `json:"question"`
	Slug          string      `json:"slug"`
	EndDateISO    string      `json:"endDateIso"`
	EndDate       string      `json:"endDate"`
	Outcomes      string      `json:"outcomes"`      // `["Up","Down"]` como string
	OutcomePrices string      `json:"outcomePrices"` // `["0.52","0.48"]` como string
	ClobTokenIDs  string      `json:"clobTokenIds"`  // `["123...","456..."]` como string
	Volume24h     json.Number `json:"volume24hr"`
	Active        bool        `json:"active"`
	Closed        bool        `json:"closed"`
}

// --- CLOB API ---

// orderBookRequest es el body del POST /books batch.
type orderBookRequest struct {
	TokenID string `json:"token_id"`
}

// orderBookResponse es la respuesta de un item en POST /books.
type orderBookResponse struct {
	Market    string         `json:"market"`
	AssetID   string         `json:"asset_id"`
	Hash      string         `json:"hash"`
	Timestamp string         `json:"timestamp"`
	Bids      []bookEntryRaw `json:"bids"`
	Asks      []bookEntryRaw `json:"asks"`
}

// bookEntryRaw es un nivel de precio raw de la API (strings para mayor precisión).
type bookEntryRaw struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}
