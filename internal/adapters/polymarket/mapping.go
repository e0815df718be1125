package polymarket

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/alejandrodnm/polyscalp/internal/domain"
)

// mapGammaMarket convierte un gammaMarket DTO a domain.Market.
// Los campos embebidos (outcomes, clobTokenIds, outcomePrices) vienen
// como JSON dentro de strings y se decodifican aquí.
func mapGammaMarket(gm gammaMarket) (domain.Market, error) {
	m := domain.Market{
		ConditionID: gm.ConditionID,
		Question:    gm.Question,
		Slug:        gm.Slug,
		Active:      gm.Active,
		Closed:      gm.Closed,
	}

	var outcomes, tokenIDs, prices []string
	if err := json.Unmarshal([]byte(gm.Outcomes), &outcomes); err != nil {
		return m, fmt.Errorf("parse outcomes %q: %w", gm.Outcomes, err)
	}
	if err := json.Unmarshal([]byte(gm.ClobTokenIDs), &tokenIDs); err != nil {
		return m, fmt.Errorf("parse clobTokenIds: %w", err)
	}
	if gm.OutcomePrices != "" {
		// precios opcionales: sin ellos el tracker los llena desde el stream
		_ = json.Unmarshal([]byte(gm.OutcomePrices), &prices)
	}

	if len(outcomes) < 2 || len(tokenIDs) < 2 {
		return m, fmt.Errorf("market %s: expected 2 outcomes/tokens, got %d/%d",
			gm.ConditionID, len(outcomes), len(tokenIDs))
	}

	for i := 0; i < 2; i++ {
		t := domain.Token{TokenID: tokenIDs[i], Outcome: outcomes[i]}
		if i < len(prices) {
			t.Price = domain.ParsePrice(prices[i])
		}
		m.Tokens[i] = t
	}

	m.EndDate = parseEndDate(gm.EndDateISO, gm.EndDate)
	return m, nil
}

// parseEndDate intenta los formatos de fecha que devuelve Polymarket.
func parseEndDate(candidates ...string) time.Time {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05Z",
		"2006-01-02",
	}
	for _, raw := range candidates {
		if raw == "" {
			continue
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}

// mapOrderBooks convierte la respuesta batch de /books a un map tokenID→OrderBook.
// El orden de los niveles se conserva tal cual llega del feed.
func mapOrderBooks(raw []orderBookResponse) map[string]domain.OrderBook {
	result := make(map[string]domain.OrderBook, len(raw))
	for _, r := range raw {
		result[r.AssetID] = domain.OrderBook{
			TokenID:   r.AssetID,
			Bids:      mapBookEntries(r.Bids),
			Asks:      mapBookEntries(r.Asks),
			Hash:      r.Hash,
			Timestamp: parseMillisTimestamp(r.Timestamp),
		}
	}
	return result
}

// mapBookEntries convierte entries raw a domain.BookEntry descartando
// niveles inválidos, sin reordenar.
func mapBookEntries(raw []bookEntryRaw) []domain.BookEntry {
	entries := make([]domain.BookEntry, 0, len(raw))
	for _, r := range raw {
		price, _ := strconv.ParseFloat(r.Price, 64)
		size, _ := strconv.ParseFloat(r.Size, 64)
		if price <= 0 || size < 0 {
			continue
		}
		entries = append(entries, domain.BookEntry{Price: price, Size: size})
	}
	return entries
}

// parseMillisTimestamp convierte un timestamp en milisegundos (string) a time.Time.
func parseMillisTimestamp(raw string) time.Time {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
