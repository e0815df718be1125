package polymarket

// decode.go — decodificación de frames WS a eventos canónicos.
//
// El wire es ambiguo: el mismo canal mezcla snapshots, deltas y trades,
// a veces sin event_type. La desambiguación es estructural y en orden de
// prioridad fijo; un frame irreconocible produce EventUnknown y se
// descarta en el caller, nunca tumba el read loop.

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/alejandrodnm/polyscalp/internal/domain"
	"github.com/alejandrodnm/polyscalp/internal/ports"
)

// decodeFrame convierte un frame de texto en cero o más eventos canónicos.
func decodeFrame(raw []byte) ([]ports.StreamEvent, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}

	// Caso 1: array de snapshots (respuesta inicial a la suscripción).
	if raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("polymarket.decodeFrame: array: %w", err)
		}
		var events []ports.StreamEvent
		for _, item := range items {
			evs, err := decodeObject(item)
			if err != nil {
				return nil, err
			}
			events = append(events, evs...)
		}
		return events, nil
	}

	return decodeObject(raw)
}

func decodeObject(raw []byte) ([]ports.StreamEvent, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("polymarket.decodeObject: %w", err)
	}

	eventType := probeString(probe, "event_type")

	switch {
	// Caso 2: batch de deltas incrementales.
	case hasKey(probe, "price_changes"):
		return decodePriceChanges(raw)

	// Caso 3: último trade ejecutado → PriceUpdate.
	case eventType == "last_trade_price":
		return decodeLastTradePrice(raw)

	// Caso 4: snapshot de book, con o sin event_type explícito.
	case eventType == "book",
		hasKey(probe, "bids") && hasKey(probe, "asks"),
		hasKey(probe, "buys") && hasKey(probe, "sells"):
		return decodeBookSnapshot(raw)

	// Caso 5: trade individual.
	case eventType == "trade":
		return decodeTrade(raw)
	}

	// Caso 6: sin event_type pero con precio suelto — last trade implícito.
	if eventType == "" && hasKey(probe, "price") && hasKey(probe, "asset_id") {
		return decodeLastTradePrice(raw)
	}

	return []ports.StreamEvent{{Kind: ports.EventUnknown}}, nil
}

func decodeBookSnapshot(raw []byte) ([]ports.StreamEvent, error) {
	var ev wsBookEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("polymarket.decodeBookSnapshot: %w", err)
	}

	bids, asks := ev.Bids, ev.Asks
	if len(bids) == 0 && len(asks) == 0 {
		bids, asks = ev.Buys, ev.Sells
	}

	out := ports.StreamEvent{
		Kind:    ports.EventBookUpdate,
		TokenID: ev.AssetID,
		Bids:    mapWSLevels(bids),
		Asks:    mapWSLevels(asks),
		Hash:    ev.Hash,
	}
	// Snapshot sin niveles no aporta nada.
	if out.Bids == nil && out.Asks == nil {
		return []ports.StreamEvent{{Kind: ports.EventUnknown}}, nil
	}
	return []ports.StreamEvent{out}, nil
}

func decodePriceChanges(raw []byte) ([]ports.StreamEvent, error) {
	var ev wsPriceChangeEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("polymarket.decodePriceChanges: %w", err)
	}

	ts := parseMillisTimestamp(ev.Timestamp)
	events := make([]ports.StreamEvent, 0, len(ev.PriceChanges))
	for _, ch := range ev.PriceChanges {
		tokenID := ch.AssetID
		if tokenID == "" {
			tokenID = ev.AssetID
		}

		if ch.Side != "" && ch.Price != "" && ch.Size != "" {
			events = append(events, ports.StreamEvent{
				Kind:      ports.EventTrade,
				TokenID:   tokenID,
				Side:      ch.Side,
				Price:     domain.ParsePrice(ch.Price),
				Size:      domain.ParsePrice(ch.Size),
				Timestamp: ts,
			})
		}
		if ch.BestBid != "" || ch.BestAsk != "" {
			events = append(events, ports.StreamEvent{
				Kind:    ports.EventBookUpdate,
				TokenID: tokenID,
				BestBid: domain.ParsePrice(ch.BestBid),
				BestAsk: domain.ParsePrice(ch.BestAsk),
				Hash:    ch.Hash,
			})
		}
	}
	return events, nil
}

func decodeLastTradePrice(raw []byte) ([]ports.StreamEvent, error) {
	var ev wsLastTradePrice
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("polymarket.decodeLastTradePrice: %w", err)
	}
	if ev.AssetID == "" || ev.Price == "" {
		return []ports.StreamEvent{{Kind: ports.EventUnknown}}, nil
	}
	return []ports.StreamEvent{{
		Kind:    ports.EventPriceUpdate,
		TokenID: ev.AssetID,
		Price:   domain.ParsePrice(ev.Price),
	}}, nil
}

func decodeTrade(raw []byte) ([]ports.StreamEvent, error) {
	var ev wsTradeEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("polymarket.decodeTrade: %w", err)
	}
	if ev.AssetID == "" || ev.Price == "" {
		return []ports.StreamEvent{{Kind: ports.EventUnknown}}, nil
	}
	return []ports.StreamEvent{{
		Kind:      ports.EventTrade,
		TokenID:   ev.AssetID,
		Side:      ev.Side,
		Price:     domain.ParsePrice(ev.Price),
		Size:      domain.ParsePrice(ev.Size),
		Timestamp: parseMillisTimestamp(ev.Timestamp),
	}}, nil
}

func mapWSLevels(raw []wsPriceLevel) []domain.BookEntry {
	if len(raw) == 0 {
		return nil
	}
	entries := make([]domain.BookEntry, 0, len(raw))
	for _, lvl := range raw {
		price := domain.ParsePrice(lvl.Price)
		size := domain.ParsePrice(lvl.Size)
		if price <= 0 || size < 0 {
			continue
		}
		entries = append(entries, domain.BookEntry{Price: price, Size: size})
	}
	if len(entries) == 0 {
		return nil
	}
	return entries
}

func hasKey(probe map[string]json.RawMessage, key string) bool {
	_, ok := probe[key]
	return ok
}

func probeString(probe map[string]json.RawMessage, key string) string {
	raw, ok := probe[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
