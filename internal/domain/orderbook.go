package domain

import (
	"strconv"
	"time"
)

// OrderBook representa el libro de órdenes de un token.
// Los niveles se guardan en el orden recibido del feed (mejor precio primero);
// el engine nunca los reordena.
type OrderBook struct {
	TokenID   string
	Bids      []BookEntry // mayor a menor precio, según el feed
	Asks      []BookEntry // menor a mayor precio, según el feed
	Hash      string      // hash de integridad del feed, solo para logging
	Timestamp time.Time
}

// BookEntry es un nivel de precio en el orderbook.
type BookEntry struct {
	Price float64
	Size  float64
}

// BestBid devuelve el mejor precio de compra (primer bid).
// Devuelve 0 si el book está vacío.
func (ob OrderBook) BestBid() float64 {
	if len(ob.Bids) == 0 {
		return 0
	}
	return ob.Bids[0].Price
}

// BestAsk devuelve el mejor precio de venta (primer ask).
// Devuelve 0 si el book está vacío.
func (ob OrderBook) BestAsk() float64 {
	if len(ob.Asks) == 0 {
		return 0
	}
	return ob.Asks[0].Price
}

// Midpoint devuelve el punto medio entre best bid y best ask.
func (ob OrderBook) Midpoint() float64 {
	bid := ob.BestBid()
	ask := ob.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return (bid + ask) / 2
}

// Spread devuelve el spread del book (ask - bid).
func (ob OrderBook) Spread() float64 {
	bid := ob.BestBid()
	ask := ob.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return ask - bid
}

// BidDepth suma el size de los mejores levels niveles de bids.
// levels <= 0 suma todos.
func (ob OrderBook) BidDepth(levels int) float64 {
	return sumLevels(ob.Bids, levels)
}

// AskDepth suma el size de los mejores levels niveles de asks.
func (ob OrderBook) AskDepth(levels int) float64 {
	return sumLevels(ob.Asks, levels)
}

func sumLevels(entries []BookEntry, levels int) float64 {
	if levels <= 0 || levels > len(entries) {
		levels = len(entries)
	}
	var total float64
	for _, e := range entries[:levels] {
		total += e.Size
	}
	return total
}

// ParsePrice convierte un string de precio a float64.
// Usado en el mapping de la API y del WebSocket.
func ParsePrice(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
