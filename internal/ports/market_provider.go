package ports

import (
	"context"

	"github.com/alejandrodnm/polyscalp/internal/domain"
)

// MarketProvider resuelve el mercado Up/Down activo.
type MarketProvider interface {
	// ResolveActiveMarket devuelve el descriptor del mercado de 15 minutos
	// actualmente en curso: condition id, pregunta, end date, los dos
	// tokens y sus precios actuales.
	ResolveActiveMarket(ctx context.Context) (domain.Market, error)
}

// BookProvider obtiene orderbooks del CLOB usando el endpoint batch.
type BookProvider interface {
	// FetchOrderBooks devuelve los orderbooks para los token_ids dados.
	FetchOrderBooks(ctx context.Context, tokenIDs []string) (map[string]domain.OrderBook, error)
}
