package polymarket

// markets.go — resolución del mercado Up/Down activo vía Gamma.
//
// Los mercados de 15 minutos pertenecen a una serie ("bitcoin-up-or-down");
// Gamma devuelve los mercados abiertos de la serie ordenados por endDate,
// y el activo es el primero cuya ventana no terminó todavía.

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/alejandrodnm/polyscalp/internal/domain"
)

const (
	gammaMarketsPath  = "/markets"
	DefaultSeriesSlug = "bitcoin-up-or-down"
)

// SetSeries configura la serie de mercados rotativos a seguir.
func (c *Client) SetSeries(slug string) {
	if slug != "" {
		c.seriesSlug = slug
	}
}

func (c *Client) series() string {
	if c.seriesSlug == "" {
		return DefaultSeriesSlug
	}
	return c.seriesSlug
}

// ResolveActiveMarket implementa ports.MarketProvider: devuelve el
// mercado de 15 minutos actualmente en curso de la serie configurada.
func (c *Client) ResolveActiveMarket(ctx context.Context) (domain.Market, error) {
	q := url.Values{}
	q.Set("series_slug", c.series())
	q.Set("closed", "false")
	q.Set("order", "endDate")
	q.Set("ascending", "true")
	q.Set("limit", "5")

	reqURL := fmt.Sprintf("%s%s?%s", c.gammaBase, gammaMarketsPath, q.Encode())

	var resp gammaMarketsResponse
	if err := c.get(ctx, c.gammaLimiter, reqURL, &resp); err != nil {
		return domain.Market{}, fmt.Errorf("polymarket.ResolveActiveMarket: %w", err)
	}

	now := time.Now()
	for _, gm := range resp {
		m, err := mapGammaMarket(gm)
		if err != nil {
			slog.Debug("skipping unparseable market", "slug", gm.Slug, "err", err)
			continue
		}
		if m.Closed || m.EndDate.IsZero() || !m.EndDate.After(now) {
			continue
		}

		slog.Info("active market resolved",
			"slug", m.Slug,
			"condition", m.ConditionID,
			"ends_in", m.EndDate.Sub(now).Round(time.Second),
		)
		return m, nil
	}

	return domain.Market{}, fmt.Errorf("polymarket.ResolveActiveMarket: no open market in series %q", c.series())
}
