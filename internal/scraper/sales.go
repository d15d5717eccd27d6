package scraper

import (
	"context"
	"fmt"

	"github.com/maltedev/sorare-alert-bot/internal/models"
)

// FetchSalesHistory returns completed sales for a player. An API that does not
// expose history for the tier yields an empty list.
func (s *Service) FetchSalesHistory(ctx context.Context, slug string, rarity models.Rarity) ([]models.SaleRecord, error) {
	if s.api == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	sales, err := s.api.SalesHistory(ctx, slug, rarity)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sales for %s (%s): %w", slug, rarity, err)
	}

	s.logger.Debug("sales fetched", "slug", slug, "rarity", rarity, "count", len(sales))
	return sales, nil
}
