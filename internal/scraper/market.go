package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/maltedev/sorare-alert-bot/internal/browser"
	"github.com/maltedev/sorare-alert-bot/internal/models"
	"github.com/maltedev/sorare-alert-bot/internal/parser"
)

const cardLinkSelector = `a[href*="/cards/"]`

// PlayerURL is the player's card view sorted by lowest price and filtered to cards on sale.
func (s *Service) PlayerURL(slug string, rarity models.Rarity) string {
	return fmt.Sprintf("%s/fr/football/players/%s/cards?s=Lowest+Price&rarity=%s&sale=true",
		s.opts.BaseURL, url.PathEscape(slug), url.QueryEscape(string(rarity)))
}

// ClubURL is the manager-sales view filtered by rarity and club.
func (s *Service) ClubURL(slug string, rarity models.Rarity) string {
	q := url.Values{}
	q.Set("rarity", string(rarity))
	q.Set("club", ClubFilterName(slug)+"|"+slug)
	return s.opts.BaseURL + "/fr/football/market/shop/manager-sales?" + q.Encode()
}

// ClubFilterName is the display form the market filter expects: "toulouse-toulouse" -> "Toulouse Toulouse".
func ClubFilterName(slug string) string {
	return models.DisplayNameFromSlug(slug)
}

// FetchPlayerListings returns a player's listings ordered by ascending price.
// When at least one listing has a known price only priced listings are returned.
// Failures are logged and yield no listings.
func (s *Service) FetchPlayerListings(ctx context.Context, r Renderer, slug string, rarity models.Rarity) []models.Listing {
	listings := s.fetch(ctx, r, s.PlayerURL(slug, rarity), parser.ModePlayer, slug, rarity, "")
	if len(listings) == 0 {
		listings = s.offers(ctx, slug, rarity)
	}
	return order(listings)
}

// FetchClubListings returns a club's listings. Each listing carries the carded player's name.
func (s *Service) FetchClubListings(ctx context.Context, r Renderer, slug string, rarity models.Rarity) []models.Listing {
	listings := s.fetch(ctx, r, s.ClubURL(slug, rarity), parser.ModeClub, slug, rarity, cardLinkSelector)
	return order(listings)
}

func (s *Service) fetch(ctx context.Context, r Renderer, pageURL string, mode parser.Mode, slug string, rarity models.Rarity, waitSelector string) []models.Listing {
	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout+s.opts.SettleDelay+s.opts.SelectorTimeout)
	defer cancel()

	logger := s.logger.With("slug", slug, "rarity", rarity)
	logger.Debug("fetching listings", "url", pageURL)

	html, err := r.Render(ctx, pageURL, browser.RenderOptions{
		WaitSelector:      waitSelector,
		WaitTimeout:       s.opts.SelectorTimeout,
		Settle:            s.opts.SettleDelay,
		NavigationTimeout: s.opts.FetchTimeout,
	})
	if err != nil {
		logger.Error("failed to render market page", "error", err)
		return nil
	}

	listings, err := s.extractor.Extract(html, mode)
	if err != nil {
		logger.Error("failed to extract listings", "error", err)
		return nil
	}

	logger.Info("listings found", "count", len(listings))
	return listings
}

// offers falls back to the marketplace API when the rendered page yields nothing.
func (s *Service) offers(ctx context.Context, slug string, rarity models.Rarity) []models.Listing {
	if s.api == nil || ctx.Err() != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	offers, err := s.api.LiveOffers(ctx, slug, rarity)
	if err != nil {
		s.logger.Warn("live offers fallback failed", "slug", slug, "rarity", rarity, "error", err)
		return nil
	}

	listings := make([]models.Listing, 0, len(offers))
	for _, o := range offers {
		listings = append(listings, models.Listing{
			ItemID: o.CardSlug,
			Price:  o.Price,
			URL:    s.CardURL(o.CardSlug),
		})
	}
	if len(listings) > 0 {
		s.logger.Info("listings found via api", "slug", slug, "rarity", rarity, "count", len(listings))
	}
	return listings
}

func (s *Service) CardURL(cardSlug string) string {
	return s.opts.BaseURL + "/fr/football/cards/" + strings.TrimPrefix(cardSlug, "/")
}

func order(listings []models.Listing) []models.Listing {
	models.SortByPrice(listings)
	return models.PricedOrAll(listings)
}
