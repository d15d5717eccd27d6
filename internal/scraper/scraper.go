package scraper

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/maltedev/sorare-alert-bot/internal/browser"
	"github.com/maltedev/sorare-alert-bot/internal/graphql"
	"github.com/maltedev/sorare-alert-bot/internal/models"
	"github.com/maltedev/sorare-alert-bot/internal/parser"
)

// Renderer renders a URL to HTML. *browser.Browser implements it; one renderer is
// shared by all fetches of a scan cycle.
type Renderer interface {
	Render(ctx context.Context, url string, opts browser.RenderOptions) (string, error)
}

// MarketAPI is the subset of the marketplace GraphQL API the adapter uses.
type MarketAPI interface {
	LiveOffers(ctx context.Context, slug string, rarity models.Rarity) ([]graphql.Offer, error)
	SalesHistory(ctx context.Context, slug string, rarity models.Rarity) ([]models.SaleRecord, error)
}

type Options struct {
	BaseURL         string
	FetchTimeout    time.Duration
	SettleDelay     time.Duration
	SelectorTimeout time.Duration
}

// Service fetches listings and sales for watched entities.
type Service struct {
	api       MarketAPI
	extractor *parser.ListingExtractor
	opts      Options
	logger    *slog.Logger
}

func NewService(api MarketAPI, opts Options, logger *slog.Logger) *Service {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	return &Service{
		api:       api,
		extractor: parser.NewListingExtractor(opts.BaseURL),
		opts:      opts,
		logger:    logger.With("component", "scraper"),
	}
}
