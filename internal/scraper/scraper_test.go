package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/sorare-alert-bot/internal/browser"
	"github.com/maltedev/sorare-alert-bot/internal/graphql"
	"github.com/maltedev/sorare-alert-bot/internal/models"
)

type fakeRenderer struct {
	html string
	err  error
	urls []string
	opts []browser.RenderOptions
}

func (f *fakeRenderer) Render(ctx context.Context, url string, opts browser.RenderOptions) (string, error) {
	f.urls = append(f.urls, url)
	f.opts = append(f.opts, opts)
	return f.html, f.err
}

type MockMarketAPI struct {
	mock.Mock
}

func (m *MockMarketAPI) LiveOffers(ctx context.Context, slug string, rarity models.Rarity) ([]graphql.Offer, error) {
	args := m.Called(ctx, slug, rarity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]graphql.Offer), args.Error(1)
}

func (m *MockMarketAPI) SalesHistory(ctx context.Context, slug string, rarity models.Rarity) ([]models.SaleRecord, error) {
	args := m.Called(ctx, slug, rarity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SaleRecord), args.Error(1)
}

func newService(api MarketAPI) *Service {
	return NewService(api, Options{BaseURL: "https://sorare.com/"}, slog.Default())
}

func TestURLs(t *testing.T) {
	s := newService(nil)

	assert.Equal(t,
		"https://sorare.com/fr/football/players/brice-samba/cards?s=Lowest+Price&rarity=super_rare&sale=true",
		s.PlayerURL("brice-samba", models.RaritySuperRare))

	clubURL, err := url.Parse(s.ClubURL("toulouse-toulouse", models.RarityUnique))
	require.NoError(t, err)
	assert.Equal(t, "/fr/football/market/shop/manager-sales", clubURL.Path)
	assert.Equal(t, "unique", clubURL.Query().Get("rarity"))
	assert.Equal(t, "Toulouse Toulouse|toulouse-toulouse", clubURL.Query().Get("club"))
}

func TestFetchPlayerListingsOrdersAndFilters(t *testing.T) {
	r := &fakeRenderer{html: `<body>
		<div><a href="/cards/p-1">45 €</a></div>
		<div><a href="/cards/p-2">no price</a></div>
		<div><a href="/cards/p-3">30 €</a></div>
	</body>`}
	api := new(MockMarketAPI)

	listings := newService(api).FetchPlayerListings(context.Background(), r, "p", models.RarityRare)

	require.Len(t, listings, 2)
	assert.Equal(t, "p-3", listings[0].ItemID)
	assert.Equal(t, "p-1", listings[1].ItemID)
	assert.Equal(t, "https://sorare.com/cards/p-3", listings[0].URL)
	api.AssertNotCalled(t, "LiveOffers", mock.Anything, mock.Anything, mock.Anything)
}

func TestFetchPlayerListingsKeepsUnpricedWhenNonePriced(t *testing.T) {
	r := &fakeRenderer{html: `<body><a href="/cards/p-1">a</a><a href="/cards/p-2">b</a></body>`}

	listings := newService(nil).FetchPlayerListings(context.Background(), r, "p", models.RarityRare)

	require.Len(t, listings, 2)
	assert.False(t, listings[0].Price.Known())
}

func TestFetchPlayerListingsFallsBackToAPI(t *testing.T) {
	r := &fakeRenderer{err: errors.New("navigation timeout")}
	api := new(MockMarketAPI)
	api.On("LiveOffers", mock.Anything, "p", models.RarityRare).Return([]graphql.Offer{
		{CardSlug: "p-9", Price: models.NewPrice(80)},
		{CardSlug: "p-4", Price: models.NewPrice(60)},
	}, nil)

	listings := newService(api).FetchPlayerListings(context.Background(), r, "p", models.RarityRare)

	require.Len(t, listings, 2)
	assert.Equal(t, "p-4", listings[0].ItemID)
	assert.Equal(t, "https://sorare.com/fr/football/cards/p-4", listings[0].URL)
	api.AssertExpectations(t)
}

func TestFetchPlayerListingsFailureYieldsNothing(t *testing.T) {
	r := &fakeRenderer{err: errors.New("boom")}
	api := new(MockMarketAPI)
	api.On("LiveOffers", mock.Anything, "p", models.RarityRare).Return(nil, errors.New("api down"))

	listings := newService(api).FetchPlayerListings(context.Background(), r, "p", models.RarityRare)
	assert.Empty(t, listings)
}

func TestFetchClubListings(t *testing.T) {
	r := &fakeRenderer{html: `<body>
		<a href="/cards/dominik-greif-2024-unique-1"><span class="playerName">Dominik Greif</span> 300 €</a>
	</body>`}

	listings := newService(nil).FetchClubListings(context.Background(), r, "toulouse-toulouse", models.RarityUnique)

	require.Len(t, listings, 1)
	assert.Equal(t, "Dominik Greif", listings[0].SubjectName)
	assert.Equal(t, 300.0, listings[0].Price.Amount())
	require.Len(t, r.opts, 1)
	assert.Equal(t, `a[href*="/cards/"]`, r.opts[0].WaitSelector)
}

func TestFetchSalesHistory(t *testing.T) {
	api := new(MockMarketAPI)
	api.On("SalesHistory", mock.Anything, "p", models.RarityRare).Return([]models.SaleRecord{{Price: 10, Type: "offer"}}, nil).Once()
	api.On("SalesHistory", mock.Anything, "q", models.RarityRare).Return(nil, errors.New("status 500")).Once()

	s := newService(api)

	sales, err := s.FetchSalesHistory(context.Background(), "p", models.RarityRare)
	require.NoError(t, err)
	assert.Len(t, sales, 1)

	_, err = s.FetchSalesHistory(context.Background(), "q", models.RarityRare)
	assert.Error(t, err)
}
