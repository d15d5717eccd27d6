package commands

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/sorare-alert-bot/internal/chart"
	"github.com/maltedev/sorare-alert-bot/internal/history"
	"github.com/maltedev/sorare-alert-bot/internal/models"
	"github.com/maltedev/sorare-alert-bot/internal/scanner"
	"github.com/maltedev/sorare-alert-bot/internal/watchlist"
)

type MockScanner struct {
	mock.Mock
}

func (m *MockScanner) TriggerScan() error {
	return m.Called().Error(0)
}

func (m *MockScanner) Stats(ctx context.Context) models.Stats {
	return m.Called(ctx).Get(0).(models.Stats)
}

func (m *MockScanner) RequestImport(ctx context.Context, slug string, rarity models.Rarity) (scanner.ImportResult, error) {
	args := m.Called(ctx, slug, rarity)
	return args.Get(0).(scanner.ImportResult), args.Error(1)
}

func (m *MockScanner) RequestImportAll(ctx context.Context) (scanner.BatchImportResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(scanner.BatchImportResult), args.Error(1)
}

type fixture struct {
	handler *Handler
	store   *watchlist.Store
	prices  *history.PriceStore
	sales   *history.SalesStore
	scanner *MockScanner
}

func newFixture() *fixture {
	f := &fixture{
		store:   watchlist.NewStore(),
		prices:  history.NewPriceStore(),
		sales:   history.NewSalesStore(),
		scanner: new(MockScanner),
	}
	f.handler = NewHandler(f.store, f.scanner, f.prices, f.sales, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

func field(t *testing.T, r Reply, name string) string {
	t.Helper()
	require.NotNil(t, r.Embed)
	v, ok := r.Embed.Field(name)
	require.True(t, ok, "field %q", name)
	return v
}

func TestWatchlistCommands(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	tests := []struct {
		input string
		want  string
	}{
		{"/watchlist", "The watchlist is empty."},
		{"/addplayer brice-samba super_rare 50", "Added Brice Samba (SUPER_RARE), max 50.00€."},
		{"/addplayer brice-samba super_rare", "brice-samba (super_rare) is already on the watchlist."},
		{"/addplayer brice-samba gold", `Unknown rarity "gold". Use one of: limited, rare, super_rare, unique.`},
		{"/addplayer brice-samba rare abc", `"abc" is not a valid price.`},
		{"/addplayer", "Usage: /addplayer <slug> <rarity> [max]"},
		{"/addclub toulouse-toulouse unique", "Added Toulouse Toulouse (UNIQUE), any price."},
		{"/setprice brice-samba 42,5", "Ceiling for Brice Samba set to max 42.50€."},
		{"/setprice toulouse-toulouse 100", "Ceiling for Toulouse Toulouse set to max 100.00€."},
		{"/setprice brice-samba none", "Ceiling for Brice Samba set to any price."},
		{"/setprice nobody 10", "nobody is not on the watchlist. Use /addplayer first."},
		{"/removeplayer brice-samb", "brice-samb was not on the watchlist. Did you mean brice-samba?"},
		{"/removeplayer brice-samba", "brice-samba removed from the watchlist."},
		{"/removeclub toulouse-toulouse", "toulouse-toulouse removed from the watchlist."},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, f.handler.Handle(ctx, tt.input).Text)
		})
	}

	clubs, players := f.store.Len()
	assert.Equal(t, 0, clubs)
	assert.Equal(t, 0, players)
}

func TestWatchlistListing(t *testing.T) {
	f := newFixture()
	_, err := f.store.AddClub("toulouse-toulouse", models.RarityUnique, models.UnknownPrice())
	require.NoError(t, err)
	_, err = f.store.AddPlayer("brice-samba", models.RaritySuperRare, models.NewPrice(50))
	require.NoError(t, err)

	got := f.handler.Handle(context.Background(), "/watchlist").Text
	assert.Equal(t, "Clubs:\n  Toulouse Toulouse (UNIQUE) - any price\nPlayers:\n  Brice Samba (SUPER_RARE) - max 50.00€", got)
}

func TestScanCommand(t *testing.T) {
	ctx := context.Background()

	f := newFixture()
	f.scanner.On("TriggerScan").Return(nil).Once()
	f.scanner.On("TriggerScan").Return(scanner.ErrScanInProgress).Once()
	f.scanner.On("TriggerScan").Return(errors.New("queue is closed")).Once()

	assert.Equal(t, "Scan started.", f.handler.Handle(ctx, "/scan").Text)
	assert.Equal(t, "A scan is already in progress.", f.handler.Handle(ctx, "/scan").Text)
	assert.Equal(t, "The scan could not be started.", f.handler.Handle(ctx, "/scan").Text)
	f.scanner.AssertExpectations(t)
}

func TestStatsCommand(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.scanner.On("Stats", ctx).Return(models.Stats{TotalScans: 3, AlertsSent: 1})

	r := f.handler.Handle(ctx, "/stats")
	assert.Equal(t, "3", field(t, r, "Scans"))
	assert.Equal(t, "1", field(t, r, "Alerts"))
}

func TestPriceCommand(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, err := f.store.AddPlayer("brice-samba", models.RaritySuperRare, models.UnknownPrice())
	require.NoError(t, err)

	assert.Equal(t, "No data yet for Brice Samba. Wait for the next scan.", f.handler.Handle(ctx, "/price brice-samba").Text)
	assert.True(t, strings.HasPrefix(f.handler.Handle(ctx, "/price nobody").Text, "nobody is not on the watchlist"))

	key := models.Key{Slug: "brice-samba", Rarity: models.RaritySuperRare}
	now := time.Now()
	f.prices.Append(key, models.PricePoint{Timestamp: now.Add(-2 * time.Hour), MinPrice: models.NewPrice(40), ListingCount: 2})
	f.prices.Append(key, models.PricePoint{Timestamp: now.Add(-time.Hour), MinPrice: models.NewPrice(30), ListingCount: 3})

	r := f.handler.Handle(ctx, "/price brice-samba")
	assert.Equal(t, "30.00", field(t, r, "Current price (€)"))
	assert.Equal(t, "-25.0%", field(t, r, "7d trend"))
	assert.Equal(t, "3", field(t, r, "Listings"))
	assert.Equal(t, "30.00", field(t, r, "7d min (€)"))
	assert.Equal(t, "40.00", field(t, r, "7d max (€)"))
	assert.Equal(t, colorDown, r.Embed.Color)
}

func TestHistoryCommand(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, err := f.store.AddPlayer("brice-samba", models.RaritySuperRare, models.UnknownPrice())
	require.NoError(t, err)

	assert.Equal(t, "Not enough data to draw a chart yet. Wait for a few scans.", f.handler.Handle(ctx, "/history brice-samba").Text)
	assert.Equal(t, `"x" is not a valid number of days.`, f.handler.Handle(ctx, "/history brice-samba x").Text)

	key := models.Key{Slug: "brice-samba", Rarity: models.RaritySuperRare}
	now := time.Now()
	f.prices.Append(key, models.PricePoint{Timestamp: now.Add(-2 * time.Hour), MinPrice: models.NewPrice(40)})
	f.prices.Append(key, models.PricePoint{Timestamp: now.Add(-time.Hour), MinPrice: models.NewPrice(30)})

	r := f.handler.Handle(ctx, "/history brice-samba 7")
	require.NotNil(t, r.Embed)
	u, err := url.Parse(r.Embed.ImageURL)
	require.NoError(t, err)
	assert.Equal(t, chart.Endpoint, u.Scheme+"://"+u.Host+u.Path)
	assert.Contains(t, u.Query().Get("c"), `"type":"line"`)
	assert.Equal(t, "Period: 7 days", r.Embed.Footer)
}

func TestMarketCommand(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	r := f.handler.Handle(ctx, "/market")
	assert.Equal(t, "Wait for the next scan", field(t, r, "No data"))

	_, err := f.store.AddPlayer("brice-samba", models.RaritySuperRare, models.UnknownPrice())
	require.NoError(t, err)
	_, err = f.store.AddPlayer("mike-penders", models.RaritySuperRare, models.UnknownPrice())
	require.NoError(t, err)

	key := models.Key{Slug: "brice-samba", Rarity: models.RaritySuperRare}
	now := time.Now()
	f.prices.Append(key, models.PricePoint{Timestamp: now.Add(-time.Hour), MinPrice: models.NewPrice(30), ListingCount: 2})
	f.prices.Append(key, models.PricePoint{Timestamp: now, MinPrice: models.NewPrice(35), ListingCount: 4})

	r = f.handler.Handle(ctx, "/market")
	assert.Equal(t, "35.00 € | 4 listings", field(t, r, "↑ Brice Samba"))
	assert.Equal(t, "No data", field(t, r, "Mike Penders"))
}

func TestImportCommands(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, err := f.store.AddPlayer("brice-samba", models.RarityRare, models.UnknownPrice())
	require.NoError(t, err)

	f.scanner.On("RequestImport", ctx, "brice-samba", models.RarityRare).
		Return(scanner.ImportResult{Slug: "brice-samba", Rarity: models.RarityRare, Imported: 4, Skipped: 1}, nil)
	f.scanner.On("RequestImport", ctx, "berke-ozer", models.RaritySuperRare).
		Return(scanner.ImportResult{}, errors.New("graphql down"))
	f.scanner.On("RequestImportAll", ctx).Return(scanner.BatchImportResult{
		Results:  []scanner.ImportResult{{Slug: "brice-samba", Imported: 2}, {Slug: "berke-ozer", Error: "boom"}},
		Imported: 2,
		Failed:   1,
	}, nil)

	r := f.handler.Handle(ctx, "/import brice-samba")
	assert.Equal(t, "4", field(t, r, "Imported"))
	assert.Equal(t, "1", field(t, r, "Skipped"))

	assert.Equal(t, "The import for berke-ozer failed.", f.handler.Handle(ctx, "/import berke-ozer").Text)
	assert.Contains(t, f.handler.Handle(ctx, "/import berke-ozer platinum").Text, "Unknown rarity")

	r = f.handler.Handle(ctx, "/importall")
	assert.Equal(t, "ok brice-samba: 2 sales\nfailed berke-ozer: 0 sales", r.Embed.Description)
	assert.Equal(t, "1", field(t, r, "Failed"))

	f.scanner.AssertExpectations(t)
}

func TestUnknownCommandShowsHelp(t *testing.T) {
	r := newFixture().handler.Handle(context.Background(), "/dance")
	assert.True(t, strings.HasPrefix(r.Text, "Commands:"))
	assert.Nil(t, r.Embed)
}
