package cmd

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/sorare-alert-bot/internal/api"
	"github.com/maltedev/sorare-alert-bot/internal/commands"
	"github.com/maltedev/sorare-alert-bot/internal/history"
	"github.com/maltedev/sorare-alert-bot/internal/models"
	"github.com/maltedev/sorare-alert-bot/internal/scanner"
	"github.com/maltedev/sorare-alert-bot/internal/watchlist"
)

type stubScanner struct {
	scanErr error
	imports []string
}

func (s *stubScanner) TriggerScan() error { return s.scanErr }

func (s *stubScanner) State() scanner.State { return scanner.StateIdle }

func (s *stubScanner) Stats(context.Context) models.Stats {
	return models.Stats{TotalScans: 3, AlertsSent: 2, SeenListings: 17}
}

func (s *stubScanner) RequestImport(_ context.Context, slug string, rarity models.Rarity) (scanner.ImportResult, error) {
	s.imports = append(s.imports, slug+"|"+string(rarity))
	return scanner.ImportResult{Slug: slug, Rarity: rarity, Imported: 4, Skipped: 1}, nil
}

func (s *stubScanner) RequestImportAll(context.Context) (scanner.BatchImportResult, error) {
	return scanner.BatchImportResult{
		Results:  []scanner.ImportResult{{Slug: "brice-samba", Rarity: models.RaritySuperRare, Imported: 2}},
		Imported: 2,
	}, nil
}

type echoRunner struct{}

func (echoRunner) Handle(_ context.Context, text string) commands.Reply {
	return commands.Reply{Text: "echo " + text}
}

type fixture struct {
	url     string
	store   *watchlist.Store
	prices  *history.PriceStore
	scanner *stubScanner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:   watchlist.NewStore(),
		prices:  history.NewPriceStore(),
		scanner: &stubScanner{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := api.NewHandlers(f.store, f.scanner, f.prices, history.NewSalesStore(), echoRunner{}, logger)

	srv := httptest.NewServer(api.NewRouter(h, nil))
	t.Cleanup(srv.Close)
	f.url = srv.URL
	return f
}

func (f *fixture) run(args ...string) (string, error) {
	var buf bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(append([]string{"--server", f.url}, args...))
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestAddAndList(t *testing.T) {
	f := newFixture(t)

	out, err := f.run("add", "player", "brice-samba", "super_rare", "50")
	require.NoError(t, err)
	assert.Equal(t, "Added player Brice Samba (super_rare), max 50.00€.\n", out)

	_, err = f.run("add", "club", "olympique-marseille", "rare", "--name", "OM")
	require.NoError(t, err)

	out, err = f.run("watchlist")
	require.NoError(t, err)
	assert.Contains(t, out, "brice-samba")
	assert.Contains(t, out, "50.00€")
	assert.Contains(t, out, "OM")
	assert.Contains(t, out, "none")
}

func TestAddDuplicate(t *testing.T) {
	f := newFixture(t)

	_, err := f.run("add", "player", "brice-samba", "rare")
	require.NoError(t, err)

	_, err = f.run("add", "player", "brice-samba", "rare")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already on the watchlist")
	assert.Contains(t, err.Error(), "409")
}

func TestSetPriceAndRemove(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.AddPlayer("brice-samba", models.RaritySuperRare, models.NewPrice(50))
	require.NoError(t, err)

	out, err := f.run("set-price", "player", "brice-samba", "none")
	require.NoError(t, err)
	assert.Equal(t, "Brice Samba now alerts at none.\n", out)

	e, ok := f.store.Find(models.KindPlayer, "brice-samba")
	require.True(t, ok)
	assert.False(t, e.Ceiling.Known())

	out, err = f.run("remove", "player", "brice-samba")
	require.NoError(t, err)
	assert.Equal(t, "Removed 1 player entry for brice-samba.\n", out)

	_, err = f.run("remove", "player", "brice-samba")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestScanAndStatus(t *testing.T) {
	f := newFixture(t)

	out, err := f.run("scan")
	require.NoError(t, err)
	assert.Equal(t, "Scan started.\n", out)

	f.scanner.scanErr = scanner.ErrScanInProgress
	_, err = f.run("scan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan already in progress")

	out, err = f.run("status")
	require.NoError(t, err)
	assert.Contains(t, out, "idle")
	assert.Contains(t, out, "never")
	assert.Contains(t, out, "17")
}

func TestPrices(t *testing.T) {
	f := newFixture(t)
	e, err := f.store.AddPlayer("brice-samba", models.RaritySuperRare, models.UnknownPrice())
	require.NoError(t, err)

	now := time.Now().UTC()
	f.prices.Append(e.Key(), models.PricePoint{Timestamp: now.Add(-time.Hour), MinPrice: models.NewPrice(40), MedianPrice: models.NewPrice(45), ListingCount: 3})
	f.prices.Append(e.Key(), models.PricePoint{Timestamp: now, MinPrice: models.NewPrice(44), MedianPrice: models.NewPrice(46), ListingCount: 2})

	out, err := f.run("prices", "brice-samba")
	require.NoError(t, err)
	assert.Contains(t, out, "Brice Samba (super_rare)")
	assert.Contains(t, out, "+10.0%")
	assert.Contains(t, out, "44.00")

	_, err = f.run("prices", "unknown-player")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "player not found")
}

func TestPricesForClubRarity(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.AddClub("toulouse-toulouse", models.RarityRare, models.UnknownPrice())
	require.NoError(t, err)
	e, err := f.store.AddClub("toulouse-toulouse", models.RarityUnique, models.UnknownPrice())
	require.NoError(t, err)

	f.prices.Append(e.Key(), models.PricePoint{Timestamp: time.Now().UTC(), MinPrice: models.NewPrice(333), ListingCount: 1})

	out, err := f.run("prices", "toulouse-toulouse", "--kind", "club", "--rarity", "unique")
	require.NoError(t, err)
	assert.Contains(t, out, "(unique)")
	assert.Contains(t, out, "333.00")

	_, err = f.run("prices", "toulouse-toulouse")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "player not found")
}

func TestImport(t *testing.T) {
	f := newFixture(t)

	out, err := f.run("import", "brice-samba", "--rarity", "super_rare")
	require.NoError(t, err)
	assert.Equal(t, "brice-samba (super_rare): 4 imported, 1 skipped.\n", out)
	assert.Equal(t, []string{"brice-samba|super_rare"}, f.scanner.imports)

	out, err = f.run("import")
	require.NoError(t, err)
	assert.Contains(t, out, "brice-samba")
	assert.Contains(t, strings.ToLower(out), "0 failed")
}

func TestRunCommand(t *testing.T) {
	f := newFixture(t)

	out, err := f.run("run", "price", "brice-samba")
	require.NoError(t, err)
	assert.Equal(t, "echo price brice-samba\n", out)
}

func TestPriceArg(t *testing.T) {
	tests := []struct {
		in      string
		want    *float64
		wantErr bool
	}{
		{in: "none"},
		{in: "NONE"},
		{in: "50", want: ptr(50)},
		{in: "12,50€", want: ptr(12.5)},
		{in: "abc", wantErr: true},
		{in: "-3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := priceArg(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func ptr(v float64) *float64 { return &v }
