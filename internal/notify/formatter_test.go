package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/sorare-alert-bot/internal/models"
)

func fixedFormatter() *Formatter {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &Formatter{now: func() time.Time { return at }}
}

func TestFormatListing_PlayerAlert(t *testing.T) {
	w := models.WatchEntity{
		Kind:        models.KindPlayer,
		Slug:        "brice-samba",
		DisplayName: "Brice Samba",
		Rarity:      models.RaritySuperRare,
		Ceiling:     models.NewPrice(50),
	}
	l := models.Listing{ItemID: "brice-samba-2024-super_rare-7", Price: models.NewPrice(30), URL: "https://sorare.com/football/cards/brice-samba-2024-super_rare-7"}

	p := fixedFormatter().FormatListing(l, w, true)

	assert.Equal(t, TitleAlert, p.Title)
	assert.Equal(t, ColorAlert, p.Color)
	assert.Equal(t, "Brice Samba", p.Description)
	assert.Equal(t, l.URL, p.URL)
	assert.Equal(t, Footer, p.Footer)
	assert.True(t, p.Alert)

	price, _ := p.Field(FieldPrice)
	assert.Equal(t, "30.00", price)
	rarity, _ := p.Field(FieldRarity)
	assert.Equal(t, "SUPER_RARE", rarity)
	ceiling, _ := p.Field(FieldCeiling)
	assert.Equal(t, "50.00", ceiling)
	savings, ok := p.Field(FieldSavings)
	require.True(t, ok)
	assert.Equal(t, "20.00", savings)
}

func TestFormatListing_PlayerWithoutCeiling(t *testing.T) {
	w := models.WatchEntity{Kind: models.KindPlayer, Slug: "mike-penders", DisplayName: "Mike Penders", Rarity: models.RarityRare}
	l := models.Listing{ItemID: "mike-penders-2024-rare-3", Price: models.NewPrice(12.5)}

	p := fixedFormatter().FormatListing(l, w, false)

	assert.Equal(t, TitleNewListing, p.Title)
	assert.Equal(t, ColorPlayer, p.Color)
	_, ok := p.Field(FieldCeiling)
	assert.False(t, ok)
	_, ok = p.Field(FieldSavings)
	assert.False(t, ok)
}

func TestFormatListing_Club(t *testing.T) {
	w := models.WatchEntity{Kind: models.KindClub, Slug: "toulouse-toulouse", DisplayName: "Toulouse FC", Rarity: models.RarityUnique}

	tests := []struct {
		name        string
		subject     string
		description string
	}{
		{"with subject", "Guillaume Restes", "Guillaume Restes - Toulouse FC"},
		{"without subject", "", "Card - Toulouse FC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := models.Listing{ItemID: "x-unique-1", Price: models.UnknownPrice(), SubjectName: tt.subject}
			p := fixedFormatter().FormatListing(l, w, false)

			assert.Equal(t, tt.description, p.Description)
			assert.Equal(t, ColorClub, p.Color)
			club, _ := p.Field(FieldClub)
			assert.Equal(t, "Toulouse FC", club)
			price, _ := p.Field(FieldPrice)
			assert.Equal(t, Unavailable, price)
		})
	}
}

func TestFormatListing_UnknownPriceWithCeiling(t *testing.T) {
	w := models.WatchEntity{Kind: models.KindPlayer, Slug: "berke-ozer", DisplayName: "Berke Ozer", Rarity: models.RaritySuperRare, Ceiling: models.NewPrice(40)}
	p := fixedFormatter().FormatListing(models.Listing{ItemID: "b-1"}, w, false)

	_, ok := p.Field(FieldCeiling)
	assert.True(t, ok)
	_, ok = p.Field(FieldSavings)
	assert.False(t, ok)
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "1234.50", Money(models.NewPrice(1234.5)))
	assert.Equal(t, "0.10", Money(models.NewPrice(0.1)))
	assert.Equal(t, Unavailable, Money(models.UnknownPrice()))
}

func TestFormatImportAndStats(t *testing.T) {
	f := fixedFormatter()
	w := models.WatchEntity{Kind: models.KindPlayer, Slug: "brice-samba", DisplayName: "Brice Samba", Rarity: models.RaritySuperRare}

	p := f.FormatImport(w, 3, 1)
	imported, _ := p.Field("Imported")
	skipped, _ := p.Field("Skipped")
	assert.Equal(t, "3", imported)
	assert.Equal(t, "1", skipped)

	stats := f.FormatStats(models.Stats{TotalScans: 4, AlertsSent: 2}, 1, 4)
	last, _ := stats.Field("Last scan")
	assert.Equal(t, "never", last)
	scans, _ := stats.Field("Scans")
	assert.Equal(t, "4", scans)

	at := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	stats = f.FormatStats(models.Stats{LastScan: &at}, 0, 0)
	last, _ = stats.Field("Last scan")
	assert.Equal(t, "2024-05-01 08:30:00 UTC", last)
}
