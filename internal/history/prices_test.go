package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/sorare-alert-bot/internal/models"
)

var key = models.Key{Slug: "brice-samba", Rarity: models.RaritySuperRare}

func listingsAt(prices ...float64) []models.Listing {
	out := make([]models.Listing, len(prices))
	for i, p := range prices {
		out[i] = models.Listing{ItemID: string(rune('a' + i)), Price: models.NewPrice(p)}
	}
	return out
}

func TestSummarize(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		listings []models.Listing
		min      float64
		median   float64
		count    int
	}{
		{"two prices picks upper middle", listingsAt(10, 20), 10, 20, 2},
		{"odd count", listingsAt(30, 10, 20), 10, 20, 3},
		{"single", listingsAt(42), 42, 42, 1},
		{"four prices", listingsAt(40, 10, 30, 20), 10, 30, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Summarize(tt.listings, at)
			assert.Equal(t, at, p.Timestamp)
			assert.Equal(t, tt.min, p.MinPrice.Amount())
			assert.Equal(t, tt.median, p.MedianPrice.Amount())
			assert.Equal(t, tt.count, p.ListingCount)
		})
	}
}

func TestSummarizeWithoutPrices(t *testing.T) {
	p := Summarize([]models.Listing{{ItemID: "x"}}, time.Now())
	assert.False(t, p.MinPrice.Known())
	assert.False(t, p.MedianPrice.Known())
	assert.Equal(t, 1, p.ListingCount)

	empty := Summarize(nil, time.Now())
	assert.Equal(t, 0, empty.ListingCount)
}

func TestAppendPrunesOlderThanRetention(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s := NewPriceStore()
	s.now = func() time.Time { return now }

	s.Append(key, models.PricePoint{Timestamp: now.Add(-31 * 24 * time.Hour), MinPrice: models.NewPrice(1)})
	s.Append(key, models.PricePoint{Timestamp: now.Add(-29 * 24 * time.Hour), MinPrice: models.NewPrice(2)})
	s.Append(key, models.PricePoint{Timestamp: now, MinPrice: models.NewPrice(3)})

	series := s.Series(key)
	require.Len(t, series, 2)
	for _, p := range series {
		assert.True(t, p.Timestamp.After(now.Add(-Retention)))
	}
}

func TestAppendKeepsTimestampsNonDecreasing(t *testing.T) {
	now := time.Now()
	s := NewPriceStore()

	s.Append(key, models.PricePoint{Timestamp: now})
	s.Append(key, models.PricePoint{Timestamp: now.Add(-time.Minute)})

	series := s.Series(key)
	require.Len(t, series, 2)
	assert.False(t, series[1].Timestamp.Before(series[0].Timestamp))
}

func TestLatestAndSince(t *testing.T) {
	now := time.Now()
	s := NewPriceStore()

	_, ok := s.Latest(key)
	assert.False(t, ok)

	s.Append(key, models.PricePoint{Timestamp: now.Add(-2 * time.Hour), MinPrice: models.NewPrice(10)})
	s.Append(key, models.PricePoint{Timestamp: now, MinPrice: models.NewPrice(12)})

	latest, ok := s.Latest(key)
	require.True(t, ok)
	assert.Equal(t, 12.0, latest.MinPrice.Amount())

	assert.Len(t, s.Since(key, now.Add(-time.Hour)), 1)
	assert.Len(t, s.Since(key, now.Add(-3*time.Hour)), 2)
}

func TestTrend(t *testing.T) {
	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	s := NewPriceStore()
	s.now = func() time.Time { return now }

	s.Append(key, models.PricePoint{Timestamp: now.Add(-10 * 24 * time.Hour), MinPrice: models.NewPrice(100)})
	s.Append(key, models.PricePoint{Timestamp: now.Add(-6 * 24 * time.Hour), MinPrice: models.NewPrice(40)})
	s.Append(key, models.PricePoint{Timestamp: now.Add(-3 * 24 * time.Hour), MinPrice: models.NewPrice(60)})
	s.Append(key, models.PricePoint{Timestamp: now.Add(-2 * 24 * time.Hour)})
	s.Append(key, models.PricePoint{Timestamp: now, MinPrice: models.NewPrice(50)})

	trend := s.Trend(key, 7*24*time.Hour)
	assert.Equal(t, 3, trend.DataPoints)
	assert.Equal(t, 40.0, trend.First.Amount())
	assert.Equal(t, 50.0, trend.Current.Amount())
	assert.Equal(t, 40.0, trend.Min.Amount())
	assert.Equal(t, 60.0, trend.Max.Amount())
	require.NotNil(t, trend.ChangePct)
	assert.InDelta(t, 25.0, *trend.ChangePct, 0.001)

	empty := s.Trend(models.Key{Slug: "other"}, 7*24*time.Hour)
	assert.Zero(t, empty.DataPoints)
	assert.Nil(t, empty.ChangePct)
}
