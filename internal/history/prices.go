package history

import (
	"sort"
	"sync"
	"time"

	"github.com/maltedev/sorare-alert-bot/internal/models"
)

// Retention is how long price points are kept.
const Retention = 30 * 24 * time.Hour

// PriceStore keeps a rolling window of price points per watched entity.
type PriceStore struct {
	mu     sync.RWMutex
	series map[models.Key][]models.PricePoint
	now    func() time.Time
}

func NewPriceStore() *PriceStore {
	return &PriceStore{
		series: make(map[models.Key][]models.PricePoint),
		now:    time.Now,
	}
}

// Append adds a point and drops points older than Retention relative to now.
// Timestamps within a series never decrease; an earlier point is clamped to the latest one.
func (s *PriceStore) Append(key models.Key, point models.PricePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	series := s.series[key]
	if n := len(series); n > 0 && point.Timestamp.Before(series[n-1].Timestamp) {
		point.Timestamp = series[n-1].Timestamp
	}
	series = append(series, point)

	cutoff := s.now().Add(-Retention)
	first := sort.Search(len(series), func(i int) bool {
		return series[i].Timestamp.After(cutoff)
	})
	s.series[key] = append([]models.PricePoint(nil), series[first:]...)
}

// Series returns a copy of all retained points, oldest first.
func (s *PriceStore) Series(key models.Key) []models.PricePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.PricePoint(nil), s.series[key]...)
}

// Since returns the points at or after t.
func (s *PriceStore) Since(key models.Key, t time.Time) []models.PricePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.series[key]
	first := sort.Search(len(series), func(i int) bool {
		return !series[i].Timestamp.Before(t)
	})
	return append([]models.PricePoint(nil), series[first:]...)
}

func (s *PriceStore) Latest(key models.Key) (models.PricePoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.series[key]
	if len(series) == 0 {
		return models.PricePoint{}, false
	}
	return series[len(series)-1], true
}

// Trend summarizes the minimum prices observed within window before now.
type Trend struct {
	Current    models.Price `json:"current"`
	First      models.Price `json:"first"`
	Min        models.Price `json:"min"`
	Max        models.Price `json:"max"`
	ChangePct  *float64     `json:"changePct"`
	DataPoints int          `json:"dataPoints"`
}

func (s *PriceStore) Trend(key models.Key, window time.Duration) Trend {
	points := s.Since(key, s.now().Add(-window))

	var trend Trend
	for _, p := range points {
		v, ok := p.MinPrice.Value()
		if !ok {
			continue
		}
		trend.DataPoints++
		if !trend.First.Known() {
			trend.First = p.MinPrice
		}
		trend.Current = p.MinPrice
		if !trend.Min.Known() || v < trend.Min.Amount() {
			trend.Min = p.MinPrice
		}
		if v > trend.Max.Amount() {
			trend.Max = p.MinPrice
		}
	}

	if first, ok := trend.First.Value(); ok && trend.DataPoints > 1 {
		change := (trend.Current.Amount() - first) / first * 100
		trend.ChangePct = &change
	}
	return trend
}

// Summarize computes the point for one scan: the lowest known price and the
// element at index floor(n/2) of the ascending known prices.
func Summarize(listings []models.Listing, at time.Time) models.PricePoint {
	prices := make([]float64, 0, len(listings))
	for _, l := range listings {
		if v, ok := l.Price.Value(); ok {
			prices = append(prices, v)
		}
	}

	point := models.PricePoint{Timestamp: at, ListingCount: len(listings)}
	if len(prices) == 0 {
		return point
	}

	sort.Float64s(prices)
	point.MinPrice = models.NewPrice(prices[0])
	point.MedianPrice = models.NewPrice(prices[len(prices)/2])
	return point
}
