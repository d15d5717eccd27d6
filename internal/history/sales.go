package history

import (
	"sort"
	"sync"
	"time"

	"github.com/maltedev/sorare-alert-bot/internal/models"
)

// SalesStore keeps recorded sales per watched entity.
type SalesStore struct {
	mu    sync.RWMutex
	sales map[models.Key][]models.SaleRecord
}

func NewSalesStore() *SalesStore {
	return &SalesStore{sales: make(map[models.Key][]models.SaleRecord)}
}

// SameSale is the duplicate rule shared by scheduled collection and on-demand
// import: same UTC calendar day, same price and same sale type.
func SameSale(a, b models.SaleRecord) bool {
	return sameDay(a.Date, b.Date) && a.Price == b.Price && a.Type == b.Type
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// Import records the sales that are not duplicates of stored ones (or of each other)
// and returns them with the number skipped.
func (s *SalesStore) Import(key models.Key, sales []models.SaleRecord) ([]models.SaleRecord, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.sales[key]
	var added []models.SaleRecord
	skipped := 0

	for _, sale := range sales {
		if containsSale(existing, sale) {
			skipped++
			continue
		}
		existing = append(existing, sale)
		added = append(added, sale)
	}

	sort.SliceStable(existing, func(i, j int) bool {
		return existing[i].Date.Before(existing[j].Date)
	})
	s.sales[key] = existing
	return added, skipped
}

func containsSale(sales []models.SaleRecord, sale models.SaleRecord) bool {
	for _, existing := range sales {
		if SameSale(existing, sale) {
			return true
		}
	}
	return false
}

// All returns the recorded sales, oldest first.
func (s *SalesStore) All(key models.Key) []models.SaleRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.SaleRecord(nil), s.sales[key]...)
}

func (s *SalesStore) Since(key models.Key, t time.Time) []models.SaleRecord {
	var out []models.SaleRecord
	for _, sale := range s.All(key) {
		if !sale.Date.Before(t) {
			out = append(out, sale)
		}
	}
	return out
}

func (s *SalesStore) Count(key models.Key) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sales[key])
}
