package watchlist

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/antzucaro/matchr"
	"github.com/maltedev/sorare-alert-bot/internal/models"
)

var (
	ErrDuplicate = errors.New("already on the watchlist")
	ErrNotFound  = errors.New("not on the watchlist")
	ErrInvalid   = errors.New("invalid watch entry")
)

// minSuggestScore is the Jaro-Winkler similarity a slug needs to be offered as a suggestion.
const minSuggestScore = 0.85

// Snapshot is a copy of the watchlist in insertion order.
type Snapshot struct {
	Clubs   []models.WatchEntity `json:"clubs"`
	Players []models.WatchEntity `json:"players"`
}

// Store holds the watched players and clubs. Entries are unique per (slug, rarity)
// within a kind. All methods are safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	clubs   []models.WatchEntity
	players []models.WatchEntity
}

func NewStore() *Store {
	return &Store{}
}

// Add inserts e, filling the display name from the slug when empty.
func (s *Store) Add(e models.WatchEntity) (models.WatchEntity, error) {
	e.Slug = strings.TrimSpace(e.Slug)
	if e.Slug == "" {
		return models.WatchEntity{}, fmt.Errorf("%w: slug is required", ErrInvalid)
	}
	rarity, err := models.ParseRarity(string(e.Rarity))
	if err != nil {
		return models.WatchEntity{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	e.Rarity = rarity
	if e.DisplayName == "" {
		e.DisplayName = models.DisplayNameFromSlug(e.Slug)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.listFor(e.Kind)
	if err != nil {
		return models.WatchEntity{}, err
	}
	for _, existing := range *list {
		if existing.Key() == e.Key() {
			return models.WatchEntity{}, fmt.Errorf("%w: %s %s", ErrDuplicate, e.Slug, e.Rarity)
		}
	}

	*list = append(*list, e)
	return e, nil
}

func (s *Store) AddPlayer(slug string, rarity models.Rarity, ceiling models.Price) (models.WatchEntity, error) {
	return s.Add(models.WatchEntity{Kind: models.KindPlayer, Slug: slug, Rarity: rarity, Ceiling: ceiling})
}

func (s *Store) AddClub(slug string, rarity models.Rarity, ceiling models.Price) (models.WatchEntity, error) {
	return s.Add(models.WatchEntity{Kind: models.KindClub, Slug: slug, Rarity: rarity, Ceiling: ceiling})
}

// Remove deletes every entry of the kind with this slug, whatever its rarity,
// and returns how many were removed.
func (s *Store) Remove(kind models.Kind, slug string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.listFor(kind)
	if err != nil {
		return 0
	}

	kept := (*list)[:0]
	removed := 0
	for _, e := range *list {
		if e.Slug == slug {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	*list = kept
	return removed
}

// SetCeiling updates the ceiling of the first entry with this slug. An unknown
// price clears the ceiling.
func (s *Store) SetCeiling(kind models.Kind, slug string, ceiling models.Price) (models.WatchEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.listFor(kind)
	if err != nil {
		return models.WatchEntity{}, err
	}
	for i := range *list {
		if (*list)[i].Slug == slug {
			(*list)[i].Ceiling = ceiling
			return (*list)[i], nil
		}
	}
	return models.WatchEntity{}, fmt.Errorf("%w: %s %s", ErrNotFound, kind, slug)
}

func (s *Store) List() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Clubs:   append([]models.WatchEntity{}, s.clubs...),
		Players: append([]models.WatchEntity{}, s.players...),
	}
}

func (s *Store) Players() []models.WatchEntity {
	return s.List().Players
}

func (s *Store) Clubs() []models.WatchEntity {
	return s.List().Clubs
}

// Find returns the first entry of the kind with this slug.
func (s *Store) Find(kind models.Kind, slug string) (models.WatchEntity, bool) {
	return s.FindKey(kind, models.Key{Slug: slug})
}

// FindKey matches on slug, and on rarity when the key carries one.
func (s *Store) FindKey(kind models.Kind, key models.Key) (models.WatchEntity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, err := s.listFor(kind)
	if err != nil {
		return models.WatchEntity{}, false
	}
	for _, e := range *list {
		if e.Slug == key.Slug && (key.Rarity == "" || e.Rarity == key.Rarity) {
			return e, true
		}
	}
	return models.WatchEntity{}, false
}

func (s *Store) Len() (clubs, players int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clubs), len(s.players)
}

// Suggest returns the watched slug of the kind closest to slug, if any is close enough.
func (s *Store) Suggest(kind models.Kind, slug string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, err := s.listFor(kind)
	if err != nil {
		return "", false
	}

	best, bestScore := "", 0.0
	for _, e := range *list {
		score := matchr.JaroWinkler(slug, e.Slug, false)
		if score > bestScore {
			best, bestScore = e.Slug, score
		}
	}
	if bestScore < minSuggestScore || best == slug {
		return "", false
	}
	return best, true
}

func (s *Store) listFor(kind models.Kind) (*[]models.WatchEntity, error) {
	switch kind {
	case models.KindPlayer:
		return &s.players, nil
	case models.KindClub:
		return &s.clubs, nil
	}
	return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalid, kind)
}
