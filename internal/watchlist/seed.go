package watchlist

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"

	"github.com/maltedev/sorare-alert-bot/internal/models"
)

type SeedEntry struct {
	Slug     string   `json:"slug"`
	Name     string   `json:"name"`
	Rarity   string   `json:"rarity"`
	MaxPrice *float64 `json:"maxPrice"`
}

// Seed is the initial watchlist loaded at startup.
type Seed struct {
	Clubs   []SeedEntry `json:"clubs"`
	Players []SeedEntry `json:"players"`
}

// LoadSeed reads <name>.<ext> and merges <name>.local.<ext> over it when present.
// Lists in the local file replace those of the base file.
func LoadSeed(path string) (Seed, error) {
	var seed Seed
	found := false

	base, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return seed, err
	}
	if len(base) > 0 {
		if err := json5.Unmarshal(base, &seed); err != nil {
			return seed, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		found = true
	}

	localPath := localVariant(path)
	local, err := os.ReadFile(localPath)
	if err != nil && !os.IsNotExist(err) {
		return seed, err
	}
	if len(local) > 0 {
		var override Seed
		if err := json5.Unmarshal(local, &override); err != nil {
			return seed, fmt.Errorf("failed to parse %s: %w", localPath, err)
		}
		if err := mergo.Merge(&seed, override, mergo.WithOverride); err != nil {
			return seed, err
		}
		slog.Info("merging watchlist with local overrides", "local", localPath)
		found = true
	}

	if !found {
		return seed, os.ErrNotExist
	}
	return seed, nil
}

func localVariant(path string) string {
	dir, file := filepath.Split(path)
	ext := filepath.Ext(file)
	return filepath.Join(dir, strings.TrimSuffix(file, ext)+".local"+ext)
}

// Apply adds every seed entry. Duplicates are skipped; invalid entries are reported together.
func (s *Store) Apply(seed Seed) (int, error) {
	var errs []error
	added := 0

	add := func(kind models.Kind, entries []SeedEntry) {
		for _, entry := range entries {
			ceiling := models.UnknownPrice()
			if entry.MaxPrice != nil {
				ceiling = models.NewPrice(*entry.MaxPrice)
			}
			_, err := s.Add(models.WatchEntity{
				Kind:        kind,
				Slug:        entry.Slug,
				DisplayName: entry.Name,
				Rarity:      models.Rarity(entry.Rarity),
				Ceiling:     ceiling,
			})
			switch {
			case errors.Is(err, ErrDuplicate):
			case err != nil:
				errs = append(errs, fmt.Errorf("%s %q: %w", kind, entry.Slug, err))
			default:
				added++
			}
		}
	}

	add(models.KindClub, seed.Clubs)
	add(models.KindPlayer, seed.Players)

	return added, errors.Join(errs...)
}
