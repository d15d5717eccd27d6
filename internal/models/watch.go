package models

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

var ErrUnknownRarity = errors.New("unknown rarity")

type Rarity string

const (
	RarityLimited   Rarity = "limited"
	RarityRare      Rarity = "rare"
	RaritySuperRare Rarity = "super_rare"
	RarityUnique    Rarity = "unique"
)

var Rarities = []Rarity{RarityLimited, RarityRare, RaritySuperRare, RarityUnique}

// ParseRarity accepts the lower-case marketplace spelling, case-insensitively.
// "superrare" and "super-rare" are accepted as aliases of super_rare.
func ParseRarity(s string) (Rarity, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "superrare", "super-rare":
		v = string(RaritySuperRare)
	}
	for _, r := range Rarities {
		if string(r) == v {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRarity, s)
}

// GraphQLEnum returns the rarity as spelled by the marketplace API enum (SUPER_RARE).
func (r Rarity) GraphQLEnum() string {
	return strings.ToUpper(string(r))
}

type Kind string

const (
	KindPlayer Kind = "player"
	KindClub   Kind = "club"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindPlayer:
		return KindPlayer, nil
	case KindClub:
		return KindClub, nil
	}
	return "", fmt.Errorf("unknown kind %q", s)
}

// Key identifies a watched entity within its kind.
type Key struct {
	Slug   string
	Rarity Rarity
}

func (k Key) String() string {
	return k.Slug + "_" + string(k.Rarity)
}

type WatchEntity struct {
	Kind        Kind   `json:"kind"`
	Slug        string `json:"slug"`
	DisplayName string `json:"name"`
	Rarity      Rarity `json:"rarity"`
	Ceiling     Price  `json:"maxPrice"`
}

func (w WatchEntity) Key() Key {
	return Key{Slug: w.Slug, Rarity: w.Rarity}
}

// Eligible reports whether a listing at price p should produce a notification.
// Without a ceiling every new listing qualifies; with one the price must be known
// and not above it.
func (w WatchEntity) Eligible(p Price) bool {
	ceiling, ok := w.Ceiling.Value()
	if !ok {
		return true
	}
	price, ok := p.Value()
	return ok && price <= ceiling
}

// DisplayNameFromSlug capitalizes each hyphen-separated word: "brice-samba" -> "Brice Samba".
func DisplayNameFromSlug(slug string) string {
	parts := strings.Split(slug, "-")
	words := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		words = append(words, capitalize(p))
	}
	return strings.Join(words, " ")
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
