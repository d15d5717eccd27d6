package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/sorare-alert-bot/internal/models"
)

type Mode int

const (
	ModePlayer Mode = iota
	ModeClub
)

const (
	cardSelector    = `a[href*="/cards/"]`
	subjectSelector = `[class*="player"], [class*="Player"], [class*="name"], [class*="Name"]`
	ancestorDepth   = 5

	// bounds for the page-wide price sweep
	sweepMin = 10.0
	sweepMax = 50000.0
)

// ListingExtractor turns a rendered market page into listings.
type ListingExtractor struct {
	baseURL     string
	jsonPattern *regexp.Regexp
}

func NewListingExtractor(baseURL string) *ListingExtractor {
	return &ListingExtractor{
		baseURL:     strings.TrimRight(baseURL, "/"),
		jsonPattern: regexp.MustCompile(`"eur"\s*:\s*"?(\d+(?:\.\d+)?)`),
	}
}

// Extract returns one listing per distinct card identifier in document order.
// The first occurrence of an identifier wins. Cards without a readable price keep
// an unknown price.
func (e *ListingExtractor) Extract(html string, mode Mode) ([]models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	seen := make(map[string]bool)
	var listings []models.Listing

	doc.Find(cardSelector).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		id := CardID(href)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true

		listing := models.Listing{
			ItemID: id,
			Price:  e.nearestPrice(s),
			URL:    e.absoluteURL(href),
		}
		if mode == ModeClub {
			listing.SubjectName = subjectName(s, id)
		}
		listings = append(listings, listing)
	})

	if len(listings) == 0 || anyPriced(listings) {
		return listings, nil
	}

	// Layouts where the price sits outside the card anchor.
	if prices := sweepPrices(doc.Find("body").Text()); len(prices) > 0 {
		assignByIndex(listings, prices)
		return listings, nil
	}

	assignByIndex(listings, e.jsonPrices(html))
	return listings, nil
}

// CardID returns the path segment after "/cards/" without query or fragment.
func CardID(href string) string {
	idx := strings.Index(href, "/cards/")
	if idx < 0 {
		return ""
	}
	id := href[idx+len("/cards/"):]
	if cut := strings.IndexAny(id, "?#"); cut >= 0 {
		id = id[:cut]
	}
	return strings.Trim(id, "/")
}

// SubjectNameFromID derives a display name from a card identifier by dropping the
// trailing serial, rarity and season segments: "brice-samba-2023-super_rare-12" -> "Brice Samba".
func SubjectNameFromID(id string) string {
	parts := strings.Split(id, "-")
	end := len(parts)
	for end > 1 && isSuffixSegment(parts[end-1]) {
		end--
	}
	if end == len(parts) && end > 1 {
		end--
	}
	return models.DisplayNameFromSlug(strings.Join(parts[:end], "-"))
}

func isSuffixSegment(s string) bool {
	if _, err := strconv.Atoi(s); err == nil {
		return true
	}
	_, err := models.ParseRarity(s)
	return err == nil
}

// nearestPrice searches the card anchor and its ancestors, stopping at the first
// ancestor that also contains another card.
func (e *ListingExtractor) nearestPrice(s *goquery.Selection) models.Price {
	node := s
	for depth := 0; depth <= ancestorDepth && node.Length() > 0; depth++ {
		if depth > 0 && distinctCards(node) > 1 {
			break
		}
		if p := ParseCurrencyPrice(node.Text()); p.Known() {
			return p
		}
		node = node.Parent()
	}
	return models.UnknownPrice()
}

func distinctCards(node *goquery.Selection) int {
	ids := make(map[string]struct{})
	node.Find(cardSelector).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if id := CardID(href); id != "" {
			ids[id] = struct{}{}
		}
	})
	return len(ids)
}

func (e *ListingExtractor) absoluteURL(href string) string {
	if strings.HasPrefix(href, "/") {
		return e.baseURL + href
	}
	return href
}

func (e *ListingExtractor) jsonPrices(html string) []models.Price {
	var prices []models.Price
	for _, m := range e.jsonPattern.FindAllStringSubmatch(html, -1) {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if p := models.NewPrice(v); p.Known() {
			prices = append(prices, p)
		}
	}
	return prices
}

func subjectName(s *goquery.Selection, id string) string {
	if name := strings.TrimSpace(s.Find(subjectSelector).First().Text()); name != "" {
		return name
	}
	return SubjectNameFromID(id)
}

// sweepPrices collects distinct plausible euro amounts from free text in order of appearance.
func sweepPrices(text string) []models.Price {
	seen := make(map[float64]bool)
	var prices []models.Price
	for _, pattern := range currencyPatterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			v, ok := ParseAmount(m[1])
			if !ok || v <= sweepMin || v >= sweepMax || seen[v] {
				continue
			}
			seen[v] = true
			prices = append(prices, models.NewPrice(v))
		}
		if len(prices) > 0 {
			break
		}
	}
	return prices
}

func assignByIndex(listings []models.Listing, prices []models.Price) {
	for i := range listings {
		if i >= len(prices) {
			return
		}
		listings[i].Price = prices[i]
	}
}

func anyPriced(listings []models.Listing) bool {
	for _, l := range listings {
		if l.Price.Known() {
			return true
		}
	}
	return false
}
