package models

import (
	"sort"
	"time"
)

// Listing is one card offered for sale, as observed at scan time.
type Listing struct {
	ItemID      string `json:"cardSlug"`
	Price       Price  `json:"price"`
	URL         string `json:"url"`
	SubjectName string `json:"playerName,omitempty"`
}

// SeenID is the ledger identity of a listing. Player and club scans use separate namespaces.
func SeenID(kind Kind, itemID string) string {
	return string(kind) + "-" + itemID
}

// SortByPrice orders listings ascending by price with unknown prices last. The sort is stable.
func SortByPrice(listings []Listing) {
	sort.SliceStable(listings, func(i, j int) bool {
		return listings[i].Price.Less(listings[j].Price)
	})
}

// PricedOrAll returns the listings with a known price when there is at least one,
// otherwise the input unchanged.
func PricedOrAll(listings []Listing) []Listing {
	var priced []Listing
	for _, l := range listings {
		if l.Price.Known() {
			priced = append(priced, l)
		}
	}
	if len(priced) == 0 {
		return listings
	}
	return priced
}

type PricePoint struct {
	Timestamp    time.Time `json:"timestamp"`
	MinPrice     Price     `json:"minPrice"`
	MedianPrice  Price     `json:"medianPrice"`
	ListingCount int       `json:"listingsCount"`
}

type SaleRecord struct {
	Price  float64   `json:"price"`
	Type   string    `json:"type"`
	Date   time.Time `json:"date"`
	Season string    `json:"season,omitempty"`
	Serial string    `json:"serialNumber,omitempty"`
	Buyer  string    `json:"buyer,omitempty"`
	Seller string    `json:"seller,omitempty"`
}

// Stats are process lifetime counters.
type Stats struct {
	LastScan     *time.Time `json:"lastScan"`
	TotalScans   int64      `json:"totalScans"`
	AlertsSent   int64      `json:"alertsSent"`
	Errors       int64      `json:"errors"`
	SeenListings int64      `json:"seenListings"`
}
