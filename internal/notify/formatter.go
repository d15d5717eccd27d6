package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/maltedev/sorare-alert-bot/internal/models"
)

const (
	ColorAlert  = 0x00FF00
	ColorPlayer = 0x3B82F6
	ColorClub   = 0x7C3AED

	TitleAlert      = "PRICE ALERT!"
	TitleNewListing = "NEW LISTING"

	Footer      = "Sorare Alert Bot"
	Unavailable = "unavailable"
)

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Payload is a sink-agnostic notification.
type Payload struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url,omitempty"`
	ImageURL    string    `json:"image,omitempty"`
	Color       int       `json:"color"`
	Fields      []Field   `json:"fields"`
	Footer      string    `json:"footer"`
	Timestamp   time.Time `json:"timestamp"`

	Alert  bool          `json:"alert"`
	Kind   models.Kind   `json:"kind,omitempty"`
	Slug   string        `json:"slug,omitempty"`
	Rarity models.Rarity `json:"rarity,omitempty"`
	ItemID string        `json:"itemId,omitempty"`
}

// Field returns the value of the named field.
func (p Payload) Field(name string) (string, bool) {
	for _, f := range p.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

const (
	FieldPrice   = "Price (€)"
	FieldRarity  = "Rarity"
	FieldClub    = "Club"
	FieldCeiling = "Your ceiling (€)"
	FieldSavings = "Savings (€)"
)

// Formatter builds notification payloads. It performs no I/O.
type Formatter struct {
	now func() time.Time
}

func NewFormatter() *Formatter {
	return &Formatter{now: time.Now}
}

// FormatListing builds the notification for a newly seen listing. isAlert marks a
// listing that met the entity's ceiling.
func (f *Formatter) FormatListing(l models.Listing, w models.WatchEntity, isAlert bool) Payload {
	p := Payload{
		Title:       TitleNewListing,
		Description: w.DisplayName,
		URL:         l.URL,
		Color:       ColorPlayer,
		Footer:      Footer,
		Timestamp:   f.now(),
		Alert:       isAlert,
		Kind:        w.Kind,
		Slug:        w.Slug,
		Rarity:      w.Rarity,
		ItemID:      l.ItemID,
	}

	if w.Kind == models.KindClub {
		subject := l.SubjectName
		if subject == "" {
			subject = "Card"
		}
		p.Description = fmt.Sprintf("%s - %s", subject, w.DisplayName)
		p.Color = ColorClub
	}

	if isAlert {
		p.Title = TitleAlert
		p.Color = ColorAlert
	}

	p.Fields = append(p.Fields,
		Field{Name: FieldPrice, Value: Money(l.Price), Inline: true},
		Field{Name: FieldRarity, Value: strings.ToUpper(string(w.Rarity)), Inline: true},
	)

	if w.Kind == models.KindClub {
		p.Fields = append(p.Fields, Field{Name: FieldClub, Value: w.DisplayName, Inline: true})
	}

	if ceiling, ok := w.Ceiling.Value(); ok {
		p.Fields = append(p.Fields, Field{Name: FieldCeiling, Value: Money(w.Ceiling), Inline: true})
		if price, ok := l.Price.Value(); ok {
			savings := decimal.NewFromFloat(ceiling).Sub(decimal.NewFromFloat(price))
			p.Fields = append(p.Fields, Field{Name: FieldSavings, Value: savings.StringFixed(2), Inline: true})
		}
	}

	return p
}

// Money formats a price with two decimals, or "unavailable".
func Money(p models.Price) string {
	v, ok := p.Value()
	if !ok {
		return Unavailable
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

// FormatImport reports the outcome of a sales import for one entity.
func (f *Formatter) FormatImport(w models.WatchEntity, imported, skipped int) Payload {
	return Payload{
		Title:       "SALES IMPORT",
		Description: w.DisplayName,
		Color:       ColorPlayer,
		Fields: []Field{
			{Name: "Imported", Value: fmt.Sprintf("%d", imported), Inline: true},
			{Name: "Skipped", Value: fmt.Sprintf("%d", skipped), Inline: true},
			{Name: FieldRarity, Value: strings.ToUpper(string(w.Rarity)), Inline: true},
		},
		Footer:    Footer,
		Timestamp: f.now(),
		Kind:      w.Kind,
		Slug:      w.Slug,
		Rarity:    w.Rarity,
	}
}

// FormatStats renders the process counters and watchlist size.
func (f *Formatter) FormatStats(s models.Stats, clubs, players int) Payload {
	lastScan := "never"
	if s.LastScan != nil {
		lastScan = s.LastScan.UTC().Format("2006-01-02 15:04:05 UTC")
	}

	return Payload{
		Title: "BOT STATS",
		Color: ColorPlayer,
		Fields: []Field{
			{Name: "Clubs", Value: fmt.Sprintf("%d", clubs), Inline: true},
			{Name: "Players", Value: fmt.Sprintf("%d", players), Inline: true},
			{Name: "Scans", Value: fmt.Sprintf("%d", s.TotalScans), Inline: true},
			{Name: "Alerts", Value: fmt.Sprintf("%d", s.AlertsSent), Inline: true},
			{Name: "Errors", Value: fmt.Sprintf("%d", s.Errors), Inline: true},
			{Name: "Seen listings", Value: fmt.Sprintf("%d", s.SeenListings), Inline: true},
			{Name: "Last scan", Value: lastScan},
		},
		Footer:    Footer,
		Timestamp: f.now(),
	}
}
