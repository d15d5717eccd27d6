package chart

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/maltedev/sorare-alert-bot/internal/models"
)

const (
	Endpoint = "https://quickchart.io/chart"

	floorColor = "#F97316"
	salesColor = "#8B5CF6"
	axisColor  = "#888"
	gridColor  = "rgba(255,255,255,0.1)"
)

type point struct {
	X string   `json:"x"`
	Y *float64 `json:"y"`
}

type dataset struct {
	Label           string  `json:"label"`
	Data            []point `json:"data"`
	BorderColor     string  `json:"borderColor"`
	BackgroundColor string  `json:"backgroundColor"`
	Fill            bool    `json:"fill"`
	Tension         float64 `json:"tension,omitempty"`
	PointRadius     int     `json:"pointRadius"`
	ShowLine        *bool   `json:"showLine,omitempty"`
}

type config struct {
	Type    string         `json:"type"`
	Data    map[string]any `json:"data"`
	Options map[string]any `json:"options"`
}

// HistoryURL renders the floor price line and the sales scatter of one entity
// as a QuickChart image URL.
func HistoryURL(title string, points []models.PricePoint, sales []models.SaleRecord, days int) (string, error) {
	floor := make([]point, 0, len(points))
	for _, p := range points {
		pt := point{X: p.Timestamp.UTC().Format(time.RFC3339)}
		if v, ok := p.MinPrice.Value(); ok {
			pt.Y = &v
		}
		floor = append(floor, pt)
	}

	sold := make([]point, 0, len(sales))
	for _, s := range sales {
		price := s.Price
		sold = append(sold, point{X: s.Date.UTC().Format(time.RFC3339), Y: &price})
	}

	noLine := false
	unit := "day"
	if days > 60 {
		unit = "week"
	}

	cfg := config{
		Type: "line",
		Data: map[string]any{
			"datasets": []dataset{
				{
					Label:           "Floor Price (Listings)",
					Data:            floor,
					BorderColor:     floorColor,
					BackgroundColor: "rgba(249, 115, 22, 0.1)",
					Fill:            true,
					Tension:         0.4,
					PointRadius:     2,
				},
				{
					Label:           "Sales",
					Data:            sold,
					BorderColor:     salesColor,
					BackgroundColor: salesColor,
					PointRadius:     6,
					ShowLine:        &noLine,
				},
			},
		},
		Options: map[string]any{
			"plugins": map[string]any{
				"legend": map[string]any{"labels": map[string]any{"color": "#fff"}},
				"title": map[string]any{
					"display": true,
					"text":    fmt.Sprintf("%s (%dd)", title, days),
					"color":   "#fff",
				},
			},
			"scales": map[string]any{
				"x": map[string]any{
					"type":  "time",
					"time":  map[string]any{"unit": unit},
					"ticks": map[string]any{"color": axisColor},
					"grid":  map[string]any{"color": gridColor},
				},
				"y": map[string]any{
					"ticks": map[string]any{"color": axisColor},
					"grid":  map[string]any{"color": gridColor},
				},
			},
		},
	}

	body, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode chart: %w", err)
	}

	q := url.Values{}
	q.Set("c", string(body))
	q.Set("backgroundColor", "#1a1a2e")
	q.Set("width", "600")
	q.Set("height", "400")
	return Endpoint + "?" + strings.ReplaceAll(q.Encode(), "+", "%20"), nil
}
