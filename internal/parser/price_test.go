package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
		known    bool
	}{
		{"french thousands and decimal comma", "1 234,56 €", 1234.56, true},
		{"non-breaking space thousands", "1\u00a0234,56\u00a0€", 1234.56, true},
		{"english thousands", "1,234.56 €", 1234.56, true},
		{"dot thousands", "1.234,56 €", 1234.56, true},
		{"leading euro sign", "€12.5", 12.5, true},
		{"leading euro sign with space", "€ 45", 45, true},
		{"EUR suffix", "12,50 EUR", 12.5, true},
		{"eur suffix lower case", "99 eur", 99, true},
		{"embedded in text", "Prix actuel 30,00 € seulement", 30, true},
		{"bare number", "42", 42, true},
		{"bare decimal comma", "49,99", 49.99, true},
		{"zero", "0 €", 0, false},
		{"no digits", "N/A", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParsePrice(tt.input)
			v, ok := p.Value()
			assert.Equal(t, tt.known, ok)
			if tt.known {
				assert.InDelta(t, tt.expected, v, 0.0001)
			}
		})
	}
}

func TestParseCurrencyPriceRequiresMarker(t *testing.T) {
	assert.False(t, ParseCurrencyPrice("Serial 12/50").Known())
	assert.True(t, ParseCurrencyPrice("12/50 · 30 €").Known())
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in       string
		expected float64
	}{
		{"1,234", 1234},
		{"12,5", 12.5},
		{"1.500", 1500},
		{"1.5", 1.5},
		{"1 000 000", 1000000},
		{"1.000.000", 1000000},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, ok := ParseAmount(tt.in)
			assert.True(t, ok)
			assert.InDelta(t, tt.expected, v, 0.0001)
		})
	}

	_, ok := ParseAmount("-5")
	assert.False(t, ok)
}
