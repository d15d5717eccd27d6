package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Price is a euro amount that is either known or unknown. The zero value is unknown.
type Price struct {
	amount float64
	known  bool
}

// NewPrice returns a known price, or an unknown one when v is not a finite positive number.
func NewPrice(v float64) Price {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return Price{}
	}
	return Price{amount: v, known: true}
}

func UnknownPrice() Price {
	return Price{}
}

func (p Price) Known() bool {
	return p.known
}

// Value returns the amount and whether it is known.
func (p Price) Value() (float64, bool) {
	return p.amount, p.known
}

// Amount returns the amount, or 0 when the price is unknown.
func (p Price) Amount() float64 {
	if !p.known {
		return 0
	}
	return p.amount
}

// Less orders known prices ascending, unknown prices last.
func (p Price) Less(o Price) bool {
	switch {
	case p.known && o.known:
		return p.amount < o.amount
	case p.known:
		return true
	default:
		return false
	}
}

func (p Price) String() string {
	if !p.known {
		return "unknown"
	}
	return strconv.FormatFloat(p.amount, 'f', 2, 64)
}

func (p Price) MarshalJSON() ([]byte, error) {
	if !p.known {
		return []byte("null"), nil
	}
	return json.Marshal(p.amount)
}

func (p *Price) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = Price{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid price %s: %w", data, err)
	}
	*p = NewPrice(v)
	return nil
}
