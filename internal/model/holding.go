package model

import (
	"math"
	"strings"
)

// PortfolioHolding is a user-supplied position.
type PortfolioHolding struct {
	Ticker   string  `json:"ticker"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

// Value returns quantity times price.
func (h PortfolioHolding) Value() float64 {
	return h.Quantity * h.Price
}

// Valid reports whether quantity and price are finite and positive and the
// ticker is set.
func (h PortfolioHolding) Valid() bool {
	if strings.TrimSpace(h.Ticker) == "" {
		return false
	}
	for _, v := range []float64{h.Quantity, h.Price} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return false
		}
	}
	return true
}
