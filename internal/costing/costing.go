// Package costing derives per-recipe cost, margin and sales metrics.
// Calculate is pure and never fails; callers validate that a recipe has at
// least one ingredient before asking for its metrics.
package costing

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// MaxRatio caps markup and margin so an almost-free recipe cannot
	// produce an unbounded number.
	MaxRatio = 999.99

	DefaultOverhead = 10.0
)

type Line struct {
	Quantity    float64
	CostPerUnit float64
}

type Input struct {
	Ingredients  []Line
	Overhead     float64 // percent
	SellingPrice float64

	// Sales history from POS order items; zero values mean no history.
	UnitsSold    float64
	AvgSalePrice float64
	FirstSoldAt  *time.Time
	LastSoldAt   *time.Time
}

type Metrics struct {
	IngredientsCost   float64 `json:"ingredients_cost"`
	TotalCost         float64 `json:"total_cost"`
	MarkupFactor      float64 `json:"markup_factor"`
	AvgSalePrice      float64 `json:"avg_sale_price"`
	ProfitMargin      float64 `json:"profit_margin"`
	ProfitPerUnit     float64 `json:"profit_per_unit"`
	TotalProfitEarned float64 `json:"total_profit_earned"`
	SalesVelocity     float64 `json:"sales_velocity"` // units per day
	PriceVariance     float64 `json:"price_variance"`
}

// Calculate computes the metrics at full precision at time now.
func Calculate(in Input, now time.Time) Metrics {
	var m Metrics
	for _, l := range in.Ingredients {
		m.IngredientsCost += finite(l.Quantity) * finite(l.CostPerUnit)
	}
	m.TotalCost = m.IngredientsCost * (1 + finite(in.Overhead)/100)

	selling := finite(in.SellingPrice)
	if m.TotalCost > 0 {
		m.MarkupFactor = math.Min(selling/m.TotalCost, MaxRatio)
	}

	m.AvgSalePrice = selling
	if avg := finite(in.AvgSalePrice); avg > 0 {
		m.AvgSalePrice = avg
	}
	if m.AvgSalePrice != 0 {
		m.ProfitMargin = math.Min((m.AvgSalePrice-m.TotalCost)/m.AvgSalePrice*100, MaxRatio)
	}
	m.ProfitPerUnit = m.AvgSalePrice - m.TotalCost

	units := finite(in.UnitsSold)
	m.TotalProfitEarned = m.ProfitPerUnit * units
	m.PriceVariance = m.AvgSalePrice - selling

	if in.LastSoldAt != nil && units > 0 {
		since := *in.LastSoldAt
		if in.FirstSoldAt != nil {
			since = *in.FirstSoldAt
		}
		days := math.Max(1, math.Ceil(now.Sub(since).Hours()/24))
		m.SalesVelocity = units / days
	}
	return m
}

// Rounded returns m with money and percentages at 2 decimals and velocity at 1.
func (m Metrics) Rounded() Metrics {
	return Metrics{
		IngredientsCost:   Round(m.IngredientsCost, 2),
		TotalCost:         Round(m.TotalCost, 2),
		MarkupFactor:      Round(m.MarkupFactor, 2),
		AvgSalePrice:      Round(m.AvgSalePrice, 2),
		ProfitMargin:      Round(m.ProfitMargin, 2),
		ProfitPerUnit:     Round(m.ProfitPerUnit, 2),
		TotalProfitEarned: Round(m.TotalProfitEarned, 2),
		SalesVelocity:     Round(m.SalesVelocity, 1),
		PriceVariance:     Round(m.PriceVariance, 2),
	}
}

func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(finite(v)).Round(places).InexactFloat64()
}

// Float reads a loosely typed numeric value, e.g. a field of a decoded JSON
// document or a spreadsheet cell. Anything unusable becomes 0.
func Float(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case uint:
		return float64(n)
	case uint64:
		return float64(n)
	case decimal.Decimal:
		return finite(n.InexactFloat64())
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return finite(f)
	case *float64:
		if n == nil {
			return 0
		}
		return finite(*n)
	}
	return 0
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
