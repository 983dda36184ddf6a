package costing

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestCalculateBasicRecipe(t *testing.T) {
	m := Calculate(Input{
		Ingredients:  []Line{{Quantity: 2, CostPerUnit: 50}, {Quantity: 1, CostPerUnit: 30}},
		Overhead:     10,
		SellingPrice: 600,
	}, now).Rounded()

	assert.Equal(t, 130.0, m.IngredientsCost)
	assert.Equal(t, 143.0, m.TotalCost)
	assert.Equal(t, 4.2, m.MarkupFactor)
	assert.Equal(t, 600.0, m.AvgSalePrice)
	assert.Equal(t, 76.17, m.ProfitMargin)
	assert.Equal(t, 457.0, m.ProfitPerUnit)
	assert.Equal(t, 0.0, m.SalesVelocity)
	assert.Equal(t, 0.0, m.PriceVariance)
}

func TestCalculateZeroCost(t *testing.T) {
	m := Calculate(Input{
		Ingredients:  []Line{{Quantity: 1, CostPerUnit: 0}},
		SellingPrice: 100,
	}, now)

	assert.Zero(t, m.TotalCost)
	assert.Zero(t, m.MarkupFactor)
	assert.Equal(t, 100.0, m.ProfitMargin)
}

func TestCalculateZeroPrice(t *testing.T) {
	m := Calculate(Input{Ingredients: []Line{{Quantity: 1, CostPerUnit: 10}}}, now)

	assert.Zero(t, m.MarkupFactor)
	assert.Zero(t, m.ProfitMargin)
	assert.Equal(t, -10.0, m.ProfitPerUnit)
}

func TestCalculateCapsMarkup(t *testing.T) {
	m := Calculate(Input{
		Ingredients:  []Line{{Quantity: 1, CostPerUnit: 0.01}},
		SellingPrice: 500,
	}, now)

	assert.Equal(t, MaxRatio, m.MarkupFactor)
	assert.LessOrEqual(t, m.ProfitMargin, MaxRatio)
}

func TestCalculateUsesSalesHistory(t *testing.T) {
	first := now.Add(-9*24*time.Hour - time.Hour)
	last := now.Add(-time.Hour)
	m := Calculate(Input{
		Ingredients:  []Line{{Quantity: 1, CostPerUnit: 100}},
		SellingPrice: 300,
		UnitsSold:    50,
		AvgSalePrice: 280,
		FirstSoldAt:  &first,
		LastSoldAt:   &last,
	}, now).Rounded()

	assert.Equal(t, 280.0, m.AvgSalePrice)
	assert.Equal(t, 180.0, m.ProfitPerUnit)
	assert.Equal(t, 9000.0, m.TotalProfitEarned)
	assert.Equal(t, -20.0, m.PriceVariance)
	// 9 days and 1 hour rounds up to 10 days.
	assert.Equal(t, 5.0, m.SalesVelocity)
}

func TestCalculateVelocityNeedsLastSale(t *testing.T) {
	first := now.Add(-48 * time.Hour)
	m := Calculate(Input{
		Ingredients: []Line{{Quantity: 1, CostPerUnit: 1}},
		UnitsSold:   10,
		FirstSoldAt: &first,
	}, now)
	assert.Zero(t, m.SalesVelocity)
}

func TestCalculateVelocitySameDay(t *testing.T) {
	last := now.Add(-time.Minute)
	m := Calculate(Input{
		Ingredients: []Line{{Quantity: 1, CostPerUnit: 1}},
		UnitsSold:   12,
		LastSoldAt:  &last,
	}, now)
	assert.Equal(t, 12.0, m.SalesVelocity)
}

func TestCalculateIgnoresNonFiniteInputs(t *testing.T) {
	m := Calculate(Input{
		Ingredients:  []Line{{Quantity: math.NaN(), CostPerUnit: 5}, {Quantity: 1, CostPerUnit: math.Inf(1)}},
		Overhead:     math.NaN(),
		SellingPrice: 10,
	}, now)

	assert.Zero(t, m.TotalCost)
	assert.False(t, math.IsNaN(m.ProfitMargin))
}

func TestFloat(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"nil", nil, 0},
		{"float", 2.5, 2.5},
		{"int", 3, 3},
		{"numeric string", " 4.75 ", 4.75},
		{"garbage string", "abc", 0},
		{"nan", math.NaN(), 0},
		{"inf", math.Inf(-1), 0},
		{"decimal", decimal.NewFromFloat(1.25), 1.25},
		{"bool", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Float(tt.in))
		})
	}
}

func TestClassify(t *testing.T) {
	h := Classify(Metrics{MarkupFactor: 4.2, ProfitMargin: 55, SalesVelocity: 21})
	assert.Equal(t, Health{Markup: LevelGood, Margin: LevelLow, Velocity: LevelHot}, h)

	h = Classify(Metrics{MarkupFactor: 2, ProfitMargin: 70, SalesVelocity: 5})
	assert.Equal(t, Health{Markup: LevelLow, Margin: LevelGood, Velocity: LevelCold}, h)

	assert.Equal(t, LevelWarm, Classify(Metrics{SalesVelocity: 6}).Velocity)
}
