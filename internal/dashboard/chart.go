package dashboard

import (
	"time"

	"github.com/bhavnindersingh/RecipeManager/internal/apperr"
	"github.com/bhavnindersingh/RecipeManager/internal/models"

	"github.com/shopspring/decimal"
)

type Period string

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
)

var defaultCounts = map[Period]int{Daily: 7, Weekly: 8, Monthly: 12}

const maxBuckets = 366

// Window is the chart range: Count buckets of Period, the last one holding
// today. End is exclusive.
type Window struct {
	Period Period
	Count  int
	Start  time.Time
	End    time.Time
}

// NewWindow resolves period and count against now. An empty period means
// daily; count <= 0 takes the period's default.
func NewWindow(period Period, count int, now time.Time) (Window, error) {
	if period == "" {
		period = Daily
	}
	def, ok := defaultCounts[period]
	if !ok {
		return Window{}, apperr.Validation("period must be daily, weekly or monthly")
	}
	if count <= 0 {
		count = def
	}
	if count > maxBuckets {
		return Window{}, apperr.Validation("count must be at most %d", maxBuckets)
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	w := Window{Period: period, Count: count}
	switch period {
	case Weekly:
		// Weeks start on Monday, as date_trunc('week') does.
		monday := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
		w.Start = monday.AddDate(0, 0, -7*(count-1))
		w.End = monday.AddDate(0, 0, 7)
	case Monthly:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		w.Start = first.AddDate(0, -(count - 1), 0)
		w.End = first.AddDate(0, 1, 0)
	default:
		w.Start = today.AddDate(0, 0, -(count - 1))
		w.End = today.AddDate(0, 0, 1)
	}
	return w, nil
}

// Buckets lists every bucket start in the window.
func (w Window) Buckets() []time.Time {
	out := make([]time.Time, 0, w.Count)
	for i := 0; i < w.Count; i++ {
		switch w.Period {
		case Weekly:
			out = append(out, w.Start.AddDate(0, 0, 7*i))
		case Monthly:
			out = append(out, w.Start.AddDate(0, i, 0))
		default:
			out = append(out, w.Start.AddDate(0, 0, i))
		}
	}
	return out
}

// MethodRow is one aggregated (bucket, method) total from the store.
type MethodRow struct {
	Bucket time.Time `gorm:"column:bucket"`
	Method string    `gorm:"column:method"`
	Total  float64   `gorm:"column:total"`
}

type Point struct {
	Label string  `json:"label"`
	Cash  float64 `json:"cash"`
	Card  float64 `json:"card"`
	UPI   float64 `json:"upi"`
	Total float64 `json:"total"`
}

type Totals struct {
	Cash  float64 `json:"cash"`
	Card  float64 `json:"card"`
	UPI   float64 `json:"upi"`
	Total float64 `json:"total"`
}

type Chart struct {
	Period      Period  `json:"period"`
	From        string  `json:"from"`
	To          string  `json:"to"`
	Points      []Point `json:"points"`
	GrandTotals Totals  `json:"grand_totals"`
}

type bucketSums struct {
	cash, card, upi decimal.Decimal
}

// BuildChart folds rows into one point per bucket of w, including empty
// buckets, in date order.
func BuildChart(w Window, rows []MethodRow) Chart {
	sums := make(map[string]*bucketSums)
	for _, r := range rows {
		key := r.Bucket.Format("2006-01-02")
		b, ok := sums[key]
		if !ok {
			b = &bucketSums{}
			sums[key] = b
		}
		amount := decimal.NewFromFloat(r.Total)
		switch models.PaymentMethod(r.Method) {
		case models.MethodCash:
			b.cash = b.cash.Add(amount)
		case models.MethodCard:
			b.card = b.card.Add(amount)
		case models.MethodUPI:
			b.upi = b.upi.Add(amount)
		}
	}

	chart := Chart{
		Period: w.Period,
		From:   w.Start.Format("2006-01-02"),
		To:     w.End.AddDate(0, 0, -1).Format("2006-01-02"),
		Points: make([]Point, 0, w.Count),
	}
	var gCash, gCard, gUPI decimal.Decimal
	for _, start := range w.Buckets() {
		label := start.Format("2006-01-02")
		b := sums[label]
		if b == nil {
			b = &bucketSums{}
		}
		chart.Points = append(chart.Points, Point{
			Label: label,
			Cash:  b.cash.Round(2).InexactFloat64(),
			Card:  b.card.Round(2).InexactFloat64(),
			UPI:   b.upi.Round(2).InexactFloat64(),
			Total: b.cash.Add(b.card).Add(b.upi).Round(2).InexactFloat64(),
		})
		gCash, gCard, gUPI = gCash.Add(b.cash), gCard.Add(b.card), gUPI.Add(b.upi)
	}
	chart.GrandTotals = Totals{
		Cash:  gCash.Round(2).InexactFloat64(),
		Card:  gCard.Round(2).InexactFloat64(),
		UPI:   gUPI.Round(2).InexactFloat64(),
		Total: gCash.Add(gCard).Add(gUPI).Round(2).InexactFloat64(),
	}
	return chart
}
