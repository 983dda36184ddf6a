package payments

import (
	"strconv"

	"github.com/bhavnindersingh/RecipeManager/internal/models"

	"github.com/shopspring/decimal"
)

// Tolerance is how far a split total may drift from the balance due.
var Tolerance = decimal.RequireFromString("0.01")

// DeriveStatus maps paid and total amounts to a payment status. Amounts are
// compared as decimals so float noise from summing payments cannot leave a
// settled order partial.
func DeriveStatus(paid, total float64) models.PaymentStatus {
	p := money(paid)
	switch {
	case !p.IsPositive():
		return models.PaymentUnpaid
	case p.GreaterThanOrEqual(money(total)):
		return models.PaymentPaid
	default:
		return models.PaymentPartial
	}
}

func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// Remaining is the balance still due on an order, never negative.
func Remaining(total, paid float64) float64 {
	r := money(total).Sub(money(paid))
	if r.IsNegative() {
		return 0
	}
	return r.InexactFloat64()
}

// Change is what a cashier hands back for cash received against amount.
func Change(amount, received float64) float64 {
	c := money(received).Sub(money(amount))
	if c.IsNegative() {
		return 0
	}
	return c.InexactFloat64()
}

type SplitShare struct {
	Amount        float64              `json:"amount"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	PaidByName    string               `json:"paid_by_name"`
}

// EqualSplit divides total between people, putting any rounding remainder
// on the last share.
func EqualSplit(total float64, people int) []SplitShare {
	if people <= 0 {
		return nil
	}
	t := money(total)
	each := t.Div(decimal.NewFromInt(int64(people))).RoundDown(2)
	out := make([]SplitShare, people)
	for i := range out {
		out[i] = SplitShare{Amount: each.InexactFloat64(), PaymentMethod: models.MethodCash, PaidByName: personName(i)}
	}
	last := t.Sub(each.Mul(decimal.NewFromInt(int64(people - 1))))
	out[people-1].Amount = last.InexactFloat64()
	return out
}

func personName(i int) string {
	return "Person " + strconv.Itoa(i+1)
}

type AmountCheck struct {
	Valid       bool    `json:"is_valid"`
	Remaining   float64 `json:"remaining"`
	Payment     float64 `json:"payment"`
	WillOverpay bool    `json:"will_overpay"`
}

// CheckAmount reports whether amount can be charged against the balance.
func CheckAmount(amount, total, paid float64) AmountCheck {
	rem := Remaining(total, paid)
	a := money(amount)
	limit := money(rem).Add(Tolerance)
	return AmountCheck{
		Valid:       a.IsPositive() && a.LessThanOrEqual(limit),
		Remaining:   rem,
		Payment:     a.InexactFloat64(),
		WillOverpay: a.GreaterThan(limit),
	}
}
