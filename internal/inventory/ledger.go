package inventory

import (
	"github.com/bhavnindersingh/RecipeManager/internal/apperr"
	"github.com/bhavnindersingh/RecipeManager/internal/models"
)

type Direction string

const (
	DirectionAdd      Direction = "add"
	DirectionSubtract Direction = "subtract"
)

// EffectiveDelta turns a user-entered quantity into the signed change a
// transaction applies to the balance. Quantities are always entered as
// positive numbers; the type (and for adjustments, the direction) gives
// the sign.
func EffectiveDelta(typ models.StockTransactionType, quantity float64, dir Direction) (float64, error) {
	if !(quantity > 0) {
		return 0, apperr.Validation("Quantity must be greater than zero")
	}
	switch typ {
	case models.StockPurchase:
		return quantity, nil
	case models.StockWastage:
		return -quantity, nil
	case models.StockAdjustment:
		switch dir {
		case DirectionAdd:
			return quantity, nil
		case DirectionSubtract:
			return -quantity, nil
		}
		return 0, apperr.Validation("Adjustment direction must be add or subtract")
	}
	return 0, apperr.Validation("Unknown transaction type %q", typ)
}
