package orders

import (
	"github.com/bhavnindersingh/RecipeManager/internal/apperr"
	"github.com/bhavnindersingh/RecipeManager/internal/models"
)

var orderRank = map[models.OrderStatus]int{
	models.OrderPending: 0,
	models.OrderCooking: 1,
	models.OrderReady:   2,
	models.OrderServed:  3,
}

func isTerminal(s models.OrderStatus) bool {
	return s == models.OrderServed || s == models.OrderCancelled
}

// CanTransition checks an order status move. Orders only move forward
// (skipping is allowed), cancellation is possible until the order is
// served, and served or cancelled orders never change again.
func CanTransition(from, to models.OrderStatus) error {
	if _, ok := orderRank[to]; !ok && to != models.OrderCancelled {
		return apperr.Validation("Unknown order status %q", to)
	}
	if isTerminal(from) {
		return apperr.Conflict("Order is already %s", from)
	}
	if to == models.OrderCancelled {
		return nil
	}
	if orderRank[to] <= orderRank[from] {
		return apperr.Conflict("Order cannot move from %s to %s", from, to)
	}
	return nil
}

// Station is the screen an item status change comes from.
type Station string

const (
	StationKitchen Station = "kitchen"
	StationFloor   Station = "floor"
)

// CanSetItemStatus enforces the split between kitchen and floor: the
// kitchen steps items pending → preparing → ready and stops there, and only
// the floor marks a ready item served.
func CanSetItemStatus(st Station, from, to models.ItemStatus) error {
	switch st {
	case StationKitchen:
		switch {
		case from == models.ItemPending && to == models.ItemPreparing,
			from == models.ItemPending && to == models.ItemReady,
			from == models.ItemPreparing && to == models.ItemReady:
			return nil
		case to == models.ItemServed:
			return apperr.Forbidden("Items are marked served from the server screen", "")
		}
		return apperr.Conflict("Item cannot move from %s to %s", from, to)
	case StationFloor:
		if to != models.ItemServed {
			return apperr.Forbidden("The server screen can only mark items served", "")
		}
		if from != models.ItemReady {
			return apperr.Conflict("Only ready items can be served")
		}
		return nil
	}
	return apperr.Validation("Unknown station %q", st)
}

// NextKitchenStatus is the status a kitchen tap moves an item to, or false
// when the kitchen has nothing more to do with it.
func NextKitchenStatus(cur models.ItemStatus) (models.ItemStatus, bool) {
	switch cur {
	case models.ItemPending:
		return models.ItemPreparing, true
	case models.ItemPreparing:
		return models.ItemReady, true
	}
	return "", false
}

// Servable reports whether every item is ready or served. An order with no
// items is never servable.
func Servable(items []models.OrderItem) bool {
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		if it.ItemStatus != models.ItemReady && it.ItemStatus != models.ItemServed {
			return false
		}
	}
	return true
}
