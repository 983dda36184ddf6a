package export

import (
	"github.com/bhavnindersingh/RecipeManager/internal/inventory"
	"github.com/bhavnindersingh/RecipeManager/internal/models"

	"github.com/shopspring/decimal"
)

var orderTypeLabels = map[models.OrderType]string{
	models.OrderTypeDineIn:   "Dine-In",
	models.OrderTypeTakeaway: "Takeaway",
	models.OrderTypeSwiggy:   "Swiggy",
	models.OrderTypeZomato:   "Zomato",
}

var stockStatusLabels = map[string]string{
	inventory.StatusOK:  "OK",
	inventory.StatusLow: "Low Stock",
	inventory.StatusOut: "Out of Stock",
}

func money(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func OrdersSheet(orders []models.Order) Sheet {
	s := Sheet{
		Name: "Orders",
		Columns: []Column{
			{"Order #", 20}, {"Date", 20}, {"Type", 12}, {"Customer", 20},
			{"Phone", 15}, {"Items", 8}, {"Amount (₹)", 12}, {"Payment Status", 15},
			{"Payment Method", 15}, {"Status", 12}, {"Table", 10},
			{"Platform Order ID", 20}, {"Notes", 30},
		},
	}
	for _, o := range orders {
		typ, ok := orderTypeLabels[o.OrderType]
		if !ok {
			typ = string(o.OrderType)
		}
		method := "-"
		if len(o.Payments) > 0 {
			method = string(o.Payments[0].PaymentMethod)
		}
		table := "-"
		if o.Table != nil {
			table = o.Table.TableNumber
		}
		status := string(o.PaymentStatus)
		if status == "" {
			status = string(models.PaymentUnpaid)
		}
		s.Rows = append(s.Rows, []any{
			o.OrderNumber,
			o.CreatedAt.Local().Format("02 Jan 2006 15:04"),
			typ,
			orDash(o.CustomerName),
			orDash(o.CustomerPhone),
			len(o.Items),
			money(o.TotalAmount),
			status,
			method,
			string(o.Status),
			table,
			orDash(o.DeliveryPlatformOrderID),
			o.Notes,
		})
	}
	return s
}

func IngredientsSheet(ings []models.Ingredient) Sheet {
	s := Sheet{
		Name: "Ingredients",
		Columns: []Column{
			{"Name", 30}, {"Unit", 10}, {"Cost (₹)", 12}, {"Min Stock", 12},
			{"Category", 20}, {"Vendor Name", 20}, {"Vendor Phone", 15},
		},
	}
	for _, ing := range ings {
		s.Rows = append(s.Rows, []any{
			ing.Name, ing.Unit, money(ing.Cost), ing.MinimumStock,
			ing.Category, ing.VendorName, ing.VendorPhone,
		})
	}
	return s
}

func StockSheet(levels []inventory.StockLevel) Sheet {
	s := Sheet{
		Name: "Stock Levels",
		Columns: []Column{
			{"Ingredient", 25}, {"Category", 20}, {"Current Stock", 15}, {"Unit", 8},
			{"Minimum Level", 15}, {"Avg Cost (₹)", 12}, {"Total Value (₹)", 15},
			{"Status", 12}, {"Storage", 15},
		},
	}
	for _, l := range levels {
		s.Rows = append(s.Rows, []any{
			l.Name, l.Category, l.CurrentQuantity, l.Unit,
			l.MinimumQuantity, money(l.UnitCostAvg), money(l.TotalValue()),
			stockStatusLabels[l.Status()], orDash(l.StorageLocation),
		})
	}
	return s
}
