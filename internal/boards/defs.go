package boards

import (
	"context"

	"github.com/bhavnindersingh/RecipeManager/internal/auth"
	"github.com/bhavnindersingh/RecipeManager/internal/orders"
	"github.com/bhavnindersingh/RecipeManager/internal/realtime"
	"github.com/bhavnindersingh/RecipeManager/internal/tables"
)

const (
	Kitchen = "kitchen"
	Server  = "server"
	Tables  = "tables"
	Orders  = "orders"
)

// KitchenDef is the kitchen queue: open orders with items, oldest first.
func KitchenDef(svc *orders.Service) Definition {
	return Definition{
		Name:    Kitchen,
		Screens: []auth.Screen{auth.ScreenKDS},
		Watches: []Watch{
			{Table: realtime.TableOrders, Fields: []string{"status"}},
			{Table: realtime.TableOrderItems, Fields: []string{"item_status", "quantity", "notes"}},
		},
		Fetch: func(ctx context.Context) (any, error) { return svc.KitchenOrders(ctx) },
	}
}

// ServerDef lists items the kitchen has marked ready.
func ServerDef(svc *orders.Service) Definition {
	return Definition{
		Name:    Server,
		Screens: []auth.Screen{auth.ScreenServer},
		Watches: []Watch{
			{Table: realtime.TableOrderItems, Fields: []string{"item_status"}},
			{Table: realtime.TableOrders, Fields: []string{"status"}},
		},
		Fetch: func(ctx context.Context) (any, error) { return svc.ReadyItems(ctx) },
	}
}

// TablesDef is the floor plan with each table's open order.
func TablesDef(svc *tables.Service) Definition {
	return Definition{
		Name:    Tables,
		Screens: []auth.Screen{auth.ScreenPOS, auth.ScreenTables},
		Watches: []Watch{
			{Table: realtime.TableTables, Fields: []string{"status", "is_active", "table_number", "capacity", "section"}},
			{Table: realtime.TableOrders, Fields: []string{"status", "payment_status", "table_id", "total_amount"}},
		},
		Fetch: func(ctx context.Context) (any, error) { return svc.WithOrders(ctx) },
	}
}

type OrderStats struct {
	ByStatus *orders.StatusStats `json:"by_status"`
	ByType   []orders.TypeStats  `json:"by_type"`
}

// OrdersDef carries the order counters shown on the POS and dashboard.
func OrdersDef(svc *orders.Service) Definition {
	return Definition{
		Name:    Orders,
		Screens: []auth.Screen{auth.ScreenPOS, auth.ScreenDashboard},
		Watches: []Watch{
			{Table: realtime.TableOrders, Fields: []string{"status", "total_amount", "order_type"}},
		},
		Fetch: func(ctx context.Context) (any, error) {
			byStatus, err := svc.StatsByStatus(ctx)
			if err != nil {
				return nil, err
			}
			byType, err := svc.StatsByType(ctx)
			if err != nil {
				return nil, err
			}
			return OrderStats{ByStatus: byStatus, ByType: byType}, nil
		},
	}
}
