package export

import (
	"context"
	"fmt"
	"time"

	"github.com/bhavnindersingh/RecipeManager/internal/httpx"
	"github.com/bhavnindersingh/RecipeManager/internal/inventory"
	"github.com/bhavnindersingh/RecipeManager/internal/models"
	"github.com/bhavnindersingh/RecipeManager/internal/orders"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type OrderLister interface {
	List(ctx context.Context, f orders.Filter) ([]models.Order, int64, error)
}

type IngredientLister interface {
	List(ctx context.Context, f inventory.IngredientFilter) ([]models.Ingredient, int64, error)
}

type StockLister interface {
	Levels(ctx context.Context, f inventory.LevelFilter) ([]inventory.StockLevel, error)
}

func send(c *fiber.Ctx, log *zap.Logger, name string, sheet Sheet) error {
	f, err := Build(sheet)
	if err != nil {
		return httpx.Fail(log, err, "Failed to build export")
	}
	defer f.Close()

	c.Set(fiber.HeaderContentType, ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
	if err := f.Write(c); err != nil {
		return httpx.Fail(log, err, "Failed to write export")
	}
	return nil
}

// GET /api/export/orders?status=&order_type=&payment_status=&date_from=&date_to=
func OrdersHandler(src OrderLister, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, to, err := httpx.DateRange(c)
		if err != nil {
			return err
		}
		list, _, err := src.List(c.UserContext(), orders.Filter{
			Status:        models.OrderStatus(c.Query("status")),
			OrderType:     models.OrderType(c.Query("order_type")),
			PaymentStatus: models.PaymentStatus(c.Query("payment_status")),
			From:          from,
			To:            to,
			Search:        c.Query("search"),
			All:           true,
		})
		if err != nil {
			return httpx.Fail(log, err, "Failed to export orders")
		}
		prefix := "orders_all"
		if from != nil || to != nil {
			prefix = "orders_range"
		}
		return send(c, log, FileName(prefix, time.Now()), OrdersSheet(list))
	}
}

// GET /api/export/ingredients?category=
func IngredientsHandler(src IngredientLister, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, _, err := src.List(c.UserContext(), inventory.IngredientFilter{
			Category: c.Query("category"),
			Sort:     "name",
			All:      true,
		})
		if err != nil {
			return httpx.Fail(log, err, "Failed to export ingredients")
		}
		return send(c, log, FileName("ingredients", time.Now()), IngredientsSheet(list))
	}
}

// GET /api/export/stock?category=&low=
func StockHandler(src StockLister, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		levels, err := src.Levels(c.UserContext(), inventory.LevelFilter{
			Category: c.Query("category"),
			LowOnly:  c.QueryBool("low"),
		})
		if err != nil {
			return httpx.Fail(log, err, "Failed to export stock")
		}
		return send(c, log, FileName("stock_register", time.Now()), StockSheet(levels))
	}
}
