package orders

import (
	"github.com/bhavnindersingh/RecipeManager/internal/apperr"
	"github.com/bhavnindersingh/RecipeManager/internal/auth"
	"github.com/bhavnindersingh/RecipeManager/internal/httpx"
	"github.com/bhavnindersingh/RecipeManager/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// GET /api/orders?status=&order_type=&payment_status=&created_by=&date_from=&date_to=&search=&page=&page_size=
func ListOrdersHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, to, err := httpx.DateRange(c)
		if err != nil {
			return err
		}
		page := httpx.PageFrom(c)
		list, total, err := svc.List(c.UserContext(), Filter{
			Status:        models.OrderStatus(c.Query("status")),
			OrderType:     models.OrderType(c.Query("order_type")),
			PaymentStatus: models.PaymentStatus(c.Query("payment_status")),
			CreatedBy:     uint(c.QueryInt("created_by", 0)),
			From:          from,
			To:            to,
			Search:        c.Query("search"),
			Page:          page,
		})
		if err != nil {
			return httpx.Fail(log, err, "Failed to list orders")
		}
		return c.JSON(httpx.NewPaged(list, total, page))
	}
}

// GET /api/orders/:id
func GetOrderHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		o, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return httpx.Fail(log, err, "Failed to load order")
		}
		return c.JSON(o)
	}
}

// POST /api/orders
func CreateOrderHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateInput
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("Invalid request body")
		}
		o, err := svc.Create(c.UserContext(), auth.CurrentActor(c), body)
		if err != nil {
			return httpx.Fail(log, err, "Failed to create order")
		}
		return c.Status(fiber.StatusCreated).JSON(o)
	}
}

// POST /api/orders/:id/items
func AddItemsHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body struct {
			Items []ItemInput `json:"items"`
		}
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("Invalid request body")
		}
		o, err := svc.AddItems(c.UserContext(), auth.CurrentActor(c), id, body.Items)
		if err != nil {
			return httpx.Fail(log, err, "Failed to add items")
		}
		return c.JSON(o)
	}
}

// PATCH /api/orders/:id/status {"status": "cooking"}
func UpdateStatusHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body struct {
			Status models.OrderStatus `json:"status"`
		}
		if err := c.BodyParser(&body); err != nil || body.Status == "" {
			return apperr.Validation("status is required")
		}
		o, err := svc.UpdateStatus(c.UserContext(), auth.CurrentActor(c), id, body.Status)
		if err != nil {
			return httpx.Fail(log, err, "Failed to update order status")
		}
		return c.JSON(o)
	}
}

// POST /api/orders/:id/cancel
func CancelOrderHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		o, err := svc.Cancel(c.UserContext(), auth.CurrentActor(c), id)
		if err != nil {
			return httpx.Fail(log, err, "Failed to cancel order")
		}
		return c.JSON(o)
	}
}

// PATCH /api/order-items/:id/status {"item_status": "ready"}
//
// The kitchen screen may omit item_status to advance one step; the server
// screen may only set served.
func UpdateItemStatusHandler(svc *Service, st Station, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body struct {
			ItemStatus models.ItemStatus `json:"item_status"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return apperr.Validation("Invalid request body")
			}
		}
		it, err := svc.UpdateItemStatus(c.UserContext(), st, id, body.ItemStatus)
		if err != nil {
			return httpx.Fail(log, err, "Failed to update item status")
		}
		return c.JSON(it)
	}
}

// GET /api/orders/kitchen
func KitchenOrdersHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := svc.KitchenOrders(c.UserContext())
		if err != nil {
			return httpx.Fail(log, err, "Failed to load kitchen orders")
		}
		return c.JSON(orEmpty(list))
	}
}

// GET /api/orders/active
func ActiveOrdersHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := svc.ActiveOrders(c.UserContext())
		if err != nil {
			return httpx.Fail(log, err, "Failed to load active orders")
		}
		return c.JSON(orEmpty(list))
	}
}

// GET /api/tables/:id/orders
func TableOrdersHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		list, err := svc.TableOrders(c.UserContext(), id)
		if err != nil {
			return httpx.Fail(log, err, "Failed to load table orders")
		}
		return c.JSON(orEmpty(list))
	}
}

// GET /api/orders/delivery
func DeliveryOrdersHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := svc.DeliveryOrders(c.UserContext())
		if err != nil {
			return httpx.Fail(log, err, "Failed to load delivery orders")
		}
		return c.JSON(orEmpty(list))
	}
}

// GET /api/orders/ready-items
func ReadyItemsHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		items, err := svc.ReadyItems(c.UserContext())
		if err != nil {
			return httpx.Fail(log, err, "Failed to load ready items")
		}
		if items == nil {
			items = []models.OrderItem{}
		}
		return c.JSON(items)
	}
}

// GET /api/orders/stats
func StatsHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := svc.StatsByStatus(c.UserContext())
		if err != nil {
			return httpx.Fail(log, err, "Failed to load order stats")
		}
		return c.JSON(st)
	}
}

// GET /api/orders/stats/by-type
func StatsByTypeHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := svc.StatsByType(c.UserContext())
		if err != nil {
			return httpx.Fail(log, err, "Failed to load order stats")
		}
		if st == nil {
			st = []TypeStats{}
		}
		return c.JSON(st)
	}
}

func orEmpty(list []models.Order) []models.Order {
	if list == nil {
		return []models.Order{}
	}
	return list
}
