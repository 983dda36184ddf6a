package tables

import (
	"github.com/bhavnindersingh/RecipeManager/internal/apperr"
	"github.com/bhavnindersingh/RecipeManager/internal/auth"
	"github.com/bhavnindersingh/RecipeManager/internal/httpx"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// GET /api/tables?include_inactive=true
func ListTablesHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := svc.List(c.UserContext(), c.QueryBool("include_inactive", false))
		if err != nil {
			return httpx.Fail(log, err, "Failed to list tables")
		}
		return c.JSON(list)
	}
}

// GET /api/tables/with-orders
func TablesWithOrdersHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := svc.WithOrders(c.UserContext())
		if err != nil {
			return httpx.Fail(log, err, "Failed to load tables")
		}
		return c.JSON(list)
	}
}

// GET /api/tables/:id
func GetTableHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		v, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return httpx.Fail(log, err, "Failed to load table")
		}
		return c.JSON(v)
	}
}

// POST /api/tables
func CreateTableHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body Input
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("Invalid request body")
		}
		t, err := svc.Create(c.UserContext(), auth.CurrentActor(c), body)
		if err != nil {
			return httpx.Fail(log, err, "Failed to create table")
		}
		return c.Status(fiber.StatusCreated).JSON(t)
	}
}

// PUT /api/tables/:id
func UpdateTableHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body Input
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("Invalid request body")
		}
		t, err := svc.Update(c.UserContext(), auth.CurrentActor(c), id, body)
		if err != nil {
			return httpx.Fail(log, err, "Failed to update table")
		}
		return c.JSON(t)
	}
}

// POST /api/tables/:id/reserve
func ReserveTableHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		v, err := svc.Reserve(c.UserContext(), auth.CurrentActor(c), id)
		if err != nil {
			return httpx.Fail(log, err, "Failed to reserve table")
		}
		return c.JSON(v)
	}
}

// POST /api/tables/:id/clear
func ClearTableHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		v, err := svc.Clear(c.UserContext(), auth.CurrentActor(c), id)
		if err != nil {
			return httpx.Fail(log, err, "Failed to clear table")
		}
		return c.JSON(v)
	}
}

// DELETE /api/tables/:id
func DeactivateTableHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := svc.Deactivate(c.UserContext(), auth.CurrentActor(c), id); err != nil {
			return httpx.Fail(log, err, "Failed to remove table")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
