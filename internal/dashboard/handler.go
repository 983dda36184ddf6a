package dashboard

import (
	"github.com/bhavnindersingh/RecipeManager/internal/httpx"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// GET /api/dashboard/overview?date_from=&date_to=
func OverviewHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, to, err := httpx.DateRange(c)
		if err != nil {
			return err
		}
		ov, err := svc.Overview(c.UserContext(), from, to)
		if err != nil {
			return httpx.Fail(log, err, "Failed to load dashboard")
		}
		return c.JSON(ov)
	}
}

// GET /api/dashboard/sales-chart?period=daily&count=7
func SalesChartHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		chart, err := svc.SalesChart(c.UserContext(), Period(c.Query("period")), c.QueryInt("count", 0))
		if err != nil {
			return httpx.Fail(log, err, "Failed to load sales chart")
		}
		return c.JSON(chart)
	}
}

// GET /api/dashboard/top-recipes?date_from=&date_to=&limit=10
func TopRecipesHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, to, err := httpx.DateRange(c)
		if err != nil {
			return err
		}
		list, err := svc.TopRecipes(c.UserContext(), from, to, c.QueryInt("limit", 0))
		if err != nil {
			return httpx.Fail(log, err, "Failed to load top recipes")
		}
		return c.JSON(fiber.Map{"data": list})
	}
}
