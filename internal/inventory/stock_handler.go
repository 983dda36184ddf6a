package inventory

import (
	"github.com/bhavnindersingh/RecipeManager/internal/apperr"
	"github.com/bhavnindersingh/RecipeManager/internal/auth"
	"github.com/bhavnindersingh/RecipeManager/internal/httpx"
	"github.com/bhavnindersingh/RecipeManager/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type levelResponse struct {
	StockLevel
	Status     string  `json:"status"`
	TotalValue float64 `json:"total_value"`
}

func toLevelResponses(levels []StockLevel) []levelResponse {
	out := make([]levelResponse, 0, len(levels))
	for _, l := range levels {
		out = append(out, levelResponse{StockLevel: l, Status: l.Status(), TotalValue: l.TotalValue()})
	}
	return out
}

// GET /api/stock?category=&search=&low=true
func ListStockHandler(svc *StockService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		levels, err := svc.Levels(c.UserContext(), LevelFilter{
			Category: c.Query("category"),
			Search:   c.Query("search"),
			LowOnly:  c.QueryBool("low"),
		})
		if err != nil {
			return httpx.Fail(log, err, "Failed to load stock levels")
		}
		return c.JSON(toLevelResponses(levels))
	}
}

// GET /api/stock/:ingredientId
func GetStockHandler(svc *StockService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "ingredientId")
		if err != nil {
			return err
		}
		level, err := svc.Level(c.UserContext(), id)
		if err != nil {
			return httpx.Fail(log, err, "Failed to load stock level")
		}
		return c.JSON(toLevelResponses([]StockLevel{*level})[0])
	}
}

// GET /api/stock/low
func LowStockHandler(svc *StockService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		levels, err := svc.LowStock(c.UserContext())
		if err != nil {
			return httpx.Fail(log, err, "Failed to load low stock")
		}
		return c.JSON(toLevelResponses(levels))
	}
}

// GET /api/stock/summary
func StockSummaryHandler(svc *StockService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sum, err := svc.Summary(c.UserContext())
		if err != nil {
			return httpx.Fail(log, err, "Failed to load stock summary")
		}
		return c.JSON(sum)
	}
}

// POST /api/stock/transactions
func RecordTransactionHandler(svc *StockService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RecordInput
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("Invalid request body")
		}
		res, err := svc.Record(c.UserContext(), auth.CurrentActor(c), body)
		if err != nil {
			return httpx.Fail(log, err, "Failed to record stock transaction")
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// POST /api/stock/transactions/bulk {"transactions": [...]}
func BulkTransactionsHandler(svc *StockService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			Transactions []RecordInput `json:"transactions"`
		}
		if err := c.BodyParser(&body); err != nil || len(body.Transactions) == 0 {
			return apperr.Validation("transactions must be a non-empty list")
		}
		results := svc.BulkAdd(c.UserContext(), auth.CurrentActor(c), body.Transactions)
		ok := 0
		for _, r := range results {
			if r.Success {
				ok++
			}
		}
		return c.JSON(fiber.Map{
			"succeeded": ok,
			"failed":    len(results) - ok,
			"results":   results,
		})
	}
}

// GET /api/stock/transactions?ingredient_id=&type=&date_from=&date_to=&limit=
func ListTransactionsHandler(svc *StockService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, to, err := httpx.DateRange(c)
		if err != nil {
			return err
		}
		txs, err := svc.Transactions(c.UserContext(), TxFilter{
			IngredientID: uint(c.QueryInt("ingredient_id")),
			Type:         models.StockTransactionType(c.Query("type")),
			From:         from,
			To:           to,
			Limit:        c.QueryInt("limit", 100),
		})
		if err != nil {
			return httpx.Fail(log, err, "Failed to list stock transactions")
		}
		return c.JSON(txs)
	}
}

// PUT /api/stock/:ingredientId/settings
func UpdateSettingsHandler(svc *StockService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "ingredientId")
		if err != nil {
			return err
		}
		var body SettingsInput
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("Invalid request body")
		}
		level, err := svc.UpdateSettings(c.UserContext(), id, body)
		if err != nil {
			return httpx.Fail(log, err, "Failed to save stock settings")
		}
		return c.JSON(toLevelResponses([]StockLevel{*level})[0])
	}
}
