package payments

import (
	"github.com/bhavnindersingh/RecipeManager/internal/apperr"
	"github.com/bhavnindersingh/RecipeManager/internal/auth"
	"github.com/bhavnindersingh/RecipeManager/internal/httpx"
	"github.com/bhavnindersingh/RecipeManager/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// POST /api/payments
func CreatePaymentHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body PayInput
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("Invalid request body")
		}
		if body.OrderID == 0 {
			return apperr.Validation("order_id is required")
		}
		res, err := svc.Pay(c.UserContext(), auth.CurrentActor(c), body)
		if err != nil {
			return httpx.Fail(log, err, "Failed to record payment")
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// POST /api/orders/:id/split-payment {"splits": [...]}
func CreateSplitPaymentHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body struct {
			Splits []SplitInput `json:"splits"`
		}
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("Invalid request body")
		}
		res, err := svc.PaySplit(c.UserContext(), auth.CurrentActor(c), id, body.Splits)
		if err != nil {
			return httpx.Fail(log, err, "Failed to record split payment")
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// POST /api/payments/:id/refund {"reason": "..."}
func RefundPaymentHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body struct {
			Reason string `json:"reason"`
		}
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("Invalid request body")
		}
		res, err := svc.Refund(c.UserContext(), auth.CurrentActor(c), id, body.Reason)
		if err != nil {
			return httpx.Fail(log, err, "Failed to refund payment")
		}
		return c.JSON(res)
	}
}

// GET /api/orders/:id/payments
func ListPaymentsHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		list, err := svc.List(c.UserContext(), id)
		if err != nil {
			return httpx.Fail(log, err, "Failed to list payments")
		}
		if list == nil {
			list = []models.Payment{}
		}
		return c.JSON(list)
	}
}

// GET /api/orders/:id/payment-summary
func SummaryHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		sum, err := svc.Summary(c.UserContext(), id)
		if err != nil {
			return httpx.Fail(log, err, "Failed to load payment summary")
		}
		return c.JSON(sum)
	}
}

// GET /api/orders/:id/payment-check?amount=
func CheckAmountHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		chk, err := svc.Check(c.UserContext(), id, c.QueryFloat("amount", 0))
		if err != nil {
			return httpx.Fail(log, err, "Failed to check payment amount")
		}
		return c.JSON(chk)
	}
}

// GET /api/payments/equal-split?total=&people=
func EqualSplitHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		people := c.QueryInt("people", 0)
		if people <= 0 || people > 50 {
			return apperr.Validation("people must be between 1 and 50")
		}
		return c.JSON(EqualSplit(c.QueryFloat("total", 0), people))
	}
}

// GET /api/payments/change?amount=&received=
func ChangeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"change": Change(c.QueryFloat("amount", 0), c.QueryFloat("received", 0))})
	}
}
