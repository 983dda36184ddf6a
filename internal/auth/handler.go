package auth

import (
	"github.com/bhavnindersingh/RecipeManager/internal/apperr"
	"github.com/bhavnindersingh/RecipeManager/internal/httpx"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type PinLoginRequest struct {
	PIN string `json:"pin"`
}

type BootstrapAdminRequest struct {
	Name string `json:"name"`
	PIN  string `json:"pin"`
}

// POST /api/auth/pin
func PinLoginHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body PinLoginRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("Invalid request body")
		}
		res, err := svc.LoginWithPIN(c.UserContext(), c.IP(), body.PIN)
		if err != nil {
			return httpx.Fail(log, err, "Failed to sign in")
		}
		return c.JSON(res)
	}
}

// POST /api/auth/logout
func LogoutHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess := CurrentSession(c)
		if sess == nil {
			return c.SendStatus(fiber.StatusNoContent)
		}
		if err := svc.Logout(c.UserContext(), sess.ID); err != nil {
			return httpx.Fail(log, err, "Failed to sign out")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/auth/me
func MeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess := CurrentSession(c)
		if sess == nil {
			return apperr.Unauthorized("Sign in required", string(ScreenLogin))
		}
		return c.JSON(sess)
	}
}

// POST /api/auth/bootstrap-admin
func BootstrapAdminHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body BootstrapAdminRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("Invalid request body")
		}
		u, err := svc.BootstrapAdmin(c.UserContext(), body.Name, body.PIN)
		if err != nil {
			return httpx.Fail(log, err, "Failed to create admin")
		}
		return c.Status(fiber.StatusCreated).JSON(u)
	}
}

// GET /api/users
func ListUsersHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		users, err := svc.ListUsers(c.UserContext())
		if err != nil {
			return httpx.Fail(log, err, "Failed to list users")
		}
		return c.JSON(users)
	}
}

// POST /api/users
func CreateUserHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateUserInput
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("Invalid request body")
		}
		u, err := svc.CreateUser(c.UserContext(), body)
		if err != nil {
			return httpx.Fail(log, err, "Failed to create user")
		}
		return c.Status(fiber.StatusCreated).JSON(u)
	}
}

// PATCH /api/users/:id/active {"is_active": false}
func SetUserActiveHandler(svc *Service, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body struct {
			IsActive *bool  `json:"is_active"`
			PIN      string `json:"pin"`
		}
		if err := c.BodyParser(&body); err != nil || body.IsActive == nil {
			return apperr.Validation("is_active is required")
		}
		if CurrentActor(c).UserID == id && !*body.IsActive {
			return apperr.Validation("You cannot deactivate yourself")
		}
		if err := svc.SetActive(c.UserContext(), id, *body.IsActive, body.PIN); err != nil {
			return httpx.Fail(log, err, "Failed to update user")
		}
		return c.JSON(fiber.Map{"id": id, "is_active": *body.IsActive})
	}
}
