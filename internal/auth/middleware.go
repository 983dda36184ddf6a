package auth

import (
	"strings"

	"github.com/bhavnindersingh/RecipeManager/internal/apperr"
	"github.com/bhavnindersingh/RecipeManager/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	CtxUserIDKey   = "user_id"
	CtxUserRoleKey = "user_role"
	CtxSessionKey  = "session"
)

func JWTMiddleware(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return apperr.Unauthorized("Authorization header is missing", string(ScreenLogin))
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return apperr.Unauthorized("Authorization must be 'Bearer <token>'", string(ScreenLogin))
		}

		sess, err := svc.Authenticate(c.UserContext(), parts[1])
		if err != nil {
			return err
		}

		c.Locals(CtxUserIDKey, sess.UserID)
		c.Locals(CtxUserRoleKey, sess.Role)
		c.Locals(CtxSessionKey, sess)
		return c.Next()
	}
}

// RequireRole lets through only the listed roles. Others get a 403 that
// points at their own default screen.
func RequireRole(allowedRoles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(CtxUserRoleKey).(models.UserRole)
		if !ok {
			return apperr.Unauthorized("Sign in required", string(ScreenLogin))
		}
		for _, r := range allowedRoles {
			if r == role {
				return c.Next()
			}
		}
		return apperr.Forbidden("You do not have access to this action", string(DefaultScreen(role)))
	}
}

// RequireScreen lets through roles that may open any of screens.
func RequireScreen(screens ...Screen) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(CtxUserRoleKey).(models.UserRole)
		if !ok {
			return apperr.Unauthorized("Sign in required", string(ScreenLogin))
		}
		for _, s := range screens {
			if CanAccess(role, s) {
				return c.Next()
			}
		}
		return apperr.Forbidden("You do not have access to this screen", string(DefaultScreen(role)))
	}
}

// CurrentSession returns the session set by JWTMiddleware.
func CurrentSession(c *fiber.Ctx) *Session {
	s, _ := c.Locals(CtxSessionKey).(*Session)
	return s
}

// CurrentActor is the signed-in user as recorded on writes.
func CurrentActor(c *fiber.Ctx) Actor {
	if s := CurrentSession(c); s != nil {
		return s.Actor()
	}
	return Actor{}
}
