package middleware

import (
	"certportal/apperror"

	"github.com/gofiber/fiber/v2"
)

// RequireRole returns a middleware that only lets actors with role through.
// It must run after the JWT middleware.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := ActorFrom(c)
		if actor.IsZero() {
			return Fail(c, apperror.Unauthorized("Unauthorized: User ID not found"))
		}
		if actor.Role != role {
			return Fail(c, apperror.Forbidden("You do not have permission to access this resource!"))
		}
		return c.Next()
	}
}
