package userValidator

import (
	"certportal/middleware"
	"certportal/models"
	"certportal/validators"

	"github.com/gofiber/fiber/v2"
)

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

type ListUsersQuery struct {
	Role string `query:"role" validate:"oneof=user admin"`
}

func ChangePassword() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(ChangePasswordRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		if errors := validators.Struct(reqData); len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}
		c.Locals("validatedChangePassword", reqData)
		return c.Next()
	}
}

// ListUsers defaults to role=user.
func ListUsers() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(ListUsersQuery)
		if err := c.QueryParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid query parameters!", nil)
		}
		if reqData.Role == "" {
			reqData.Role = models.RoleUser
		}
		if errors := validators.Struct(reqData); len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}
		c.Locals("validatedUserList", reqData)
		return c.Next()
	}
}
