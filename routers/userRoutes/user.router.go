package userProfileRoutes

import (
	userController "certportal/controllers/userControllers"
	"certportal/middleware"
	"certportal/models"
	userValidator "certportal/validators/userValidator"

	"github.com/gofiber/fiber/v2"
)

func SetupUserRoutes(router fiber.Router, ctl *userController.Controller, jwt *middleware.JWTManager) {
	userGroup := router.Group("/user", jwt.Middleware())

	userGroup.Put("/change-password", userValidator.ChangePassword(), ctl.ChangePassword)
	userGroup.Get("/users", middleware.RequireRole(models.RoleAdmin), userValidator.ListUsers(), ctl.ListUsers)
	userGroup.Get("/stats", middleware.RequireRole(models.RoleAdmin), ctl.Stats)
}
