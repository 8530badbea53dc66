package authRoutes

import (
	authController "certportal/controllers/auth"
	"certportal/middleware"
	authValidator "certportal/validators/auth"

	"github.com/gofiber/fiber/v2"
)

func SetupAuthRoutes(router fiber.Router, ctl *authController.Controller, jwt *middleware.JWTManager) {
	authGroup := router.Group("/auth")

	authGroup.Post("/register", authValidator.Register(), ctl.Register)
	authGroup.Post("/verify-email", authValidator.VerifyEmail(), ctl.VerifyEmail)
	authGroup.Post("/send-verification", authValidator.SendEmail(), ctl.SendVerification)
	authGroup.Post("/login", authValidator.Login(), ctl.Login)
	authGroup.Post("/logout", ctl.Logout)
	authGroup.Post("/forgot-password", authValidator.SendEmail(), ctl.ForgotPassword)
	authGroup.Put("/reset-password/:token", authValidator.ResetPassword(), ctl.ResetPassword)
	authGroup.Get("/options", ctl.EmailOptions)
	authGroup.Get("/me", jwt.Middleware(), ctl.Me)
}
