package authValidator

import (
	"strings"

	"certportal/middleware"
	"certportal/validators"

	"github.com/gofiber/fiber/v2"
)

type RegisterRequest struct {
	Name          string `json:"name" validate:"notblank,max=100"`
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required,min=8"`
	RollNo        string `json:"rollNo" validate:"max=32"`
	Course        string `json:"course" validate:"max=64"`
	PublicAddress string `json:"publicAddress" validate:"omitempty,eth_addr"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// parse reads the JSON body into dto, validates it, and stores it under key.
func parse[T any](key string, fill func(c *fiber.Ctx, dto *T)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(T)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		if fill != nil {
			fill(c, reqData)
		}
		if errors := validators.Struct(reqData); len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}
		c.Locals(key, reqData)
		return c.Next()
	}
}

// Register validator middleware
func Register() fiber.Handler {
	return parse[RegisterRequest]("validatedRegister", func(_ *fiber.Ctx, r *RegisterRequest) {
		r.Email = strings.TrimSpace(r.Email)
	})
}

// Login validator middleware
func Login() fiber.Handler {
	return parse[LoginRequest]("validatedLogin", func(_ *fiber.Ctx, r *LoginRequest) {
		r.Email = strings.TrimSpace(r.Email)
	})
}

// SendEmail validates the single-email bodies of resend-verification and forgot-password.
func SendEmail() fiber.Handler {
	return parse[EmailRequest]("validatedEmail", func(_ *fiber.Ctx, r *EmailRequest) {
		r.Email = strings.TrimSpace(r.Email)
	})
}

// VerifyEmail accepts the email as a query parameter, as the client sends it.
func VerifyEmail() fiber.Handler {
	return parse[VerifyEmailRequest]("validatedVerifyEmail", func(c *fiber.Ctx, r *VerifyEmailRequest) {
		if q := c.Query("email"); q != "" {
			r.Email = q
		}
		r.Email = strings.TrimSpace(r.Email)
		r.Code = strings.TrimSpace(r.Code)
	})
}

// ResetPassword takes the token from the path.
func ResetPassword() fiber.Handler {
	return parse[ResetPasswordRequest]("validatedResetPassword", func(c *fiber.Ctx, r *ResetPasswordRequest) {
		r.Token = c.Params("token")
	})
}
