package authController

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"certportal/middleware"
	"certportal/models"
	"certportal/services/account"
	authValidator "certportal/validators/auth"

	"github.com/gofiber/fiber/v2"
)

type Accounts interface {
	Register(ctx context.Context, in account.RegisterInput) (*models.User, error)
	VerifyEmail(ctx context.Context, email, code string) error
	ResendVerification(ctx context.Context, email string) error
	Authenticate(ctx context.Context, email, password string) (string, *models.User, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
	Me(ctx context.Context, actor models.Actor) (*models.User, error)
	Options() account.OnboardingOptions
}

type Options struct {
	TokenTTL        time.Duration
	VerificationTTL time.Duration
	SecureCookie    bool
}

type Controller struct {
	accounts Accounts
	opts     Options
	log      *slog.Logger
}

func New(accounts Accounts, log *slog.Logger, opts Options) *Controller {
	return &Controller{accounts: accounts, opts: opts, log: log}
}

func (ctl *Controller) Register(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedRegister").(*authValidator.RegisterRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	user, err := ctl.accounts.Register(c.UserContext(), account.RegisterInput{
		Name:          reqData.Name,
		Email:         reqData.Email,
		Password:      reqData.Password,
		RollNo:        reqData.RollNo,
		Course:        reqData.Course,
		PublicAddress: reqData.PublicAddress,
	})
	if err != nil {
		return middleware.Fail(c, err)
	}

	msg := fmt.Sprintf("Verification code sent to %s. It will expire in %d minutes.", user.Email, int(ctl.opts.VerificationTTL.Minutes()))
	return middleware.JsonResponse(c, fiber.StatusCreated, true, msg, user.Profile())
}

func (ctl *Controller) VerifyEmail(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedVerifyEmail").(*authValidator.VerifyEmailRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	if err := ctl.accounts.VerifyEmail(c.UserContext(), reqData.Email, reqData.Code); err != nil {
		return middleware.Fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Email verified successfully!", nil)
}

func (ctl *Controller) SendVerification(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedEmail").(*authValidator.EmailRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	if err := ctl.accounts.ResendVerification(c.UserContext(), reqData.Email); err != nil {
		return middleware.Fail(c, err)
	}
	msg := fmt.Sprintf("Verification code sent to %s. It will expire in %d minutes.", reqData.Email, int(ctl.opts.VerificationTTL.Minutes()))
	return middleware.JsonResponse(c, fiber.StatusOK, true, msg, nil)
}

// Login returns the token in the body and also sets it as an http-only cookie.
func (ctl *Controller) Login(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedLogin").(*authValidator.LoginRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	token, user, err := ctl.accounts.Authenticate(c.UserContext(), reqData.Email, reqData.Password)
	if err != nil {
		return middleware.Fail(c, err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Expires:  time.Now().Add(ctl.opts.TokenTTL),
		HTTPOnly: true,
		Secure:   ctl.opts.SecureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Login successful!", fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

func (ctl *Controller) Logout(c *fiber.Ctx) error {
	c.ClearCookie(middleware.TokenCookie)
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Logged out successfully!", nil)
}

func (ctl *Controller) ForgotPassword(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedEmail").(*authValidator.EmailRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	if err := ctl.accounts.ForgotPassword(c.UserContext(), reqData.Email); err != nil {
		return middleware.Fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Password reset link sent to your email!", nil)
}

func (ctl *Controller) ResetPassword(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedResetPassword").(*authValidator.ResetPasswordRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	if err := ctl.accounts.ResetPassword(c.UserContext(), reqData.Token, reqData.Password); err != nil {
		return middleware.Fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Password reset successfully!", nil)
}

// EmailOptions lists the accepted email domains and courses for sign-up forms.
func (ctl *Controller) EmailOptions(c *fiber.Ctx) error {
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Options fetched successfully!", ctl.accounts.Options())
}

func (ctl *Controller) Me(c *fiber.Ctx) error {
	user, err := ctl.accounts.Me(c.UserContext(), middleware.ActorFrom(c))
	if err != nil {
		return middleware.Fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "User fetched successfully!", user)
}
