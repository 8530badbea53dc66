package userController

import (
	"context"
	"log/slog"

	"certportal/middleware"
	"certportal/models"
	"certportal/services/report"
	userValidator "certportal/validators/userValidator"

	"github.com/gofiber/fiber/v2"
)

type Accounts interface {
	ChangePassword(ctx context.Context, actor models.Actor, current, next string) error
	ListByRole(ctx context.Context, actor models.Actor, role string) ([]*models.User, error)
}

type Reports interface {
	Stats(ctx context.Context, actor models.Actor) (*report.Stats, error)
}

type Controller struct {
	accounts Accounts
	reports  Reports
	log      *slog.Logger
}

func New(accounts Accounts, reports Reports, log *slog.Logger) *Controller {
	return &Controller{accounts: accounts, reports: reports, log: log}
}

func (ctl *Controller) ChangePassword(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedChangePassword").(*userValidator.ChangePasswordRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	actor := middleware.ActorFrom(c)
	if err := ctl.accounts.ChangePassword(c.UserContext(), actor, reqData.CurrentPassword, reqData.NewPassword); err != nil {
		return middleware.Fail(c, err)
	}
	ctl.log.Info("password changed", "user_id", actor.UserID)
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Password changed successfully!", nil)
}

// ListUsers is the admin directory, filtered by role.
func (ctl *Controller) ListUsers(c *fiber.Ctx) error {
	reqData, ok := c.Locals("validatedUserList").(*userValidator.ListUsersQuery)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	users, err := ctl.accounts.ListByRole(c.UserContext(), middleware.ActorFrom(c), reqData.Role)
	if err != nil {
		return middleware.Fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Users fetched successfully!", users)
}

func (ctl *Controller) Stats(c *fiber.Ctx) error {
	stats, err := ctl.reports.Stats(c.UserContext(), middleware.ActorFrom(c))
	if err != nil {
		return middleware.Fail(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Stats fetched successfully!", stats)
}
