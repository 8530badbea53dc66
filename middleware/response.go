package middleware

import (
	"errors"
	"log/slog"

	"certportal/apperror"

	"github.com/gofiber/fiber/v2"
)

func JsonResponse(c *fiber.Ctx, statusCode int, status bool, message string, data interface{}) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

func ValidationErrorResponse(c *fiber.Ctx, errors map[string]string) error {
	return JsonResponse(c, fiber.StatusUnprocessableEntity, false, "Validation failed!", errors)
}

// StatusOf maps an error code onto its HTTP status.
func StatusOf(code apperror.Code) int {
	switch code {
	case apperror.CodeNotFound:
		return fiber.StatusNotFound
	case apperror.CodeInvalidTransition, apperror.CodeConflict:
		return fiber.StatusConflict
	case apperror.CodeUnauthorized:
		return fiber.StatusUnauthorized
	case apperror.CodeForbidden:
		return fiber.StatusForbidden
	case apperror.CodeValidation:
		return fiber.StatusUnprocessableEntity
	case apperror.CodeDependency:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// Fail writes err in the response envelope.
func Fail(c *fiber.Ctx, err error) error {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		return JsonResponse(c, fiber.StatusInternalServerError, false, "Something went wrong!", nil)
	}
	if appErr.Code == apperror.CodeValidation {
		return ValidationErrorResponse(c, appErr.Fields)
	}
	message := appErr.Message
	if appErr.Code == apperror.CodeInternal {
		message = "Something went wrong!"
	}
	return JsonResponse(c, StatusOf(appErr.Code), false, message, nil)
}

// ErrorHandler is the app-wide fiber error handler. Handlers may return
// tagged errors directly.
func ErrorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return JsonResponse(c, fiberErr.Code, false, fiberErr.Message, nil)
		}

		code := apperror.CodeOf(err)
		if code == apperror.CodeInternal || code == apperror.CodeDependency {
			log.Error("request failed", "method", c.Method(), "path", c.Path(), "code", code, "err", err)
		}
		return Fail(c, err)
	}
}
