package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// ApiError carries an HTTP status alongside the message so controllers and
// services can signal failures without touching fiber directly.
type ApiError struct {
	StatusCode int
	Message    string
}

func (e *ApiError) Error() string {
	return e.Message
}

func NewBadRequestError(message string) *ApiError {
	return &ApiError{StatusCode: fiber.StatusBadRequest, Message: message}
}

func NewNotFoundError(message string) *ApiError {
	return &ApiError{StatusCode: fiber.StatusNotFound, Message: message}
}

func NewConflictError(message string) *ApiError {
	return &ApiError{StatusCode: fiber.StatusConflict, Message: message}
}

// ErrorHandlerMiddleware converts returned errors into the JSON envelope.
// ApiError keeps its status; anything else is a generic 500.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var apiErr *ApiError
		if errors.As(err, &apiErr) {
			return ctx.Status(apiErr.StatusCode).JSON(ErrorResponse(apiErr.Message))
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Message))
		}

		return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(err.Error()))
	}
}
