package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/transfer"
)

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return fiber.StatusNotFound
	case apperr.KindValidation, apperr.KindBadRequest:
		return fiber.StatusBadRequest
	case apperr.KindConflict:
		return fiber.StatusConflict
	case apperr.KindRateLimited:
		return fiber.StatusTooManyRequests
	case apperr.KindAuth:
		return fiber.StatusUnauthorized
	case apperr.KindNetwork, apperr.KindPlatform:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// WriteError renders err as a JSON error body with a status matching its kind.
func WriteError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(transfer.ErrorResponse{Error: fe.Message})
	}

	kind := apperr.KindOf(err)
	status := statusFor(kind)
	body := transfer.ErrorResponse{Error: err.Error(), Kind: kind.String()}
	if status == fiber.StatusInternalServerError {
		body.Error = "internal server error"
	}
	if kind == apperr.KindRateLimited {
		if wait := apperr.RetryAfterOf(err); wait > 0 {
			body.RetryAfter = wait.String()
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(wait.Seconds()+0.5)))
		}
	}
	return c.Status(status).JSON(body)
}
