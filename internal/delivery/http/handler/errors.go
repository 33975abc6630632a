package handler

import (
	"errors"

	"skill-exchange/internal/delivery/http/middleware"
	"skill-exchange/internal/usecase"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// errorKinds is checked in order; the first kind err matches decides the
// response. Validation messages are written for clients and passed through.
var errorKinds = []struct {
	kind    error
	status  int
	message string
}{
	{usecase.ErrValidation, fiber.StatusBadRequest, ""},
	{usecase.ErrAuthorization, fiber.StatusForbidden, "Not a participant of this match"},
	{usecase.ErrNotFound, fiber.StatusNotFound, "Not found"},
	{usecase.ErrInvalidTransition, fiber.StatusConflict, "Match is no longer pending"},
	{usecase.ErrDiscoveryInProgress, fiber.StatusConflict, "Match discovery already running"},
	{usecase.ErrTimeout, fiber.StatusGatewayTimeout, ""},
}

func mapUsecaseError(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range errorKinds {
		if !errors.Is(err, k.kind) {
			continue
		}
		msg := k.message
		if k.kind == usecase.ErrValidation {
			msg = err.Error()
		}
		return middleware.NewAppError(k.status, msg, nil, err)
	}
	return middleware.NewAppError(fiber.StatusInternalServerError, "", nil, err)
}

func currentUser(c fiber.Ctx) (uuid.UUID, error) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return uuid.Nil, middleware.Unauthorized("Unauthorized", nil)
	}
	return userID, nil
}
