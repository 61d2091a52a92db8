package v1

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/bartime/bartime-api/internal/api/handler/v1/response"
	"github.com/bartime/bartime-api/internal/scan"
	"github.com/bartime/bartime-api/internal/service"
)

// renderServiceErr maps the error taxonomy of the services onto the
// response envelope. Anything unrecognised is an internal error.
func renderServiceErr(ctx *gin.Context, op string, err error) {
	response.RenderErr(ctx, serviceErr(op, err))
}

func serviceErr(op string, err error) *response.Err {
	switch {
	case errors.Is(err, service.ErrUnknownBadge):
		return response.ErrNotFound(response.KindUnknownBadge, service.ErrUnknownBadge)
	case errors.Is(err, service.ErrUnknownMember):
		return response.ErrNotFound(response.KindUnknownMember, service.ErrUnknownMember)
	case errors.Is(err, service.ErrUnknownAssociation),
		errors.Is(err, service.ErrUnknownCategory),
		errors.Is(err, service.ErrUnknownProduct),
		errors.Is(err, service.ErrUnknownTransaction):
		return response.ErrNotFound(response.KindNotFound, err)

	case errors.Is(err, service.ErrAlreadyPaired):
		return response.ErrConflict(response.KindAlreadyPaired, service.ErrAlreadyPaired)
	case errors.Is(err, service.ErrBadgeStillActive):
		return response.ErrConflict(response.KindBadgeStillActive, service.ErrBadgeStillActive)
	case errors.Is(err, service.ErrConcurrentModification):
		return response.ErrConflict(response.KindConcurrentModification, service.ErrConcurrentModification)
	case errors.Is(err, service.ErrDuplicateReference):
		return response.ErrConflict(response.KindDuplicateReference, err)
	case errors.Is(err, service.ErrEmailExists),
		errors.Is(err, service.ErrCategoryExists),
		errors.Is(err, service.ErrCategoryInUse):
		return response.ErrConflict(response.KindConflict, err)

	case errors.Is(err, service.ErrBadgeInactive):
		return response.ErrUnprocessable(response.KindBadgeInactive, service.ErrBadgeInactive)
	case errors.Is(err, service.ErrInsufficientBalance):
		return response.ErrUnprocessable(response.KindInsufficientBalance, service.ErrInsufficientBalance)
	case errors.Is(err, service.ErrTopUpLimitExceeded):
		return response.ErrUnprocessable(response.KindTopUpLimitExceeded, service.ErrTopUpLimitExceeded)

	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrMissingReference),
		errors.Is(err, service.ErrInvalidCursor),
		errors.Is(err, service.ErrInvalidTagID),
		errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrInvalidPolicy),
		errors.Is(err, service.ErrUnknownPermission),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, scan.ErrInvalidStation),
		errors.Is(err, scan.ErrInvalidTag):
		return response.ErrBadRequest(err)
	}

	return response.ErrInternalServerError(fmt.Errorf("%s -> %w", op, err))
}
