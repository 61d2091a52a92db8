package response

import (
	"fmt"
	"net/http"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	KindBadRequest             = "BadRequest"
	KindWrongCredentials       = "WrongCredentials"
	KindUnauthorized           = "Unauthorized"
	KindPermissionDenied       = "PermissionDenied"
	KindTooManyRequests        = "TooManyRequests"
	KindNotFound               = "NotFound"
	KindUnknownBadge           = "UnknownBadge"
	KindUnknownMember          = "UnknownMember"
	KindAlreadyPaired          = "AlreadyPaired"
	KindBadgeInactive          = "BadgeInactive"
	KindBadgeStillActive       = "BadgeStillActive"
	KindInsufficientBalance    = "InsufficientBalance"
	KindTopUpLimitExceeded     = "TopUpLimitExceeded"
	KindConcurrentModification = "ConcurrentModification"
	KindDuplicateReference     = "DuplicateReference"
	KindConflict               = "Conflict"
	KindInternal               = "Internal"
)

// Envelope wraps every body the API returns.
type Envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
	Error   *Err `json:"error,omitempty"`
}

type Err struct {
	Err            error `json:"-"`
	HTTPStatusCode int   `json:"-"`

	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *Err) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func Render(ctx *gin.Context, status int, data any) {
	ctx.JSON(status, Envelope{
		Success: true,
		Data:    data,
	})
}

func RenderErr(ctx *gin.Context, e *Err) {
	if e.HTTPStatusCode >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("request_id", requestid.Get(ctx)),
			zap.String("path", ctx.FullPath()),
			zap.Error(e.Err),
		)
	}

	ctx.AbortWithStatusJSON(e.HTTPStatusCode, Envelope{
		Success: false,
		Error:   e,
	})
}

func ErrBadRequest(err error) *Err {
	return &Err{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		Kind:           KindBadRequest,
		Message:        err.Error(),
	}
}

func ErrWrongCredentials(err error) *Err {
	return &Err{
		Err:            err,
		HTTPStatusCode: http.StatusUnauthorized,
		Kind:           KindWrongCredentials,
		Message:        "wrong email or password",
	}
}

func ErrUnauthorized(err error) *Err {
	return &Err{
		Err:            err,
		HTTPStatusCode: http.StatusUnauthorized,
		Kind:           KindUnauthorized,
		Message:        err.Error(),
	}
}

func ErrPermissionDenied(err error) *Err {
	return &Err{
		Err:            err,
		HTTPStatusCode: http.StatusForbidden,
		Kind:           KindPermissionDenied,
		Message:        err.Error(),
	}
}

func ErrTooManyRequests(err error) *Err {
	return &Err{
		Err:            err,
		HTTPStatusCode: http.StatusTooManyRequests,
		Kind:           KindTooManyRequests,
		Message:        err.Error(),
	}
}

// ErrNotFound reports a missing resource under the given kind.
func ErrNotFound(kind string, err error) *Err {
	return &Err{
		Err:            err,
		HTTPStatusCode: http.StatusNotFound,
		Kind:           kind,
		Message:        err.Error(),
	}
}

// ErrConflict reports a request that lost against the current state.
func ErrConflict(kind string, err error) *Err {
	return &Err{
		Err:            err,
		HTTPStatusCode: http.StatusConflict,
		Kind:           kind,
		Message:        err.Error(),
	}
}

// ErrUnprocessable reports a well-formed request the ledger refuses.
func ErrUnprocessable(kind string, err error) *Err {
	return &Err{
		Err:            err,
		HTTPStatusCode: http.StatusUnprocessableEntity,
		Kind:           kind,
		Message:        err.Error(),
	}
}

func ErrInternalServerError(err error) *Err {
	return &Err{
		Err:            err,
		HTTPStatusCode: http.StatusInternalServerError,
		Kind:           KindInternal,
		Message:        "internal server error",
	}
}
