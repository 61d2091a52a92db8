package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bartime/bartime-api/internal/api/handler/v1/response"
	"github.com/bartime/bartime-api/internal/domain"
	"github.com/bartime/bartime-api/internal/service"
)

var errMissingCapability = errors.New("missing capability")

type BadgeOwnerFinder interface {
	Owner(ctx context.Context, associationID uint, tagID string) (uint, error)
}

// Require lets the request through when the actor holds permission. The
// association role holds every permission.
func Require(permission string) gin.HandlerFunc {
	return authorize(func(ctx *gin.Context, actor domain.Actor) (bool, *response.Err) {
		return actor.Can(permission), nil
	})
}

func RequireAssociation() gin.HandlerFunc {
	return authorize(func(ctx *gin.Context, actor domain.Actor) (bool, *response.Err) {
		return actor.IsAssociation(), nil
	})
}

// RequireSelfOr admits the member named by the path parameter or any actor
// holding permission.
func RequireSelfOr(param, permission string) gin.HandlerFunc {
	return authorize(func(ctx *gin.Context, actor domain.Actor) (bool, *response.Err) {
		if actor.Can(permission) {
			return true, nil
		}

		memberID, err := strconv.ParseUint(ctx.Param(param), 10, 32)
		if err != nil {
			return false, response.ErrBadRequest(fmt.Errorf("invalid %s", param))
		}

		return uint(memberID) == actor.ID, nil
	})
}

// RequireBadgeHolderOr admits the holder of the badge named by the path
// parameter or any actor holding permission.
func RequireBadgeHolderOr(owners BadgeOwnerFinder, param, permission string) gin.HandlerFunc {
	return authorize(func(ctx *gin.Context, actor domain.Actor) (bool, *response.Err) {
		if actor.Can(permission) {
			return true, nil
		}

		owner, err := owners.Owner(ctx.Request.Context(), actor.AssociationID, ctx.Param(param))
		if err != nil {
			if errors.Is(err, service.ErrUnknownBadge) {
				return false, response.ErrNotFound(response.KindUnknownBadge, err)
			}
			return false, response.ErrInternalServerError(fmt.Errorf("owners.Owner -> %w", err))
		}

		return owner == actor.ID, nil
	})
}

func authorize(allowed func(*gin.Context, domain.Actor) (bool, *response.Err)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		actor, ok := ActorFrom(ctx)
		if !ok {
			response.RenderErr(ctx, response.ErrUnauthorized(ErrNoActor))
			return
		}

		ok, respErr := allowed(ctx, actor)
		if respErr != nil {
			response.RenderErr(ctx, respErr)
			return
		}
		if !ok {
			response.RenderErr(ctx, response.ErrPermissionDenied(errMissingCapability))
			return
		}

		ctx.Next()
	}
}
