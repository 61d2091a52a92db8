package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bartime/bartime-api/internal/api/handler/v1/response"
	"github.com/bartime/bartime-api/internal/domain"
	"github.com/bartime/bartime-api/internal/pkg/jwthelper"
	"github.com/bartime/bartime-api/internal/service"
)

const actorKey = "actor"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrNoActor      = errors.New("no authenticated actor")
)

type MemberFinder interface {
	FindByID(ctx context.Context, id uint) (domain.Member, error)
}

type Authenticator struct {
	signingKey string
	members    MemberFinder
}

func NewAuthenticator(signingKey string, members MemberFinder) *Authenticator {
	return &Authenticator{
		signingKey: signingKey,
		members:    members,
	}
}

// VerifyJWT resolves the bearer token into an Actor. Role and permissions
// are read from the store so that revoked capabilities apply immediately.
func (a *Authenticator) VerifyJWT() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, ok := bearerToken(ctx)
		if !ok {
			response.RenderErr(ctx, response.ErrUnauthorized(ErrMissingToken))
			return
		}

		memberID, claims, err := jwthelper.ParseToken(a.signingKey, token)
		if err != nil {
			response.RenderErr(ctx, response.ErrUnauthorized(err))
			return
		}

		member, err := a.members.FindByID(ctx.Request.Context(), memberID)
		if err != nil {
			if errors.Is(err, service.ErrUnknownMember) {
				response.RenderErr(ctx, response.ErrUnauthorized(jwthelper.ErrInvalidToken))
				return
			}
			response.RenderErr(ctx, response.ErrInternalServerError(fmt.Errorf("a.members.FindByID -> %w", err)))
			return
		}
		if member.AssociationID != claims.AssociationID {
			response.RenderErr(ctx, response.ErrUnauthorized(jwthelper.ErrInvalidToken))
			return
		}

		ctx.Set(actorKey, member.Actor())
		ctx.Next()
	}
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter for websocket clients that cannot set headers.
func bearerToken(ctx *gin.Context) (string, bool) {
	header := ctx.GetHeader("Authorization")
	if token, found := strings.CutPrefix(header, "Bearer "); found && token != "" {
		return token, true
	}

	if token := ctx.Query("token"); token != "" {
		return token, true
	}

	return "", false
}

func ActorFrom(ctx *gin.Context) (domain.Actor, bool) {
	value, ok := ctx.Get(actorKey)
	if !ok {
		return domain.Actor{}, false
	}

	actor, ok := value.(domain.Actor)
	return actor, ok
}

// SetActor is used by tests and internal callers that authenticate by other
// means.
func SetActor(actor domain.Actor) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set(actorKey, actor)
		ctx.Next()
	}
}
