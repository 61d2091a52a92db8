package v1

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bartime/bartime-api/internal/api/handler/v1/response"
	"github.com/bartime/bartime-api/internal/api/middleware"
	"github.com/bartime/bartime-api/internal/domain"
)

type validatable interface {
	Validate() error
}

// bind decodes and validates a JSON body, rendering the failure itself.
func bind(ctx *gin.Context, req validatable) bool {
	if err := ctx.ShouldBindJSON(req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return false
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return false
	}

	return true
}

func actorOf(ctx *gin.Context) (domain.Actor, bool) {
	actor, ok := middleware.ActorFrom(ctx)
	if !ok {
		response.RenderErr(ctx, response.ErrUnauthorized(middleware.ErrNoActor))
		return domain.Actor{}, false
	}

	return actor, true
}

func uintParam(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.RenderErr(ctx, response.ErrBadRequest(fmt.Errorf("invalid %s", name)))
		return 0, false
	}

	return uint(id), true
}

// HandleHealthcheck godoc
// @Summary      Healthcheck
// @Tags         health
// @Produce      json
// @Success      200 {object} response.Envelope
// @Router       / [get]
func HandleHealthcheck(ctx *gin.Context) {
	response.Render(ctx, http.StatusOK, gin.H{"status": "ok"})
}
