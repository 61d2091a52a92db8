package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bartime/bartime-api/internal/api/handler/v1/request"
	"github.com/bartime/bartime-api/internal/api/handler/v1/response"
	"github.com/bartime/bartime-api/internal/domain"
)

type BadgeService interface {
	Pair(ctx context.Context, associationID uint, tagID string, memberID uint) (domain.BadgeView, error)
	SetActive(ctx context.Context, associationID uint, tagID string, active bool) (domain.Badge, error)
	Remove(ctx context.Context, associationID uint, tagID string) (domain.Badge, error)
	Get(ctx context.Context, associationID uint, tagID string) (domain.BadgeView, error)
	ListByMember(ctx context.Context, associationID, memberID uint) ([]domain.BadgeView, error)
	List(ctx context.Context, associationID uint) ([]domain.BadgeView, error)
}

type BadgeHandler struct {
	svc BadgeService
}

func NewBadgeHandler(svc BadgeService) *BadgeHandler {
	return &BadgeHandler{
		svc: svc,
	}
}

// HandleList godoc
// @Summary      List the association's badges
// @Tags         badges
// @Produce      json
// @Success      200 {array} domain.BadgeView
// @Failure      403 {object} response.Envelope
// @Router       /badges [get]
// @Security     BearerAuth
func (h *BadgeHandler) HandleList(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	views, err := h.svc.List(ctx.Request.Context(), actor.AssociationID)
	if err != nil {
		renderServiceErr(ctx, "v1.HandleList -> h.svc.List", err)
		return
	}

	response.Render(ctx, http.StatusOK, views)
}

// HandleListByMember godoc
// @Summary      List a member's badges
// @Tags         badges
// @Produce      json
// @Param        memberID path int true "Member ID"
// @Success      200 {array} domain.BadgeView
// @Failure      404 {object} response.Envelope
// @Router       /members/{memberID}/badges [get]
// @Security     BearerAuth
func (h *BadgeHandler) HandleListByMember(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	memberID, ok := uintParam(ctx, "memberID")
	if !ok {
		return
	}

	views, err := h.svc.ListByMember(ctx.Request.Context(), actor.AssociationID, memberID)
	if err != nil {
		renderServiceErr(ctx, "v1.HandleListByMember -> h.svc.ListByMember", err)
		return
	}

	response.Render(ctx, http.StatusOK, views)
}

// HandlePair godoc
// @Summary      Pair a badge with a member
// @Description  Opens a zero balance account for the tag. Fails with AlreadyPaired when the tag is held by a live pairing.
// @Tags         badges
// @Accept       json
// @Produce      json
// @Param        request body request.PairBadgeRequest true "request body"
// @Success      201 {object} domain.BadgeView
// @Failure      404 {object} response.Envelope
// @Failure      409 {object} response.Envelope
// @Router       /badges/pair [post]
// @Security     BearerAuth
func (h *BadgeHandler) HandlePair(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	var req request.PairBadgeRequest
	if !bind(ctx, &req) {
		return
	}

	view, err := h.svc.Pair(ctx.Request.Context(), actor.AssociationID, req.TagID, req.MemberID)
	if err != nil {
		renderServiceErr(ctx, "v1.HandlePair -> h.svc.Pair", err)
		return
	}

	response.Render(ctx, http.StatusCreated, view)
}

// HandleGet godoc
// @Summary      Get a badge
// @Tags         badges
// @Produce      json
// @Param        tagID path string true "Tag ID"
// @Success      200 {object} domain.BadgeView
// @Failure      404 {object} response.Envelope
// @Router       /badges/{tagID} [get]
// @Security     BearerAuth
func (h *BadgeHandler) HandleGet(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	view, err := h.svc.Get(ctx.Request.Context(), actor.AssociationID, ctx.Param("tagID"))
	if err != nil {
		renderServiceErr(ctx, "v1.HandleGet -> h.svc.Get", err)
		return
	}

	response.Render(ctx, http.StatusOK, view)
}

// HandleActivate godoc
// @Summary      Activate a badge
// @Tags         badges
// @Produce      json
// @Param        tagID path string true "Tag ID"
// @Success      200 {object} domain.Badge
// @Failure      404 {object} response.Envelope
// @Router       /badges/{tagID}/activate [put]
// @Security     BearerAuth
func (h *BadgeHandler) HandleActivate(ctx *gin.Context) {
	h.setActive(ctx, true)
}

// HandleDeactivate godoc
// @Summary      Deactivate a badge
// @Description  The account is kept; new transactions are refused until the badge is activated again.
// @Tags         badges
// @Produce      json
// @Param        tagID path string true "Tag ID"
// @Success      200 {object} domain.Badge
// @Failure      404 {object} response.Envelope
// @Router       /badges/{tagID}/deactivate [put]
// @Security     BearerAuth
func (h *BadgeHandler) HandleDeactivate(ctx *gin.Context) {
	h.setActive(ctx, false)
}

func (h *BadgeHandler) setActive(ctx *gin.Context, active bool) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	badge, err := h.svc.SetActive(ctx.Request.Context(), actor.AssociationID, ctx.Param("tagID"), active)
	if err != nil {
		renderServiceErr(ctx, "v1.setActive -> h.svc.SetActive", err)
		return
	}

	response.Render(ctx, http.StatusOK, badge)
}

// HandleRemove godoc
// @Summary      Remove a badge
// @Description  Only an inactive badge can be removed. The tag becomes free to pair again.
// @Tags         badges
// @Produce      json
// @Param        tagID path string true "Tag ID"
// @Success      200 {object} domain.Badge
// @Failure      404 {object} response.Envelope
// @Failure      409 {object} response.Envelope
// @Router       /badges/{tagID} [delete]
// @Security     BearerAuth
func (h *BadgeHandler) HandleRemove(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	badge, err := h.svc.Remove(ctx.Request.Context(), actor.AssociationID, ctx.Param("tagID"))
	if err != nil {
		renderServiceErr(ctx, "v1.HandleRemove -> h.svc.Remove", err)
		return
	}

	response.Render(ctx, http.StatusOK, badge)
}
