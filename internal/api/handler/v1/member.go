package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bartime/bartime-api/internal/api/handler/v1/request"
	"github.com/bartime/bartime-api/internal/api/handler/v1/response"
	"github.com/bartime/bartime-api/internal/domain"
)

type MemberService interface {
	CreateAdherent(ctx context.Context, associationID uint, member domain.Member) (domain.Member, error)
	Profile(ctx context.Context, id uint) (domain.Member, error)
	List(ctx context.Context, associationID uint, role string) ([]domain.Member, error)
	SetPermissions(ctx context.Context, associationID, memberID uint, permissions []string) (domain.Member, error)
	Association(ctx context.Context, id uint) (domain.Association, error)
	UpdateAssociation(ctx context.Context, association domain.Association) (domain.Association, error)
}

type MemberHandler struct {
	svc MemberService
}

func NewMemberHandler(svc MemberService) *MemberHandler {
	return &MemberHandler{
		svc: svc,
	}
}

// HandleMe godoc
// @Summary      Current member
// @Tags         members
// @Produce      json
// @Success      200 {object} domain.Member
// @Failure      401 {object} response.Envelope
// @Router       /members/me [get]
// @Security     BearerAuth
func (h *MemberHandler) HandleMe(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	member, err := h.svc.Profile(ctx.Request.Context(), actor.ID)
	if err != nil {
		renderServiceErr(ctx, "v1.HandleMe -> h.svc.Profile", err)
		return
	}

	response.Render(ctx, http.StatusOK, member)
}

// HandleList godoc
// @Summary      List members
// @Tags         members
// @Produce      json
// @Param        role query string false "association or adherent"
// @Success      200 {array} domain.Member
// @Failure      403 {object} response.Envelope
// @Router       /members [get]
// @Security     BearerAuth
func (h *MemberHandler) HandleList(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	members, err := h.svc.List(ctx.Request.Context(), actor.AssociationID, ctx.Query("role"))
	if err != nil {
		renderServiceErr(ctx, "v1.HandleList -> h.svc.List", err)
		return
	}

	response.Render(ctx, http.StatusOK, members)
}

// HandleCreate godoc
// @Summary      Create an adherent
// @Tags         members
// @Accept       json
// @Produce      json
// @Param        request body request.CreateMemberRequest true "request body"
// @Success      201 {object} domain.Member
// @Failure      400 {object} response.Envelope
// @Failure      409 {object} response.Envelope
// @Router       /members [post]
// @Security     BearerAuth
func (h *MemberHandler) HandleCreate(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	var req request.CreateMemberRequest
	if !bind(ctx, &req) {
		return
	}

	member, err := h.svc.CreateAdherent(ctx.Request.Context(), actor.AssociationID, domain.Member{
		Name:     req.Name,
		Surname:  req.Surname,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		renderServiceErr(ctx, "v1.HandleCreate -> h.svc.CreateAdherent", err)
		return
	}

	response.Render(ctx, http.StatusCreated, member)
}

// HandleSetPermissions godoc
// @Summary      Replace a member's permissions
// @Tags         members
// @Accept       json
// @Produce      json
// @Param        memberID path int true "Member ID"
// @Param        request body request.SetPermissionsRequest true "request body"
// @Success      200 {object} domain.Member
// @Failure      400 {object} response.Envelope
// @Failure      404 {object} response.Envelope
// @Router       /members/{memberID}/permissions [put]
// @Security     BearerAuth
func (h *MemberHandler) HandleSetPermissions(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	memberID, ok := uintParam(ctx, "memberID")
	if !ok {
		return
	}

	var req request.SetPermissionsRequest
	if !bind(ctx, &req) {
		return
	}

	member, err := h.svc.SetPermissions(ctx.Request.Context(), actor.AssociationID, memberID, req.Permissions)
	if err != nil {
		renderServiceErr(ctx, "v1.HandleSetPermissions -> h.svc.SetPermissions", err)
		return
	}

	response.Render(ctx, http.StatusOK, member)
}

// HandleGetAssociation godoc
// @Summary      Association settings
// @Tags         association
// @Produce      json
// @Success      200 {object} domain.Association
// @Router       /association [get]
// @Security     BearerAuth
func (h *MemberHandler) HandleGetAssociation(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	association, err := h.svc.Association(ctx.Request.Context(), actor.AssociationID)
	if err != nil {
		renderServiceErr(ctx, "v1.HandleGetAssociation -> h.svc.Association", err)
		return
	}

	response.Render(ctx, http.StatusOK, association)
}

// HandleUpdateAssociation godoc
// @Summary      Update association settings
// @Description  Sets the name and the balance policy: overdraft allowance, overdraft limit and top-up ceiling.
// @Tags         association
// @Accept       json
// @Produce      json
// @Param        request body request.UpdateAssociationRequest true "request body"
// @Success      200 {object} domain.Association
// @Failure      400 {object} response.Envelope
// @Router       /association [put]
// @Security     BearerAuth
func (h *MemberHandler) HandleUpdateAssociation(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	var req request.UpdateAssociationRequest
	if !bind(ctx, &req) {
		return
	}

	association, err := h.svc.UpdateAssociation(ctx.Request.Context(), domain.Association{
		ID:             actor.AssociationID,
		Name:           req.Name,
		AllowOverdraft: req.AllowOverdraft,
		OverdraftLimit: req.OverdraftLimit,
		TopUpCeiling:   req.TopUpCeiling,
	})
	if err != nil {
		renderServiceErr(ctx, "v1.HandleUpdateAssociation -> h.svc.UpdateAssociation", err)
		return
	}

	response.Render(ctx, http.StatusOK, association)
}
