package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bartime/bartime-api/internal/api/handler/v1/request"
	"github.com/bartime/bartime-api/internal/api/handler/v1/response"
	"github.com/bartime/bartime-api/internal/config"
	"github.com/bartime/bartime-api/internal/domain"
	"github.com/bartime/bartime-api/internal/pkg/jwthelper"
	"github.com/bartime/bartime-api/internal/service"
)

type AuthService interface {
	Register(ctx context.Context, association domain.Association, owner domain.Member) (domain.Association, domain.Member, error)
	Login(ctx context.Context, email, password string) (domain.Member, error)
}

type AuthHandler struct {
	conf *config.APIConfig
	svc  AuthService
}

func NewAuthHandler(conf *config.APIConfig, svc AuthService) *AuthHandler {
	return &AuthHandler{
		conf: conf,
		svc:  svc,
	}
}

// HandleRegister godoc
// @Summary      Register an association
// @Description  Creates an association and the account that manages it.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request   body      request.RegisterRequest true "request body"
// @Success      201      {object}   response.RegisterResponse
// @Failure      400      {object}   response.Envelope
// @Failure      409      {object}   response.Envelope
// @Failure      500      {object}   response.Envelope
// @Router       /auth/register [post]
func (h *AuthHandler) HandleRegister(ctx *gin.Context) {
	var req request.RegisterRequest
	if !bind(ctx, &req) {
		return
	}

	association, owner, err := h.svc.Register(ctx.Request.Context(),
		domain.Association{Name: req.AssociationName},
		domain.Member{
			Name:     req.Name,
			Surname:  req.Surname,
			Email:    req.Email,
			Password: req.Password,
		},
	)
	if err != nil {
		renderServiceErr(ctx, "v1.HandleRegister -> h.svc.Register", err)
		return
	}

	token, err := h.token(owner)
	if err != nil {
		response.RenderErr(ctx, response.ErrInternalServerError(fmt.Errorf("v1.HandleRegister -> %w", err)))
		return
	}

	response.Render(ctx, http.StatusCreated, response.RegisterResponse{
		Association: association,
		Member:      owner,
		Token:       token,
	})
}

// HandleLogin godoc
// @Summary      Login a member
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request   body      request.LoginRequest true "request body"
// @Success      200      {object}   response.LoginResponse
// @Failure      401      {object}   response.Envelope
// @Failure      429      {object}   response.Envelope
// @Failure      500      {object}   response.Envelope
// @Router       /auth/login [post]
func (h *AuthHandler) HandleLogin(ctx *gin.Context) {
	var req request.LoginRequest
	if !bind(ctx, &req) {
		return
	}

	member, err := h.svc.Login(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownMember), errors.Is(err, service.ErrWrongPassword):
			response.RenderErr(ctx, response.ErrWrongCredentials(err))
		case errors.Is(err, service.ErrTooManyLoginTries):
			response.RenderErr(ctx, response.ErrTooManyRequests(err))
		default:
			response.RenderErr(ctx, response.ErrInternalServerError(fmt.Errorf("v1.HandleLogin -> h.svc.Login -> %w", err)))
		}
		return
	}

	token, err := h.token(member)
	if err != nil {
		response.RenderErr(ctx, response.ErrInternalServerError(fmt.Errorf("v1.HandleLogin -> %w", err)))
		return
	}

	response.Render(ctx, http.StatusOK, response.LoginResponse{
		Token:  token,
		Member: member,
	})
}

func (h *AuthHandler) token(member domain.Member) (string, error) {
	token, err := jwthelper.GenerateToken(h.conf.JWTSigningKey, member.ID, member.AssociationID, member.Role, h.conf.JWTTTL)
	if err != nil {
		return "", fmt.Errorf("jwthelper.GenerateToken -> %w", err)
	}

	return token, nil
}
