package v1

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bartime/bartime-api/internal/api/handler/v1/request"
	"github.com/bartime/bartime-api/internal/api/handler/v1/response"
	"github.com/bartime/bartime-api/internal/domain"
	"github.com/bartime/bartime-api/internal/service"
)

type LedgerService interface {
	Charge(ctx context.Context, req service.LedgerRequest) (domain.LedgerResult, error)
	TopUp(ctx context.Context, req service.LedgerRequest) (domain.LedgerResult, error)
	Adjust(ctx context.Context, req service.LedgerRequest) (domain.LedgerResult, error)
	GetBalance(ctx context.Context, associationID uint, tagID string) (domain.Balance, error)
	History(ctx context.Context, associationID uint, tagID string, limit int, cursor string) (domain.HistoryPage, error)
	MemberHistory(ctx context.Context, associationID, memberID uint, limit int, cursor string) (domain.HistoryPage, error)
	AssociationHistory(ctx context.Context, associationID uint, limit int, cursor string) (domain.HistoryPage, error)
	GetTransaction(ctx context.Context, associationID uint, id uint64) (domain.Transaction, error)
	Reconcile(ctx context.Context, associationID uint, tagID string) (domain.Reconciliation, error)
}

type CheckoutService interface {
	Checkout(ctx context.Context, req service.CheckoutRequest) (domain.Receipt, error)
}

type LedgerHandler struct {
	svc      LedgerService
	checkout CheckoutService
}

func NewLedgerHandler(svc LedgerService, checkout CheckoutService) *LedgerHandler {
	return &LedgerHandler{
		svc:      svc,
		checkout: checkout,
	}
}

// HandleBalance godoc
// @Summary      Badge balance
// @Description  Returns the balance and its version. Pass the version back as expected_version to make a write conditional on it.
// @Tags         ledger
// @Produce      json
// @Param        tagID path string true "Tag ID"
// @Success      200 {object} domain.Balance
// @Failure      404 {object} response.Envelope
// @Router       /badges/{tagID}/balance [get]
// @Security     BearerAuth
func (h *LedgerHandler) HandleBalance(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	balance, err := h.svc.GetBalance(ctx.Request.Context(), actor.AssociationID, ctx.Param("tagID"))
	if err != nil {
		renderServiceErr(ctx, "v1.HandleBalance -> h.svc.GetBalance", err)
		return
	}

	response.Render(ctx, http.StatusOK, balance)
}

// HandleHistory godoc
// @Summary      Badge transactions
// @Description  Newest first. Follow next_cursor for older pages.
// @Tags         ledger
// @Produce      json
// @Param        tagID path string true "Tag ID"
// @Param        limit query int false "Page size"
// @Param        cursor query string false "Cursor from the previous page"
// @Success      200 {object} domain.HistoryPage
// @Failure      400 {object} response.Envelope
// @Failure      404 {object} response.Envelope
// @Router       /badges/{tagID}/transactions [get]
// @Security     BearerAuth
func (h *LedgerHandler) HandleHistory(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	limit, ok := limitQuery(ctx)
	if !ok {
		return
	}

	page, err := h.svc.History(ctx.Request.Context(), actor.AssociationID, ctx.Param("tagID"), limit, ctx.Query("cursor"))
	if err != nil {
		renderServiceErr(ctx, "v1.HandleHistory -> h.svc.History", err)
		return
	}

	response.Render(ctx, http.StatusOK, page)
}

// HandleMemberHistory godoc
// @Summary      Member transactions
// @Description  Every transaction of the member across all their badges, removed ones included. Newest first.
// @Tags         ledger
// @Produce      json
// @Param        memberID path int true "Member ID"
// @Param        limit query int false "Page size"
// @Param        cursor query string false "Cursor from the previous page"
// @Success      200 {object} domain.HistoryPage
// @Failure      400 {object} response.Envelope
// @Failure      404 {object} response.Envelope
// @Router       /members/{memberID}/transactions [get]
// @Security     BearerAuth
func (h *LedgerHandler) HandleMemberHistory(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	memberID, ok := uintParam(ctx, "memberID")
	if !ok {
		return
	}

	limit, ok := limitQuery(ctx)
	if !ok {
		return
	}

	page, err := h.svc.MemberHistory(ctx.Request.Context(), actor.AssociationID, memberID, limit, ctx.Query("cursor"))
	if err != nil {
		renderServiceErr(ctx, "v1.HandleMemberHistory -> h.svc.MemberHistory", err)
		return
	}

	response.Render(ctx, http.StatusOK, page)
}

// HandleAssociationHistory godoc
// @Summary      Association transactions
// @Description  Every transaction recorded in the association. Newest first.
// @Tags         ledger
// @Produce      json
// @Param        limit query int false "Page size"
// @Param        cursor query string false "Cursor from the previous page"
// @Success      200 {object} domain.HistoryPage
// @Failure      400 {object} response.Envelope
// @Router       /transactions [get]
// @Security     BearerAuth
func (h *LedgerHandler) HandleAssociationHistory(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	limit, ok := limitQuery(ctx)
	if !ok {
		return
	}

	page, err := h.svc.AssociationHistory(ctx.Request.Context(), actor.AssociationID, limit, ctx.Query("cursor"))
	if err != nil {
		renderServiceErr(ctx, "v1.HandleAssociationHistory -> h.svc.AssociationHistory", err)
		return
	}

	response.Render(ctx, http.StatusOK, page)
}

// HandleGetTransaction godoc
// @Summary      Get a transaction
// @Tags         ledger
// @Produce      json
// @Param        transactionID path int true "Transaction ID"
// @Success      200 {object} domain.Transaction
// @Failure      404 {object} response.Envelope
// @Router       /transactions/{transactionID} [get]
// @Security     BearerAuth
func (h *LedgerHandler) HandleGetTransaction(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	id, err := strconv.ParseUint(ctx.Param("transactionID"), 10, 64)
	if err != nil || id == 0 {
		response.RenderErr(ctx, response.ErrBadRequest(errors.New("invalid transactionID")))
		return
	}

	txn, err := h.svc.GetTransaction(ctx.Request.Context(), actor.AssociationID, id)
	if err != nil {
		renderServiceErr(ctx, "v1.HandleGetTransaction -> h.svc.GetTransaction", err)
		return
	}

	response.Render(ctx, http.StatusOK, txn)
}

func limitQuery(ctx *gin.Context) (int, bool) {
	raw := ctx.Query("limit")
	if raw == "" {
		return 0, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		response.RenderErr(ctx, response.ErrBadRequest(errors.New("invalid limit")))
		return 0, false
	}

	return limit, true
}

// HandleCharge godoc
// @Summary      Charge a badge
// @Description  Debits amount. Resending the same reference returns the original result.
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        tagID path string true "Tag ID"
// @Param        request body request.LedgerRequest true "request body"
// @Success      201 {object} domain.LedgerResult
// @Success      200 {object} domain.LedgerResult "replayed"
// @Failure      404 {object} response.Envelope
// @Failure      409 {object} response.Envelope
// @Failure      422 {object} response.Envelope
// @Router       /badges/{tagID}/charge [post]
// @Security     BearerAuth
func (h *LedgerHandler) HandleCharge(ctx *gin.Context) {
	h.mutate(ctx, "v1.HandleCharge -> h.svc.Charge", h.svc.Charge)
}

// HandleTopUp godoc
// @Summary      Top up a badge
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        tagID path string true "Tag ID"
// @Param        request body request.LedgerRequest true "request body"
// @Success      201 {object} domain.LedgerResult
// @Success      200 {object} domain.LedgerResult "replayed"
// @Failure      404 {object} response.Envelope
// @Failure      409 {object} response.Envelope
// @Failure      422 {object} response.Envelope
// @Router       /badges/{tagID}/topup [post]
// @Security     BearerAuth
func (h *LedgerHandler) HandleTopUp(ctx *gin.Context) {
	h.mutate(ctx, "v1.HandleTopUp -> h.svc.TopUp", h.svc.TopUp)
}

func (h *LedgerHandler) mutate(ctx *gin.Context, op string, apply func(context.Context, service.LedgerRequest) (domain.LedgerResult, error)) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	var req request.LedgerRequest
	if !bind(ctx, &req) {
		return
	}

	result, err := apply(ctx.Request.Context(), service.LedgerRequest{
		TagID:           ctx.Param("tagID"),
		Amount:          req.Amount,
		Reference:       req.Reference,
		ExpectedVersion: req.ExpectedVersion,
		Actor:           actor,
	})
	if err != nil {
		renderServiceErr(ctx, op, err)
		return
	}

	renderResult(ctx, result)
}

// HandleAdjust godoc
// @Summary      Adjust a badge balance
// @Description  Records a signed administrative correction with its reason.
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        tagID path string true "Tag ID"
// @Param        request body request.AdjustRequest true "request body"
// @Success      201 {object} domain.LedgerResult
// @Failure      404 {object} response.Envelope
// @Failure      409 {object} response.Envelope
// @Failure      422 {object} response.Envelope
// @Router       /badges/{tagID}/adjust [post]
// @Security     BearerAuth
func (h *LedgerHandler) HandleAdjust(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	var req request.AdjustRequest
	if !bind(ctx, &req) {
		return
	}

	result, err := h.svc.Adjust(ctx.Request.Context(), service.LedgerRequest{
		TagID:           ctx.Param("tagID"),
		Amount:          req.Amount,
		Reference:       req.Reference,
		Note:            req.Reason,
		ExpectedVersion: req.ExpectedVersion,
		Actor:           actor,
	})
	if err != nil {
		renderServiceErr(ctx, "v1.HandleAdjust -> h.svc.Adjust", err)
		return
	}

	renderResult(ctx, result)
}

// HandlePurchase godoc
// @Summary      Charge a cart to a badge
// @Description  Prices the items from the catalog and charges the total as one purchase.
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        tagID path string true "Tag ID"
// @Param        request body request.PurchaseRequest true "request body"
// @Success      201 {object} domain.Receipt
// @Failure      404 {object} response.Envelope
// @Failure      409 {object} response.Envelope
// @Failure      422 {object} response.Envelope
// @Router       /badges/{tagID}/purchase [post]
// @Security     BearerAuth
func (h *LedgerHandler) HandlePurchase(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	var req request.PurchaseRequest
	if !bind(ctx, &req) {
		return
	}

	receipt, err := h.checkout.Checkout(ctx.Request.Context(), service.CheckoutRequest{
		TagID:           ctx.Param("tagID"),
		Lines:           req.Lines(),
		Reference:       req.Reference,
		ExpectedVersion: req.ExpectedVersion,
		Actor:           actor,
	})
	if err != nil {
		renderServiceErr(ctx, "v1.HandlePurchase -> h.checkout.Checkout", err)
		return
	}

	status := http.StatusCreated
	if receipt.Result.Replayed {
		status = http.StatusOK
	}
	response.Render(ctx, status, receipt)
}

// HandleReconcile godoc
// @Summary      Reconcile a badge account
// @Description  Replays the transaction log and compares it with the cached balance.
// @Tags         ledger
// @Produce      json
// @Param        tagID path string true "Tag ID"
// @Success      200 {object} domain.Reconciliation
// @Failure      404 {object} response.Envelope
// @Router       /badges/{tagID}/reconcile [get]
// @Security     BearerAuth
func (h *LedgerHandler) HandleReconcile(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	rec, err := h.svc.Reconcile(ctx.Request.Context(), actor.AssociationID, ctx.Param("tagID"))
	if err != nil {
		renderServiceErr(ctx, "v1.HandleReconcile -> h.svc.Reconcile", err)
		return
	}

	response.Render(ctx, http.StatusOK, rec)
}

// renderResult answers a replayed request with 200 and a fresh one with 201.
func renderResult(ctx *gin.Context, result domain.LedgerResult) {
	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}

	response.Render(ctx, status, result)
}
