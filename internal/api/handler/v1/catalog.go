package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bartime/bartime-api/internal/api/handler/v1/request"
	"github.com/bartime/bartime-api/internal/api/handler/v1/response"
	"github.com/bartime/bartime-api/internal/domain"
)

type CatalogService interface {
	CreateCategory(ctx context.Context, associationID uint, name string) (domain.Category, error)
	RenameCategory(ctx context.Context, associationID, id uint, name string) (domain.Category, error)
	DeleteCategory(ctx context.Context, associationID, id uint) error
	Categories(ctx context.Context, associationID uint) ([]domain.Category, error)
	CategoryUsage(ctx context.Context, associationID, id uint) (int64, error)
	CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (domain.Product, error)
	DeleteProduct(ctx context.Context, associationID, id uint) error
	Product(ctx context.Context, associationID, id uint) (domain.Product, error)
	Products(ctx context.Context, associationID uint) ([]domain.Product, error)
}

type CatalogHandler struct {
	svc CatalogService
}

func NewCatalogHandler(svc CatalogService) *CatalogHandler {
	return &CatalogHandler{
		svc: svc,
	}
}

// HandleListCategories godoc
// @Summary      List categories
// @Tags         catalog
// @Produce      json
// @Success      200 {array} domain.Category
// @Router       /categories [get]
// @Security     BearerAuth
func (h *CatalogHandler) HandleListCategories(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	categories, err := h.svc.Categories(ctx.Request.Context(), actor.AssociationID)
	if err != nil {
		renderServiceErr(ctx, "v1.HandleListCategories -> h.svc.Categories", err)
		return
	}

	response.Render(ctx, http.StatusOK, categories)
}

// HandleCreateCategory godoc
// @Summary      Create a category
// @Tags         catalog
// @Accept       json
// @Produce      json
// @Param        request body request.CategoryRequest true "request body"
// @Success      201 {object} domain.Category
// @Failure      409 {object} response.Envelope
// @Router       /categories [post]
// @Security     BearerAuth
func (h *CatalogHandler) HandleCreateCategory(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	var req request.CategoryRequest
	if !bind(ctx, &req) {
		return
	}

	category, err := h.svc.CreateCategory(ctx.Request.Context(), actor.AssociationID, req.Name)
	if err != nil {
		renderServiceErr(ctx, "v1.HandleCreateCategory -> h.svc.CreateCategory", err)
		return
	}

	response.Render(ctx, http.StatusCreated, category)
}

// HandleUpdateCategory godoc
// @Summary      Rename a category
// @Tags         catalog
// @Accept       json
// @Produce      json
// @Param        categoryID path int true "Category ID"
// @Param        request body request.CategoryRequest true "request body"
// @Success      200 {object} domain.Category
// @Failure      404 {object} response.Envelope
// @Failure      409 {object} response.Envelope
// @Router       /categories/{categoryID} [put]
// @Security     BearerAuth
func (h *CatalogHandler) HandleUpdateCategory(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	id, ok := uintParam(ctx, "categoryID")
	if !ok {
		return
	}

	var req request.CategoryRequest
	if !bind(ctx, &req) {
		return
	}

	category, err := h.svc.RenameCategory(ctx.Request.Context(), actor.AssociationID, id, req.Name)
	if err != nil {
		renderServiceErr(ctx, "v1.HandleUpdateCategory -> h.svc.RenameCategory", err)
		return
	}

	response.Render(ctx, http.StatusOK, category)
}

// HandleDeleteCategory godoc
// @Summary      Delete a category
// @Description  Fails with Conflict while products are filed under it.
// @Tags         catalog
// @Param        categoryID path int true "Category ID"
// @Success      204
// @Failure      404 {object} response.Envelope
// @Failure      409 {object} response.Envelope
// @Router       /categories/{categoryID} [delete]
// @Security     BearerAuth
func (h *CatalogHandler) HandleDeleteCategory(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	id, ok := uintParam(ctx, "categoryID")
	if !ok {
		return
	}

	if err := h.svc.DeleteCategory(ctx.Request.Context(), actor.AssociationID, id); err != nil {
		renderServiceErr(ctx, "v1.HandleDeleteCategory -> h.svc.DeleteCategory", err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

// HandleCategoryUsage godoc
// @Summary      Category usage
// @Tags         catalog
// @Produce      json
// @Param        categoryID path int true "Category ID"
// @Success      200 {object} response.CategoryUsageResponse
// @Failure      404 {object} response.Envelope
// @Router       /categories/{categoryID}/usage [get]
// @Security     BearerAuth
func (h *CatalogHandler) HandleCategoryUsage(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	id, ok := uintParam(ctx, "categoryID")
	if !ok {
		return
	}

	count, err := h.svc.CategoryUsage(ctx.Request.Context(), actor.AssociationID, id)
	if err != nil {
		renderServiceErr(ctx, "v1.HandleCategoryUsage -> h.svc.CategoryUsage", err)
		return
	}

	response.Render(ctx, http.StatusOK, response.CategoryUsageResponse{
		CategoryID: id,
		Products:   count,
		InUse:      count > 0,
	})
}

// HandleListProducts godoc
// @Summary      List products
// @Tags         catalog
// @Produce      json
// @Success      200 {array} domain.Product
// @Router       /products [get]
// @Security     BearerAuth
func (h *CatalogHandler) HandleListProducts(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	products, err := h.svc.Products(ctx.Request.Context(), actor.AssociationID)
	if err != nil {
		renderServiceErr(ctx, "v1.HandleListProducts -> h.svc.Products", err)
		return
	}

	response.Render(ctx, http.StatusOK, products)
}

// HandleGetProduct godoc
// @Summary      Get a product
// @Tags         catalog
// @Produce      json
// @Param        productID path int true "Product ID"
// @Success      200 {object} domain.Product
// @Failure      404 {object} response.Envelope
// @Router       /products/{productID} [get]
// @Security     BearerAuth
func (h *CatalogHandler) HandleGetProduct(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	id, ok := uintParam(ctx, "productID")
	if !ok {
		return
	}

	product, err := h.svc.Product(ctx.Request.Context(), actor.AssociationID, id)
	if err != nil {
		renderServiceErr(ctx, "v1.HandleGetProduct -> h.svc.Product", err)
		return
	}

	response.Render(ctx, http.StatusOK, product)
}

// HandleCreateProduct godoc
// @Summary      Create a product
// @Tags         catalog
// @Accept       json
// @Produce      json
// @Param        request body request.ProductRequest true "request body"
// @Success      201 {object} domain.Product
// @Failure      400 {object} response.Envelope
// @Failure      404 {object} response.Envelope
// @Router       /products [post]
// @Security     BearerAuth
func (h *CatalogHandler) HandleCreateProduct(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	var req request.ProductRequest
	if !bind(ctx, &req) {
		return
	}

	product, err := h.svc.CreateProduct(ctx.Request.Context(), productFrom(actor.AssociationID, 0, req))
	if err != nil {
		renderServiceErr(ctx, "v1.HandleCreateProduct -> h.svc.CreateProduct", err)
		return
	}

	response.Render(ctx, http.StatusCreated, product)
}

// HandleUpdateProduct godoc
// @Summary      Update a product
// @Tags         catalog
// @Accept       json
// @Produce      json
// @Param        productID path int true "Product ID"
// @Param        request body request.ProductRequest true "request body"
// @Success      200 {object} domain.Product
// @Failure      400 {object} response.Envelope
// @Failure      404 {object} response.Envelope
// @Router       /products/{productID} [put]
// @Security     BearerAuth
func (h *CatalogHandler) HandleUpdateProduct(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	id, ok := uintParam(ctx, "productID")
	if !ok {
		return
	}

	var req request.ProductRequest
	if !bind(ctx, &req) {
		return
	}

	product, err := h.svc.UpdateProduct(ctx.Request.Context(), productFrom(actor.AssociationID, id, req))
	if err != nil {
		renderServiceErr(ctx, "v1.HandleUpdateProduct -> h.svc.UpdateProduct", err)
		return
	}

	response.Render(ctx, http.StatusOK, product)
}

// HandleDeleteProduct godoc
// @Summary      Delete a product
// @Tags         catalog
// @Param        productID path int true "Product ID"
// @Success      204
// @Failure      404 {object} response.Envelope
// @Router       /products/{productID} [delete]
// @Security     BearerAuth
func (h *CatalogHandler) HandleDeleteProduct(ctx *gin.Context) {
	actor, ok := actorOf(ctx)
	if !ok {
		return
	}

	id, ok := uintParam(ctx, "productID")
	if !ok {
		return
	}

	if err := h.svc.DeleteProduct(ctx.Request.Context(), actor.AssociationID, id); err != nil {
		renderServiceErr(ctx, "v1.HandleDeleteProduct -> h.svc.DeleteProduct", err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

func productFrom(associationID, id uint, req request.ProductRequest) domain.Product {
	return domain.Product{
		ID:            id,
		AssociationID: associationID,
		CategoryID:    req.CategoryID,
		Name:          req.Name,
		Price:         req.Price,
		Available:     req.IsAvailable(),
	}
}
