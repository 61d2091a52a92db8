package repository

import (
	"context"
	"fmt"

	"github.com/bartime/bartime-api/internal/domain"
	"github.com/bartime/bartime-api/internal/repository/dao"
)

var (
	ErrCategoryNotFound = dao.ErrCategoryNotFound
	ErrProductNotFound  = dao.ErrProductNotFound
	ErrCategoryExists   = dao.ErrCategoryExists
	ErrCategoryInUse    = dao.ErrCategoryInUse
)

type CatalogDAO interface {
	InsertCategory(ctx context.Context, category dao.Category) (dao.Category, error)
	UpdateCategory(ctx context.Context, category dao.Category) (dao.Category, error)
	DeleteCategory(ctx context.Context, associationID, id uint) error
	FindCategory(ctx context.Context, associationID, id uint) (dao.Category, error)
	FindCategories(ctx context.Context, associationID uint) ([]dao.Category, error)
	CountProductsInCategory(ctx context.Context, associationID, categoryID uint) (int64, error)
	InsertProduct(ctx context.Context, product dao.Product) (dao.Product, error)
	UpdateProduct(ctx context.Context, product dao.Product) (dao.Product, error)
	DeleteProduct(ctx context.Context, associationID, id uint) error
	FindProduct(ctx context.Context, associationID, id uint) (dao.Product, error)
	FindProducts(ctx context.Context, associationID uint, ids []uint) ([]dao.Product, error)
}

type CatalogRepository struct {
	dao CatalogDAO
}

func NewCatalogRepository(dao CatalogDAO) *CatalogRepository {
	return &CatalogRepository{
		dao: dao,
	}
}

func (r *CatalogRepository) CreateCategory(ctx context.Context, category domain.Category) (domain.Category, error) {
	created, err := r.dao.InsertCategory(ctx, dao.Category{
		AssociationID: category.AssociationID,
		Name:          category.Name,
	})
	if err != nil {
		return domain.Category{}, fmt.Errorf("r.dao.InsertCategory -> %w", err)
	}

	return categoryToDomain(created), nil
}

func (r *CatalogRepository) UpdateCategory(ctx context.Context, category domain.Category) (domain.Category, error) {
	updated, err := r.dao.UpdateCategory(ctx, dao.Category{
		ID:            category.ID,
		AssociationID: category.AssociationID,
		Name:          category.Name,
	})
	if err != nil {
		return domain.Category{}, fmt.Errorf("r.dao.UpdateCategory -> %w", err)
	}

	return categoryToDomain(updated), nil
}

func (r *CatalogRepository) DeleteCategory(ctx context.Context, associationID, id uint) error {
	if err := r.dao.DeleteCategory(ctx, associationID, id); err != nil {
		return fmt.Errorf("r.dao.DeleteCategory -> %w", err)
	}

	return nil
}

func (r *CatalogRepository) FindCategory(ctx context.Context, associationID, id uint) (domain.Category, error) {
	found, err := r.dao.FindCategory(ctx, associationID, id)
	if err != nil {
		return domain.Category{}, fmt.Errorf("r.dao.FindCategory -> %w", err)
	}

	return categoryToDomain(found), nil
}

func (r *CatalogRepository) FindCategories(ctx context.Context, associationID uint) ([]domain.Category, error) {
	found, err := r.dao.FindCategories(ctx, associationID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindCategories -> %w", err)
	}

	categories := make([]domain.Category, 0, len(found))
	for _, c := range found {
		categories = append(categories, categoryToDomain(c))
	}

	return categories, nil
}

func (r *CatalogRepository) CountProductsInCategory(ctx context.Context, associationID, categoryID uint) (int64, error) {
	count, err := r.dao.CountProductsInCategory(ctx, associationID, categoryID)
	if err != nil {
		return 0, fmt.Errorf("r.dao.CountProductsInCategory -> %w", err)
	}

	return count, nil
}

func (r *CatalogRepository) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	created, err := r.dao.InsertProduct(ctx, productToDAO(product))
	if err != nil {
		return domain.Product{}, fmt.Errorf("r.dao.InsertProduct -> %w", err)
	}

	return productToDomain(created), nil
}

func (r *CatalogRepository) UpdateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	updated, err := r.dao.UpdateProduct(ctx, productToDAO(product))
	if err != nil {
		return domain.Product{}, fmt.Errorf("r.dao.UpdateProduct -> %w", err)
	}

	return productToDomain(updated), nil
}

func (r *CatalogRepository) DeleteProduct(ctx context.Context, associationID, id uint) error {
	if err := r.dao.DeleteProduct(ctx, associationID, id); err != nil {
		return fmt.Errorf("r.dao.DeleteProduct -> %w", err)
	}

	return nil
}

func (r *CatalogRepository) FindProduct(ctx context.Context, associationID, id uint) (domain.Product, error) {
	found, err := r.dao.FindProduct(ctx, associationID, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("r.dao.FindProduct -> %w", err)
	}

	return productToDomain(found), nil
}

// FindProducts lists the association's products; a nil ids slice lists all
// of them.
func (r *CatalogRepository) FindProducts(ctx context.Context, associationID uint, ids []uint) ([]domain.Product, error) {
	found, err := r.dao.FindProducts(ctx, associationID, ids)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindProducts -> %w", err)
	}

	products := make([]domain.Product, 0, len(found))
	for _, p := range found {
		products = append(products, productToDomain(p))
	}

	return products, nil
}

func categoryToDomain(c dao.Category) domain.Category {
	return domain.Category{
		ID:            c.ID,
		AssociationID: c.AssociationID,
		Name:          c.Name,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func productToDAO(p domain.Product) dao.Product {
	return dao.Product{
		ID:            p.ID,
		AssociationID: p.AssociationID,
		CategoryID:    p.CategoryID,
		Name:          p.Name,
		Price:         p.Price,
		Available:     p.Available,
	}
}

func productToDomain(p dao.Product) domain.Product {
	return domain.Product{
		ID:            p.ID,
		AssociationID: p.AssociationID,
		CategoryID:    p.CategoryID,
		Name:          p.Name,
		Price:         p.Price,
		Available:     p.Available,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
