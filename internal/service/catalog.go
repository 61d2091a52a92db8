package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bartime/bartime-api/internal/domain"
	"github.com/bartime/bartime-api/internal/repository"
)

var (
	ErrUnknownCategory = repository.ErrCategoryNotFound
	ErrUnknownProduct  = repository.ErrProductNotFound
	ErrCategoryExists  = repository.ErrCategoryExists
	ErrCategoryInUse   = repository.ErrCategoryInUse
	ErrInvalidPrice    = errors.New("invalid price")
)

type CatalogRepository interface {
	CreateCategory(ctx context.Context, category domain.Category) (domain.Category, error)
	UpdateCategory(ctx context.Context, category domain.Category) (domain.Category, error)
	DeleteCategory(ctx context.Context, associationID, id uint) error
	FindCategory(ctx context.Context, associationID, id uint) (domain.Category, error)
	FindCategories(ctx context.Context, associationID uint) ([]domain.Category, error)
	CountProductsInCategory(ctx context.Context, associationID, categoryID uint) (int64, error)
	CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (domain.Product, error)
	DeleteProduct(ctx context.Context, associationID, id uint) error
	FindProduct(ctx context.Context, associationID, id uint) (domain.Product, error)
	FindProducts(ctx context.Context, associationID uint, ids []uint) ([]domain.Product, error)
}

type CatalogService struct {
	repo CatalogRepository
}

func NewCatalogService(repo CatalogRepository) *CatalogService {
	return &CatalogService{
		repo: repo,
	}
}

func (s *CatalogService) CreateCategory(ctx context.Context, associationID uint, name string) (domain.Category, error) {
	created, err := s.repo.CreateCategory(ctx, domain.Category{
		AssociationID: associationID,
		Name:          strings.TrimSpace(name),
	})
	if err != nil {
		return domain.Category{}, fmt.Errorf("s.repo.CreateCategory -> %w", err)
	}

	return created, nil
}

func (s *CatalogService) RenameCategory(ctx context.Context, associationID, id uint, name string) (domain.Category, error) {
	updated, err := s.repo.UpdateCategory(ctx, domain.Category{
		ID:            id,
		AssociationID: associationID,
		Name:          strings.TrimSpace(name),
	})
	if err != nil {
		return domain.Category{}, fmt.Errorf("s.repo.UpdateCategory -> %w", err)
	}

	return updated, nil
}

// DeleteCategory refuses to delete a category that products still use.
func (s *CatalogService) DeleteCategory(ctx context.Context, associationID, id uint) error {
	count, err := s.CategoryUsage(ctx, associationID, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrCategoryInUse
	}

	if err := s.repo.DeleteCategory(ctx, associationID, id); err != nil {
		return fmt.Errorf("s.repo.DeleteCategory -> %w", err)
	}

	return nil
}

func (s *CatalogService) Categories(ctx context.Context, associationID uint) ([]domain.Category, error) {
	categories, err := s.repo.FindCategories(ctx, associationID)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindCategories -> %w", err)
	}

	return categories, nil
}

// CategoryUsage counts the products filed under a category.
func (s *CatalogService) CategoryUsage(ctx context.Context, associationID, id uint) (int64, error) {
	if _, err := s.repo.FindCategory(ctx, associationID, id); err != nil {
		return 0, fmt.Errorf("s.repo.FindCategory -> %w", err)
	}

	count, err := s.repo.CountProductsInCategory(ctx, associationID, id)
	if err != nil {
		return 0, fmt.Errorf("s.repo.CountProductsInCategory -> %w", err)
	}

	return count, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	if err := s.checkProduct(ctx, product); err != nil {
		return domain.Product{}, err
	}

	product.Name = strings.TrimSpace(product.Name)
	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, fmt.Errorf("s.repo.CreateProduct -> %w", err)
	}

	return created, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	if err := s.checkProduct(ctx, product); err != nil {
		return domain.Product{}, err
	}

	product.Name = strings.TrimSpace(product.Name)
	updated, err := s.repo.UpdateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, fmt.Errorf("s.repo.UpdateProduct -> %w", err)
	}

	return updated, nil
}

func (s *CatalogService) checkProduct(ctx context.Context, product domain.Product) error {
	if !product.Price.IsPositive() || !domain.IsCents(product.Price) {
		return ErrInvalidPrice
	}

	if _, err := s.repo.FindCategory(ctx, product.AssociationID, product.CategoryID); err != nil {
		return fmt.Errorf("s.repo.FindCategory -> %w", err)
	}

	return nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, associationID, id uint) error {
	if err := s.repo.DeleteProduct(ctx, associationID, id); err != nil {
		return fmt.Errorf("s.repo.DeleteProduct -> %w", err)
	}

	return nil
}

func (s *CatalogService) Product(ctx context.Context, associationID, id uint) (domain.Product, error) {
	product, err := s.repo.FindProduct(ctx, associationID, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("s.repo.FindProduct -> %w", err)
	}

	return product, nil
}

func (s *CatalogService) Products(ctx context.Context, associationID uint) ([]domain.Product, error) {
	products, err := s.repo.FindProducts(ctx, associationID, nil)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindProducts -> %w", err)
	}

	return products, nil
}

// Price resolves the products of a cart. Lines naming the same product are
// merged.
func (s *CatalogService) Price(ctx context.Context, associationID uint, lines []domain.CartLine) ([]domain.PricedLine, error) {
	quantities := make(map[uint]int, len(lines))
	ids := make([]uint, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity of product %d", ErrInvalidAmount, line.ProductID)
		}
		if _, seen := quantities[line.ProductID]; !seen {
			ids = append(ids, line.ProductID)
		}
		quantities[line.ProductID] += line.Quantity
	}

	products, err := s.repo.FindProducts(ctx, associationID, ids)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindProducts -> %w", err)
	}

	byID := make(map[uint]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	priced := make([]domain.PricedLine, 0, len(ids))
	for _, id := range ids {
		product, ok := byID[id]
		if !ok || !product.Available {
			return nil, fmt.Errorf("%w: %d", ErrUnknownProduct, id)
		}
		priced = append(priced, domain.PricedLine{
			Product:  product,
			Quantity: quantities[id],
			Subtotal: product.Price.Mul(decimalFromInt(quantities[id])),
		})
	}

	return priced, nil
}
