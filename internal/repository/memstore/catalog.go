package memstore

import (
	"context"
	"slices"
	"sort"

	"github.com/bartime/bartime-api/internal/domain"
	"github.com/bartime/bartime-api/internal/repository"
)

type CatalogStore struct {
	s *Store
}

func (c *CatalogStore) CreateCategory(_ context.Context, category domain.Category) (domain.Category, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	if c.nameTakenLocked(category) {
		return domain.Category{}, repository.ErrCategoryExists
	}

	now := c.s.now()
	category.ID = c.s.id()
	category.CreatedAt, category.UpdatedAt = now, now
	c.s.categories[category.ID] = category

	return category, nil
}

func (c *CatalogStore) nameTakenLocked(category domain.Category) bool {
	for _, existing := range c.s.categories {
		if existing.ID != category.ID && existing.AssociationID == category.AssociationID && existing.Name == category.Name {
			return true
		}
	}

	return false
}

func (c *CatalogStore) UpdateCategory(_ context.Context, category domain.Category) (domain.Category, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	current, ok := c.s.categories[category.ID]
	if !ok || current.AssociationID != category.AssociationID {
		return domain.Category{}, repository.ErrCategoryNotFound
	}
	if c.nameTakenLocked(category) {
		return domain.Category{}, repository.ErrCategoryExists
	}

	current.Name = category.Name
	current.UpdatedAt = c.s.now()
	c.s.categories[current.ID] = current

	return current, nil
}

func (c *CatalogStore) DeleteCategory(_ context.Context, associationID, id uint) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	current, ok := c.s.categories[id]
	if !ok || current.AssociationID != associationID {
		return repository.ErrCategoryNotFound
	}
	for _, product := range c.s.products {
		if product.CategoryID == id {
			return repository.ErrCategoryInUse
		}
	}
	delete(c.s.categories, id)

	return nil
}

func (c *CatalogStore) FindCategory(_ context.Context, associationID, id uint) (domain.Category, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	category, ok := c.s.categories[id]
	if !ok || category.AssociationID != associationID {
		return domain.Category{}, repository.ErrCategoryNotFound
	}

	return category, nil
}

func (c *CatalogStore) FindCategories(_ context.Context, associationID uint) ([]domain.Category, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	categories := []domain.Category{}
	for _, category := range c.s.categories {
		if category.AssociationID == associationID {
			categories = append(categories, category)
		}
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })

	return categories, nil
}

func (c *CatalogStore) CountProductsInCategory(_ context.Context, associationID, categoryID uint) (int64, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	var count int64
	for _, product := range c.s.products {
		if product.AssociationID == associationID && product.CategoryID == categoryID {
			count++
		}
	}

	return count, nil
}

func (c *CatalogStore) CreateProduct(_ context.Context, product domain.Product) (domain.Product, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	if _, ok := c.s.categories[product.CategoryID]; !ok {
		return domain.Product{}, repository.ErrCategoryNotFound
	}

	now := c.s.now()
	product.ID = c.s.id()
	product.CreatedAt, product.UpdatedAt = now, now
	c.s.products[product.ID] = product

	return product, nil
}

func (c *CatalogStore) UpdateProduct(_ context.Context, product domain.Product) (domain.Product, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	current, ok := c.s.products[product.ID]
	if !ok || current.AssociationID != product.AssociationID {
		return domain.Product{}, repository.ErrProductNotFound
	}
	if _, ok := c.s.categories[product.CategoryID]; !ok {
		return domain.Product{}, repository.ErrCategoryNotFound
	}

	product.CreatedAt = current.CreatedAt
	product.UpdatedAt = c.s.now()
	c.s.products[product.ID] = product

	return product, nil
}

func (c *CatalogStore) DeleteProduct(_ context.Context, associationID, id uint) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	current, ok := c.s.products[id]
	if !ok || current.AssociationID != associationID {
		return repository.ErrProductNotFound
	}
	delete(c.s.products, id)

	return nil
}

func (c *CatalogStore) FindProduct(_ context.Context, associationID, id uint) (domain.Product, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	product, ok := c.s.products[id]
	if !ok || product.AssociationID != associationID {
		return domain.Product{}, repository.ErrProductNotFound
	}

	return product, nil
}

func (c *CatalogStore) FindProducts(_ context.Context, associationID uint, ids []uint) ([]domain.Product, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	products := []domain.Product{}
	for _, product := range c.s.products {
		if product.AssociationID != associationID {
			continue
		}
		if ids != nil && !slices.Contains(ids, product.ID) {
			continue
		}
		products = append(products, product)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })

	return products, nil
}
