package dao

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryExists   = errors.New("category already exists")
	ErrCategoryInUse    = errors.New("category in use")
)

type Category struct {
	ID            uint      `gorm:"primaryKey"`
	AssociationID uint      `gorm:"not null;uniqueIndex:uni_categories_association_name,priority:1"`
	Name          string    `gorm:"not null;uniqueIndex:uni_categories_association_name,priority:2"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

type Product struct {
	ID            uint            `gorm:"primaryKey"`
	AssociationID uint            `gorm:"not null;index"`
	CategoryID    uint            `gorm:"not null;index"`
	Name          string          `gorm:"not null"`
	Price         decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Available     bool            `gorm:"not null"`
	CreatedAt     time.Time       `gorm:"not null"`
	UpdatedAt     time.Time       `gorm:"not null"`

	Category Category `gorm:"foreignKey:CategoryID"`
}

type CatalogDAO struct {
	db *gorm.DB
}

func NewCatalogDAO(db *gorm.DB) *CatalogDAO {
	return &CatalogDAO{
		db: db,
	}
}

func (d *CatalogDAO) InsertCategory(ctx context.Context, category Category) (Category, error) {
	if err := d.db.WithContext(ctx).Create(&category).Error; err != nil {
		if isUniqueViolation(err, "uni_categories_association_name") {
			return Category{}, ErrCategoryExists
		}
		return Category{}, err
	}

	return category, nil
}

func (d *CatalogDAO) UpdateCategory(ctx context.Context, category Category) (Category, error) {
	result := d.db.WithContext(ctx).Model(&category).
		Where("association_id = ?", category.AssociationID).
		Select("name", "updated_at").
		Updates(&category)
	if result.Error != nil {
		if isUniqueViolation(result.Error, "uni_categories_association_name") {
			return Category{}, ErrCategoryExists
		}
		return Category{}, result.Error
	}
	if result.RowsAffected == 0 {
		return Category{}, ErrCategoryNotFound
	}

	return d.FindCategory(ctx, category.AssociationID, category.ID)
}

func (d *CatalogDAO) DeleteCategory(ctx context.Context, associationID, id uint) error {
	result := d.db.WithContext(ctx).
		Where("association_id = ?", associationID).
		Delete(&Category{}, id)
	if result.Error != nil {
		if isForeignKeyViolation(result.Error) {
			return ErrCategoryInUse
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCategoryNotFound
	}

	return nil
}

func (d *CatalogDAO) FindCategory(ctx context.Context, associationID, id uint) (Category, error) {
	var category Category

	result := d.db.WithContext(ctx).
		Where("association_id = ?", associationID).
		First(&category, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Category{}, ErrCategoryNotFound
		}
		return Category{}, result.Error
	}

	return category, nil
}

func (d *CatalogDAO) FindCategories(ctx context.Context, associationID uint) ([]Category, error) {
	var categories []Category

	err := d.db.WithContext(ctx).
		Where("association_id = ?", associationID).
		Order("name").
		Find(&categories).Error
	if err != nil {
		return nil, err
	}

	return categories, nil
}

func (d *CatalogDAO) CountProductsInCategory(ctx context.Context, associationID, categoryID uint) (int64, error) {
	var count int64

	err := d.db.WithContext(ctx).Model(&Product{}).
		Where("association_id = ? AND category_id = ?", associationID, categoryID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (d *CatalogDAO) InsertProduct(ctx context.Context, product Product) (Product, error) {
	if err := d.db.WithContext(ctx).Omit("Category").Create(&product).Error; err != nil {
		if isForeignKeyViolation(err) {
			return Product{}, ErrCategoryNotFound
		}
		return Product{}, err
	}

	return product, nil
}

func (d *CatalogDAO) UpdateProduct(ctx context.Context, product Product) (Product, error) {
	result := d.db.WithContext(ctx).Model(&product).
		Where("association_id = ?", product.AssociationID).
		Select("category_id", "name", "price", "available", "updated_at").
		Updates(&product)
	if result.Error != nil {
		if isForeignKeyViolation(result.Error) {
			return Product{}, ErrCategoryNotFound
		}
		return Product{}, result.Error
	}
	if result.RowsAffected == 0 {
		return Product{}, ErrProductNotFound
	}

	return d.FindProduct(ctx, product.AssociationID, product.ID)
}

func (d *CatalogDAO) DeleteProduct(ctx context.Context, associationID, id uint) error {
	result := d.db.WithContext(ctx).
		Where("association_id = ?", associationID).
		Delete(&Product{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

func (d *CatalogDAO) FindProduct(ctx context.Context, associationID, id uint) (Product, error) {
	var product Product

	result := d.db.WithContext(ctx).
		Where("association_id = ?", associationID).
		First(&product, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, result.Error
	}

	return product, nil
}

func (d *CatalogDAO) FindProducts(ctx context.Context, associationID uint, ids []uint) ([]Product, error) {
	var products []Product

	query := d.db.WithContext(ctx).Where("association_id = ?", associationID)
	if ids != nil {
		query = query.Where("id IN ?", ids)
	}

	if err := query.Order("category_id, name").Find(&products).Error; err != nil {
		return nil, err
	}

	return products, nil
}
