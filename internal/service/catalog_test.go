package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartime/bartime-api/internal/domain"
)

func newCatalog(t *testing.T, f *fixture) (*CatalogService, domain.Product, domain.Product) {
	t.Helper()

	svc := NewCatalogService(f.store.Catalog())
	ctx := context.Background()

	drinks, err := svc.CreateCategory(ctx, f.association.ID, " Drinks ")
	require.NoError(t, err)

	beer, err := svc.CreateProduct(ctx, domain.Product{
		AssociationID: f.association.ID,
		CategoryID:    drinks.ID,
		Name:          "Beer",
		Price:         decimal.RequireFromString("2.50"),
		Available:     true,
	})
	require.NoError(t, err)

	crisps, err := svc.CreateProduct(ctx, domain.Product{
		AssociationID: f.association.ID,
		CategoryID:    drinks.ID,
		Name:          "Crisps",
		Price:         decimal.RequireFromString("1.20"),
		Available:     true,
	})
	require.NoError(t, err)

	return svc, beer, crisps
}

func TestCatalog_Categories(t *testing.T) {
	f := newFixture(t)
	svc, beer, _ := newCatalog(t, f)
	ctx := context.Background()

	categories, err := svc.Categories(ctx, f.association.ID)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "Drinks", categories[0].Name)

	_, err = svc.CreateCategory(ctx, f.association.ID, "Drinks")
	assert.ErrorIs(t, err, ErrCategoryExists)

	count, err := svc.CategoryUsage(ctx, f.association.ID, beer.CategoryID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	err = svc.DeleteCategory(ctx, f.association.ID, beer.CategoryID)
	assert.ErrorIs(t, err, ErrCategoryInUse)

	snacks, err := svc.CreateCategory(ctx, f.association.ID, "Snacks")
	require.NoError(t, err)

	renamed, err := svc.RenameCategory(ctx, f.association.ID, snacks.ID, "Food")
	require.NoError(t, err)
	assert.Equal(t, "Food", renamed.Name)

	require.NoError(t, svc.DeleteCategory(ctx, f.association.ID, snacks.ID))

	_, err = svc.CategoryUsage(ctx, f.association.ID, snacks.ID)
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestCatalog_Products(t *testing.T) {
	f := newFixture(t)
	svc, beer, _ := newCatalog(t, f)
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, domain.Product{
		AssociationID: f.association.ID,
		CategoryID:    beer.CategoryID,
		Name:          "Free lunch",
		Price:         decimal.Zero,
	})
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = svc.CreateProduct(ctx, domain.Product{
		AssociationID: f.association.ID,
		CategoryID:    9999,
		Name:          "Orphan",
		Price:         decimal.RequireFromString("1.00"),
	})
	assert.ErrorIs(t, err, ErrUnknownCategory)

	beer.Price = decimal.RequireFromString("3.00")
	beer.Available = false
	updated, err := svc.UpdateProduct(ctx, beer)
	require.NoError(t, err)
	requireAmount(t, "3.00", updated.Price)
	assert.False(t, updated.Available)

	products, err := svc.Products(ctx, f.association.ID)
	require.NoError(t, err)
	assert.Len(t, products, 2)

	require.NoError(t, svc.DeleteProduct(ctx, f.association.ID, beer.ID))

	_, err = svc.Product(ctx, f.association.ID, beer.ID)
	assert.ErrorIs(t, err, ErrUnknownProduct)
}

func TestCatalog_Price(t *testing.T) {
	f := newFixture(t)
	svc, beer, crisps := newCatalog(t, f)
	ctx := context.Background()

	lines, err := svc.Price(ctx, f.association.ID, []domain.CartLine{
		{ProductID: beer.ID, Quantity: 1},
		{ProductID: crisps.ID, Quantity: 1},
		{ProductID: beer.ID, Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, 2, lines[0].Quantity)
	requireAmount(t, "5.00", lines[0].Subtotal)
	requireAmount(t, "1.20", lines[1].Subtotal)

	_, err = svc.Price(ctx, f.association.ID, []domain.CartLine{{ProductID: beer.ID, Quantity: 0}})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Price(ctx, f.association.ID+1, []domain.CartLine{{ProductID: beer.ID, Quantity: 1}})
	assert.ErrorIs(t, err, ErrUnknownProduct)
}

func TestCheckout(t *testing.T) {
	f := newFixture(t)
	catalog, beer, crisps := newCatalog(t, f)
	f.pair(t, "TAG-1")
	checkout := NewCheckoutService(catalog, f.ledger)
	ctx := context.Background()

	_, err := f.ledger.TopUp(ctx, f.request("TAG-1", "10.00", "t1"))
	require.NoError(t, err)

	req := CheckoutRequest{
		TagID:     "TAG-1",
		Lines:     []domain.CartLine{{ProductID: beer.ID, Quantity: 2}, {ProductID: crisps.ID, Quantity: 1}},
		Reference: "order-1",
		Actor:     f.actor(),
	}

	receipt, err := checkout.Checkout(ctx, req)
	require.NoError(t, err)
	requireAmount(t, "6.20", receipt.Total)
	requireAmount(t, "3.80", receipt.Result.Balance)
	assert.Equal(t, "2x Beer, 1x Crisps", receipt.Result.Transaction.Note)
	assert.Equal(t, domain.TransactionPurchase, receipt.Result.Transaction.Type)

	receipt, err = checkout.Checkout(ctx, req)
	require.NoError(t, err)
	assert.True(t, receipt.Result.Replayed)
	requireAmount(t, "3.80", receipt.Result.Balance)

	req.Reference = "order-2"
	_, err = checkout.Checkout(ctx, req)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	req.Lines = nil
	_, err = checkout.Checkout(ctx, req)
	assert.ErrorIs(t, err, ErrEmptyCart)
}
