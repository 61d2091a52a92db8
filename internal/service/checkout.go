package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bartime/bartime-api/internal/domain"
)

var ErrEmptyCart = errors.New("empty cart")

type CartPricer interface {
	Price(ctx context.Context, associationID uint, lines []domain.CartLine) ([]domain.PricedLine, error)
}

type Charger interface {
	Charge(ctx context.Context, req LedgerRequest) (domain.LedgerResult, error)
}

// CheckoutService turns a cart into a single purchase on a badge. Prices
// are resolved here so the ledger only ever sees an amount.
type CheckoutService struct {
	catalog CartPricer
	ledger  Charger
}

func NewCheckoutService(catalog CartPricer, ledger Charger) *CheckoutService {
	return &CheckoutService{
		catalog: catalog,
		ledger:  ledger,
	}
}

type CheckoutRequest struct {
	TagID           string
	Lines           []domain.CartLine
	Reference       string
	ExpectedVersion *int64
	Actor           domain.Actor
}

func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (domain.Receipt, error) {
	if len(req.Lines) == 0 {
		return domain.Receipt{}, ErrEmptyCart
	}

	lines, err := s.catalog.Price(ctx, req.Actor.AssociationID, req.Lines)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("s.catalog.Price -> %w", err)
	}

	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal)
	}

	result, err := s.ledger.Charge(ctx, LedgerRequest{
		TagID:           req.TagID,
		Amount:          total,
		Reference:       req.Reference,
		Note:            describe(lines),
		ExpectedVersion: req.ExpectedVersion,
		Actor:           req.Actor,
	})
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("s.ledger.Charge -> %w", err)
	}

	return domain.Receipt{Lines: lines, Total: total, Result: result}, nil
}

// describe renders a cart as "2x Beer, 1x Crisps".
func describe(lines []domain.PricedLine) string {
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		parts = append(parts, fmt.Sprintf("%dx %s", line.Quantity, line.Product.Name))
	}

	return strings.Join(parts, ", ")
}

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}
