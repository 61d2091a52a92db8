package request

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/shopspring/decimal"

	"github.com/bartime/bartime-api/internal/domain"
)

var (
	errAmountNotPositive = errors.New("must be greater than zero")
	errAmountZero        = errors.New("must not be zero")
	errAmountPrecision   = errors.New("must have at most two decimal places")
	errAmountTooLarge    = fmt.Errorf("must not exceed %s", domain.MaxAmount.StringFixed(2))
	errNegativeVersion   = errors.New("must not be negative")
	errEmptyCart         = errors.New("must contain at least one item")
)

func positiveAmount(value interface{}) error {
	d, _ := value.(decimal.Decimal)
	if !d.IsPositive() {
		return errAmountNotPositive
	}
	return cents(d)
}

func nonZeroAmount(value interface{}) error {
	d, _ := value.(decimal.Decimal)
	if d.IsZero() {
		return errAmountZero
	}
	return cents(d)
}

func cents(d decimal.Decimal) error {
	if !domain.IsCents(d) {
		return errAmountPrecision
	}
	if d.Abs().GreaterThan(domain.MaxAmount) {
		return errAmountTooLarge
	}
	return nil
}

func expectedVersion(value interface{}) error {
	v, _ := value.(*int64)
	if v != nil && *v < 0 {
		return errNegativeVersion
	}
	return nil
}

type PairBadgeRequest struct {
	TagID    string `json:"tag_id"`
	MemberID uint   `json:"member_id"`
}

func (req *PairBadgeRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.TagID, validation.Required, validation.Length(1, 64)),
		validation.Field(&req.MemberID, validation.Required),
	)
}

// LedgerRequest is the body of charge and top-up. Reference is generated by
// the client and makes the call safe to resend.
type LedgerRequest struct {
	Amount          decimal.Decimal `json:"amount" swaggertype:"string" example:"3.50"`
	Reference       string          `json:"reference"`
	ExpectedVersion *int64          `json:"expected_version,omitempty"`
}

func (req *LedgerRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Amount, validation.By(positiveAmount)),
		validation.Field(&req.Reference, validation.Required, validation.Length(1, 64)),
		validation.Field(&req.ExpectedVersion, validation.By(expectedVersion)),
	)
}

type AdjustRequest struct {
	Amount          decimal.Decimal `json:"amount" swaggertype:"string" example:"-2.00"`
	Reason          string          `json:"reason"`
	Reference       string          `json:"reference,omitempty"`
	ExpectedVersion *int64          `json:"expected_version,omitempty"`
}

func (req *AdjustRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Amount, validation.By(nonZeroAmount)),
		validation.Field(&req.Reason, validation.Required, validation.Length(3, 255)),
		validation.Field(&req.Reference, validation.Length(1, 64)),
		validation.Field(&req.ExpectedVersion, validation.By(expectedVersion)),
	)
}

type CartItem struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type PurchaseRequest struct {
	Items           []CartItem `json:"items"`
	Reference       string     `json:"reference"`
	ExpectedVersion *int64     `json:"expected_version,omitempty"`
}

func (req *PurchaseRequest) Validate() error {
	err := validation.ValidateStruct(
		req,
		validation.Field(&req.Reference, validation.Required, validation.Length(1, 64)),
		validation.Field(&req.ExpectedVersion, validation.By(expectedVersion)),
	)
	if err != nil {
		return err
	}

	if len(req.Items) == 0 {
		return validation.Errors{"items": errEmptyCart}
	}
	for i, item := range req.Items {
		err := validation.ValidateStruct(
			&item,
			validation.Field(&item.ProductID, validation.Required),
			validation.Field(&item.Quantity, validation.Required, validation.Min(1), validation.Max(99)),
		)
		if err != nil {
			return validation.Errors{fmt.Sprintf("items[%d]", i): err}
		}
	}

	return nil
}

func (req *PurchaseRequest) Lines() []domain.CartLine {
	lines := make([]domain.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, domain.CartLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	return lines
}

type ScanRequest struct {
	TagID string `json:"tag_id"`
}

func (req *ScanRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.TagID, validation.Required, validation.Length(1, 64)),
	)
}
