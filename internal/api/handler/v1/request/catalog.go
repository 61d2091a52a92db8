package request

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/shopspring/decimal"
)

var errNegativeLimit = errors.New("must not be negative")

type CategoryRequest struct {
	Name string `json:"name"`
}

func (req *CategoryRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, 80)),
	)
}

type ProductRequest struct {
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price" swaggertype:"string" example:"2.50"`
	CategoryID uint            `json:"category_id"`
	Available  *bool           `json:"available,omitempty"`
}

func (req *ProductRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&req.Price, validation.By(positiveAmount)),
		validation.Field(&req.CategoryID, validation.Required),
	)
}

// IsAvailable defaults to true when the field is omitted.
func (req *ProductRequest) IsAvailable() bool {
	return req.Available == nil || *req.Available
}

type UpdateAssociationRequest struct {
	Name           string           `json:"name"`
	AllowOverdraft bool             `json:"allow_overdraft"`
	OverdraftLimit decimal.Decimal  `json:"overdraft_limit" swaggertype:"string" example:"10.00"`
	TopUpCeiling   *decimal.Decimal `json:"topup_ceiling,omitempty" swaggertype:"string" example:"200.00"`
}

func (req *UpdateAssociationRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Name, validation.Required, validation.Length(2, 120)),
		validation.Field(&req.OverdraftLimit, validation.By(func(value interface{}) error {
			d, _ := value.(decimal.Decimal)
			if d.IsNegative() {
				return errNegativeLimit
			}
			return cents(d)
		})),
		validation.Field(&req.TopUpCeiling, validation.By(func(value interface{}) error {
			d, _ := value.(*decimal.Decimal)
			if d == nil {
				return nil
			}
			return positiveAmount(*d)
		})),
	)
}
