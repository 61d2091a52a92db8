package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID            uint      `json:"id"`
	AssociationID uint      `json:"association_id"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Product struct {
	ID            uint            `json:"id"`
	AssociationID uint            `json:"association_id"`
	CategoryID    uint            `json:"category_id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Available     bool            `json:"available"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type CartLine struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type PricedLine struct {
	Product  Product         `json:"product"`
	Quantity int             `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type Receipt struct {
	Lines  []PricedLine    `json:"lines"`
	Total  decimal.Decimal `json:"total"`
	Result LedgerResult    `json:"result"`
}
