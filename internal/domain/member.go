package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAssociation = "association"
	RoleAdherent    = "adherent"

	PermissionManageBar = "manage_bar"
)

type Association struct {
	ID             uint             `json:"id"`
	Name           string           `json:"name"`
	AllowOverdraft bool             `json:"allow_overdraft"`
	OverdraftLimit decimal.Decimal  `json:"overdraft_limit"`
	TopUpCeiling   *decimal.Decimal `json:"topup_ceiling,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

type Member struct {
	ID            uint      `json:"id"`
	Name          string    `json:"name"`
	Surname       string    `json:"surname"`
	Email         string    `json:"email"`
	Password      string    `json:"-"`
	AssociationID uint      `json:"association_id"`
	Role          string    `json:"role"`
	Permissions   []string  `json:"permissions"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Actor is the pre-validated identity a request runs as.
type Actor struct {
	ID            uint
	AssociationID uint
	Role          string
	Permissions   []string
}

func (m Member) Actor() Actor {
	return Actor{
		ID:            m.ID,
		AssociationID: m.AssociationID,
		Role:          m.Role,
		Permissions:   m.Permissions,
	}
}

// Can reports whether the actor holds the capability. The association
// account holds every capability.
func (a Actor) Can(permission string) bool {
	if a.Role == RoleAssociation {
		return true
	}

	return slices.Contains(a.Permissions, permission)
}

func (a Actor) IsAssociation() bool {
	return a.Role == RoleAssociation
}
