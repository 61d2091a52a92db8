package dao

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrMemberEmailExists   = errors.New("member already exists")
	ErrMemberNotFound      = errors.New("member not found")
	ErrAssociationNotFound = errors.New("association not found")
)

type Association struct {
	ID             uint             `gorm:"primaryKey"`
	Name           string           `gorm:"not null"`
	AllowOverdraft bool             `gorm:"not null;default:false"`
	OverdraftLimit decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0"`
	TopUpCeiling   *decimal.Decimal `gorm:"type:numeric(12,2)"`
	CreatedAt      time.Time        `gorm:"not null"`
	UpdatedAt      time.Time        `gorm:"not null"`
}

type Member struct {
	ID            uint     `gorm:"primaryKey"`
	Name          string   `gorm:"not null"`
	Surname       string   `gorm:"not null;default:''"`
	Email         string   `gorm:"not null;uniqueIndex:uni_members_email"`
	Password      string   `gorm:"not null"`
	AssociationID uint     `gorm:"not null;index"`
	Role          string   `gorm:"not null"`
	Permissions   []string `gorm:"serializer:json;type:jsonb;not null;default:'[]'"`

	Association Association `gorm:"foreignKey:AssociationID"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type MemberDAO struct {
	db *gorm.DB
}

func NewMemberDAO(db *gorm.DB) *MemberDAO {
	return &MemberDAO{
		db: db,
	}
}

// InsertAssociation creates an association together with the member that
// owns it.
func (d *MemberDAO) InsertAssociation(ctx context.Context, association Association, owner Member) (Association, Member, error) {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&association).Error; err != nil {
			return err
		}

		owner.AssociationID = association.ID
		if err := tx.Omit("Association").Create(&owner).Error; err != nil {
			if isUniqueViolation(err, "uni_members_email") {
				return ErrMemberEmailExists
			}
			return err
		}

		return nil
	})
	if err != nil {
		return Association{}, Member{}, err
	}

	return association, owner, nil
}

func (d *MemberDAO) Insert(ctx context.Context, member Member) (Member, error) {
	result := d.db.WithContext(ctx).Omit("Association").Create(&member)
	if result.Error != nil {
		if isUniqueViolation(result.Error, "uni_members_email") {
			return Member{}, ErrMemberEmailExists
		}
		if isForeignKeyViolation(result.Error) {
			return Member{}, ErrAssociationNotFound
		}

		return Member{}, result.Error
	}

	return member, nil
}

func (d *MemberDAO) FindByID(ctx context.Context, id uint) (Member, error) {
	var member Member

	result := d.db.WithContext(ctx).First(&member, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Member{}, ErrMemberNotFound
		}

		return Member{}, result.Error
	}

	return member, nil
}

func (d *MemberDAO) FindByEmail(ctx context.Context, email string) (Member, error) {
	var member Member

	result := d.db.WithContext(ctx).First(&member, "email = ?", email)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Member{}, ErrMemberNotFound
		}

		return Member{}, result.Error
	}

	return member, nil
}

func (d *MemberDAO) FindByAssociation(ctx context.Context, associationID uint, role string) ([]Member, error) {
	var members []Member

	query := d.db.WithContext(ctx).Where("association_id = ?", associationID)
	if role != "" {
		query = query.Where("role = ?", role)
	}

	if err := query.Order("surname, name").Find(&members).Error; err != nil {
		return nil, err
	}

	return members, nil
}

func (d *MemberDAO) UpdatePermissions(ctx context.Context, id uint, permissions []string) (Member, error) {
	member, err := d.FindByID(ctx, id)
	if err != nil {
		return Member{}, err
	}

	member.Permissions = permissions
	if err = d.db.WithContext(ctx).Model(&member).Select("permissions", "updated_at").Updates(&member).Error; err != nil {
		return Member{}, err
	}

	return member, nil
}

func (d *MemberDAO) FindAssociation(ctx context.Context, id uint) (Association, error) {
	var association Association

	result := d.db.WithContext(ctx).First(&association, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Association{}, ErrAssociationNotFound
		}

		return Association{}, result.Error
	}

	return association, nil
}

func (d *MemberDAO) UpdateAssociation(ctx context.Context, association Association) (Association, error) {
	result := d.db.WithContext(ctx).Model(&association).
		Select("name", "allow_overdraft", "overdraft_limit", "top_up_ceiling", "updated_at").
		Updates(&association)
	if result.Error != nil {
		return Association{}, result.Error
	}
	if result.RowsAffected == 0 {
		return Association{}, ErrAssociationNotFound
	}

	return d.FindAssociation(ctx, association.ID)
}
