package dao

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrBadgeAlreadyPaired = errors.New("badge already paired")
	ErrBadgeNotFound      = errors.New("badge not found")
	ErrBadgeStatusChanged = errors.New("badge status changed")
)

const (
	BadgeStatusActive   = "active"
	BadgeStatusInactive = "inactive"
	BadgeStatusRemoved  = "removed"
)

// Badge is a pairing record. At most one non-removed record exists per tag.
type Badge struct {
	ID            uint      `gorm:"primaryKey"`
	TagID         string    `gorm:"not null;uniqueIndex:uni_badges_live_tag,where:status <> 'removed'"`
	MemberID      uint      `gorm:"not null;index"`
	AssociationID uint      `gorm:"not null;index"`
	Status        string    `gorm:"not null"`
	PairedAt      time.Time `gorm:"not null"`
	RemovedAt     *time.Time

	Member Member `gorm:"foreignKey:MemberID"`

	UpdatedAt time.Time `gorm:"not null"`
}

type BadgeAccount struct {
	BadgeID   uint            `gorm:"primaryKey;autoIncrement:false"`
	Balance   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Version   int64           `gorm:"not null;default:0"`
	UpdatedAt time.Time       `gorm:"not null"`

	Badge Badge `gorm:"foreignKey:BadgeID"`
}

type BadgeDAO struct {
	db *gorm.DB
}

func NewBadgeDAO(db *gorm.DB) *BadgeDAO {
	return &BadgeDAO{
		db: db,
	}
}

// Pair inserts the pairing record and its zero balance account in one
// transaction.
func (d *BadgeDAO) Pair(ctx context.Context, badge Badge) (Badge, BadgeAccount, error) {
	var account BadgeAccount

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Member").Create(&badge).Error; err != nil {
			if isUniqueViolation(err, "uni_badges_live_tag") {
				return ErrBadgeAlreadyPaired
			}
			if isForeignKeyViolation(err) {
				return ErrMemberNotFound
			}
			return err
		}

		account = BadgeAccount{
			BadgeID: badge.ID,
			Balance: decimal.Zero,
			Version: 0,
		}

		return tx.Omit("Badge").Create(&account).Error
	})
	if err != nil {
		return Badge{}, BadgeAccount{}, err
	}

	return badge, account, nil
}

func (d *BadgeDAO) FindLiveByTag(ctx context.Context, tagID string) (Badge, error) {
	var badge Badge

	result := d.db.WithContext(ctx).
		Where("tag_id = ? AND status <> ?", tagID, BadgeStatusRemoved).
		First(&badge)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Badge{}, ErrBadgeNotFound
		}

		return Badge{}, result.Error
	}

	return badge, nil
}

func (d *BadgeDAO) FindByMember(ctx context.Context, memberID uint) ([]Badge, error) {
	var badges []Badge

	err := d.db.WithContext(ctx).
		Where("member_id = ? AND status <> ?", memberID, BadgeStatusRemoved).
		Order("paired_at").
		Find(&badges).Error
	if err != nil {
		return nil, err
	}

	return badges, nil
}

func (d *BadgeDAO) FindByAssociation(ctx context.Context, associationID uint) ([]Badge, error) {
	var badges []Badge

	err := d.db.WithContext(ctx).
		Where("association_id = ? AND status <> ?", associationID, BadgeStatusRemoved).
		Order("paired_at").
		Find(&badges).Error
	if err != nil {
		return nil, err
	}

	return badges, nil
}

// UpdateStatus moves a pairing record from one status to another. It fails
// with ErrBadgeStatusChanged when the record is no longer in status from.
func (d *BadgeDAO) UpdateStatus(ctx context.Context, id uint, from, to string) (Badge, error) {
	updates := map[string]interface{}{"status": to}
	if to == BadgeStatusRemoved {
		updates["removed_at"] = time.Now().UTC()
	}

	result := d.db.WithContext(ctx).Model(&Badge{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return Badge{}, result.Error
	}
	if result.RowsAffected == 0 {
		return Badge{}, ErrBadgeStatusChanged
	}

	var badge Badge
	if err := d.db.WithContext(ctx).First(&badge, id).Error; err != nil {
		return Badge{}, err
	}

	return badge, nil
}
