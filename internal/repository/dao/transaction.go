package dao

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound     = errors.New("badge account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrVersionConflict     = errors.New("badge account version conflict")
	ErrDuplicateReference  = errors.New("duplicate transaction reference")
	ErrBadgeNotActive      = errors.New("badge not active")
)

// Transaction rows are append-only. The (badge_id, reference) pair is the
// idempotency key of a ledger operation.
type Transaction struct {
	ID               uint64          `gorm:"primaryKey;autoIncrement;index:idx_transactions_badge_history,priority:2"`
	BadgeID          uint            `gorm:"not null;uniqueIndex:uni_transactions_badge_reference,priority:1;index:idx_transactions_badge_history,priority:1"`
	Reference        string          `gorm:"not null;uniqueIndex:uni_transactions_badge_reference,priority:2"`
	TagID            string          `gorm:"not null"`
	MemberID         uint            `gorm:"not null"`
	ActorID          uint            `gorm:"not null"`
	Type             string          `gorm:"not null"`
	Amount           decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Note             string          `gorm:"not null;default:''"`
	ResultingBalance decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Version          int64           `gorm:"not null"`
	CreatedAt        time.Time       `gorm:"not null"`
}

func (Transaction) TableName() string {
	return "transactions"
}

type Replay struct {
	Total decimal.Decimal
	Count int64
}

type LedgerDAO struct {
	db *gorm.DB
}

func NewLedgerDAO(db *gorm.DB) *LedgerDAO {
	return &LedgerDAO{
		db: db,
	}
}

func (d *LedgerDAO) FindAccount(ctx context.Context, badgeID uint) (BadgeAccount, error) {
	var account BadgeAccount

	result := d.db.WithContext(ctx).First(&account, "badge_id = ?", badgeID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return BadgeAccount{}, ErrAccountNotFound
		}

		return BadgeAccount{}, result.Error
	}

	return account, nil
}

func (d *LedgerDAO) FindAccounts(ctx context.Context, badgeIDs []uint) ([]BadgeAccount, error) {
	var accounts []BadgeAccount

	if err := d.db.WithContext(ctx).Where("badge_id IN ?", badgeIDs).Find(&accounts).Error; err != nil {
		return nil, err
	}

	return accounts, nil
}

func (d *LedgerDAO) FindByReference(ctx context.Context, badgeID uint, reference string) (Transaction, error) {
	var txn Transaction

	result := d.db.WithContext(ctx).
		Where("badge_id = ? AND reference = ?", badgeID, reference).
		First(&txn)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Transaction{}, ErrTransactionNotFound
		}

		return Transaction{}, result.Error
	}

	return txn, nil
}

// Commit applies txn to the badge account if the account is still at
// expectedVersion and the badge is still active, then appends txn to the log.
// Both writes share one database transaction.
func (d *LedgerDAO) Commit(ctx context.Context, expectedVersion int64, txn Transaction) (Transaction, error) {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Shares the lock a status change needs, so the check below holds
		// until commit.
		var badge Badge
		if err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Select("id", "status").
			First(&badge, txn.BadgeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBadgeNotFound
			}
			return err
		}
		if badge.Status != BadgeStatusActive {
			return ErrBadgeNotActive
		}

		result := tx.Model(&BadgeAccount{}).
			Where("badge_id = ? AND version = ?", txn.BadgeID, expectedVersion).
			Updates(map[string]interface{}{
				"balance":    txn.ResultingBalance,
				"version":    txn.Version,
				"updated_at": txn.CreatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrVersionConflict
		}

		if err := tx.Create(&txn).Error; err != nil {
			if isUniqueViolation(err, "uni_transactions_badge_reference") {
				return ErrDuplicateReference
			}
			return err
		}

		return nil
	})
	if err != nil {
		return Transaction{}, err
	}

	return txn, nil
}

// History returns up to limit transactions older than beforeID, newest first.
// A zero beforeID starts from the newest transaction.
func (d *LedgerDAO) History(ctx context.Context, badgeID uint, beforeID uint64, limit int) ([]Transaction, error) {
	query := d.db.WithContext(ctx).Model(&Transaction{}).Where("transactions.badge_id = ?", badgeID)

	return page(query, beforeID, limit)
}

// HistoryByMember pages through every transaction of a member within an
// association, removed badges included.
func (d *LedgerDAO) HistoryByMember(ctx context.Context, associationID, memberID uint, beforeID uint64, limit int) ([]Transaction, error) {
	query := d.inAssociation(ctx, associationID).Where("transactions.member_id = ?", memberID)

	return page(query, beforeID, limit)
}

// HistoryByAssociation pages through every transaction recorded on the
// association's badges, removed badges included.
func (d *LedgerDAO) HistoryByAssociation(ctx context.Context, associationID uint, beforeID uint64, limit int) ([]Transaction, error) {
	return page(d.inAssociation(ctx, associationID), beforeID, limit)
}

func (d *LedgerDAO) FindTransaction(ctx context.Context, associationID uint, id uint64) (Transaction, error) {
	var txn Transaction

	result := d.inAssociation(ctx, associationID).Where("transactions.id = ?", id).First(&txn)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Transaction{}, ErrTransactionNotFound
		}

		return Transaction{}, result.Error
	}

	return txn, nil
}

// inAssociation scopes transactions through their pairing record, which keeps
// the association a badge was paired in.
func (d *LedgerDAO) inAssociation(ctx context.Context, associationID uint) *gorm.DB {
	return d.db.WithContext(ctx).Model(&Transaction{}).
		Joins("JOIN badges ON badges.id = transactions.badge_id").
		Where("badges.association_id = ?", associationID)
}

func page(query *gorm.DB, beforeID uint64, limit int) ([]Transaction, error) {
	var txns []Transaction

	if beforeID > 0 {
		query = query.Where("transactions.id < ?", beforeID)
	}

	if err := query.Order("transactions.id DESC").Limit(limit).Find(&txns).Error; err != nil {
		return nil, err
	}

	return txns, nil
}

// Snapshot reads the account and folds its log in one repeatable-read
// transaction, so a commit landing between the two reads is either in both or
// in neither.
func (d *LedgerDAO) Snapshot(ctx context.Context, badgeID uint) (BadgeAccount, Replay, error) {
	var (
		account BadgeAccount
		replay  Replay
	)

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&account, "badge_id = ?", badgeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return err
		}

		return tx.Model(&Transaction{}).
			Select("COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
			Where("badge_id = ?", badgeID).
			Scan(&replay).Error
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return BadgeAccount{}, Replay{}, err
	}

	return account, replay, nil
}

// ActiveBadgeIDs lists pairing records that may still carry transactions.
func (d *LedgerDAO) ActiveBadgeIDs(ctx context.Context) ([]uint, error) {
	var ids []uint

	err := d.db.WithContext(ctx).Model(&Badge{}).
		Where("status <> ?", BadgeStatusRemoved).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}

	return ids, nil
}
