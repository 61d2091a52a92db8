package repository

import (
	"context"
	"fmt"

	"github.com/bartime/bartime-api/internal/domain"
	"github.com/bartime/bartime-api/internal/repository/dao"
)

var (
	ErrAccountNotFound     = dao.ErrAccountNotFound
	ErrTransactionNotFound = dao.ErrTransactionNotFound
	ErrVersionConflict     = dao.ErrVersionConflict
	ErrDuplicateReference  = dao.ErrDuplicateReference
	ErrBadgeNotActive      = dao.ErrBadgeNotActive
)

type LedgerDAO interface {
	FindAccount(ctx context.Context, badgeID uint) (dao.BadgeAccount, error)
	FindAccounts(ctx context.Context, badgeIDs []uint) ([]dao.BadgeAccount, error)
	FindByReference(ctx context.Context, badgeID uint, reference string) (dao.Transaction, error)
	Commit(ctx context.Context, expectedVersion int64, txn dao.Transaction) (dao.Transaction, error)
	History(ctx context.Context, badgeID uint, beforeID uint64, limit int) ([]dao.Transaction, error)
	HistoryByMember(ctx context.Context, associationID, memberID uint, beforeID uint64, limit int) ([]dao.Transaction, error)
	HistoryByAssociation(ctx context.Context, associationID uint, beforeID uint64, limit int) ([]dao.Transaction, error)
	FindTransaction(ctx context.Context, associationID uint, id uint64) (dao.Transaction, error)
	Snapshot(ctx context.Context, badgeID uint) (dao.BadgeAccount, dao.Replay, error)
	ActiveBadgeIDs(ctx context.Context) ([]uint, error)
}

type LedgerRepository struct {
	dao LedgerDAO
}

func NewLedgerRepository(dao LedgerDAO) *LedgerRepository {
	return &LedgerRepository{
		dao: dao,
	}
}

func (r *LedgerRepository) FindAccount(ctx context.Context, badgeID uint) (domain.BadgeAccount, error) {
	found, err := r.dao.FindAccount(ctx, badgeID)
	if err != nil {
		return domain.BadgeAccount{}, fmt.Errorf("r.dao.FindAccount -> %w", err)
	}

	return accountToDomain(found), nil
}

func (r *LedgerRepository) FindAccounts(ctx context.Context, badgeIDs []uint) (map[uint]domain.BadgeAccount, error) {
	found, err := r.dao.FindAccounts(ctx, badgeIDs)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindAccounts -> %w", err)
	}

	accounts := make(map[uint]domain.BadgeAccount, len(found))
	for _, a := range found {
		accounts[a.BadgeID] = accountToDomain(a)
	}

	return accounts, nil
}

func (r *LedgerRepository) FindByReference(ctx context.Context, badgeID uint, reference string) (domain.Transaction, error) {
	found, err := r.dao.FindByReference(ctx, badgeID, reference)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("r.dao.FindByReference -> %w", err)
	}

	return transactionToDomain(found), nil
}

func (r *LedgerRepository) Commit(ctx context.Context, expectedVersion int64, txn domain.Transaction) (domain.Transaction, error) {
	committed, err := r.dao.Commit(ctx, expectedVersion, transactionToDAO(txn))
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("r.dao.Commit -> %w", err)
	}

	return transactionToDomain(committed), nil
}

func (r *LedgerRepository) History(ctx context.Context, badgeID uint, beforeID uint64, limit int) ([]domain.Transaction, error) {
	found, err := r.dao.History(ctx, badgeID, beforeID, limit)
	if err != nil {
		return nil, fmt.Errorf("r.dao.History -> %w", err)
	}

	return transactionsToDomain(found), nil
}

func (r *LedgerRepository) HistoryByMember(ctx context.Context, associationID, memberID uint, beforeID uint64, limit int) ([]domain.Transaction, error) {
	found, err := r.dao.HistoryByMember(ctx, associationID, memberID, beforeID, limit)
	if err != nil {
		return nil, fmt.Errorf("r.dao.HistoryByMember -> %w", err)
	}

	return transactionsToDomain(found), nil
}

func (r *LedgerRepository) HistoryByAssociation(ctx context.Context, associationID uint, beforeID uint64, limit int) ([]domain.Transaction, error) {
	found, err := r.dao.HistoryByAssociation(ctx, associationID, beforeID, limit)
	if err != nil {
		return nil, fmt.Errorf("r.dao.HistoryByAssociation -> %w", err)
	}

	return transactionsToDomain(found), nil
}

func (r *LedgerRepository) FindTransaction(ctx context.Context, associationID uint, id uint64) (domain.Transaction, error) {
	found, err := r.dao.FindTransaction(ctx, associationID, id)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("r.dao.FindTransaction -> %w", err)
	}

	return transactionToDomain(found), nil
}

func (r *LedgerRepository) Snapshot(ctx context.Context, badgeID uint) (domain.LedgerSnapshot, error) {
	account, replay, err := r.dao.Snapshot(ctx, badgeID)
	if err != nil {
		return domain.LedgerSnapshot{}, fmt.Errorf("r.dao.Snapshot -> %w", err)
	}

	return domain.LedgerSnapshot{
		Account:   accountToDomain(account),
		LogTotal:  replay.Total,
		LogLength: replay.Count,
	}, nil
}

func (r *LedgerRepository) ActiveBadgeIDs(ctx context.Context) ([]uint, error) {
	ids, err := r.dao.ActiveBadgeIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("r.dao.ActiveBadgeIDs -> %w", err)
	}

	return ids, nil
}

func transactionToDAO(t domain.Transaction) dao.Transaction {
	return dao.Transaction{
		ID:               t.ID,
		BadgeID:          t.BadgeID,
		Reference:        t.Reference,
		TagID:            t.TagID,
		MemberID:         t.MemberID,
		ActorID:          t.ActorID,
		Type:             string(t.Type),
		Amount:           t.Amount,
		Note:             t.Note,
		ResultingBalance: t.ResultingBalance,
		Version:          t.Version,
		CreatedAt:        t.CreatedAt,
	}
}

func transactionsToDomain(found []dao.Transaction) []domain.Transaction {
	txns := make([]domain.Transaction, 0, len(found))
	for _, t := range found {
		txns = append(txns, transactionToDomain(t))
	}

	return txns
}

func transactionToDomain(t dao.Transaction) domain.Transaction {
	return domain.Transaction{
		ID:               t.ID,
		BadgeID:          t.BadgeID,
		TagID:            t.TagID,
		MemberID:         t.MemberID,
		ActorID:          t.ActorID,
		Type:             domain.TransactionType(t.Type),
		Amount:           t.Amount,
		Reference:        t.Reference,
		Note:             t.Note,
		ResultingBalance: t.ResultingBalance,
		Version:          t.Version,
		CreatedAt:        t.CreatedAt,
	}
}
