package memstore

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/bartime/bartime-api/internal/domain"
	"github.com/bartime/bartime-api/internal/repository"
)

type LedgerStore struct {
	s *Store
}

func (l *LedgerStore) FindAccount(_ context.Context, badgeID uint) (domain.BadgeAccount, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	account, ok := l.s.accounts[badgeID]
	if !ok {
		return domain.BadgeAccount{}, repository.ErrAccountNotFound
	}

	return account, nil
}

func (l *LedgerStore) FindAccounts(_ context.Context, badgeIDs []uint) (map[uint]domain.BadgeAccount, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	accounts := make(map[uint]domain.BadgeAccount, len(badgeIDs))
	for _, id := range badgeIDs {
		if account, ok := l.s.accounts[id]; ok {
			accounts[id] = account
		}
	}

	return accounts, nil
}

func (l *LedgerStore) FindByReference(_ context.Context, badgeID uint, reference string) (domain.Transaction, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	for _, txn := range l.s.transactions[badgeID] {
		if txn.Reference == reference {
			return txn, nil
		}
	}

	return domain.Transaction{}, repository.ErrTransactionNotFound
}

// Commit mirrors the conditional update of the Postgres store: the badge must
// be active and the account must still be at expectedVersion.
func (l *LedgerStore) Commit(_ context.Context, expectedVersion int64, txn domain.Transaction) (domain.Transaction, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	badge, ok := l.s.badges[txn.BadgeID]
	if !ok {
		return domain.Transaction{}, repository.ErrBadgeNotFound
	}
	if !badge.IsActive() {
		return domain.Transaction{}, repository.ErrBadgeNotActive
	}

	account, ok := l.s.accounts[txn.BadgeID]
	if !ok || account.Version != expectedVersion {
		return domain.Transaction{}, repository.ErrVersionConflict
	}

	for _, existing := range l.s.transactions[txn.BadgeID] {
		if existing.Reference == txn.Reference {
			return domain.Transaction{}, repository.ErrDuplicateReference
		}
	}

	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = l.s.now()
	}
	l.s.nextTx++
	txn.ID = l.s.nextTx

	account.Balance = txn.ResultingBalance
	account.Version = txn.Version
	account.UpdatedAt = txn.CreatedAt
	l.s.accounts[txn.BadgeID] = account
	l.s.transactions[txn.BadgeID] = append(l.s.transactions[txn.BadgeID], txn)

	return txn, nil
}

func (l *LedgerStore) History(_ context.Context, badgeID uint, beforeID uint64, limit int) ([]domain.Transaction, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	log := l.s.transactions[badgeID]
	txns := make([]domain.Transaction, 0, limit)
	for i := len(log) - 1; i >= 0 && len(txns) < limit; i-- {
		if beforeID > 0 && log[i].ID >= beforeID {
			continue
		}
		txns = append(txns, log[i])
	}

	return txns, nil
}

func (l *LedgerStore) HistoryByMember(_ context.Context, associationID, memberID uint, beforeID uint64, limit int) ([]domain.Transaction, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	return l.pageLocked(associationID, beforeID, limit, func(txn domain.Transaction) bool {
		return txn.MemberID == memberID
	}), nil
}

func (l *LedgerStore) HistoryByAssociation(_ context.Context, associationID uint, beforeID uint64, limit int) ([]domain.Transaction, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	return l.pageLocked(associationID, beforeID, limit, func(domain.Transaction) bool { return true }), nil
}

func (l *LedgerStore) FindTransaction(_ context.Context, associationID uint, id uint64) (domain.Transaction, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	for badgeID, log := range l.s.transactions {
		if l.s.badges[badgeID].AssociationID != associationID {
			continue
		}
		for _, txn := range log {
			if txn.ID == id {
				return txn, nil
			}
		}
	}

	return domain.Transaction{}, repository.ErrTransactionNotFound
}

// pageLocked collects the association's transactions matching keep, newest
// first. Pairing records are never dropped, so removed badges are included.
func (l *LedgerStore) pageLocked(associationID uint, beforeID uint64, limit int, keep func(domain.Transaction) bool) []domain.Transaction {
	var matched []domain.Transaction
	for badgeID, log := range l.s.transactions {
		if l.s.badges[badgeID].AssociationID != associationID {
			continue
		}
		for _, txn := range log {
			if beforeID > 0 && txn.ID >= beforeID {
				continue
			}
			if keep(txn) {
				matched = append(matched, txn)
			}
		}
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	if len(matched) > limit {
		matched = matched[:limit]
	}

	return matched
}

func (l *LedgerStore) Snapshot(_ context.Context, badgeID uint) (domain.LedgerSnapshot, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	account, ok := l.s.accounts[badgeID]
	if !ok {
		return domain.LedgerSnapshot{}, repository.ErrAccountNotFound
	}

	total := decimal.Zero
	for _, txn := range l.s.transactions[badgeID] {
		total = total.Add(txn.Amount)
	}

	return domain.LedgerSnapshot{
		Account:   account,
		LogTotal:  total,
		LogLength: int64(len(l.s.transactions[badgeID])),
	}, nil
}

func (l *LedgerStore) ActiveBadgeIDs(_ context.Context) ([]uint, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	ids := []uint{}
	for id, badge := range l.s.badges {
		if badge.Status != domain.BadgeRemoved {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids, nil
}

// Corrupt overwrites a cached balance without touching the log.
func (l *LedgerStore) Corrupt(badgeID uint, balance decimal.Decimal) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	account := l.s.accounts[badgeID]
	account.Balance = balance
	l.s.accounts[badgeID] = account
}
