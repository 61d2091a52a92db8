package memstore

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/bartime/bartime-api/internal/domain"
	"github.com/bartime/bartime-api/internal/repository"
)

type BadgeStore struct {
	s *Store
}

func (b *BadgeStore) Pair(_ context.Context, badge domain.Badge) (domain.Badge, domain.BadgeAccount, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	if _, ok := b.s.members[badge.MemberID]; !ok {
		return domain.Badge{}, domain.BadgeAccount{}, repository.ErrMemberNotFound
	}
	if _, ok := b.liveLocked(badge.TagID); ok {
		return domain.Badge{}, domain.BadgeAccount{}, repository.ErrBadgeAlreadyPaired
	}

	now := b.s.now()
	badge.ID = b.s.id()
	if badge.PairedAt.IsZero() {
		badge.PairedAt = now
	}
	b.s.badges[badge.ID] = badge

	account := domain.BadgeAccount{BadgeID: badge.ID, Balance: decimal.Zero, UpdatedAt: now}
	b.s.accounts[badge.ID] = account

	return badge, account, nil
}

func (b *BadgeStore) liveLocked(tagID string) (domain.Badge, bool) {
	for _, badge := range b.s.badges {
		if badge.TagID == tagID && badge.Status != domain.BadgeRemoved {
			return badge, true
		}
	}

	return domain.Badge{}, false
}

func (b *BadgeStore) FindLiveByTag(_ context.Context, tagID string) (domain.Badge, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()

	badge, ok := b.liveLocked(tagID)
	if !ok {
		return domain.Badge{}, repository.ErrBadgeNotFound
	}

	return badge, nil
}

func (b *BadgeStore) FindByMember(_ context.Context, memberID uint) ([]domain.Badge, error) {
	return b.filter(func(badge domain.Badge) bool { return badge.MemberID == memberID }), nil
}

func (b *BadgeStore) FindByAssociation(_ context.Context, associationID uint) ([]domain.Badge, error) {
	return b.filter(func(badge domain.Badge) bool { return badge.AssociationID == associationID }), nil
}

func (b *BadgeStore) filter(keep func(domain.Badge) bool) []domain.Badge {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()

	badges := []domain.Badge{}
	for _, badge := range b.s.badges {
		if badge.Status != domain.BadgeRemoved && keep(badge) {
			badges = append(badges, badge)
		}
	}
	sort.Slice(badges, func(i, j int) bool { return badges[i].ID < badges[j].ID })

	return badges
}

func (b *BadgeStore) UpdateStatus(_ context.Context, id uint, from, to domain.BadgeStatus) (domain.Badge, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	badge, ok := b.s.badges[id]
	if !ok {
		return domain.Badge{}, repository.ErrBadgeNotFound
	}
	if badge.Status != from {
		return domain.Badge{}, repository.ErrBadgeStatusChanged
	}

	badge.Status = to
	if to == domain.BadgeRemoved {
		removedAt := b.s.now()
		badge.RemovedAt = &removedAt
	}
	b.s.badges[id] = badge

	return badge, nil
}
