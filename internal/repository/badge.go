package repository

import (
	"context"
	"fmt"

	"github.com/bartime/bartime-api/internal/domain"
	"github.com/bartime/bartime-api/internal/repository/dao"
)

var (
	ErrBadgeAlreadyPaired = dao.ErrBadgeAlreadyPaired
	ErrBadgeNotFound      = dao.ErrBadgeNotFound
	ErrBadgeStatusChanged = dao.ErrBadgeStatusChanged
)

type BadgeDAO interface {
	Pair(ctx context.Context, badge dao.Badge) (dao.Badge, dao.BadgeAccount, error)
	FindLiveByTag(ctx context.Context, tagID string) (dao.Badge, error)
	FindByMember(ctx context.Context, memberID uint) ([]dao.Badge, error)
	FindByAssociation(ctx context.Context, associationID uint) ([]dao.Badge, error)
	UpdateStatus(ctx context.Context, id uint, from, to string) (dao.Badge, error)
}

type BadgeRepository struct {
	dao BadgeDAO
}

func NewBadgeRepository(dao BadgeDAO) *BadgeRepository {
	return &BadgeRepository{
		dao: dao,
	}
}

func (r *BadgeRepository) Pair(ctx context.Context, badge domain.Badge) (domain.Badge, domain.BadgeAccount, error) {
	paired, account, err := r.dao.Pair(ctx, badgeToDAO(badge))
	if err != nil {
		return domain.Badge{}, domain.BadgeAccount{}, fmt.Errorf("r.dao.Pair -> %w", err)
	}

	return badgeToDomain(paired), accountToDomain(account), nil
}

func (r *BadgeRepository) FindLiveByTag(ctx context.Context, tagID string) (domain.Badge, error) {
	found, err := r.dao.FindLiveByTag(ctx, tagID)
	if err != nil {
		return domain.Badge{}, fmt.Errorf("r.dao.FindLiveByTag -> %w", err)
	}

	return badgeToDomain(found), nil
}

func (r *BadgeRepository) FindByMember(ctx context.Context, memberID uint) ([]domain.Badge, error) {
	found, err := r.dao.FindByMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByMember -> %w", err)
	}

	return badgesToDomain(found), nil
}

func (r *BadgeRepository) FindByAssociation(ctx context.Context, associationID uint) ([]domain.Badge, error) {
	found, err := r.dao.FindByAssociation(ctx, associationID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByAssociation -> %w", err)
	}

	return badgesToDomain(found), nil
}

func (r *BadgeRepository) UpdateStatus(ctx context.Context, id uint, from, to domain.BadgeStatus) (domain.Badge, error) {
	updated, err := r.dao.UpdateStatus(ctx, id, string(from), string(to))
	if err != nil {
		return domain.Badge{}, fmt.Errorf("r.dao.UpdateStatus -> %w", err)
	}

	return badgeToDomain(updated), nil
}

func badgeToDAO(b domain.Badge) dao.Badge {
	return dao.Badge{
		ID:            b.ID,
		TagID:         b.TagID,
		MemberID:      b.MemberID,
		AssociationID: b.AssociationID,
		Status:        string(b.Status),
		PairedAt:      b.PairedAt,
		RemovedAt:     b.RemovedAt,
	}
}

func badgeToDomain(b dao.Badge) domain.Badge {
	return domain.Badge{
		ID:            b.ID,
		TagID:         b.TagID,
		MemberID:      b.MemberID,
		AssociationID: b.AssociationID,
		Status:        domain.BadgeStatus(b.Status),
		PairedAt:      b.PairedAt,
		RemovedAt:     b.RemovedAt,
	}
}

func badgesToDomain(found []dao.Badge) []domain.Badge {
	badges := make([]domain.Badge, 0, len(found))
	for _, b := range found {
		badges = append(badges, badgeToDomain(b))
	}

	return badges
}

func accountToDomain(a dao.BadgeAccount) domain.BadgeAccount {
	return domain.BadgeAccount{
		BadgeID:   a.BadgeID,
		Balance:   a.Balance,
		Version:   a.Version,
		UpdatedAt: a.UpdatedAt,
	}
}
