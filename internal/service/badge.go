package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bartime/bartime-api/internal/domain"
	"github.com/bartime/bartime-api/internal/repository"
)

// statusRetries bounds how often a status change is re-read after another
// request moved the badge first.
const statusRetries = 3

var (
	ErrUnknownBadge     = repository.ErrBadgeNotFound
	ErrAlreadyPaired    = repository.ErrBadgeAlreadyPaired
	ErrBadgeStillActive = errors.New("badge still active")
	ErrInvalidTagID     = errors.New("invalid tag id")
)

type BadgeRepository interface {
	Pair(ctx context.Context, badge domain.Badge) (domain.Badge, domain.BadgeAccount, error)
	FindLiveByTag(ctx context.Context, tagID string) (domain.Badge, error)
	FindByMember(ctx context.Context, memberID uint) ([]domain.Badge, error)
	FindByAssociation(ctx context.Context, associationID uint) ([]domain.Badge, error)
	UpdateStatus(ctx context.Context, id uint, from, to domain.BadgeStatus) (domain.Badge, error)
}

type MemberFinder interface {
	FindByID(ctx context.Context, id uint) (domain.Member, error)
}

type AccountFinder interface {
	FindAccount(ctx context.Context, badgeID uint) (domain.BadgeAccount, error)
	FindAccounts(ctx context.Context, badgeIDs []uint) (map[uint]domain.BadgeAccount, error)
}

type BadgeService struct {
	repo     BadgeRepository
	members  MemberFinder
	accounts AccountFinder
}

func NewBadgeService(repo BadgeRepository, members MemberFinder, accounts AccountFinder) *BadgeService {
	return &BadgeService{
		repo:     repo,
		members:  members,
		accounts: accounts,
	}
}

// Pair binds an unpaired tag to a member and opens its zero balance account.
func (s *BadgeService) Pair(ctx context.Context, associationID uint, tagID string, memberID uint) (domain.BadgeView, error) {
	tagID = strings.TrimSpace(tagID)
	if tagID == "" {
		return domain.BadgeView{}, ErrInvalidTagID
	}

	member, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return domain.BadgeView{}, ErrUnknownMember
		}
		return domain.BadgeView{}, fmt.Errorf("s.members.FindByID -> %w", err)
	}
	if member.AssociationID != associationID {
		return domain.BadgeView{}, ErrUnknownMember
	}

	badge, account, err := s.repo.Pair(ctx, domain.Badge{
		TagID:         tagID,
		MemberID:      member.ID,
		AssociationID: associationID,
		Status:        domain.BadgeActive,
		PairedAt:      time.Now().UTC(),
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrBadgeAlreadyPaired):
			return domain.BadgeView{}, ErrAlreadyPaired
		case errors.Is(err, repository.ErrMemberNotFound):
			return domain.BadgeView{}, ErrUnknownMember
		}
		return domain.BadgeView{}, fmt.Errorf("s.repo.Pair -> %w", err)
	}

	zap.L().Info("badge paired",
		zap.String("tag_id", badge.TagID),
		zap.Uint("badge_id", badge.ID),
		zap.Uint("member_id", member.ID),
	)

	return domain.BadgeView{Badge: badge, Member: member, Account: account}, nil
}

// SetActive moves a paired badge between active and inactive. Asking for the
// current state is a no-op.
func (s *BadgeService) SetActive(ctx context.Context, associationID uint, tagID string, active bool) (domain.Badge, error) {
	target := domain.BadgeInactive
	if active {
		target = domain.BadgeActive
	}

	for attempt := 0; ; attempt++ {
		badge, err := s.find(ctx, associationID, tagID)
		if err != nil {
			return domain.Badge{}, err
		}
		if badge.Status == target {
			return badge, nil
		}

		updated, err := s.repo.UpdateStatus(ctx, badge.ID, badge.Status, target)
		if err == nil {
			zap.L().Info("badge status changed",
				zap.String("tag_id", updated.TagID),
				zap.String("from", string(badge.Status)),
				zap.String("to", string(updated.Status)),
			)
			return updated, nil
		}
		if !errors.Is(err, repository.ErrBadgeStatusChanged) || attempt >= statusRetries {
			return domain.Badge{}, fmt.Errorf("s.repo.UpdateStatus -> %w", err)
		}
	}
}

// Remove soft-deletes an inactive badge. Its account and transactions stay
// in the store and the tag becomes free to pair again.
func (s *BadgeService) Remove(ctx context.Context, associationID uint, tagID string) (domain.Badge, error) {
	for attempt := 0; ; attempt++ {
		badge, err := s.find(ctx, associationID, tagID)
		if err != nil {
			return domain.Badge{}, err
		}
		if badge.Status != domain.BadgeInactive {
			return domain.Badge{}, ErrBadgeStillActive
		}

		removed, err := s.repo.UpdateStatus(ctx, badge.ID, domain.BadgeInactive, domain.BadgeRemoved)
		if err == nil {
			zap.L().Info("badge removed", zap.String("tag_id", removed.TagID), zap.Uint("badge_id", removed.ID))
			return removed, nil
		}
		if !errors.Is(err, repository.ErrBadgeStatusChanged) || attempt >= statusRetries {
			return domain.Badge{}, fmt.Errorf("s.repo.UpdateStatus -> %w", err)
		}
	}
}

func (s *BadgeService) find(ctx context.Context, associationID uint, tagID string) (domain.Badge, error) {
	badge, err := s.repo.FindLiveByTag(ctx, tagID)
	if err != nil {
		if errors.Is(err, repository.ErrBadgeNotFound) {
			return domain.Badge{}, ErrUnknownBadge
		}
		return domain.Badge{}, fmt.Errorf("s.repo.FindLiveByTag -> %w", err)
	}
	if badge.AssociationID != associationID {
		return domain.Badge{}, ErrUnknownBadge
	}

	return badge, nil
}

// Get returns the badge with its holder and account.
func (s *BadgeService) Get(ctx context.Context, associationID uint, tagID string) (domain.BadgeView, error) {
	badge, err := s.find(ctx, associationID, tagID)
	if err != nil {
		return domain.BadgeView{}, err
	}

	member, err := s.members.FindByID(ctx, badge.MemberID)
	if err != nil {
		return domain.BadgeView{}, fmt.Errorf("s.members.FindByID -> %w", err)
	}

	account, err := s.accounts.FindAccount(ctx, badge.ID)
	if err != nil {
		return domain.BadgeView{}, fmt.Errorf("s.accounts.FindAccount -> %w", err)
	}

	return domain.BadgeView{Badge: badge, Member: member, Account: account}, nil
}

// Owner returns the member a live badge is paired to.
func (s *BadgeService) Owner(ctx context.Context, associationID uint, tagID string) (uint, error) {
	badge, err := s.find(ctx, associationID, tagID)
	if err != nil {
		return 0, err
	}

	return badge.MemberID, nil
}

func (s *BadgeService) ListByMember(ctx context.Context, associationID, memberID uint) ([]domain.BadgeView, error) {
	member, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return nil, ErrUnknownMember
		}
		return nil, fmt.Errorf("s.members.FindByID -> %w", err)
	}
	if member.AssociationID != associationID {
		return nil, ErrUnknownMember
	}

	badges, err := s.repo.FindByMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindByMember -> %w", err)
	}

	return s.views(ctx, badges, func(uint) (domain.Member, error) { return member, nil })
}

func (s *BadgeService) List(ctx context.Context, associationID uint) ([]domain.BadgeView, error) {
	badges, err := s.repo.FindByAssociation(ctx, associationID)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindByAssociation -> %w", err)
	}

	members := make(map[uint]domain.Member)
	return s.views(ctx, badges, func(id uint) (domain.Member, error) {
		if member, ok := members[id]; ok {
			return member, nil
		}
		member, err := s.members.FindByID(ctx, id)
		if err != nil {
			return domain.Member{}, fmt.Errorf("s.members.FindByID -> %w", err)
		}
		members[id] = member
		return member, nil
	})
}

func (s *BadgeService) views(ctx context.Context, badges []domain.Badge, member func(uint) (domain.Member, error)) ([]domain.BadgeView, error) {
	ids := make([]uint, 0, len(badges))
	for _, b := range badges {
		ids = append(ids, b.ID)
	}

	accounts, err := s.accounts.FindAccounts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("s.accounts.FindAccounts -> %w", err)
	}

	views := make([]domain.BadgeView, 0, len(badges))
	for _, b := range badges {
		m, err := member(b.MemberID)
		if err != nil {
			return nil, err
		}
		views = append(views, domain.BadgeView{Badge: b, Member: m, Account: accounts[b.ID]})
	}

	return views, nil
}
