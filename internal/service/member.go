package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bartime/bartime-api/internal/domain"
	"github.com/bartime/bartime-api/internal/repository"
)

var (
	ErrUnknownMember      = repository.ErrMemberNotFound
	ErrUnknownAssociation = repository.ErrAssociationNotFound
	ErrEmailExists        = repository.ErrMemberEmailExists
	ErrUnknownPermission  = errors.New("unknown permission")
	ErrInvalidPolicy      = errors.New("invalid association policy")
)

var knownPermissions = []string{domain.PermissionManageBar}

type MemberRepository interface {
	CreateAssociation(ctx context.Context, association domain.Association, owner domain.Member) (domain.Association, domain.Member, error)
	Create(ctx context.Context, member domain.Member) (domain.Member, error)
	FindByID(ctx context.Context, id uint) (domain.Member, error)
	FindByEmail(ctx context.Context, email string) (domain.Member, error)
	FindByAssociation(ctx context.Context, associationID uint, role string) ([]domain.Member, error)
	UpdatePermissions(ctx context.Context, id uint, permissions []string) (domain.Member, error)
	FindAssociation(ctx context.Context, id uint) (domain.Association, error)
	UpdateAssociation(ctx context.Context, association domain.Association) (domain.Association, error)
}

type MemberService struct {
	repo MemberRepository
}

func NewMemberService(repo MemberRepository) *MemberService {
	return &MemberService{
		repo: repo,
	}
}

// CreateAdherent adds a member to the association. New adherents hold no
// capability until one is granted.
func (s *MemberService) CreateAdherent(ctx context.Context, associationID uint, member domain.Member) (domain.Member, error) {
	hash, err := hashPassword(member.Password)
	if err != nil {
		return domain.Member{}, err
	}

	member.Email = normalizeEmail(member.Email)
	member.Password = hash
	member.AssociationID = associationID
	member.Role = domain.RoleAdherent
	member.Permissions = []string{}

	created, err := s.repo.Create(ctx, member)
	if err != nil {
		if errors.Is(err, repository.ErrMemberEmailExists) {
			return domain.Member{}, ErrEmailExists
		}
		return domain.Member{}, fmt.Errorf("s.repo.Create -> %w", err)
	}

	return created, nil
}

func (s *MemberService) Profile(ctx context.Context, id uint) (domain.Member, error) {
	member, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return domain.Member{}, ErrUnknownMember
		}
		return domain.Member{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	return member, nil
}

// List returns the association's members, optionally narrowed to one role.
func (s *MemberService) List(ctx context.Context, associationID uint, role string) ([]domain.Member, error) {
	members, err := s.repo.FindByAssociation(ctx, associationID, role)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindByAssociation -> %w", err)
	}

	return members, nil
}

// SetPermissions replaces the capability set of an adherent.
func (s *MemberService) SetPermissions(ctx context.Context, associationID, memberID uint, permissions []string) (domain.Member, error) {
	granted := make([]string, 0, len(permissions))
	for _, p := range permissions {
		if !slices.Contains(knownPermissions, p) {
			return domain.Member{}, fmt.Errorf("%w: %s", ErrUnknownPermission, p)
		}
		if !slices.Contains(granted, p) {
			granted = append(granted, p)
		}
	}

	member, err := s.Profile(ctx, memberID)
	if err != nil {
		return domain.Member{}, err
	}
	if member.AssociationID != associationID {
		return domain.Member{}, ErrUnknownMember
	}

	updated, err := s.repo.UpdatePermissions(ctx, memberID, granted)
	if err != nil {
		return domain.Member{}, fmt.Errorf("s.repo.UpdatePermissions -> %w", err)
	}

	zap.L().Info("member permissions updated",
		zap.Uint("member_id", updated.ID),
		zap.Strings("permissions", updated.Permissions),
	)

	return updated, nil
}

func (s *MemberService) Association(ctx context.Context, id uint) (domain.Association, error) {
	association, err := s.repo.FindAssociation(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAssociationNotFound) {
			return domain.Association{}, ErrUnknownAssociation
		}
		return domain.Association{}, fmt.Errorf("s.repo.FindAssociation -> %w", err)
	}

	return association, nil
}

// UpdateAssociation stores the association's name and balance policy.
func (s *MemberService) UpdateAssociation(ctx context.Context, association domain.Association) (domain.Association, error) {
	if association.OverdraftLimit.IsNegative() || !domain.IsCents(association.OverdraftLimit) {
		return domain.Association{}, fmt.Errorf("%w: overdraft limit", ErrInvalidPolicy)
	}
	if c := association.TopUpCeiling; c != nil && (!c.IsPositive() || !domain.IsCents(*c)) {
		return domain.Association{}, fmt.Errorf("%w: top-up ceiling", ErrInvalidPolicy)
	}
	if !association.AllowOverdraft {
		association.OverdraftLimit = decimal.Zero
	}

	updated, err := s.repo.UpdateAssociation(ctx, association)
	if err != nil {
		if errors.Is(err, repository.ErrAssociationNotFound) {
			return domain.Association{}, ErrUnknownAssociation
		}
		return domain.Association{}, fmt.Errorf("s.repo.UpdateAssociation -> %w", err)
	}

	zap.L().Info("association policy updated",
		zap.Uint("association_id", updated.ID),
		zap.Bool("allow_overdraft", updated.AllowOverdraft),
		zap.String("overdraft_limit", updated.OverdraftLimit.StringFixed(2)),
	)

	return updated, nil
}
