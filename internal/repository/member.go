package repository

import (
	"context"
	"fmt"

	"github.com/bartime/bartime-api/internal/domain"
	"github.com/bartime/bartime-api/internal/repository/dao"
)

var (
	ErrMemberEmailExists   = dao.ErrMemberEmailExists
	ErrMemberNotFound      = dao.ErrMemberNotFound
	ErrAssociationNotFound = dao.ErrAssociationNotFound
)

type MemberDAO interface {
	InsertAssociation(ctx context.Context, association dao.Association, owner dao.Member) (dao.Association, dao.Member, error)
	Insert(ctx context.Context, member dao.Member) (dao.Member, error)
	FindByID(ctx context.Context, id uint) (dao.Member, error)
	FindByEmail(ctx context.Context, email string) (dao.Member, error)
	FindByAssociation(ctx context.Context, associationID uint, role string) ([]dao.Member, error)
	UpdatePermissions(ctx context.Context, id uint, permissions []string) (dao.Member, error)
	FindAssociation(ctx context.Context, id uint) (dao.Association, error)
	UpdateAssociation(ctx context.Context, association dao.Association) (dao.Association, error)
}

type MemberRepository struct {
	dao MemberDAO
}

func NewMemberRepository(dao MemberDAO) *MemberRepository {
	return &MemberRepository{
		dao: dao,
	}
}

func (r *MemberRepository) CreateAssociation(ctx context.Context, association domain.Association, owner domain.Member) (domain.Association, domain.Member, error) {
	createdAssociation, createdOwner, err := r.dao.InsertAssociation(ctx, associationToDAO(association), memberToDAO(owner))
	if err != nil {
		return domain.Association{}, domain.Member{}, fmt.Errorf("r.dao.InsertAssociation -> %w", err)
	}

	return associationToDomain(createdAssociation), memberToDomain(createdOwner), nil
}

func (r *MemberRepository) Create(ctx context.Context, member domain.Member) (domain.Member, error) {
	created, err := r.dao.Insert(ctx, memberToDAO(member))
	if err != nil {
		return domain.Member{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return memberToDomain(created), nil
}

func (r *MemberRepository) FindByID(ctx context.Context, id uint) (domain.Member, error) {
	found, err := r.dao.FindByID(ctx, id)
	if err != nil {
		return domain.Member{}, fmt.Errorf("r.dao.FindByID -> %w", err)
	}

	return memberToDomain(found), nil
}

func (r *MemberRepository) FindByEmail(ctx context.Context, email string) (domain.Member, error) {
	found, err := r.dao.FindByEmail(ctx, email)
	if err != nil {
		return domain.Member{}, fmt.Errorf("r.dao.FindByEmail -> %w", err)
	}

	return memberToDomain(found), nil
}

func (r *MemberRepository) FindByAssociation(ctx context.Context, associationID uint, role string) ([]domain.Member, error) {
	found, err := r.dao.FindByAssociation(ctx, associationID, role)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByAssociation -> %w", err)
	}

	members := make([]domain.Member, 0, len(found))
	for _, m := range found {
		members = append(members, memberToDomain(m))
	}

	return members, nil
}

func (r *MemberRepository) UpdatePermissions(ctx context.Context, id uint, permissions []string) (domain.Member, error) {
	updated, err := r.dao.UpdatePermissions(ctx, id, permissions)
	if err != nil {
		return domain.Member{}, fmt.Errorf("r.dao.UpdatePermissions -> %w", err)
	}

	return memberToDomain(updated), nil
}

func (r *MemberRepository) FindAssociation(ctx context.Context, id uint) (domain.Association, error) {
	found, err := r.dao.FindAssociation(ctx, id)
	if err != nil {
		return domain.Association{}, fmt.Errorf("r.dao.FindAssociation -> %w", err)
	}

	return associationToDomain(found), nil
}

func (r *MemberRepository) UpdateAssociation(ctx context.Context, association domain.Association) (domain.Association, error) {
	updated, err := r.dao.UpdateAssociation(ctx, associationToDAO(association))
	if err != nil {
		return domain.Association{}, fmt.Errorf("r.dao.UpdateAssociation -> %w", err)
	}

	return associationToDomain(updated), nil
}

func memberToDAO(m domain.Member) dao.Member {
	permissions := m.Permissions
	if permissions == nil {
		permissions = []string{}
	}

	return dao.Member{
		ID:            m.ID,
		Name:          m.Name,
		Surname:       m.Surname,
		Email:         m.Email,
		Password:      m.Password,
		AssociationID: m.AssociationID,
		Role:          m.Role,
		Permissions:   permissions,
	}
}

func memberToDomain(m dao.Member) domain.Member {
	return domain.Member{
		ID:            m.ID,
		Name:          m.Name,
		Surname:       m.Surname,
		Email:         m.Email,
		Password:      m.Password,
		AssociationID: m.AssociationID,
		Role:          m.Role,
		Permissions:   m.Permissions,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func associationToDAO(a domain.Association) dao.Association {
	return dao.Association{
		ID:             a.ID,
		Name:           a.Name,
		AllowOverdraft: a.AllowOverdraft,
		OverdraftLimit: a.OverdraftLimit,
		TopUpCeiling:   a.TopUpCeiling,
	}
}

func associationToDomain(a dao.Association) domain.Association {
	return domain.Association{
		ID:             a.ID,
		Name:           a.Name,
		AllowOverdraft: a.AllowOverdraft,
		OverdraftLimit: a.OverdraftLimit,
		TopUpCeiling:   a.TopUpCeiling,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}
