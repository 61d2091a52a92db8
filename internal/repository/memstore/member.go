package memstore

import (
	"context"
	"slices"
	"sort"

	"github.com/bartime/bartime-api/internal/domain"
	"github.com/bartime/bartime-api/internal/repository"
)

type MemberStore struct {
	s *Store
}

func (m *MemberStore) CreateAssociation(_ context.Context, association domain.Association, owner domain.Member) (domain.Association, domain.Member, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, taken := m.s.emailIndex[owner.Email]; taken {
		return domain.Association{}, domain.Member{}, repository.ErrMemberEmailExists
	}

	now := m.s.now()
	association.ID = m.s.id()
	association.CreatedAt, association.UpdatedAt = now, now
	m.s.associations[association.ID] = association

	owner.AssociationID = association.ID
	owner = m.insertLocked(owner)

	return association, owner, nil
}

func (m *MemberStore) Create(_ context.Context, member domain.Member) (domain.Member, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, taken := m.s.emailIndex[member.Email]; taken {
		return domain.Member{}, repository.ErrMemberEmailExists
	}
	if _, ok := m.s.associations[member.AssociationID]; !ok {
		return domain.Member{}, repository.ErrAssociationNotFound
	}

	return m.insertLocked(member), nil
}

func (m *MemberStore) insertLocked(member domain.Member) domain.Member {
	now := m.s.now()
	member.ID = m.s.id()
	member.CreatedAt, member.UpdatedAt = now, now
	if member.Permissions == nil {
		member.Permissions = []string{}
	}
	m.s.members[member.ID] = member
	m.s.emailIndex[member.Email] = member.ID

	return member
}

func (m *MemberStore) FindByID(_ context.Context, id uint) (domain.Member, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	member, ok := m.s.members[id]
	if !ok {
		return domain.Member{}, repository.ErrMemberNotFound
	}

	return member, nil
}

func (m *MemberStore) FindByEmail(_ context.Context, email string) (domain.Member, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	id, ok := m.s.emailIndex[email]
	if !ok {
		return domain.Member{}, repository.ErrMemberNotFound
	}

	return m.s.members[id], nil
}

func (m *MemberStore) FindByAssociation(_ context.Context, associationID uint, role string) ([]domain.Member, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	members := []domain.Member{}
	for _, member := range m.s.members {
		if member.AssociationID != associationID {
			continue
		}
		if role != "" && member.Role != role {
			continue
		}
		members = append(members, member)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

	return members, nil
}

func (m *MemberStore) UpdatePermissions(_ context.Context, id uint, permissions []string) (domain.Member, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	member, ok := m.s.members[id]
	if !ok {
		return domain.Member{}, repository.ErrMemberNotFound
	}
	member.Permissions = slices.Clone(permissions)
	member.UpdatedAt = m.s.now()
	m.s.members[id] = member

	return member, nil
}

func (m *MemberStore) FindAssociation(_ context.Context, id uint) (domain.Association, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	association, ok := m.s.associations[id]
	if !ok {
		return domain.Association{}, repository.ErrAssociationNotFound
	}

	return association, nil
}

func (m *MemberStore) UpdateAssociation(_ context.Context, association domain.Association) (domain.Association, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	current, ok := m.s.associations[association.ID]
	if !ok {
		return domain.Association{}, repository.ErrAssociationNotFound
	}
	association.CreatedAt = current.CreatedAt
	association.UpdatedAt = m.s.now()
	m.s.associations[association.ID] = association

	return association, nil
}
