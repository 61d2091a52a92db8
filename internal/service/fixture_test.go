package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bartime/bartime-api/internal/domain"
	"github.com/bartime/bartime-api/internal/repository/memstore"
)

// tb is satisfied by *testing.T and *rapid.T.
type tb interface {
	require.TestingT
	Helper()
}

type fixture struct {
	store  *memstore.Store
	ledger *LedgerService
	badges *BadgeService

	association domain.Association
	owner       domain.Member
	adherent    domain.Member
}

func newFixture(t tb) *fixture {
	t.Helper()

	store := memstore.New()
	association, owner, err := store.Members().CreateAssociation(context.Background(),
		domain.Association{Name: "Bar des Sciences"},
		domain.Member{Name: "Ada", Surname: "Owner", Email: "owner@bar.test", Role: domain.RoleAssociation},
	)
	require.NoError(t, err)

	adherent, err := store.Members().Create(context.Background(), domain.Member{
		Name:          "Bob",
		Surname:       "Member",
		Email:         "bob@bar.test",
		AssociationID: association.ID,
		Role:          domain.RoleAdherent,
	})
	require.NoError(t, err)

	return &fixture{
		store:       store,
		ledger:      NewLedgerService(store.Ledger(), store.Badges(), store.Members(), LedgerSettings{}),
		badges:      NewBadgeService(store.Badges(), store.Members(), store.Ledger()),
		association: association,
		owner:       owner,
		adherent:    adherent,
	}
}

func (f *fixture) actor() domain.Actor {
	return f.owner.Actor()
}

func (f *fixture) pair(t tb, tagID string) domain.BadgeView {
	t.Helper()

	view, err := f.badges.Pair(context.Background(), f.association.ID, tagID, f.adherent.ID)
	require.NoError(t, err)

	return view
}

func (f *fixture) request(tagID, amount, reference string) LedgerRequest {
	return LedgerRequest{
		TagID:     tagID,
		Amount:    decimal.RequireFromString(amount),
		Reference: reference,
		Actor:     f.actor(),
	}
}

func requireAmount(t tb, want string, got decimal.Decimal) {
	t.Helper()
	require.Equal(t, want, got.StringFixed(2))
}
