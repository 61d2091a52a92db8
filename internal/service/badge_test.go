package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartime/bartime-api/internal/domain"
)

func TestBadge_Pair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view := f.pair(t, "  TAG-1 ")
	assert.Equal(t, "TAG-1", view.Badge.TagID)
	assert.Equal(t, domain.BadgeActive, view.Badge.Status)
	assert.Equal(t, f.adherent.ID, view.Member.ID)
	assert.True(t, view.Account.Balance.IsZero())
	assert.Zero(t, view.Account.Version)

	_, err := f.badges.Pair(ctx, f.association.ID, "TAG-1", f.owner.ID)
	assert.ErrorIs(t, err, ErrAlreadyPaired)

	_, err = f.badges.Pair(ctx, f.association.ID, "  ", f.adherent.ID)
	assert.ErrorIs(t, err, ErrInvalidTagID)

	_, err = f.badges.Pair(ctx, f.association.ID, "TAG-2", 9999)
	assert.ErrorIs(t, err, ErrUnknownMember)
}

func TestBadge_PairRejectsMemberOfAnotherAssociation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, _, err := f.store.Members().CreateAssociation(ctx,
		domain.Association{Name: "Other bar"},
		domain.Member{Email: "other@bar.test", Role: domain.RoleAssociation},
	)
	require.NoError(t, err)

	_, err = f.badges.Pair(ctx, other.ID, "TAG-1", f.adherent.ID)
	assert.ErrorIs(t, err, ErrUnknownMember)
}

func TestBadge_Lifecycle(t *testing.T) {
	f := newFixture(t)
	f.pair(t, "TAG-1")
	ctx := context.Background()

	_, err := f.badges.Remove(ctx, f.association.ID, "TAG-1")
	require.ErrorIs(t, err, ErrBadgeStillActive)

	badge, err := f.badges.SetActive(ctx, f.association.ID, "TAG-1", false)
	require.NoError(t, err)
	assert.Equal(t, domain.BadgeInactive, badge.Status)

	badge, err = f.badges.SetActive(ctx, f.association.ID, "TAG-1", false)
	require.NoError(t, err)
	assert.Equal(t, domain.BadgeInactive, badge.Status)

	removed, err := f.badges.Remove(ctx, f.association.ID, "TAG-1")
	require.NoError(t, err)
	assert.Equal(t, domain.BadgeRemoved, removed.Status)
	assert.NotNil(t, removed.RemovedAt)

	_, err = f.badges.Get(ctx, f.association.ID, "TAG-1")
	assert.ErrorIs(t, err, ErrUnknownBadge)

	// The tag is free again and gets a fresh account.
	view := f.pair(t, "TAG-1")
	assert.NotEqual(t, removed.ID, view.Badge.ID)
	assert.True(t, view.Account.Balance.IsZero())
}

func TestBadge_ReadsAreScopedToAssociation(t *testing.T) {
	f := newFixture(t)
	view := f.pair(t, "TAG-1")
	ctx := context.Background()

	got, err := f.badges.Get(ctx, f.association.ID, "TAG-1")
	require.NoError(t, err)
	assert.Equal(t, view.Badge.ID, got.Badge.ID)

	owner, err := f.badges.Owner(ctx, f.association.ID, "TAG-1")
	require.NoError(t, err)
	assert.Equal(t, f.adherent.ID, owner)

	_, err = f.badges.Get(ctx, f.association.ID+1, "TAG-1")
	assert.ErrorIs(t, err, ErrUnknownBadge)

	_, err = f.badges.SetActive(ctx, f.association.ID+1, "TAG-1", false)
	assert.ErrorIs(t, err, ErrUnknownBadge)
}

func TestBadge_Lists(t *testing.T) {
	f := newFixture(t)
	f.pair(t, "TAG-1")
	f.pair(t, "TAG-2")
	ctx := context.Background()

	_, err := f.ledger.TopUp(ctx, f.request("TAG-2", "4.00", "t1"))
	require.NoError(t, err)

	views, err := f.badges.List(ctx, f.association.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "TAG-1", views[0].Badge.TagID)
	requireAmount(t, "4.00", views[1].Account.Balance)
	assert.Equal(t, f.adherent.Email, views[1].Member.Email)

	views, err = f.badges.ListByMember(ctx, f.association.ID, f.adherent.ID)
	require.NoError(t, err)
	assert.Len(t, views, 2)

	views, err = f.badges.ListByMember(ctx, f.association.ID, f.owner.ID)
	require.NoError(t, err)
	assert.Empty(t, views)

	_, err = f.badges.ListByMember(ctx, f.association.ID+1, f.adherent.ID)
	assert.ErrorIs(t, err, ErrUnknownMember)
}
