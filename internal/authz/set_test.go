package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inaiurai/settlement/internal/host"
	"github.com/inaiurai/settlement/internal/models"
)

var (
	owner  = models.MustParseAddress("0x00000000000000000000000000000000000000f0")
	escrow = models.EscrowAddress
	mallet = models.MustParseAddress("0x00000000000000000000000000000000000000e1")
)

func TestSet_GrantRevoke(t *testing.T) {
	h := host.New(nil, nil)
	var events []models.Event
	h.Observe(func(evs []models.Event) { events = append(events, evs...) })
	s := NewSet(h, "reputation", owner)
	ctx := context.Background()

	assert.True(t, s.IsAuthorized(ctx, owner), "owner is always authorized")
	assert.False(t, s.IsAuthorized(ctx, escrow))

	require.NoError(t, s.Grant(ctx, owner, escrow))
	assert.True(t, s.IsAuthorized(ctx, escrow))
	assert.Equal(t, []models.Address{escrow}, s.Granted(ctx))

	require.NoError(t, s.Revoke(ctx, owner, escrow))
	assert.False(t, s.IsAuthorized(ctx, escrow))

	require.Len(t, events, 2)
	assert.Equal(t, models.EventAuthorizationGranted, events[0].Kind)
	assert.Equal(t, models.EventAuthorizationRevoked, events[1].Kind)
	assert.Equal(t, "reputation", events[0].Detail)
	assert.Equal(t, escrow, events[0].Subject)
}

func TestSet_OnlyOwnerAdministers(t *testing.T) {
	s := NewSet(host.New(nil, nil), "stake", owner)
	ctx := context.Background()

	assert.ErrorIs(t, s.Grant(ctx, mallet, mallet), models.ErrUnauthorized)
	assert.False(t, s.IsAuthorized(ctx, mallet))

	require.NoError(t, s.Grant(ctx, owner, escrow))
	assert.ErrorIs(t, s.Revoke(ctx, escrow, escrow), models.ErrUnauthorized, "granted callers cannot administer")
	assert.ErrorIs(t, s.Grant(ctx, owner, models.Address{}), models.ErrInvalidAddress)
}

func TestSet_GrantRolledBackWithCall(t *testing.T) {
	h := host.New(nil, nil)
	s := NewSet(h, "stake", owner)
	ctx := context.Background()

	err := h.Call(ctx, "outer", func(ctx context.Context, _ *host.Tx) error {
		require.NoError(t, s.Grant(ctx, owner, escrow))
		return models.ErrInvalidAmount
	})
	assert.ErrorIs(t, err, models.ErrInvalidAmount)
	assert.False(t, s.IsAuthorized(ctx, escrow))
}

func TestSet_Restore(t *testing.T) {
	s := NewSet(host.New(nil, nil), "stake", owner)
	s.Restore([]models.Address{escrow, mallet})
	ctx := context.Background()

	assert.True(t, s.IsAuthorized(ctx, mallet))
	assert.Len(t, s.Granted(ctx), 2)
}
