package bootstrap

import (
	"context"
	"fmt"

	"github.com/inaiurai/settlement/internal/escrow"
	"github.com/inaiurai/settlement/internal/models"
)

// Snapshot is the complete persisted state of the core.
type Snapshot struct {
	Seq         uint64
	Identities  []models.Identity
	Forfeited   int64
	Reputations []models.Reputation
	Escrow      escrow.State
	Balances    map[models.Address]int64
	Grants      map[string][]models.Address
}

// Settings are the singleton values of the core.
type Settings struct {
	FeeRecipient models.Address
	Forfeited    int64
}

func (s *System) Snapshot(ctx context.Context) Snapshot {
	var snap Snapshot
	s.Host.Consistent(ctx, func(ctx context.Context, seq uint64) {
		snap.Seq = seq
		snap.Identities, snap.Forfeited = s.Stake.Snapshot(ctx)
		snap.Reputations = s.Reputation.Snapshot(ctx)
		snap.Escrow = s.Escrow.Snapshot(ctx)
		snap.Balances = s.Funds.Balances(ctx)
		snap.Grants = map[string][]models.Address{
			ScopeStake:      s.StakeAuthz.Granted(ctx),
			ScopeReputation: s.ReputationAuthz.Granted(ctx),
		}
	})
	return snap
}

// Restore loads snap into a freshly built system. Only before serving.
func (s *System) Restore(snap Snapshot) error {
	if err := s.Escrow.Restore(snap.Escrow); err != nil {
		return fmt.Errorf("restore escrow: %w", err)
	}
	s.Stake.Restore(snap.Identities, snap.Forfeited)
	s.Reputation.Restore(snap.Reputations)
	s.Funds.Restore(snap.Balances)
	for scope, granted := range snap.Grants {
		set := s.Set(scope)
		if set == nil {
			return fmt.Errorf("restore grants: unknown scope %q", scope)
		}
		set.Restore(granted)
	}
	s.Host.RestoreSeq(snap.Seq)
	return nil
}

// The accessors below resolve single entities for the persistence layer.
// They are called inside a committing unit.

func (s *System) Identity(ctx context.Context, a models.Address) (*models.Identity, bool) {
	id, err := s.Stake.Get(ctx, a)
	return id, err == nil
}

func (s *System) ReputationOf(ctx context.Context, a models.Address) models.Reputation {
	return s.Reputation.Get(ctx, a)
}

func (s *System) Job(ctx context.Context, id uint64) (*models.Job, bool) {
	j, err := s.Escrow.Get(ctx, id)
	return j, err == nil
}

func (s *System) Balance(ctx context.Context, a models.Address) int64 {
	return s.Funds.Balance(ctx, a)
}

func (s *System) Settings(ctx context.Context) Settings {
	return Settings{FeeRecipient: s.Escrow.FeeRecipient(ctx), Forfeited: s.Stake.Forfeited(ctx)}
}

func (s *System) Grants(ctx context.Context, scope string) []models.Address {
	if set := s.Set(scope); set != nil {
		return set.Granted(ctx)
	}
	return nil
}

// Endpoint returns the service endpoint of an active identity, or "".
func (s *System) Endpoint(ctx context.Context, a models.Address) string {
	if id, ok := s.Identity(ctx, a); ok && id.Active {
		return id.Endpoint
	}
	return ""
}
