// Package bootstrap assembles the settlement core in dependency order and
// performs the deployment-time authorization grants.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/inaiurai/settlement/internal/authz"
	"github.com/inaiurai/settlement/internal/escrow"
	"github.com/inaiurai/settlement/internal/host"
	"github.com/inaiurai/settlement/internal/ledger"
	"github.com/inaiurai/settlement/internal/models"
	"github.com/inaiurai/settlement/internal/reputation"
	"github.com/inaiurai/settlement/internal/stake"
)

// Authorization scopes.
const (
	ScopeStake      = "stake"
	ScopeReputation = "reputation"
)

type Options struct {
	Owner models.Address
	Clock host.Clock
	Log   *slog.Logger
}

// System is the wired core.
type System struct {
	Owner           models.Address
	Host            *host.Host
	Funds           ledger.Service
	StakeAuthz      *authz.Set
	ReputationAuthz *authz.Set
	Stake           stake.Service
	Reputation      reputation.Service
	Escrow          escrow.Service
}

// New builds the core: host, fund ledger, authorization sets, stake ledger,
// reputation ledger, escrow. Call Deploy before serving.
func New(opts Options) (*System, error) {
	if opts.Owner.IsZero() {
		return nil, fmt.Errorf("bootstrap: owner: %w", models.ErrInvalidAddress)
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	h := host.New(opts.Clock, log.With("component", "host"))
	funds := ledger.NewService(h, opts.Owner, log.With("component", "ledger"))
	stakeSet := authz.NewSet(h, ScopeStake, opts.Owner)
	repSet := authz.NewSet(h, ScopeReputation, opts.Owner)
	stakeSvc := stake.NewService(h, models.StakeLedgerAddress, funds, stakeSet, log.With("component", "stake"))
	repSvc := reputation.NewService(h, models.ReputationLedgerAddress, stakeSvc, repSet, log.With("component", "reputation"))
	escrowSvc := escrow.NewService(h, models.EscrowAddress, opts.Owner, funds, stakeSvc, repSvc, log.With("component", "escrow"))

	return &System{
		Owner:           opts.Owner,
		Host:            h,
		Funds:           funds,
		StakeAuthz:      stakeSet,
		ReputationAuthz: repSet,
		Stake:           stakeSvc,
		Reputation:      repSvc,
		Escrow:          escrowSvc,
	}, nil
}

// Deploy grants the reputation ledger the right to seize stake and the escrow
// the right to mutate reputation. Grants already in place are kept.
func (s *System) Deploy(ctx context.Context) error {
	grants := []struct {
		set *authz.Set
		who models.Address
	}{
		{s.StakeAuthz, s.Reputation.Address()},
		{s.ReputationAuthz, s.Escrow.Address()},
	}
	return s.Host.Call(ctx, "deploy", func(ctx context.Context, _ *host.Tx) error {
		for _, g := range grants {
			if g.set.IsAuthorized(ctx, g.who) {
				continue
			}
			if err := g.set.Grant(ctx, s.Owner, g.who); err != nil {
				return fmt.Errorf("grant %s on %s: %w", g.who, g.set.Scope(), err)
			}
		}
		return nil
	})
}

// Set returns the authorization set for scope, or nil.
func (s *System) Set(scope string) *authz.Set {
	switch scope {
	case ScopeStake:
		return s.StakeAuthz
	case ScopeReputation:
		return s.ReputationAuthz
	default:
		return nil
	}
}
