// Package authz is the owner-administered authorization graph: each privileged
// component holds a Set naming the identities allowed to call its mutation
// entry points.
package authz

import (
	"context"
	"slices"

	"github.com/inaiurai/settlement/internal/host"
	"github.com/inaiurai/settlement/internal/models"
)

// Set is the authorized-caller set of one component. The owner is always authorized.
type Set struct {
	host    *host.Host
	scope   string
	owner   models.Address
	granted map[models.Address]bool
}

func NewSet(h *host.Host, scope string, owner models.Address) *Set {
	return &Set{host: h, scope: scope, owner: owner, granted: make(map[models.Address]bool)}
}

func (s *Set) Scope() string { return s.scope }

func (s *Set) Owner() models.Address { return s.owner }

// Grant authorizes who. Owner only.
func (s *Set) Grant(ctx context.Context, caller, who models.Address) error {
	return s.host.Call(ctx, "grant", func(_ context.Context, tx *host.Tx) error {
		if caller != s.owner {
			return models.ErrUnauthorized
		}
		if who.IsZero() {
			return models.ErrInvalidAddress
		}
		host.TrackKey(tx, s.granted, who)
		s.granted[who] = true
		tx.Emit(models.Event{Kind: models.EventAuthorizationGranted, Subject: who, Counterparty: caller, Detail: s.scope})
		return nil
	})
}

// Revoke removes who from the set. Owner only; revoking an absent identity is a no-op.
func (s *Set) Revoke(ctx context.Context, caller, who models.Address) error {
	return s.host.Call(ctx, "revoke", func(_ context.Context, tx *host.Tx) error {
		if caller != s.owner {
			return models.ErrUnauthorized
		}
		if who.IsZero() {
			return models.ErrInvalidAddress
		}
		if !s.granted[who] {
			return nil
		}
		host.TrackKey(tx, s.granted, who)
		delete(s.granted, who)
		tx.Emit(models.Event{Kind: models.EventAuthorizationRevoked, Subject: who, Counterparty: caller, Detail: s.scope})
		return nil
	})
}

func (s *Set) IsAuthorized(ctx context.Context, who models.Address) bool {
	return host.View(ctx, s.host, func() bool {
		return who == s.owner || s.granted[who]
	})
}

// Granted lists the granted identities in address order.
func (s *Set) Granted(ctx context.Context) []models.Address {
	return host.View(ctx, s.host, func() []models.Address {
		out := make([]models.Address, 0, len(s.granted))
		for a := range s.granted {
			out = append(out, a)
		}
		slices.SortFunc(out, func(a, b models.Address) int { return slices.Compare(a[:], b[:]) })
		return out
	})
}

// Restore replaces the granted identities. Only for start-up, before serving.
func (s *Set) Restore(granted []models.Address) {
	s.granted = make(map[models.Address]bool, len(granted))
	for _, a := range granted {
		s.granted[a] = true
	}
}
