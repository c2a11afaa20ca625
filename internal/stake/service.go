// Package stake is the stake ledger: per-identity collateral, the activity
// flag, and the seizure capability granted to trusted callers.
package stake

import (
	"context"
	"log/slog"

	"github.com/inaiurai/settlement/internal/host"
	"github.com/inaiurai/settlement/internal/models"
)

// Funds is the part of the fund ledger the stake ledger pays through.
type Funds interface {
	Transfer(ctx context.Context, from, to models.Address, amount int64) error
}

// Authorizer decides who may seize stake.
type Authorizer interface {
	IsAuthorized(ctx context.Context, who models.Address) bool
	Owner() models.Address
}

// Profile is the opaque, caller-supplied part of an identity.
type Profile struct {
	Metadata     string
	Capabilities []string
	Endpoint     string
}

type Service interface {
	Register(ctx context.Context, caller models.Address, p Profile, amount int64) (*models.Identity, error)
	UpdateProfile(ctx context.Context, caller models.Address, p Profile) (*models.Identity, error)
	DepositStake(ctx context.Context, caller models.Address, amount int64) error
	WithdrawStake(ctx context.Context, caller models.Address, amount int64) error
	Deactivate(ctx context.Context, caller models.Address) error
	Seize(ctx context.Context, caller, who models.Address, amount int64) error
	SweepForfeited(ctx context.Context, caller, to models.Address) error

	IsActive(ctx context.Context, who models.Address) bool
	Get(ctx context.Context, who models.Address) (*models.Identity, error)
	List(ctx context.Context, f ListFilter) []*models.Identity
	Forfeited(ctx context.Context) int64
	Address() models.Address

	Snapshot(ctx context.Context) ([]models.Identity, int64)
	Restore(ids []models.Identity, forfeited int64)
}

type service struct {
	host  *host.Host
	self  models.Address
	funds Funds
	authz Authorizer
	dir   *directory
	log   *slog.Logger

	// forfeited is seized stake still held at self.
	forfeited int64
}

// NewService returns a stake ledger that holds collateral at self.
func NewService(h *host.Host, self models.Address, funds Funds, authz Authorizer, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	return &service{host: h, self: self, funds: funds, authz: authz, dir: newDirectory(), log: log}
}

var _ Service = (*service)(nil)

func (s *service) Address() models.Address { return s.self }

// Register opens an account for caller, locking amount from the caller's funds.
// An identity may register again after deactivating.
func (s *service) Register(ctx context.Context, caller models.Address, p Profile, amount int64) (*models.Identity, error) {
	var out models.Identity
	err := s.host.Call(ctx, "register", func(ctx context.Context, tx *host.Tx) error {
		if caller.IsZero() {
			return models.ErrInvalidAddress
		}
		if s.dir.active(caller) != nil {
			return models.ErrAlreadyRegistered
		}
		if amount < models.MinimumStake {
			return models.ErrInsufficientStake
		}
		id := &models.Identity{
			Address:      caller,
			Metadata:     p.Metadata,
			Capabilities: normalizeCapabilities(p.Capabilities),
			Endpoint:     p.Endpoint,
			Stake:        amount,
			Active:       true,
			RegisteredAt: tx.Now(),
		}
		s.dir.put(tx, id)
		if err := s.funds.Transfer(ctx, caller, s.self, amount); err != nil {
			return err
		}
		tx.Emit(models.Event{Kind: models.EventIdentityRegistered, Subject: caller, Amount: amount, Detail: p.Endpoint})
		out = id.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("identity registered", "address", caller, "stake", amount)
	return &out, nil
}

func (s *service) UpdateProfile(ctx context.Context, caller models.Address, p Profile) (*models.Identity, error) {
	var out models.Identity
	err := s.host.Call(ctx, "update_profile", func(_ context.Context, tx *host.Tx) error {
		acc := s.dir.active(caller)
		if acc == nil {
			return models.ErrNotRegistered
		}
		s.dir.update(tx, acc, func(id *models.Identity) {
			id.Metadata = p.Metadata
			id.Capabilities = normalizeCapabilities(p.Capabilities)
			id.Endpoint = p.Endpoint
		})
		tx.Emit(models.Event{Kind: models.EventProfileUpdated, Subject: caller, Detail: p.Endpoint})
		out = acc.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DepositStake adds amount to the caller's stake. Depositing to an inactive
// account is reported as an invalid amount, the same as a zero deposit.
func (s *service) DepositStake(ctx context.Context, caller models.Address, amount int64) error {
	return s.host.Call(ctx, "deposit_stake", func(ctx context.Context, tx *host.Tx) error {
		acc := s.dir.active(caller)
		if amount <= 0 || acc == nil {
			return models.ErrInvalidAmount
		}
		s.dir.update(tx, acc, func(id *models.Identity) { id.Stake += amount })
		if err := s.funds.Transfer(ctx, caller, s.self, amount); err != nil {
			return err
		}
		tx.Emit(models.Event{Kind: models.EventStakeDeposited, Subject: caller, Amount: amount})
		return nil
	})
}

// WithdrawStake returns amount to the caller as long as the minimum stays locked.
func (s *service) WithdrawStake(ctx context.Context, caller models.Address, amount int64) error {
	return s.host.Call(ctx, "withdraw_stake", func(ctx context.Context, tx *host.Tx) error {
		if amount <= 0 {
			return models.ErrInvalidAmount
		}
		acc := s.dir.active(caller)
		if acc == nil {
			return models.ErrNotRegistered
		}
		if acc.Stake-amount < models.MinimumStake {
			return models.ErrMustMaintainMinimum
		}
		s.dir.update(tx, acc, func(id *models.Identity) { id.Stake -= amount })
		if err := s.funds.Transfer(ctx, s.self, caller, amount); err != nil {
			return err
		}
		tx.Emit(models.Event{Kind: models.EventStakeWithdrawn, Subject: caller, Amount: amount})
		return nil
	})
}

// Deactivate closes the caller's account and refunds its whole stake in the
// same unit: if the refund fails the account stays active and funded.
func (s *service) Deactivate(ctx context.Context, caller models.Address) error {
	var refund int64
	err := s.host.Call(ctx, "deactivate", func(ctx context.Context, tx *host.Tx) error {
		acc := s.dir.active(caller)
		if acc == nil {
			return models.ErrNotRegistered
		}
		refund = acc.Stake
		s.dir.update(tx, acc, func(id *models.Identity) {
			id.Active = false
			id.Stake = 0
		})
		if refund > 0 {
			if err := s.funds.Transfer(ctx, s.self, caller, refund); err != nil {
				return err
			}
		}
		tx.Emit(models.Event{Kind: models.EventIdentityDeactivated, Subject: caller, Amount: refund})
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("identity deactivated", "address", caller, "refund", refund)
	return nil
}

// Seize removes amount from who's stake. The value stays at the stake ledger
// as forfeited funds; the minimum is not enforced.
func (s *service) Seize(ctx context.Context, caller, who models.Address, amount int64) error {
	return s.host.Call(ctx, "seize", func(ctx context.Context, tx *host.Tx) error {
		if !s.authz.IsAuthorized(ctx, caller) {
			return models.ErrUnauthorized
		}
		if amount <= 0 {
			return models.ErrInvalidAmount
		}
		acc := s.dir.active(who)
		if acc == nil {
			return models.ErrNotActive
		}
		if acc.Stake < amount {
			return models.ErrInsufficientStake
		}
		s.dir.update(tx, acc, func(id *models.Identity) { id.Stake -= amount })
		host.Track(tx, &s.forfeited)
		s.forfeited += amount
		tx.Emit(models.Event{Kind: models.EventStakeSlashed, Subject: who, Counterparty: caller, Amount: amount})
		return nil
	})
}

// SweepForfeited pays all forfeited stake to to. Owner only.
func (s *service) SweepForfeited(ctx context.Context, caller, to models.Address) error {
	return s.host.Call(ctx, "sweep_forfeited", func(ctx context.Context, tx *host.Tx) error {
		if caller != s.authz.Owner() {
			return models.ErrUnauthorized
		}
		if to.IsZero() {
			return models.ErrInvalidAddress
		}
		amount := s.forfeited
		if amount == 0 {
			return models.ErrInvalidAmount
		}
		host.Track(tx, &s.forfeited)
		s.forfeited = 0
		if err := s.funds.Transfer(ctx, s.self, to, amount); err != nil {
			return err
		}
		tx.Emit(models.Event{Kind: models.EventForfeitSwept, Subject: to, Counterparty: s.self, Amount: amount})
		return nil
	})
}

func (s *service) IsActive(ctx context.Context, who models.Address) bool {
	return host.View(ctx, s.host, func() bool { return s.dir.active(who) != nil })
}

// Get returns the account of who, active or not.
func (s *service) Get(ctx context.Context, who models.Address) (*models.Identity, error) {
	var out *models.Identity
	s.host.Read(ctx, func() {
		if acc := s.dir.get(who); acc != nil {
			c := acc.Clone()
			out = &c
		}
	})
	if out == nil {
		return nil, models.ErrNotRegistered
	}
	return out, nil
}

func (s *service) List(ctx context.Context, f ListFilter) []*models.Identity {
	return host.View(ctx, s.host, func() []*models.Identity { return s.dir.list(f) })
}

func (s *service) Forfeited(ctx context.Context) int64 {
	return host.View(ctx, s.host, func() int64 { return s.forfeited })
}

// Snapshot returns every account in registration order and the forfeited total.
func (s *service) Snapshot(ctx context.Context) ([]models.Identity, int64) {
	var ids []models.Identity
	var forfeited int64
	s.host.Read(ctx, func() {
		ids = s.dir.snapshot()
		forfeited = s.forfeited
	})
	return ids, forfeited
}

// Restore replaces all accounts. Only for start-up, before serving.
func (s *service) Restore(ids []models.Identity, forfeited int64) {
	s.dir.restore(ids)
	s.forfeited = forfeited
}
