// Package reputation is the reputation ledger: per-identity score, job
// counters, earnings and slash history, mutated only by authorized callers.
package reputation

import (
	"context"
	"log/slog"
	"math"
	"math/bits"
	"slices"

	"github.com/inaiurai/settlement/internal/host"
	"github.com/inaiurai/settlement/internal/models"
)

// Stake is the part of the stake ledger the reputation ledger depends on.
type Stake interface {
	IsActive(ctx context.Context, who models.Address) bool
	Seize(ctx context.Context, caller, who models.Address, amount int64) error
}

type Authorizer interface {
	IsAuthorized(ctx context.Context, who models.Address) bool
}

type Service interface {
	Increase(ctx context.Context, caller, who models.Address, amount int64) error
	Decrease(ctx context.Context, caller, who models.Address, amount int64) error
	ApplySlash(ctx context.Context, caller, who models.Address, amount int64) error
	RecordEarnings(ctx context.Context, caller, who models.Address, amount int64) error

	Get(ctx context.Context, who models.Address) models.Reputation
	TrustScore(ctx context.Context, who models.Address) int64
	Address() models.Address

	Snapshot(ctx context.Context) []models.Reputation
	Restore(records []models.Reputation)
}

type service struct {
	host    *host.Host
	self    models.Address
	stake   Stake
	authz   Authorizer
	records map[models.Address]*models.Reputation
	log     *slog.Logger
}

func NewService(h *host.Host, self models.Address, stake Stake, authz Authorizer, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	return &service{
		host:    h,
		self:    self,
		stake:   stake,
		authz:   authz,
		records: make(map[models.Address]*models.Reputation),
		log:     log,
	}
}

var _ Service = (*service)(nil)

func (s *service) Address() models.Address { return s.self }

// Increase adds amount to who's score and counts a completed job.
func (s *service) Increase(ctx context.Context, caller, who models.Address, amount int64) error {
	return s.mutate(ctx, "increase_reputation", caller, amount, func(ctx context.Context, tx *host.Tx) error {
		if !s.stake.IsActive(ctx, who) {
			return models.ErrNotActive
		}
		r := s.record(tx, who)
		r.Score = saturatingAdd(r.Score, amount)
		r.Completed = saturatingAdd(r.Completed, 1)
		r.UpdatedAt = tx.Now()
		tx.Emit(models.Event{Kind: models.EventReputationUpdated, Subject: who, Counterparty: caller, Amount: amount, Detail: "increase"})
		tx.Emit(models.Event{Kind: models.EventJobCompleted, Subject: who, Counterparty: caller})
		return nil
	})
}

// Decrease subtracts amount from who's score, floored at zero, and counts a failed job.
func (s *service) Decrease(ctx context.Context, caller, who models.Address, amount int64) error {
	return s.mutate(ctx, "decrease_reputation", caller, amount, func(_ context.Context, tx *host.Tx) error {
		r := s.record(tx, who)
		r.Score = max(r.Score-amount, 0)
		r.Failed = saturatingAdd(r.Failed, 1)
		r.UpdatedAt = tx.Now()
		tx.Emit(models.Event{Kind: models.EventReputationUpdated, Subject: who, Counterparty: caller, Amount: -amount, Detail: "decrease"})
		tx.Emit(models.Event{Kind: models.EventJobFailed, Subject: who, Counterparty: caller})
		return nil
	})
}

// ApplySlash counts a slash against who and seizes amount of its stake.
// A failed seizure fails the whole call.
func (s *service) ApplySlash(ctx context.Context, caller, who models.Address, amount int64) error {
	return s.mutate(ctx, "apply_slash", caller, amount, func(ctx context.Context, tx *host.Tx) error {
		r := s.record(tx, who)
		r.Slashes = saturatingAdd(r.Slashes, 1)
		r.UpdatedAt = tx.Now()
		if err := s.stake.Seize(ctx, s.self, who, amount); err != nil {
			return err
		}
		tx.Emit(models.Event{Kind: models.EventReputationUpdated, Subject: who, Counterparty: caller, Amount: amount, Detail: "slash"})
		return nil
	})
}

func (s *service) RecordEarnings(ctx context.Context, caller, who models.Address, amount int64) error {
	return s.mutate(ctx, "record_earnings", caller, amount, func(_ context.Context, tx *host.Tx) error {
		r := s.record(tx, who)
		r.Earnings = saturatingAdd(r.Earnings, amount)
		r.UpdatedAt = tx.Now()
		return nil
	})
}

func (s *service) mutate(ctx context.Context, op string, caller models.Address, amount int64, fn func(context.Context, *host.Tx) error) error {
	return s.host.Call(ctx, op, func(ctx context.Context, tx *host.Tx) error {
		if !s.authz.IsAuthorized(ctx, caller) {
			return models.ErrNotAuthorized
		}
		if amount < 0 {
			return models.ErrInvalidAmount
		}
		return fn(ctx, tx)
	})
}

// record returns who's record for mutation, creating it on first use.
func (s *service) record(tx *host.Tx, who models.Address) *models.Reputation {
	r, ok := s.records[who]
	if !ok {
		host.TrackKey(tx, s.records, who)
		r = &models.Reputation{Address: who}
		s.records[who] = r
		return r
	}
	host.Track(tx, r)
	return r
}

// Get returns who's record; identities never touched get the zero record.
func (s *service) Get(ctx context.Context, who models.Address) models.Reputation {
	return host.View(ctx, s.host, func() models.Reputation {
		if r, ok := s.records[who]; ok {
			return *r
		}
		return models.Reputation{Address: who}
	})
}

func (s *service) TrustScore(ctx context.Context, who models.Address) int64 {
	return TrustScore(s.Get(ctx, who))
}

// TrustScore combines score, slash history and success rate:
//
//	rate  = completed*100 / (completed+failed)
//	base  = max(score - slashes*SlashWeight, 0)
//	trust = base*rate / 100
//
// It is 0 until the first completed job. Products are taken in 128 bits so
// saturated records still score.
func TrustScore(r models.Reputation) int64 {
	if r.Completed <= 0 {
		return 0
	}
	rate := mulDiv(uint64(r.Completed), 100, uint64(r.Completed)+uint64(r.Failed))
	var base int64
	if r.Slashes <= r.Score/models.SlashWeight {
		base = r.Score - r.Slashes*models.SlashWeight
	}
	return int64(mulDiv(uint64(base), rate, 100))
}

// saturatingAdd adds a non-negative delta, pinning at math.MaxInt64.
func saturatingAdd(v, delta int64) int64 {
	if v > math.MaxInt64-delta {
		return math.MaxInt64
	}
	return v + delta
}

// mulDiv returns a*b/d. The quotient must fit in 64 bits.
func mulDiv(a, b, d uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	q, _ := bits.Div64(hi, lo, d)
	return q
}

func (s *service) Snapshot(ctx context.Context) []models.Reputation {
	return host.View(ctx, s.host, func() []models.Reputation {
		out := make([]models.Reputation, 0, len(s.records))
		for _, r := range s.records {
			out = append(out, *r)
		}
		slices.SortFunc(out, func(a, b models.Reputation) int { return slices.Compare(a.Address[:], b.Address[:]) })
		return out
	})
}

// Restore replaces all records. Only for start-up, before serving.
func (s *service) Restore(records []models.Reputation) {
	s.records = make(map[models.Address]*models.Reputation, len(records))
	for _, r := range records {
		r := r
		s.records[r.Address] = &r
	}
}
