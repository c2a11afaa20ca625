// Package escrow is the job escrow state machine. It custodies the price of
// every job until the master approves, rejects or cancels it.
//
//	created -> accepted -> submitted -> approved | slashed
//	created -> cancelled
//	accepted -> cancelled   (only after the deadline)
//
// Terminal transitions flip the state and the released flag before any
// fund transfer, so a recipient that re-enters the escrow sees a terminal job.
package escrow

import (
	"context"
	"log/slog"
	"time"

	"github.com/inaiurai/settlement/internal/host"
	"github.com/inaiurai/settlement/internal/models"
)

type Funds interface {
	Transfer(ctx context.Context, from, to models.Address, amount int64) error
}

type Stake interface {
	IsActive(ctx context.Context, who models.Address) bool
}

// Reputation is the mutation surface of the reputation ledger. The escrow
// calls it under its own identity.
type Reputation interface {
	Increase(ctx context.Context, caller, who models.Address, amount int64) error
	Decrease(ctx context.Context, caller, who models.Address, amount int64) error
	ApplySlash(ctx context.Context, caller, who models.Address, amount int64) error
	RecordEarnings(ctx context.Context, caller, who models.Address, amount int64) error
}

type Service interface {
	CreateJob(ctx context.Context, master, worker models.Address, price int64, deadline time.Time) (*models.Job, error)
	AcceptJob(ctx context.Context, caller models.Address, id uint64) error
	SubmitResult(ctx context.Context, caller models.Address, id uint64, commitment models.Hash, reference string) error
	ApproveAndRelease(ctx context.Context, caller models.Address, id uint64) error
	RejectAndSlash(ctx context.Context, caller models.Address, id uint64, slashAmount int64) error
	CancelJob(ctx context.Context, caller models.Address, id uint64) error
	SetFeeRecipient(ctx context.Context, caller, recipient models.Address) error

	Get(ctx context.Context, id uint64) (*models.Job, error)
	List(ctx context.Context, f ListFilter) []*models.Job
	TotalLocked(ctx context.Context) int64
	JobCount(ctx context.Context) uint64
	FeeRecipient(ctx context.Context) models.Address
	Address() models.Address

	Snapshot(ctx context.Context) State
	Restore(st State) error
}

// State is everything the escrow persists.
type State struct {
	Jobs         []models.Job
	FeeRecipient models.Address
}

type service struct {
	host         *host.Host
	self         models.Address
	owner        models.Address
	funds        Funds
	stake        Stake
	rep          Reputation
	table        jobTable
	feeRecipient models.Address
	log          *slog.Logger
}

// NewService returns an escrow holding funds at self. Fees go to the platform
// address until the owner sets another recipient.
func NewService(h *host.Host, self, owner models.Address, funds Funds, stake Stake, rep Reputation, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	return &service{
		host:         h,
		self:         self,
		owner:        owner,
		funds:        funds,
		stake:        stake,
		rep:          rep,
		feeRecipient: models.PlatformAddress,
		log:          log,
	}
}

var _ Service = (*service)(nil)

func (s *service) Address() models.Address { return s.self }

// CreateJob locks price from the master's funds for a new job.
func (s *service) CreateJob(ctx context.Context, master, worker models.Address, price int64, deadline time.Time) (*models.Job, error) {
	var out models.Job
	err := s.host.Call(ctx, "create_job", func(ctx context.Context, tx *host.Tx) error {
		switch {
		case price <= 0:
			return models.ErrInvalidPrice
		case worker.IsZero():
			return models.ErrInvalidWorker
		case worker == master:
			return models.ErrCannotHireSelf
		case !s.stake.IsActive(ctx, master):
			return models.ErrMasterNotRegistered
		case !s.stake.IsActive(ctx, worker):
			return models.ErrWorkerNotRegistered
		case !deadline.After(tx.Now()):
			return models.ErrInvalidDeadline
		}
		j := &models.Job{
			ID:        s.table.nextID(),
			Master:    master,
			Worker:    worker,
			Price:     price,
			State:     models.JobCreated,
			CreatedAt: tx.Now(),
			Deadline:  deadline.UTC(),
		}
		s.table.insert(tx, j)
		if err := s.funds.Transfer(ctx, master, s.self, price); err != nil {
			return err
		}
		tx.Emit(models.Event{Kind: models.EventJobCreated, Subject: master, Counterparty: worker, JobID: j.ID, Amount: price})
		out = *j
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("job created", "job_id", out.ID, "master", master, "worker", worker, "price", price)
	return &out, nil
}

func (s *service) AcceptJob(ctx context.Context, caller models.Address, id uint64) error {
	return s.host.Call(ctx, "accept_job", func(_ context.Context, tx *host.Tx) error {
		j, err := s.workerJob(caller, id)
		if err != nil {
			return err
		}
		if j.State != models.JobCreated {
			return models.ErrInvalidJobState
		}
		s.table.update(tx, j, func(j *models.Job) { j.State = models.JobAccepted })
		tx.Emit(models.Event{Kind: models.EventJobAccepted, Subject: j.Worker, Counterparty: j.Master, JobID: id})
		return nil
	})
}

// SubmitResult records the worker's commitment. A submission exactly at the
// deadline is still on time.
func (s *service) SubmitResult(ctx context.Context, caller models.Address, id uint64, commitment models.Hash, reference string) error {
	return s.host.Call(ctx, "submit_result", func(_ context.Context, tx *host.Tx) error {
		j, err := s.workerJob(caller, id)
		if err != nil {
			return err
		}
		switch {
		case j.State != models.JobAccepted:
			return models.ErrInvalidJobState
		case commitment.IsZero():
			return models.ErrInvalidOutputHash
		case tx.Now().After(j.Deadline):
			return models.ErrDeadlinePassed
		}
		s.table.update(tx, j, func(j *models.Job) {
			j.State = models.JobSubmitted
			j.Commitment = commitment
			j.Reference = reference
		})
		tx.Emit(models.Event{Kind: models.EventResultSubmitted, Subject: j.Worker, Counterparty: j.Master, JobID: id, Detail: reference})
		return nil
	})
}

// ApproveAndRelease pays the worker price minus the platform fee.
func (s *service) ApproveAndRelease(ctx context.Context, caller models.Address, id uint64) error {
	var fee, payment int64
	err := s.host.Call(ctx, "approve_and_release", func(ctx context.Context, tx *host.Tx) error {
		j, err := s.masterJob(caller, id)
		if err != nil {
			return err
		}
		if j.State != models.JobSubmitted {
			return models.ErrInvalidJobState
		}
		fee, payment = models.SplitFee(j.Price)
		s.table.update(tx, j, func(j *models.Job) {
			j.State = models.JobApproved
			j.FundsReleased = true
		})
		tx.Emit(models.Event{Kind: models.EventJobApproved, Subject: j.Master, Counterparty: j.Worker, JobID: id, Amount: payment})

		if err := s.rep.Increase(ctx, s.self, j.Worker, models.ReputationReward); err != nil {
			return err
		}
		if err := s.rep.RecordEarnings(ctx, s.self, j.Worker, payment); err != nil {
			return err
		}
		// Counts a completed job for the master without changing its score.
		if err := s.rep.Increase(ctx, s.self, j.Master, 0); err != nil {
			return err
		}

		if err := s.funds.Transfer(ctx, s.self, j.Worker, payment); err != nil {
			return err
		}
		if fee > 0 {
			return s.funds.Transfer(ctx, s.self, s.feeRecipient, fee)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("job approved", "job_id", id, "payment", payment, "fee", fee)
	return nil
}

// RejectAndSlash refunds the master, penalizes the worker and, when
// slashAmount is positive, seizes that much of the worker's stake.
func (s *service) RejectAndSlash(ctx context.Context, caller models.Address, id uint64, slashAmount int64) error {
	err := s.host.Call(ctx, "reject_and_slash", func(ctx context.Context, tx *host.Tx) error {
		if slashAmount < 0 {
			return models.ErrInvalidAmount
		}
		j, err := s.masterJob(caller, id)
		if err != nil {
			return err
		}
		if j.State != models.JobSubmitted {
			return models.ErrInvalidJobState
		}
		s.table.update(tx, j, func(j *models.Job) {
			j.State = models.JobSlashed
			j.FundsReleased = true
		})
		tx.Emit(models.Event{Kind: models.EventJobSlashed, Subject: j.Master, Counterparty: j.Worker, JobID: id, Amount: slashAmount})

		if err := s.rep.Decrease(ctx, s.self, j.Worker, models.ReputationPenalty); err != nil {
			return err
		}
		if slashAmount > 0 {
			if err := s.rep.ApplySlash(ctx, s.self, j.Worker, slashAmount); err != nil {
				return err
			}
		}
		return s.funds.Transfer(ctx, s.self, j.Master, j.Price)
	})
	if err != nil {
		return err
	}
	s.log.Info("job rejected", "job_id", id, "slash", slashAmount)
	return nil
}

// CancelJob refunds the master. Accepted jobs can only be cancelled once
// their deadline has passed.
func (s *service) CancelJob(ctx context.Context, caller models.Address, id uint64) error {
	return s.host.Call(ctx, "cancel_job", func(ctx context.Context, tx *host.Tx) error {
		j, err := s.masterJob(caller, id)
		if err != nil {
			return err
		}
		switch j.State {
		case models.JobCreated:
		case models.JobAccepted:
			if !tx.Now().After(j.Deadline) {
				return models.ErrCannotCancelJob
			}
		default:
			return models.ErrInvalidJobState
		}
		s.table.update(tx, j, func(j *models.Job) {
			j.State = models.JobCancelled
			j.FundsReleased = true
		})
		tx.Emit(models.Event{Kind: models.EventJobCancelled, Subject: j.Master, Counterparty: j.Worker, JobID: id, Amount: j.Price})
		return s.funds.Transfer(ctx, s.self, j.Master, j.Price)
	})
}

// SetFeeRecipient changes where platform fees go. Owner only.
func (s *service) SetFeeRecipient(ctx context.Context, caller, recipient models.Address) error {
	return s.host.Call(ctx, "set_fee_recipient", func(_ context.Context, tx *host.Tx) error {
		if caller != s.owner {
			return models.ErrUnauthorized
		}
		if recipient.IsZero() {
			return models.ErrInvalidAddress
		}
		old := s.feeRecipient
		host.Track(tx, &s.feeRecipient)
		s.feeRecipient = recipient
		tx.Emit(models.Event{Kind: models.EventFeeRecipientChanged, Subject: recipient, Counterparty: old})
		return nil
	})
}

// workerJob resolves id for a worker-side transition.
func (s *service) workerJob(caller models.Address, id uint64) (*models.Job, error) {
	j := s.table.get(id)
	if j == nil {
		return nil, models.ErrJobNotFound
	}
	if caller != j.Worker {
		return nil, models.ErrNotJobWorker
	}
	return j, nil
}

// masterJob resolves id for a master-side transition that releases funds.
func (s *service) masterJob(caller models.Address, id uint64) (*models.Job, error) {
	j := s.table.get(id)
	if j == nil {
		return nil, models.ErrJobNotFound
	}
	if caller != j.Master {
		return nil, models.ErrNotJobMaster
	}
	if j.FundsReleased {
		return nil, models.ErrFundsAlreadyReleased
	}
	return j, nil
}

func (s *service) Get(ctx context.Context, id uint64) (*models.Job, error) {
	var out *models.Job
	s.host.Read(ctx, func() {
		if j := s.table.get(id); j != nil {
			c := *j
			out = &c
		}
	})
	if out == nil {
		return nil, models.ErrJobNotFound
	}
	return out, nil
}

// List scans all jobs in id order.
func (s *service) List(ctx context.Context, f ListFilter) []*models.Job {
	return host.View(ctx, s.host, func() []*models.Job { return s.table.list(f) })
}

// TotalLocked is the sum of prices of unreleased jobs. It always equals the
// escrow's fund balance.
func (s *service) TotalLocked(ctx context.Context) int64 {
	return host.View(ctx, s.host, func() int64 { return s.table.locked })
}

func (s *service) JobCount(ctx context.Context) uint64 {
	return host.View(ctx, s.host, func() uint64 { return uint64(len(s.table.jobs)) })
}

func (s *service) FeeRecipient(ctx context.Context) models.Address {
	return host.View(ctx, s.host, func() models.Address { return s.feeRecipient })
}

func (s *service) Snapshot(ctx context.Context) State {
	return host.View(ctx, s.host, func() State {
		return State{Jobs: s.table.snapshot(), FeeRecipient: s.feeRecipient}
	})
}

// Restore replaces all escrow state. Only for start-up, before serving.
func (s *service) Restore(st State) error {
	if err := s.table.restore(st.Jobs); err != nil {
		return err
	}
	if !st.FeeRecipient.IsZero() {
		s.feeRecipient = st.FeeRecipient
	}
	return nil
}
