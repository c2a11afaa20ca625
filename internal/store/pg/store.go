// Package pg persists the settlement core to PostgreSQL.
//
// The store is a write-behind mirror of the in-memory core: every committed unit
// is written in one pgx transaction from inside the unit, so a failed write rolls
// the unit back. At start-up Load rebuilds the core from the tables.
package pg

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/inaiurai/settlement/internal/bootstrap"
	"github.com/inaiurai/settlement/internal/host"
	"github.com/inaiurai/settlement/internal/models"
	"github.com/inaiurai/settlement/internal/notify"
)

// Setting keys.
const (
	settingFeeRecipient = "fee_recipient"
	settingForfeited    = "forfeited"
)

// State resolves the current value of touched entities. It is read inside the
// committing unit.
type State interface {
	Identity(ctx context.Context, a models.Address) (*models.Identity, bool)
	ReputationOf(ctx context.Context, a models.Address) models.Reputation
	Job(ctx context.Context, id uint64) (*models.Job, bool)
	Balance(ctx context.Context, a models.Address) int64
	Settings(ctx context.Context) bootstrap.Settings
	Grants(ctx context.Context, scope string) []models.Address
	Endpoint(ctx context.Context, a models.Address) string
}

// Enqueuer inserts background jobs inside a pgx transaction; *river.Client[pgx.Tx] satisfies it.
type Enqueuer interface {
	InsertManyTx(ctx context.Context, tx pgx.Tx, params []river.InsertManyParams) ([]*rivertype.JobInsertResult, error)
}

type Store struct {
	pool  *pgxpool.Pool
	state State
	log   *slog.Logger

	mu       sync.RWMutex
	enqueuer Enqueuer
}

var _ host.Committer = (*Store)(nil)

func New(pool *pgxpool.Pool, state State, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{pool: pool, state: state, log: log}
}

// SetEnqueuer enables webhook deliveries. Without one, events are only recorded.
func (s *Store) SetEnqueuer(e Enqueuer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueuer = e
}

// Commit writes one committed unit.
func (s *Store) Commit(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, ev := range events {
			queueEvent(batch, ev)
		}
		if err := s.queueTouched(ctx, batch, touched(events)); err != nil {
			return err
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("write unit: %w", err)
		}
		return s.enqueue(ctx, tx, events)
	})
}

func (s *Store) enqueue(ctx context.Context, tx pgx.Tx, events []models.Event) error {
	s.mu.RLock()
	e := s.enqueuer
	s.mu.RUnlock()
	if e == nil {
		return nil
	}
	deliveries := notify.Deliveries(events, func(a models.Address) string { return s.state.Endpoint(ctx, a) })
	if len(deliveries) == 0 {
		return nil
	}
	params := make([]river.InsertManyParams, len(deliveries))
	for i, d := range deliveries {
		params[i] = river.InsertManyParams{Args: d}
	}
	if _, err := e.InsertManyTx(ctx, tx, params); err != nil {
		return fmt.Errorf("enqueue deliveries: %w", err)
	}
	return nil
}

func queueEvent(b *pgx.Batch, ev models.Event) {
	var counterparty string
	if !ev.Counterparty.IsZero() {
		counterparty = ev.Counterparty.String()
	}
	b.Queue(`
		INSERT INTO events (seq, id, kind, at, subject, counterparty, job_id, amount, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, int64(ev.Seq), ev.ID, string(ev.Kind), ev.At, ev.Subject.String(), counterparty, int64(ev.JobID), ev.Amount, ev.Detail)
}

func (s *Store) queueTouched(ctx context.Context, b *pgx.Batch, t touchedSet) error {
	for _, a := range t.identities {
		id, ok := s.state.Identity(ctx, a)
		if !ok {
			return fmt.Errorf("identity %s touched but unknown", a)
		}
		b.Queue(`
			INSERT INTO identities (address, metadata, capabilities, endpoint, stake, active, registered_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (address) DO UPDATE SET metadata = EXCLUDED.metadata, capabilities = EXCLUDED.capabilities,
				endpoint = EXCLUDED.endpoint, stake = EXCLUDED.stake, active = EXCLUDED.active, registered_at = EXCLUDED.registered_at
		`, id.Address.String(), id.Metadata, nonNil(id.Capabilities), id.Endpoint, id.Stake, id.Active, id.RegisteredAt)
	}
	for _, a := range t.reputations {
		r := s.state.ReputationOf(ctx, a)
		b.Queue(`
			INSERT INTO reputations (address, score, completed, failed, earnings, slashes, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (address) DO UPDATE SET score = EXCLUDED.score, completed = EXCLUDED.completed, failed = EXCLUDED.failed,
				earnings = EXCLUDED.earnings, slashes = EXCLUDED.slashes, updated_at = EXCLUDED.updated_at
		`, a.String(), r.Score, r.Completed, r.Failed, r.Earnings, r.Slashes, r.UpdatedAt)
	}
	for _, a := range t.balances {
		if amount := s.state.Balance(ctx, a); amount > 0 {
			b.Queue(`
				INSERT INTO balances (address, amount) VALUES ($1, $2)
				ON CONFLICT (address) DO UPDATE SET amount = EXCLUDED.amount
			`, a.String(), amount)
		} else {
			b.Queue(`DELETE FROM balances WHERE address = $1`, a.String())
		}
	}
	for _, id := range t.jobs {
		j, ok := s.state.Job(ctx, id)
		if !ok {
			return fmt.Errorf("job %d touched but unknown", id)
		}
		b.Queue(`
			INSERT INTO jobs (id, master, worker, price, state, commitment, reference, created_at, deadline, funds_released)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, commitment = EXCLUDED.commitment,
				reference = EXCLUDED.reference, funds_released = EXCLUDED.funds_released
		`, int64(j.ID), j.Master.String(), j.Worker.String(), j.Price, string(j.State), j.Commitment.String(), j.Reference, j.CreatedAt, j.Deadline, j.FundsReleased)
	}
	for _, scope := range t.scopes {
		b.Queue(`DELETE FROM authorizations WHERE scope = $1`, scope)
		for _, a := range s.state.Grants(ctx, scope) {
			b.Queue(`INSERT INTO authorizations (scope, address) VALUES ($1, $2)`, scope, a.String())
		}
	}
	if t.settings {
		st := s.state.Settings(ctx)
		queueSetting(b, settingFeeRecipient, st.FeeRecipient.String())
		queueSetting(b, settingForfeited, strconv.FormatInt(st.Forfeited, 10))
	}
	return nil
}

func queueSetting(b *pgx.Batch, key, value string) {
	b.Queue(`
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
