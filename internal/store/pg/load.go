package pg

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/inaiurai/settlement/internal/bootstrap"
	"github.com/inaiurai/settlement/internal/models"
)

// Load reads the persisted core. A fresh database yields an empty snapshot.
func (s *Store) Load(ctx context.Context) (bootstrap.Snapshot, error) {
	snap := bootstrap.Snapshot{
		Balances: map[models.Address]int64{},
		Grants:   map[string][]models.Address{},
	}
	steps := []struct {
		name string
		fn   func(context.Context, *bootstrap.Snapshot) error
	}{
		{"seq", s.loadSeq},
		{"identities", s.loadIdentities},
		{"reputations", s.loadReputations},
		{"jobs", s.loadJobs},
		{"balances", s.loadBalances},
		{"settings", s.loadSettings},
		{"authorizations", s.loadGrants},
	}
	for _, st := range steps {
		if err := st.fn(ctx, &snap); err != nil {
			return bootstrap.Snapshot{}, fmt.Errorf("load %s: %w", st.name, err)
		}
	}
	return snap, nil
}

func (s *Store) loadSeq(ctx context.Context, snap *bootstrap.Snapshot) error {
	var seq int64
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events`).Scan(&seq); err != nil {
		return err
	}
	snap.Seq = uint64(seq)
	return nil
}

func (s *Store) loadIdentities(ctx context.Context, snap *bootstrap.Snapshot) error {
	rows, err := s.pool.Query(ctx, `
		SELECT address, metadata, capabilities, endpoint, stake, active, registered_at
		FROM identities ORDER BY position
	`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   models.Identity
			addr string
		)
		if err := rows.Scan(&addr, &id.Metadata, &id.Capabilities, &id.Endpoint, &id.Stake, &id.Active, &id.RegisteredAt); err != nil {
			return err
		}
		if id.Address, err = models.ParseAddress(addr); err != nil {
			return fmt.Errorf("identity %q: %w", addr, err)
		}
		id.RegisteredAt = id.RegisteredAt.UTC()
		snap.Identities = append(snap.Identities, id)
	}
	return rows.Err()
}

func (s *Store) loadReputations(ctx context.Context, snap *bootstrap.Snapshot) error {
	rows, err := s.pool.Query(ctx, `
		SELECT address, score, completed, failed, earnings, slashes, updated_at
		FROM reputations ORDER BY address
	`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			r    models.Reputation
			addr string
		)
		if err := rows.Scan(&addr, &r.Score, &r.Completed, &r.Failed, &r.Earnings, &r.Slashes, &r.UpdatedAt); err != nil {
			return err
		}
		if r.Address, err = models.ParseAddress(addr); err != nil {
			return fmt.Errorf("reputation %q: %w", addr, err)
		}
		r.UpdatedAt = r.UpdatedAt.UTC()
		snap.Reputations = append(snap.Reputations, r)
	}
	return rows.Err()
}

func (s *Store) loadJobs(ctx context.Context, snap *bootstrap.Snapshot) error {
	rows, err := s.pool.Query(ctx, `
		SELECT id, master, worker, price, state, commitment, reference, created_at, deadline, funds_released
		FROM jobs ORDER BY id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			j                          models.Job
			id                         int64
			master, worker, commitment string
			state                      string
		)
		if err := rows.Scan(&id, &master, &worker, &j.Price, &state, &commitment, &j.Reference, &j.CreatedAt, &j.Deadline, &j.FundsReleased); err != nil {
			return err
		}
		j.ID = uint64(id)
		j.State = models.JobState(state)
		if j.Master, err = models.ParseAddress(master); err != nil {
			return fmt.Errorf("job %d master: %w", id, err)
		}
		if j.Worker, err = models.ParseAddress(worker); err != nil {
			return fmt.Errorf("job %d worker: %w", id, err)
		}
		if j.Commitment, err = models.ParseHash(commitment); err != nil {
			return fmt.Errorf("job %d commitment: %w", id, err)
		}
		j.CreatedAt, j.Deadline = j.CreatedAt.UTC(), j.Deadline.UTC()
		snap.Escrow.Jobs = append(snap.Escrow.Jobs, j)
	}
	return rows.Err()
}

func (s *Store) loadBalances(ctx context.Context, snap *bootstrap.Snapshot) error {
	rows, err := s.pool.Query(ctx, `SELECT address, amount FROM balances`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			addr   string
			amount int64
		)
		if err := rows.Scan(&addr, &amount); err != nil {
			return err
		}
		a, err := models.ParseAddress(addr)
		if err != nil {
			return fmt.Errorf("balance %q: %w", addr, err)
		}
		snap.Balances[a] = amount
	}
	return rows.Err()
}

func (s *Store) loadSettings(ctx context.Context, snap *bootstrap.Snapshot) error {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return err
		}
		if err := applySetting(snap, key, value); err != nil {
			return err
		}
	}
	return rows.Err()
}

func applySetting(snap *bootstrap.Snapshot, key, value string) error {
	switch key {
	case settingFeeRecipient:
		a, err := models.ParseAddress(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		snap.Escrow.FeeRecipient = a
	case settingForfeited:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		snap.Forfeited = n
	}
	return nil
}

func (s *Store) loadGrants(ctx context.Context, snap *bootstrap.Snapshot) error {
	rows, err := s.pool.Query(ctx, `SELECT scope, address FROM authorizations ORDER BY scope, address`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var scope, addr string
		if err := rows.Scan(&scope, &addr); err != nil {
			return err
		}
		a, err := models.ParseAddress(addr)
		if err != nil {
			return fmt.Errorf("grant %q: %w", addr, err)
		}
		snap.Grants[scope] = append(snap.Grants[scope], a)
	}
	return rows.Err()
}

// Ping checks connectivity for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
