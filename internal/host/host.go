// Package host executes ledger calls as atomic units.
//
// Every mutating call runs under one process-wide lock, so committed calls have a
// single canonical order. A call records undo steps in its Tx before touching state;
// if anything fails, at any depth, the steps run in reverse and the call leaves no
// trace. Nested calls (component to component, or untrusted code re-entering during a
// fund transfer) find the active Tx in the context and join it instead of blocking.
//
// Contexts handed to a call function are only valid for the duration of that call.
package host

import (
	"context"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/inaiurai/settlement/internal/models"
	"github.com/inaiurai/settlement/internal/observability"
)

// Clock returns the current ledger time.
type Clock func() time.Time

// Committer persists a committed unit. It runs inside the unit: an error rolls the unit back.
type Committer interface {
	Commit(ctx context.Context, events []models.Event) error
}

// Observer receives committed events after the host lock has been released.
// Observers must not block.
type Observer func(events []models.Event)

// Host serializes calls and owns event sequencing.
type Host struct {
	mu        sync.RWMutex
	clock     Clock
	committer Committer
	observers []Observer
	seq       uint64
	entropy   *ulid.MonotonicEntropy
	log       *slog.Logger
}

// New returns a Host. A nil clock uses time.Now; a nil logger uses slog.Default().
func New(clock Clock, log *slog.Logger) *Host {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &Host{
		clock:   clock,
		entropy: ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0),
		log:     log,
	}
}

// SetCommitter installs the persistence hook. Call before serving traffic.
func (h *Host) SetCommitter(c Committer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.committer = c
}

// Observe registers an observer. Call before serving traffic.
func (h *Host) Observe(o Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers = append(h.observers, o)
}

// Seq returns the sequence number of the last committed event.
func (h *Host) Seq() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// RestoreSeq continues event numbering after a restart.
func (h *Host) RestoreSeq(seq uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq = seq
}

// Call runs fn as an atomic unit named op. When ctx already belongs to a call on this
// host, fn joins it as a nested frame.
func (h *Host) Call(ctx context.Context, op string, fn func(ctx context.Context, tx *Tx) error) error {
	if parent := h.frame(ctx); parent != nil {
		return h.callNested(ctx, parent, op, fn)
	}

	ctx, span := observability.StartSpan(ctx, "host."+op, attribute.String("ledger.op", op))
	defer span.End()

	events, observers, err := h.callOutermost(ctx, op, fn)
	if err != nil {
		observability.CountFailure(op, models.ErrorCode(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(attribute.Int("ledger.events", len(events)))
	for _, o := range observers {
		o(events)
	}
	return nil
}

func (h *Host) callOutermost(ctx context.Context, op string, fn func(context.Context, *Tx) error) ([]models.Event, []Observer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tx := &Tx{host: h, op: op, now: h.clock().UTC()}
	ctx = context.WithValue(ctx, frameKey{}, tx)
	defer func() {
		tx.done = true
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return nil, nil, err
	}

	start := h.seq
	events := make([]models.Event, len(tx.events))
	for i, ev := range tx.events {
		h.seq++
		ev.Seq = h.seq
		ev.ID = ulid.MustNew(ulid.Timestamp(tx.now), h.entropy).String()
		if ev.At.IsZero() {
			ev.At = tx.now
		}
		events[i] = ev
	}

	if h.committer != nil {
		if err := h.committer.Commit(ctx, events); err != nil {
			tx.rollback()
			h.seq = start
			h.log.Error("commit failed, call rolled back", "op", op, "error", err)
			return nil, nil, fmt.Errorf("commit %s: %w", op, err)
		}
	}
	return events, h.observers, nil
}

func (h *Host) callNested(ctx context.Context, parent *Tx, op string, fn func(context.Context, *Tx) error) error {
	tx := &Tx{host: h, parent: parent, op: op, now: parent.now}
	ctx = context.WithValue(ctx, frameKey{}, tx)
	defer func() { tx.done = true }()

	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	parent.undo = append(parent.undo, tx.undo...)
	parent.events = append(parent.events, tx.events...)
	return nil
}

// Read runs fn with a consistent view of state. Inside a call or a Consistent
// view it runs inline.
func (h *Host) Read(ctx context.Context, fn func()) {
	if h.frame(ctx) != nil || ctx.Value(viewKey{}) == h {
		fn()
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn()
}

// Consistent runs fn under one read lock together with the sequence number of the
// last committed event. Reads through the ctx passed to fn run inline; fn must not
// start a call.
func (h *Host) Consistent(ctx context.Context, fn func(ctx context.Context, seq uint64)) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn(context.WithValue(ctx, viewKey{}, h), h.seq)
}

// Now returns the ledger time: the call time inside a call, the clock otherwise.
func (h *Host) Now(ctx context.Context) time.Time {
	if tx := h.frame(ctx); tx != nil {
		return tx.now
	}
	return h.clock().UTC()
}

type (
	frameKey struct{}
	viewKey  struct{}
)

func (h *Host) frame(ctx context.Context) *Tx {
	tx, _ := ctx.Value(frameKey{}).(*Tx)
	if tx == nil || tx.host != h || tx.done {
		return nil
	}
	return tx
}
