package host

import (
	"context"
	"time"

	"github.com/inaiurai/settlement/internal/models"
)

// Tx is the frame of one (possibly nested) call.
type Tx struct {
	host   *Host
	parent *Tx
	op     string
	now    time.Time
	undo   []func()
	events []models.Event
	done   bool
}

// Now is the ledger time of the outermost call.
func (tx *Tx) Now() time.Time { return tx.now }

func (tx *Tx) Op() string { return tx.op }

// Nested reports whether this frame runs inside another call.
func (tx *Tx) Nested() bool { return tx.parent != nil }

// OnRollback registers an undo step. Steps run in reverse registration order.
func (tx *Tx) OnRollback(fn func()) {
	tx.undo = append(tx.undo, fn)
}

// Emit buffers an audit event; it is published only if the outermost call commits.
func (tx *Tx) Emit(ev models.Event) {
	if ev.At.IsZero() {
		ev.At = tx.now
	}
	tx.events = append(tx.events, ev)
}

func (tx *Tx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
	tx.events = nil
}

// Track snapshots *p so a rollback restores it. Call before mutating *p.
func Track[T any](tx *Tx, p *T) {
	old := *p
	tx.OnRollback(func() { *p = old })
}

// View runs fn through h.Read and returns its result.
func View[T any](ctx context.Context, h *Host, fn func() T) T {
	var out T
	h.Read(ctx, func() { out = fn() })
	return out
}

// TrackKey snapshots m[k], including its absence, so a rollback restores it.
func TrackKey[K comparable, V any](tx *Tx, m map[K]V, k K) {
	old, ok := m[k]
	tx.OnRollback(func() {
		if ok {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
}
