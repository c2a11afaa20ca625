package bootstrap

import (
	"context"
	"sync"

	"github.com/inaiurai/settlement/internal/models"
	"github.com/inaiurai/settlement/internal/observability"
)

// InstallMetrics publishes committed events and the escrow-locked gauge.
func (s *System) InstallMetrics() {
	s.installMetrics(observability.CountEvent, observability.SetEscrowLocked)
}

func (s *System) installMetrics(count func(kind string), setLocked func(int64)) {
	gauge := &lockedGauge{set: setLocked}
	s.Host.Observe(func(events []models.Event) {
		touchesEscrow := false
		for _, ev := range events {
			count(string(ev.Kind))
			if ev.JobID != 0 {
				touchesEscrow = true
			}
		}
		if !touchesEscrow {
			return
		}
		var (
			locked int64
			at     uint64
		)
		s.Host.Consistent(context.Background(), func(ctx context.Context, seq uint64) {
			locked = s.Escrow.TotalLocked(ctx)
			at = seq
		})
		gauge.publish(at, locked)
	})
}

// lockedGauge forwards readings in sequence order. Observers run after the
// host lock is released, so a reading taken at an older seq may arrive late.
type lockedGauge struct {
	mu   sync.Mutex
	seq  uint64
	set  func(int64)
	seen bool
}

// publish reports whether the reading was forwarded.
func (g *lockedGauge) publish(seq uint64, amount int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen && seq < g.seq {
		return false
	}
	g.seq, g.seen = seq, true
	g.set(amount)
	return true
}
