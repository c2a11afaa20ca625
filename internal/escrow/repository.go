package escrow

import (
	"fmt"

	"github.com/inaiurai/settlement/internal/host"
	"github.com/inaiurai/settlement/internal/models"
)

// jobTable stores jobs by id. Ids start at 1 and are never reused; jobs are
// never removed.
type jobTable struct {
	jobs   []*models.Job
	locked int64
}

func (t *jobTable) get(id uint64) *models.Job {
	if id == 0 || id > uint64(len(t.jobs)) {
		return nil
	}
	return t.jobs[id-1]
}

func (t *jobTable) nextID() uint64 { return uint64(len(t.jobs)) + 1 }

func (t *jobTable) insert(tx *host.Tx, j *models.Job) {
	host.Track(tx, &t.jobs)
	host.Track(tx, &t.locked)
	t.jobs = append(t.jobs, j)
	t.locked += j.Price
}

// update journals *j before fn mutates it and keeps the locked total in step
// with the released flag.
func (t *jobTable) update(tx *host.Tx, j *models.Job, fn func(*models.Job)) {
	host.Track(tx, j)
	host.Track(tx, &t.locked)
	wasReleased := j.FundsReleased
	fn(j)
	if !wasReleased && j.FundsReleased {
		t.locked -= j.Price
	}
}

// ListFilter selects jobs by party. Zero addresses match everything.
type ListFilter struct {
	Master models.Address
	Worker models.Address
	Limit  int
}

func (t *jobTable) list(f ListFilter) []*models.Job {
	var out []*models.Job
	for _, j := range t.jobs {
		if !f.Master.IsZero() && j.Master != f.Master {
			continue
		}
		if !f.Worker.IsZero() && j.Worker != f.Worker {
			continue
		}
		c := *j
		out = append(out, &c)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

func (t *jobTable) snapshot() []models.Job {
	out := make([]models.Job, len(t.jobs))
	for i, j := range t.jobs {
		out[i] = *j
	}
	return out
}

// restore replaces the table. jobs must be ordered by id starting at 1.
func (t *jobTable) restore(jobs []models.Job) error {
	table := make([]*models.Job, len(jobs))
	var locked int64
	for i := range jobs {
		j := jobs[i]
		if j.ID != uint64(i)+1 {
			return fmt.Errorf("restore jobs: id %d at position %d", j.ID, i)
		}
		table[i] = &j
		if !j.FundsReleased {
			locked += j.Price
		}
	}
	t.jobs, t.locked = table, locked
	return nil
}
