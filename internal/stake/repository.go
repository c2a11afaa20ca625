package stake

import (
	"slices"
	"strings"

	"github.com/inaiurai/settlement/internal/host"
	"github.com/inaiurai/settlement/internal/models"
)

// directory is the in-memory account table. Accounts are never removed, so
// order (first registration order) only grows.
type directory struct {
	accounts map[models.Address]*models.Identity
	order    []models.Address
}

func newDirectory() *directory {
	return &directory{accounts: make(map[models.Address]*models.Identity)}
}

func (d *directory) get(a models.Address) *models.Identity {
	return d.accounts[a]
}

func (d *directory) active(a models.Address) *models.Identity {
	if acc := d.accounts[a]; acc != nil && acc.Active {
		return acc
	}
	return nil
}

// put stores id, journaling the previous record (or its absence) on tx.
func (d *directory) put(tx *host.Tx, id *models.Identity) {
	host.TrackKey(tx, d.accounts, id.Address)
	if _, ok := d.accounts[id.Address]; !ok {
		host.Track(tx, &d.order)
		d.order = append(d.order, id.Address)
	}
	d.accounts[id.Address] = id
}

// update journals *acc before fn mutates it.
func (d *directory) update(tx *host.Tx, acc *models.Identity, fn func(*models.Identity)) {
	host.Track(tx, acc)
	fn(acc)
}

// ListFilter narrows a directory enumeration.
type ListFilter struct {
	Capability string
	ActiveOnly bool
	Limit      int
}

func (d *directory) list(f ListFilter) []*models.Identity {
	capability := normalizeCapability(f.Capability)
	var out []*models.Identity
	for _, a := range d.order {
		acc := d.accounts[a]
		if f.ActiveOnly && !acc.Active {
			continue
		}
		if capability != "" && !slices.Contains(acc.Capabilities, capability) {
			continue
		}
		c := acc.Clone()
		out = append(out, &c)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

func (d *directory) snapshot() []models.Identity {
	out := make([]models.Identity, 0, len(d.order))
	for _, a := range d.order {
		out = append(out, d.accounts[a].Clone())
	}
	return out
}

func (d *directory) restore(ids []models.Identity) {
	d.accounts = make(map[models.Address]*models.Identity, len(ids))
	d.order = d.order[:0]
	for _, id := range ids {
		c := id.Clone()
		d.accounts[c.Address] = &c
		d.order = append(d.order, c.Address)
	}
}

func normalizeCapability(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

// normalizeCapabilities lowercases each tag so matching is case-insensitive.
func normalizeCapabilities(capabilities []string) []string {
	out := make([]string, 0, len(capabilities))
	for _, c := range capabilities {
		if c = normalizeCapability(c); c != "" && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}
