package ledger

import (
	"maps"
	"math"

	"github.com/inaiurai/settlement/internal/host"
	"github.com/inaiurai/settlement/internal/models"
)

// book holds fund balances in minor units. Mutations are journaled on the
// call's Tx so they unwind with it.
type book struct {
	balances map[models.Address]int64
}

func newBook() *book {
	return &book{balances: make(map[models.Address]int64)}
}

func (b *book) balance(a models.Address) int64 {
	return b.balances[a]
}

// credit fails with ErrInvalidAmount if the balance would overflow.
func (b *book) credit(tx *host.Tx, a models.Address, amount int64) error {
	if amount > math.MaxInt64-b.balances[a] {
		return models.ErrInvalidAmount
	}
	host.TrackKey(tx, b.balances, a)
	b.balances[a] += amount
	return nil
}

// debit fails with ErrInsufficientFunds without touching the balance.
func (b *book) debit(tx *host.Tx, a models.Address, amount int64) error {
	if b.balances[a] < amount {
		return models.ErrInsufficientFunds
	}
	host.TrackKey(tx, b.balances, a)
	b.balances[a] -= amount
	if b.balances[a] == 0 {
		delete(b.balances, a)
	}
	return nil
}

func (b *book) snapshot() map[models.Address]int64 {
	return maps.Clone(b.balances)
}

func (b *book) restore(balances map[models.Address]int64) {
	b.balances = make(map[models.Address]int64, len(balances))
	for a, v := range balances {
		if v != 0 {
			b.balances[a] = v
		}
	}
}
