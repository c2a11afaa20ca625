// Package ledger holds the native funds moved by the settlement core.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/inaiurai/settlement/internal/host"
	"github.com/inaiurai/settlement/internal/models"
)

// Receiver is logic attached to an address that runs whenever it receives
// funds. It runs inside the paying call and may call back into the core.
// An error rejects the transfer.
type Receiver interface {
	Receive(ctx context.Context, from models.Address, amount int64) error
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc func(ctx context.Context, from models.Address, amount int64) error

func (f ReceiverFunc) Receive(ctx context.Context, from models.Address, amount int64) error {
	return f(ctx, from, amount)
}

type Service interface {
	Mint(ctx context.Context, caller, to models.Address, amount int64) error
	Transfer(ctx context.Context, from, to models.Address, amount int64) error
	Balance(ctx context.Context, addr models.Address) int64
	SetReceiver(addr models.Address, r Receiver)
	Balances(ctx context.Context) map[models.Address]int64
	Restore(balances map[models.Address]int64)
}

type service struct {
	host  *host.Host
	owner models.Address
	book  *book
	log   *slog.Logger

	rmu       sync.RWMutex
	receivers map[models.Address]Receiver
}

func NewService(h *host.Host, owner models.Address, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	return &service{
		host:      h,
		owner:     owner,
		book:      newBook(),
		log:       log,
		receivers: make(map[models.Address]Receiver),
	}
}

var _ Service = (*service)(nil)

// Mint credits new funds. Only the owner may mint, and no balance may
// exceed math.MaxInt64.
func (s *service) Mint(ctx context.Context, caller, to models.Address, amount int64) error {
	return s.host.Call(ctx, "mint", func(ctx context.Context, tx *host.Tx) error {
		if caller != s.owner {
			return models.ErrUnauthorized
		}
		if to.IsZero() {
			return models.ErrInvalidAddress
		}
		if amount <= 0 {
			return models.ErrInvalidAmount
		}
		if err := s.book.credit(tx, to, amount); err != nil {
			return err
		}
		tx.Emit(models.Event{Kind: models.EventFundsMinted, Subject: to, Amount: amount})
		return nil
	})
}

// Transfer moves amount from one address to another, then runs the
// recipient's Receiver, if any, inside the same unit.
func (s *service) Transfer(ctx context.Context, from, to models.Address, amount int64) error {
	return s.host.Call(ctx, "transfer", func(ctx context.Context, tx *host.Tx) error {
		if amount <= 0 {
			return models.ErrInvalidAmount
		}
		if to.IsZero() {
			return models.ErrInvalidAddress
		}
		if err := s.book.debit(tx, from, amount); err != nil {
			return err
		}
		if err := s.book.credit(tx, to, amount); err != nil {
			return err
		}
		tx.Emit(models.Event{
			Kind:         models.EventFundsTransferred,
			Subject:      from,
			Counterparty: to,
			Amount:       amount,
		})

		r := s.receiver(to)
		if r == nil {
			return nil
		}
		if err := r.Receive(ctx, from, amount); err != nil {
			s.log.Warn("recipient rejected transfer", "from", from, "to", to, "amount", amount, "error", err)
			return fmt.Errorf("%w: %s: %v", models.ErrTransferFailed, to, err)
		}
		return nil
	})
}

func (s *service) Balance(ctx context.Context, addr models.Address) int64 {
	return host.View(ctx, s.host, func() int64 { return s.book.balance(addr) })
}

// SetReceiver installs r for addr; a nil r removes it. It is the hook for
// contract-style recipients that must react to incoming funds inside the
// paying unit. The core components hold funds passively and install none.
func (s *service) SetReceiver(addr models.Address, r Receiver) {
	s.rmu.Lock()
	defer s.rmu.Unlock()
	if r == nil {
		delete(s.receivers, addr)
		return
	}
	s.receivers[addr] = r
}

func (s *service) receiver(addr models.Address) Receiver {
	s.rmu.RLock()
	defer s.rmu.RUnlock()
	return s.receivers[addr]
}

// Balances returns a copy of every non-zero balance.
func (s *service) Balances(ctx context.Context) map[models.Address]int64 {
	return host.View(ctx, s.host, s.book.snapshot)
}

// Restore replaces all balances. Only for start-up, before serving.
func (s *service) Restore(balances map[models.Address]int64) {
	s.book.restore(balances)
}
