package ledger

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/inaiurai/settlement/internal/host"
	"github.com/inaiurai/settlement/internal/models"
)

var (
	owner = models.MustParseAddress("0x00000000000000000000000000000000000000f0")
	alice = models.MustParseAddress("0x00000000000000000000000000000000000000a1")
	bob   = models.MustParseAddress("0x00000000000000000000000000000000000000b2")
)

func newTestLedger(t *testing.T) (*host.Host, Service) {
	t.Helper()
	h := host.New(nil, nil)
	return h, NewService(h, owner, nil)
}

func TestMint(t *testing.T) {
	_, svc := newTestLedger(t)
	ctx := context.Background()

	if err := svc.Mint(ctx, alice, alice, 10); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("non-owner mint: expected ErrUnauthorized, got %v", err)
	}
	if err := svc.Mint(ctx, owner, models.Address{}, 10); !errors.Is(err, models.ErrInvalidAddress) {
		t.Fatalf("zero recipient: expected ErrInvalidAddress, got %v", err)
	}
	if err := svc.Mint(ctx, owner, alice, 0); !errors.Is(err, models.ErrInvalidAmount) {
		t.Fatalf("zero amount: expected ErrInvalidAmount, got %v", err)
	}
	if err := svc.Mint(ctx, owner, alice, 10); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if got := svc.Balance(ctx, alice); got != 10 {
		t.Errorf("balance: got %d, want 10", got)
	}
}

func TestMint_RejectsBalanceOverflow(t *testing.T) {
	h, svc := newTestLedger(t)
	ctx := context.Background()

	if err := svc.Mint(ctx, owner, alice, math.MaxInt64); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	seq := h.Seq()
	if err := svc.Mint(ctx, owner, alice, 2); !errors.Is(err, models.ErrInvalidAmount) {
		t.Fatalf("overflowing mint: expected ErrInvalidAmount, got %v", err)
	}
	if got := svc.Balance(ctx, alice); got != math.MaxInt64 {
		t.Errorf("balance: got %d, want %d", got, int64(math.MaxInt64))
	}
	if h.Seq() != seq {
		t.Errorf("rejected mint must not emit events")
	}
}

func TestTransfer_RejectsBalanceOverflow(t *testing.T) {
	_, svc := newTestLedger(t)
	ctx := context.Background()
	if err := svc.Mint(ctx, owner, alice, math.MaxInt64); err != nil {
		t.Fatalf("Mint alice: %v", err)
	}
	if err := svc.Mint(ctx, owner, bob, math.MaxInt64); err != nil {
		t.Fatalf("Mint bob: %v", err)
	}

	if err := svc.Transfer(ctx, alice, bob, 1); !errors.Is(err, models.ErrInvalidAmount) {
		t.Fatalf("overflowing transfer: expected ErrInvalidAmount, got %v", err)
	}
	if svc.Balance(ctx, alice) != math.MaxInt64 || svc.Balance(ctx, bob) != math.MaxInt64 {
		t.Errorf("failed transfer must not move funds")
	}
}

func TestTransfer_InsufficientFunds(t *testing.T) {
	_, svc := newTestLedger(t)
	ctx := context.Background()
	_ = svc.Mint(ctx, owner, alice, 5)

	if err := svc.Transfer(ctx, alice, bob, 6); !errors.Is(err, models.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if svc.Balance(ctx, alice) != 5 || svc.Balance(ctx, bob) != 0 {
		t.Errorf("failed transfer must not move funds")
	}
}

func TestTransfer_ReceiverRejectionRollsBack(t *testing.T) {
	_, svc := newTestLedger(t)
	ctx := context.Background()
	_ = svc.Mint(ctx, owner, alice, 5)

	svc.SetReceiver(bob, ReceiverFunc(func(context.Context, models.Address, int64) error {
		return errors.New("no thanks")
	}))

	err := svc.Transfer(ctx, alice, bob, 5)
	if !errors.Is(err, models.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if svc.Balance(ctx, alice) != 5 || svc.Balance(ctx, bob) != 0 {
		t.Errorf("rejected transfer must not move funds: alice=%d bob=%d",
			svc.Balance(ctx, alice), svc.Balance(ctx, bob))
	}
}

func TestTransfer_ReceiverCanForwardFunds(t *testing.T) {
	h, svc := newTestLedger(t)
	ctx := context.Background()
	_ = svc.Mint(ctx, owner, alice, 5)

	// bob forwards whatever he receives to owner, from inside the transfer.
	svc.SetReceiver(bob, ReceiverFunc(func(ctx context.Context, _ models.Address, amount int64) error {
		return svc.Transfer(ctx, bob, owner, amount)
	}))

	if err := svc.Transfer(ctx, alice, bob, 5); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if got := svc.Balance(ctx, owner); got != 5 {
		t.Errorf("owner balance: got %d, want 5", got)
	}
	if h.Seq() != 3 {
		t.Errorf("expected mint + 2 transfer events, seq=%d", h.Seq())
	}
}

func TestBalancesRestore(t *testing.T) {
	_, svc := newTestLedger(t)
	svc.Restore(map[models.Address]int64{alice: 7, bob: 0})

	got := svc.Balances(context.Background())
	if len(got) != 1 || got[alice] != 7 {
		t.Fatalf("unexpected balances after restore: %v", got)
	}
}
