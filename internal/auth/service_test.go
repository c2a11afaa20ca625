package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/inaiurai/settlement/internal/models"
)

func newTestService() *service {
	return NewService(NewMemoryRepository(), "test-secret")
}

func TestCreateAccountThenLogin(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	acc, err := svc.CreateAccount(ctx, "correct horse")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if acc.Address.IsZero() {
		t.Fatal("expected a generated address")
	}

	token, err := svc.Login(ctx, acc.Address, "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	got, err := svc.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if got != acc.Address {
		t.Errorf("subject: got %s, want %s", got, acc.Address)
	}
}

func TestCreateAccountGeneratesDistinctAddresses(t *testing.T) {
	svc := newTestService()
	a, err := svc.CreateAccount(context.Background(), "password-1")
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.CreateAccount(context.Background(), "password-2")
	if err != nil {
		t.Fatal(err)
	}
	if a.Address == b.Address {
		t.Fatal("addresses must differ")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	acc, err := svc.CreateAccount(ctx, "correct horse")
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name     string
		addr     models.Address
		password string
	}{
		{name: "wrong password", addr: acc.Address, password: "battery staple"},
		{name: "unknown address", addr: models.MustParseAddress("0x00000000000000000000000000000000000000ee"), password: "correct horse"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tc.addr, tc.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestValidateTokenRejects(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	acc, err := svc.CreateAccount(ctx, "correct horse")
	if err != nil {
		t.Fatal(err)
	}
	valid, err := svc.issueToken(acc.Address)
	if err != nil {
		t.Fatal(err)
	}

	other := NewService(NewMemoryRepository(), "another-secret")
	if _, err := other.ValidateToken(ctx, valid); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign secret: expected ErrInvalidToken, got %v", err)
	}

	expired := newTestService()
	expired.now = func() time.Time { return time.Now().Add(-25 * time.Hour) }
	old, err := expired.issueToken(acc.Address)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ValidateToken(ctx, old); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired: expected ErrInvalidToken, got %v", err)
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: acc.Address.String()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ValidateToken(ctx, none); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("alg none: expected ErrInvalidToken, got %v", err)
	}

	bad, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "not-an-address"}).
		SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ValidateToken(ctx, bad); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("bad subject: expected ErrInvalidToken, got %v", err)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	owner := models.MustParseAddress("0x00000000000000000000000000000000000000f0")

	if err := svc.Seed(ctx, owner, "first-password"); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := svc.Seed(ctx, owner, "second-password"); err != nil {
		t.Fatalf("Seed again: %v", err)
	}
	if _, err := svc.Login(ctx, owner, "first-password"); err != nil {
		t.Fatalf("original password must survive reseeding: %v", err)
	}
}
