package auth

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/inaiurai/settlement/internal/models"
)

const pgUniqueViolation = "23505"

var (
	ErrAccountExists   = errors.New("account already exists")
	ErrAccountNotFound = errors.New("account not found")
)

// Repository stores login credentials keyed by identity address.
type Repository interface {
	Create(ctx context.Context, addr models.Address, secretHash string) (*Account, error)
	// Get returns the account and its password hash, or ErrAccountNotFound.
	Get(ctx context.Context, addr models.Address) (*Account, string, error)
}

// SQLRepository keeps credentials in the credentials table through database/sql.
type SQLRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLRepository)(nil)

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Create(ctx context.Context, addr models.Address, secretHash string) (*Account, error) {
	acc := &Account{Address: addr}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO credentials (address, secret_hash)
		VALUES ($1, $2)
		RETURNING created_at
	`, addr.String(), secretHash).Scan(&acc.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrAccountExists
		}
		return nil, err
	}
	acc.CreatedAt = acc.CreatedAt.UTC()
	return acc, nil
}

func (r *SQLRepository) Get(ctx context.Context, addr models.Address) (*Account, string, error) {
	acc := Account{Address: addr}
	var hash string
	err := r.db.QueryRowContext(ctx, `
		SELECT secret_hash, created_at FROM credentials WHERE address = $1
	`, addr.String()).Scan(&hash, &acc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrAccountNotFound
	}
	if err != nil {
		return nil, "", err
	}
	acc.CreatedAt = acc.CreatedAt.UTC()
	return &acc, hash, nil
}

// MemoryRepository is the credential store of the memory backend.
type MemoryRepository struct {
	mu      sync.RWMutex
	now     func() time.Time
	entries map[models.Address]memoryEntry
}

type memoryEntry struct {
	account Account
	hash    string
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{now: time.Now, entries: make(map[models.Address]memoryEntry)}
}

func (r *MemoryRepository) Create(_ context.Context, addr models.Address, secretHash string) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[addr]; ok {
		return nil, ErrAccountExists
	}
	e := memoryEntry{account: Account{Address: addr, CreatedAt: r.now().UTC()}, hash: secretHash}
	r.entries[addr] = e
	acc := e.account
	return &acc, nil
}

func (r *MemoryRepository) Get(_ context.Context, addr models.Address) (*Account, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[addr]
	if !ok {
		return nil, "", ErrAccountNotFound
	}
	acc := e.account
	return &acc, e.hash, nil
}
