// Package auth issues identities and the bearer tokens that prove them.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/inaiurai/settlement/internal/models"
)

const tokenTTL = 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

type Account struct {
	Address   models.Address `json:"address"`
	CreatedAt time.Time      `json:"created_at"`
}

type Service interface {
	CreateAccount(ctx context.Context, password string) (*Account, error)
	Login(ctx context.Context, addr models.Address, password string) (string, error)
	ValidateToken(ctx context.Context, token string) (models.Address, error)
	// Seed creates the account for a known address unless it already exists.
	Seed(ctx context.Context, addr models.Address, password string) error
}

type service struct {
	repo   Repository
	secret []byte
	now    func() time.Time
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

func NewService(repo Repository, secret string) *service {
	return &service{repo: repo, secret: []byte(secret), now: time.Now}
}

func (s *service) CreateAccount(ctx context.Context, password string) (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	// A collision on 160 random bits is not expected; retry once anyway.
	for attempt := 0; ; attempt++ {
		var addr models.Address
		if _, err := rand.Read(addr[:]); err != nil {
			return nil, fmt.Errorf("generate address: %w", err)
		}
		acc, err := s.repo.Create(ctx, addr, string(hash))
		if errors.Is(err, ErrAccountExists) && attempt == 0 {
			continue
		}
		return acc, err
	}
}

func (s *service) Seed(ctx context.Context, addr models.Address, password string) error {
	if _, _, err := s.repo.Get(ctx, addr); err == nil {
		return nil
	} else if !errors.Is(err, ErrAccountNotFound) {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if _, err := s.repo.Create(ctx, addr, string(hash)); err != nil && !errors.Is(err, ErrAccountExists) {
		return err
	}
	return nil
}

func (s *service) Login(ctx context.Context, addr models.Address, password string) (string, error) {
	acc, hash, err := s.repo.Get(ctx, addr)
	if errors.Is(err, ErrAccountNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.issueToken(acc.Address)
}

func (s *service) issueToken(addr models.Address) (string, error) {
	now := s.now()
	c := jwt.RegisteredClaims{
		Subject:   addr.String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

func (s *service) ValidateToken(ctx context.Context, token string) (models.Address, error) {
	c := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(token, c, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return models.Address{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return models.Address{}, ErrInvalidToken
	}
	addr, err := models.ParseAddress(c.Subject)
	if err != nil {
		return models.Address{}, fmt.Errorf("%w: subject: %v", ErrInvalidToken, err)
	}
	return addr, nil
}
