// Package memstore is an in-memory account store with the same
// conditional-write semantics as the Postgres store. It backs tests and
// database-less development runs.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/authflow"
)

// Store keeps accounts in maps guarded by one mutex.
type Store struct {
	mu         sync.Mutex
	byID       map[string]*authflow.Account
	byEmail    map[string]string
	byUsername map[string]string
}

// New creates an empty store.
func New() *Store {
	return &Store{
		byID:       make(map[string]*authflow.Account),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
	}
}

func (s *Store) FindByID(ctx context.Context, id string) (*authflow.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[id]
	if !ok {
		return nil, authflow.ErrAccountNotFound
	}
	return cloneAccount(account), nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*authflow.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[authflow.NormalizeEmail(email)]
	if !ok {
		return nil, authflow.ErrAccountNotFound
	}
	return cloneAccount(s.byID[id]), nil
}

func (s *Store) FindByUsername(ctx context.Context, username string) (*authflow.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byUsername[strings.ToLower(username)]
	if !ok {
		return nil, authflow.ErrAccountNotFound
	}
	return cloneAccount(s.byID[id]), nil
}

func (s *Store) Create(ctx context.Context, acc authflow.NewAccount) (*authflow.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := authflow.NormalizeEmail(acc.Email)
	if _, taken := s.byEmail[email]; taken {
		return nil, authflow.ErrEmailTaken
	}
	if _, taken := s.byUsername[strings.ToLower(acc.Username)]; taken {
		return nil, authflow.ErrUsernameTaken
	}

	now := time.Now()
	account := &authflow.Account{
		ID:            uuid.NewString(),
		Username:      acc.Username,
		Email:         email,
		PasswordHash:  acc.PasswordHash,
		HasPassword:   acc.PasswordHash != "",
		Provider:      acc.Provider,
		EmailVerified: acc.EmailVerified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.byID[account.ID] = account
	s.byEmail[email] = account.ID
	s.byUsername[strings.ToLower(acc.Username)] = account.ID
	return cloneAccount(account), nil
}

func (s *Store) SetPasswordHash(ctx context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[id]
	if !ok {
		return authflow.ErrAccountNotFound
	}
	account.PasswordHash = hash
	account.HasPassword = hash != ""
	account.UpdatedAt = time.Now()
	return nil
}

func (s *Store) SetOTP(ctx context.Context, id, code string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[id]
	if !ok {
		return authflow.ErrAccountNotFound
	}
	account.OTP = code
	account.OTPExpiry = expiry
	account.UpdatedAt = time.Now()
	return nil
}

// ConsumeOTP marks the account verified and clears the code, but only if
// the stored code still matches. Returns false when a concurrent consume
// or replace won.
func (s *Store) ConsumeOTP(ctx context.Context, id, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[id]
	if !ok {
		return false, authflow.ErrAccountNotFound
	}
	if account.OTP == "" || account.OTP != code {
		return false, nil
	}
	account.EmailVerified = true
	account.OTP = ""
	account.OTPExpiry = time.Time{}
	account.UpdatedAt = time.Now()
	return true, nil
}

func (s *Store) SetResetToken(ctx context.Context, id, token string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[id]
	if !ok {
		return authflow.ErrAccountNotFound
	}
	account.ResetToken = token
	account.ResetTokenExpiry = expiry
	account.UpdatedAt = time.Now()
	return nil
}

// ConsumeResetToken installs the new hash and clears the token, but only
// if the stored token still matches.
func (s *Store) ConsumeResetToken(ctx context.Context, id, token, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[id]
	if !ok {
		return false, authflow.ErrAccountNotFound
	}
	if account.ResetToken == "" || account.ResetToken != token {
		return false, nil
	}
	account.PasswordHash = hash
	account.HasPassword = true
	account.ResetToken = ""
	account.ResetTokenExpiry = time.Time{}
	account.UpdatedAt = time.Now()
	return true, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[id]
	if !ok {
		return authflow.ErrAccountNotFound
	}
	delete(s.byEmail, account.Email)
	delete(s.byUsername, strings.ToLower(account.Username))
	delete(s.byID, id)
	return nil
}

func cloneAccount(a *authflow.Account) *authflow.Account {
	c := *a
	return &c
}
