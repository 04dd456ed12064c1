package authflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type mockStore struct {
	mu       sync.Mutex
	accounts map[string]*Account
	nextID   int

	createErr error
	findErr   error

	createCalls  int
	consumeCalls int
}

func newMockStore() *mockStore {
	return &mockStore{accounts: make(map[string]*Account)}
}

func (m *mockStore) FindByID(ctx context.Context, id string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return copyOf(a), nil
}

func (m *mockStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, a := range m.accounts {
		if a.Email == NormalizeEmail(email) {
			return copyOf(a), nil
		}
	}
	return nil, ErrAccountNotFound
}

func (m *mockStore) FindByUsername(ctx context.Context, username string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if strings.EqualFold(a.Username, username) {
			return copyOf(a), nil
		}
	}
	return nil, ErrAccountNotFound
}

func (m *mockStore) Create(ctx context.Context, input NewAccount) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return nil, m.createErr
	}

	email := NormalizeEmail(input.Email)
	for _, a := range m.accounts {
		if a.Email == email {
			return nil, ErrEmailTaken
		}
		if strings.EqualFold(a.Username, input.Username) {
			return nil, ErrUsernameTaken
		}
	}

	m.nextID++
	now := time.Now()
	a := &Account{
		ID:            fmt.Sprintf("acc-%d", m.nextID),
		Username:      input.Username,
		Email:         email,
		PasswordHash:  input.PasswordHash,
		HasPassword:   input.PasswordHash != "",
		Provider:      input.Provider,
		EmailVerified: input.EmailVerified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.accounts[a.ID] = a
	return copyOf(a), nil
}

func (m *mockStore) SetPasswordHash(ctx context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.PasswordHash = hash
	a.HasPassword = hash != ""
	return nil
}

func (m *mockStore) SetOTP(ctx context.Context, id, code string, expiry time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.OTP = code
	a.OTPExpiry = expiry
	return nil
}

func (m *mockStore) ConsumeOTP(ctx context.Context, id, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumeCalls++
	a, ok := m.accounts[id]
	if !ok {
		return false, ErrAccountNotFound
	}
	if a.OTP == "" || a.OTP != code {
		return false, nil
	}
	a.EmailVerified = true
	a.OTP = ""
	a.OTPExpiry = time.Time{}
	return true, nil
}

func (m *mockStore) SetResetToken(ctx context.Context, id, token string, expiry time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.ResetToken = token
	a.ResetTokenExpiry = expiry
	return nil
}

func (m *mockStore) ConsumeResetToken(ctx context.Context, id, token, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumeCalls++
	a, ok := m.accounts[id]
	if !ok {
		return false, ErrAccountNotFound
	}
	if a.ResetToken == "" || a.ResetToken != token {
		return false, nil
	}
	a.PasswordHash = hash
	a.HasPassword = true
	a.ResetToken = ""
	a.ResetTokenExpiry = time.Time{}
	return true, nil
}

func (m *mockStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return ErrAccountNotFound
	}
	delete(m.accounts, id)
	return nil
}

// get returns the live record for direct inspection and mutation.
func (m *mockStore) get(id string) *Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id]
}

func copyOf(a *Account) *Account {
	c := *a
	return &c
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type mockMailer struct {
	mu      sync.Mutex
	sent    []sentMail
	sendErr error
}

func (m *mockMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

func (m *mockMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *mockMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}
	}
	return m.sent[len(m.sent)-1]
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessSecret = []byte("test-access-secret-0123456789abcdef")
	cfg.JWT.RefreshSecret = []byte("test-refresh-secret-0123456789abcdef")
	// Cheapest argon2id parameters the hasher accepts, to keep tests fast.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.SaltLength = 16
	cfg.Password.KeyLength = 16
	return cfg
}

type testEngine struct {
	*Engine
	store  *mockStore
	mailer *mockMailer
}

func newTestEngine(t *testing.T, opts ...func(*Builder)) *testEngine {
	t.Helper()

	store := newMockStore()
	mailer := &mockMailer{}

	b := New().
		WithConfig(testConfig()).
		WithStore(store).
		WithMailer(mailer)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEngine{Engine: engine, store: store, mailer: mailer}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

// registerVerified creates a credentials account and completes OTP
// verification, returning the stored record.
func registerVerified(t *testing.T, te *testEngine, username, email, password string) *Account {
	t.Helper()

	account, err := te.Register(context.Background(), RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := te.SendOTP(context.Background(), email); err != nil {
		t.Fatalf("SendOTP failed: %v", err)
	}
	code := te.store.get(account.ID).OTP
	if err := te.ValidateOTP(context.Background(), email, code); err != nil {
		t.Fatalf("ValidateOTP failed: %v", err)
	}
	return te.store.get(account.ID)
}
