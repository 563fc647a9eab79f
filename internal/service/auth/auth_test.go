package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"
	"testing"
	"time"

	"subscription-service/internal/domain/auth"
	xerrors "subscription-service/internal/pkg/errors"
	"subscription-service/internal/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memUsers struct {
	mu    sync.Mutex
	users []*auth.User
}

func (m *memUsers) Create(ctx context.Context, u *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = int64(len(m.users) + 1)
	u.CreatedAt = time.Now()
	cp := *u
	m.users = append(m.users, &cp)
	return nil
}

func (m *memUsers) find(match func(*auth.User) bool) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, xerrors.NotFound("user not found")
}

func (m *memUsers) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	return m.find(func(u *auth.User) bool { return u.ID == id })
}

func (m *memUsers) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	return m.find(func(u *auth.User) bool { return u.Username == username })
}

func (m *memUsers) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return m.find(func(u *auth.User) bool { return u.Email == email })
}

type memBlacklist struct {
	revoked map[string]time.Duration
	err     error
}

func (b *memBlacklist) IsTokenBlacklisted(ctx context.Context, jti string) (bool, error) {
	if b.err != nil {
		return false, b.err
	}
	_, ok := b.revoked[jti]
	return ok, nil
}

func (b *memBlacklist) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	b.revoked[jti] = ttl
	return nil
}

type countingLimiter struct {
	attempts map[string]int64
	resets   int
	err      error
}

func (l *countingLimiter) CheckLoginAttempt(ctx context.Context, ip, username string) (bool, int64, error) {
	if l.err != nil {
		return false, 0, l.err
	}
	key := ip + "|" + username
	l.attempts[key]++
	return l.attempts[key] <= 5, 5 - l.attempts[key], nil
}

func (l *countingLimiter) ResetLoginAttempts(ctx context.Context, ip, username string) error {
	delete(l.attempts, ip+"|"+username)
	l.resets++
	return nil
}

type fixture struct {
	svc       *AuthService
	users     *memUsers
	blacklist *memBlacklist
	limiter   *countingLimiter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fixture{
		users:     &memUsers{},
		blacklist: &memBlacklist{revoked: map[string]time.Duration{}},
		limiter:   &countingLimiter{attempts: map[string]int64{}},
	}
	gen := jwt.NewGenerator(key, "subscription-service", "subscribers", "test", 30*time.Minute)
	ver := jwt.NewVerifier(&key.PublicKey, "subscription-service", "subscribers")
	f.svc = NewAuthService(f.users, gen, ver, f.blacklist, f.limiter, nil)
	return f
}

func (f *fixture) register(t *testing.T, username, password string) *auth.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), &auth.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: password,
	})
	require.NoError(t, err)
	return u
}

func TestRegister(t *testing.T) {
	f := newFixture(t)

	u := f.register(t, "alice", "correct-horse")

	assert.Equal(t, int64(1), u.ID)
	assert.NotEqual(t, "correct-horse", u.PasswordHash)
	assert.NotEmpty(t, u.PasswordHash)
}

func TestRegister_Duplicates(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "correct-horse")

	_, err := f.svc.Register(context.Background(), &auth.RegisterRequest{
		Username: "alice", Email: "other@example.com", Password: "password1",
	})
	assert.ErrorIs(t, err, xerrors.ErrConflict)

	_, err = f.svc.Register(context.Background(), &auth.RegisterRequest{
		Username: "bob", Email: "ALICE@example.com", Password: "password1",
	})
	assert.ErrorIs(t, err, xerrors.ErrConflict)
}

func TestLoginAndValidate(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "alice", "correct-horse")
	ctx := context.Background()

	resp, err := f.svc.Login(ctx, &auth.LoginRequest{Username: "alice", Password: "correct-horse", IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, u.ID, resp.User.ID)
	assert.InDelta(t, 1800, resp.ExpiresIn, 2)
	assert.Equal(t, 1, f.limiter.resets)

	p, err := f.svc.ValidateToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.UserID)
	assert.Equal(t, "alice", p.Username)
	assert.NotEmpty(t, p.TokenID)

	me, err := f.svc.GetMe(ctx, p.UserID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", me.Email)
}

func TestLogin_WrongCredentials(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "correct-horse")

	_, err := f.svc.Login(context.Background(), &auth.LoginRequest{Username: "alice", Password: "wrong-pass"})
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)

	_, err = f.svc.Login(context.Background(), &auth.LoginRequest{Username: "nobody", Password: "whatever"})
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
}

func TestLogin_RateLimited(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "correct-horse")
	req := &auth.LoginRequest{Username: "alice", Password: "wrong-pass", IPAddress: "10.0.0.1"}

	for i := 0; i < 5; i++ {
		_, err := f.svc.Login(context.Background(), req)
		require.ErrorIs(t, err, xerrors.ErrUnauthorized)
	}

	req.Password = "correct-horse"
	_, err := f.svc.Login(context.Background(), req)
	assert.ErrorIs(t, err, xerrors.ErrRateLimited)

	req.IPAddress = "10.0.0.2"
	_, err = f.svc.Login(context.Background(), req)
	assert.NoError(t, err)
}

func TestLogin_LimiterOutageDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "correct-horse")
	f.limiter.err = errors.New("redis: connection refused")

	_, err := f.svc.Login(context.Background(), &auth.LoginRequest{Username: "alice", Password: "correct-horse"})

	assert.NoError(t, err)
}

func TestLogout_RevokesToken(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "correct-horse")
	ctx := context.Background()
	resp, err := f.svc.Login(ctx, &auth.LoginRequest{Username: "alice", Password: "correct-horse"})
	require.NoError(t, err)
	p, err := f.svc.ValidateToken(ctx, resp.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, p))

	ttl, ok := f.blacklist.revoked[p.TokenID]
	require.True(t, ok)
	assert.Greater(t, ttl, 29*time.Minute)

	_, err = f.svc.ValidateToken(ctx, resp.AccessToken)
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
}

func TestValidateToken_Rejects(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ValidateToken(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)

	f.register(t, "alice", "correct-horse")
	resp, err := f.svc.Login(context.Background(), &auth.LoginRequest{Username: "alice", Password: "correct-horse"})
	require.NoError(t, err)

	f.blacklist.err = errors.New("redis down")
	_, err = f.svc.ValidateToken(context.Background(), resp.AccessToken)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, xerrors.ErrUnauthorized)
}
