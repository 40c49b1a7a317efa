package httpapi

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrokoperasi/backend/internal/domain"
	"agrokoperasi/backend/internal/service"
)

type authenticatorStub struct {
	user  domain.User
	calls int
}

func (s *authenticatorStub) Authenticate(_ context.Context, username string, password string) (*domain.User, error) {
	s.calls++
	if username != s.user.Username || password != "secret" {
		return nil, service.ErrInvalidCredentials
	}
	u := s.user
	return &u, nil
}

func newStubManager(secret string) (*AuthManager, *authenticatorStub) {
	stub := &authenticatorStub{user: domain.User{
		ID:       "usr_1",
		Username: "finance@agrokoperasi.my",
		Role:     domain.RoleFinance,
		Active:   true,
	}}
	return NewAuthManager(secret, time.Hour, stub), stub
}

func TestLoginIssuesTokenCarryingActor(t *testing.T) {
	manager, stub := newStubManager("test-secret")

	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: "finance@agrokoperasi.my", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, 1, stub.calls)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "usr_1", resp.User.ID)

	expiresAt, err := time.Parse(time.RFC3339, resp.ExpiresAt)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	actor, err := manager.ParseToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.Actor{UserID: "usr_1", Username: "finance@agrokoperasi.my", Role: domain.RoleFinance}, actor)
}

func TestLoginPropagatesInvalidCredentials(t *testing.T) {
	manager, _ := newStubManager("test-secret")

	_, err := manager.Login(context.Background(), domain.LoginRequest{Username: "finance@agrokoperasi.my", Password: "nope"})
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestParseTokenRejectsTamperedAndForeignTokens(t *testing.T) {
	manager, _ := newStubManager("test-secret")
	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: "finance@agrokoperasi.my", Password: "secret"})
	require.NoError(t, err)

	parts := strings.Split(resp.Token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)
	_, err = manager.ParseToken(tampered)
	assert.Error(t, err)

	other, _ := newStubManager("another-secret")
	_, err = other.ParseToken(resp.Token)
	assert.Error(t, err)

	_, err = manager.ParseToken("not-a-token")
	assert.Error(t, err)
}

func TestParseTokenRejectsExpiredToken(t *testing.T) {
	manager, _ := newStubManager("test-secret")
	manager.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }

	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: "finance@agrokoperasi.my", Password: "secret"})
	require.NoError(t, err)

	manager.now = func() time.Time { return time.Now().UTC() }
	_, err = manager.ParseToken(resp.Token)
	assert.Error(t, err)
}

func TestNewAuthManagerDefaultsTTL(t *testing.T) {
	manager := NewAuthManager("s", 0, &authenticatorStub{})
	assert.Equal(t, 24*time.Hour, manager.tokenTTL)
}
