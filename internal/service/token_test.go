package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type refreshRow struct {
	userID  uint64
	exp     time.Time
	revoked bool
}

// fakeRefreshStore keeps refresh rows in memory with the same
// contract as the SQL-backed repository.
type fakeRefreshStore struct {
	rows map[string]refreshRow
}

func newFakeRefreshStore() *fakeRefreshStore {
	return &fakeRefreshStore{rows: map[string]refreshRow{}}
}

func (s *fakeRefreshStore) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	s.rows[tokenHash] = refreshRow{userID: userID, exp: exp}
	return nil
}

func (s *fakeRefreshStore) ValidateRefresh(_ context.Context, tokenHash string) (uint64, error) {
	row, ok := s.rows[tokenHash]
	if !ok || row.revoked || time.Now().UTC().After(row.exp) {
		return 0, sql.ErrNoRows
	}
	return row.userID, nil
}

func (s *fakeRefreshStore) RevokeByHash(_ context.Context, tokenHash string) error {
	if row, ok := s.rows[tokenHash]; ok {
		row.revoked = true
		s.rows[tokenHash] = row
	}
	return nil
}

func (s *fakeRefreshStore) RevokeAllForUser(_ context.Context, userID uint64) error {
	for hash, row := range s.rows {
		if row.userID == userID {
			row.revoked = true
			s.rows[hash] = row
		}
	}
	return nil
}

func newTestTokenService(store RefreshStore) *TokenService {
	return NewTokenService("test-secret", "vendingstore", time.Hour, 7*24*time.Hour, store)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newTestTokenService(nil)

	raw, err := svc.GenerateToken(42, "alice", "user")
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	claims := svc.ValidateToken(raw)
	require.NotNil(t, claims)
	assert.Equal(t, uint64(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "user", claims.Role)
	assert.NotEmpty(t, claims.TokenID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, time.Minute)
}

func TestAccessTokenUniqueIDs(t *testing.T) {
	svc := newTestTokenService(nil)

	a, err := svc.GenerateToken(1, "alice", "user")
	require.NoError(t, err)
	b, err := svc.GenerateToken(1, "alice", "user")
	require.NoError(t, err)

	ca, cb := svc.ValidateToken(a), svc.ValidateToken(b)
	require.NotNil(t, ca)
	require.NotNil(t, cb)
	assert.NotEqual(t, ca.TokenID, cb.TokenID)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc := newTestTokenService(nil)

	raw, err := svc.GenerateToken(7, "bob", "user")
	require.NoError(t, err)

	// Flip the last signature character.
	tampered := []byte(raw)
	last := len(tampered) - 1
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}
	assert.Nil(t, svc.ValidateToken(string(tampered)))
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenService("secret-one", "vendingstore", time.Hour, time.Hour, nil)
	verifier := NewTokenService("secret-two", "vendingstore", time.Hour, time.Hour, nil)

	raw, err := issuer.GenerateToken(7, "bob", "user")
	require.NoError(t, err)
	assert.Nil(t, verifier.ValidateToken(raw))
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := NewTokenService("test-secret", "vendingstore", -time.Minute, time.Hour, nil)

	raw, err := svc.GenerateToken(7, "bob", "user")
	require.NoError(t, err)
	assert.Nil(t, svc.ValidateToken(raw))
}

func TestValidateTokenRejectsIssuerMismatch(t *testing.T) {
	other := NewTokenService("test-secret", "someone-else", time.Hour, time.Hour, nil)
	svc := newTestTokenService(nil)

	raw, err := other.GenerateToken(7, "bob", "user")
	require.NoError(t, err)
	assert.Nil(t, svc.ValidateToken(raw))
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := newTestTokenService(nil)
	for _, raw := range []string{"", "abc", "a.b", "not.a.token", "a.b.c.d"} {
		assert.Nil(t, svc.ValidateToken(raw), "input %q", raw)
	}
}

func TestRefreshTokenLifecycle(t *testing.T) {
	store := newFakeRefreshStore()
	svc := newTestTokenService(store)
	ctx := context.Background()

	raw, err := svc.IssueRefreshToken(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, raw, 64) // 32 random bytes hex-encoded

	// Only the hash hits the store.
	_, stored := store.rows[raw]
	assert.False(t, stored)
	require.Len(t, store.rows, 1)

	uid, err := svc.ValidateRefreshToken(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), uid)

	// Validation does not consume the token.
	uid, err = svc.ValidateRefreshToken(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), uid)

	require.NoError(t, svc.RevokeRefreshToken(ctx, raw))
	_, err = svc.ValidateRefreshToken(ctx, raw)
	assert.Error(t, err)
}

func TestRevokeAllUserTokens(t *testing.T) {
	store := newFakeRefreshStore()
	svc := newTestTokenService(store)
	ctx := context.Background()

	first, err := svc.IssueRefreshToken(ctx, 42)
	require.NoError(t, err)
	second, err := svc.IssueRefreshToken(ctx, 42)
	require.NoError(t, err)
	other, err := svc.IssueRefreshToken(ctx, 99)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAllUserTokens(ctx, 42))

	_, err = svc.ValidateRefreshToken(ctx, first)
	assert.Error(t, err)
	_, err = svc.ValidateRefreshToken(ctx, second)
	assert.Error(t, err)

	uid, err := svc.ValidateRefreshToken(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), uid)
}
