package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RefreshStore is what the token service needs from persistence.
// repository.TokenRepo satisfies it.
type RefreshStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// AccessClaims is the validated payload of an access token.
type AccessClaims struct {
	UserID    uint64
	Username  string
	Role      string
	TokenID   string
	ExpiresAt time.Time
}

// TokenService issues and validates the two token kinds: short-lived
// HS256 JWT access tokens and opaque random refresh tokens whose
// SHA-256 hash is persisted through a RefreshStore.
type TokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	store      RefreshStore
}

// NewTokenService constructs a TokenService.
func NewTokenService(secret, issuer string, accessTTL, refreshTTL time.Duration, store RefreshStore) *TokenService {
	return &TokenService{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		store:      store,
	}
}

// AccessTTL reports how long issued access tokens live.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// GenerateToken signs an HS256 access token for the user. The jti
// claim uniquely identifies each token; access tokens are not
// revocable, but the id gives a future denylist something to key on.
func (s *TokenService) GenerateToken(userID uint64, username, role string) (string, error) {
	jti, err := randomHex(16)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":      userID,
		"username": username,
		"role":     role,
		"iss":      s.issuer,
		"iat":      now.Unix(),
		"exp":      now.Add(s.accessTTL).Unix(),
		"jti":      jti,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateToken parses and verifies an access token. It returns nil
// for any invalid input: malformed structure, bad signature, expired,
// or issuer mismatch. It never panics on garbage.
func (s *TokenService) ValidateToken(raw string) *AccessClaims {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil
	}
	// Issuer is enforced only when the token carries one, so tokens
	// minted before the claim was introduced keep working.
	if iss, _ := claims["iss"].(string); iss != "" && iss != s.issuer {
		return nil
	}
	sub, ok := claims["sub"].(float64)
	if !ok || sub < 1 {
		return nil
	}
	out := &AccessClaims{UserID: uint64(sub)}
	out.Username, _ = claims["username"].(string)
	out.Role, _ = claims["role"].(string)
	out.TokenID, _ = claims["jti"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out
}

// IssueRefreshToken creates an opaque refresh token, stores its hash
// and returns the raw value. The raw token is shown to the client
// exactly once and never persisted.
func (s *TokenService) IssueRefreshToken(ctx context.Context, userID uint64) (string, error) {
	raw, err := randomHex(32) // 32 bytes -> 64 hex chars
	if err != nil {
		return "", err
	}
	exp := time.Now().UTC().Add(s.refreshTTL)
	if err := s.store.StoreRefresh(ctx, userID, hashToken(raw), exp); err != nil {
		return "", err
	}
	return raw, nil
}

// ValidateRefreshToken resolves a raw refresh token to its owner
// without consuming it. Revoked, expired and unknown tokens all fail
// the same way.
func (s *TokenService) ValidateRefreshToken(ctx context.Context, raw string) (uint64, error) {
	return s.store.ValidateRefresh(ctx, hashToken(raw))
}

// RevokeRefreshToken invalidates a single refresh token.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, raw string) error {
	return s.store.RevokeByHash(ctx, hashToken(raw))
}

// RevokeAllUserTokens invalidates every refresh token the user holds.
func (s *TokenService) RevokeAllUserTokens(ctx context.Context, userID uint64) error {
	return s.store.RevokeAllForUser(ctx, userID)
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
