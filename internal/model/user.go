package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role values stored in users.role.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an application account as stored in the `users`
// table. The balance is an internal ledger value: it is granted at
// registration, debited by purchases and adjusted by administrative
// actions. It must never go negative; the repository enforces that
// at the SQL level.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Username     – unique login name.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – "user" or "admin".
//  Balance      – current ledger balance, never negative.
//  IsActive     – whether the account is active.
//  LastLogin    – when the user last authenticated (null until first login).
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64          // users.id
	Username     string          // users.username
	Email        string          // users.email
	PasswordHash string          // users.password_hash
	Role         string          // users.role
	Balance      decimal.Decimal // users.balance
	IsActive     bool            // users.is_active
	LastLogin    *time.Time      // users.last_login (nullable)
	CreatedAt    time.Time       // users.created_at
	UpdatedAt    time.Time       // users.updated_at
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// RefreshToken models an entry in the `refresh_tokens` table. Each
// refresh token belongs to a user and carries metadata for expiry
// and revocation. The plain token is never stored; only its
// SHA-256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  Revoked   – whether the token has been revoked.
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64    // refresh_tokens.id
	UserID    uint64    // refresh_tokens.user_id
	TokenHash string    // refresh_tokens.token_hash
	ExpiresAt time.Time // refresh_tokens.expires_at
	Revoked   bool      // refresh_tokens.revoked
	CreatedAt time.Time // refresh_tokens.created_at
}
