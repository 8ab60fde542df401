package models

import "time"

// RefreshToken represents a persisted refresh token session.
type RefreshToken struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	Token     string     `db:"token" json:"token"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	Revoked   bool       `db:"revoked" json:"revoked"`
	RevokedAt *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	IPAddress string     `db:"ip_address" json:"ip_address"`
	UserAgent string     `db:"user_agent" json:"user_agent"`
}

// AccountTokenPurpose distinguishes one-shot account tokens.
type AccountTokenPurpose string

const (
	TokenPurposeActivation    AccountTokenPurpose = "activation"
	TokenPurposePasswordReset AccountTokenPurpose = "password_reset"
)

// AccountToken is a single-use token mailed to a user for account
// activation or password reset, addressed by uid/token pairs.
type AccountToken struct {
	ID        string              `db:"id" json:"id"`
	UserID    string              `db:"user_id" json:"user_id"`
	Token     string              `db:"token" json:"token"`
	Purpose   AccountTokenPurpose `db:"purpose" json:"purpose"`
	ExpiresAt time.Time           `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time           `db:"created_at" json:"created_at"`
	UsedAt    *time.Time          `db:"used_at" json:"used_at,omitempty"`
}

// Used reports whether the token has already been consumed.
func (t *AccountToken) Used() bool {
	return t.UsedAt != nil
}
