package domain

import "time"

// Session binds a hashed refresh token to a user/tenant for the lifetime of
// one refresh-token grant. Rotation closes a session and opens its successor;
// ReplacedByHash links the chain so a whole token family can be traced back
// to the original login.
type Session struct {
	ID             int64      `json:"id" db:"id"`
	UserID         int64      `json:"user_id" db:"user_id"`
	TenantID       int64      `json:"tenant_id" db:"tenant_id"`
	TokenHash      string     `json:"-" db:"token_hash"`
	ReplacedByHash *string    `json:"-" db:"replaced_by_hash"`
	IPAddress      *string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent      *string    `json:"user_agent,omitempty" db:"user_agent"`
	DeviceID       *string    `json:"device_id,omitempty" db:"device_id"`
	IssuedAt       time.Time  `json:"issued_at" db:"issued_at"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	ExpiresAt      time.Time  `json:"expires_at" db:"expires_at"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	RevokedReason  *string    `json:"revoked_reason,omitempty" db:"revoked_reason"`
	IsCurrent      bool       `json:"is_current" db:"is_current"`
}

// SessionMetadata carries informational device/network details attached to a
// session at creation. None of it participates in correctness logic.
type SessionMetadata struct {
	IPAddress *string
	UserAgent *string
	DeviceID  *string
}

// Revoked reports whether the session has been closed, for any reason.
func (s *Session) Revoked() bool {
	return s.RevokedAt != nil
}

// Consumed reports whether this session's token has already been spent,
// either by a legitimate rotation or by an earlier revocation. Presenting a
// consumed token again is treated as reuse.
func (s *Session) Consumed() bool {
	return s.RevokedAt != nil || s.ReplacedByHash != nil
}

// Expired reports whether the session's sliding expiry has passed. Expiry is
// derived from ExpiresAt, never stored as a flag.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}
