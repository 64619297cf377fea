package repository

import (
	"context"
	"errors"
	"time"

	"credential-service/internal/domain"
)

var (
	// ErrSessionNotFound is returned when no session exists for a token hash
	// or id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionConsumed is returned by Rotate when the conditional update
	// matched no row: the session was already rotated or revoked, typically
	// because a concurrent rotation on the same token won the race.
	ErrSessionConsumed = errors.New("session already rotated or revoked")
)

// SessionRepository is the durable session store. Rotate and RevokeAllByUser
// are the two operations the lifecycle manager's correctness rests on: both
// must be atomic against concurrent callers.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	GetByUserID(ctx context.Context, userID int64) ([]*domain.Session, error)

	// Rotate consumes the session identified by currentHash and inserts its
	// successor in one transaction. The consume step is conditional on the
	// session being neither revoked nor already replaced; if it matches no
	// row, Rotate returns ErrSessionConsumed and inserts nothing. On success
	// the successor's ID is filled in.
	Rotate(ctx context.Context, currentHash string, successor *domain.Session) error

	// Revoke closes the session for tokenHash if it is still open. A missing
	// or already-revoked session is not an error.
	Revoke(ctx context.Context, tokenHash, reason string, at time.Time) error

	// RevokeByID closes one session belonging to userID. Used by the
	// session-management endpoints, not by the rotation path.
	RevokeByID(ctx context.Context, id, userID int64, reason string, at time.Time) error

	// RevokeAllByUser closes every open session for userID in a single batch
	// update and reports how many it closed.
	RevokeAllByUser(ctx context.Context, userID int64, reason string, at time.Time) (int64, error)

	// DeleteExpired purges sessions that are both expired and revoked.
	// Retention, not lifecycle: open or merely-expired rows are kept for
	// reuse detection and audit.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
