package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"credential-service/internal/domain"
	"credential-service/internal/repository"
)

type sessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(db *sqlx.DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

const sessionColumns = `
		id, user_id, tenant_id, token_hash, replaced_by_hash,
		ip_address, user_agent, device_id,
		issued_at, last_used_at, expires_at,
		revoked_at, revoked_reason, is_current`

// Create inserts a new session and fills in its generated id.
func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (
			user_id, tenant_id, token_hash, replaced_by_hash,
			ip_address, user_agent, device_id,
			issued_at, last_used_at, expires_at,
			revoked_at, revoked_reason, is_current
		) VALUES (
			:user_id, :tenant_id, :token_hash, :replaced_by_hash,
			:ip_address, :user_agent, :device_id,
			:issued_at, :last_used_at, :expires_at,
			:revoked_at, :revoked_reason, :is_current
		) RETURNING id`

	rows, err := r.db.NamedQueryContext(ctx, query, session)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&session.ID); err != nil {
			return fmt.Errorf("failed to scan session id: %w", err)
		}
	}

	return rows.Err()
}

// GetByTokenHash retrieves a session by its token hash, regardless of
// lifecycle state. Revoked and expired rows are returned too: the lifecycle
// manager needs them to tell reuse from expiry.
func (r *sessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE token_hash = $1`

	var session domain.Session
	err := r.db.GetContext(ctx, &session, query, tokenHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session by token hash: %w", err)
	}

	return &session, nil
}

// GetByUserID retrieves all sessions for a user, newest first.
func (r *sessionRepository) GetByUserID(ctx context.Context, userID int64) ([]*domain.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1
		ORDER BY issued_at DESC`

	var sessions []*domain.Session
	err := r.db.SelectContext(ctx, &sessions, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions by user id: %w", err)
	}

	return sessions, nil
}

// Rotate consumes the current session and inserts its successor in one
// transaction. The UPDATE is conditional on the row being neither revoked
// nor replaced, so of two concurrent rotations on the same token exactly one
// commits; the loser gets ErrSessionConsumed and no successor is left
// behind.
func (r *sessionRepository) Rotate(ctx context.Context, currentHash string, successor *domain.Session) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rotation: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE sessions
		SET revoked_at = $2,
			revoked_reason = 'rotated',
			is_current = FALSE,
			replaced_by_hash = $3,
			last_used_at = $2
		WHERE token_hash = $1
		  AND revoked_at IS NULL
		  AND replaced_by_hash IS NULL`,
		currentHash, successor.IssuedAt, successor.TokenHash)
	if err != nil {
		return fmt.Errorf("failed to consume session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrSessionConsumed
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO sessions (
			user_id, tenant_id, token_hash,
			ip_address, user_agent, device_id,
			issued_at, expires_at, is_current
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		RETURNING id`,
		successor.UserID, successor.TenantID, successor.TokenHash,
		successor.IPAddress, successor.UserAgent, successor.DeviceID,
		successor.IssuedAt, successor.ExpiresAt,
	).Scan(&successor.ID)
	if err != nil {
		return fmt.Errorf("failed to insert successor session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rotation: %w", err)
	}

	return nil
}

// Revoke closes the session for tokenHash if it is still open. Closing a
// missing or already-closed session is a no-op, which makes logout
// idempotent.
func (r *sessionRepository) Revoke(ctx context.Context, tokenHash, reason string, at time.Time) error {
	query := `
		UPDATE sessions
		SET revoked_at = $2, revoked_reason = $3, is_current = FALSE
		WHERE token_hash = $1 AND revoked_at IS NULL`

	_, err := r.db.ExecContext(ctx, query, tokenHash, at, reason)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	return nil
}

// RevokeByID closes one of the user's sessions by id.
func (r *sessionRepository) RevokeByID(ctx context.Context, id, userID int64, reason string, at time.Time) error {
	query := `
		UPDATE sessions
		SET revoked_at = $3, revoked_reason = $4, is_current = FALSE
		WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, userID, at, reason)
	if err != nil {
		return fmt.Errorf("failed to revoke session by id: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrSessionNotFound
	}

	return nil
}

// RevokeAllByUser closes every open session for the user in a single batch
// UPDATE. One statement, not a read-then-loop, so concurrent cascades for
// the same user cannot interleave into a partial result.
func (r *sessionRepository) RevokeAllByUser(ctx context.Context, userID int64, reason string, at time.Time) (int64, error) {
	query := `
		UPDATE sessions
		SET revoked_at = $2, revoked_reason = $3, is_current = FALSE
		WHERE user_id = $1 AND revoked_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, userID, at, reason)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke user sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// DeleteExpired purges sessions that have both expired and been revoked
// before the cutoff. Rows still open, or expired but never revoked, stay for
// reuse detection and audit.
func (r *sessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at <= $1 AND revoked_at IS NOT NULL`

	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}
