package service

import (
	"context"
	"errors"
	"log"
	"time"
	"unicode/utf8"

	"credential-service/internal/domain"
	"credential-service/internal/repository"
	"credential-service/pkg/blacklist"
	"credential-service/pkg/email"
	"credential-service/pkg/jwt"
)

// maxUserAgentLen bounds the stored user agent; some clients send absurdly
// long ones.
const maxUserAgentLen = 500

const (
	reasonRotated = "rotated"
	reasonReuse   = "token reuse detected"
)

// userLockoutTTL is how long a reuse lockout keeps the user's outstanding
// access tokens blacklisted. Anything beyond the access-token lifetime works.
const userLockoutTTL = 24 * time.Hour

// SessionService manages the refresh-token session lifecycle: creation,
// validation, rotation, reuse detection and revocation cascades. It never
// holds locks of its own; correctness under concurrent refreshes rests on
// the store's conditional-write guarantees. The blacklist and mailer are
// optional; nil disables the corresponding lockout step.
type SessionService struct {
	sessions   repository.SessionRepository
	users      repository.UserRepository
	tokens     *jwt.TokenService
	blacklist  *blacklist.TokenBlacklist
	mailer     email.Mailer
	refreshTTL time.Duration
	now        func() time.Time
}

func NewSessionService(
	sessions repository.SessionRepository,
	users repository.UserRepository,
	tokens *jwt.TokenService,
	tokenBlacklist *blacklist.TokenBlacklist,
	mailer email.Mailer,
	refreshTTL time.Duration,
) *SessionService {
	return &SessionService{
		sessions:   sessions,
		users:      users,
		tokens:     tokens,
		blacklist:  tokenBlacklist,
		mailer:     mailer,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// CreateSession opens a fresh session for a raw refresh token that was just
// handed to the client. The raw token is hashed before it touches storage.
func (s *SessionService) CreateSession(
	ctx context.Context,
	userID, tenantID int64,
	rawToken string,
	meta domain.SessionMetadata,
) (*domain.Session, error) {
	now := s.now()

	session := &domain.Session{
		UserID:    userID,
		TenantID:  tenantID,
		TokenHash: s.tokens.HashToken(rawToken),
		IPAddress: meta.IPAddress,
		UserAgent: truncate(meta.UserAgent, maxUserAgentLen),
		DeviceID:  meta.DeviceID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.refreshTTL),
		IsCurrent: true,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		log.Printf("[SESSION] failed to create session for user %d: %v", userID, err)
		return nil, domain.E(domain.CodeUnknown, "failed to create session")
	}

	return session, nil
}

// ValidateAndRotate exchanges a presented refresh token for its successor.
//
// A token that resolves to an already-consumed session means the token was
// presented twice: either an attacker replayed a captured token, or the
// legitimate client raced itself. Both trigger a family-wide lockout, and
// the caller sees the same InvalidToken shape as any other failure so the
// two cases are indistinguishable from outside.
func (s *SessionService) ValidateAndRotate(
	ctx context.Context,
	rawToken string,
	meta domain.SessionMetadata,
) (*domain.Session, string, error) {
	session, err := s.sessions.GetByTokenHash(ctx, s.tokens.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, "", domain.E(domain.CodeInvalidToken, "invalid session")
		}
		log.Printf("[SESSION] lookup failed: %v", err)
		return nil, "", domain.E(domain.CodeUnknown, "failed to look up session")
	}

	if session.Consumed() {
		return nil, "", s.handleReuse(ctx, session)
	}

	// Expiry is not evidence of theft; the family stays intact.
	if session.Expired(s.now()) {
		return nil, "", domain.E(domain.CodeInvalidToken, "session expired")
	}

	newRaw, err := s.tokens.GenerateRefreshToken()
	if err != nil {
		log.Printf("[SESSION] failed to generate refresh token: %v", err)
		return nil, "", domain.E(domain.CodeUnknown, "failed to generate refresh token")
	}

	now := s.now()
	successor := &domain.Session{
		UserID:    session.UserID,
		TenantID:  session.TenantID,
		TokenHash: s.tokens.HashToken(newRaw),
		IPAddress: coalesce(meta.IPAddress, session.IPAddress),
		UserAgent: truncate(coalesce(meta.UserAgent, session.UserAgent), maxUserAgentLen),
		DeviceID:  coalesce(meta.DeviceID, session.DeviceID),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.refreshTTL), // sliding expiration
		IsCurrent: true,
	}

	if err := s.sessions.Rotate(ctx, session.TokenHash, successor); err != nil {
		if errors.Is(err, repository.ErrSessionConsumed) {
			// Lost the race against a concurrent rotation of the same token:
			// by the time we tried, the token had been spent.
			return nil, "", s.handleReuse(ctx, session)
		}
		log.Printf("[SESSION] rotation failed for user %d: %v", session.UserID, err)
		return nil, "", domain.E(domain.CodeUnknown, "failed to rotate session")
	}

	return successor, newRaw, nil
}

// handleReuse cascades a revocation across every open session the user has,
// blacklists their outstanding access tokens and notifies them by mail. The
// batch update is idempotent, so two concurrent reuse detections for the
// same user settle on the same end state; the lockout side effects only run
// for the detection that actually revoked something.
func (s *SessionService) handleReuse(ctx context.Context, session *domain.Session) error {
	revoked, err := s.sessions.RevokeAllByUser(ctx, session.UserID, reasonReuse, s.now())
	if err != nil {
		log.Printf("[SESSION] reuse cascade failed for user %d: %v", session.UserID, err)
		return domain.E(domain.CodeUnknown, "failed to revoke sessions")
	}

	if revoked > 0 {
		log.Printf("[SESSION] token reuse detected for user %d, revoked %d sessions", session.UserID, revoked)

		if s.blacklist != nil {
			if err := s.blacklist.BlacklistUser(ctx, session.UserID, userLockoutTTL); err != nil {
				log.Printf("[SESSION] user blacklisting failed for %d: %v", session.UserID, err)
			}
		}
		s.notifyReuse(ctx, session.UserID)
	}

	return domain.E(domain.CodeInvalidToken, "token reuse detected; all sessions revoked")
}

// notifyReuse sends the security-alert mail for a reuse lockout. Best effort:
// a missing mailer, a failed user lookup or a send error only logs.
func (s *SessionService) notifyReuse(ctx context.Context, userID int64) {
	if s.mailer == nil || s.users == nil {
		return
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		log.Printf("[SESSION] user lookup failed for reuse alert: %v", err)
		return
	}

	go func(to, name string) {
		if err := s.mailer.SendSecurityAlertEmail(context.Background(), to, name, "refresh token reuse detected"); err != nil {
			log.Printf("[SESSION] security alert email failed for %s: %v", to, err)
		}
	}(user.Email, user.Username())
}

// RevokeSession closes the session behind a raw refresh token. Idempotent:
// unknown and already-revoked tokens succeed silently, logout must never
// fail the caller.
func (s *SessionService) RevokeSession(ctx context.Context, rawToken, reason string) error {
	err := s.sessions.Revoke(ctx, s.tokens.HashToken(rawToken), reason, s.now())
	if err != nil {
		log.Printf("[SESSION] revoke failed: %v", err)
		return domain.E(domain.CodeUnknown, "failed to revoke session")
	}

	return nil
}

// RevokeAllUserSessions closes every open session for the user in one batch.
func (s *SessionService) RevokeAllUserSessions(ctx context.Context, userID int64, reason string) (int64, error) {
	revoked, err := s.sessions.RevokeAllByUser(ctx, userID, reason, s.now())
	if err != nil {
		log.Printf("[SESSION] revoke-all failed for user %d: %v", userID, err)
		return 0, domain.E(domain.CodeUnknown, "failed to revoke sessions")
	}

	return revoked, nil
}

// ListUserSessions returns all of a user's sessions, newest first.
func (s *SessionService) ListUserSessions(ctx context.Context, userID int64) ([]*domain.Session, error) {
	sessions, err := s.sessions.GetByUserID(ctx, userID)
	if err != nil {
		log.Printf("[SESSION] list failed for user %d: %v", userID, err)
		return nil, domain.E(domain.CodeUnknown, "failed to list sessions")
	}

	return sessions, nil
}

// RevokeUserSessionByID closes one of the user's sessions from the session
// management UI.
func (s *SessionService) RevokeUserSessionByID(ctx context.Context, id, userID int64, reason string) error {
	err := s.sessions.RevokeByID(ctx, id, userID, reason, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return domain.E(domain.CodeNotFound, "session not found")
		}
		log.Printf("[SESSION] revoke by id failed for user %d: %v", userID, err)
		return domain.E(domain.CodeUnknown, "failed to revoke session")
	}

	return nil
}

func truncate(s *string, max int) *string {
	if s == nil || len(*s) <= max {
		return s
	}
	// Back up to a rune boundary so the cut never splits a multibyte
	// character; Postgres rejects invalid UTF-8 text outright.
	end := max
	for end > 0 && !utf8.RuneStart((*s)[end]) {
		end--
	}
	cut := (*s)[:end]
	return &cut
}

func coalesce(a, b *string) *string {
	if a != nil {
		return a
	}
	return b
}
