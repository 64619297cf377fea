package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"credential-service/internal/domain"
	"credential-service/internal/repository"
	"credential-service/pkg/jwt"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

// memSessionRepo is an in-memory SessionRepository with the same atomicity
// guarantees as the Postgres implementation: Rotate is conditional on the
// session being unconsumed, RevokeAllByUser is one batch under the lock.
type memSessionRepo struct {
	mu     sync.Mutex
	byHash map[string]*domain.Session
	nextID int64
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{byHash: make(map[string]*domain.Session)}
}

func (r *memSessionRepo) Create(ctx context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	session.ID = r.nextID
	s2 := *session
	r.byHash[session.TokenHash] = &s2
	return nil
}

func (r *memSessionRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byHash[tokenHash]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	s2 := *s
	return &s2, nil
}

func (r *memSessionRepo) GetByUserID(ctx context.Context, userID int64) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Session
	for _, s := range r.byHash {
		if s.UserID == userID {
			s2 := *s
			out = append(out, &s2)
		}
	}
	return out, nil
}

func (r *memSessionRepo) Rotate(ctx context.Context, currentHash string, successor *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byHash[currentHash]
	if !ok || current.RevokedAt != nil || current.ReplacedByHash != nil {
		return repository.ErrSessionConsumed
	}

	at := successor.IssuedAt
	current.RevokedAt = &at
	reason := "rotated"
	current.RevokedReason = &reason
	current.IsCurrent = false
	replacedBy := successor.TokenHash
	current.ReplacedByHash = &replacedBy
	current.LastUsedAt = &at

	r.nextID++
	successor.ID = r.nextID
	s2 := *successor
	r.byHash[successor.TokenHash] = &s2
	return nil
}

func (r *memSessionRepo) Revoke(ctx context.Context, tokenHash, reason string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byHash[tokenHash]
	if !ok || s.RevokedAt != nil {
		return nil
	}
	s.RevokedAt = &at
	s.RevokedReason = &reason
	s.IsCurrent = false
	return nil
}

func (r *memSessionRepo) RevokeByID(ctx context.Context, id, userID int64, reason string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byHash {
		if s.ID == id && s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &at
			s.RevokedReason = &reason
			s.IsCurrent = false
			return nil
		}
	}
	return repository.ErrSessionNotFound
}

func (r *memSessionRepo) RevokeAllByUser(ctx context.Context, userID int64, reason string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.byHash {
		if s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &at
			s.RevokedReason = &reason
			s.IsCurrent = false
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for hash, s := range r.byHash {
		if !s.ExpiresAt.After(before) && s.RevokedAt != nil {
			delete(r.byHash, hash)
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) get(t *testing.T, hash string) *domain.Session {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byHash[hash]
	if !ok {
		t.Fatalf("session with hash %q not found", hash)
	}
	s2 := *s
	return &s2
}

func newTestTokenService(t *testing.T) *jwt.TokenService {
	t.Helper()
	tokens, err := jwt.NewTokenService(testSigningKey, 15*time.Minute, "test", "test")
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	return tokens
}

func newTestSessionService(t *testing.T) (*SessionService, *memSessionRepo) {
	t.Helper()
	repo := newMemSessionRepo()
	svc := NewSessionService(repo, nil, newTestTokenService(t), nil, nil, 7*24*time.Hour)
	return svc, repo
}

func strPtr(s string) *string { return &s }

func TestCreateSession(t *testing.T) {
	svc, repo := newTestSessionService(t)
	ctx := context.Background()

	raw, err := svc.tokens.GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}

	session, err := svc.CreateSession(ctx, 1, 10, raw, domain.SessionMetadata{
		IPAddress: strPtr("203.0.113.7"),
		UserAgent: strPtr("test-agent"),
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if session.ID == 0 {
		t.Error("session id was not assigned")
	}
	if !session.IsCurrent {
		t.Error("new session should be current")
	}
	if session.Revoked() || session.ReplacedByHash != nil {
		t.Error("new session should be active")
	}
	if session.TokenHash == raw {
		t.Error("raw token must not be stored")
	}
	if got := repo.get(t, session.TokenHash); got.UserID != 1 || got.TenantID != 10 {
		t.Errorf("stored session = user %d tenant %d, want user 1 tenant 10", got.UserID, got.TenantID)
	}

	wantExpiry := session.IssuedAt.Add(7 * 24 * time.Hour)
	if !session.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("ExpiresAt = %v, want %v", session.ExpiresAt, wantExpiry)
	}
}

func TestCreateSession_TruncatesUserAgent(t *testing.T) {
	tests := []struct {
		name    string
		ua      string
		wantLen int
	}{
		{"ascii", strings.Repeat("x", 600), 500},
		// A 3-byte rune straddling the cut must be dropped whole, not split.
		{"multibyte at boundary", strings.Repeat("x", 499) + strings.Repeat("€", 40), 499},
		{"multibyte throughout", strings.Repeat("€", 200), 498},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestSessionService(t)

			session, err := svc.CreateSession(context.Background(), 1, 10, "raw-token", domain.SessionMetadata{
				UserAgent: &tt.ua,
			})
			if err != nil {
				t.Fatalf("CreateSession() error = %v", err)
			}

			stored := repo.get(t, session.TokenHash)
			if stored.UserAgent == nil {
				t.Fatal("stored user agent is nil")
			}
			if len(*stored.UserAgent) != tt.wantLen {
				t.Errorf("stored user agent length = %d, want %d", len(*stored.UserAgent), tt.wantLen)
			}
			if !utf8.ValidString(*stored.UserAgent) {
				t.Error("stored user agent is not valid UTF-8")
			}
		})
	}
}

func TestValidateAndRotate_RotatesSession(t *testing.T) {
	svc, repo := newTestSessionService(t)
	ctx := context.Background()

	raw := "original-refresh-token"
	original, err := svc.CreateSession(ctx, 1, 10, raw, domain.SessionMetadata{IPAddress: strPtr("203.0.113.7")})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	// Move the clock forward so the successor's expiry is strictly later.
	svc.now = func() time.Time { return time.Now().Add(time.Minute) }

	successor, newRaw, err := svc.ValidateAndRotate(ctx, raw, domain.SessionMetadata{})
	if err != nil {
		t.Fatalf("ValidateAndRotate() error = %v", err)
	}

	if newRaw == raw {
		t.Error("rotation must issue a fresh raw token")
	}

	prior := repo.get(t, original.TokenHash)
	if prior.RevokedAt == nil {
		t.Error("prior session should be revoked")
	}
	if prior.RevokedReason == nil || *prior.RevokedReason != "rotated" {
		t.Errorf("prior revoked reason = %v, want rotated", prior.RevokedReason)
	}
	if prior.IsCurrent {
		t.Error("prior session should no longer be current")
	}
	if prior.ReplacedByHash == nil || *prior.ReplacedByHash != successor.TokenHash {
		t.Error("prior session should point at its successor")
	}

	if !successor.IsCurrent {
		t.Error("successor should be current")
	}
	if successor.UserID != 1 || successor.TenantID != 10 {
		t.Errorf("successor principal = user %d tenant %d, want user 1 tenant 10", successor.UserID, successor.TenantID)
	}
	if !successor.ExpiresAt.After(original.ExpiresAt) {
		t.Error("successor expiry should be strictly later (sliding TTL)")
	}
	if successor.IPAddress == nil || *successor.IPAddress != "203.0.113.7" {
		t.Error("successor should inherit metadata when the caller sends none")
	}
}

func TestValidateAndRotate_UnknownToken(t *testing.T) {
	svc, _ := newTestSessionService(t)

	_, _, err := svc.ValidateAndRotate(context.Background(), "never-issued", domain.SessionMetadata{})
	if err == nil {
		t.Fatal("ValidateAndRotate() expected error for unknown token")
	}
	if domain.CodeOf(err) != domain.CodeInvalidToken {
		t.Errorf("error code = %s, want %s", domain.CodeOf(err), domain.CodeInvalidToken)
	}
}

func TestValidateAndRotate_ReuseTriggersCascade(t *testing.T) {
	svc, repo := newTestSessionService(t)
	ctx := context.Background()

	raw := "stolen-token"
	if _, err := svc.CreateSession(ctx, 1, 10, raw, domain.SessionMetadata{}); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	// An unrelated session of the same user, caught by the cascade.
	other, err := svc.CreateSession(ctx, 1, 10, "other-device-token", domain.SessionMetadata{})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	// First presentation: legitimate rotation.
	if _, _, err := svc.ValidateAndRotate(ctx, raw, domain.SessionMetadata{}); err != nil {
		t.Fatalf("first rotation error = %v", err)
	}

	// Second presentation of the same token: reuse.
	_, _, err = svc.ValidateAndRotate(ctx, raw, domain.SessionMetadata{})
	if err == nil {
		t.Fatal("replay should fail")
	}
	if domain.CodeOf(err) != domain.CodeInvalidToken {
		t.Errorf("error code = %s, want %s", domain.CodeOf(err), domain.CodeInvalidToken)
	}

	// Every session of the user is revoked, including the unrelated one.
	sessions, err := repo.GetByUserID(ctx, 1)
	if err != nil {
		t.Fatalf("GetByUserID() error = %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("session count = %d, want 3", len(sessions))
	}
	for _, s := range sessions {
		if s.RevokedAt == nil {
			t.Errorf("session %d should be revoked after cascade", s.ID)
		}
	}
	if got := repo.get(t, other.TokenHash); got.RevokedReason == nil || *got.RevokedReason != "token reuse detected" {
		t.Errorf("cascade reason = %v, want token reuse detected", got.RevokedReason)
	}
}

// alertMailer records security-alert sends so tests can wait for the async
// notification.
type alertMailer struct {
	alerts chan string
}

func (m *alertMailer) SendWelcomeEmail(ctx context.Context, to, name string) error {
	return nil
}

func (m *alertMailer) SendSecurityAlertEmail(ctx context.Context, to, name, reason string) error {
	m.alerts <- to
	return nil
}

func TestValidateAndRotate_ReuseSendsSecurityAlert(t *testing.T) {
	ctx := context.Background()

	users := newMemUserRepo()
	owner := &domain.User{TenantID: 10, Email: "victim@example.com", IsActive: true}
	if err := users.Create(ctx, owner); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	repo := newMemSessionRepo()
	mailer := &alertMailer{alerts: make(chan string, 1)}
	svc := NewSessionService(repo, users, newTestTokenService(t), nil, mailer, 7*24*time.Hour)

	raw := "stolen-token"
	if _, err := svc.CreateSession(ctx, owner.ID, 10, raw, domain.SessionMetadata{}); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, _, err := svc.ValidateAndRotate(ctx, raw, domain.SessionMetadata{}); err != nil {
		t.Fatalf("first rotation error = %v", err)
	}

	if _, _, err := svc.ValidateAndRotate(ctx, raw, domain.SessionMetadata{}); err == nil {
		t.Fatal("replay should fail")
	}

	select {
	case to := <-mailer.alerts:
		if to != "victim@example.com" {
			t.Errorf("alert sent to %q, want victim@example.com", to)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no security alert sent for the reuse lockout")
	}

	// A second replay finds nothing left to revoke and must not alert again.
	if _, _, err := svc.ValidateAndRotate(ctx, raw, domain.SessionMetadata{}); err == nil {
		t.Fatal("replay should fail")
	}
	select {
	case <-mailer.alerts:
		t.Error("duplicate alert for an already-settled lockout")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestValidateAndRotate_ExpiredSession(t *testing.T) {
	svc, repo := newTestSessionService(t)
	ctx := context.Background()

	raw := "stale-token"
	session, err := svc.CreateSession(ctx, 1, 10, raw, domain.SessionMetadata{})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	other, err := svc.CreateSession(ctx, 1, 10, "fresh-token", domain.SessionMetadata{})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	svc.now = func() time.Time { return session.ExpiresAt.Add(time.Second) }

	_, _, err = svc.ValidateAndRotate(ctx, raw, domain.SessionMetadata{})
	if err == nil {
		t.Fatal("expired token should fail")
	}
	if domain.CodeOf(err) != domain.CodeInvalidToken {
		t.Errorf("error code = %s, want %s", domain.CodeOf(err), domain.CodeInvalidToken)
	}

	// Expiry is not theft: no cascade, the expired session itself stays
	// unrevoked and the other session is untouched.
	if got := repo.get(t, session.TokenHash); got.RevokedAt != nil {
		t.Error("expired session should not be revoked")
	}
	if got := repo.get(t, other.TokenHash); got.RevokedAt != nil {
		t.Error("other session should be untouched by an expiry failure")
	}
}

func TestValidateAndRotate_ConcurrentSingleWinner(t *testing.T) {
	svc, repo := newTestSessionService(t)
	ctx := context.Background()

	raw := "contended-token"
	if _, err := svc.CreateSession(ctx, 1, 10, raw, domain.SessionMetadata{}); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.ValidateAndRotate(ctx, raw, domain.SessionMetadata{})
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
		} else if domain.CodeOf(err) != domain.CodeInvalidToken {
			t.Errorf("loser error code = %s, want %s", domain.CodeOf(err), domain.CodeInvalidToken)
		}
	}
	if wins != 1 {
		t.Errorf("successful rotations = %d, want exactly 1", wins)
	}

	// The losers detected reuse, so the winner's successor is revoked too.
	sessions, err := repo.GetByUserID(ctx, 1)
	if err != nil {
		t.Fatalf("GetByUserID() error = %v", err)
	}
	for _, s := range sessions {
		if s.RevokedAt == nil {
			t.Errorf("session %d should be revoked after the contended rotation", s.ID)
		}
	}
}

func TestRevokeSession_Idempotent(t *testing.T) {
	svc, repo := newTestSessionService(t)
	ctx := context.Background()

	raw := "logout-token"
	session, err := svc.CreateSession(ctx, 1, 10, raw, domain.SessionMetadata{})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if err := svc.RevokeSession(ctx, raw, "logout"); err != nil {
		t.Fatalf("first RevokeSession() error = %v", err)
	}

	first := repo.get(t, session.TokenHash)
	if first.RevokedAt == nil {
		t.Fatal("session should be revoked")
	}

	// Second revocation of the same token and revocation of a token that
	// never existed both succeed silently.
	if err := svc.RevokeSession(ctx, raw, "logout"); err != nil {
		t.Errorf("second RevokeSession() error = %v", err)
	}
	if err := svc.RevokeSession(ctx, "no-such-token", "logout"); err != nil {
		t.Errorf("RevokeSession() on unknown token error = %v", err)
	}

	// The original revocation is immutable.
	second := repo.get(t, session.TokenHash)
	if !second.RevokedAt.Equal(*first.RevokedAt) {
		t.Error("repeat revocation must not overwrite revoked_at")
	}
}

func TestRevokeAllUserSessions(t *testing.T) {
	svc, repo := newTestSessionService(t)
	ctx := context.Background()

	for _, raw := range []string{"one", "two", "three"} {
		if _, err := svc.CreateSession(ctx, 1, 10, raw, domain.SessionMetadata{}); err != nil {
			t.Fatalf("CreateSession() error = %v", err)
		}
	}
	bystander, err := svc.CreateSession(ctx, 2, 10, "other-user", domain.SessionMetadata{})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	revoked, err := svc.RevokeAllUserSessions(ctx, 1, "signed out everywhere")
	if err != nil {
		t.Fatalf("RevokeAllUserSessions() error = %v", err)
	}
	if revoked != 3 {
		t.Errorf("revoked = %d, want 3", revoked)
	}

	if got := repo.get(t, bystander.TokenHash); got.RevokedAt != nil {
		t.Error("another user's session must not be touched")
	}

	// Idempotent: a second batch finds nothing left to revoke.
	revoked, err = svc.RevokeAllUserSessions(ctx, 1, "signed out everywhere")
	if err != nil {
		t.Fatalf("second RevokeAllUserSessions() error = %v", err)
	}
	if revoked != 0 {
		t.Errorf("second pass revoked = %d, want 0", revoked)
	}
}
