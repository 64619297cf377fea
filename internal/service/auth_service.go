package service

import (
	"context"
	"errors"
	"log"
	"time"

	"credential-service/internal/config"
	"credential-service/internal/domain"
	"credential-service/internal/repository"
	"credential-service/pkg/blacklist"
	"credential-service/pkg/email"
	"credential-service/pkg/hash"
	"credential-service/pkg/jwt"
)

// AuthService orchestrates the credential use cases: Login, Register,
// Refresh and Logout. All session lifecycle decisions live in
// SessionService; this layer verifies credentials, loads the principal and
// mints access tokens.
type AuthService struct {
	users     repository.UserRepository
	roles     repository.RoleRepository
	tenants   repository.TenantRepository
	sessions  *SessionService
	tokens    *jwt.TokenService
	blacklist *blacklist.TokenBlacklist
	mailer    email.Mailer
	cfg       *config.Config
	now       func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	roles repository.RoleRepository,
	tenants repository.TenantRepository,
	sessions *SessionService,
	tokens *jwt.TokenService,
	tokenBlacklist *blacklist.TokenBlacklist,
	mailer email.Mailer,
	cfg *config.Config,
) *AuthService {
	return &AuthService{
		users:     users,
		roles:     roles,
		tenants:   tenants,
		sessions:  sessions,
		tokens:    tokens,
		blacklist: tokenBlacklist,
		mailer:    mailer,
		cfg:       cfg,
		now:       time.Now,
	}
}

type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=8"`
}

type RegisterRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=8"`

	// TenantSlug selects the tenant to register under; empty means the
	// configured default tenant.
	TenantSlug string `json:"tenant_slug" form:"tenant_slug" validate:"omitempty,max=100"`
}

type UserInfo struct {
	ID       int64    `json:"id"`
	Email    string   `json:"email"`
	TenantID int64    `json:"tenant_id"`
	Roles    []string `json:"roles"`
}

type AuthResponse struct {
	domain.TokenPair
	User UserInfo `json:"user"`
}

// Login verifies an email/password pair and opens a new session. The error
// for an unknown email and the error for a wrong password are identical so
// the endpoint cannot be used to probe which accounts exist.
func (s *AuthService) Login(
	ctx context.Context,
	req LoginRequest,
	meta domain.SessionMetadata,
) (*AuthResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domain.E(domain.CodeInvalidCredential, "invalid email or password")
		}
		log.Printf("[AUTH] user lookup failed: %v", err)
		return nil, domain.E(domain.CodeUnknown, "failed to look up user")
	}

	if !user.IsActive {
		return nil, domain.E(domain.CodeForbidden, "user inactive")
	}
	if user.IsLocked {
		return nil, domain.E(domain.CodeForbidden, "user locked")
	}

	ok, err := hash.Verify(req.Password, user.PasswordHash)
	if err != nil || !ok {
		return nil, domain.E(domain.CodeInvalidCredential, "invalid email or password")
	}

	if err := s.users.RecordLogin(ctx, user.ID); err != nil {
		// Best effort; the login itself stands.
		log.Printf("[AUTH] failed to record login for user %d: %v", user.ID, err)
	}

	return s.issueTokens(ctx, user, meta)
}

// Register creates a user with the default role and tenant and signs them in
// immediately, exactly as Login would.
func (s *AuthService) Register(
	ctx context.Context,
	req RegisterRequest,
	meta domain.SessionMetadata,
) (*AuthResponse, error) {
	exists, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		log.Printf("[AUTH] email existence check failed: %v", err)
		return nil, domain.E(domain.CodeUnknown, "failed to check email")
	}
	if exists {
		return nil, domain.E(domain.CodeConflict, "email already registered")
	}

	tenant, err := s.resolveTenant(ctx, req.TenantSlug)
	if err != nil {
		return nil, err
	}
	if tenant.Status != domain.TenantStatusActive {
		return nil, domain.E(domain.CodeForbidden, "tenant suspended")
	}

	passwordHash, err := hash.Password(req.Password)
	if err != nil {
		log.Printf("[AUTH] password hashing failed: %v", err)
		return nil, domain.E(domain.CodeUnknown, "failed to hash password")
	}

	now := s.now()
	user := &domain.User{
		TenantID:     tenant.ID,
		Email:        req.Email,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		log.Printf("[AUTH] user creation failed: %v", err)
		return nil, domain.E(domain.CodeUnknown, "failed to create user")
	}

	role, err := s.roles.GetByName(ctx, s.cfg.Auth.DefaultRole)
	if err != nil {
		log.Printf("[AUTH] default role lookup failed: %v", err)
		return nil, domain.E(domain.CodeUnknown, "default role not found")
	}
	if err := s.users.AssignRole(ctx, user.ID, role.ID); err != nil {
		log.Printf("[AUTH] role assignment failed for user %d: %v", user.ID, err)
		return nil, domain.E(domain.CodeUnknown, "failed to assign role")
	}
	user.Roles = []string{role.Name}

	if s.mailer != nil {
		go func(to, name string) {
			if err := s.mailer.SendWelcomeEmail(context.Background(), to, name); err != nil {
				log.Printf("[AUTH] welcome email failed for %s: %v", to, err)
			}
		}(user.Email, user.Username())
	}

	return s.issueTokens(ctx, user, meta)
}

// resolveTenant picks the tenant a registration lands in: the one named by
// slug when the caller sent one, otherwise the configured default.
func (s *AuthService) resolveTenant(ctx context.Context, slug string) (*domain.Tenant, error) {
	if slug != "" {
		tenant, err := s.tenants.GetBySlug(ctx, slug)
		if err != nil {
			if errors.Is(err, repository.ErrTenantNotFound) {
				return nil, domain.E(domain.CodeNotFound, "tenant not found")
			}
			log.Printf("[AUTH] tenant lookup failed for slug %q: %v", slug, err)
			return nil, domain.E(domain.CodeUnknown, "failed to look up tenant")
		}
		return tenant, nil
	}

	tenant, err := s.tenants.GetByID(ctx, s.cfg.Auth.DefaultTenantID)
	if err != nil {
		log.Printf("[AUTH] default tenant lookup failed: %v", err)
		return nil, domain.E(domain.CodeUnknown, "default tenant not found")
	}
	return tenant, nil
}

// ListRoles returns the roles a user can hold, for the account settings UI.
func (s *AuthService) ListRoles(ctx context.Context) ([]*domain.Role, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		log.Printf("[AUTH] role listing failed: %v", err)
		return nil, domain.E(domain.CodeUnknown, "failed to list roles")
	}
	return roles, nil
}

// Refresh rotates a refresh token and issues a fresh access token bound to
// the successor session. Roles are re-read at refresh time so a role change
// takes effect on the next rotation, not only on the next login.
func (s *AuthService) Refresh(
	ctx context.Context,
	rawToken string,
	meta domain.SessionMetadata,
) (*AuthResponse, error) {
	session, newRaw, err := s.sessions.ValidateAndRotate(ctx, rawToken, meta)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domain.E(domain.CodeNotFound, "user not found")
		}
		log.Printf("[AUTH] user lookup failed on refresh: %v", err)
		return nil, domain.E(domain.CodeUnknown, "failed to look up user")
	}

	if !user.IsActive {
		return nil, domain.E(domain.CodeForbidden, "user inactive")
	}
	if user.IsLocked {
		return nil, domain.E(domain.CodeForbidden, "user locked")
	}

	accessToken, expiresIn, err := s.tokens.GenerateAccessToken(
		user.ID, user.TenantID, user.Username(), user.Roles)
	if err != nil {
		log.Printf("[AUTH] access token issuance failed: %v", err)
		return nil, domain.E(domain.CodeUnknown, "failed to issue access token")
	}

	return &AuthResponse{
		TokenPair: domain.TokenPair{
			AccessToken:  accessToken,
			RefreshToken: newRaw,
			ExpiresIn:    expiresIn,
			TokenType:    "Bearer",
		},
		User: UserInfo{
			ID:       user.ID,
			Email:    user.Email,
			TenantID: user.TenantID,
			Roles:    user.Roles,
		},
	}, nil
}

// Logout revokes the presented refresh token's session and blacklists the
// access token, if one was supplied. It never fails from the caller's
// perspective; problems are logged and swallowed.
func (s *AuthService) Logout(ctx context.Context, rawToken, accessToken string) {
	if rawToken != "" {
		if err := s.sessions.RevokeSession(ctx, rawToken, "logout"); err != nil {
			log.Printf("[AUTH] logout revocation failed: %v", err)
		}
	}

	if accessToken == "" || s.blacklist == nil {
		return
	}
	claims, err := s.tokens.ValidateToken(accessToken)
	if err != nil || claims.ExpiresAt == nil {
		return
	}
	if err := s.blacklist.AddAccessToken(ctx, accessToken, claims.ExpiresAt.Time); err != nil {
		log.Printf("[AUTH] access token blacklisting failed: %v", err)
	}
}

// LogoutEverywhere revokes all of a user's sessions and invalidates every
// outstanding access token.
func (s *AuthService) LogoutEverywhere(ctx context.Context, userID int64) error {
	revoked, err := s.sessions.RevokeAllUserSessions(ctx, userID, "signed out everywhere")
	if err != nil {
		return err
	}
	log.Printf("[AUTH] user %d signed out everywhere, %d sessions revoked", userID, revoked)

	if s.blacklist != nil {
		if err := s.blacklist.BlacklistUser(ctx, userID, 24*time.Hour); err != nil {
			log.Printf("[AUTH] user blacklisting failed for %d: %v", userID, err)
		}
	}

	if s.mailer != nil {
		if user, err := s.users.GetByID(ctx, userID); err == nil {
			go func(to, name string) {
				if err := s.mailer.SendSecurityAlertEmail(context.Background(), to, name, "all sessions signed out"); err != nil {
					log.Printf("[AUTH] security alert email failed for %s: %v", to, err)
				}
			}(user.Email, user.Username())
		}
	}

	return nil
}

// issueTokens mints an access/refresh token pair and opens the session that
// anchors the refresh token's family.
func (s *AuthService) issueTokens(
	ctx context.Context,
	user *domain.User,
	meta domain.SessionMetadata,
) (*AuthResponse, error) {
	refreshToken, err := s.tokens.GenerateRefreshToken()
	if err != nil {
		log.Printf("[AUTH] refresh token generation failed: %v", err)
		return nil, domain.E(domain.CodeUnknown, "failed to generate refresh token")
	}

	if _, err := s.sessions.CreateSession(ctx, user.ID, user.TenantID, refreshToken, meta); err != nil {
		return nil, err
	}

	accessToken, expiresIn, err := s.tokens.GenerateAccessToken(
		user.ID, user.TenantID, user.Username(), user.Roles)
	if err != nil {
		log.Printf("[AUTH] access token issuance failed: %v", err)
		return nil, domain.E(domain.CodeUnknown, "failed to issue access token")
	}

	return &AuthResponse{
		TokenPair: domain.TokenPair{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresIn:    expiresIn,
			TokenType:    "Bearer",
		},
		User: UserInfo{
			ID:       user.ID,
			Email:    user.Email,
			TenantID: user.TenantID,
			Roles:    user.Roles,
		},
	}, nil
}
