package jwt

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"credential-service/internal/domain"
)

var (
	ErrInvalidSigningMethod = errors.New("unexpected signing method")
	ErrInvalidToken         = errors.New("invalid token")
)

// minKeyLength is the shortest signing key accepted at startup. HS256 keys
// shorter than the hash output weaken the MAC.
const minKeyLength = 32

// TokenService issues and verifies HMAC-signed access tokens and generates
// the opaque refresh tokens persisted (hashed) alongside sessions. It does
// no I/O; issuance is deterministic apart from the timestamp, the jti and
// the signature.
type TokenService struct {
	signingKey   []byte
	accessExpiry time.Duration
	issuer       string
	audience     string
	now          func() time.Time
}

// NewTokenService validates the signing key up front: a missing or short key
// is a fatal startup condition, never a per-call error.
func NewTokenService(signingKey string, accessExpiry time.Duration, issuer, audience string) (*TokenService, error) {
	if len(signingKey) < minKeyLength {
		return nil, fmt.Errorf("jwt signing key must be at least %d bytes", minKeyLength)
	}

	return &TokenService{
		signingKey:   []byte(signingKey),
		accessExpiry: accessExpiry,
		issuer:       issuer,
		audience:     audience,
		now:          time.Now,
	}, nil
}

// GenerateAccessToken encodes the user's identity, tenant and role tags into
// a signed, time-bounded token. Returns the token string and its lifetime in
// seconds.
func (s *TokenService) GenerateAccessToken(userID, tenantID int64, username string, roles []string) (string, int, error) {
	now := s.now()
	expires := now.Add(s.accessExpiry)

	claims := domain.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			Subject:   fmt.Sprintf("%d", userID),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.New().String(),
		},
		UserID:    userID,
		Username:  username,
		Roles:     roles,
		TenantID:  tenantID,
		TokenType: "access",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", 0, err
	}

	return signed, int(expires.Sub(now).Seconds()), nil
}

// ValidateToken parses and verifies an access token and returns its claims.
func (s *TokenService) ValidateToken(tokenString string) (*domain.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &domain.Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSigningMethod
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*domain.Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GenerateRefreshToken returns a fresh opaque refresh token: 32 bytes of
// CSPRNG output, base64url encoded. The raw value goes to the client; only
// its hash is ever persisted.
func (s *TokenService) GenerateRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken produces the storage form of a refresh token: SHA-256, base64.
func (s *TokenService) HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.StdEncoding.EncodeToString(sum[:])
}
