package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

type Claims struct {
	jwt.RegisteredClaims
	UserID    int64    `json:"uid"`
	Username  string   `json:"username"`
	Roles     []string `json:"roles,omitempty"`
	TenantID  int64    `json:"tenant_id"`
	TokenType string   `json:"type"`
}
