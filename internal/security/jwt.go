package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/miky-rola/signals-backend/internal/config"
)

// Token type values carried in the token_type claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// ErrInvalidToken indicates a token that failed parsing or validation.
var ErrInvalidToken = errors.New("security: invalid token")

// Claims are the JWT claims issued for user sessions.
type Claims struct {
	UserID    uint64 `json:"user_id"`
	Email     string `json:"email"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is a refresh token and the access token derived from it.
type TokenPair struct {
	Refresh string `json:"refresh"`
	Access  string `json:"access"`
}

// IssueTokenPair signs a refresh token for the user and derives an access
// token from its claims. The refresh token carries a unique JTI so it can be
// denylisted on logout.
func IssueTokenPair(cfg config.JWTConfig, userID uint64, email string) (TokenPair, error) {
	now := time.Now().UTC()
	jti := uuid.NewString()

	refresh, errRefresh := signToken(cfg.Secret, Claims{
		UserID:    userID,
		Email:     email,
		TokenType: TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.RefreshExpiry)),
		},
	})
	if errRefresh != nil {
		return TokenPair{}, errRefresh
	}

	access, errAccess := AccessFromRefreshClaims(cfg, Claims{UserID: userID, Email: email, RegisteredClaims: jwt.RegisteredClaims{ID: jti}})
	if errAccess != nil {
		return TokenPair{}, errAccess
	}

	return TokenPair{Refresh: refresh, Access: access}, nil
}

// AccessFromRefreshClaims signs a fresh access token carrying the identity
// claims of a refresh token.
func AccessFromRefreshClaims(cfg config.JWTConfig, refreshClaims Claims) (string, error) {
	now := time.Now().UTC()
	return signToken(cfg.Secret, Claims{
		UserID:    refreshClaims.UserID,
		Email:     refreshClaims.Email,
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        refreshClaims.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.AccessExpiry)),
		},
	})
}

// ParseToken validates a signed token and requires the given token type.
func ParseToken(secret, tokenString, tokenType string) (*Claims, error) {
	claims := &Claims{}
	token, errParse := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("security: unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if errParse != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != tokenType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// signToken signs claims with HS256.
func signToken(secret string, claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("security: sign token: %w", err)
	}
	return signed, nil
}
