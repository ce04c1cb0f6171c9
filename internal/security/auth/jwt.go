package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by every issued token. Built fresh per issuance from the
// user's current attributes; never persisted.
type Claims struct {
	UserID   int64    `json:"user_id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// SignedToken is a signed, time-bounded bearer credential. Validity is
// determined purely by signature and expiry; there is no server-side
// session table and no revocation list.
type SignedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiration"`
	UserID    int64     `json:"-"`
}

type TokenManager struct {
	secret string
	issuer string
}

func NewTokenManager(secret, issuer string) *TokenManager {
	if secret == "" {
		secret = "change-me-in-production"
	}
	if issuer == "" {
		issuer = "aquamonitor"
	}
	return &TokenManager{secret: secret, issuer: issuer}
}

// Issue signs a token for the given identity valid for the supplied
// duration. Changing the signing secret implicitly invalidates everything
// issued before.
func (tm *TokenManager) Issue(userID int64, username string, roles []string, validity time.Duration) (*SignedToken, error) {
	if userID == 0 || username == "" {
		return nil, fmt.Errorf("user id and username required")
	}
	now := time.Now()
	expiresAt := now.Add(validity)
	claims := Claims{
		UserID:   userID,
		Username: username,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    tm.issuer,
			Subject:   username,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(tm.secret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &SignedToken{Token: signed, ExpiresAt: expiresAt, UserID: userID}, nil
}

func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(tm.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token failed: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

func ExtractToken(authHeader string) (string, error) {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", fmt.Errorf("invalid authorization header")
	}
	return parts[1], nil
}
