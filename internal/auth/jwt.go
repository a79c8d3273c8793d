package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token purposes. A session token authenticates the user; a csrf token
// is the short-lived anti-forgery token sent in X-CSRF-Token on every
// mutating call. Keeping them in one claim set with a purpose field
// means one signing secret and one parser, but a csrf token can never
// be replayed as a session (and vice versa).
const (
	PurposeSession = "session"
	PurposeCSRF    = "csrf"
)

// Claims is the payload inside every token this service issues.
type Claims struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	IsAdmin  bool      `json:"is_admin"`
	Purpose  string    `json:"purpose"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed HS256 token for a user with the given
// purpose and lifetime.
func GenerateToken(userID uuid.UUID, username string, isAdmin bool, purpose, secret string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		UserID:   userID,
		Username: username,
		IsAdmin:  isAdmin,
		Purpose:  purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "chatspace",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// ParseToken validates a token string: signature, expiry, and that the
// signing method is HMAC (rejects algorithm-switching tokens). The
// caller checks Purpose.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

// ParseTokenForPurpose parses and additionally requires the expected
// purpose claim.
func ParseTokenForPurpose(tokenString, secret, purpose string) (*Claims, error) {
	claims, err := ParseToken(tokenString, secret)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("token purpose %q, want %q", claims.Purpose, purpose)
	}
	return claims, nil
}
