// Package auth verifies the bearer identity tokens presented by callers and
// can issue development tokens for operators.
package auth

import (
	"errors"
	"fmt"
	"time"

	"prontoapp/backend/internal/apperr"
	"prontoapp/backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Verified is what a valid token proves about its bearer.
type Verified struct {
	Email     string
	ExpiresAt time.Time
}

// Claims is the JWT payload.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTManager signs and validates HS256 identity tokens.
type JWTManager struct {
	secretKey []byte
	issuer    string
	duration  time.Duration
}

func NewJWTManager(secretKey, issuer string, duration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		duration:  duration,
	}
}

// GenerateToken issues a signed token for email.
func (m *JWTManager) GenerateToken(email string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.duration)

	claims := &Claims{
		Email: models.NormalizeEmail(email),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   models.NormalizeEmail(email),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a token. Every failure is an apperr.ErrAuth.
func (m *JWTManager) Verify(tokenString string) (Verified, error) {
	if tokenString == "" {
		return Verified{}, apperr.New(apperr.ErrAuth, "missing identity token")
	}

	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Verified{}, apperr.Wrap(apperr.ErrAuth, err, "identity token expired")
		}
		return Verified{}, apperr.Wrap(apperr.ErrAuth, err, "invalid identity token")
	}
	if !token.Valid {
		return Verified{}, apperr.New(apperr.ErrAuth, "invalid identity token")
	}

	email := models.NormalizeEmail(claims.Email)
	if email == "" {
		return Verified{}, apperr.New(apperr.ErrAuth, "identity token carries no email")
	}
	return Verified{Email: email, ExpiresAt: claims.ExpiresAt.Time}, nil
}
