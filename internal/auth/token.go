package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rongwang/library-server/internal/models"
)

// DefaultSessionTTL matches the idle timeout of a browser session.
const DefaultSessionTTL = 2 * time.Hour

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

type sessionClaims struct {
	Role models.Role `json:"role"`
	Name string      `json:"name"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies session tokens carrying a Principal.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an HS256 issuer. A non-positive ttl falls back to
// DefaultSessionTTL.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns the lifetime of issued tokens.
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue creates a signed token for the user.
func (t *TokenIssuer) Issue(user *models.User) (string, error) {
	now := t.now()
	claims := sessionClaims{
		Role: user.Role,
		Name: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}
	return signed, nil
}

// Parse validates a token string and returns the principal it carries.
func (t *TokenIssuer) Parse(tokenString string) (Principal, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return Anonymous, ErrInvalidToken
	}

	if claims.Subject == "" {
		return Anonymous, ErrInvalidToken
	}
	if claims.Role != models.RoleUser && claims.Role != models.RoleAdmin {
		return Anonymous, ErrInvalidToken
	}

	return Principal{UserID: claims.Subject, Role: claims.Role, Name: claims.Name}, nil
}

// ParseAuthorizationHeader extracts and parses a "Bearer <token>" header.
func (t *TokenIssuer) ParseAuthorizationHeader(header string) (Principal, error) {
	if header == "" {
		return Anonymous, ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return Anonymous, ErrInvalidToken
	}
	return t.Parse(strings.TrimSpace(parts[1]))
}
