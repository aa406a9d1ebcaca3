package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	RoleAgent = "agent"
	RoleUser  = "user"
)

var (
	ErrInvalidToken = errors.New("invalid authentication credentials")
	ErrTokenExpired = errors.New("token expired")
)

// ValidRole reports whether role is one of the two relay/API roles.
func ValidRole(role string) bool {
	return role == RoleAgent || role == RoleUser
}

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 bearer tokens. Tokens are not persisted and
// cannot be revoked before they expire.
type Issuer struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{Secret: []byte(secret), TTL: ttl, Now: time.Now}
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

func (i *Issuer) Issue(subject, role string) (string, time.Time, error) {
	if strings.TrimSpace(subject) == "" {
		return "", time.Time{}, fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	exp := i.now().Add(i.TTL).UTC()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(i.now()),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (i *Issuer) Verify(token string) (Claims, error) {
	var claims Claims
	parser := jwt.Parser{
		ValidMethods:         []string{jwt.SigningMethodHS256.Alg()},
		SkipClaimsValidation: true,
	}
	_, err := parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return i.Secret, nil
	})
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	if claims.ExpiresAt == nil || !i.now().Before(claims.ExpiresAt.Time) {
		return Claims{}, ErrTokenExpired
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
