// Package auth issues and verifies staff tokens and decides which
// dashboard a signed-in staff member lands on.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Role is a staff role. Shoppers are anonymous and carry no role.
type Role string

const (
	RoleCashier Role = "cashier"
	RoleAdmin   Role = "admin"
)

// Home views
const (
	ViewStorefront = "/tienda"
	ViewCashier    = "/cajero"
	ViewAdmin      = "/admin"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownRole  = errors.New("unknown role")
)

// Valid reports whether r is a known staff role.
func (r Role) Valid() bool {
	return r == RoleCashier || r == RoleAdmin
}

// HomeView is where a user with role r lands after signing in.
func HomeView(r Role) string {
	switch r {
	case RoleAdmin:
		return ViewAdmin
	case RoleCashier:
		return ViewCashier
	default:
		return ViewStorefront
	}
}

// Claims are the token contents
type Claims struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the verified staff member behind a request
type Identity struct {
	Subject string `json:"sub"`
	Name    string `json:"name"`
	Role    Role   `json:"role"`
}

// Issuer signs and verifies HS256 staff tokens
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an issuer for secret. Tokens live for ttl.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for a staff member
func (i *Issuer) Issue(subject, name string, role Role) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", fmt.Errorf("%w: subject is required", ErrInvalidToken)
	}
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}

	now := i.now()
	claims := Claims{
		Name: name,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Parse verifies a token and returns who it belongs to
func (i *Issuer) Parse(token string) (*Identity, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, claims.Role)
	}

	return &Identity{Subject: claims.Subject, Name: claims.Name, Role: claims.Role}, nil
}
