package sharrock

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// SecurityCheck authorizes a request before a service executes. Check
// returns an error wrapping ErrAccessDenied to reject the request.
type SecurityCheck interface {
	Permissions() []string
	Check(r *Request) error
}

// Public is the base security check. It allows every request, making the
// service a public API; the permissions are informational only.
func Public(permissions ...string) SecurityCheck {
	return publicCheck{permissions: permissions}
}

type publicCheck struct {
	permissions []string
}

// Permissions returns the declared permissions.
func (c publicCheck) Permissions() []string { return c.permissions }

// Check always passes.
func (publicCheck) Check(*Request) error { return nil }

// SecurityFunc adapts a plain function into a SecurityCheck.
type SecurityFunc func(r *Request) error

// Permissions returns nil; a plain function declares none.
func (SecurityFunc) Permissions() []string { return nil }

// Check calls f.
func (f SecurityFunc) Check(r *Request) error { return f(r) }

// BasicAuthCheck requires HTTP Basic credentials matching one of the
// configured users. Passwords are stored as bcrypt hashes.
type BasicAuthCheck struct {
	Users map[string][]byte
	Perms []string
}

// NewBasicAuthCheck builds a BasicAuthCheck from username to bcrypt hash pairs.
func NewBasicAuthCheck(users map[string]string, permissions ...string) *BasicAuthCheck {
	hashed := make(map[string][]byte, len(users))
	for name, hash := range users {
		hashed[name] = []byte(hash)
	}
	return &BasicAuthCheck{Users: hashed, Perms: permissions}
}

// Permissions returns the permissions declared for the check.
func (c *BasicAuthCheck) Permissions() []string { return c.Perms }

// Check fails with AccessDenied unless the Basic credentials name a known
// user whose password matches the stored hash.
func (c *BasicAuthCheck) Check(r *Request) error {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return AccessDenied("basic credentials required")
	}
	hash, known := c.Users[user]
	if !known {
		return AccessDenied("unknown user " + user)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(pass)); err != nil {
		return AccessDenied("invalid credentials for " + user)
	}
	return nil
}

// PermissionClaims are the JWT claims understood by JWTCheck.
type PermissionClaims struct {
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// JWTCheck requires an HMAC-signed bearer token whose permissions claim
// contains every declared permission.
type JWTCheck struct {
	key   []byte
	perms []string
}

// NewJWTCheck returns a JWTCheck verifying tokens with the shared key.
func NewJWTCheck(key []byte, permissions ...string) *JWTCheck {
	return &JWTCheck{key: key, perms: permissions}
}

// Permissions returns the permissions every token must carry.
func (c *JWTCheck) Permissions() []string { return c.perms }

// Check fails with AccessDenied unless a valid bearer token carries every
// declared permission.
func (c *JWTCheck) Check(r *Request) error {
	auth := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || raw == "" {
		return AccessDenied("bearer token required")
	}

	claims := &PermissionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return c.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return AccessDenied("token expired")
		}
		return AccessDenied(fmt.Sprintf("invalid token: %v", err))
	}

	for _, p := range c.perms {
		if !slices.Contains(claims.Permissions, p) {
			return AccessDenied("missing permission " + p)
		}
	}
	return nil
}

// SignToken issues an HS256 token carrying the given permissions. It is the
// counterpart of JWTCheck for tools and tests.
func SignToken(key []byte, subject string, permissions ...string) (string, error) {
	return signToken(key, PermissionClaims{
		Permissions:      permissions,
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
	})
}

// SignTokenExpiring is SignToken with an expiry time.
func SignTokenExpiring(key []byte, subject string, expires time.Time, permissions ...string) (string, error) {
	return signToken(key, PermissionClaims{
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
}

func signToken(key []byte, claims PermissionClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// basicAuthFromHeader is used by Request.BasicAuth.
func basicAuthFromHeader(h http.Header) (user, pass string, ok bool) {
	r := &http.Request{Header: h}
	return r.BasicAuth()
}
