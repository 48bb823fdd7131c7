package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAgent    Role = "agent"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleStaff, RoleAgent, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

// Identity is the authenticated caller as seen by the core.
type Identity struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// Privileged reports whether the caller may act on any user's orders.
func (i Identity) Privileged() bool {
	return i.Role == RoleStaff || i.Role == RoleAdmin || i.Role == RoleSystem
}

var ErrInvalidToken = errors.New("invalid token")

type claims struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}

// Provider signs and verifies HS256 bearer tokens.
type Provider struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewProvider(secret string, ttl time.Duration) *Provider {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Provider{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (p *Provider) Issue(id Identity) (string, error) {
	now := p.now()
	c := claims{
		UserID: id.UserID,
		Role:   id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return t.SignedString(p.secret)
}

func (p *Provider) Verify(token string) (Identity, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(p.now))
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.UserID == "" || !c.Role.Valid() {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: c.UserID, Role: c.Role}, nil
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// Middleware rejects requests without a valid bearer token.
func (p *Provider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || token == "" {
			unauthorized(w)
			return
		}
		id, err := p.Verify(token)
		if err != nil {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireRole must run after Middleware.
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := FromContext(r.Context())
			if !ok {
				unauthorized(w)
				return
			}
			for _, role := range roles {
				if id.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"forbidden"}`))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
