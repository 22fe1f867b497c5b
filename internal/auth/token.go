package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultTokenTTL = time.Hour
	defaultIssuer   = "capwa"
)

// Token is a signed bearer credential and its expiry instant.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Claims is the JWT payload. Subject carries the user id.
type Claims struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

// UserFinder resolves a token subject to a user.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (User, bool, error)
}

// SessionManager mints and verifies HS256 tokens. Expiry is checked lazily
// against the injected clock on every verification.
type SessionManager struct {
	users  UserFinder
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

type SessionOption func(*SessionManager)

func WithClock(fn func() time.Time) SessionOption {
	return func(m *SessionManager) {
		if fn != nil {
			m.now = fn
		}
	}
}

func WithTTL(ttl time.Duration) SessionOption {
	return func(m *SessionManager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func WithIssuer(issuer string) SessionOption {
	return func(m *SessionManager) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			m.issuer = issuer
		}
	}
}

func NewSessionManager(users UserFinder, secret string, opts ...SessionOption) (*SessionManager, error) {
	if users == nil {
		return nil, errors.New("auth: user finder is required")
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: token secret is not configured")
	}
	m := &SessionManager{
		users:  users,
		secret: []byte(secret),
		issuer: defaultIssuer,
		ttl:    DefaultTokenTTL,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Issue signs a token for user valid until now+TTL.
func (m *SessionManager) Issue(user User) (Token, error) {
	if strings.TrimSpace(user.ID) == "" {
		return Token{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	now := m.now()
	claims := Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Value: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Parse verifies the signature and claims of token.
func (m *SessionManager) Parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := m.validateClaims(claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// Verify reports whether token is signed by us and not yet expired.
func (m *SessionManager) Verify(token string) bool {
	_, err := m.Parse(token)
	return err == nil
}

func (m *SessionManager) validateClaims(claims *Claims) error {
	if claims.Issuer != m.issuer {
		return fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ExpiresAt == nil {
		return errors.New("expiry missing")
	}
	if !claims.ExpiresAt.Time.After(m.now()) {
		return errors.New("token expired")
	}
	return nil
}

// CurrentUser resolves the token held by sess. A token that fails
// verification, or whose user no longer exists, is dropped from the slot.
func (m *SessionManager) CurrentUser(ctx context.Context, sess *Session) (User, bool, error) {
	token := sess.Token()
	if token == "" {
		return User{}, false, nil
	}
	claims, err := m.Parse(token)
	if err != nil {
		sess.Clear()
		return User{}, false, nil
	}
	user, ok, err := m.users.FindByID(ctx, claims.Subject)
	if err != nil {
		return User{}, false, err
	}
	if !ok {
		sess.Clear()
		return User{}, false, nil
	}
	return user, true, nil
}

// Logout empties the slot. Other holders of the same token are unaffected.
func (m *SessionManager) Logout(sess *Session) { sess.Clear() }
