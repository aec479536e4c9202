package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/presetstudio/entitlements/internal/core/domain"
	"github.com/presetstudio/entitlements/internal/core/ports"
)

const defaultSessionTTL = 24 * time.Hour

// JWTSessionService issues HS256-signed session tokens and keeps a
// server-side record per session so logout can revoke a token before its
// expiry. Validation is a pure comparison against now plus a store lookup;
// it never renews, so session lifetime is a hard upper bound.
type JWTSessionService struct {
	store     ports.SessionStore
	jwtSecret string
	ttl       time.Duration
	now       func() time.Time
}

func NewJWTSessionService(store ports.SessionStore, jwtSecret string, ttl time.Duration) *JWTSessionService {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &JWTSessionService{store: store, jwtSecret: jwtSecret, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// Issue mints a token for the principal snapshot and persists the session
// record with a TTL equal to the remaining lifetime.
func (s *JWTSessionService) Issue(ctx context.Context, p *domain.Principal) (string, *domain.Session, error) {
	now := s.now()
	session := &domain.Session{
		ID:            uuid.NewString(),
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.ttl),
		PrincipalID:   p.ID,
		Email:         p.Email,
		EmailVerified: p.EmailVerified,
	}

	claims := jwt.MapClaims{
		"jti":      session.ID,
		"sub":      p.ID,
		"email":    p.Email,
		"verified": p.EmailVerified,
		"iat":      now.Unix(),
		"exp":      session.ExpiresAt.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}

	if err := s.store.Put(ctx, session, s.ttl); err != nil {
		return "", nil, fmt.Errorf("store session: %w", err)
	}

	session.Token = token
	return token, session, nil
}

// Validate parses and verifies the token, then checks the server-side record
// still exists. Expired, revoked, and malformed tokens all collapse to
// ErrSessionExpired: the remediation is the same, re-authenticate.
func (s *JWTSessionService) Validate(ctx context.Context, token string) (*domain.Session, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, domain.ErrSessionExpired
	}

	jti, _ := claims["jti"].(string)
	if jti == "" {
		return nil, domain.ErrSessionExpired
	}

	session, err := s.store.Get(ctx, jti)
	if err != nil {
		if errors.Is(err, domain.ErrSessionExpired) {
			return nil, domain.ErrSessionExpired
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	if session.Expired(s.now()) {
		return nil, domain.ErrSessionExpired
	}
	return session, nil
}

// Revoke deletes the session record. Unknown and already-revoked tokens
// succeed, making logout idempotent.
func (s *JWTSessionService) Revoke(ctx context.Context, token string) error {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !parsed.Valid {
		return nil
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return nil
	}
	return s.store.Delete(ctx, jti)
}
