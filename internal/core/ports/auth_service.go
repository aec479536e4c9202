package ports

import (
	"context"

	"github.com/presetstudio/entitlements/internal/core/domain"
)

// AuthResult is returned by session-issuing operations.
type AuthResult struct {
	Token     string
	Session   *domain.Session
	Principal *domain.Principal
}

// AuthService covers account creation and the session lifecycle entry points.
type AuthService interface {
	// Signup creates an unverified free-tier principal and issues a session.
	// The verification token is delivered out of band; it rides on the
	// embedded Principal for the mail collaborator.
	Signup(ctx context.Context, email, password string) (*AuthResult, error)
	// VerifyEmail consumes a verification token, marks the principal
	// verified, and issues a fresh (verified) session.
	VerifyEmail(ctx context.Context, token string) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	// Logout revokes the session; revoking an unknown or already-revoked
	// token succeeds.
	Logout(ctx context.Context, token string) error
}

// SessionService issues, validates, and revokes the signed session
// credential. Validation never renews: every re-check after expiry requires
// a fresh issue.
type SessionService interface {
	Issue(ctx context.Context, p *domain.Principal) (string, *domain.Session, error)
	// Validate returns domain.ErrSessionExpired for expired, revoked, or
	// malformed tokens.
	Validate(ctx context.Context, token string) (*domain.Session, error)
	Revoke(ctx context.Context, token string) error
}
