package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/presetstudio/entitlements/internal/core/domain"
	"github.com/presetstudio/entitlements/internal/core/ports"
)

// AuthService implements signup, email verification, login, and logout.
// New accounts start on the free tier, unverified, with zero usage —
// anonymous consumption is never migrated onto the account.
type AuthService struct {
	principals ports.PrincipalRepository
	sessions   ports.SessionService
}

func NewAuthService(principals ports.PrincipalRepository, sessions ports.SessionService) *AuthService {
	return &AuthService{principals: principals, sessions: sessions}
}

func (s *AuthService) Signup(ctx context.Context, email, password string) (*ports.AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	principal := &domain.Principal{
		Email:             email,
		EmailVerified:     false,
		PasswordHash:      string(hash),
		Tier:              domain.TierFree,
		MonthlyUsage:      0,
		VerificationToken: uuid.NewString(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	created, err := s.principals.Create(ctx, principal)
	if err != nil {
		return nil, err
	}

	token, session, err := s.sessions.Issue(ctx, created)
	if err != nil {
		return nil, err
	}
	return &ports.AuthResult{Token: token, Session: session, Principal: created}, nil
}

// VerifyEmail consumes the token handed out at signup. The stored token is
// cleared on success and a fresh session carrying verified=true is issued;
// the session issued at signup stays unverified until it expires, which is
// fine — the policy re-checks the flag it finds on the session snapshot.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*ports.AuthResult, error) {
	if token == "" {
		return nil, domain.ErrInvalidVerificationToken
	}

	principal, err := s.principals.FindByVerificationToken(ctx, token)
	if err != nil {
		if err == domain.ErrPrincipalNotFound {
			return nil, domain.ErrInvalidVerificationToken
		}
		return nil, err
	}

	principal.EmailVerified = true
	principal.VerificationToken = ""
	principal.UpdatedAt = time.Now().UTC()
	if err := s.principals.Update(ctx, principal); err != nil {
		return nil, err
	}

	sessionToken, session, err := s.sessions.Issue(ctx, principal)
	if err != nil {
		return nil, err
	}
	return &ports.AuthResult{Token: sessionToken, Session: session, Principal: principal}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*ports.AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	principal, err := s.principals.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(principal.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}

	token, session, err := s.sessions.Issue(ctx, principal)
	if err != nil {
		return nil, err
	}
	return &ports.AuthResult{Token: token, Session: session, Principal: principal}, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}
