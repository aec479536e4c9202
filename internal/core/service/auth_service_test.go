package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/presetstudio/entitlements/internal/core/domain"
)

func newAuthSvc() (*AuthService, *memPrincipalRepo) {
	repo := newMemPrincipalRepo()
	sessions := NewJWTSessionService(newMemSessionStore(), testJWTSecret, 24*time.Hour)
	return NewAuthService(repo, sessions), repo
}

func TestAuth_SignupCreatesUnverifiedFreePrincipal(t *testing.T) {
	svc, repo := newAuthSvc()

	res, err := svc.Signup(context.Background(), "  User@Example.COM ", "hunter22")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	p := res.Principal
	if p.Email != "user@example.com" {
		t.Fatalf("email not normalized: %q", p.Email)
	}
	if p.EmailVerified {
		t.Fatalf("new accounts must start unverified")
	}
	if p.Tier != domain.TierFree || p.MonthlyUsage != 0 {
		t.Fatalf("expected free tier with zero usage, got %s/%d", p.Tier, p.MonthlyUsage)
	}
	if p.VerificationToken == "" {
		t.Fatalf("expected a verification token")
	}
	if p.PasswordHash == "hunter22" {
		t.Fatalf("password stored in plaintext")
	}
	if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte("hunter22")) != nil {
		t.Fatalf("stored hash does not match the password")
	}
	if res.Token == "" || res.Session == nil {
		t.Fatalf("signup must issue a session")
	}

	stored, err := repo.FindByEmail(context.Background(), "user@example.com")
	if err != nil {
		t.Fatalf("find stored principal: %v", err)
	}
	if stored.ID != p.ID {
		t.Fatalf("returned principal not persisted")
	}
}

func TestAuth_SignupDuplicateEmail(t *testing.T) {
	svc, _ := newAuthSvc()

	if _, err := svc.Signup(context.Background(), "dup@example.com", "pw1"); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	if _, err := svc.Signup(context.Background(), "DUP@example.com", "pw2"); !errors.Is(err, domain.ErrPrincipalExists) {
		t.Fatalf("expected ErrPrincipalExists, got %v", err)
	}
}

func TestAuth_SignupRejectsEmptyCredentials(t *testing.T) {
	svc, _ := newAuthSvc()

	if _, err := svc.Signup(context.Background(), "", "pw"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for empty email, got %v", err)
	}
	if _, err := svc.Signup(context.Background(), "a@b.com", ""); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for empty password, got %v", err)
	}
}

func TestAuth_VerifyEmailFlow(t *testing.T) {
	svc, repo := newAuthSvc()

	signed, err := svc.Signup(context.Background(), "verify@example.com", "pw")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	res, err := svc.VerifyEmail(context.Background(), signed.Principal.VerificationToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !res.Principal.EmailVerified {
		t.Fatalf("principal not marked verified")
	}
	if !res.Session.EmailVerified {
		t.Fatalf("fresh session must carry verified=true")
	}

	stored, _ := repo.FindByID(context.Background(), signed.Principal.ID)
	if stored.VerificationToken != "" {
		t.Fatalf("verification token must be cleared after use")
	}

	// Token is single-use.
	if _, err := svc.VerifyEmail(context.Background(), signed.Principal.VerificationToken); !errors.Is(err, domain.ErrInvalidVerificationToken) {
		t.Fatalf("expected ErrInvalidVerificationToken on reuse, got %v", err)
	}
}

func TestAuth_VerifyEmailUnknownToken(t *testing.T) {
	svc, _ := newAuthSvc()

	if _, err := svc.VerifyEmail(context.Background(), "no-such-token"); !errors.Is(err, domain.ErrInvalidVerificationToken) {
		t.Fatalf("expected ErrInvalidVerificationToken, got %v", err)
	}
	if _, err := svc.VerifyEmail(context.Background(), ""); !errors.Is(err, domain.ErrInvalidVerificationToken) {
		t.Fatalf("expected ErrInvalidVerificationToken for empty token, got %v", err)
	}
}

func TestAuth_LoginChecksPassword(t *testing.T) {
	svc, _ := newAuthSvc()

	if _, err := svc.Signup(context.Background(), "login@example.com", "correct-pw"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	res, err := svc.Login(context.Background(), "Login@Example.com", "correct-pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Token == "" || res.Principal.Email != "login@example.com" {
		t.Fatalf("unexpected login result: %+v", res)
	}

	if _, err := svc.Login(context.Background(), "login@example.com", "wrong-pw"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "ghost@example.com", "whatever"); !errors.Is(err, domain.ErrPrincipalNotFound) {
		t.Fatalf("expected ErrPrincipalNotFound, got %v", err)
	}
}

func TestAuth_LogoutRevokesSession(t *testing.T) {
	repo := newMemPrincipalRepo()
	sessions := NewJWTSessionService(newMemSessionStore(), testJWTSecret, 24*time.Hour)
	svc := NewAuthService(repo, sessions)

	res, err := svc.Signup(context.Background(), "bye@example.com", "pw")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if err := svc.Logout(context.Background(), res.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := sessions.Validate(context.Background(), res.Token); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired after logout, got %v", err)
	}
	// Logging out twice is fine.
	if err := svc.Logout(context.Background(), res.Token); err != nil {
		t.Fatalf("second logout: %v", err)
	}
}
