package domain

import "errors"

var (
	// ErrPrincipalNotFound is returned when no account matches the lookup key.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrPrincipalExists is returned on signup with an already-registered email.
	ErrPrincipalExists = errors.New("principal already exists")
	// ErrInvalidCredentials covers both bad login input and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSessionExpired means a session was presented but is past its expiry
	// (or was revoked). The caller must re-authenticate, not retry.
	ErrSessionExpired = errors.New("session expired")

	// ErrNotEntitled accompanies a denial Decision from the entitlement
	// policy. The Decision, not this error, drives user-visible behaviour.
	ErrNotEntitled = errors.New("not entitled")

	// ErrUsageTrackingFailed marks an invocation that completed but could not
	// be billed against quota. It must be logged for reconciliation and never
	// surfaced as a user-facing failure.
	ErrUsageTrackingFailed = errors.New("usage tracking failed")

	// ErrQuotaExhausted is the storage-level signal that a conditional
	// increment found the counter already at its limit.
	ErrQuotaExhausted = errors.New("quota exhausted")

	ErrAlreadySubscribed = errors.New("subscription already active")
	ErrNotSubscribed     = errors.New("no subscription to cancel")
	ErrInvalidTransition = errors.New("invalid subscription transition")

	// ErrInvalidVerificationToken is returned when an email verification
	// token matches no pending principal.
	ErrInvalidVerificationToken = errors.New("invalid verification token")
)
