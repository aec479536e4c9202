package domain

import "time"

// Session is a signed, time-limited capability granted to a Principal. The
// token is the JWT handed to the caller; the record below is the server-side
// half that makes revocation possible. Session lifetime is a hard upper
// bound: expiry is detected lazily on the next access and never renewed.
type Session struct {
	// ID is the JWT's jti claim and the storage key.
	ID        string    `json:"id"`
	Token     string    `json:"token,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`

	// Snapshot of the principal at issuance time. Not a live reference:
	// re-fetch the Principal for current tier and usage.
	PrincipalID   string `json:"principal_id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
