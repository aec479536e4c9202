package ports

import (
	"context"
	"time"

	"github.com/presetstudio/entitlements/internal/core/domain"
)

// SessionStore persists the server-side half of issued sessions, keyed by
// session ID, with a TTL matching the session expiry. A missing record means
// the session was revoked or has expired out of storage.
type SessionStore interface {
	Put(ctx context.Context, session *domain.Session, ttl time.Duration) error
	// Get returns domain.ErrSessionExpired when no record exists.
	Get(ctx context.Context, id string) (*domain.Session, error)
	// Delete is idempotent: deleting an absent record is not an error.
	Delete(ctx context.Context, id string) error
}
