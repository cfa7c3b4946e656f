package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionCache stores provider session codes so repeated exchange calls can
// reuse an authenticated session instead of logging in every time. Sessions
// are scoped per tenant and channel because each resolves to separate
// provider credentials and endpoints.
type SessionCache interface {
	// Get returns the cached session code, or false when none is cached
	Get(ctx context.Context, tenantID uuid.UUID, channel string) (string, bool, error)

	// Set stores a session code with a TTL
	Set(ctx context.Context, tenantID uuid.UUID, channel, sessionCode string, ttl time.Duration) error

	// Delete evicts a session, used after the provider rejects it
	Delete(ctx context.Context, tenantID uuid.UUID, channel string) error
}

func sessionKey(tenantID uuid.UUID, channel string) string {
	return tenantID.String() + ":" + channel
}
