package store

import (
	"context"
	"time"
)

// SessionStore is per-client ephemeral scratch space surviving a handful of
// requests. Take consumes: the value is removed as part of the same logical
// read, which is what makes the cancel-code reveal one-shot.
type SessionStore interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Take(ctx context.Context, key string) (string, bool, error)
}
