package interfaces

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned when a key is missing or has expired
var ErrKeyNotFound = errors.New("key not found")

// KeyValuePair is a single cached value
type KeyValuePair struct {
	Key       string     `json:"key" badgerhold:"key"`
	Value     string     `json:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Expired reports whether the pair is past its expiry at now
func (p *KeyValuePair) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && !now.Before(*p.ExpiresAt)
}

// KeyValueStorage stores small values such as the cached anti-forgery token.
// A zero ttl keeps the value until deleted.
type KeyValueStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
