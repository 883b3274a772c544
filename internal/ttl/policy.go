// Package ttl holds the per-kind cache lifetimes and the expiry arithmetic
// shared by every sweep.
package ttl

import (
	"fmt"
	"time"

	"local-cache/internal/entity"
)

// Lifetimes per kind. These are constants and are never persisted.
const (
	UserTTL        = 30 * time.Minute
	GameTTL        = 60 * time.Minute
	LibraryItemTTL = 15 * time.Minute
)

// ConfigurationError reports a lookup for a kind outside the closed set.
// It signals a programming error and must not be retried.
type ConfigurationError struct {
	Kind entity.Kind
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("ttl: unknown entity kind %q", string(e.Kind))
}

// For returns the lifetime of kind.
func For(kind entity.Kind) (time.Duration, error) {
	switch kind {
	case entity.KindUser:
		return UserTTL, nil
	case entity.KindGame:
		return GameTTL, nil
	case entity.KindLibraryItem:
		return LibraryItemTTL, nil
	}
	return 0, &ConfigurationError{Kind: kind}
}

// MustFor is For for kinds known at compile time.
func MustFor(kind entity.Kind) time.Duration {
	d, err := For(kind)
	if err != nil {
		panic(err)
	}
	return d
}

// IsExpired reports whether a record cached at cachedAt is stale at now.
// A record exactly ttl old is still fresh.
func IsExpired(cachedAt time.Time, ttl time.Duration, now time.Time) bool {
	return now.Sub(cachedAt) > ttl
}

// Cutoff returns the instant before which records of the given ttl are stale.
// Stores delete rows with cachedAt strictly before the cutoff.
func Cutoff(ttl time.Duration, now time.Time) time.Time {
	return now.Add(-ttl)
}
