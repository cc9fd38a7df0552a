// Package store is the TTL key-value layer behind sessions, refresh records and the
// token blacklist. Implementations must be safe for concurrent use and must never
// return an expired key, even when physical deletion is deferred.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var ErrNotFound = errors.New("store: key not found")

type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// Take atomically reads and removes key. Of several concurrent callers at most one gets the value.
	Take(ctx context.Context, key string) ([]byte, error)
	// Replace overwrites key only while it is present and unexpired.
	Replace(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Sweep physically removes expired keys and reports how many were dropped.
	Sweep(ctx context.Context) (int64, error)
}

func SessionKey(userID string, sessionID string) string {
	return "session:" + userID + ":" + sessionID
}

func RefreshKey(userID string, refreshToken string) string {
	return "refresh:" + userID + ":" + Fingerprint(refreshToken)
}

// SessionRefreshKey indexes a session's refresh record; it outlives the session itself.
func SessionRefreshKey(userID string, sessionID string) string {
	return "session-refresh:" + userID + ":" + sessionID
}

// BlacklistKey is keyed by fingerprint so key length stays fixed however large the token grows.
func BlacklistKey(token string) string {
	return "blacklist:" + Fingerprint(token)
}

// Fingerprint is the hex SHA-256 of a token; raw refresh tokens never appear in keys.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func StartSweeper(ctx context.Context, s Store, interval time.Duration, onSweep func(removed int64, err error)) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Sweep(ctx)
			if onSweep != nil {
				onSweep(removed, err)
			}
		}
	}
}
