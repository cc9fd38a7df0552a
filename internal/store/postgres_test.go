//go:build integration

package store

import (
	"context"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"go-auth-session/internal/database"
)

func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.New(ctx, url, 4, 0)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.EnsureSchema(ctx))

	return NewPostgresStore(db.Pool)
}

func TestPostgresStoreLifecycle(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	key := "session:it:" + uuid.NewString()

	_, err := s.Get(ctx, key)
	require.ErrorIs(t, err, ErrNotFound)

	replaced, err := s.Replace(ctx, key, []byte("x"), time.Minute)
	require.NoError(t, err)
	require.False(t, replaced)

	require.NoError(t, s.Set(ctx, key, []byte("v1"), time.Minute))
	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), got)

	replaced, err = s.Replace(ctx, key, []byte("v2"), time.Minute)
	require.NoError(t, err)
	require.True(t, replaced)

	got, err = s.Take(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), got)

	_, err = s.Take(ctx, key)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStoreExpiry(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	key := "blacklist:" + uuid.NewString()

	require.NoError(t, s.Set(ctx, key, []byte("true"), 50*time.Millisecond))
	time.Sleep(200 * time.Millisecond)

	_, err := s.Get(ctx, key)
	require.ErrorIs(t, err, ErrNotFound)

	removed, err := s.Sweep(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, removed, int64(1))
}

func TestPostgresStoreBlacklistsOversizedToken(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	token := uuid.NewString() + strings.Repeat("x", 16*1024)

	require.NoError(t, s.Set(ctx, BlacklistKey(token), []byte("true"), time.Minute))
	got, err := s.Get(ctx, BlacklistKey(token))
	require.NoError(t, err)
	require.Equal(t, []byte("true"), got)
}

func TestPostgresStoreTakeHasSingleWinner(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	key := "refresh:it:" + uuid.NewString()
	require.NoError(t, s.Set(ctx, key, []byte("record"), time.Minute))

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Take(ctx, key); err == nil {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), winners.Load())
}
