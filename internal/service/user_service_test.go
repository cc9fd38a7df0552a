package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-auth-session/internal/event"
	"go-auth-session/internal/model"
	"go-auth-session/internal/repository"
	"go-auth-session/pkg/apierror"
)

func newTestUserService(t *testing.T, bus event.Bus) *UserService {
	t.Helper()

	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id":"u1","email":"admin@x.com","password_hash":"h","role":"admin","permissions":["users:write"]},
		{"id":"u2","email":"viewer@x.com","password_hash":"h","role":"viewer"}
	]`), 0o600))

	dir, err := repository.NewFileUserDirectory(path)
	require.NoError(t, err)
	return NewUserService(dir, bus)
}

func TestUserServiceListAndGet(t *testing.T) {
	t.Parallel()

	svc := newTestUserService(t, nil)
	ctx := context.Background()

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "admin@x.com", users[0].Email)

	u, err := svc.GetUser(ctx, "u2")
	require.NoError(t, err)
	require.Equal(t, "viewer", u.Role)

	_, err = svc.GetUser(ctx, "u9")
	require.Equal(t, apierror.CodeNotFound, apierror.CodeOf(err))
}

func TestUserServiceSetStatus(t *testing.T) {
	t.Parallel()

	bus := event.NewBus()
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	svc := newTestUserService(t, bus)
	ctx := context.Background()

	u, err := svc.SetStatus(ctx, "u2", " inactive ", "u1")
	require.NoError(t, err)
	require.Equal(t, model.UserStatusInactive, u.Status)

	select {
	case e := <-events:
		require.Equal(t, event.TypeUserStatus, e.Type)
		require.Equal(t, "u1", e.ActorID)
	case <-time.After(time.Second):
		t.Fatal("status change was not published")
	}

	_, err = svc.SetStatus(ctx, "u2", "deleted", "u1")
	require.Equal(t, apierror.CodeBadRequest, apierror.CodeOf(err))

	_, err = svc.SetStatus(ctx, "u1", model.UserStatusSuspended, "u1")
	require.Equal(t, apierror.CodeBadRequest, apierror.CodeOf(err))

	_, err = svc.SetStatus(ctx, "u9", model.UserStatusActive, "u1")
	require.Equal(t, apierror.CodeNotFound, apierror.CodeOf(err))
}
