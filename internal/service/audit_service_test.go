package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-auth-session/internal/event"
	"go-auth-session/internal/model"
	"go-auth-session/internal/repository"
	"go-auth-session/pkg/apierror"
)

func newTestAudit(t *testing.T) *AuditService {
	t.Helper()
	sink, err := repository.NewAuditFileLog(filepath.Join(t.TempDir(), "logs", "audit.log"))
	require.NoError(t, err)
	return NewAuditService(sink)
}

func TestAuditRecordMapsEventFields(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestAudit(t)
	require.NoError(t, svc.Record(ctx, event.Event{
		Type:          event.TypeLoginFailed,
		ActorID:       "u1",
		SessionID:     "s1",
		ClientAddress: "10.0.0.1",
		Payload:       map[string]any{"reason": "INVALID_CREDENTIALS"},
	}))

	items, meta, err := svc.Query(ctx, model.AuditQuery{})
	require.NoError(t, err)
	require.Equal(t, 1, meta.Total)
	entry := items[0]
	require.NotEmpty(t, entry.ID)
	require.NotEmpty(t, entry.OccurredAt)
	require.Equal(t, string(event.TypeLoginFailed), entry.Type)
	require.Equal(t, "u1", entry.ActorID)
	require.Equal(t, "s1", entry.SessionID)
	require.Equal(t, "10.0.0.1", entry.ClientAddress)
	require.Equal(t, map[string]any{"reason": "INVALID_CREDENTIALS"}, entry.Detail)
}

func TestAuditQueryPassesBadRequestThrough(t *testing.T) {
	t.Parallel()

	_, _, err := newTestAudit(t).Query(context.Background(), model.AuditQuery{From: "yesterday"})
	require.Equal(t, apierror.CodeBadRequest, apierror.CodeOf(err))
}

func TestAuditRunConsumesBus(t *testing.T) {
	t.Parallel()

	svc := newTestAudit(t)
	bus := event.NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx, bus)
		close(done)
	}()

	require.Eventually(t, func() bool {
		bus.Publish(event.Event{Type: event.TypeSessionCreated, ActorID: "u9"})
		items, _, err := svc.Query(context.Background(), model.AuditQuery{ActorID: "u9"})
		return err == nil && len(items) > 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("audit consumer did not stop")
	}
}
