package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"go-auth-session/internal/event"
	"go-auth-session/internal/model"
	"go-auth-session/pkg/apierror"
)

// AuditSink persists audit entries. The file log and the Postgres repository both satisfy it.
type AuditSink interface {
	Append(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error)
}

// AuditService turns auth events from the bus into audit entries.
type AuditService struct {
	sink         AuditSink
	writeTimeout time.Duration
}

func NewAuditService(sink AuditSink) *AuditService {
	return &AuditService{sink: sink, writeTimeout: 5 * time.Second}
}

// Run consumes bus events until ctx is cancelled or the subscription closes.
func (s *AuditService) Run(ctx context.Context, bus event.Bus) {
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := s.Record(ctx, e); err != nil {
				slog.Error("audit write failed", "type", string(e.Type), "error", err)
			}
		}
	}
}

func (s *AuditService) Record(ctx context.Context, e event.Event) error {
	if s == nil || s.sink == nil {
		return nil
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	occurredAt := e.Timestamp
	if occurredAt == "" {
		occurredAt = time.Now().UTC().Format(time.RFC3339Nano)
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	return s.sink.Append(writeCtx, model.AuditEntry{
		ID:            e.ID,
		Type:          string(e.Type),
		OccurredAt:    occurredAt,
		ActorID:       e.ActorID,
		SessionID:     e.SessionID,
		ClientAddress: e.ClientAddress,
		Detail:        e.Payload,
	})
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	items, meta, err := s.sink.Query(ctx, query)
	if err != nil {
		var apiErr *apierror.APIError
		if errors.As(err, &apiErr) {
			return nil, model.Meta{}, err
		}
		return nil, model.Meta{}, apierror.Internal(err)
	}
	return items, meta, nil
}
