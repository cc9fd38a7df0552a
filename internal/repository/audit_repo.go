package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"go-auth-session/internal/model"
	"go-auth-session/pkg/apierror"
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Append(ctx context.Context, entry model.AuditEntry) error {
	var detailJSON []byte
	if entry.Detail != nil {
		var err error
		detailJSON, err = json.Marshal(entry.Detail)
		if err != nil {
			return fmt.Errorf("marshal audit detail: %w", err)
		}
	}

	occurredAt, err := parseAuditTime(entry.OccurredAt)
	if err != nil {
		occurredAt = time.Now().UTC()
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_entries
		 (id, event_type, occurred_at, actor_id, session_id, client_address, detail)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		entry.ID, entry.Type, occurredAt, entry.ActorID, entry.SessionID, entry.ClientAddress, detailJSON)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepository) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	query = normalizeAuditQuery(query)

	where := make([]string, 0)
	args := make([]any, 0)
	argIdx := 1

	if eventType := strings.TrimSpace(query.Type); eventType != "" {
		where = append(where, fmt.Sprintf("lower(event_type) = lower($%d)", argIdx))
		args = append(args, eventType)
		argIdx++
	}
	if actorID := strings.TrimSpace(query.ActorID); actorID != "" {
		where = append(where, fmt.Sprintf("actor_id = $%d", argIdx))
		args = append(args, actorID)
		argIdx++
	}
	if sessionID := strings.TrimSpace(query.SessionID); sessionID != "" {
		where = append(where, fmt.Sprintf("session_id = $%d", argIdx))
		args = append(args, sessionID)
		argIdx++
	}
	if from := strings.TrimSpace(query.From); from != "" {
		fromTime, err := parseAuditTime(from)
		if err != nil {
			return nil, model.Meta{}, apierror.BadRequest("invalid 'from' datetime format", from)
		}
		where = append(where, fmt.Sprintf("occurred_at >= $%d", argIdx))
		args = append(args, fromTime)
		argIdx++
	}
	if to := strings.TrimSpace(query.To); to != "" {
		toTime, err := parseAuditTime(to)
		if err != nil {
			return nil, model.Meta{}, apierror.BadRequest("invalid 'to' datetime format", to)
		}
		where = append(where, fmt.Sprintf("occurred_at <= $%d", argIdx))
		args = append(args, toTime)
		argIdx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM audit_entries %s", whereClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, model.Meta{}, fmt.Errorf("count audit entries: %w", err)
	}

	offset := (query.Page - 1) * query.Limit
	dataQuery := fmt.Sprintf(
		`SELECT id, event_type, occurred_at, actor_id, session_id, client_address, detail
		 FROM audit_entries %s
		 ORDER BY occurred_at DESC
		 LIMIT $%d OFFSET $%d`, whereClause, argIdx, argIdx+1)
	args = append(args, query.Limit, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.AuditEntry, 0)
	for rows.Next() {
		var e model.AuditEntry
		var occurredAt time.Time
		var detailJSON []byte

		if err := rows.Scan(&e.ID, &e.Type, &occurredAt, &e.ActorID, &e.SessionID, &e.ClientAddress, &detailJSON); err != nil {
			return nil, model.Meta{}, fmt.Errorf("scan audit entry: %w", err)
		}

		e.OccurredAt = occurredAt.UTC().Format(time.RFC3339Nano)
		if len(detailJSON) > 0 {
			var detail any
			if jsonErr := json.Unmarshal(detailJSON, &detail); jsonErr == nil {
				e.Detail = detail
			}
		}

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Meta{}, fmt.Errorf("iterate audit entries: %w", err)
	}

	return entries, auditMeta(query, total), nil
}
