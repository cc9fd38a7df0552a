package repository

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go-auth-session/internal/model"
	"go-auth-session/pkg/apierror"
)

// AuditFileLog keeps audit entries as JSON lines in a single file.
type AuditFileLog struct {
	filePath string
	mu       sync.Mutex
}

func NewAuditFileLog(filePath string) (*AuditFileLog, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("prepare audit directory: %w", err)
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		if err := os.WriteFile(filePath, []byte{}, 0o644); err != nil {
			return nil, fmt.Errorf("initialize audit file: %w", err)
		}
	}

	return &AuditFileLog{filePath: filePath}, nil
}

func (l *AuditFileLog) Append(_ context.Context, entry model.AuditEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// Query returns matching entries newest first. Unparsable lines are skipped.
func (l *AuditFileLog) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	query = normalizeAuditQuery(query)

	from, err := parseOptionalAuditTime(query.From)
	if err != nil {
		return nil, model.Meta{}, apierror.BadRequest("invalid 'from' datetime format", query.From)
	}
	to, err := parseOptionalAuditTime(query.To)
	if err != nil {
		return nil, model.Meta{}, apierror.BadRequest("invalid 'to' datetime format", query.To)
	}

	eventType := strings.ToLower(strings.TrimSpace(query.Type))
	actorID := strings.TrimSpace(query.ActorID)
	sessionID := strings.TrimSpace(query.SessionID)

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.filePath)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	items := make([]model.AuditEntry, 0, 128)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, model.Meta{}, err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry model.AuditEntry
		if unmarshalErr := json.Unmarshal([]byte(line), &entry); unmarshalErr != nil {
			continue
		}

		if eventType != "" && strings.ToLower(entry.Type) != eventType {
			continue
		}
		if actorID != "" && entry.ActorID != actorID {
			continue
		}
		if sessionID != "" && entry.SessionID != sessionID {
			continue
		}

		at, timeErr := parseAuditTime(entry.OccurredAt)
		if timeErr != nil {
			continue
		}
		if !from.IsZero() && at.Before(from) {
			continue
		}
		if !to.IsZero() && at.After(to) {
			continue
		}

		items = append(items, entry)
	}

	if scanErr := scanner.Err(); scanErr != nil {
		return nil, model.Meta{}, fmt.Errorf("scan audit file: %w", scanErr)
	}

	sort.SliceStable(items, func(i int, j int) bool {
		left, _ := parseAuditTime(items[i].OccurredAt)
		right, _ := parseAuditTime(items[j].OccurredAt)
		return left.After(right)
	})

	total := len(items)
	start := min((query.Page-1)*query.Limit, total)
	end := min(start+query.Limit, total)

	return items[start:end], auditMeta(query, total), nil
}

func normalizeAuditQuery(query model.AuditQuery) model.AuditQuery {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 50
	}
	if query.Limit > 200 {
		query.Limit = 200
	}
	return query
}

func auditMeta(query model.AuditQuery, total int) model.Meta {
	totalPages := 0
	if total > 0 {
		totalPages = (total + query.Limit - 1) / query.Limit
	}
	return model.Meta{Page: query.Page, Limit: query.Limit, Total: total, TotalPages: totalPages}
}

func parseOptionalAuditTime(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, nil
	}

	return parseAuditTime(trimmed)
}

func parseAuditTime(raw string) (time.Time, error) {
	if value, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return value.UTC(), nil
	}

	value, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}

	return value.UTC(), nil
}
