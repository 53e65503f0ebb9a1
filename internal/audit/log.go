package audit

import (
	"context"
	"fmt"

	"github.com/nulzo/misan-console/internal/store"
	"github.com/nulzo/misan-console/internal/store/model"
)

// Log reads back persisted audit events.
type Log struct {
	repo store.Repository
}

func NewLog(repo store.Repository) *Log {
	return &Log{repo: repo}
}

// Recent lists the latest events, newest first. limit defaults to 50 and is capped at 200.
func (l *Log) Recent(ctx context.Context, limit int) ([]model.AuditEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	events, err := l.repo.Audit().ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}
