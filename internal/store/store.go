package store

import (
	"context"
	"errors"

	"github.com/nulzo/misan-console/internal/store/model"
)

// ErrNotFound is returned when a row addressed by id does not exist.
var ErrNotFound = errors.New("record not found")

type contextKey string

// ContextKeyActor holds the identity of the admin performing a request.
const ContextKeyActor contextKey = "actor"

// WithActor returns a context that carries the acting admin.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ContextKeyActor, actor)
}

// ActorFromContext returns the acting admin, or "system".
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyActor).(string); ok && v != "" {
		return v
	}
	return "system"
}

// Repository is the main contract for the data layer.
type Repository interface {
	Settings() SettingsRepository
	AlertRules() AlertRuleRepository
	EmailTemplates() EmailTemplateRepository
	SupportMessages() SupportMessageRepository
	Audit() AuditRepository

	// transaction support
	WithTx(ctx context.Context, fn func(repo Repository) error) error

	Close() error
}

type SettingsRepository interface {
	// Get returns a single setting or ErrNotFound.
	Get(ctx context.Context, key string) (*model.Setting, error)
	// GetMany returns the settings present among keys. Missing keys are skipped.
	GetMany(ctx context.Context, keys []string) ([]model.Setting, error)
	// Upsert writes value (JSON text) under key.
	Upsert(ctx context.Context, key, value string) error
}

type AlertRuleRepository interface {
	List(ctx context.Context) ([]model.AlertRuleRow, error)
	Get(ctx context.Context, id string) (*model.AlertRuleRow, error)
	Create(ctx context.Context, row *model.AlertRuleRow) error
	// Update replaces every column but created_at. ErrNotFound if id is unknown.
	Update(ctx context.Context, row *model.AlertRuleRow) error
	Delete(ctx context.Context, id string) error
}

type EmailTemplateRepository interface {
	List(ctx context.Context) ([]model.EmailTemplateRow, error)
	Get(ctx context.Context, id string) (*model.EmailTemplateRow, error)
	Create(ctx context.Context, row *model.EmailTemplateRow) error
	Update(ctx context.Context, row *model.EmailTemplateRow) error
	Delete(ctx context.Context, id string) error
}

type SupportMessageRepository interface {
	Create(ctx context.Context, msg *model.SupportMessage) error
	ListRecent(ctx context.Context, limit int) ([]model.SupportMessage, error)
}

type AuditRepository interface {
	// Log records an audit event.
	Log(ctx context.Context, event *model.AuditEvent) error
	ListRecent(ctx context.Context, limit int) ([]model.AuditEvent, error)
}
