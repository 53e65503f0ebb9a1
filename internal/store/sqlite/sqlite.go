package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nulzo/misan-console/internal/store"
	"github.com/nulzo/misan-console/internal/store/model"
)

// DB defines the interface for database operations (satisfied by *sqlx.DB and *sqlx.Tx)
type DB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SqliteRepository implements store.Repository
type SqliteRepository struct {
	db       *sqlx.DB // Required for starting new transactions
	executor DB       // Used for actual queries (can be *sqlx.DB or *sqlx.Tx)
}

func NewSqliteRepository(db *sqlx.DB) *SqliteRepository {
	return &SqliteRepository{
		db:       db,
		executor: db,
	}
}

func (r *SqliteRepository) Close() error {
	return r.db.Close()
}

func (r *SqliteRepository) WithTx(ctx context.Context, fn func(repo store.Repository) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	txRepo := &SqliteRepository{
		db:       r.db,
		executor: tx,
	}

	if err := fn(txRepo); err != nil {
		// attempt rollback, but prioritize original error
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (r *SqliteRepository) Settings() store.SettingsRepository {
	return &settingsRepo{db: r.executor}
}

func (r *SqliteRepository) AlertRules() store.AlertRuleRepository {
	return &alertRuleRepo{db: r.executor}
}

func (r *SqliteRepository) EmailTemplates() store.EmailTemplateRepository {
	return &emailTemplateRepo{db: r.executor}
}

func (r *SqliteRepository) SupportMessages() store.SupportMessageRepository {
	return &supportRepo{db: r.executor}
}

func (r *SqliteRepository) Audit() store.AuditRepository {
	return &auditRepo{db: r.executor}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

type settingsRepo struct {
	db DB
}

func (r *settingsRepo) Get(ctx context.Context, key string) (*model.Setting, error) {
	var s model.Setting
	err := r.db.GetContext(ctx, &s, `SELECT "key", value, updated_at FROM system_settings WHERE "key" = ?`, key)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *settingsRepo) GetMany(ctx context.Context, keys []string) ([]model.Setting, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT "key", value, updated_at FROM system_settings WHERE "key" IN (?) ORDER BY "key"`, keys)
	if err != nil {
		return nil, err
	}
	var settings []model.Setting
	err = r.db.SelectContext(ctx, &settings, query, args...)
	return settings, err
}

func (r *settingsRepo) Upsert(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO system_settings ("key", value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT("key") DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query, key, value, time.Now().UTC())
	return err
}

type alertRuleRepo struct {
	db DB
}

func (r *alertRuleRepo) List(ctx context.Context) ([]model.AlertRuleRow, error) {
	var rows []model.AlertRuleRow
	err := r.db.SelectContext(ctx, &rows, `SELECT * FROM alert_rules`)
	return rows, err
}

func (r *alertRuleRepo) Get(ctx context.Context, id string) (*model.AlertRuleRow, error) {
	var row model.AlertRuleRow
	if err := r.db.GetContext(ctx, &row, `SELECT * FROM alert_rules WHERE id = ?`, id); err != nil {
		return nil, notFound(err)
	}
	return &row, nil
}

func (r *alertRuleRepo) Create(ctx context.Context, row *model.AlertRuleRow) error {
	query := `
	INSERT INTO alert_rules (
		id, name, description, trigger_type, target, comparator, threshold,
		severity, message_template, applies_to_role, is_blocking, is_active,
		metadata, created_at, updated_at
	) VALUES (
		:id, :name, :description, :trigger_type, :target, :comparator, :threshold,
		:severity, :message_template, :applies_to_role, :is_blocking, :is_active,
		:metadata, :created_at, :updated_at
	)`
	_, err := r.db.NamedExecContext(ctx, query, row)
	return err
}

func (r *alertRuleRepo) Update(ctx context.Context, row *model.AlertRuleRow) error {
	query := `
	UPDATE alert_rules SET
		name = :name,
		description = :description,
		trigger_type = :trigger_type,
		target = :target,
		comparator = :comparator,
		threshold = :threshold,
		severity = :severity,
		message_template = :message_template,
		applies_to_role = :applies_to_role,
		is_blocking = :is_blocking,
		is_active = :is_active,
		metadata = :metadata,
		updated_at = :updated_at
	WHERE id = :id`
	return expectOne(r.db.NamedExecContext(ctx, query, row))
}

func (r *alertRuleRepo) Delete(ctx context.Context, id string) error {
	return expectOne(r.db.ExecContext(ctx, `DELETE FROM alert_rules WHERE id = ?`, id))
}

type emailTemplateRepo struct {
	db DB
}

func (r *emailTemplateRepo) List(ctx context.Context) ([]model.EmailTemplateRow, error) {
	var rows []model.EmailTemplateRow
	err := r.db.SelectContext(ctx, &rows, `SELECT * FROM email_templates`)
	return rows, err
}

func (r *emailTemplateRepo) Get(ctx context.Context, id string) (*model.EmailTemplateRow, error) {
	var row model.EmailTemplateRow
	if err := r.db.GetContext(ctx, &row, `SELECT * FROM email_templates WHERE id = ?`, id); err != nil {
		return nil, notFound(err)
	}
	return &row, nil
}

func (r *emailTemplateRepo) Create(ctx context.Context, row *model.EmailTemplateRow) error {
	query := `
	INSERT INTO email_templates (
		id, name, subject, recipients, cc, bcc, body, signature,
		is_active, metadata, created_at, updated_at
	) VALUES (
		:id, :name, :subject, :recipients, :cc, :bcc, :body, :signature,
		:is_active, :metadata, :created_at, :updated_at
	)`
	_, err := r.db.NamedExecContext(ctx, query, row)
	return err
}

func (r *emailTemplateRepo) Update(ctx context.Context, row *model.EmailTemplateRow) error {
	query := `
	UPDATE email_templates SET
		name = :name,
		subject = :subject,
		recipients = :recipients,
		cc = :cc,
		bcc = :bcc,
		body = :body,
		signature = :signature,
		is_active = :is_active,
		metadata = :metadata,
		updated_at = :updated_at
	WHERE id = :id`
	return expectOne(r.db.NamedExecContext(ctx, query, row))
}

func (r *emailTemplateRepo) Delete(ctx context.Context, id string) error {
	return expectOne(r.db.ExecContext(ctx, `DELETE FROM email_templates WHERE id = ?`, id))
}

type supportRepo struct {
	db DB
}

func (r *supportRepo) Create(ctx context.Context, msg *model.SupportMessage) error {
	query := `
	INSERT INTO support_messages (id, name, email, subject, body, ip_address, created_at)
	VALUES (:id, :name, :email, :subject, :body, :ip_address, :created_at)`
	_, err := r.db.NamedExecContext(ctx, query, msg)
	return err
}

func (r *supportRepo) ListRecent(ctx context.Context, limit int) ([]model.SupportMessage, error) {
	var msgs []model.SupportMessage
	err := r.db.SelectContext(ctx, &msgs, `SELECT * FROM support_messages ORDER BY created_at DESC LIMIT ?`, limit)
	return msgs, err
}

type auditRepo struct {
	db DB
}

func (r *auditRepo) Log(ctx context.Context, event *model.AuditEvent) error {
	query := `
	INSERT INTO audit_events (id, actor, target_resource, action, details_json, created_at)
	VALUES (:id, :actor, :target_resource, :action, :details_json, :created_at)`
	_, err := r.db.NamedExecContext(ctx, query, event)
	return err
}

func (r *auditRepo) ListRecent(ctx context.Context, limit int) ([]model.AuditEvent, error) {
	var events []model.AuditEvent
	err := r.db.SelectContext(ctx, &events, `SELECT * FROM audit_events ORDER BY created_at DESC LIMIT ?`, limit)
	return events, err
}
