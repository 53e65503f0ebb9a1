package model

import (
	"database/sql"
	"time"
)

// Setting is one row of the generic key/value system_settings table.
// Value holds JSON text; its shape depends on the writer.
type Setting struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AlertRuleRow is the persisted shape of an alert rule.
type AlertRuleRow struct {
	ID              string         `db:"id" json:"id"`
	Name            string         `db:"name" json:"name"`
	Description     sql.NullString `db:"description" json:"description"`
	TriggerType     string         `db:"trigger_type" json:"trigger_type"`
	Target          string         `db:"target" json:"target"`
	Comparator      string         `db:"comparator" json:"comparator"`
	Threshold       float64        `db:"threshold" json:"threshold"`
	Severity        string         `db:"severity" json:"severity"`
	MessageTemplate string         `db:"message_template" json:"message_template"`
	AppliesToRole   string         `db:"applies_to_role" json:"applies_to_role"`
	IsBlocking      sql.NullBool   `db:"is_blocking" json:"is_blocking"`
	IsActive        sql.NullBool   `db:"is_active" json:"is_active"`
	Metadata        sql.NullString `db:"metadata" json:"metadata"` // JSON object
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// EmailTemplateRow is the persisted shape of an email template.
type EmailTemplateRow struct {
	ID         string         `db:"id" json:"id"`
	Name       string         `db:"name" json:"name"`
	Subject    string         `db:"subject" json:"subject"`
	Recipients string         `db:"recipients" json:"recipients"`
	CC         string         `db:"cc" json:"cc"`  // JSON array
	BCC        string         `db:"bcc" json:"bcc"` // JSON array
	Body       string         `db:"body" json:"body"`
	Signature  sql.NullString `db:"signature" json:"signature"`
	IsActive   sql.NullBool   `db:"is_active" json:"is_active"`
	Metadata   sql.NullString `db:"metadata" json:"metadata"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// SupportMessage is a message left through the public contact form.
type SupportMessage struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Subject   string    `db:"subject" json:"subject"`
	Body      string    `db:"body" json:"body"`
	IPAddress string    `db:"ip_address" json:"ip_address,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AuditEvent records an admin mutation.
type AuditEvent struct {
	ID             string    `db:"id" json:"id"`
	Actor          string    `db:"actor" json:"actor"`
	TargetResource string    `db:"target_resource" json:"target_resource"`
	Action         string    `db:"action" json:"action"`
	DetailsJSON    string    `db:"details_json" json:"details_json"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
