// Package emailtemplates manages the templates used for transactional and
// administrative emails.
package emailtemplates

import (
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/nulzo/misan-console/internal/store/model"
	"github.com/nulzo/misan-console/internal/validation"
)

// DefaultSignature is used when a template is saved without a signature.
const DefaultSignature = "Best regards,\nThe Misan Team"

// Recipients says who receives emails built from a template.
type Recipients string

const (
	RecipientsUser  Recipients = "user"
	RecipientsAdmin Recipients = "admin"
	RecipientsBoth  Recipients = "both"
)

// Label is the human readable recipients, as shown in the admin table.
func (r Recipients) Label() string {
	switch r {
	case RecipientsUser:
		return "User"
	case RecipientsAdmin:
		return "Administrator"
	case RecipientsBoth:
		return "User and administrator"
	default:
		return string(r)
	}
}

// Template is an email template.
type Template struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Subject    string         `json:"subject"`
	Recipients Recipients     `json:"recipients"`
	CC         []string       `json:"cc"`
	BCC        []string       `json:"bcc"`
	Body       string         `json:"body"`
	Signature  string         `json:"signature"`
	IsActive   bool           `json:"isActive"`
	Metadata   map[string]any `json:"metadata"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// FormState is the admin form as submitted. CC and BCC are free text,
// comma separated.
type FormState struct {
	Name       string         `json:"name" validate:"required,max=200"`
	Subject    string         `json:"subject" validate:"required,max=300"`
	Recipients Recipients     `json:"recipients" validate:"required,oneof=user admin both"`
	CC         string         `json:"cc"`
	BCC        string         `json:"bcc"`
	Body       string         `json:"body" validate:"required"`
	Signature  string         `json:"signature"`
	IsActive   *bool          `json:"isActive"`
	Metadata   map[string]any `json:"metadata"`
}

// Input is a validated template ready to persist.
type Input struct {
	Name       string
	Subject    string
	Recipients Recipients
	CC         []string
	BCC        []string
	Body       string
	Signature  string
	IsActive   bool
	Metadata   map[string]any
}

// ParseAddressList splits comma separated text, trimming entries and dropping empty ones.
func ParseAddressList(text string) []string {
	out := []string{}
	for _, part := range strings.Split(text, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ValidateForm checks f and converts it to an Input.
func ValidateForm(f FormState) (Input, error) {
	f.Name = strings.TrimSpace(f.Name)
	f.Subject = strings.TrimSpace(f.Subject)
	if f.Recipients == "" {
		f.Recipients = RecipientsUser
	}

	// Body is stored as written; only its blankness is judged trimmed.
	check := f
	check.Body = strings.TrimSpace(f.Body)

	verr := &validation.Error{}
	if err := validation.Struct(check); err != nil {
		if fe, ok := validation.As(err); ok {
			for k, v := range fe.Fields {
				verr.Add(k, v)
			}
		}
	}

	in := Input{
		Name:       f.Name,
		Subject:    f.Subject,
		Recipients: f.Recipients,
		CC:         ParseAddressList(f.CC),
		BCC:        ParseAddressList(f.BCC),
		Body:       f.Body,
		Signature:  strings.TrimSpace(f.Signature),
		IsActive:   true,
		Metadata:   f.Metadata,
	}
	if in.Signature == "" {
		in.Signature = DefaultSignature
	}
	if f.IsActive != nil {
		in.IsActive = *f.IsActive
	}
	if in.Metadata == nil {
		in.Metadata = map[string]any{}
	}

	checkAddresses(verr, "cc", in.CC)
	checkAddresses(verr, "bcc", in.BCC)

	if err := verr.OrNil(); err != nil {
		return Input{}, err
	}
	return in, nil
}

func checkAddresses(verr *validation.Error, field string, addrs []string) {
	for _, a := range addrs {
		if err := validation.Var(field, a, "email"); err != nil {
			verr.Add(field, a+" is not a valid email address")
			return
		}
	}
}

// ToFormState prefills the edit form from t.
func ToFormState(t Template) FormState {
	active := t.IsActive
	return FormState{
		Name:       t.Name,
		Subject:    t.Subject,
		Recipients: t.Recipients,
		CC:         strings.Join(t.CC, ", "),
		BCC:        strings.Join(t.BCC, ", "),
		Body:       t.Body,
		Signature:  t.Signature,
		IsActive:   &active,
		Metadata:   t.Metadata,
	}
}

// MapRow converts a persisted row. A missing active flag means active; a
// missing signature becomes DefaultSignature.
func MapRow(row model.EmailTemplateRow) Template {
	t := Template{
		ID:         row.ID,
		Name:       row.Name,
		Subject:    row.Subject,
		Recipients: Recipients(row.Recipients),
		CC:         decodeList(row.CC),
		BCC:        decodeList(row.BCC),
		Body:       row.Body,
		Signature:  row.Signature.String,
		IsActive:   !row.IsActive.Valid || row.IsActive.Bool,
		Metadata:   map[string]any{},
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	if strings.TrimSpace(t.Signature) == "" {
		t.Signature = DefaultSignature
	}
	if row.Metadata.Valid {
		var meta map[string]any
		if err := json.Unmarshal([]byte(row.Metadata.String), &meta); err == nil && meta != nil {
			t.Metadata = meta
		}
	}
	return t
}

func decodeList(s string) []string {
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

// ToRow converts in to its persisted shape.
func ToRow(id string, in Input, createdAt, updatedAt time.Time) (model.EmailTemplateRow, error) {
	cc, err := json.Marshal(in.CC)
	if err != nil {
		return model.EmailTemplateRow{}, err
	}
	bcc, err := json.Marshal(in.BCC)
	if err != nil {
		return model.EmailTemplateRow{}, err
	}
	meta, err := json.Marshal(in.Metadata)
	if err != nil {
		return model.EmailTemplateRow{}, err
	}
	return model.EmailTemplateRow{
		ID:         id,
		Name:       in.Name,
		Subject:    in.Subject,
		Recipients: string(in.Recipients),
		CC:         string(cc),
		BCC:        string(bcc),
		Body:       in.Body,
		Signature:  sql.NullString{String: in.Signature, Valid: true},
		IsActive:   sql.NullBool{Bool: in.IsActive, Valid: true},
		Metadata:   sql.NullString{String: string(meta), Valid: true},
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}, nil
}

// SortTemplates orders templates by name.
func SortTemplates(ts []Template) {
	sort.SliceStable(ts, func(i, j int) bool { return ts[i].Name < ts[j].Name })
}
