package alerts

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nulzo/misan-console/internal/store/model"
	"github.com/nulzo/misan-console/internal/templating"
	"github.com/nulzo/misan-console/internal/validation"
)

// NumberText is a numeric form field kept as text until validation. It
// accepts either a JSON string or a JSON number.
type NumberText string

func (n *NumberText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = NumberText(s)
		return nil
	}
	*n = NumberText(data)
	return nil
}

// FormState is the admin form as submitted.
type FormState struct {
	Name            string         `json:"name" validate:"required,max=200"`
	Description     string         `json:"description" validate:"max=2000"`
	TriggerType     TriggerType    `json:"triggerType" validate:"required,oneof=scheduled login assistant_access"`
	Target          Target         `json:"target" validate:"required,oneof=subscription tokens general"`
	Comparator      Comparator     `json:"comparator" validate:"omitempty,oneof=< <= = >= >"`
	Threshold       NumberText     `json:"threshold"`
	Severity        Severity       `json:"severity" validate:"required,oneof=info warning error"`
	MessageTemplate string         `json:"messageTemplate" validate:"required"`
	AppliesToRole   Role           `json:"appliesToRole" validate:"required,oneof=pro premium any"`
	IsBlocking      *bool          `json:"isBlocking"`
	IsActive        *bool          `json:"isActive"`
	StatusFilter    []string       `json:"statusFilter"`
	Metadata        map[string]any `json:"metadata"`
}

// Input is a validated rule ready to persist.
type Input struct {
	Name            string
	Description     string
	TriggerType     TriggerType
	Target          Target
	Comparator      Comparator
	Threshold       float64
	Severity        Severity
	MessageTemplate string
	AppliesToRole   Role
	IsBlocking      bool
	IsActive        bool
	Metadata        Metadata
}

// ValidateForm checks f and converts it to an Input. General announcements
// get the neutral comparator and threshold and keep their status filter;
// other targets drop it.
func ValidateForm(f FormState) (Input, error) {
	f.Name = strings.TrimSpace(f.Name)
	f.Description = strings.TrimSpace(f.Description)
	f.MessageTemplate = strings.TrimSpace(f.MessageTemplate)
	if f.TriggerType == "" {
		f.TriggerType = TriggerScheduled
	}
	if f.AppliesToRole == "" {
		f.AppliesToRole = RoleAny
	}
	if f.Severity == "" {
		f.Severity = SeverityInfo
	}

	verr := &validation.Error{}
	if err := validation.Struct(f); err != nil {
		if fe, ok := validation.As(err); ok {
			for k, v := range fe.Fields {
				verr.Add(k, v)
			}
		}
	}

	in := Input{
		Name:            f.Name,
		Description:     f.Description,
		TriggerType:     f.TriggerType,
		Target:          f.Target,
		Comparator:      f.Comparator,
		Severity:        f.Severity,
		MessageTemplate: f.MessageTemplate,
		AppliesToRole:   f.AppliesToRole,
		IsActive:        true,
		Metadata:        parseMetadata(f.Metadata),
	}
	if f.IsBlocking != nil {
		in.IsBlocking = *f.IsBlocking
	}
	if f.IsActive != nil {
		in.IsActive = *f.IsActive
	}

	if f.Target == TargetGeneral {
		in.Comparator = ComparatorEQ
		in.Threshold = 0
		statuses := f.StatusFilter
		if statuses == nil {
			for _, s := range in.Metadata.StatusFilter {
				statuses = append(statuses, string(s))
			}
		}
		in.Metadata.StatusFilter = normalizeStatuses(statuses)
	} else {
		in.Metadata.StatusFilter = nil
		if in.Comparator == "" {
			verr.Add("comparator", "comparator is a required field")
		}
		threshold, ok := parseThreshold(string(f.Threshold))
		if !ok {
			verr.Add("threshold", "threshold must be a number")
		}
		in.Threshold = threshold
	}

	if unknown := templating.Unknown(f.MessageTemplate, Placeholders); len(unknown) > 0 {
		verr.Add("messageTemplate", fmt.Sprintf("unknown placeholder {{%s}}, use one of %s", unknown[0], strings.Join(Placeholders, ", ")))
	}

	if err := verr.OrNil(); err != nil {
		return Input{}, err
	}
	return in, nil
}

// plainNumber is the decimal notation the form accepts. It leaves out the
// extra syntax of strconv such as "1_000", "0x10" or "Inf".
var plainNumber = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

func parseThreshold(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !plainNumber.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ToFormState is the inverse of ValidateForm, used to prefill the edit form.
func ToFormState(r Rule) FormState {
	blocking, active := r.IsBlocking, r.IsActive
	f := FormState{
		Name:            r.Name,
		Description:     r.Description,
		TriggerType:     r.TriggerType,
		Target:          r.Target,
		Comparator:      r.Comparator,
		Threshold:       NumberText(strconv.FormatFloat(r.Threshold, 'f', -1, 64)),
		Severity:        r.Severity,
		MessageTemplate: r.MessageTemplate,
		AppliesToRole:   r.AppliesToRole,
		IsBlocking:      &blocking,
		IsActive:        &active,
		Metadata:        r.Metadata.Extra,
	}
	for _, s := range r.Metadata.StatusFilter {
		f.StatusFilter = append(f.StatusFilter, string(s))
	}
	if r.Target == TargetGeneral && f.StatusFilter == nil {
		f.StatusFilter = []string{}
	}
	return f
}

// MapRow converts a persisted row. Missing flags default to not blocking and
// active; missing or unreadable metadata becomes empty.
func MapRow(row model.AlertRuleRow) Rule {
	r := Rule{
		ID:              row.ID,
		Name:            row.Name,
		Description:     row.Description.String,
		TriggerType:     TriggerType(row.TriggerType),
		Target:          Target(row.Target),
		Comparator:      Comparator(row.Comparator),
		Threshold:       row.Threshold,
		Severity:        Severity(row.Severity),
		MessageTemplate: row.MessageTemplate,
		AppliesToRole:   Role(row.AppliesToRole),
		IsBlocking:      row.IsBlocking.Valid && row.IsBlocking.Bool,
		IsActive:        !row.IsActive.Valid || row.IsActive.Bool,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	if row.Metadata.Valid {
		var raw map[string]any
		if err := json.Unmarshal([]byte(row.Metadata.String), &raw); err == nil {
			r.Metadata = parseMetadata(raw)
		}
	}
	return r
}

// ToRow converts in to its persisted shape.
func ToRow(id string, in Input, createdAt, updatedAt time.Time) (model.AlertRuleRow, error) {
	meta, err := json.Marshal(in.Metadata)
	if err != nil {
		return model.AlertRuleRow{}, err
	}
	return model.AlertRuleRow{
		ID:              id,
		Name:            in.Name,
		Description:     sql.NullString{String: in.Description, Valid: in.Description != ""},
		TriggerType:     string(in.TriggerType),
		Target:          string(in.Target),
		Comparator:      string(in.Comparator),
		Threshold:       in.Threshold,
		Severity:        string(in.Severity),
		MessageTemplate: in.MessageTemplate,
		AppliesToRole:   string(in.AppliesToRole),
		IsBlocking:      sql.NullBool{Bool: in.IsBlocking, Valid: true},
		IsActive:        sql.NullBool{Bool: in.IsActive, Valid: true},
		Metadata:        sql.NullString{String: string(meta), Valid: true},
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}, nil
}
