// Package alerts manages the alert rules shown to users when their account
// matches a condition (plan expiry, token balance, announcements).
package alerts

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

type TriggerType string

const (
	TriggerScheduled       TriggerType = "scheduled"
	TriggerLogin           TriggerType = "login"
	TriggerAssistantAccess TriggerType = "assistant_access"
)

type Target string

const (
	TargetSubscription Target = "subscription"
	TargetTokens       Target = "tokens"
	TargetGeneral      Target = "general"
)

type Comparator string

const (
	ComparatorLT Comparator = "<"
	ComparatorLE Comparator = "<="
	ComparatorEQ Comparator = "="
	ComparatorGE Comparator = ">="
	ComparatorGT Comparator = ">"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Label is the human readable severity, as shown in the admin table.
func (s Severity) Label() string {
	switch s {
	case SeverityInfo:
		return "Info"
	case SeverityWarning:
		return "Warning"
	case SeverityError:
		return "Error"
	default:
		return string(s)
	}
}

type Role string

const (
	RolePro     Role = "pro"
	RolePremium Role = "premium"
	RoleAny     Role = "any"
)

// AccountStatus selects the accounts a general announcement applies to.
type AccountStatus string

const (
	StatusActive   AccountStatus = "active"
	StatusInactive AccountStatus = "inactive"
	StatusExpired  AccountStatus = "expired"
)

// Placeholders available in message templates.
var Placeholders = []string{"days", "tokens", "user_name"}

// Metadata is the per-rule metadata. StatusFilter is only meaningful for
// general announcements; other keys are carried through Extra untouched.
type Metadata struct {
	StatusFilter []AccountStatus `json:"-"`
	Extra        map[string]any  `json:"-"`
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+1)
	for k, v := range m.Extra {
		out[k] = v
	}
	if len(m.StatusFilter) > 0 {
		out["statusFilter"] = m.StatusFilter
	}
	return json.Marshal(out)
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = parseMetadata(raw)
	return nil
}

func parseMetadata(raw map[string]any) Metadata {
	var m Metadata
	for k, v := range raw {
		if k == "statusFilter" {
			m.StatusFilter = parseStatusFilter(v)
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]any)
		}
		m.Extra[k] = v
	}
	return m
}

func parseStatusFilter(v any) []AccountStatus {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	values := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			values = append(values, s)
		}
	}
	return normalizeStatuses(values)
}

// normalizeStatuses keeps known statuses, deduplicated, in input order.
func normalizeStatuses(values []string) []AccountStatus {
	seen := make(map[AccountStatus]bool)
	var out []AccountStatus
	for _, v := range values {
		s := AccountStatus(strings.ToLower(strings.TrimSpace(v)))
		switch s {
		case StatusActive, StatusInactive, StatusExpired:
		default:
			continue
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Rule is an alert rule.
type Rule struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Description     string      `json:"description,omitempty"`
	TriggerType     TriggerType `json:"triggerType"`
	Target          Target      `json:"target"`
	Comparator      Comparator  `json:"comparator"`
	Threshold       float64     `json:"threshold"`
	Severity        Severity    `json:"severity"`
	MessageTemplate string      `json:"messageTemplate"`
	AppliesToRole   Role        `json:"appliesToRole"`
	IsBlocking      bool        `json:"isBlocking"`
	IsActive        bool        `json:"isActive"`
	Metadata        Metadata    `json:"metadata"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// SortRules orders rules by target, threshold and name.
func SortRules(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		if a.Threshold != b.Threshold {
			return a.Threshold < b.Threshold
		}
		return a.Name < b.Name
	})
}
