package assistant

import (
	"encoding/json"
	"sort"
	"strings"
)

// Translation holds the localized display texts of a function.
type Translation struct {
	Name              string `json:"name,omitempty"`
	Description       string `json:"description,omitempty"`
	InvitationMessage string `json:"invitationMessage,omitempty"`
}

// IsZero reports whether no text is set.
func (t Translation) IsZero() bool {
	return t.Name == "" && t.Description == "" && t.InvitationMessage == ""
}

// Metadata is the free-form bag attached to a function. Translations is the
// only key with a known shape; everything else round-trips through Extra.
type Metadata struct {
	Translations map[string]Translation `json:"-"`
	Extra        map[string]any         `json:"-"`
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+1)
	for k, v := range m.Extra {
		out[k] = v
	}
	if len(m.Translations) > 0 {
		out["translations"] = m.Translations
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

// Locales lists the locales that have a translation, sorted.
func (m *Metadata) Locales() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.Translations))
	for l := range m.Translations {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// SetTranslation stores t for locale, creating the map if needed.
func (m *Metadata) SetTranslation(locale string, t Translation) {
	if m.Translations == nil {
		m.Translations = make(map[string]Translation)
	}
	m.Translations[locale] = t
}

func parseMetadata(raw map[string]any) Metadata {
	var m Metadata
	for k, v := range raw {
		if k == "translations" {
			m.Translations = parseTranslations(v)
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]any)
		}
		m.Extra[k] = v
	}
	return m
}

func parseTranslations(v any) map[string]Translation {
	byLocale, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]Translation, len(byLocale))
	for locale, entry := range byLocale {
		fields, ok := entry.(map[string]any)
		locale = strings.TrimSpace(locale)
		if !ok || locale == "" {
			continue
		}
		t := Translation{
			Name:              stringField(fields, "name"),
			Description:       stringField(fields, "description"),
			InvitationMessage: stringField(fields, "invitationMessage"),
		}
		if !t.IsZero() {
			out[locale] = t
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}
