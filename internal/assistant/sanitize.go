package assistant

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hashicorp/go-version"
)

// CurrentSchemaVersion is written into every saved LLM settings document.
// Documents older than 2.0.0 kept OpenAI references as top-level fields.
const CurrentSchemaVersion = "2.0.0"

var promptUnionSince = version.Must(version.NewVersion("2.0.0"))

// IsLegacySchema reports whether a document written with schemaVersion predates
// the prompt union. Blank or unparseable versions count as legacy.
func IsLegacySchema(schemaVersion string) bool {
	v, err := version.NewVersion(strings.TrimSpace(schemaVersion))
	if err != nil {
		return true
	}
	return v.LessThan(promptUnionSince)
}

// ParseNumber reads a numeric knob. It returns nil, never zero, for absent,
// blank or non-numeric input so that callers can tell "unset" from 0.
func ParseNumber(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func parseInt(v any) *int {
	f := ParseNumber(v)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}

// SanitizeFunctions normalizes a raw assistant function map written with the
// current schema. See SanitizeLegacyFunctions.
func SanitizeFunctions(raw any) map[string]FunctionConfig {
	return sanitize(raw, false)
}

// SanitizeLegacyFunctions is SanitizeFunctions for a document written with
// schemaVersion; older documents get their OpenAI references lifted into the
// prompt union.
func SanitizeLegacyFunctions(raw any, schemaVersion string) map[string]FunctionConfig {
	return sanitize(raw, IsLegacySchema(schemaVersion))
}

// sanitize accepts any decoded JSON value (or raw JSON bytes) and always
// returns a well-formed map. Non-object input, or input without a single
// usable entry, yields Defaults().
func sanitize(raw any, legacy bool) map[string]FunctionConfig {
	entries, ok := asObject(raw)
	if !ok || len(entries) == 0 {
		return Defaults()
	}

	out := make(map[string]FunctionConfig, len(entries))
	for key, value := range entries {
		entry, ok := value.(map[string]any)
		if !ok {
			continue
		}
		id := strings.TrimSpace(key)
		if id == "" {
			id = stringField(entry, "id")
		}
		if id == "" {
			continue
		}
		out[id] = sanitizeEntry(id, entry, legacy)
	}

	if len(out) == 0 {
		return Defaults()
	}
	return out
}

func asObject(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case map[string]any:
		return v, true
	case map[string]FunctionConfig:
		// already typed: round-trip through JSON so the same rules apply
		data, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		return asObject(json.RawMessage(data))
	case json.RawMessage:
		return decodeObject(v)
	case []byte:
		return decodeObject(v)
	case string:
		return decodeObject([]byte(v))
	default:
		return nil, false
	}
}

func decodeObject(data []byte) (map[string]any, bool) {
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, false
	}
	m, ok := decoded.(map[string]any)
	return m, ok
}

func sanitizeEntry(id string, entry map[string]any, legacy bool) FunctionConfig {
	cfg := FunctionConfig{
		ID:                id,
		Name:              stringField(entry, "name"),
		Description:       stringField(entry, "description"),
		Provider:          stringField(entry, "provider"),
		ModelConfigID:     stringField(entry, "modelConfigId"),
		APIKeyName:        stringField(entry, "apiKeyName"),
		Temperature:       ParseNumber(entry["temperature"]),
		TopP:              ParseNumber(entry["topP"]),
		MaxTokens:         parseInt(entry["maxTokens"]),
		ResponseFormat:    parseResponseFormat(entry["responseFormat"]),
		Enabled:           parseEnabled(entry["enabled"]),
		Tags:              parseTags(entry["tags"]),
		InvitationMessage: stringField(entry, "invitationMessage"),
	}

	if cfg.Name == "" {
		cfg.Name = fmt.Sprintf("Assistant %s", id)
	}
	if cfg.Provider == "" {
		cfg.Provider = DefaultProvider
	}
	if cfg.ModelConfigID == "" {
		cfg.ModelConfigID = DefaultModelConfigID
	}

	prompt, _ := entry["prompt"].(map[string]any)
	if prompt == nil && legacy {
		prompt = liftLegacyPrompt(entry)
	}
	cfg.Prompt = parsePrompt(id, prompt)

	if meta, ok := entry["metadata"].(map[string]any); ok && len(meta) > 0 {
		m := parseMetadata(meta)
		if len(m.Translations) > 0 || len(m.Extra) > 0 {
			cfg.Metadata = &m
		}
	}

	return cfg
}

// liftLegacyPrompt maps pre-2.0 top-level fields onto a prompt object.
func liftLegacyPrompt(entry map[string]any) map[string]any {
	if id := stringField(entry, "openaiAssistantId"); id != "" {
		return map[string]any{
			"type":        string(PromptOpenAIAssistant),
			"assistantId": id,
			"version":     stringField(entry, "openaiAssistantVersion"),
		}
	}
	if id := stringField(entry, "openaiPromptId"); id != "" {
		return map[string]any{"type": string(PromptOpenAIPrompt), "promptId": id}
	}
	if id := stringField(entry, "promptId"); id != "" {
		return map[string]any{"type": string(PromptLocal), "localPromptId": id}
	}
	return nil
}

func parsePrompt(id string, raw map[string]any) PromptSource {
	t := PromptType(stringField(raw, "type"))
	switch t {
	case PromptOpenAIPrompt:
		return PromptSource{Type: t, PromptID: stringField(raw, "promptId")}
	case PromptOpenAIAssistant:
		return PromptSource{
			Type:        t,
			AssistantID: stringField(raw, "assistantId"),
			Version:     stringField(raw, "version"),
		}
	default:
		local := stringField(raw, "localPromptId")
		if local == "" {
			local = id
		}
		return PromptSource{Type: PromptLocal, LocalPromptID: local}
	}
}

func parseResponseFormat(v any) ResponseFormat {
	s, _ := v.(string)
	switch f := ResponseFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatAuto:
		return f
	default:
		return FormatText
	}
}

// parseEnabled treats a missing flag as enabled.
func parseEnabled(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "false", "0", "no", "off":
			return false
		}
		return true
	case float64:
		return b != 0
	default:
		return true
	}
}

func parseTags(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var tags []string
	for _, t := range list {
		s, ok := t.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			tags = append(tags, s)
		}
	}
	return tags
}

// ToPublicFunctions drops disabled functions and strips internal fields.
func ToPublicFunctions(functions map[string]FunctionConfig) map[string]PublicFunctionConfig {
	out := make(map[string]PublicFunctionConfig, len(functions))
	for id, f := range functions {
		if !f.Enabled {
			continue
		}
		out[id] = PublicFunctionConfig{
			ID:                 f.ID,
			Name:               f.Name,
			Description:        f.Description,
			Provider:           f.Provider,
			ModelConfigID:      f.ModelConfigID,
			Prompt:             f.Prompt,
			Temperature:        f.Temperature,
			TopP:               f.TopP,
			MaxTokens:          f.MaxTokens,
			ResponseFormat:     f.ResponseFormat,
			Enabled:            f.Enabled,
			Tags:               f.Tags,
			Metadata:           f.Metadata,
			InvitationMessage:  f.InvitationMessage,
			HasOpenAIReference: f.HasOpenAIReference(),
		}
	}
	return out
}

// HasOpenAIReference is true when the function points at an OpenAI prompt or assistant.
func (f FunctionConfig) HasOpenAIReference() bool {
	return f.Prompt.AssistantID != "" || f.Prompt.PromptID != ""
}
