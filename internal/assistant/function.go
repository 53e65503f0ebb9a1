// Package assistant normalizes the "assistant function" configurations stored
// in the LLM settings document and derives the projection served to clients.
package assistant

// PromptType discriminates the prompt source union.
type PromptType string

const (
	PromptLocal           PromptType = "local"
	PromptOpenAIPrompt    PromptType = "openai_prompt"
	PromptOpenAIAssistant PromptType = "openai_assistant"
)

// PromptSource says where a function's instructions come from. Only the
// fields of the variant named by Type are populated.
type PromptSource struct {
	Type PromptType `json:"type"`

	// local
	LocalPromptID string `json:"localPromptId,omitempty"`
	// openai_prompt
	PromptID string `json:"promptId,omitempty"`
	// openai_assistant
	AssistantID string `json:"assistantId,omitempty"`
	Version     string `json:"version,omitempty"`
}

// ResponseFormat is the output format requested from the model.
type ResponseFormat string

const (
	FormatText ResponseFormat = "text"
	FormatJSON ResponseFormat = "json"
	FormatAuto ResponseFormat = "auto"
)

// FunctionConfig is the canonical assistant function.
// Nil numeric knobs mean "use the provider default"; they are never coerced to zero.
type FunctionConfig struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Description       string         `json:"description"`
	Provider          string         `json:"provider"`
	ModelConfigID     string         `json:"modelConfigId"`
	APIKeyName        string         `json:"apiKeyName,omitempty"`
	Prompt            PromptSource   `json:"prompt"`
	Temperature       *float64       `json:"temperature"`
	TopP              *float64       `json:"topP"`
	MaxTokens         *int           `json:"maxTokens"`
	ResponseFormat    ResponseFormat `json:"responseFormat"`
	Enabled           bool           `json:"enabled"`
	Tags              []string       `json:"tags,omitempty"`
	Metadata          *Metadata      `json:"metadata,omitempty"`
	InvitationMessage string         `json:"invitationMessage,omitempty"`
}

// PublicFunctionConfig is what unauthenticated clients may see.
type PublicFunctionConfig struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Description        string         `json:"description"`
	Provider           string         `json:"provider"`
	ModelConfigID      string         `json:"modelConfigId"`
	Prompt             PromptSource   `json:"prompt"`
	Temperature        *float64       `json:"temperature"`
	TopP               *float64       `json:"topP"`
	MaxTokens          *int           `json:"maxTokens"`
	ResponseFormat     ResponseFormat `json:"responseFormat"`
	Enabled            bool           `json:"enabled"`
	Tags               []string       `json:"tags,omitempty"`
	Metadata           *Metadata      `json:"metadata,omitempty"`
	InvitationMessage  string         `json:"invitationMessage,omitempty"`
	HasOpenAIReference bool           `json:"hasOpenAiReference"`
}

// Defaults returns the built-in function set used when the stored one is unusable.
func Defaults() map[string]FunctionConfig {
	return map[string]FunctionConfig{
		"conversation": {
			ID:                "conversation",
			Name:              "Legal conversation",
			Description:       "Answers legal questions in a conversational style.",
			Provider:          DefaultProvider,
			ModelConfigID:     DefaultModelConfigID,
			Prompt:            PromptSource{Type: PromptLocal, LocalPromptID: "conversation"},
			ResponseFormat:    FormatText,
			Enabled:           true,
			InvitationMessage: "Ask me any legal question.",
		},
		"summary": {
			ID:             "summary",
			Name:           "Document summary",
			Description:    "Summarizes legal documents.",
			Provider:       DefaultProvider,
			ModelConfigID:  DefaultModelConfigID,
			Prompt:         PromptSource{Type: PromptLocal, LocalPromptID: "summary"},
			ResponseFormat: FormatText,
			Enabled:        true,
		},
	}
}

const (
	DefaultProvider      = "openai"
	DefaultModelConfigID = "gpt35"
)
