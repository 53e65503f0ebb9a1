package assistant

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFillsMissingName(t *testing.T) {
	got := SanitizeFunctions(map[string]any{
		"drafting": map[string]any{"description": "  Drafts contracts "},
		"blank":    map[string]any{"name": "   "},
	})

	require.Len(t, got, 2)
	assert.Equal(t, "Assistant drafting", got["drafting"].Name)
	assert.Equal(t, "Drafts contracts", got["drafting"].Description)
	assert.Equal(t, "Assistant blank", got["blank"].Name)
	assert.Equal(t, DefaultProvider, got["drafting"].Provider)
	assert.Equal(t, DefaultModelConfigID, got["drafting"].ModelConfigID)
	assert.True(t, got["drafting"].Enabled)
	assert.Equal(t, PromptSource{Type: PromptLocal, LocalPromptID: "drafting"}, got["drafting"].Prompt)
}

func TestSanitizeNumbersKeepUnsetApart(t *testing.T) {
	raw := json.RawMessage(`{
		"f": {"temperature": 0, "topP": "", "maxTokens": "512", "responseFormat": "JSON", "tags": [" a ", "", 3, "b"]}
	}`)
	f := SanitizeFunctions(raw)["f"]

	require.NotNil(t, f.Temperature)
	assert.Equal(t, 0.0, *f.Temperature)
	assert.Nil(t, f.TopP)
	require.NotNil(t, f.MaxTokens)
	assert.Equal(t, 512, *f.MaxTokens)
	assert.Equal(t, FormatJSON, f.ResponseFormat)
	assert.Equal(t, []string{"a", "b"}, f.Tags)

	f = SanitizeFunctions(map[string]any{"g": map[string]any{"responseFormat": "xml", "temperature": "hot"}})["g"]
	assert.Equal(t, FormatText, f.ResponseFormat)
	assert.Nil(t, f.Temperature)
}

func TestSanitizeUnusableInputYieldsDefaults(t *testing.T) {
	for name, raw := range map[string]any{
		"nil":       nil,
		"array":     []any{1, 2},
		"bad json":  "{nope",
		"no object": map[string]any{"x": "string entry"},
		"empty":     map[string]any{},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, Defaults(), SanitizeFunctions(raw))
		})
	}
}

func TestSanitizePromptUnion(t *testing.T) {
	got := SanitizeFunctions(map[string]any{
		"a": map[string]any{"prompt": map[string]any{"type": "openai_assistant", "assistantId": "asst_1", "version": "3", "promptId": "ignored"}},
		"p": map[string]any{"prompt": map[string]any{"type": "openai_prompt", "promptId": "pmpt_1"}},
		"x": map[string]any{"prompt": map[string]any{"type": "weird"}},
	})

	assert.Equal(t, PromptSource{Type: PromptOpenAIAssistant, AssistantID: "asst_1", Version: "3"}, got["a"].Prompt)
	assert.Equal(t, PromptSource{Type: PromptOpenAIPrompt, PromptID: "pmpt_1"}, got["p"].Prompt)
	assert.Equal(t, PromptSource{Type: PromptLocal, LocalPromptID: "x"}, got["x"].Prompt)
	assert.True(t, got["a"].HasOpenAIReference())
	assert.False(t, got["x"].HasOpenAIReference())
}

func TestLegacyDocumentsLiftOpenAIReferences(t *testing.T) {
	raw := map[string]any{
		"a": map[string]any{"openaiAssistantId": "asst_9", "openaiAssistantVersion": "2"},
		"p": map[string]any{"openaiPromptId": "pmpt_9"},
	}

	legacy := SanitizeLegacyFunctions(raw, "1.4.0")
	assert.Equal(t, PromptSource{Type: PromptOpenAIAssistant, AssistantID: "asst_9", Version: "2"}, legacy["a"].Prompt)
	assert.Equal(t, PromptSource{Type: PromptOpenAIPrompt, PromptID: "pmpt_9"}, legacy["p"].Prompt)

	current := SanitizeLegacyFunctions(raw, CurrentSchemaVersion)
	assert.Equal(t, PromptLocal, current["a"].Prompt.Type)

	assert.True(t, IsLegacySchema(""))
	assert.True(t, IsLegacySchema("1.9.9"))
	assert.False(t, IsLegacySchema("2.0.0"))
	assert.False(t, IsLegacySchema("2.1"))
}

func TestPublicProjectionHidesKeysAndDisabled(t *testing.T) {
	fns := SanitizeFunctions(map[string]any{
		"on":  map[string]any{"apiKeyName": "openai", "prompt": map[string]any{"type": "openai_prompt", "promptId": "p"}},
		"off": map[string]any{"enabled": false, "apiKeyName": "openai"},
	})
	pub := ToPublicFunctions(fns)

	require.Len(t, pub, 1)
	assert.True(t, pub["on"].HasOpenAIReference)

	data, err := json.Marshal(pub)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "apiKeyName")
}

func TestMetadataTranslationsRoundTrip(t *testing.T) {
	fns := SanitizeFunctions(map[string]any{
		"f": map[string]any{"metadata": map[string]any{
			"color": "blue",
			"translations": map[string]any{
				"fr": map[string]any{"name": " Conversation juridique "},
				"ar": map[string]any{"name": ""},
			},
		}},
	})
	meta := fns["f"].Metadata
	require.NotNil(t, meta)
	assert.Equal(t, []string{"fr"}, meta.Locales())
	assert.Equal(t, "Conversation juridique", meta.Translations["fr"].Name)
	assert.Equal(t, "blue", meta.Extra["color"])

	meta.SetTranslation("ar", Translation{Name: "محادثة"})
	data, err := json.Marshal(meta)
	require.NoError(t, err)

	var back Metadata
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []string{"ar", "fr"}, back.Locales())
	assert.Equal(t, "blue", back.Extra["color"])
}
