// Package translate fills in the localized display texts of assistant
// functions using a chat completion model.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nulzo/misan-console/internal/assistant"
	"github.com/nulzo/misan-console/internal/httpclient"
	"github.com/nulzo/misan-console/pkg/api"
)

// Translator turns the source texts of a function into locale.
type Translator interface {
	Translate(ctx context.Context, locale string, src assistant.Translation) (assistant.Translation, error)
}

var (
	// ErrEmptyCompletion is returned when the model answers with no usable text.
	ErrEmptyCompletion = errors.New("translation model returned no content")
	// ErrNoAPIKey is returned when neither a static key nor the resolver yields one.
	ErrNoAPIKey = errors.New("no api key configured for translation")
)

const systemPrompt = `You translate user interface texts of a legal assistant product.
Reply with a single JSON object with the keys "name", "description" and "invitationMessage".
Translate each non-empty value into the requested language and keep empty values empty.
Do not add explanations.`

// ChatTranslator calls an OpenAI-compatible /chat/completions endpoint.
type ChatTranslator struct {
	baseURL string
	apiKey  string
	model   string
	client  httpclient.HTTPClient
	keyFunc func(ctx context.Context) string
}

type ChatOption func(*ChatTranslator)

func WithHTTPClient(c httpclient.HTTPClient) ChatOption {
	return func(t *ChatTranslator) { t.client = c }
}

// WithKeyResolver looks the API key up per call when no static key is set,
// e.g. from the apiKeys map of the LLM settings.
func WithKeyResolver(fn func(ctx context.Context) string) ChatOption {
	return func(t *ChatTranslator) { t.keyFunc = fn }
}

func NewChatTranslator(baseURL, apiKey, model string, opts ...ChatOption) *ChatTranslator {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	t := &ChatTranslator{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  httpclient.New(0),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *ChatTranslator) apiKeyFor(ctx context.Context) string {
	if t.apiKey != "" || t.keyFunc == nil {
		return t.apiKey
	}
	return strings.TrimSpace(t.keyFunc(ctx))
}

func (t *ChatTranslator) Translate(ctx context.Context, locale string, src assistant.Translation) (assistant.Translation, error) {
	key := t.apiKeyFor(ctx)
	if key == "" {
		return assistant.Translation{}, ErrNoAPIKey
	}

	payload, err := json.Marshal(src)
	if err != nil {
		return assistant.Translation{}, fmt.Errorf("encode source texts: %w", err)
	}

	req := &api.ChatRequest{
		Model: t.model,
		Messages: []api.ChatMessage{
			{Role: api.System, Content: api.Content{Text: systemPrompt}},
			{Role: api.User, Content: api.Content{Text: fmt.Sprintf("Target language: %s\n%s", locale, payload)}},
		},
		ResponseFormat: &api.ResponseFormat{Type: "json_object"},
		Temperature:    0.2,
	}

	var resp api.ChatResponse
	url := t.baseURL + "/chat/completions"
	if err := httpclient.SendRequest(ctx, t.client, http.MethodPost, url, httpclient.Bearer(key), req, &resp); err != nil {
		var upstream *httpclient.UpstreamError
		if errors.As(err, &upstream) {
			return assistant.Translation{}, fmt.Errorf("translate to %s: %s", locale, upstream.Message())
		}
		return assistant.Translation{}, fmt.Errorf("translate to %s: %w", locale, err)
	}
	if resp.Error != nil {
		return assistant.Translation{}, fmt.Errorf("translate to %s: %w", locale, resp.Error)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return assistant.Translation{}, ErrEmptyCompletion
	}

	return parseCompletion(resp.Choices[0].Message.Content.String())
}

// parseCompletion reads the JSON object out of the model's answer, tolerating
// a surrounding markdown code fence.
func parseCompletion(text string) (assistant.Translation, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if text == "" {
		return assistant.Translation{}, ErrEmptyCompletion
	}

	var out assistant.Translation
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return assistant.Translation{}, fmt.Errorf("decode translation: %w", err)
	}
	out.Name = strings.TrimSpace(out.Name)
	out.Description = strings.TrimSpace(out.Description)
	out.InvitationMessage = strings.TrimSpace(out.InvitationMessage)
	if out.IsZero() {
		return assistant.Translation{}, ErrEmptyCompletion
	}
	return out, nil
}
