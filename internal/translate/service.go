package translate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/nulzo/misan-console/internal/assistant"
	"github.com/nulzo/misan-console/internal/settings"
	"github.com/nulzo/misan-console/internal/taskqueue"
	"github.com/nulzo/misan-console/internal/validation"
)

// SettingsStore is the part of settings.Service the translator needs.
type SettingsStore interface {
	LoadLLMSettings(ctx context.Context) settings.LLMSettings
	SaveLLMSettings(ctx context.Context, l settings.LLMSettings) error
}

// Task is one function translated into one locale.
type Task struct {
	FunctionID string `json:"functionId"`
	Locale     string `json:"locale"`
}

// Progress is reported after every task.
type Progress struct {
	Task  Task   `json:"task"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
	Error string `json:"error,omitempty"`
}

type Failure struct {
	Task
	Error string `json:"error"`
}

// Result summarizes a TranslateAll run.
type Result struct {
	Total      int       `json:"total"`
	Translated int       `json:"translated"`
	Failures   []Failure `json:"failures"`
	Saved      bool      `json:"saved"`
}

type Service struct {
	settings    SettingsStore
	translator  Translator
	concurrency int
	logger      *zap.Logger
}

func NewService(store SettingsStore, translator Translator, concurrency int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{settings: store, translator: translator, concurrency: concurrency, logger: logger}
}

// NormalizeLocales trims, lowercases and de-duplicates locales, keeping order.
func NormalizeLocales(locales []string) []string {
	seen := make(map[string]bool, len(locales))
	out := make([]string, 0, len(locales))
	for _, l := range locales {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// TranslateAll translates every enabled function into each locale. Failed
// tasks are reported and do not stop the run. Whatever succeeded is merged
// into the function metadata and saved once at the end.
func (s *Service) TranslateAll(ctx context.Context, locales []string, onProgress func(Progress)) (Result, error) {
	locales = NormalizeLocales(locales)
	if len(locales) == 0 {
		return Result{}, validation.NewError("locales", "at least one locale is required")
	}

	llm := s.settings.LoadLLMSettings(ctx)

	ids := make([]string, 0, len(llm.AssistantFunctions))
	for id, fn := range llm.AssistantFunctions {
		if fn.Enabled && !sourceTexts(fn).IsZero() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	tasks := make([]Task, 0, len(ids)*len(locales))
	for _, id := range ids {
		for _, l := range locales {
			tasks = append(tasks, Task{FunctionID: id, Locale: l})
		}
	}

	var mu sync.Mutex
	translated := make(map[Task]assistant.Translation, len(tasks))

	opts := taskqueue.Options{Concurrency: s.concurrency}
	if onProgress != nil {
		opts.OnProgress = func(p taskqueue.Progress) {
			prog := Progress{Task: tasks[p.Index], Done: p.Done, Total: p.Total}
			if p.Err != nil {
				prog.Error = p.Err.Error()
			}
			onProgress(prog)
		}
	}

	report := taskqueue.Run(ctx, tasks, opts, func(ctx context.Context, t Task) error {
		out, err := s.translator.Translate(ctx, t.Locale, sourceTexts(llm.AssistantFunctions[t.FunctionID]))
		if err != nil {
			return err
		}
		mu.Lock()
		translated[t] = out
		mu.Unlock()
		return nil
	})

	res := Result{Total: report.Total, Translated: report.Succeeded, Failures: []Failure{}}
	for _, f := range report.Failures {
		res.Failures = append(res.Failures, Failure{Task: f.Item, Error: f.Err.Error()})
		s.logger.Warn("translation failed",
			zap.String("function", f.Item.FunctionID),
			zap.String("locale", f.Item.Locale),
			zap.Error(f.Err),
		)
	}

	if len(translated) == 0 {
		return res, nil
	}

	// the loaded settings may be shared with concurrent readers
	functions := make(map[string]assistant.FunctionConfig, len(llm.AssistantFunctions))
	for id, fn := range llm.AssistantFunctions {
		fn.Metadata = cloneMetadata(fn.Metadata)
		functions[id] = fn
	}
	for t, tr := range translated {
		fn := functions[t.FunctionID]
		if fn.Metadata == nil {
			fn.Metadata = &assistant.Metadata{}
		}
		fn.Metadata.SetTranslation(t.Locale, tr)
		functions[t.FunctionID] = fn
	}
	llm.AssistantFunctions = functions

	if err := s.settings.SaveLLMSettings(ctx, llm); err != nil {
		return res, fmt.Errorf("save translations: %w", err)
	}
	res.Saved = true

	s.logger.Info("assistant functions translated",
		zap.Strings("locales", locales),
		zap.Int("translated", res.Translated),
		zap.Int("failed", len(res.Failures)),
	)
	return res, nil
}

func sourceTexts(fn assistant.FunctionConfig) assistant.Translation {
	return assistant.Translation{
		Name:              strings.TrimSpace(fn.Name),
		Description:       strings.TrimSpace(fn.Description),
		InvitationMessage: strings.TrimSpace(fn.InvitationMessage),
	}
}

func cloneMetadata(m *assistant.Metadata) *assistant.Metadata {
	if m == nil {
		return nil
	}
	out := &assistant.Metadata{Extra: m.Extra}
	for l, t := range m.Translations {
		out.SetTranslation(l, t)
	}
	return out
}
