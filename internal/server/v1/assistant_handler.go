package v1

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nulzo/misan-console/internal/assistant"
	"github.com/nulzo/misan-console/internal/settings"
	"github.com/nulzo/misan-console/internal/translate"
	"github.com/nulzo/misan-console/pkg/api"
)

type AssistantHandler struct {
	settings   *settings.Service
	translator *translate.Service
	logger     *zap.Logger
}

// NewAssistantHandler builds the handler. translator may be nil, in which
// case bulk translation answers 503.
func NewAssistantHandler(s *settings.Service, translator *translate.Service, logger *zap.Logger) *AssistantHandler {
	return &AssistantHandler{settings: s, translator: translator, logger: logger}
}

// List returns the sanitized assistant functions sorted by id.
//
// GET /admin/v1/assistant-functions
func (h *AssistantHandler) List(c *gin.Context) {
	fns := h.settings.LoadLLMSettings(c.Request.Context()).AssistantFunctions
	out := make([]assistant.FunctionConfig, 0, len(fns))
	for _, fn := range fns {
		out = append(out, fn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	c.JSON(http.StatusOK, api.ListResponse[assistant.FunctionConfig]{
		Object:     "list",
		Data:       out,
		Page:       1,
		PageSize:   len(out),
		TotalItems: len(out),
		TotalPages: 1,
	})
}

type translateRequest struct {
	Locales []string `json:"locales" binding:"required,min=1"`
}

// Translate fills in the translations of every enabled function.
//
// POST /admin/v1/assistant-functions/translate
func (h *AssistantHandler) Translate(c *gin.Context) {
	if h.translator == nil {
		_ = c.Error(api.NewError(http.StatusServiceUnavailable, "Service Unavailable", "Translation is not configured"))
		return
	}

	var req translateRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.translator.TranslateAll(c.Request.Context(), req.Locales, func(p translate.Progress) {
		h.logger.Debug("translation progress",
			zap.String("function", p.Task.FunctionID),
			zap.String("locale", p.Task.Locale),
			zap.Int("done", p.Done),
			zap.Int("total", p.Total),
		)
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, api.DataResponse[translate.Result]{Data: res})
}
