package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/misan-console/internal/alerts"
	"github.com/nulzo/misan-console/internal/templating"
	"github.com/nulzo/misan-console/pkg/api"
)

type AlertRuleHandler struct {
	service *alerts.Service
}

func NewAlertRuleHandler(service *alerts.Service) *AlertRuleHandler {
	return &AlertRuleHandler{service: service}
}

// GET /admin/v1/alert-rules?search=&page=&page_size=
func (h *AlertRuleHandler) List(c *gin.Context) {
	term, page, size, ok := pageQuery(c)
	if !ok {
		return
	}
	p, err := h.service.Query(c.Request.Context(), term, page, size)
	if err != nil {
		_ = c.Error(api.InternalError("Failed to load alert rules", err))
		return
	}
	c.JSON(http.StatusOK, listResponse(p))
}

// GET /admin/v1/alert-rules/:id
func (h *AlertRuleHandler) Get(c *gin.Context) {
	rule, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, api.DataResponse[alerts.Rule]{Data: rule})
}

// POST /admin/v1/alert-rules
func (h *AlertRuleHandler) Create(c *gin.Context) {
	var form alerts.FormState
	if !bindJSON(c, &form) {
		return
	}
	rule, err := h.service.Create(c.Request.Context(), form)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, api.DataResponse[alerts.Rule]{Data: rule})
}

// PUT /admin/v1/alert-rules/:id
func (h *AlertRuleHandler) Update(c *gin.Context) {
	var form alerts.FormState
	if !bindJSON(c, &form) {
		return
	}
	rule, err := h.service.Update(c.Request.Context(), c.Param("id"), form)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, api.DataResponse[alerts.Rule]{Data: rule})
}

// DELETE /admin/v1/alert-rules/:id
func (h *AlertRuleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PATCH /admin/v1/alert-rules/:id/active
func (h *AlertRuleHandler) SetActive(c *gin.Context) {
	var req api.ActiveRequest
	if !bindJSON(c, &req) {
		return
	}
	rule, err := h.service.SetActive(c.Request.Context(), c.Param("id"), *req.IsActive)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, api.DataResponse[alerts.Rule]{Data: rule})
}

// POST /admin/v1/alert-rules/:id/preview
func (h *AlertRuleHandler) Preview(c *gin.Context) {
	var req api.PreviewRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	rule, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, api.PreviewResponse{
		Rendered:  alerts.PreviewMessage(rule, req.Variables),
		Variables: orEmpty(templating.Variables(rule.MessageTemplate)),
		Unknown:   orEmpty(templating.Unknown(rule.MessageTemplate, alerts.Placeholders)),
	})
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
