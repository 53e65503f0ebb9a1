package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/misan-console/internal/alerts"
	"github.com/nulzo/misan-console/internal/emailtemplates"
	"github.com/nulzo/misan-console/internal/templating"
	"github.com/nulzo/misan-console/pkg/api"
)

type EmailTemplateHandler struct {
	service *emailtemplates.Service
}

func NewEmailTemplateHandler(service *emailtemplates.Service) *EmailTemplateHandler {
	return &EmailTemplateHandler{service: service}
}

// GET /admin/v1/email-templates?search=&page=&page_size=
func (h *EmailTemplateHandler) List(c *gin.Context) {
	term, page, size, ok := pageQuery(c)
	if !ok {
		return
	}
	p, err := h.service.Query(c.Request.Context(), term, page, size)
	if err != nil {
		_ = c.Error(api.InternalError("Failed to load email templates", err))
		return
	}
	c.JSON(http.StatusOK, listResponse(p))
}

// GET /admin/v1/email-templates/:id
func (h *EmailTemplateHandler) Get(c *gin.Context) {
	t, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, api.DataResponse[emailtemplates.Template]{Data: t})
}

// POST /admin/v1/email-templates
func (h *EmailTemplateHandler) Create(c *gin.Context) {
	var form emailtemplates.FormState
	if !bindJSON(c, &form) {
		return
	}
	t, err := h.service.Create(c.Request.Context(), form)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, api.DataResponse[emailtemplates.Template]{Data: t})
}

// PUT /admin/v1/email-templates/:id
func (h *EmailTemplateHandler) Update(c *gin.Context) {
	var form emailtemplates.FormState
	if !bindJSON(c, &form) {
		return
	}
	t, err := h.service.Update(c.Request.Context(), c.Param("id"), form)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, api.DataResponse[emailtemplates.Template]{Data: t})
}

// DELETE /admin/v1/email-templates/:id
func (h *EmailTemplateHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PATCH /admin/v1/email-templates/:id/active
func (h *EmailTemplateHandler) SetActive(c *gin.Context) {
	var req api.ActiveRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.service.SetActive(c.Request.Context(), c.Param("id"), *req.IsActive)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, api.DataResponse[emailtemplates.Template]{Data: t})
}

// POST /admin/v1/email-templates/:id/preview
func (h *EmailTemplateHandler) Preview(c *gin.Context) {
	var req api.PreviewRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	t, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	subject, body := emailtemplates.Preview(t, req.Variables)
	text := t.Subject + "\n" + t.Body
	c.JSON(http.StatusOK, api.PreviewResponse{
		Subject:   subject,
		Rendered:  body,
		Variables: orEmpty(templating.Variables(text)),
		Unknown:   orEmpty(templating.Unknown(text, alerts.Placeholders)),
	})
}
