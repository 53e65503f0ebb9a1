package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/misan-console/internal/audit"
	"github.com/nulzo/misan-console/internal/store/model"
	"github.com/nulzo/misan-console/internal/support"
	"github.com/nulzo/misan-console/pkg/api"
)

// ActivityHandler exposes the append-only records: contact messages and the audit trail.
type ActivityHandler struct {
	support *support.Service
	audit   *audit.Log
}

func NewActivityHandler(messages *support.Service, log *audit.Log) *ActivityHandler {
	return &ActivityHandler{support: messages, audit: log}
}

func limitQuery(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		_ = c.Error(api.BadRequestError("Invalid 'limit' parameter"))
		return 0, false
	}
	return n, true
}

// GET /admin/v1/support-messages?limit=
func (h *ActivityHandler) SupportMessages(c *gin.Context) {
	limit, ok := limitQuery(c)
	if !ok {
		return
	}
	msgs, err := h.support.Recent(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if msgs == nil {
		msgs = []model.SupportMessage{}
	}
	c.JSON(http.StatusOK, api.DataResponse[[]model.SupportMessage]{Data: msgs})
}

// GET /admin/v1/audit-events?limit=
func (h *ActivityHandler) AuditEvents(c *gin.Context) {
	limit, ok := limitQuery(c)
	if !ok {
		return
	}
	events, err := h.audit.Recent(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if events == nil {
		events = []model.AuditEvent{}
	}
	c.JSON(http.StatusOK, api.DataResponse[[]model.AuditEvent]{Data: events})
}
