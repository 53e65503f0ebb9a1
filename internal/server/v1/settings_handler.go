package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/misan-console/internal/settings"
	"github.com/nulzo/misan-console/pkg/api"
)

type SettingsHandler struct {
	service *settings.Service
}

func NewSettingsHandler(service *settings.Service) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// GET /admin/v1/settings/site
func (h *SettingsHandler) GetSite(c *gin.Context) {
	c.JSON(http.StatusOK, api.DataResponse[settings.SiteSettings]{Data: h.service.LoadSiteSettings(c.Request.Context())})
}

// PUT /admin/v1/settings/site
func (h *SettingsHandler) PutSite(c *gin.Context) {
	var body settings.SiteSettings
	if !bindJSON(c, &body) {
		return
	}
	if err := h.service.SaveSiteSettings(c.Request.Context(), body); err != nil {
		_ = c.Error(err)
		return
	}
	h.GetSite(c)
}

// GET /admin/v1/settings/pricing
func (h *SettingsHandler) GetPricing(c *gin.Context) {
	c.JSON(http.StatusOK, api.DataResponse[settings.PricingSettings]{Data: h.service.LoadPricingSettings(c.Request.Context())})
}

// PUT /admin/v1/settings/pricing
func (h *SettingsHandler) PutPricing(c *gin.Context) {
	var body settings.PricingSettings
	if !bindJSON(c, &body) {
		return
	}
	if err := h.service.SavePricingSettings(c.Request.Context(), body); err != nil {
		_ = c.Error(err)
		return
	}
	h.GetPricing(c)
}

// GET /admin/v1/settings/payment
func (h *SettingsHandler) GetPayment(c *gin.Context) {
	c.JSON(http.StatusOK, api.DataResponse[settings.PaymentSettings]{Data: h.service.LoadPaymentSettings(c.Request.Context())})
}

// PUT /admin/v1/settings/payment
func (h *SettingsHandler) PutPayment(c *gin.Context) {
	var body settings.PaymentSettings
	if !bindJSON(c, &body) {
		return
	}
	if err := h.service.SavePaymentSettings(c.Request.Context(), body); err != nil {
		_ = c.Error(err)
		return
	}
	h.GetPayment(c)
}

// GET /admin/v1/settings/llm
func (h *SettingsHandler) GetLLM(c *gin.Context) {
	c.JSON(http.StatusOK, api.DataResponse[settings.LLMSettings]{Data: h.service.LoadLLMSettings(c.Request.Context())})
}

// PUT /admin/v1/settings/llm
func (h *SettingsHandler) PutLLM(c *gin.Context) {
	var body settings.LLMSettings
	if !bindJSON(c, &body) {
		return
	}
	if err := h.service.SaveLLMSettings(c.Request.Context(), body); err != nil {
		_ = c.Error(err)
		return
	}
	h.GetLLM(c)
}
