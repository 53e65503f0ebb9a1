package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/misan-console/internal/settings"
	"github.com/nulzo/misan-console/internal/support"
)

// FunctionsHandler serves the function-style RPC surface (POST /functions/v1/{name}).
type FunctionsHandler struct {
	settings *settings.Service
	support  *support.Service
}

func NewFunctionsHandler(s *settings.Service, sup *support.Service) *FunctionsHandler {
	return &FunctionsHandler{settings: s, support: sup}
}

// AdminGetSettings returns every settings kind.
//
// POST /functions/v1/admin-get-settings
func (h *FunctionsHandler) AdminGetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.settings.AdminSettings(c.Request.Context()))
}

// AdminUpdateSettings validates and saves the parts present in the body.
//
// POST /functions/v1/admin-update-settings
func (h *FunctionsHandler) AdminUpdateSettings(c *gin.Context) {
	var patch settings.AdminSettingsPatch
	if !bindJSON(c, &patch) {
		return
	}
	if err := h.settings.UpdateAdminSettings(c.Request.Context(), patch); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"settings": h.settings.AdminSettings(c.Request.Context()),
	})
}

// PublicGetPricing returns the pricing resolved through the fallback chain.
//
// POST /functions/v1/public-get-pricing
func (h *FunctionsHandler) PublicGetPricing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pricing": h.settings.LoadPricingSettings(c.Request.Context())})
}

// PublicGetLLMSettings returns the client-safe model and assistant function list.
//
// POST /functions/v1/public-get-llm-settings
func (h *FunctionsHandler) PublicGetLLMSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.settings.PublicLLMSettings(c.Request.Context()))
}

// SupportContact stores a contact form message.
//
// POST /functions/v1/support-contact
func (h *FunctionsHandler) SupportContact(c *gin.Context) {
	var msg support.Message
	if !bindJSON(c, &msg) {
		return
	}
	receipt, err := h.support.Submit(c.Request.Context(), msg, c.ClientIP())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "id": receipt.ID, "receivedAt": receipt.ReceivedAt})
}
