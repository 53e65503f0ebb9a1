package server

import (
	"github.com/nulzo/misan-console/internal/server/middleware"
	v1 "github.com/nulzo/misan-console/internal/server/v1"
)

func (s *Server) SetupRoutes() {
	s.router.Use(middleware.CORS(s.config.Server.AllowedOrigins))
	s.router.Use(middleware.ErrorHandler(s.logger))

	healthHandler := v1.NewHealthHandler()
	s.router.GET("/health", healthHandler.Health)

	adminAuth := middleware.AdminAuth(s.config.Server.AdminKeys)
	rateLimit := s.limiter.Middleware()

	functions := v1.NewFunctionsHandler(s.services.Settings, s.services.Support)
	fn := s.router.Group("/functions/v1")
	fn.Use(rateLimit)
	{
		fn.POST("/public-get-pricing", functions.PublicGetPricing)
		fn.POST("/public-get-llm-settings", functions.PublicGetLLMSettings)
		fn.POST("/support-contact", functions.SupportContact)

		fn.POST("/admin-get-settings", adminAuth, functions.AdminGetSettings)
		fn.POST("/admin-update-settings", adminAuth, functions.AdminUpdateSettings)
	}

	admin := s.router.Group("/admin/v1")
	admin.Use(rateLimit, adminAuth)
	{
		settingsHandler := v1.NewSettingsHandler(s.services.Settings)
		admin.GET("/settings/site", settingsHandler.GetSite)
		admin.PUT("/settings/site", settingsHandler.PutSite)
		admin.GET("/settings/pricing", settingsHandler.GetPricing)
		admin.PUT("/settings/pricing", settingsHandler.PutPricing)
		admin.GET("/settings/payment", settingsHandler.GetPayment)
		admin.PUT("/settings/payment", settingsHandler.PutPayment)
		admin.GET("/settings/llm", settingsHandler.GetLLM)
		admin.PUT("/settings/llm", settingsHandler.PutLLM)

		assistantHandler := v1.NewAssistantHandler(s.services.Settings, s.services.Translate, s.logger)
		admin.GET("/assistant-functions", assistantHandler.List)
		admin.POST("/assistant-functions/translate", assistantHandler.Translate)

		rules := v1.NewAlertRuleHandler(s.services.Alerts)
		admin.GET("/alert-rules", rules.List)
		admin.POST("/alert-rules", rules.Create)
		admin.GET("/alert-rules/:id", rules.Get)
		admin.PUT("/alert-rules/:id", rules.Update)
		admin.DELETE("/alert-rules/:id", rules.Delete)
		admin.PATCH("/alert-rules/:id/active", rules.SetActive)
		admin.POST("/alert-rules/:id/preview", rules.Preview)

		templates := v1.NewEmailTemplateHandler(s.services.EmailTemplates)
		admin.GET("/email-templates", templates.List)
		admin.POST("/email-templates", templates.Create)
		admin.GET("/email-templates/:id", templates.Get)
		admin.PUT("/email-templates/:id", templates.Update)
		admin.DELETE("/email-templates/:id", templates.Delete)
		admin.PATCH("/email-templates/:id/active", templates.SetActive)
		admin.POST("/email-templates/:id/preview", templates.Preview)

		activity := v1.NewActivityHandler(s.services.Support, s.services.Audit)
		admin.GET("/support-messages", activity.SupportMessages)
		admin.GET("/audit-events", activity.AuditEvents)
	}
}
