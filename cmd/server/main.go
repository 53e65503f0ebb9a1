package main

import (
	"context"
	"encoding/json"
	"errors"
	_ "expvar"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nulzo/misan-console/internal/alerts"
	"github.com/nulzo/misan-console/internal/audit"
	"github.com/nulzo/misan-console/internal/backend"
	"github.com/nulzo/misan-console/internal/config"
	"github.com/nulzo/misan-console/internal/emailtemplates"
	"github.com/nulzo/misan-console/internal/httpclient"
	"github.com/nulzo/misan-console/internal/platform/logger"
	"github.com/nulzo/misan-console/internal/platform/otel"
	"github.com/nulzo/misan-console/internal/server"
	"github.com/nulzo/misan-console/internal/settings"
	"github.com/nulzo/misan-console/internal/store/cache"
	"github.com/nulzo/misan-console/internal/store/sqlite"
	"github.com/nulzo/misan-console/internal/support"
	"github.com/nulzo/misan-console/internal/translate"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	logger.Initialize(logger.ConfigFrom(cfg.Log.Level, cfg.Log.Format))
	log := logger.Named("server")
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := otel.InitTracer(cfg.Tracing, log, os.Stdout)
	if err != nil {
		log.Fatal("failed to init tracer", zap.Error(err))
	}
	defer func() {
		_ = shutdownTracer(context.Background())
	}()

	repo, err := sqlite.NewSQLiteStorage(cfg.Database.DSN, log)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer repo.Close()

	var settingsCache cache.CacheService = cache.NewMemoryCache()
	if cfg.Redis.Enabled {
		client, err := cache.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer client.Close()
		settingsCache = cache.NewRedisCache(client, "misan:")
		log.Info("settings cache backed by redis", zap.String("addr", cfg.Redis.Addr))
	}

	ingestor := audit.NewIngestor(logger.Named("audit"), repo)
	ingestor.Start(ctx)

	settingsSvc := settings.NewService(repo,
		settings.NewMemo(settingsCache, cfg.Cache.TTL, log),
		logger.Named("settings"),
		append(remotePricingSources(cfg, log), settings.WithAudit(ingestor))...,
	)

	services := server.Services{
		Settings:       settingsSvc,
		Alerts:         alerts.NewService(repo, logger.Named("alerts"), ingestor),
		EmailTemplates: emailtemplates.NewService(repo, logger.Named("email_templates"), ingestor),
		Support:        support.NewService(repo, logger.Named("support")),
		Translate:      newTranslateService(cfg, settingsSvc),
		Audit:          audit.NewLog(repo),
	}

	srv := server.New(cfg, log, services)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Server.Env != "production" {
		// expvar and pprof register on the default mux
		go func() {
			_ = http.ListenAndServe("127.0.0.1:6060", nil)
		}()
	}

	go func() {
		log.Info("server listening", zap.String("addr", httpServer.Addr), zap.String("env", cfg.Server.Env))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	ingestor.Stop()
}

// remotePricingSources wires a remote deployment into the pricing chain when
// backend.base_url is set.
func remotePricingSources(cfg *config.Config, log *zap.Logger) []settings.Option {
	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.APIKey, backend.WithLogger(log))
	if !client.Configured() {
		return nil
	}
	log.Info("remote pricing sources enabled", zap.String("base_url", cfg.Backend.BaseURL))
	return []settings.Option{
		settings.WithPublicPricingSource(settings.NewRemotePricingSource("remote:"+backend.FnPublicGetPricing,
			func(ctx context.Context) (json.RawMessage, error) { return client.PublicPricing(ctx) })),
		settings.WithAdminPricingSource(settings.NewRemotePricingSource("remote:"+backend.FnAdminGetSettings,
			func(ctx context.Context) (json.RawMessage, error) { return client.AdminSettings(ctx) })),
	}
}

// newTranslateService uses translation.api_key, or the LLM settings entry
// named by translation.api_key_name.
func newTranslateService(cfg *config.Config, settingsSvc *settings.Service) *translate.Service {
	tc := cfg.Translation
	translator := translate.NewChatTranslator(tc.BaseURL, tc.APIKey, tc.Model,
		translate.WithHTTPClient(httpclient.New(tc.Timeout)),
		translate.WithKeyResolver(func(ctx context.Context) string {
			return settingsSvc.LoadLLMSettings(ctx).APIKeys[tc.APIKeyName]
		}),
	)
	return translate.NewService(settingsSvc, translator, tc.Concurrency, logger.Named("translate"))
}
