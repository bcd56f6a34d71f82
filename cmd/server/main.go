package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/nutriscan/backend/config"
	httpDelivery "github.com/nutriscan/backend/internal/delivery/http"
	"github.com/nutriscan/backend/internal/domain"
	"github.com/nutriscan/backend/internal/infrastructure/barcode"
	"github.com/nutriscan/backend/internal/infrastructure/cache"
	"github.com/nutriscan/backend/internal/infrastructure/openai"
	"github.com/nutriscan/backend/internal/infrastructure/openfoodfacts"
	"github.com/nutriscan/backend/internal/logging"
	"github.com/nutriscan/backend/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.Log.Level)
	slog.SetDefault(logger)

	logger.Info("starting NutriScan backend",
		"environment", cfg.Server.Environment,
		"port", cfg.Server.Port,
		"cache", cfg.Cache.Type,
		"cache_ttl", cfg.Cache.TTL)

	productCache, closeCache, err := newCache(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}

	offClient := openfoodfacts.NewClient(openfoodfacts.ClientConfig{
		BaseURL:           cfg.Lookup.BaseURL,
		Locale:            cfg.Lookup.Locale,
		Timeout:           cfg.Lookup.Timeout,
		RequestsPerMinute: cfg.Lookup.RequestsPerMinute,
	}, logger)

	products := usecase.NewProductService(productCache, offClient, usecase.ProductServiceConfig{
		CacheTTL: cfg.Cache.TTL,
	}, logger)

	openaiConfig := openai.Config{
		APIKey:          cfg.OpenAI.APIKey,
		BaseURL:         cfg.OpenAI.BaseURL,
		TextModel:       cfg.OpenAI.TextModel,
		VisionModel:     cfg.OpenAI.VisionModel,
		Timeout:         cfg.OpenAI.Timeout,
		MaxTokens:       cfg.OpenAI.MaxTokens,
		VisionMaxTokens: cfg.OpenAI.VisionMaxTokens,
		Temperature:     cfg.OpenAI.Temperature,
	}
	openaiClient := openai.NewClient(openaiConfig, logger)
	if !openai.HasUsableKey(cfg.OpenAI.APIKey) {
		logger.Warn("OpenAI API key not configured: enrichment is skipped and image analysis will fail")
	}

	search := usecase.NewSearchService(
		products,
		openai.NewEnricher(openaiClient, openaiConfig),
		usecase.NewIdentifierNormalizer(logger),
		usecase.NewStateStore(logger),
		logger,
	)

	images := usecase.NewImageSession(
		openai.NewVision(openaiClient, openaiConfig),
		search,
		usecase.ImageSessionConfig{MaxImageBytes: cfg.Capture.MaxImageBytes},
		logger,
	)

	guard := usecase.NewCameraGuard()
	decoder := barcode.NewDecoder(logger)
	sessionConfig := usecase.BarcodeSessionConfig{
		MinCodeLength: cfg.Capture.MinCodeLength,
		Formats:       domain.DefaultSymbologies,
	}
	newSession := func(camera domain.Camera) *usecase.BarcodeSession {
		return usecase.NewBarcodeSession(camera, guard, decoder, search, sessionConfig, logger)
	}

	handler := httpDelivery.NewHandler(search, images, newSession, httpDelivery.HandlerConfig{
		MaxImageBytes:  cfg.Capture.MaxImageBytes,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, logger)
	router := httpDelivery.SetupRouter(cfg, handler, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.Server.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				logger.Info("graceful shutdown initiated")
				return srv.Shutdown(ctx)
			},
			"cache": func(context.Context) error {
				return closeCache()
			},
		},
	)

	exitCode := <-wait
	logger.Info("server exited", "code", exitCode)
	os.Exit(exitCode)
}

// newCache builds the configured product cache and its close function.
func newCache(cfg *config.Config, logger *slog.Logger) (domain.CacheRepository, func() error, error) {
	switch cfg.Cache.Type {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		redisCache, err := cache.NewRedisCacheFromURL(ctx, cfg.Cache.RedisURL, "nutriscan:")
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using redis cache")
		return redisCache, redisCache.Close, nil
	default:
		memoryCache := cache.NewMemoryCache(10 * time.Minute)
		return memoryCache, memoryCache.Close, nil
	}
}
