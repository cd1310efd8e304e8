package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"photobooth/internal/catalog"
	"photobooth/internal/generation"
	"photobooth/internal/http/handlers"
	httpapi "photobooth/internal/http/httpapi"
	"photobooth/internal/infra"
	"photobooth/internal/infra/geoip"
	"photobooth/internal/middleware"
	"photobooth/internal/orchestrator"
	"photobooth/internal/payment"
	"photobooth/internal/printer"
	"photobooth/internal/publish"
	"photobooth/internal/storage"
	"photobooth/internal/tenant"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)
	ctx := context.Background()

	cat, err := catalog.LoadFile(cfg.OptionsFile, cfg.OptionsReferenceDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load option catalog")
	}
	logger.Info().Int("options", cat.Len()).Msg("option catalog loaded")

	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("provider", cfg.GenerationProvider).Msg("failed to create generation client")
	}
	gen = generation.WithRetry(gen, generation.RetryPolicy{MaxRetries: cfg.GenerationMaxRetries, BaseDelay: time.Second}, logger)

	store, staticDir, err := newObjectStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("failed to create object storage")
	}
	if store == nil {
		logger.Warn().Msg("object storage not configured; /image-generator will answer 503")
	}
	pub := publish.New(store, publish.Options{KeyPrefix: cfg.StorageKeyPrefix, QRSize: cfg.QRSize})

	tenantStore, closeStore, err := newTenantStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to create tenant store")
	}
	defer closeStore()

	var svc *tenant.Service
	opts := orchestrator.Options{
		QREnabled:    cfg.QREnabled,
		Timeout:      cfg.GenerationTimeout,
		CostPerImage: cfg.GenerationCostUSD,
		Logger:       logger,
	}
	if tenantStore != nil {
		svc = tenant.NewService(tenantStore)
		opts.Tenants = svc
		if cfg.JWTSecret == "" {
			logger.Warn().Msg("JWT_SECRET not set; bearer tokens are decoded without signature checks")
		}
	}

	var lookup middleware.CountryLookup
	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		lookup = resolver.CountryCode
		defer resolver.Close()
	}

	app := &handlers.App{
		Catalog:      cat,
		Orchestrator: orchestrator.New(cat, gen, pub, opts),
		Tenants:      svc,
		Printer: printer.NewSpooler(printer.NewCommandPrinter(cfg.PrinterCommand, cfg.PrinterName), printer.Options{
			SpoolDir:  cfg.PrintSpoolDir,
			MaxCopies: cfg.PrintMaxCopies,
			Logger:    logger,
		}),
		Payments: payment.NewProvider(payment.Options{
			DLLPath:    cfg.EFTPOSDLLPath,
			ComPort:    cfg.EFTPOSComPort,
			TimeoutSec: cfg.EFTPOSTimeout,
			Charset:    cfg.EFTPOSCharset,
			Logger:     logger,
		}),
		Logger:            logger,
		GenerationTimeout: cfg.GenerationTimeout,
		PaymentTimeout:    time.Duration(cfg.EFTPOSTimeout) * time.Second,
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   lookup,
		JWTSecret:       cfg.JWTSecret,
		RateLimitPerMin: cfg.RateLimitPerMin,
		StaticDir:       staticDir,
		Logger:          logger,
	})

	server := infra.NewHTTPServer(cfg, router, logger)

	go func() {
		logger.Info().
			Str("provider", cfg.GenerationProvider).
			Str("storage", cfg.StorageDriver).
			Str("store", cfg.StoreDriver).
			Msg("starting api")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func newGenerator(ctx context.Context, cfg *infra.Config) (generation.Client, error) {
	switch cfg.GenerationProvider {
	case infra.ProviderGemini:
		return generation.NewGeminiClient(ctx, generation.GeminiOptions{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.GeminiImageModel,
			AspectRatio: cfg.GeminiAspectRatio,
			ImageSize:   cfg.GeminiImageSize,
		})
	default:
		return generation.NewOpenAIClient(generation.OpenAIOptions{
			APIKey:        cfg.OpenAIAPIKey,
			BaseURL:       cfg.OpenAIBaseURL,
			Model:         cfg.OpenAIImageModel,
			Size:          cfg.OpenAIImageSize,
			Quality:       cfg.OpenAIImageQuality,
			InputFidelity: cfg.OpenAIInputFidelity,
			PartialImages: cfg.OpenAIPartialImages,
		})
	}
}

// newObjectStore returns nil when storage is disabled. The second value is
// the directory to serve under /static for the filesystem driver.
func newObjectStore(ctx context.Context, cfg *infra.Config) (storage.ObjectStore, string, error) {
	switch cfg.StorageDriver {
	case infra.StorageS3:
		s, err := storage.NewS3Store(ctx, storage.S3Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
			PublicBaseURL:   cfg.S3PublicBaseURL,
		})
		if err != nil {
			return nil, "", err
		}
		return s, "", nil
	case infra.StorageFilesystem:
		s, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
		if err != nil {
			return nil, "", err
		}
		return s, s.BasePath(), nil
	default:
		return nil, "", nil
	}
}

func newTenantStore(ctx context.Context, cfg *infra.Config, logger infra.Logger) (tenant.Store, func(), error) {
	noop := func() {}
	switch cfg.StoreDriver {
	case infra.StoreMemory:
		logger.Warn().Msg("using in-memory tenant store; events are lost on restart")
		return tenant.NewMemoryStore(), noop, nil
	case infra.StorePostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		return tenant.NewPostgresStore(infra.NewSQLRunner(pool, logger)), pool.Close, nil
	case infra.StoreSupabase:
		s, err := tenant.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	default:
		return nil, noop, nil
	}
}
