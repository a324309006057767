package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"asseto/internal/adapter/repo"
	"asseto/internal/domain"
	"asseto/internal/http/handlers"
	"asseto/internal/http/httpapi"
	"asseto/internal/infra"
	"asseto/internal/infra/credentials"
	"asseto/internal/infra/geoip"
	"asseto/internal/middleware"
	"asseto/internal/providers/genai"
	"asseto/internal/providers/image"
	"asseto/internal/providers/prompt"
	"asseto/internal/session"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLoggerTo(os.Stdout, cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var repository domain.ProjectRepository
	if cfg.Persistent() {
		pool, err := infra.NewDBPool(ctx, cfg, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()

		runner := infra.NewSQLRunner(pool, logger)
		if err := repo.EnsureSchema(ctx, runner); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare schema")
		}
		if err := credentials.NewStore(runner).Resolve(ctx, cfg); err != nil {
			logger.Warn().Err(err).Msg("credentials: stored tokens unavailable, using environment")
		}
		repository = repo.NewProjectRepository(runner)
	} else {
		logger.Warn().Msg("DATABASE_URL not set; projects are kept in memory only")
	}

	var countryLookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip: resolver disabled")
	} else if resolver != nil {
		defer resolver.Close()
		countryLookup = resolver.CountryCode
	}

	client, err := genai.NewClient(genai.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		ImageModel: cfg.GeminiImageModel,
		TextModel:  cfg.GeminiTextModel,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build gemini client")
	}
	if client.Synthetic() {
		logger.Warn().Msg("GEMINI_API_KEY not set; generating synthetic placeholder images")
	}

	refiner, err := buildRefiner(cfg, client, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build refiner")
	}
	styles, err := prompt.NewGeminiStyleExtractor(client)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build style extractor")
	}

	sess, err := session.New(ctx, session.Options{
		Generator:         image.NewGeminiGenerator(client),
		Refiner:           refiner,
		StyleExtractor:    styles,
		Repository:        repository,
		Concurrency:       cfg.GenerationConcurrency,
		Timeout:           cfg.GenerationTimeout,
		ExportConcurrency: cfg.ExportConcurrency,
		JPEGQuality:       cfg.ExportJPEGQuality,
		Logger:            &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start session")
	}

	app := handlers.NewApp(sess, &logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          &logger,
		CountryLookup:   countryLookup,
		DefaultLocale:   cfg.DefaultLocale,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})
	server := infra.NewHTTPServer(cfg, router)

	logger.Info().Str("addr", server.Addr()).Msg("API listening")
	if err := server.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("http server failed")
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := sess.Close(closeCtx); err != nil {
		logger.Error().Err(err).Msg("failed to flush session")
	}
	logger.Info().Msg("server stopped")
}

// buildRefiner chains Gemini, then OpenAI when a key is configured, then the
// static refiner.
func buildRefiner(cfg *infra.Config, client *genai.Client, logger *infra.Logger) (prompt.Refiner, error) {
	var fallback prompt.Refiner = prompt.NewStaticRefiner()
	if cfg.OpenAIAPIKey != "" {
		openai, err := prompt.NewOpenAIRefiner(prompt.OpenAIOptions{
			APIKey:       cfg.OpenAIAPIKey,
			Model:        cfg.OpenAIModel,
			BaseURL:      cfg.OpenAIBaseURL,
			Organization: cfg.OpenAIOrg,
			HTTPClient:   &http.Client{Timeout: 15 * time.Second},
			OnFallback: func(reason string, err error) {
				logger.Warn().Err(err).Str("reason", reason).Msg("refiner: openai fallback")
			},
			OnWarning: func(code, detail string) {
				logger.Warn().Str("code", code).Str("detail", detail).Msg("refiner: openai warning")
			},
		})
		if err != nil {
			return nil, err
		}
		fallback = openai
	}
	return prompt.NewGeminiRefiner(prompt.GeminiOptions{
		Client:   client,
		Fallback: fallback,
		OnFallback: func(reason string, err error) {
			logger.Warn().Err(err).Str("reason", reason).Msg("refiner: gemini fallback")
		},
	})
}
