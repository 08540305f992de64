package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/auth"
	"quiz-room-service/internal/config"
	"quiz-room-service/internal/infra/generator"
	"quiz-room-service/internal/infra/memory"
	pgbank "quiz-room-service/internal/infra/postgres"
	redisinfra "quiz-room-service/internal/infra/redis"
	transport "quiz-room-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	defaultGenerationTimeout = 30 * time.Second
	shutdownTimeout          = 5 * time.Second
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz room server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	if cfg.Auth.AccessTokenSecret == "" {
		return errors.New("auth.access_token_secret is required")
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	provider := buildProvider(cfg, redisClient, pool, logger)

	registryOpts := []app.RegistryOption{app.WithLogger(logger)}
	if redisClient != nil {
		redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
		registryOpts = append(registryOpts, app.WithDirectory(redisinfra.NewRoomDirectory(redisClient, redisTTL)))
	}
	registry := app.NewRegistry(registryOpts...)

	resolver := auth.NewResolver(cfg.Auth.AccessTokenSecret, cfg.Auth.CookieName)
	generationTimeout := config.TTLDuration(cfg.Quiz.GenerationTimeout, defaultGenerationTimeout)
	dispatcher := transport.NewDispatcher(registry, provider, logger, generationTimeout)

	clientOpts := transport.DefaultClientOptions()
	clientOpts.ReadLimit = cfg.WS.ReadLimit
	clientOpts.SendBuffer = cfg.WS.SendBuffer
	clientOpts.RatePerSecond = cfg.WS.RatePerSecond
	clientOpts.Burst = cfg.WS.Burst

	mux := transport.NewRouter(
		transport.NewWSHandler(resolver, dispatcher, logger, cfg.Server.AllowedOrigin, clientOpts),
		transport.NewRoomsHandler(resolver, registry, logger),
	)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting quiz room service", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildProvider picks the question source from what is configured: the
// external generator (archived to Postgres when available), the Postgres
// bank, or the built-in demo sets. A positive cache_ttl puts a cache in front,
// in Redis when configured.
func buildProvider(cfg config.Config, redisClient *redis.Client, pool *pgxpool.Pool, log *slog.Logger) app.QuestionProvider {
	var source memory.QuestionSource
	switch {
	case cfg.Quiz.GeneratorURL != "":
		timeout := config.TTLDuration(cfg.Quiz.GenerationTimeout, defaultGenerationTimeout)
		source = generator.NewClient(cfg.Quiz.GeneratorURL, timeout)
		if pool != nil {
			source = pgbank.NewArchivingSource(source, pgbank.NewQuestionBank(pool), log)
		}
	case pool != nil:
		source = pgbank.NewQuestionBank(pool)
	default:
		log.Warn("no question generator configured, serving demo questions")
		source = memory.NewStaticQuestionBank(demoQuestionSets())
	}

	cacheTTL := config.TTLDuration(cfg.Quiz.CacheTTL, 0)
	if cacheTTL <= 0 {
		return source
	}
	if redisClient != nil {
		return redisinfra.NewQuestionCache(redisClient, source, cacheTTL, log)
	}
	return memory.NewQuestionCache(source, cacheTTL)
}
