// Command authserver serves the registration, login, verification and reset
// endpoints over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.uber.org/zap"

	auth "github.com/Tadeu17/authentication-template"
	"github.com/Tadeu17/authentication-template/internal/appconfig"
	"github.com/Tadeu17/authentication-template/internal/httpapi"
	"github.com/Tadeu17/authentication-template/internal/logger"
	"github.com/Tadeu17/authentication-template/mail"
	"github.com/Tadeu17/authentication-template/mail/smtp"
	prometheus "github.com/Tadeu17/authentication-template/metrics/export/prometheus"
	"github.com/Tadeu17/authentication-template/store"
	"github.com/Tadeu17/authentication-template/store/memory"
	"github.com/Tadeu17/authentication-template/store/postgres"
	"github.com/Tadeu17/authentication-template/store/redisstore"
)

const shutdownTimeout = 10 * time.Second

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load before reading the environment")
	flag.Parse()

	if err := run(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, "authserver:", err)
		os.Exit(1)
	}
}

func run(envFile string) error {
	cfg, err := appconfig.Load(envFile)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		log.Warn("config warning", zap.String("detail", w))
	}
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore.Close(); err != nil {
			log.Warn("store close failed", zap.Error(err))
		}
	}()

	mailer, err := newMailer(cfg, log)
	if err != nil {
		return err
	}

	engine, err := auth.New().
		WithConfig(cfg.AuthConfig()).
		WithStore(st).
		WithMailer(mailer).
		WithLogger(log).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	api := httpapi.New(engine, engine.Sessions(), httpapi.Options{
		BaseURL: cfg.BaseURL,
		Metrics: prometheus.NewPrometheusExporter(engine).Handler(),
		Log:     log,
	})

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{cfg.BaseURL}
	}
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", httpapi.RequestIDHeader},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           corsMiddleware.Handler(api.Router()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started",
			zap.String("port", cfg.Port),
			zap.String("storage", cfg.StorageBackend),
			zap.String("email", cfg.EmailBackend),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func openStore(ctx context.Context, cfg *appconfig.Config) (store.Store, io.Closer, error) {
	switch cfg.StorageBackend {
	case appconfig.StoragePostgres:
		pg, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg, nil

	case appconfig.StorageRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping error: %w", err)
		}
		return redisstore.New(client, redisstore.Config{}), client, nil

	default:
		return memory.New(), closerFunc(func() error { return nil }), nil
	}
}

func newMailer(cfg *appconfig.Config, log *zap.Logger) (mail.Mailer, error) {
	switch cfg.EmailBackend {
	case appconfig.EmailSMTP:
		return smtp.New(cfg.SMTP)
	case appconfig.EmailMemory:
		return mail.NewRecorder(), nil
	default:
		return mail.NewConsole(log), nil
	}
}
