package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	airformgin "github.com/pilab-dev/airform/api/gin"
	"github.com/pilab-dev/airform/cache"
	rediscache "github.com/pilab-dev/airform/cache/redis"
	"github.com/pilab-dev/airform/config"
	"github.com/pilab-dev/airform/internal/airtable"
	"github.com/pilab-dev/airform/internal/credentials"
	"github.com/pilab-dev/airform/internal/crypto"
	"github.com/pilab-dev/airform/internal/formsync"
	"github.com/pilab-dev/airform/internal/metrics"
	"github.com/pilab-dev/airform/internal/oauthflow"
	"github.com/pilab-dev/airform/internal/server"
	"github.com/pilab-dev/airform/internal/telemetry"
	applog "github.com/pilab-dev/airform/log"
	"github.com/pilab-dev/airform/mongodb"
	"github.com/pilab-dev/airform/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("airform stopped")
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	appLogger := applog.Setup(cfg.LogLevel, cfg.LogPretty)
	ctx := appLogger.Zerolog().WithContext(context.Background())

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	appLogger.Info(ctx, "configuration loaded", cfg.LogFields())

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
		if err != nil {
			return fmt.Errorf("init tracer provider: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				appLogger.Error(ctx, "tracer provider shutdown failed", err)
			}
		}()
	}

	metrics.InitCustomMetrics(prometheus.DefaultRegisterer)

	mp, err := telemetry.InitMeterProvider(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("init meter provider: %w", err)
	}
	defer telemetry.Shutdown(context.Background(), mp)

	if err := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
		return fmt.Errorf("connect to mongodb: %w", err)
	}
	defer mongodb.CloseMongoDB(context.Background())

	cipher, err := crypto.NewTokenCipher(cfg.TokenEncryptionKey)
	if err != nil {
		return fmt.Errorf("token cipher: %w", err)
	}

	repos, err := mongodb.NewRepositories(ctx, mongodb.GetDB(), cipher)
	if err != nil {
		return err
	}

	client, err := airtable.NewHTTPClient(airtable.Config{
		ClientID:          cfg.AirtableClientID,
		ClientSecret:      cfg.AirtableClientSecret,
		RedirectURL:       cfg.AirtableRedirectURI,
		AuthURL:           cfg.AirtableAuthURL,
		TokenURL:          cfg.AirtableTokenURL,
		APIURL:            cfg.AirtableAPIURL,
		Timeout:           cfg.AirtableHTTPTimeout,
		RequestsPerSecond: cfg.AirtableRateLimit,
	})
	if err != nil {
		return fmt.Errorf("airtable client: %w", err)
	}

	creds := credentials.NewStore(repos.Users, client, credentials.WithSkew(cfg.TokenExpirySkew))

	attempts, closeAttempts, err := newAttemptStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAttempts()

	sessions, err := oauthflow.NewSessionIssuer(cfg.JWTSecretKey, cfg.SessionIssuer, cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("session issuer: %w", err)
	}

	flow := oauthflow.New(client, attempts, creds, sessions, oauthflow.WithAttemptTTL(cfg.AuthAttemptTTL))
	engine := formsync.NewEngine(client, creds, repos.Submissions)
	api := airformgin.NewAPI(flow, engine, creds, repos.Forms, repos.Submissions, cfg.FrontendURL)

	httpServer := server.NewHTTPServer(cfg, appLogger, api, mongodb.Ping)

	serveErr := make(chan error, 1)
	go func() {
		appLogger.Info(ctx, "HTTP server listening", applog.Fields{"addr": httpServer.Addr})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		appLogger.Info(ctx, "shutting down", applog.Fields{"signal": sig.String()})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	appLogger.Info(ctx, "HTTP server stopped")

	return nil
}

// newAttemptStore keeps login attempts in Redis when REDIS_ADDR is set so
// several replicas can serve the callback; otherwise they live in memory.
func newAttemptStore(ctx context.Context, cfg *config.ServerConfig) (oauthflow.AttemptStore, func(), error) {
	if cfg.RedisAddr == "" {
		store := cache.NewMemoryAttemptStore(cfg.AuthAttemptTTL)
		return store, func() { _ = store.Close() }, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}

	return rediscache.NewAttemptStore(rdb, "airform"), func() { _ = rdb.Close() }, nil
}
