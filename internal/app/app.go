package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/config"
	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/db"
	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/dispatch"
	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/http/api"
	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/models"
	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/quota"
	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/upstream"
	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/usage"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// RunServer boots the balancer with the configured quota store backend and
// serves until the context is cancelled.
func RunServer(ctx context.Context, cfg *config.Config) error {
	store, conn, errBuild := buildStore(ctx, cfg)
	if errBuild != nil {
		return errBuild
	}

	manager := quota.NewManager(cfg.Quota.Window())
	invoker := upstream.NewClient(upstream.Config{
		URLTemplate: cfg.Upstream.URLTemplate,
		Model:       cfg.Upstream.Model,
		APIKey:      cfg.Upstream.APIKey,
		MaxTokens:   cfg.Upstream.MaxTokens,
		Timeout:     cfg.Upstream.Timeout.Std(),
	})
	dispatcher := dispatch.New(store, manager, invoker, dispatch.Options{
		MaxAttempts:     cfg.Quota.MaxAttempts,
		ConflictRetries: cfg.Quota.ConflictRetries,
	})

	var recorder *usage.Recorder
	if conn != nil {
		recorder = usage.NewRecorder(conn)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	api.RegisterRoutes(engine, api.Deps{
		Dispatcher: dispatcher,
		Store:      store,
		Manager:    manager,
		Recorder:   recorder,
		DB:         conn,
		Admin:      cfg.Admin,
		Model:      cfg.Upstream.Model,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Server.Port).Info("server listening")
		if errServe := server.ListenAndServe(); errServe != nil && errServe != http.ErrServerClosed {
			errCh <- errServe
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return fmt.Errorf("server shutdown: %w", errShutdown)
		}
		return nil
	case errServe := <-errCh:
		return errServe
	}
}

// buildStore wires the configured quota store backend. The gorm connection is
// nil when only Redis is configured; usage recording and admin quota updates
// are then disabled.
func buildStore(ctx context.Context, cfg *config.Config) (quota.Store, *gorm.DB, error) {
	var conn *gorm.DB
	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		opened, errOpen := db.Open(dsn)
		if errOpen != nil {
			return nil, nil, errOpen
		}
		if errMigrate := db.Migrate(opened); errMigrate != nil {
			return nil, nil, errMigrate
		}
		if errSeed := db.SeedEndpoints(opened, cfg.Endpoints); errSeed != nil {
			return nil, nil, errSeed
		}
		conn = opened
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if errPing := client.Ping(pingCtx).Err(); errPing != nil {
			return nil, nil, fmt.Errorf("redis ping: %w", errPing)
		}
		redisStore := quota.NewRedisStore(client, cfg.Redis.Prefix)
		seed := make([]models.Endpoint, 0, len(cfg.Endpoints))
		for _, ep := range cfg.Endpoints {
			seed = append(seed, models.Endpoint{Region: ep.Region, TotalQuota: ep.TotalQuota})
		}
		if errSeed := redisStore.Seed(ctx, seed); errSeed != nil {
			return nil, nil, errSeed
		}
		log.Info("using redis quota store")
		return quota.NewRetryingStore(redisStore, cfg.Quota.StoreRetries), conn, nil
	}

	log.WithField("dialect", db.DialectName(conn)).Info("using database quota store")
	return quota.NewRetryingStore(quota.NewGormStore(conn), cfg.Quota.StoreRetries), conn, nil
}
