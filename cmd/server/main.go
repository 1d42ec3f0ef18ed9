// Copyright 2026 The LexCore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/lexcore/lexcore/internal/audit"
	"github.com/lexcore/lexcore/internal/authz"
	"github.com/lexcore/lexcore/internal/authz/cache"
	"github.com/lexcore/lexcore/internal/config"
	"github.com/lexcore/lexcore/internal/observability/logger"
	"github.com/lexcore/lexcore/internal/observability/metrics"
	"github.com/lexcore/lexcore/internal/observability/tracing"
	"github.com/lexcore/lexcore/internal/store/postgres"
	"github.com/lexcore/lexcore/internal/tenant"
	transportHTTP "github.com/lexcore/lexcore/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting lexcore authorization engine")

	// Phase: CLI Commands
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if len(os.Args) > 1 && os.Args[1] == "seed" {
		if err := runSeed(cfg); err != nil {
			fmt.Printf("Seeding failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Initialize context
	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	_, err = metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}

	// Initialize database
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	// Initialize repositories
	roleRepo := postgres.NewRoleRepository(db)
	assignmentRepo := postgres.NewAssignmentRepository(db)
	permRepo := postgres.NewPermissionRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	tagRepo := postgres.NewResourceTagRepository(db)

	// Audit fans out to the log and the durable trail
	recorder := audit.NewMulti(audit.NewSlogRecorder(), audit.NewStoreRecorder(auditRepo))

	// Tenant boundary
	factory, err := tenant.NewFactory([]byte(cfg.Crypto.TenantIDSecret))
	if err != nil {
		slog.Error("failed to initialize tenant factory", logger.Error(err))
		os.Exit(1)
	}
	masterKey, err := cfg.MasterKey()
	if err != nil {
		slog.Error("failed to load master key", logger.Error(err))
		os.Exit(1)
	}
	keys, err := tenant.NewHKDFProvider(masterKey, func(tenantID string) {
		recorder.Record(ctx, audit.Entry{
			Type:     audit.TypeKeyRotationNeeded,
			TenantID: tenantID,
			Action:   "rotate_key",
			Success:  true,
		})
	})
	if err != nil {
		slog.Error("failed to initialize key provider", logger.Error(err))
		os.Exit(1)
	}
	boundary := tenant.NewBoundary(keys, recorder)
	guard := tenant.NewGuard(tagRepo, recorder)

	// Decision cache
	var decisions cache.Store
	switch cfg.Authz.CacheBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			slog.Error("failed to connect to redis", logger.Error(err))
			os.Exit(1)
		}
		decisions = cache.NewRedisStore(client)
	default:
		decisions = cache.NewMemoryStore(cfg.Authz.CacheSize)
	}

	// Access evaluator
	authzService := authz.NewService(roleRepo, assignmentRepo, permRepo, decisions, recorder).
		WithTenantIDDeriver(factory.DeriveTenantID).
		WithCacheTTL(cfg.Authz.CacheTTL)

	// Seed system roles (idempotent)
	if err := authzService.InitializeDefaultRoles(ctx); err != nil {
		slog.Error("failed to seed default roles", logger.Error(err))
		os.Exit(1)
	}

	reporter := audit.NewReporter(auditRepo)

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(authzService, factory, guard, boundary, reporter, []byte(cfg.Server.JWTSecret))

	// Create router
	router := transportHTTP.NewRouter(handler, rateLimiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying initial schema...")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}

func runSeed(cfg *config.Config) error {
	ctx := context.Background()
	db, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	roleRepo := postgres.NewRoleRepository(db)
	assignmentRepo := postgres.NewAssignmentRepository(db)
	permRepo := postgres.NewPermissionRepository(db)
	recorder := audit.NewSlogRecorder()
	decisions := cache.NewMemoryStore(cfg.Authz.CacheSize)

	svc := authz.NewService(roleRepo, assignmentRepo, permRepo, decisions, recorder)
	if err := svc.InitializeDefaultRoles(ctx); err != nil {
		return err
	}
	fmt.Println("Default roles seeded.")
	return nil
}

func connect(ctx context.Context, cfg *config.Config) (*postgres.DB, error) {
	return postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
}
