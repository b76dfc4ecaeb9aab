// Copyright 2026 The HeraCore Authors
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

	"github.com/heracore/heracore/internal/audit"
	"github.com/heracore/heracore/internal/boundary"
	"github.com/heracore/heracore/internal/cache"
	"github.com/heracore/heracore/internal/config"
	"github.com/heracore/heracore/internal/gateway"
	"github.com/heracore/heracore/internal/guardrail"
	"github.com/heracore/heracore/internal/idempotency"
	"github.com/heracore/heracore/internal/observability/logger"
	"github.com/heracore/heracore/internal/observability/metrics"
	"github.com/heracore/heracore/internal/observability/tracing"
	"github.com/heracore/heracore/internal/org"
	"github.com/heracore/heracore/internal/relationship"
	"github.com/heracore/heracore/internal/smartcode"
	"github.com/heracore/heracore/internal/store/postgres"
	transportHTTP "github.com/heracore/heracore/internal/transport/http"
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
	slog.Info("starting heracore engine")

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
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
	orgRepo := postgres.NewOrganizationRepository(db)
	entityRepo := postgres.NewEntityRepository(db)
	relationshipRepo := postgres.NewRelationshipRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	idempotencyRepo := postgres.NewIdempotencyRepository(db)
	boundaryResolver := postgres.NewBoundaryResolver(db)

	// Initialize helpers
	auditLogger := audit.NewSlogLogger()

	smartCodes, err := smartcode.NewValidator(cfg.Guardrail.SmartCodePattern)
	if err != nil {
		slog.Error("failed to initialize smart code validator", logger.Error(err))
		os.Exit(1)
	}

	membershipCache, err := cache.New(cfg.ActorCache.MaxCostBytes)
	if err != nil {
		slog.Error("failed to initialize membership cache", logger.Error(err))
		os.Exit(1)
	}
	defer membershipCache.Close()

	// Initialize services
	orgService := org.NewService(orgRepo, auditLogger)
	membershipResolver := relationship.NewResolver(relationshipRepo, membershipCache, cfg.ActorCache.TTL)
	enforcer := boundary.NewEnforcer(boundaryResolver, cfg.Platform.OrgID)
	idempotencyChecker := idempotency.NewChecker(idempotencyRepo, cfg.Idempotency.TTL)

	deps := gateway.Deps{
		SmartCodes:  smartCodes,
		Boundary:    enforcer,
		Idempotency: idempotencyChecker,
		Audit:       auditLogger,
		Mode:        guardrail.ParseMode(cfg.Guardrail.Mode),
	}
	entityGateway := gateway.NewEntityGateway(deps, entityRepo, relationshipRepo, orgRepo)
	relationshipGateway := gateway.NewRelationshipGateway(deps, relationshipRepo, membershipResolver)
	transactionGateway := gateway.NewTransactionGateway(deps, transactionRepo)

	// Rate limiter
	rateLimiter := transportHTTP.NewRateLimiter(transportHTTP.RateLimits{
		ReadPerMinute:      cfg.RateLimit.ReadPerMinute,
		WritePerMinute:     cfg.RateLimit.WritePerMinute,
		FinancialPerMinute: cfg.RateLimit.FinancialPerMinute,
		Burst:              cfg.RateLimit.Burst,
	})

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(
		entityGateway,
		relationshipGateway,
		transactionGateway,
		orgService,
		rateLimiter,
	)

	// Create router
	router := transportHTTP.NewRouter(handler, transportHTTP.AuthConfig{
		TokenSecret: []byte(cfg.Auth.TokenSecret),
		TokenIssuer: cfg.Auth.TokenIssuer,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start idempotency-record cleanup goroutine
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			n, err := idempotencyRepo.DeleteExpired(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "failed to cleanup expired idempotency records", logger.Error(err))
				continue
			}
			if n > 0 {
				slog.InfoContext(ctx, "expired idempotency records removed", slog.Int64("count", n))
			}
		}
	}()

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
	dbCfg := postgres.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	}
	return postgres.RunMigrations(context.Background(), dbCfg.DSN())
}
