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

// Command cleanup runs the retention maintenance pass: expired role
// assignments are deactivated and audit entries past the retention window
// are pruned. With "once" it runs a single pass and exits; otherwise it
// schedules itself on the configured cron expression.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lexcore/lexcore/internal/config"
	"github.com/lexcore/lexcore/internal/observability/logger"
	"github.com/lexcore/lexcore/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName + "-cleanup",
	})

	ctx := context.Background()
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

	assignmentRepo := postgres.NewAssignmentRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	run := func() {
		runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()

		now := time.Now()

		expired, err := assignmentRepo.DeactivateExpired(runCtx, now)
		if err != nil {
			slog.ErrorContext(runCtx, "failed to deactivate expired assignments", logger.Error(err))
		} else {
			slog.InfoContext(runCtx, "deactivated expired assignments", logger.RowsAffected(expired))
		}

		pruned, err := auditRepo.Prune(runCtx, now.Add(-cfg.Audit.Retention))
		if err != nil {
			slog.ErrorContext(runCtx, "failed to prune audit entries", logger.Error(err))
		} else {
			slog.InfoContext(runCtx, "pruned audit entries", logger.RowsAffected(pruned))
		}
	}

	if len(os.Args) > 1 && os.Args[1] == "once" {
		run()
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Audit.CleanupCron, run); err != nil {
		slog.Error("invalid cleanup cron expression", logger.Error(err))
		os.Exit(1)
	}
	c.Start()
	slog.Info("cleanup scheduler started", logger.String("schedule", cfg.Audit.CleanupCron))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopCtx := c.Stop()
	<-stopCtx.Done()
	slog.Info("cleanup scheduler stopped")
}
