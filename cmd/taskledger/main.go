package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"task-ledger/internal/bot"
	"task-ledger/internal/config"
	"task-ledger/internal/interaction"
	"task-ledger/internal/repository"
	"task-ledger/internal/service"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := mustMakeLogger(cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Error("task ledger stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewDB(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, log)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	relations := repository.NewRelationRegistry(db, log)
	taskRepo := repository.NewTaskRepository(db, relations)
	memberRepo := repository.NewMemberRepository(db)

	api, err := bot.NewAPI(cfg.TelegramToken, log)
	if err != nil {
		return err
	}
	telegram := bot.NewTelegram(api, memberRepo, log)
	waiter := interaction.NewWaiter(telegram, log)

	taskSvc := service.NewTaskService(taskRepo)
	deps := bot.Deps{
		Tasks:   taskSvc,
		Confirm: service.NewConfirmWorkflow(waiter, taskRepo, cfg.ConfirmTimeout, log),
		Status:  service.NewStatusWorkflow(waiter, taskRepo, cfg.StatusTimeout, log),
		Summary: service.NewSummaryService(taskSvc, telegram, log),
		Members: memberRepo,
		Waiter:  waiter,
	}
	taskBot := bot.New(api, telegram, deps, &cfg, version, log)

	if cfg.ReportEnabled() {
		scheduler := service.NewSchedulerService(time.Local, log)
		id, err := scheduler.ScheduleDaily(ctx, "summary", cfg.ReportSchedule, 30*time.Second, func(jobCtx context.Context) error {
			return taskBot.SendSummary(jobCtx, cfg.ReportChatID)
		})
		if err != nil {
			return fmt.Errorf("schedule summary: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
		log.Info("summary scheduled", "next", scheduler.Next(id), "chat_id", cfg.ReportChatID)
	}

	log.Info("task ledger started", "version", version)
	if err := taskBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot: %w", err)
	}
	log.Info("shutdown complete")
	return nil
}

func mustMakeLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
