package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"textquiz"
	"textquiz/internal/app"
	"textquiz/internal/config"
)

func main() {
	cfg, err := config.Load(nil)
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Telegram.Token == "" {
		log.Fatalf("%v: TELEGRAM_API_TOKEN", config.ErrMissingEnvironmentVariables)
	}

	logger, err := textquiz.NewLogger(cfg.Env, cfg.Verbose)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal("failed to connect to telegram", zap.Error(err))
	}
	bot.Debug = cfg.Verbose

	commands := []tgbotapi.BotCommand{
		{Command: "start", Description: "How to use the bot"},
		{Command: "restart", Description: "Drop the current quiz"},
	}
	if _, err := bot.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		logger.Warn("failed to set bot commands", zap.Error(err))
	}
	logger.Info("authorized", zap.String("account", bot.Self.UserName))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}
	defer a.Close()

	handler := NewHandler(bot, a.Generator, a.Publisher, logger)
	if err := handler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("bot stopped", zap.Error(err))
	}
	logger.Info("shutdown signal received")
}
