package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
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

	logger, err := textquiz.NewLogger(cfg.Env, cfg.Verbose)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}
	defer a.Close()

	secret := []byte(cfg.HTTP.SessionSecret)
	if len(secret) == 0 {
		// random per-process key
		secret = securecookie.GenerateRandomKey(32)
	}
	store := sessions.NewCookieStore(secret)
	store.Options.HttpOnly = true
	store.Options.SameSite = http.SameSiteLaxMode

	var archive quizArchive
	if a.DB != nil {
		archive = a.DB
	}
	server, err := NewServer(a.Generator, archive, a.Publisher, store, logger)
	if err != nil {
		logger.Fatal("failed to load templates", zap.Error(err))
	}

	srv := newHTTPServer(cfg.HTTP.Addr, server.Routes(cfg.HTTP.CORSOrigins))
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting server", zap.String("addr", cfg.HTTP.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
