package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"

	"github.com/exteriorai/exteriorai-backend/config"
	"github.com/exteriorai/exteriorai-backend/internal/auth"
	authmw "github.com/exteriorai/exteriorai-backend/internal/auth/middleware"
	"github.com/exteriorai/exteriorai-backend/internal/bootstrap"
	"github.com/exteriorai/exteriorai-backend/internal/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logging.New("info", "development")
		l.Fatal().Err(err).Msg("load config")
	}

	logger := logging.New(cfg.App.LogLevel, cfg.App.Environment)
	bootstrap.SetGinMode(cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var app *firebase.App
	if cfg.Store.Driver == config.StoreDriverFirestore || !cfg.Firebase.AuthDisabled {
		app, err = auth.InitializeFirebase(ctx, &cfg.Firebase)
		if err != nil {
			logger.Fatal().Err(err).Msg("init firebase")
		}
	}

	var verifier authmw.TokenVerifier
	if !cfg.Firebase.AuthDisabled {
		client, err := auth.NewAuthClient(ctx, app)
		if err != nil {
			logger.Fatal().Err(err).Msg("init firebase auth")
		}
		verifier = client
	}

	docs, err := bootstrap.OpenStore(ctx, bootstrap.StoreOptions{Driver: cfg.Store.Driver, App: app})
	if err != nil {
		logger.Fatal().Err(err).Msg("open store")
	}
	defer docs.Close()

	rdb, err := bootstrap.OpenRedis(ctx, bootstrap.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("open redis")
	}
	if rdb != nil {
		defer rdb.Close()
	} else {
		logger.Info().Msg("REDIS_ADDR not set; in-flight guard is process local")
	}

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		Config:      cfg,
		Logger:      logger,
		Store:       docs,
		Redis:       rdb,
		Verifier:    verifier,
		Uploader:    bootstrap.NewUploader(cfg, logger),
		Runner:      bootstrap.NewPipeline(cfg),
		Transcriber: bootstrap.NewTranscriber(cfg),
		Guard:       bootstrap.NewGuard(rdb, cfg.Redis.InflightTTLSecond),
	})

	srv := newServer(cfg.Server.Port, router)

	go func() {
		logger.Info().Str("port", cfg.Server.Port).Str("store", cfg.Store.Driver).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newServer(port string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
