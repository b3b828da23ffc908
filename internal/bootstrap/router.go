package bootstrap

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/exteriorai/exteriorai-backend/config"
	httpapi "github.com/exteriorai/exteriorai-backend/internal/api/http"
	"github.com/exteriorai/exteriorai-backend/internal/api/http/middleware"
	"github.com/exteriorai/exteriorai-backend/internal/auth"
	authhttp "github.com/exteriorai/exteriorai-backend/internal/auth/http"
	authmw "github.com/exteriorai/exteriorai-backend/internal/auth/middleware"
	"github.com/exteriorai/exteriorai-backend/internal/auth/repository"
	authservice "github.com/exteriorai/exteriorai-backend/internal/auth/service"
	"github.com/exteriorai/exteriorai-backend/internal/inflight"
	mediahttp "github.com/exteriorai/exteriorai-backend/internal/media/http"
	"github.com/exteriorai/exteriorai-backend/internal/objectstore"
	projecthttp "github.com/exteriorai/exteriorai-backend/internal/projects/http"
	projectrepo "github.com/exteriorai/exteriorai-backend/internal/projects/repository"
	projectservice "github.com/exteriorai/exteriorai-backend/internal/projects/service"
	"github.com/exteriorai/exteriorai-backend/internal/store"
)

type RouterDeps struct {
	Config *config.Config
	Logger zerolog.Logger

	Store store.DocumentStore
	Redis *redis.Client
	// Verifier may be nil only when auth is disabled.
	Verifier    authmw.TokenVerifier
	Uploader    objectstore.Uploader
	Runner      mediahttp.Runner
	Transcriber mediahttp.Transcriber
	Guard       inflight.Guard
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	cfg := dep.Config

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware(dep.Logger))
	r.Use(middleware.Metrics())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id", "X-User-Id", "X-User-Email"},
		ExposeHeaders:    []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	var redisPing httpapi.PingFunc
	if dep.Redis != nil {
		redisPing = func(ctx context.Context) error { return dep.Redis.Ping(ctx).Err() }
	}
	healthHandler := httpapi.NewHealthHandler(cfg.App.ServiceName, cfg.App.Version, cfg.Store.Driver, redisPing)
	healthHandler.RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	if cfg.Firebase.AuthDisabled {
		dep.Logger.Warn().Msg("AUTH_DISABLED is set; requests run as the demo user")
		api.Use(auth.OptionalUser())
	} else {
		api.Use(authmw.FirebaseAuthMiddleware(dep.Verifier))
	}

	var aiMiddleware []gin.HandlerFunc
	if cfg.RateLimit.RPS > 0 {
		limiter := middleware.NewUserRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		aiMiddleware = append(aiMiddleware, limiter.Middleware())
	}

	mediahttp.New(dep.Runner, dep.Transcriber, dep.Uploader).Register(api, aiMiddleware...)

	users := authhttp.New(authservice.NewAuthService(repository.NewUserRepository(dep.Store)))
	users.Register(api.Group("/users"))

	projectSvc := projectservice.NewProjectService(
		projectrepo.NewProjectRepository(dep.Store),
		dep.Uploader, dep.Runner, dep.Guard, cfg.App.PublicBaseURL,
	)
	projects := projecthttp.New(projectSvc)
	projects.Register(api.Group("/projects"), aiMiddleware...)
	projects.RegisterActivity(api.Group("/activity"))

	return r
}
