package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/taskhub/taskhub/internal/auth"
	"github.com/taskhub/taskhub/internal/cache"
	"github.com/taskhub/taskhub/internal/config"
	"github.com/taskhub/taskhub/internal/http/handlers"
	"github.com/taskhub/taskhub/internal/http/middlewares"
	"github.com/taskhub/taskhub/internal/observability"
	"github.com/taskhub/taskhub/internal/repo/postgres"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20 // 1 MiB

func NewRouter(log *slog.Logger, pool *pgxpool.Pool, cfg config.Config) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	// middleware chain

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(otelgin.Middleware("taskhub-api"))
	r.Use(prom.GinHandleMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(middlewares.RequireJSON())

	// health + metrics

	ping := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	healthHandler := handlers.NewHealthHandler(ping)
	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/readyz", healthHandler.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// repositories

	usersRepo := postgres.NewUsersRepo(pool, prom)
	tasksRepo := postgres.NewTasksRepo(pool, prom)
	jobsRepo := postgres.NewJobsRepo(pool, prom)

	// redis list cache is optional; without it every list hits the store

	var listCache handlers.ListCache

	if cfg.RedisAddr != "" {
		listCache = cache.New(cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.CacheTTL,
		})
	}

	// handlers

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL())
	authMiddleware := middlewares.NewAuthMiddleware(jwtManager)

	authHandler := handlers.NewAuthHandler(usersRepo, usersRepo, jwtManager)
	tasksHandler := handlers.NewTasksHandler(tasksRepo, usersRepo, jobsRepo, listCache, log)
	usersHandler := handlers.NewUsersHandler(usersRepo)

	// unauthenticated auth surface, rate limited per IP

	authLimiter := middlewares.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow)

	authGroup := r.Group("/auth", authLimiter.Middleware(middlewares.KeyByIP))
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)

	// everything below requires a resolved identity

	apiLimiter := middlewares.NewRateLimiter(cfg.APIRateLimit, cfg.APIRateWindow)

	api := r.Group("", authMiddleware.RequireAuth(), apiLimiter.Middleware(middlewares.KeyByUserOrIP))

	api.GET("/users", usersHandler.ListUsers)

	api.POST("/tasks", tasksHandler.CreateTask)
	api.GET("/tasks", tasksHandler.ListTasks)
	api.GET("/tasks/:id", tasksHandler.GetTaskByID)
	api.PUT("/tasks/:id", tasksHandler.UpdateTask)
	api.DELETE("/tasks/:id", tasksHandler.DeleteTask)

	admin := api.Group("/admin", authMiddleware.RequireRole("admin"))
	admin.GET("/users", usersHandler.ListUsersAdmin)

	return r
}
