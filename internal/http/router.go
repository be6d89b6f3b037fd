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
	"github.com/taskhub/taskhub/internal/config"
	"github.com/taskhub/taskhub/internal/http/handlers"
	"github.com/taskhub/taskhub/internal/http/middlewares"
	"github.com/taskhub/taskhub/internal/observability"
	"github.com/taskhub/taskhub/internal/repo/postgres"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func NewRouter(log *slog.Logger, pool *pgxpool.Pool, cfg config.Config) *gin.Engine {
	if cfg.Env != "dev" && cfg.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	slog.SetDefault(log)

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(1 << 20))
	r.Use(prom.GinHandleMiddleware())
	r.Use(otelgin.Middleware("taskhub"))

	// health
	ping := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	h := handlers.NewHealthHandler(ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// wire up repositories
	usersRepo := postgres.NewUsersRepo(pool, prom)
	todosRepo := postgres.NewTodosRepo(pool, prom)

	jwtManager := auth.NewManager(cfg.JWTSecret)

	authHandler := handlers.NewAuthHandler(usersRepo, usersRepo, jwtManager, prom, cfg)
	usersHandler := handlers.NewUsersHandler(usersRepo)
	todosHandler := handlers.NewTodosHandler(todosRepo)

	authMw := middlewares.NewAuthMiddleware(jwtManager, usersRepo, prom)

	// public token endpoints, rate limited by IP
	authLimiter := middlewares.NewRateLimiter(cfg.AuthRateLimit, time.Minute)

	r.POST("/signup", authLimiter.RateLimiterMiddleware(middlewares.KeyByIP), middlewares.RequireJSON(), authHandler.SignUp)
	// login accepts a urlencoded form as well as JSON, so no RequireJSON here
	r.POST("/login", authLimiter.RateLimiterMiddleware(middlewares.KeyByIP), authHandler.Login)

	// bearer-guarded surface
	apiLimiter := middlewares.NewRateLimiter(cfg.APIRateLimit, time.Minute)

	protected := r.Group("")
	protected.Use(authMw.RequireAuth())
	protected.Use(apiLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP))
	protected.Use(middlewares.RequireJSON())

	protected.GET("/users/:id", usersHandler.GetUser)

	protected.POST("/todos", todosHandler.CreateToDo)
	protected.GET("/todos", todosHandler.ListToDos)
	protected.GET("/todos/:id", todosHandler.GetToDoByID)
	protected.PUT("/todos/:id", todosHandler.UpdateToDo)
	protected.DELETE("/todos/:id", todosHandler.DeleteToDo)

	return r
}
