package app

import (
	"context"
	"net/http"

	_ "todoapi/docs"
	"todoapi/internal/cache"
	"todoapi/internal/config"
	"todoapi/internal/handlers"
	"todoapi/internal/repo"
	"todoapi/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"
)

// DB is what the routes need from Postgres; *pgxpool.Pool satisfies it.
type DB interface {
	repo.DBTX
	Ping(ctx context.Context) error
}

// Deps are the external clients the routes are wired onto. A nil Redis
// disables the listing cache.
type Deps struct {
	DB    DB
	Redis *redis.Client
}

// Setup registers all routes on the given engine.
func Setup(r *gin.Engine, cfg config.Config, logger *log.Logger, deps Deps) {
	r.GET("/", rootHandler(cfg))
	r.GET("/admin", adminHandler())
	r.GET("/health", healthHandler(cfg, deps.DB))
	r.GET("/version", versionHandler(cfg))
	r.GET("/swagger-doc.json", swaggerDocHandler())
	r.GET("/swagger", func(c *gin.Context) { c.Redirect(http.StatusFound, "/swagger/index.html") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(
		swaggerFiles.Handler,
		ginSwagger.URL("/swagger-doc.json"),
		ginSwagger.DefaultModelsExpandDepth(-1),
	))

	var todoCache *cache.TodoCache
	if deps.Redis != nil {
		todoCache = cache.NewTodoCache(deps.Redis, cfg.Redis.DefaultTTL.Duration())
	}
	todoRepo := repo.NewPGTodoRepo(deps.DB)
	todoSvc := service.NewTodoService(todoRepo, todoCache,
		service.WithLogger(logger),
		service.WithSeedLimit(cfg.Seed.MaxCount),
	)
	todoHandler := handlers.NewTodoHandler(todoSvc, logger)
	registerTodoRoutes(r, todoHandler)
}

func rootHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Hello World!",
			"service": "Todo API",
			"version": cfg.App.Version,
			"env":     cfg.App.Env,
			"docs":    "/swagger/index.html",
			"health":  "/health",
		})
	}
}

func adminHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Admin panel"})
	}
}

func healthHandler(cfg config.Config, db DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "env": cfg.App.Env, "error": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "env": cfg.App.Env})
	}
}

func versionHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": cfg.App.Version})
	}
}

func swaggerDocHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := swag.ReadDoc("swagger")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	}
}

// Static seed routes are registered before the :id routes they overlap.
func registerTodoRoutes(r gin.IRoutes, h *handlers.TodoHandler) {
	r.POST("/todos/seed", h.Seed)
	r.DELETE("/todos/seed/delete", h.DeleteSeed)
	r.POST("/todos", h.Create)
	r.GET("/todos", h.List)
	r.GET("/todos/:id", h.GetByID)
	r.PUT("/todos/:id", h.Update)
	r.DELETE("/todos/:id", h.Delete)
}
