package app

import (
	"context"
	"fmt"
	"time"

	"todoapi/internal/config"
	"todoapi/internal/logging"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

type App struct {
	cfg    config.Config
	log    *log.Logger
	db     *pgxpool.Pool
	redis  *redis.Client
	router *gin.Engine
}

func New(cfg config.Config, logger *log.Logger) (*App, error) {
	a := &App{cfg: cfg, log: logger}

	if err := runMigrations(cfg.PG.DSN, cfg.PG.MigrationsDir, logger); err != nil {
		return nil, err
	}

	db, err := newPostgres(cfg.PG, logger)
	if err != nil {
		return nil, err
	}
	a.db = db

	if cfg.Redis.Enabled() {
		rdb, err := newRedis(cfg.Redis, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.redis = rdb
	} else {
		logger.Warn("REDIS_ADDR/REDIS_URL not set, todo listing cache disabled")
	}

	a.router = newRouter(cfg, logger, Deps{DB: a.db, Redis: a.redis})
	return a, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Close(_ context.Context) error {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("redis close")
		}
	}
	if a.db != nil {
		a.db.Close()
	}
	return nil
}

func newPostgres(cfg config.PGConfig, logger *log.Logger) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg parse config: %w", err)
	}
	pcfg.MaxConns = cfg.MaxConns
	pcfg.MinConns = cfg.MinConns
	pcfg.MaxConnIdleTime = 5 * time.Minute
	pcfg.MaxConnLifetime = 30 * time.Minute
	if cfg.LogQueries {
		pcfg.ConnConfig.Tracer = logging.QueryTracer(logger)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), pcfg)
	if err != nil {
		return nil, fmt.Errorf("pg connect: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg ping: %w", err)
	}

	return pool, nil
}

// newRedis connects the listing cache and fails fast if Redis is unreachable.
func newRedis(cfg config.RedisConfig, logger log.FieldLogger) (*redis.Client, error) {
	rdb := redis.NewClient(cfg.Options())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		if cerr := rdb.Close(); cerr != nil {
			logger.WithError(cerr).Warn("redis close after failed ping")
		}
		return nil, fmt.Errorf("redis %s: ping: %w", cfg.Addr, err)
	}
	logger.WithFields(log.Fields{"addr": cfg.Addr, "db": cfg.DB}).Info("todo listing cache enabled")
	return rdb, nil
}

func runMigrations(dsn string, migrationsDir string, logger *log.Logger) error {
	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("goose open db: %w", err)
	}
	defer db.Close()

	goose.SetLogger(logger)
	if err := goose.Up(db, migrationsDir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

func newRouter(cfg config.Config, logger *log.Logger, deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(logger))

	r.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.HTTP.CORSAllowOrigins,
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Type"},
		MaxAge:        12 * time.Hour,
	}))

	Setup(r, cfg, logger, deps)
	return r
}
