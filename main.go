package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gasly-backend/config"
	"gasly-backend/database"
	"gasly-backend/logger"
	"gasly-backend/middleware"
	"gasly-backend/rewards"
	"gasly-backend/routes"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	app := &cli.App{
		Name:  "gasly-backend",
		Usage: "LPG delivery and rewards API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			if err := config.LoadEnv(); err != nil {
				return err
			}
			return logger.SetLevel(c.String("log-level"))
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "migrate the database and start the http server",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "run database migrations and exit",
				Action: func(c *cli.Context) error {
					db, err := openDatabase()
					if err != nil {
						return err
					}
					defer closeDatabase(db)
					logger.L.Info("migrations applied")
					return nil
				},
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		logger.L.Fatal("gasly-backend exited with error", zap.Error(err))
	}
}

func openDatabase() (*gorm.DB, error) {
	if err := config.ValidateEnv(); err != nil {
		return nil, err
	}

	db, err := database.Connect()
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	if err := database.CreateDefaultAdmin(db); err != nil {
		logger.L.Warn("could not create default admin", zap.Error(err))
	}
	return db, nil
}

func closeDatabase(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.L.Error("error closing database connection", zap.Error(err))
		return
	}
	logger.L.Info("database connection closed")
}

// policyStore wraps the database policy store with a Redis cache when
// REDIS_URL is set and reachable.
func policyStore(ctx context.Context, db *gorm.DB) (rewards.PolicyStore, func()) {
	store := rewards.NewPolicyStore(db)

	url := os.Getenv("REDIS_URL")
	if url == "" {
		return store, func() {}
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.L.Warn("invalid REDIS_URL, policy cache disabled", zap.Error(err))
		return store, func() {}
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.L.Warn("redis unreachable, policy cache disabled", zap.Error(err))
		client.Close()
		return store, func() {}
	}

	ttl := config.GetEnvDuration("POLICY_CACHE_TTL", rewards.DefaultPolicyCacheTTL)
	logger.L.Info("rewards policy cache enabled", zap.Duration("ttl", ttl))
	return rewards.NewCachedPolicyStore(store, client, ttl), func() { client.Close() }
}

func corsOrigins() []string {
	var origins []string
	for _, o := range []string{os.Getenv("FRONTEND_URL"), os.Getenv("ADMIN_URL")} {
		if o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
		logger.L.Warn("no CORS origins configured, defaulting to http://localhost:3000")
	}
	return origins
}

func serve(c *cli.Context) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	policies, closeCache := policyStore(c.Context, db)
	defer closeCache()

	// Seeds the default policy on a fresh database.
	if _, err := policies.GetPolicy(c.Context); err != nil {
		return err
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.Metrics(), middleware.RequestLogger(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	authLimiter := routes.SetupRoutes(r, db, policies)
	defer authLimiter.Close()

	port := config.GetEnv("PORT", "8080")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L.Info("server starting", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	logger.L.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}

	logger.L.Info("server exited gracefully")
	return nil
}
