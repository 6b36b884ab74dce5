package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"

	"anime-watchlist/internal/catalog"
	"anime-watchlist/internal/config"
	"anime-watchlist/internal/db"
	"anime-watchlist/internal/email"
	apihttp "anime-watchlist/internal/http"
	"anime-watchlist/internal/repository"
	"anime-watchlist/internal/service"
	"anime-watchlist/internal/storage"
)

// stores agrupa los repositorios elegidos por STORE_DRIVER.
type stores struct {
	users   repository.UserRepository
	entries repository.WatchlistRepository
	health  apihttp.HealthCheck
	close   func()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	var logger *zap.Logger
	if cfg.IsDevelopment() {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store init", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer st.close()

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	uploader := storage.NewDisabledUploader("image storage not configured")
	if cfg.S3Enabled() {
		s3Uploader, err := storage.NewS3Uploader(ctx, storage.S3Config{
			Endpoint:       cfg.S3Endpoint,
			Region:         cfg.S3Region,
			AccessKey:      cfg.S3AccessKey,
			SecretKey:      cfg.S3SecretKey,
			Bucket:         cfg.S3Bucket,
			PublicBaseURL:  cfg.S3PublicBaseURL,
			ForcePathStyle: cfg.S3ForcePathStyle,
		})
		if err != nil {
			logger.Warn("s3 uploader init failed", zap.Error(err))
		} else {
			uploader = s3Uploader
		}
	}

	jwtSvc := service.NewJWTService(cfg.JWTSecret, cfg.JWTTTL)
	accountSvc := service.NewAccountService(logger, st.users, jwtSvc, emailSender, uploader, service.AccountOptions{
		FrontendURL: cfg.FrontendURL,
		BcryptCost:  cfg.BcryptCost,
	})
	watchlistSvc := service.NewWatchlistService(logger, st.entries, cfg.ShareBaseURL)
	catalogClient := catalog.NewJikanClient(cfg.CatalogBaseURL, cfg.CatalogTimeout, logger)
	animeSvc := service.NewAnimeService(logger, catalogClient, watchlistSvc)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router := apihttp.NewRouter(
		logger,
		apihttp.NewMetrics(registry),
		apihttp.NewAuthMiddleware(logger, jwtSvc, accountSvc),
		apihttp.Handlers{
			Users:     apihttp.NewUserHandler(logger, accountSvc),
			Watchlist: apihttp.NewWatchlistHandler(logger, watchlistSvc, animeSvc),
			Catalog:   apihttp.NewCatalogHandler(logger, animeSvc),
		},
		st.health,
	)

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           corsHandler(router),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.String("store", cfg.StoreDriver),
		zap.Bool("smtp", cfg.SMTPHost != ""),
		zap.Bool("s3", cfg.S3Enabled()),
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		if cfg.MigrateOnStart {
			if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
				return stores{}, fmt.Errorf("migrate: %w", err)
			}
		}
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			return stores{}, err
		}
		return stores{
			users:   repository.NewPgUserRepository(pool),
			entries: repository.NewPgWatchlistRepository(pool),
			health:  func(ctx context.Context) error { return db.Ping(ctx, pool) },
			close:   closePool(pool),
		}, nil

	case config.StoreDriverMongo:
		client, err := repository.NewMongoClient(ctx, cfg.MongoURI)
		if err != nil {
			return stores{}, err
		}
		database := client.Database(cfg.MongoDatabase)
		if err := repository.EnsureMongoIndexes(ctx, database); err != nil {
			_ = client.Disconnect(context.Background())
			return stores{}, err
		}
		return stores{
			users:   repository.NewMongoUserRepository(database),
			entries: repository.NewMongoWatchlistRepository(database),
			health:  func(ctx context.Context) error { return client.Ping(ctx, nil) },
			close:   disconnectMongo(client, logger),
		}, nil

	case config.StoreDriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return stores{
			users:   repository.NewMemoryUserRepository(),
			entries: repository.NewMemoryWatchlistRepository(),
			close:   func() {},
		}, nil
	}
	return stores{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func closePool(pool *pgxpool.Pool) func() {
	return pool.Close
}

func disconnectMongo(client *mongo.Client, logger *zap.Logger) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			logger.Warn("mongo disconnect", zap.Error(err))
		}
	}
}
