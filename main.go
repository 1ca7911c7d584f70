package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/krishkalaria12/snap-gallery/caption"
	"github.com/krishkalaria12/snap-gallery/config"
	"github.com/krishkalaria12/snap-gallery/database"
	"github.com/krishkalaria12/snap-gallery/gallery"
	handler "github.com/krishkalaria12/snap-gallery/handlers"
	"github.com/krishkalaria12/snap-gallery/logger"
	"github.com/krishkalaria12/snap-gallery/metrics"
	"github.com/krishkalaria12/snap-gallery/models"
	"github.com/krishkalaria12/snap-gallery/router"
	"github.com/krishkalaria12/snap-gallery/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StorageBackend {
	case config.BackendGCS:
		s, err := storage.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSUploadPath, cfg.GCSCredentials)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case config.BackendMinio:
		s, err := storage.NewMinioStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL, log)
		return s, noop, err
	default:
		log.Warn("using in-memory object storage; images are lost on restart")
		return storage.NewMemoryStore(cfg.PublicBaseURL, []byte(cfg.URLSigningSecret)), noop, nil
	}
}

func newImageStore(cfg *config.Config, log *zap.Logger) (database.ImageStore, *gorm.DB, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set; using in-memory image records")
		return database.NewMemoryImageStore(), nil, nil
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.MigrateModels(db, &models.Image{}); err != nil {
		_ = database.Close(db)
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Info("connected to database")
	return database.NewGormImageStore(db), db, nil
}

func newCaptioner(ctx context.Context, cfg *config.Config, log *zap.Logger, m *metrics.Metrics) caption.Describer {
	c, err := caption.New(ctx, caption.Config{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
	}, log.With(logger.ComponentCaption), m)
	if err != nil {
		log.Warn("captioning disabled, every image gets the fallback title", zap.Error(err))
		return caption.Nop{}
	}
	return c
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.Debug)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx := context.Background()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store, closeStore, err := newStore(ctx, cfg, zlog.With(logger.ComponentStorage))
	if err != nil {
		return fmt.Errorf("object storage init failed: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			zlog.Error("closing object storage", zap.Error(err))
		}
	}()

	images, db, err := newImageStore(cfg, zlog.With(logger.ComponentDatabase))
	if err != nil {
		return err
	}
	// close the database connection
	defer func() {
		if err := database.Close(db); err != nil {
			zlog.Error("closing the database connection", zap.Error(err))
		}
	}()

	svc := gallery.NewService(store, images, newCaptioner(ctx, cfg, zlog, m), gallery.Options{
		SignedURLTTL: cfg.SignedURLTTL,
		Logger:       zlog,
		Metrics:      m,
	})

	app := router.New(handler.New(svc, zlog, cfg.MaxUploadBytes), reg, zlog, cfg.MaxUploadBytes)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("server listening", zap.String("port", cfg.Port), zap.String("storage", cfg.StorageBackend))
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	zlog.Info("shutting down gracefully")
	return app.ShutdownWithTimeout(30 * time.Second)
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
