package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Astrix-nita-01/anchor-notes/internal/app"
	"github.com/Astrix-nita-01/anchor-notes/internal/blob"
	"github.com/Astrix-nita-01/anchor-notes/internal/config"
	"github.com/Astrix-nita-01/anchor-notes/internal/search"
	"github.com/Astrix-nita-01/anchor-notes/internal/store"
)

// runtime is a fully wired service plus whatever must be released on exit.
type runtime struct {
	service *app.Service
	closers []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// openRuntime connects the configured store, object storage and search
// backends and builds the service on top of them.
func openRuntime(ctx context.Context, cfg config.Config, logger *zap.Logger) (*runtime, error) {
	rt := &runtime{}
	var opts []app.Option

	if cfg.BlobEnabled() {
		minioStore, err := blob.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		if err := minioStore.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("minio bucket: %w", err)
		}
		opts = append(opts, app.WithBlobStore(minioStore))
		logger.Info("object storage enabled", zap.String("endpoint", cfg.MinioEndpoint), zap.String("bucket", cfg.MinioBucket))
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
	}

	switch cfg.Store {
	case config.StoreRedis:
		redisStore, err := store.NewRedisStore(ctx, cfg.RedisURL, cfg.RedisPrefix, logger)
		if err != nil {
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		rt.closers = append(rt.closers, func() { _ = redisStore.Close() })
		searchService := search.NewService(meiliClient, search.NewCatalogSearcher(redisStore), logger)
		rt.closers = append(rt.closers, searchService.Close)
		rt.service = app.New(cfg, redisStore, logger, append(opts, app.WithSearch(searchService))...)
		logger.Info("using redis store", zap.String("prefix", cfg.RedisPrefix))

	default:
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		rt.closers = append(rt.closers, func() { _ = db.Close() })
		if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			rt.Close()
			return nil, fmt.Errorf("migrations failed: %w", err)
		}
		searchService := search.NewService(meiliClient, search.NewPgFTS(db), logger)
		rt.closers = append(rt.closers, searchService.Close)
		rt.service = app.New(cfg, store.NewPostgresStore(db), logger, append(opts, app.WithSearch(searchService))...)
		logger.Info("using postgres store")
	}

	return rt, nil
}
