package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/marketing-image-engine/internal/data/aggregates"
	"github.com/yungbote/marketing-image-engine/internal/domain/marketingimage"
	"github.com/yungbote/marketing-image-engine/internal/observability"
	"github.com/yungbote/marketing-image-engine/internal/platform/logger"
)

type Repos struct {
	Images *aggregates.MarketingImageRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger, cfg Config, metrics *observability.Metrics, factory marketingimage.Factory) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Images: aggregates.NewMarketingImageRepo(aggregates.BaseDeps{
			DB:      db,
			Log:     log,
			Hooks:   aggregates.NewObservabilityHooks(metrics),
			Timeout: cfg.RepositoryTimeout,
		}, factory, aggregates.CacheOptions{
			Size: cfg.SnapshotCacheSize,
			TTL:  cfg.SnapshotCacheTTL,
		}),
	}
}
