package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/marketing-image-engine/internal/data/db"
	"github.com/yungbote/marketing-image-engine/internal/platform/imaging"
	"github.com/yungbote/marketing-image-engine/internal/platform/logger"
	"github.com/yungbote/marketing-image-engine/internal/platform/messaging"
	"github.com/yungbote/marketing-image-engine/internal/services"
)

type Clients struct {
	DB        *db.Service
	Objects   objectStore
	Publisher *messaging.RedisStreamPublisher
	Generator services.ImageGenerator
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	// Database
	database, err := db.Open(log, cfg.Database)
	if err != nil {
		return Clients{}, fmt.Errorf("init database: %w", err)
	}
	if err := db.AutoMigrateAll(database.DB()); err != nil {
		_ = database.Close()
		return Clients{}, fmt.Errorf("database automigrate: %w", err)
	}
	if err := db.EnsureEventIndexes(database.DB()); err != nil {
		_ = database.Close()
		return Clients{}, fmt.Errorf("database event indexes: %w", err)
	}

	// Gcs
	objects, err := resolveObjectStore(ctx, log, cfg)
	if err != nil {
		_ = database.Close()
		return Clients{}, err
	}

	// Redis
	publisher, err := messaging.NewRedisStreamPublisher(ctx, log, messaging.RedisStreamConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Stream:   cfg.RedisStream,
		MaxLen:   cfg.RedisStreamMax,
		Timeout:  cfg.PublishTimeout,
	})
	if err != nil {
		_ = objects.Close()
		_ = database.Close()
		return Clients{}, fmt.Errorf("init redis stream publisher: %w", err)
	}

	// Generator
	var generator services.ImageGenerator
	switch strings.ToLower(strings.TrimSpace(cfg.ImageGenerator)) {
	case "", "placeholder":
		g, err := imaging.NewPlaceholderGenerator(log)
		if err != nil {
			_ = publisher.Close()
			_ = objects.Close()
			_ = database.Close()
			return Clients{}, fmt.Errorf("init placeholder generator: %w", err)
		}
		generator = g
	default:
		_ = publisher.Close()
		_ = objects.Close()
		_ = database.Close()
		return Clients{}, fmt.Errorf("unsupported image generator %q", cfg.ImageGenerator)
	}

	return Clients{
		DB:        database,
		Objects:   objects,
		Publisher: publisher,
		Generator: generator,
	}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Publisher != nil {
		_ = c.Publisher.Close()
	}
	if c.Objects != nil {
		_ = c.Objects.Close()
	}
	if c.DB != nil {
		_ = c.DB.Close()
	}
}
