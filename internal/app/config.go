package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/marketing-image-engine/internal/commands"
	"github.com/yungbote/marketing-image-engine/internal/data/db"
	"github.com/yungbote/marketing-image-engine/internal/domain/marketingimage"
	"github.com/yungbote/marketing-image-engine/internal/integration"
	"github.com/yungbote/marketing-image-engine/internal/platform/envutil"
	"github.com/yungbote/marketing-image-engine/internal/platform/logger"
	"github.com/yungbote/marketing-image-engine/internal/platform/messaging"
)

const defaultConfigFile = "config.yaml"

type Config struct {
	ServiceName string `yaml:"service_name"`
	Environment string `yaml:"environment"`
	Port        string `yaml:"port"`
	LogMode     string `yaml:"log_mode"`

	CommandPrefix          string `yaml:"command_prefix"`
	DomainEventPrefix      string `yaml:"domain_event_prefix"`
	IntegrationEventPrefix string `yaml:"integration_event_prefix"`

	GoogleCloudProject         string        `yaml:"google_cloud_project"`
	GoogleCloudLocation        string        `yaml:"google_cloud_location"`
	ImageBucket                string        `yaml:"image_bucket"`
	ObjectStorageMode          string        `yaml:"object_storage_mode"`
	StorageEmulatorHost        string        `yaml:"storage_emulator_host"`
	ObjectStoragePublicBaseURL string        `yaml:"object_storage_public_base_url"`
	ObjectStorageCDNDomain     string        `yaml:"object_storage_cdn_domain"`
	ObjectStorageWriteTimeout  time.Duration `yaml:"object_storage_write_timeout"`

	Database db.Config `yaml:"database"`

	RedisAddr      string        `yaml:"redis_addr"`
	RedisPassword  string        `yaml:"redis_password"`
	RedisDB        int           `yaml:"redis_db"`
	RedisStream    string        `yaml:"redis_stream"`
	RedisStreamMax int64         `yaml:"redis_stream_maxlen"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`

	RepositoryTimeout time.Duration `yaml:"repository_timeout"`
	OutboxTimeout     time.Duration `yaml:"outbox_timeout"`
	SnapshotCacheSize int           `yaml:"snapshot_cache_size"`
	SnapshotCacheTTL  time.Duration `yaml:"snapshot_cache_ttl"`

	ImageGenerator string `yaml:"image_generator"`

	RedeliveryEnabled     bool          `yaml:"redelivery_enabled"`
	RedeliveryInterval    time.Duration `yaml:"redelivery_interval"`
	RedeliveryBatchSize   int           `yaml:"redelivery_batch_size"`
	RedeliveryMaxAttempts int           `yaml:"redelivery_max_attempts"`
	RedeliveryConcurrency int           `yaml:"redelivery_concurrency"`
	RedeliveryMinAge      time.Duration `yaml:"redelivery_min_age"`

	CORSOrigins []string `yaml:"cors_origins"`

	OtelEnabled     bool    `yaml:"otel_enabled"`
	OtelEndpoint    string  `yaml:"otel_endpoint"`
	OtelHeaders     string  `yaml:"otel_headers"`
	OtelInsecure    bool    `yaml:"otel_insecure"`
	OtelSampleRatio float64 `yaml:"otel_sample_ratio"`
	ServiceVersion  string  `yaml:"service_version"`
}

func defaultConfig() Config {
	return Config{
		ServiceName:            marketingimage.DefaultEventSource,
		Environment:            "development",
		Port:                   "8080",
		LogMode:                "development",
		CommandPrefix:          commands.DefaultCommandPrefix,
		DomainEventPrefix:      marketingimage.DefaultDomainEventPrefix,
		IntegrationEventPrefix: integration.DefaultIntegrationEventPrefix,

		ObjectStorageWriteTimeout: 30 * time.Second,

		Database: db.Config{
			Driver:       db.DriverPostgres,
			PostgresHost: "localhost",
			PostgresPort: "5432",
			PostgresUser: "postgres",
			PostgresName: "marketing_images",
		},
		RedisStream:           messaging.DefaultStream,
		PublishTimeout:        5 * time.Second,
		RepositoryTimeout:     10 * time.Second,
		OutboxTimeout:         5 * time.Second,
		SnapshotCacheSize:     1024,
		SnapshotCacheTTL:      5 * time.Minute,
		ImageGenerator:        "placeholder",
		RedeliveryEnabled:     true,
		RedeliveryInterval:    30 * time.Second,
		RedeliveryBatchSize:   100,
		RedeliveryMaxAttempts: 10,
		RedeliveryConcurrency: 4,
		RedeliveryMinAge:      10 * time.Second,
		OtelSampleRatio:       1,
	}
}

// LoadConfig reads CONFIG_FILE (default config.yaml) when present and then
// applies environment overrides. A missing file is not an error.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := defaultConfig()

	path := envutil.String("CONFIG_FILE", defaultConfigFile)
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
		log.Info("Loaded config file", "path", path)
	case errors.Is(err, fs.ErrNotExist):
		log.Debug("No config file, using environment only", "path", path)
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, cfg.validate()
}

func (c *Config) applyEnv() {
	c.ServiceName = envutil.String("SERVICE_NAME", c.ServiceName)
	c.Environment = envutil.String("ENVIRONMENT", c.Environment)
	c.Port = envutil.String("PORT", c.Port)
	c.LogMode = envutil.String("LOG_MODE", c.LogMode)

	c.CommandPrefix = envutil.String("COMMAND_PREFIX", c.CommandPrefix)
	c.DomainEventPrefix = envutil.String("DOMAIN_EVENT_PREFIX", c.DomainEventPrefix)
	c.IntegrationEventPrefix = envutil.String("INTEGRATION_EVENT_PREFIX", c.IntegrationEventPrefix)

	c.GoogleCloudProject = envutil.String("GOOGLE_CLOUD_PROJECT", c.GoogleCloudProject)
	c.GoogleCloudLocation = envutil.String("GOOGLE_CLOUD_LOCATION", c.GoogleCloudLocation)
	c.ImageBucket = envutil.String("MARKETING_IMAGE_GCS_BUCKET_NAME", c.ImageBucket)
	c.ObjectStorageMode = envutil.String("OBJECT_STORAGE_MODE", c.ObjectStorageMode)
	c.StorageEmulatorHost = envutil.String("STORAGE_EMULATOR_HOST", c.StorageEmulatorHost)
	c.ObjectStoragePublicBaseURL = envutil.String("OBJECT_STORAGE_PUBLIC_BASE_URL", c.ObjectStoragePublicBaseURL)
	c.ObjectStorageCDNDomain = envutil.String("OBJECT_STORAGE_CDN_DOMAIN", c.ObjectStorageCDNDomain)
	c.ObjectStorageWriteTimeout = envutil.Duration("OBJECT_STORAGE_WRITE_TIMEOUT", c.ObjectStorageWriteTimeout)

	c.Database.Driver = envutil.String("DATABASE_DRIVER", c.Database.Driver)
	c.Database.PostgresHost = envutil.String("POSTGRES_HOST", c.Database.PostgresHost)
	c.Database.PostgresPort = envutil.String("POSTGRES_PORT", c.Database.PostgresPort)
	c.Database.PostgresUser = envutil.String("POSTGRES_USER", c.Database.PostgresUser)
	c.Database.PostgresPassword = envutil.String("POSTGRES_PASSWORD", c.Database.PostgresPassword)
	c.Database.PostgresName = envutil.String("POSTGRES_NAME", c.Database.PostgresName)
	c.Database.PostgresSSLMode = envutil.String("POSTGRES_SSLMODE", c.Database.PostgresSSLMode)
	c.Database.SQLitePath = envutil.String("SQLITE_PATH", c.Database.SQLitePath)
	c.Database.SlowThreshold = envutil.Duration("DATABASE_SLOW_THRESHOLD", c.Database.SlowThreshold)

	c.RedisAddr = envutil.String("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = envutil.String("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = envutil.Int("REDIS_DB", c.RedisDB)
	c.RedisStream = envutil.String("REDIS_STREAM", c.RedisStream)
	c.RedisStreamMax = envutil.Int64("REDIS_STREAM_MAXLEN", c.RedisStreamMax)
	c.PublishTimeout = envutil.Duration("PUBLISH_TIMEOUT", c.PublishTimeout)

	c.RepositoryTimeout = envutil.Duration("REPOSITORY_TIMEOUT", c.RepositoryTimeout)
	c.OutboxTimeout = envutil.Duration("OUTBOX_TIMEOUT", c.OutboxTimeout)
	c.SnapshotCacheSize = envutil.Int("SNAPSHOT_CACHE_SIZE", c.SnapshotCacheSize)
	c.SnapshotCacheTTL = envutil.Duration("SNAPSHOT_CACHE_TTL", c.SnapshotCacheTTL)

	c.ImageGenerator = envutil.String("IMAGE_GENERATOR", c.ImageGenerator)

	c.RedeliveryEnabled = envutil.Bool("REDELIVERY_ENABLED", c.RedeliveryEnabled)
	c.RedeliveryInterval = envutil.Duration("REDELIVERY_INTERVAL", c.RedeliveryInterval)
	c.RedeliveryBatchSize = envutil.Int("REDELIVERY_BATCH_SIZE", c.RedeliveryBatchSize)
	c.RedeliveryMaxAttempts = envutil.Int("REDELIVERY_MAX_ATTEMPTS", c.RedeliveryMaxAttempts)
	c.RedeliveryConcurrency = envutil.Int("REDELIVERY_CONCURRENCY", c.RedeliveryConcurrency)
	c.RedeliveryMinAge = envutil.Duration("REDELIVERY_MIN_AGE", c.RedeliveryMinAge)

	if raw := envutil.String("CORS_ALLOWED_ORIGINS", ""); raw != "" {
		c.CORSOrigins = splitList(raw)
	}

	c.OtelEnabled = envutil.Bool("OTEL_ENABLED", c.OtelEnabled)
	c.OtelEndpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", c.OtelEndpoint)
	c.OtelHeaders = envutil.String("OTEL_EXPORTER_OTLP_HEADERS", c.OtelHeaders)
	c.OtelInsecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", c.OtelInsecure)
	c.OtelSampleRatio = envutil.Float64("OTEL_TRACES_SAMPLER_RATIO", c.OtelSampleRatio)
	c.ServiceVersion = envutil.String("SERVICE_VERSION", c.ServiceVersion)
}

func (c Config) validate() error {
	if strings.TrimSpace(c.ImageBucket) == "" {
		return fmt.Errorf("MARKETING_IMAGE_GCS_BUCKET_NAME is required")
	}
	if strings.TrimSpace(c.RedisAddr) == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.ImageGenerator)) {
	case "placeholder":
	default:
		return fmt.Errorf("unsupported IMAGE_GENERATOR %q", c.ImageGenerator)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
