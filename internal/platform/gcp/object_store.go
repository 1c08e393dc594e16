package gcp

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/marketing-image-engine/internal/integration"
	"github.com/yungbote/marketing-image-engine/internal/platform/logger"
)

const objectCacheControl = "private, max-age=0"

// ObjectStoreConfig names the single bucket marketing images live in.
type ObjectStoreConfig struct {
	Storage       ObjectStorageConfig
	Project       string
	Location      string
	Bucket        string
	PublicBaseURL string
	CDNDomain     string
	WriteTimeout  time.Duration
}

// ObjectStore saves and removes image bytes in Cloud Storage.
type ObjectStore struct {
	log    *logger.Logger
	client *storage.Client
	cfg    ObjectStoreConfig
	urls   publicURLBuilder
}

func NewObjectStore(ctx context.Context, log *logger.Logger, cfg ObjectStoreConfig) (*ObjectStore, error) {
	if err := ValidateObjectStorageConfig(cfg.Storage); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("missing MARKETING_IMAGE_GCS_BUCKET_NAME")
	}
	if strings.Contains(cfg.Bucket, ":") {
		return nil, fmt.Errorf("bucket name %q must not contain ':'", cfg.Bucket)
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 2 * time.Minute
	}
	baseURL, baseSource, err := resolveObjectStoragePublicBaseURL(cfg.Storage, cfg.PublicBaseURL)
	if err != nil {
		return nil, err
	}
	client, err := newStorageClientForMode(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	serviceLog := log.With("service", "ObjectStore")
	serviceLog.Info(
		"Object storage initialized",
		"mode", cfg.Storage.Mode,
		"mode_source", cfg.Storage.ModeSource(),
		"emulator_host", cfg.Storage.EmulatorHost,
		"public_base_source", baseSource,
		"public_base_url", baseURL,
		"bucket", cfg.Bucket,
	)
	return &ObjectStore{
		log:    serviceLog,
		client: client,
		cfg:    cfg,
		urls: publicURLBuilder{
			mode:      cfg.Storage.Mode,
			baseURL:   baseURL,
			cdnDomain: strings.TrimSpace(cfg.CDNDomain),
			bucket:    cfg.Bucket,
		},
	}, nil
}

func newStorageClientForMode(ctx context.Context, storageCfg ObjectStorageConfig) (*storage.Client, error) {
	switch storageCfg.Mode {
	case ObjectStorageModeGCS:
		opts := ClientOptionsFromEnv()
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		return storage.NewClient(ctx, opts...)
	case ObjectStorageModeGCSEmulator:
		// The storage client only honours the emulator through the env var.
		_ = os.Setenv("STORAGE_EMULATOR_HOST", strings.TrimRight(strings.TrimSpace(storageCfg.EmulatorHost), "/"))
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, &ObjectStorageConfigError{
			Code: ObjectStorageConfigErrorInvalidMode,
			Mode: string(storageCfg.Mode),
		}
	}
}

func resolveObjectStoragePublicBaseURL(storageCfg ObjectStorageConfig, raw string) (baseURL string, source string, err error) {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		parsed, parseErr := url.Parse(raw)
		if parseErr != nil || strings.TrimSpace(parsed.Scheme) == "" || strings.TrimSpace(parsed.Host) == "" {
			return "", "", fmt.Errorf(
				"invalid OBJECT_STORAGE_PUBLIC_BASE_URL=%q; expected absolute URL like http://localhost:4443",
				raw,
			)
		}
		return strings.TrimRight(raw, "/"), "object_storage_public_base_url", nil
	}
	if storageCfg.IsEmulatorMode() {
		return strings.TrimRight(strings.TrimSpace(storageCfg.EmulatorHost), "/"), "storage_emulator_host", nil
	}
	return "", "gcs_default", nil
}

// Save writes data under key and returns its public url and the base64 MD5
// checksum reported by storage.
func (s *ObjectStore) Save(ctx context.Context, data []byte, key, contentType string) (string, string, error) {
	key = normalizeKey(key)
	if key == "" {
		return "", "", fmt.Errorf("object key is required")
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	w := s.client.Bucket(s.cfg.Bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = objectCacheControl
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", "", fmt.Errorf("failed to write object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", "", fmt.Errorf("failed to close object writer %q: %w", key, err)
	}

	checksum := ""
	if attrs := w.Attrs(); attrs != nil && len(attrs.MD5) > 0 {
		checksum = base64.StdEncoding.EncodeToString(attrs.MD5)
	} else {
		checksum = ContentMD5(data)
	}
	s.log.Debug("Object saved", "key", key, "bytes", len(data), "content_type", contentType)
	return s.PublicURL(key), checksum, nil
}

// Remove deletes key. A missing object reports false without an error.
func (s *ObjectStore) Remove(ctx context.Context, key string) (bool, error) {
	key = normalizeKey(key)
	if key == "" {
		return false, fmt.Errorf("object key is required")
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.client.Bucket(s.cfg.Bucket).Object(key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete object %q in bucket %q: %w", key, s.cfg.Bucket, err)
	}
	return true, nil
}

// KeyFromURL recovers the object key from a url this store handed out.
func (s *ObjectStore) KeyFromURL(rawURL string) (string, error) {
	bucket, key, err := integration.SplitObjectURL(rawURL, s.cfg.Bucket)
	if err != nil {
		return "", err
	}
	if bucket != s.cfg.Bucket {
		return "", fmt.Errorf("url %q is outside bucket %q", rawURL, s.cfg.Bucket)
	}
	return key, nil
}

func (s *ObjectStore) Locator() integration.Locator {
	return integration.Locator{
		Provider: integration.ProviderGCS,
		Project:  s.cfg.Project,
		Location: s.cfg.Location,
		Bucket:   s.cfg.Bucket,
	}
}

func (s *ObjectStore) PublicURL(key string) string { return s.urls.build(key) }

func (s *ObjectStore) Close() error { return s.client.Close() }

type publicURLBuilder struct {
	mode      ObjectStorageMode
	baseURL   string
	cdnDomain string
	bucket    string
}

func (b publicURLBuilder) build(key string) string {
	key = normalizeKey(key)
	if b.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", b.cdnDomain, key)
	}
	if IsEmulatorObjectStorageMode(b.mode) && b.baseURL != "" {
		return fmt.Sprintf(
			"%s/storage/v1/b/%s/o/%s?alt=media",
			b.baseURL,
			url.PathEscape(b.bucket),
			url.PathEscape(key),
		)
	}
	if b.baseURL != "" {
		return fmt.Sprintf("%s/%s/%s", b.baseURL, b.bucket, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", b.bucket, key)
}

func normalizeKey(key string) string {
	return strings.TrimLeft(strings.TrimSpace(key), "/")
}

// ContentMD5 matches the checksum format Cloud Storage reports.
func ContentMD5(data []byte) string {
	sum := md5.Sum(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// ExtensionForMimeType picks the object key suffix for a stored image.
func ExtensionForMimeType(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "bin"
	}
}
