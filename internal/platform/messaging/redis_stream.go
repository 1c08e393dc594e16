package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/marketing-image-engine/internal/integration"
	"github.com/yungbote/marketing-image-engine/internal/platform/logger"
)

const DefaultStream = "marketing-image-integration-events"

type RedisStreamConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	// MaxLen trims the stream approximately; zero disables trimming.
	MaxLen  int64
	Timeout time.Duration
}

type streamAdder interface {
	XAdd(ctx context.Context, a *goredis.XAddArgs) *goredis.StringCmd
}

// RedisStreamPublisher appends integration events to a Redis stream.
type RedisStreamPublisher struct {
	log     *logger.Logger
	rdb     streamAdder
	closer  func() error
	pinger  func(context.Context) error
	stream  string
	maxLen  int64
	timeout time.Duration
}

func NewRedisStreamPublisher(ctx context.Context, log *logger.Logger, cfg RedisStreamConfig) (*RedisStreamPublisher, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	p := newPublisher(log, rdb, cfg)
	p.closer = rdb.Close
	p.pinger = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	p.log.Info("Redis stream publisher ready", "addr", addr, "stream", p.stream, "max_len", p.maxLen)
	return p, nil
}

func newPublisher(log *logger.Logger, rdb streamAdder, cfg RedisStreamConfig) *RedisStreamPublisher {
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		stream = DefaultStream
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RedisStreamPublisher{
		log:     log.With("service", "RedisStreamPublisher"),
		rdb:     rdb,
		stream:  stream,
		maxLen:  cfg.MaxLen,
		timeout: timeout,
	}
}

// Publish XADDs ev. Transport failures come back as a failure result with a
// nil error; an event that cannot be encoded also returns the error.
func (p *RedisStreamPublisher) Publish(ctx context.Context, ev integration.IntegrationEvent) (integration.PublishResult, error) {
	values, err := Envelope(ev)
	if err != nil {
		return integration.PublishResult{Status: integration.PublishFailure, Error: err.Error()}, err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := &goredis.XAddArgs{Stream: p.stream, Values: values}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	id, err := p.rdb.XAdd(ctx, args).Result()
	if err != nil {
		p.log.Warn("XADD failed", "stream", p.stream, "event_type", ev.Type, "event_id", ev.ID, "error", err)
		return integration.PublishResult{Status: integration.PublishFailure, Error: err.Error()}, nil
	}
	return integration.PublishResult{Status: integration.PublishSuccess, MessageID: id}, nil
}

// Ping reports whether the backing Redis is reachable.
func (p *RedisStreamPublisher) Ping(ctx context.Context) error {
	if p == nil || p.pinger == nil {
		return nil
	}
	return p.pinger(ctx)
}

func (p *RedisStreamPublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

// Envelope flattens ev into stream field/value pairs. Metadata entries become
// metadata.<key> fields in key order.
func Envelope(ev integration.IntegrationEvent) ([]any, error) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, fmt.Errorf("encode event data: %w", err)
	}
	values := []any{
		"id", ev.ID.String(),
		"type", ev.Type,
		"source", ev.Source,
		"version", ev.Version,
		"specversion", ev.SpecVersion,
		"occurredAt", ev.OccurredAt.UTC().Format(time.RFC3339Nano),
		"data", string(data),
	}
	attrs, err := Attributes(ev.Metadata)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		values = append(values, "metadata."+k, attrs[k])
	}
	return values, nil
}

// Attributes stringifies metadata values; anything that is not already a
// string is rendered as JSON.
func Attributes(md map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(md))
	for k, v := range md {
		switch t := v.(type) {
		case string:
			out[k] = t
		case time.Time:
			out[k] = t.UTC().Format(time.RFC3339Nano)
		case fmt.Stringer:
			out[k] = t.String()
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encode metadata %q: %w", k, err)
			}
			out[k] = string(raw)
		}
	}
	return out, nil
}
