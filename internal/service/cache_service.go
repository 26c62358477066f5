package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-seating-api/pkg/errors"
)

const keyVersionTTL = 24 * time.Hour

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CacheService wraps the cache store with metrics and soft-failure logging.
// Cache faults never fail the caller's operation.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get fills dest and reports whether the key was present.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	return err == nil
}

// Set stores value. A non-positive ttl uses the default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !s.Enabled() {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops keys.
func (s *CacheService) Invalidate(ctx context.Context, keys ...string) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.Delete(ctx, keys...); err != nil {
		s.logger.Warn("cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// VersionedKey returns base suffixed with its current version token.
func (s *CacheService) VersionedKey(ctx context.Context, base string) string {
	var version string
	if s.Enabled() {
		if err := s.repo.Get(ctx, base+":version", &version); err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("cache version read failed", zap.String("key", base), zap.Error(err))
		}
	}
	return base + ":" + version
}

// Rotate issues a new version token for base and drops the entry cached under
// the previous one. A reader that resolved the old key before Rotate writes
// to a key nobody reads again.
func (s *CacheService) Rotate(ctx context.Context, base string) {
	if !s.Enabled() {
		return
	}
	previous := s.VersionedKey(ctx, base)
	if err := s.repo.Set(ctx, base+":version", uuid.NewString(), keyVersionTTL); err != nil {
		s.logger.Warn("cache version rotate failed", zap.String("key", base), zap.Error(err))
	}
	s.Invalidate(ctx, previous)
}
