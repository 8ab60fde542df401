package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lakewatch/lakes-portal-api/internal/models"
	"github.com/lakewatch/lakes-portal-api/pkg/config"
)

type cacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService caches record-list payloads in Redis and invalidates them on
// writes. Misses and cache errors degrade to database reads.
type CacheService struct {
	repo    cacheRepository
	logger  *zap.Logger
	enabled bool
	ttl     time.Duration
}

// NewCacheService constructs a CacheService instance.
func NewCacheService(repo cacheRepository, cfg config.CacheConfig, logger *zap.Logger) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CacheService{repo: repo, logger: logger, enabled: cfg.Enabled, ttl: ttl}
}

// ListKey builds a deterministic cache key for a filtered resource list.
func (s *CacheService) ListKey(resource string, filter models.RecordFilter) string {
	status := ""
	if filter.Status != nil {
		status = string(*filter.Status)
	}
	return fmt.Sprintf("%s:list:%s:%s:%s:%s:%d:%d",
		resource, status, filter.Uploader, filter.Lake, filter.Search, filter.Page, filter.PageSize)
}

// GetList loads a cached list payload. Returns false on miss or error.
func (s *CacheService) GetList(ctx context.Context, key string, dest interface{}) bool {
	if !s.enabled || s.repo == nil {
		return false
	}
	if err := s.repo.Get(ctx, key, dest); err != nil {
		return false
	}
	return true
}

// SetList stores a list payload under the key.
func (s *CacheService) SetList(ctx context.Context, key string, value interface{}) {
	if !s.enabled || s.repo == nil {
		return
	}
	if err := s.repo.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("failed to cache list", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateResource drops every cached list for the resource.
func (s *CacheService) InvalidateResource(ctx context.Context, resource string) {
	if !s.enabled || s.repo == nil {
		return
	}
	if err := s.repo.DeleteByPattern(ctx, resource+":list:*"); err != nil {
		s.logger.Warn("failed to invalidate cached lists", zap.String("resource", resource), zap.Error(err))
	}
}
