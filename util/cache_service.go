// api/util/cache_service.go

package util

import (
	"context"

	"github.com/permsync/permsync/api/db"
	"github.com/permsync/permsync/api/model"
)

// CacheService fronts the Redis cache. Every method is a no-op miss when
// Redis is not configured, so the service runs cache-less in dev mode.
type CacheService struct{}

func NewCacheService() *CacheService {
	return &CacheService{}
}

func (c *CacheService) enabled() bool {
	return db.RedisClient != nil
}

func (c *CacheService) GetTemplate(ctx context.Context, name string) (*model.Template, error) {
	if !c.enabled() {
		return nil, nil
	}
	return db.GetCachedTemplate(ctx, name)
}

func (c *CacheService) SetTemplate(ctx context.Context, template model.Template) error {
	if !c.enabled() {
		return nil
	}
	return db.CacheTemplate(ctx, &template)
}

func (c *CacheService) DeleteTemplate(ctx context.Context, name string) error {
	if !c.enabled() {
		return nil
	}
	return db.DeleteCachedTemplate(ctx, name)
}

func (c *CacheService) GetDirectories(ctx context.Context) ([]model.AccountDirectory, error) {
	if !c.enabled() {
		return nil, nil
	}
	return db.GetCachedDirectories(ctx)
}

func (c *CacheService) SetDirectories(ctx context.Context, directories []model.AccountDirectory) error {
	if !c.enabled() {
		return nil
	}
	return db.CacheDirectories(ctx, directories)
}

func (c *CacheService) DeleteDirectories(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return db.DeleteCachedDirectories(ctx)
}
