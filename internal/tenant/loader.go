package tenant

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "github.com/troikatech/voice-agent/pkg/errors"
	appmongo "github.com/troikatech/voice-agent/pkg/mongo"
)

const collTenants = "tenants"

// MongoLoader reads tenant configuration from MongoDB.
type MongoLoader struct {
	client *appmongo.Client
}

var _ Loader = (*MongoLoader)(nil)

func NewMongoLoader(client *appmongo.Client) *MongoLoader {
	return &MongoLoader{client: client}
}

func (l *MongoLoader) Load(ctx context.Context, tenantID string) (*Config, error) {
	var cfg Config
	err := l.client.NewQuery(collTenants).Eq("tenant_id", tenantID).FindOne(ctx, &cfg)
	if appmongo.IsNoDocuments(err) {
		return nil, apperrors.NewNotFound("tenant", tenantID)
	}
	if err != nil {
		return nil, apperrors.NewPersistence("load tenant", err)
	}
	return &cfg, nil
}

// CachedLoader is a read-through Redis cache in front of another
// loader. Cache failures fall through to the backing loader.
type CachedLoader struct {
	backing Loader
	redis   *redis.Client
	ttl     time.Duration
	logger  *zap.Logger
}

var _ Loader = (*CachedLoader)(nil)

func NewCachedLoader(backing Loader, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedLoader {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedLoader{backing: backing, redis: rdb, ttl: ttl, logger: logger}
}

func cacheKey(tenantID string) string {
	return "tenant:config:" + tenantID
}

func (l *CachedLoader) Load(ctx context.Context, tenantID string) (*Config, error) {
	if l.redis != nil {
		cached, err := l.redis.Get(ctx, cacheKey(tenantID)).Result()
		if err == nil {
			var cfg Config
			if err := json.Unmarshal([]byte(cached), &cfg); err == nil {
				return &cfg, nil
			}
			// Unreadable cache entry, fall through and rewrite it.
		} else if err != redis.Nil {
			l.logger.Warn("Tenant cache read failed",
				zap.String("tenant_id", tenantID),
				zap.Error(err))
		}
	}

	cfg, err := l.backing.Load(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if l.redis != nil {
		if payload, err := json.Marshal(cfg); err == nil {
			if err := l.redis.Set(ctx, cacheKey(tenantID), payload, l.ttl).Err(); err != nil {
				l.logger.Warn("Tenant cache write failed",
					zap.String("tenant_id", tenantID),
					zap.Error(err))
			}
		}
	}
	return cfg, nil
}

// Invalidate removes the cached entry for a tenant.
func (l *CachedLoader) Invalidate(ctx context.Context, tenantID string) {
	if l.redis == nil {
		return
	}
	if err := l.redis.Del(ctx, cacheKey(tenantID)).Err(); err != nil {
		l.logger.Warn("Tenant cache invalidation failed",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
	}
}
