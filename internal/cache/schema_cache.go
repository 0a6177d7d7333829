package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"catalog-migration-service/internal/catalog"
	"catalog-migration-service/internal/clients"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultSchemaTTL is how long a fetched attribute schema is reused
const DefaultSchemaTTL = 15 * time.Minute

// Store is the subset of the Redis client used by the schema cache
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// SchemaCachingSource wraps a source client and caches its attribute schema in Redis.
// Product queries pass through untouched. Cache failures fall back to the source.
type SchemaCachingSource struct {
	clients.SourceClient
	store  Store
	key    string
	ttl    time.Duration
	logger *logrus.Entry
}

// NewSchemaCachingSource creates a caching decorator; namespace separates source stores
func NewSchemaCachingSource(source clients.SourceClient, store Store, namespace string, ttl time.Duration, logger *logrus.Entry) *SchemaCachingSource {
	if ttl <= 0 {
		ttl = DefaultSchemaTTL
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &SchemaCachingSource{
		SourceClient: source,
		store:        store,
		key:          "catalog-migration:attribute-schema:" + namespace,
		ttl:          ttl,
		logger:       logger.WithField("component", "schema-cache"),
	}
}

// FetchAttributeSchema returns the cached schema, fetching and storing it on a miss
func (s *SchemaCachingSource) FetchAttributeSchema(ctx context.Context) ([]catalog.AttributeMetadata, error) {
	val, err := s.store.Get(ctx, s.key).Result()
	switch {
	case err == nil:
		var schema []catalog.AttributeMetadata
		if err := json.Unmarshal([]byte(val), &schema); err == nil {
			return schema, nil
		}
		s.logger.Warn("Discarding undecodable cached attribute schema")
	case !errors.Is(err, redis.Nil):
		s.logger.WithError(err).Warn("Attribute schema cache read failed")
	}

	schema, err := s.SourceClient.FetchAttributeSchema(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(schema)
	if err == nil {
		if err := s.store.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
			s.logger.WithError(err).Warn("Attribute schema cache write failed")
		}
	}
	return schema, nil
}

// Invalidate drops the cached schema
func (s *SchemaCachingSource) Invalidate(ctx context.Context) error {
	return s.store.Del(ctx, s.key).Err()
}
