// Package cache keeps parsed-ready template rows in redis so page renders skip the database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"formintake/internal/model"
	"formintake/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const templateKeyTemplate = "form_template:%s"

type TemplateCache interface {
	Get(ctx context.Context, id uuid.UUID) (*model.FormTemplate, bool)
	Set(ctx context.Context, t *model.FormTemplate)
	Delete(ctx context.Context, id uuid.UUID)
}

// RedisTemplateCache never fails the caller; redis errors are logged and treated as a miss.
type RedisTemplateCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

func NewRedisTemplateCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisTemplateCache {
	return &RedisTemplateCache{client: client, ttl: ttl, logger: log}
}

func templateKey(id uuid.UUID) string {
	return fmt.Sprintf(templateKeyTemplate, id)
}

func (c *RedisTemplateCache) Get(ctx context.Context, id uuid.UUID) (*model.FormTemplate, bool) {
	data, err := c.client.Get(ctx, templateKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("error get cached template",
				zap.String("template_id", id.String()),
				zap.Error(err))
		}
		return nil, false
	}

	var t model.FormTemplate
	if err := json.Unmarshal(data, &t); err != nil {
		c.logger.Warn("error decode cached template",
			zap.String("template_id", id.String()),
			zap.Error(err))
		return nil, false
	}
	return &t, true
}

func (c *RedisTemplateCache) Set(ctx context.Context, t *model.FormTemplate) {
	payload, err := json.Marshal(t)
	if err != nil {
		c.logger.Warn("error encode template for cache", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, templateKey(t.ID), payload, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to cache template",
			zap.String("template_id", t.ID.String()),
			zap.Error(err))
	}
}

func (c *RedisTemplateCache) Delete(ctx context.Context, id uuid.UUID) {
	if err := c.client.Del(ctx, templateKey(id)).Err(); err != nil {
		c.logger.Warn("error delete from redis",
			zap.String("template_id", id.String()),
			zap.Error(err))
	}
}

func (c *RedisTemplateCache) IsHealthy() bool {
	return c.client.Ping(context.Background()).Err() == nil
}

func (c *RedisTemplateCache) Close() error {
	return c.client.Close()
}

// Nop is the cache used when redis is not configured.
type Nop struct{}

func (Nop) Get(context.Context, uuid.UUID) (*model.FormTemplate, bool) { return nil, false }

func (Nop) Set(context.Context, *model.FormTemplate) {}

func (Nop) Delete(context.Context, uuid.UUID) {}
