// Redis 缓存实现
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/finvalue-ai/finvalue/pkg/config"
	ferrors "github.com/finvalue-ai/finvalue/pkg/errors"
	"github.com/go-redis/redis/v8"
)

// Cache 报表缓存接口
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// StatementKey 报表缓存键
// 格式: finvalue:<code>:<statement>:<start>-<end>
func StatementKey(stockCode, statement string, start, end time.Time) string {
	return fmt.Sprintf("finvalue:%s:%s:%s-%s", stockCode, statement, start.Format("20060102"), end.Format("20060102"))
}

// RedisCache Redis 缓存客户端
type RedisCache struct {
	client *redis.Client
}

// New 按配置创建缓存，未启用时返回 NopCache
func New(cfg config.RedisConfig) (Cache, error) {
	if !cfg.Enabled {
		return NopCache{}, nil
	}
	return NewRedisCache(cfg)
}

// NewRedisCache 创建 Redis 缓存客户端
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: failed to connect to Redis: %v", ferrors.ErrCacheUnavailable, err)
	}

	return &RedisCache{client: client}, nil
}

// Get 获取缓存，键不存在时返回空串
func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	result, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ferrors.ErrCacheUnavailable, err)
	}
	return result, nil
}

// Set 设置缓存
func (r *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ferrors.ErrCacheUnavailable, err)
	}
	return nil
}

// Delete 删除缓存
func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ferrors.ErrCacheUnavailable, err)
	}
	return nil
}

// Ping 检查连接，供 /readyz 使用
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close 关闭连接
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// NopCache 不缓存
type NopCache struct{}

// Get 始终未命中
func (NopCache) Get(context.Context, string) (string, error) {
	return "", nil
}

func (NopCache) Set(context.Context, string, string, time.Duration) error {
	return nil
}

func (NopCache) Delete(context.Context, ...string) error {
	return nil
}

func (NopCache) Close() error {
	return nil
}
