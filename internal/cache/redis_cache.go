package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis键统一带命名空间前缀，Clear只清除本服务写入的缓存键，
// 不影响同一个Redis库中任务队列等其他数据
const (
	redisKeyPrefix = "retrieval:cache:"
	redisOpTimeout = 3 * time.Second
	clearScanCount = 200
)

// RedisCache 基于Redis实现的缓存
// 多实例部署时共享检索结果缓存
type RedisCache struct {
	client     *redis.Client
	defaultTTL time.Duration
}

// NewRedisCache 创建一个新的Redis缓存
func NewRedisCache(config Config) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := config.DefaultTTL
	if ttl <= 0 {
		ttl = DefaultConfig().DefaultTTL
	}

	return &RedisCache{
		client:     client,
		defaultTTL: ttl,
	}, nil
}

// 每个操作使用独立的短超时上下文，Redis不可用时快速失败，
// 调用方（检索服务）会降级为直接检索
func (r *RedisCache) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisOpTimeout)
}

// Get 获取缓存内容
func (r *RedisCache) Get(key string) (string, bool, error) {
	ctx, cancel := r.opContext()
	defer cancel()

	value, err := r.client.Get(ctx, redisKeyPrefix+key).Result()
	if err == redis.Nil {
		// 键不存在
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}

	return value, true, nil
}

// Set 设置缓存内容
// ttl小于等于0时使用配置的默认过期时间
func (r *RedisCache) Set(key string, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}

	ctx, cancel := r.opContext()
	defer cancel()

	return r.client.Set(ctx, redisKeyPrefix+key, value, ttl).Err()
}

// Delete 删除缓存项
func (r *RedisCache) Delete(key string) error {
	ctx, cancel := r.opContext()
	defer cancel()

	return r.client.Del(ctx, redisKeyPrefix+key).Err()
}

// Clear 清空本服务的全部缓存键
// 通过SCAN按命名空间前缀批量删除，不使用FLUSHDB
func (r *RedisCache) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", clearScanCount).Iterator()
	batch := make([]string, 0, clearScanCount)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == clearScanCount {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if len(batch) > 0 {
		return r.client.Del(ctx, batch...).Err()
	}
	return nil
}

// 在包初始化时注册Redis缓存
func init() {
	RegisterCache("redis", NewRedisCache)
}
