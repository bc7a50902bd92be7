package infra

import (
	"context"
	"fmt"
	"time"

	"ragbot/internal/config"
	"ragbot/internal/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisPingTimeout = 5 * time.Second

var redisClient redis.UniversalClient

// InitRedis 建立 Redis 连接，任务队列与嵌入缓存共用同一实例
func InitRedis(cfg *config.RedisConfig) (redis.UniversalClient, error) {
	opts := &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功",
		zap.String("addr", opts.Addr),
		zap.Int("db", cfg.DB),
	)

	redisClient = rdb
	return rdb, nil
}

// GetRedis 获取全局 Redis 客户端
func GetRedis() redis.UniversalClient {
	if redisClient == nil {
		panic("Redis 未初始化，请先调用 InitRedis()")
	}
	return redisClient
}

// CloseRedis 关闭 Redis 连接
func CloseRedis() error {
	if redisClient == nil {
		return nil
	}
	return redisClient.Close()
}

// HealthCheckRedis 探测 Redis 连通性，就绪检查使用
func HealthCheckRedis() error {
	if redisClient == nil {
		return fmt.Errorf("Redis 未初始化")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return redisClient.Ping(ctx).Err()
}
