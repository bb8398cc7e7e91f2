// Package database 提供外部存储客户端的构造函数。
package database

import (
	"context"
	"fmt"

	"hv-search-go/internal/config"
	"hv-search-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

// NewRedis 创建并探活一个 Redis 客户端。
// 客户端在进程启动时构造一次，由 main 显式传递给需要它的组件。
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}

	log.Info("Redis 客户端连接成功")
	return rdb, nil
}
