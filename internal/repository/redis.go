package repository

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/SergeiKhy/timewatch-admin/internal/config"
	"github.com/redis/go-redis/v9"
)

const redisPingTimeout = 5 * time.Second

// RedisDB: необязательный кэш; при недоступности сервис работает напрямую с MongoDB
type RedisDB struct {
	Client *redis.Client
}

func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*RedisDB, error) {
	client := redis.NewClient(&redis.Options{
		Addr: net.JoinHostPort(cfg.Host, cfg.Port),
		// Пустой пароль: Redis без AUTH, как в локальном docker-compose
		Password: cfg.Password,
		DB:       0,
		// В кэше один ключ на поколение маппингов, большой пул не нужен
		PoolSize:     20,
		MinIdleConns: 2,
		// Медленный кэш хуже промаха: запрос уйдёт в MongoDB
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", client.Options().Addr, err)
	}

	return &RedisDB{Client: client}, nil
}

func (db *RedisDB) Close() error {
	return db.Client.Close()
}
