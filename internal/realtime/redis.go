package realtime

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

// NewRedis returns a connected client, or nil when addr is empty or the
// server does not answer. Callers treat a nil client as "single instance".
func NewRedis(addr, password string) *redis.Client {
	if addr == "" {
		log.Info("redis not configured, realtime events stay in-process")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, realtime events stay in-process", "addr", addr, "error", err)
		_ = rdb.Close()
		return nil
	}

	log.Info("redis connected", "addr", addr)
	return rdb
}
