package redis

import (
	"context"
	"crypto/tls"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"media-studio-server/modules/common/config"
)

// Connect - Redis client for the async video queue; nil when Redis is not configured or unreachable
func Connect(cfg *config.Config) *redis.Client {
	if !cfg.RedisEnabled() {
		log.Println("ℹ️  [Redis] REDIS_HOST not set, async video jobs disabled")
		return nil
	}
	log.Printf("🔌 [Redis] Connecting to %s", cfg.GetRedisAddr())

	var tlsConfig *tls.Config
	if cfg.RedisUseTLS {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		TLSConfig:    tlsConfig,
		DB:           0,
		DialTimeout:  10 * time.Second,
		// BRPOP blocks indefinitely; the client must not time it out
		ReadTimeout:  -1,
		WriteTimeout: 30 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("❌ [Redis] Ping failed: %v", err)
		_ = rdb.Close()
		return nil
	}
	log.Println("✅ [Redis] Connected")
	return rdb
}

const cancelFlagTTL = 24 * time.Hour

func cancelKey(jobID string) string {
	return "job_cancel:" + jobID
}

// SetJobCancelled - raise the cancel flag for a job
func SetJobCancelled(ctx context.Context, rdb *redis.Client, jobID string) error {
	return rdb.Set(ctx, cancelKey(jobID), "1", cancelFlagTTL).Err()
}

// IsJobCancelled - whether the cancel flag is raised; Redis errors count as not cancelled
func IsJobCancelled(ctx context.Context, rdb *redis.Client, jobID string) bool {
	n, err := rdb.Exists(ctx, cancelKey(jobID)).Result()
	if err != nil {
		log.Printf("⚠️  [Redis] Cancel flag check failed for %s: %v", jobID, err)
		return false
	}
	return n > 0
}
