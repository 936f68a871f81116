package utils

import (
	"time"

	"github.com/go-redis/redis/v7"
)

// GetRedis returns a *redis.Client for addr, defaulting to localhost.
func GetRedis(addr string, db int) *redis.Client {
	if addr == "" {
		addr = "localhost:6379"
	}
	return redis.NewClient(&redis.Options{
		Addr:        addr,
		DB:          db,
		DialTimeout: 2 * time.Second,
	})
}

// PingRedis reports whether the client can reach its server.
func PingRedis(r *redis.Client) error {
	return r.Ping().Err()
}

func GetOrDefault(keys map[string]interface{}, key, def string) (string, bool) {
	value, ok := keys[key]
	if !ok {
		return def, ok
	}
	s, isString := value.(string)
	if !isString {
		return def, false
	}
	return s, ok
}
