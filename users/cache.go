package users

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v7"
	"github.com/goccy/go-json"
)

// PermCache remembers the resolved permission set of a user.
type PermCache interface {
	Get(userID uint) ([]string, bool, error)
	Set(userID uint, perms []string) error
	Delete(userID uint) error
}

// RedisPermCache stores permission sets as JSON strings with a TTL.
type RedisPermCache struct {
	Client *redis.Client
	TTL    time.Duration
	Prefix string
}

func NewRedisPermCache(client *redis.Client, ttl time.Duration) *RedisPermCache {
	return &RedisPermCache{Client: client, TTL: ttl, Prefix: "adminutils:perms:"}
}

func (c *RedisPermCache) key(id uint) string {
	return fmt.Sprintf("%s%d", c.Prefix, id)
}

func (c *RedisPermCache) Get(userID uint) ([]string, bool, error) {
	raw, err := c.Client.Get(c.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var perms []string
	if err := json.Unmarshal([]byte(raw), &perms); err != nil {
		return nil, false, err
	}
	return perms, true, nil
}

func (c *RedisPermCache) Set(userID uint, perms []string) error {
	if perms == nil {
		perms = []string{}
	}
	data, err := json.Marshal(perms)
	if err != nil {
		return err
	}
	return c.Client.Set(c.key(userID), data, c.TTL).Err()
}

func (c *RedisPermCache) Delete(userID uint) error {
	return c.Client.Del(c.key(userID)).Err()
}
