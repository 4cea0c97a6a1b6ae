package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"kisanpos/backend/internal/domain"
)

type RedisCustomerCache struct {
	client *redis.Client
}

func NewRedisCustomerCache(addr string, password string, db int) *RedisCustomerCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisCustomerCache{client: client}
}

func (c *RedisCustomerCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCustomerCache) Close() error {
	return c.client.Close()
}

func key(mobile string) string {
	return "customer:" + mobile
}

func (c *RedisCustomerCache) Get(ctx context.Context, mobile string) (*domain.Customer, bool, error) {
	val, err := c.client.Get(ctx, key(mobile)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var customer domain.Customer
	if err := json.Unmarshal([]byte(val), &customer); err != nil {
		return nil, false, err
	}
	return &customer, true, nil
}

func (c *RedisCustomerCache) Set(ctx context.Context, customer *domain.Customer, ttl time.Duration) error {
	if customer == nil {
		return nil
	}
	payload, err := json.Marshal(customer)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(customer.Mobile), payload, ttl).Err()
}

func (c *RedisCustomerCache) Invalidate(ctx context.Context, mobile string) error {
	return c.client.Del(ctx, key(mobile)).Err()
}
