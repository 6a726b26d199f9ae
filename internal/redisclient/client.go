package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pharmacy-store/internal/cart"
	"pharmacy-store/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

//go:embed scripts/touch_cart.lua
var touchCartScript string

const promotionsKey = "promotions:active"

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
	touchScript   *redis.Script
	cartTTL       time.Duration
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int, cartTTL time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
		touchScript:   redis.NewScript(touchCartScript),
		cartTTL:       cartTTL,
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func cartKey(id uuid.UUID) string {
	return fmt.Sprintf("cart:%s", id)
}

// SaveCart stores a cart session, resetting its expiry
func (c *Client) SaveCart(ctx context.Context, ct *cart.Cart) error {
	payload, err := json.Marshal(ct)
	if err != nil {
		return fmt.Errorf("failed to marshal cart: %w", err)
	}
	return c.rdb.Set(ctx, cartKey(ct.ID), payload, c.cartTTL).Err()
}

// LoadCart fetches a cart session and slides its expiry
func (c *Client) LoadCart(ctx context.Context, id uuid.UUID) (*cart.Cart, error) {
	result, err := c.touchScript.Run(ctx, c.rdb, []string{cartKey(id)}, c.cartTTL.Milliseconds()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", models.ErrCartNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("touch cart script failed: %w", err)
	}

	payload, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected script result type")
	}

	var ct cart.Cart
	if err := json.Unmarshal([]byte(payload), &ct); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart: %w", err)
	}
	return &ct, nil
}

// DeleteCart drops a cart session
func (c *Client) DeleteCart(ctx context.Context, id uuid.UUID) error {
	return c.rdb.Del(ctx, cartKey(id)).Err()
}

// CachePromotions stores the active promotion set for ttl
func (c *Client) CachePromotions(ctx context.Context, promotions []models.Promotion, ttl time.Duration) error {
	payload, err := json.Marshal(promotions)
	if err != nil {
		return fmt.Errorf("failed to marshal promotions: %w", err)
	}
	return c.rdb.Set(ctx, promotionsKey, payload, ttl).Err()
}

// CachedPromotions returns the cached promotion set; ok is false on a miss
func (c *Client) CachedPromotions(ctx context.Context) (promotions []models.Promotion, ok bool, err error) {
	payload, err := c.rdb.Get(ctx, promotionsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal(payload, &promotions); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal promotions: %w", err)
	}
	return promotions, true, nil
}

// InvalidatePromotions forgets the cached promotion set
func (c *Client) InvalidatePromotions(ctx context.Context) error {
	return c.rdb.Del(ctx, promotionsKey).Err()
}

// AcquireLock acquires a distributed lock and returns the owner token needed to release it
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// ReleaseLock releases a distributed lock if token still owns it
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{fmt.Sprintf("lock:%s", lockKey)}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}
