package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const correlationPrefix = "correlation:"

// Correlation is what a checkout leaves behind for its webhook to find
type Correlation struct {
	Flow          string `json:"flow"`
	PaymentLinkID string `json:"payment_link_id,omitempty"`
	Kind          string `json:"tipo_assinatura,omitempty"`
	PurchaseRef   string `json:"numero_compra,omitempty"`
}

type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewClient creates a Redis client and verifies the connection
func NewClient(addr, password string, db int, ttl time.Duration) (*Client, error) {
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

	return &Client{rdb: rdb, ttl: ttl}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func correlationKey(id string) string {
	return correlationPrefix + id
}

// SaveCorrelation stores the routing data of a checkout under its correlation id
func (c *Client) SaveCorrelation(ctx context.Context, id string, corr Correlation) error {
	if id == "" {
		return errors.New("correlation id is required")
	}
	value, err := json.Marshal(corr)
	if err != nil {
		return fmt.Errorf("failed to marshal correlation: %w", err)
	}
	if err := c.rdb.Set(ctx, correlationKey(id), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save correlation %s: %w", id, err)
	}
	return nil
}

// LookupCorrelation returns the routing data for id, or nil when it expired or never existed
func (c *Client) LookupCorrelation(ctx context.Context, id string) (*Correlation, error) {
	if id == "" {
		return nil, nil
	}
	value, err := c.rdb.Get(ctx, correlationKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up correlation %s: %w", id, err)
	}

	var corr Correlation
	if err := json.Unmarshal(value, &corr); err != nil {
		return nil, fmt.Errorf("failed to decode correlation %s: %w", id, err)
	}
	return &corr, nil
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
