// Package milvus maintains an optional approximate-nearest-neighbor index
// over stored normalized series. It is a recall-only prefilter: it narrows
// the candidate set handed to the exact DTW scorer and never produces a
// reported distance.
package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// Client manages Milvus connections.
type Client struct {
	conn client.Client
	addr string
}

// Config holds Milvus connection configuration.
type Config struct {
	Address  string // Milvus server address (e.g. "localhost:19530")
	Username string // optional
	Password string // optional
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{Address: "localhost:19530"}
}

// NewClient creates a new Milvus client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	conn, err := client.NewClient(ctx, client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{conn: conn, addr: cfg.Address}, nil
}

// Close closes the Milvus connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// CreateIndex creates an IVF_FLAT index on the series field.
func (c *Client) CreateIndex(ctx context.Context, collectionName string) error {
	idx, err := entity.NewIndexIvfFlat(entity.L2, 128)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return c.conn.CreateIndex(ctx, collectionName, "series", idx, false)
}

// LoadCollection loads a collection into memory.
func (c *Client) LoadCollection(ctx context.Context, collectionName string) error {
	return c.conn.LoadCollection(ctx, collectionName, false)
}

// Flush flushes the collection to ensure data persistence.
func (c *Client) Flush(ctx context.Context, collectionName string) error {
	return c.conn.Flush(ctx, collectionName, false)
}
