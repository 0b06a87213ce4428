// Package mongodb wraps the MongoDB driver client.
package mongodb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kart-io/moktashif/pkg/component"
	options "github.com/kart-io/moktashif/pkg/options/mongodb"
)

var _ component.Client = (*Client)(nil)

const disconnectTimeout = 10 * time.Second

// Client holds a connected driver client and the configured database.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects using opts. The startup ping is bounded by ConnectTimeout
// so a missing server fails fast instead of hanging on selection.
func New(ctx context.Context, opts *options.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("mongodb options cannot be nil")
	}

	conn, err := mongo.Connect(ctx, clientOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx := ctx
	if opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}
	if err := conn.Ping(pingCtx, nil); err != nil {
		_ = conn.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb at %s: %w", opts.String(), err)
	}

	return &Client{client: conn, db: conn.Database(opts.Database)}, nil
}

func clientOptions(opts *options.Options) *mongoopts.ClientOptions {
	co := mongoopts.Client().ApplyURI(opts.BuildURI())
	if opts.MaxPoolSize > 0 {
		co.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if opts.ConnectTimeout > 0 {
		co.SetConnectTimeout(opts.ConnectTimeout)
	}
	if opts.ServerSelectionTimeout > 0 {
		co.SetServerSelectionTimeout(opts.ServerSelectionTimeout)
	}
	return co
}

func (c *Client) Name() string { return "mongodb" }

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, nil)
}

func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	return c.client.Disconnect(ctx)
}

// Collection returns a handle on the configured database.
func (c *Client) Collection(name string) *mongo.Collection {
	return c.db.Collection(name)
}

// EnsureIndexes creates the given indexes per collection. Existing indexes
// with the same keys and options are left alone by the server.
// Collections are processed in name order.
func (c *Client) EnsureIndexes(ctx context.Context, indexes map[string][]mongo.IndexModel) error {
	names := make([]string, 0, len(indexes))
	for name := range indexes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if len(indexes[name]) == 0 {
			continue
		}
		if _, err := c.db.Collection(name).Indexes().CreateMany(ctx, indexes[name]); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}
