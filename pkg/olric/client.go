package olric

import (
	"context"
	"fmt"
	"time"

	olriclib "github.com/olric-data/olric"
	"go.uber.org/zap"
)

// defaultDialTimeout bounds an operation's context when the caller
// hasn't already set its own deadline, so a single slow cluster member
// can't hang the registry's directory operations indefinitely.
const defaultDialTimeout = 10 * time.Second

// Client is netring's handle onto an olric cluster: the concrete Store
// backend spec.md §4.3 names. It wraps olric's own cluster client
// rather than replacing it, since a DMap is already the right shape for
// netring's flat key/value member and metrics records.
type Client struct {
	raw     olriclib.Client
	logger  *zap.Logger
	timeout time.Duration
}

// Config points a Client at an olric cluster.
type Config struct {
	// Servers is the cluster's node addresses (e.g. ["localhost:3320"]).
	// Empty defaults to a single local node.
	Servers []string

	// Timeout bounds an operation's context when the caller passes one
	// with no deadline of its own. Zero defaults to defaultDialTimeout.
	Timeout time.Duration
}

// NewClient dials the olric cluster described by cfg.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	servers := cfg.Servers
	if len(servers) == 0 {
		servers = []string{"localhost:3320"}
	}

	raw, err := olriclib.NewClusterClient(servers)
	if err != nil {
		return nil, fmt.Errorf("netring olric: dial cluster %v: %w", servers, err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultDialTimeout
	}

	return &Client{raw: raw, logger: logger, timeout: timeout}, nil
}

// boundCtx applies the client's configured timeout to ctx when ctx has
// no deadline of its own.
func (c *Client) boundCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Health verifies the cluster is reachable and serving writes by
// round-tripping a throwaway key through a dedicated DMap.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := c.boundCtx(ctx)
	defer cancel()

	dm, err := c.raw.NewDMap("netring_health_check")
	if err != nil {
		return fmt.Errorf("netring olric: open health-check dmap: %w", err)
	}

	key := fmt.Sprintf("probe-%d", time.Now().UnixNano())
	const want = "ok"

	if err := dm.Put(ctx, key, want); err != nil {
		return fmt.Errorf("netring olric: health-check put: %w", err)
	}

	gr, err := dm.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("netring olric: health-check get: %w", err)
	}
	got, err := gr.String()
	if err != nil {
		return fmt.Errorf("netring olric: health-check decode: %w", err)
	}
	if got != want {
		return fmt.Errorf("netring olric: health-check value mismatch: want %q, got %q", want, got)
	}

	_, _ = dm.Delete(ctx, key)
	return nil
}

// Close tears down the cluster connection. Safe to call on a nil-raw
// Client (e.g. if NewClient failed partway through in a future change).
func (c *Client) Close(ctx context.Context) error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close(ctx)
}

// GetClient returns the underlying olric client, for the Store adapter
// to open its DMap against.
func (c *Client) GetClient() olriclib.Client {
	return c.raw
}
