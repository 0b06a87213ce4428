// Package component defines the contract shared by backend client wrappers.
package component

import (
	"context"
	"time"
)

// Client is implemented by every backend client wrapper (MongoDB, Redis, Milvus).
type Client interface {
	// Name returns the backend type identifier.
	Name() string

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

// Status is the health of a single backend.
type Status struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// Check pings every client with the given per-client timeout and reports the result by name.
func Check(ctx context.Context, timeout time.Duration, clients ...Client) map[string]Status {
	out := make(map[string]Status, len(clients))
	for _, c := range clients {
		if c == nil {
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		err := c.Ping(cctx)
		cancel()

		st := Status{Healthy: err == nil, Latency: time.Since(start)}
		if err != nil {
			st.Error = err.Error()
		}
		out[c.Name()] = st
	}
	return out
}
