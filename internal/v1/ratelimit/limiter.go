// Package ratelimit gates TCP accepts per source IP. The game protocol
// is not HTTP, so instead of middleware this exposes a plain Allow
// check backed by the limiter's in-memory store.
package ratelimit

import (
	"context"
	"fmt"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// ConnectionLimiter enforces a per-IP accept rate.
type ConnectionLimiter struct {
	limiter *limiter.Limiter
}

// NewConnectionLimiter parses a formatted rate ("60-M", "1000-H") and
// builds a memory-store limiter for it.
func NewConnectionLimiter(formatted string) (*ConnectionLimiter, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("invalid connection rate: %w", err)
	}
	return &ConnectionLimiter{
		limiter: limiter.New(memory.NewStore(), rate),
	}, nil
}

// Allow reports whether a connection from ip is within the rate. A
// store error fails open; refusing service on a limiter fault would be
// worse than admitting one connection too many.
func (cl *ConnectionLimiter) Allow(ctx context.Context, ip string) bool {
	res, err := cl.limiter.Get(ctx, ip)
	if err != nil {
		return true
	}
	return !res.Reached
}
