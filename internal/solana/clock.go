package solana

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Clock supplies the current chain time as unix seconds.
type Clock interface {
	Now(ctx context.Context) (int64, error)
}

// FixedClock always reports the same time.
type FixedClock int64

// Now returns the fixed time.
func (c FixedClock) Now(context.Context) (int64, error) {
	return int64(c), nil
}

// DefaultMaxSlotAge bounds how long a slot from the feed is trusted.
const DefaultMaxSlotAge = 30 * time.Second

// ChainClock reads the block time of the latest known rooted slot.
// Without a fresh slot from Follow it asks getSlot; when the RPC lookup fails
// it falls back to wall time.
type ChainClock struct {
	rpc        RPCClient
	logger     *zap.Logger
	wallTime   func() time.Time
	maxSlotAge time.Duration

	mu     sync.Mutex
	slot   int64
	seenAt time.Time
}

var _ Clock = (*ChainClock)(nil)

// ChainClockOption configures a ChainClock.
type ChainClockOption func(*ChainClock)

// WithMaxSlotAge sets how old a followed slot may be before getSlot is used again.
func WithMaxSlotAge(d time.Duration) ChainClockOption {
	return func(c *ChainClock) {
		if d > 0 {
			c.maxSlotAge = d
		}
	}
}

// WithWallClock replaces time.Now for staleness checks and the fallback.
func WithWallClock(now func() time.Time) ChainClockOption {
	return func(c *ChainClock) {
		c.wallTime = now
	}
}

// NewChainClock creates a clock backed by rpc.
func NewChainClock(rpc RPCClient, logger *zap.Logger, opts ...ChainClockOption) *ChainClock {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &ChainClock{
		rpc:        rpc,
		logger:     logger,
		wallTime:   time.Now,
		maxSlotAge: DefaultMaxSlotAge,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Follow consumes a slot feed so Now can skip the getSlot round trip.
// It returns when ctx is done or the feed is closed, and forgets the
// followed slot on the way out.
func (c *ChainClock) Follow(ctx context.Context, slots <-chan SlotNotification) {
	defer c.setSlot(0)
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-slots:
			if !ok {
				return
			}
			c.setSlot(timedSlot(n))
		}
	}
}

// timedSlot picks the newest slot that has a block time. The processed tip
// usually has none yet.
func timedSlot(n SlotNotification) int64 {
	switch {
	case n.Root > 0:
		return n.Root
	case n.Parent > 0:
		return n.Parent
	}
	return n.Slot
}

func (c *ChainClock) setSlot(slot int64) {
	c.mu.Lock()
	c.slot = slot
	c.seenAt = c.wallTime()
	c.mu.Unlock()
}

// Slot returns the followed slot, or 0 when there is none or it is stale.
func (c *ChainClock) Slot() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.slot == 0 || c.wallTime().Sub(c.seenAt) > c.maxSlotAge {
		return 0
	}
	return c.slot
}

// Now returns the block time of the followed slot, or of the getSlot tip.
func (c *ChainClock) Now(ctx context.Context) (int64, error) {
	if slot := c.Slot(); slot != 0 {
		bt, err := c.rpc.GetBlockTime(ctx, slot)
		if err == nil && bt != nil {
			return *bt, nil
		}
		c.logger.Debug("no block time for followed slot", zap.Int64("slot", slot), zap.Error(err))
	}

	slot, err := c.rpc.GetSlot(ctx)
	if err != nil {
		return c.fallback("getSlot", err), nil
	}
	bt, err := c.rpc.GetBlockTime(ctx, slot)
	if err != nil {
		return c.fallback("getBlockTime", err), nil
	}
	if bt == nil {
		return c.fallback("getBlockTime", nil), nil
	}
	return *bt, nil
}

func (c *ChainClock) fallback(method string, err error) int64 {
	now := c.wallTime().Unix()
	c.logger.Warn("chain time unavailable, using wall clock",
		zap.String("method", method),
		zap.Error(err),
		zap.Int64("wall_time", now))
	return now
}
