package core

import "sync/atomic"

var _ HeightSource = (*Chain)(nil)

// Chain is an in-memory ledger height. It only moves forward.
type Chain struct {
	height atomic.Uint64
}

func NewChain(height uint64) *Chain {
	c := &Chain{}
	c.height.Store(height)
	return c
}

func (c *Chain) Height() uint64 {
	return c.height.Load()
}

// Advance mines n empty blocks and returns the new height.
func (c *Chain) Advance(n uint64) uint64 {
	return c.height.Add(n)
}

// AdvanceTo moves the chain to height. Heights in the past are ignored.
func (c *Chain) AdvanceTo(height uint64) uint64 {
	for {
		cur := c.height.Load()
		if height <= cur {
			return cur
		}
		if c.height.CompareAndSwap(cur, height) {
			return height
		}
	}
}
