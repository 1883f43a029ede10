package chain

import (
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// HeightSource supplies the current block height used for proposal expiry.
type HeightSource interface {
	Height() uint64
}

// BlockClock derives a height from wall time: one block every interval since genesis.
// Heights never go backwards as long as genesis stays fixed across restarts.
type BlockClock struct {
	genesisHeight uint64
	genesisTime   time.Time
	interval      time.Duration
	now           func() time.Time
}

func NewBlockClock(genesisHeight uint64, genesisTime time.Time, interval time.Duration) (*BlockClock, error) {
	if interval <= 0 {
		return nil, errors.Errorf("block interval must be positive, got %s", interval)
	}

	return &BlockClock{
		genesisHeight: genesisHeight,
		genesisTime:   genesisTime,
		interval:      interval,
		now:           time.Now,
	}, nil
}

func (c *BlockClock) Height() uint64 {
	elapsed := c.now().Sub(c.genesisTime)
	if elapsed < 0 {
		return c.genesisHeight
	}

	return c.genesisHeight + uint64(elapsed/c.interval)
}

// ManualHeight is moved explicitly, by tests and by embedders that follow a real chain.
type ManualHeight struct {
	height atomic.Uint64
}

func NewManualHeight(height uint64) *ManualHeight {
	m := &ManualHeight{}
	m.height.Store(height)
	return m
}

func (m *ManualHeight) Height() uint64 {
	return m.height.Load()
}

func (m *ManualHeight) Set(height uint64) {
	m.height.Store(height)
}

func (m *ManualHeight) Advance(blocks uint64) uint64 {
	return m.height.Add(blocks)
}
