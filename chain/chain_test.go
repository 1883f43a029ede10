package chain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBlockClock_Height(t *testing.T) {
	genesis := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock, err := NewBlockClock(100, genesis, 2*time.Second)
	require.NoError(t, err)

	current := genesis
	clock.now = func() time.Time { return current }
	require.Equal(t, uint64(100), clock.Height())

	current = genesis.Add(5 * time.Second)
	require.Equal(t, uint64(102), clock.Height())

	current = genesis.Add(-time.Hour)
	require.Equal(t, uint64(100), clock.Height())
}

func TestBlockClock_InvalidInterval(t *testing.T) {
	_, err := NewBlockClock(0, time.Now(), 0)
	require.Error(t, err)
}

func TestManualHeight(t *testing.T) {
	m := NewManualHeight(100)
	require.Equal(t, uint64(100), m.Height())
	require.Equal(t, uint64(160), m.Advance(60))
	m.Set(5)
	require.Equal(t, uint64(5), m.Height())
}
