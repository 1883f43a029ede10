package fee

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
	"github.com/qubic/go-bridge-coordinator/store"
	"github.com/qubic/go-bridge-coordinator/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCompute(t *testing.T) {
	cases := []struct {
		name               string
		base               uint64
		domainMultiplier   uint64
		resourceMultiplier uint64
		expected           uint64
	}{
		{name: "no overrides", base: 1000, expected: 1000},
		{name: "domain only", base: 1000, domainMultiplier: 1500, expected: 1500},
		{name: "resource only", base: 1000, resourceMultiplier: 500, expected: 500},
		// floor(floor(333*1500/1000)*1500/1000) = floor(499*1.5) = 748, not round(333*2.25)=749
		{name: "floors after each step", base: 333, domainMultiplier: 1500, resourceMultiplier: 1500, expected: 748},
		{name: "truncates to zero", base: 1, domainMultiplier: 999, expected: 0},
		{name: "zero base", base: 0, domainMultiplier: 2000, resourceMultiplier: 2000, expected: 0},
		{name: "identity multipliers", base: 12345, domainMultiplier: 1000, resourceMultiplier: 1000, expected: 12345},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Compute(uint256.NewInt(tc.base), tc.domainMultiplier, tc.resourceMultiplier)
			require.NoError(t, err)
			require.Equal(t, tc.expected, got.Uint64())
		})
	}
}

func TestCompute_DoesNotMutateBase(t *testing.T) {
	base := uint256.NewInt(1000)
	_, err := Compute(base, 2000, 2000)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), base.Uint64())
}

func TestCompute_Overflow(t *testing.T) {
	base := new(uint256.Int).SetAllOne()
	_, err := Compute(base, 2000, 0)
	require.ErrorIs(t, err, ErrFeeOverflow)
}

func TestCalculator_Quote(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewPebbleStore(filepath.Join(t.TempDir(), "testdb"), zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	c := NewCalculator(s)

	var resourceID types.ResourceID
	resourceID[31] = 1

	fee, err := c.Quote(ctx, 2, resourceID)
	require.NoError(t, err)
	require.True(t, fee.IsZero())

	require.NoError(t, c.SetBaseFee(ctx, uint256.NewInt(10_000)))
	fee, err = c.Quote(ctx, 2, resourceID)
	require.NoError(t, err)
	require.Equal(t, uint64(10_000), fee.Uint64())

	require.NoError(t, c.SetDomainMultiplier(ctx, 2, 1250))
	require.NoError(t, c.SetResourceMultiplier(ctx, resourceID, 800))
	fee, err = c.Quote(ctx, 2, resourceID)
	require.NoError(t, err)
	require.Equal(t, uint64(10_000), fee.Uint64())

	// other domain, only the resource multiplier applies
	fee, err = c.Quote(ctx, 3, resourceID)
	require.NoError(t, err)
	require.Equal(t, uint64(8_000), fee.Uint64())
}
