package relayer

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/qubic/go-bridge-coordinator/store"
	"github.com/qubic/go-bridge-coordinator/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSet(t *testing.T) *Set {
	t.Helper()

	s, err := store.NewPebbleStore(filepath.Join(t.TempDir(), "testdb"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return NewSet(s)
}

func addr(i int) types.Address {
	return common.BigToAddress(big.NewInt(int64(i)))
}

func TestSet_AdmitAssignsIncreasingSlots(t *testing.T) {
	ctx := context.Background()
	set := newTestSet(t)

	for i := 1; i <= 3; i++ {
		slot, err := set.Admit(ctx, addr(i))
		require.NoError(t, err)
		require.Equal(t, types.RelayerSlot(i), slot)
	}

	slot, err := set.IndexOf(ctx, addr(2))
	require.NoError(t, err)
	require.Equal(t, types.RelayerSlot(2), slot)

	count, err := set.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestSet_AdmitTwiceFails(t *testing.T) {
	ctx := context.Background()
	set := newTestSet(t)

	_, err := set.Admit(ctx, addr(1))
	require.NoError(t, err)

	_, err = set.Admit(ctx, addr(1))
	require.ErrorIs(t, err, ErrAlreadyMember)
}

func TestSet_RevokeKeepsOtherSlotsAndNeverReuses(t *testing.T) {
	ctx := context.Background()
	set := newTestSet(t)

	for i := 1; i <= 3; i++ {
		_, err := set.Admit(ctx, addr(i))
		require.NoError(t, err)
	}

	revoked, err := set.Revoke(ctx, addr(1))
	require.NoError(t, err)
	require.Equal(t, types.RelayerSlot(1), revoked)

	member, err := set.IsMember(ctx, addr(1))
	require.NoError(t, err)
	require.False(t, member)

	// surviving members keep their slots
	slot, err := set.IndexOf(ctx, addr(3))
	require.NoError(t, err)
	require.Equal(t, types.RelayerSlot(3), slot)

	// a newcomer, or the revoked relayer coming back, gets a fresh slot
	slot, err = set.Admit(ctx, addr(4))
	require.NoError(t, err)
	require.Equal(t, types.RelayerSlot(4), slot)

	slot, err = set.Admit(ctx, addr(1))
	require.NoError(t, err)
	require.Equal(t, types.RelayerSlot(5), slot)
}

func TestSet_SlotOfSurvivesRevocation(t *testing.T) {
	ctx := context.Background()
	set := newTestSet(t)

	_, err := set.SlotOf(ctx, addr(1))
	require.ErrorIs(t, err, ErrNotAMember)

	for i := 1; i <= 2; i++ {
		_, err := set.Admit(ctx, addr(i))
		require.NoError(t, err)
	}

	slot, err := set.SlotOf(ctx, addr(2))
	require.NoError(t, err)
	require.Equal(t, types.RelayerSlot(2), slot)

	_, err = set.Revoke(ctx, addr(2))
	require.NoError(t, err)

	slot, err = set.SlotOf(ctx, addr(2))
	require.NoError(t, err)
	require.Equal(t, types.RelayerSlot(2), slot)

	_, err = set.Capability(ctx, addr(2))
	require.ErrorIs(t, err, ErrNotAMember)

	// coming back hands out a fresh slot, which is the one that counts from then on
	_, err = set.Admit(ctx, addr(2))
	require.NoError(t, err)
	slot, err = set.SlotOf(ctx, addr(2))
	require.NoError(t, err)
	require.Equal(t, types.RelayerSlot(3), slot)
}

func TestSet_IndexOfUnknown(t *testing.T) {
	ctx := context.Background()
	set := newTestSet(t)

	_, err := set.IndexOf(ctx, addr(9))
	require.ErrorIs(t, err, ErrNotAMember)

	_, err = set.Capability(ctx, addr(9))
	require.ErrorIs(t, err, ErrNotAMember)

	_, err = set.Revoke(ctx, addr(9))
	require.ErrorIs(t, err, ErrNotAMember)
}

func TestSet_Capability(t *testing.T) {
	ctx := context.Background()
	set := newTestSet(t)

	_, err := set.Admit(ctx, addr(1))
	require.NoError(t, err)
	_, err = set.Admit(ctx, addr(2))
	require.NoError(t, err)

	capability, err := set.Capability(ctx, addr(2))
	require.NoError(t, err)
	require.Equal(t, addr(2), capability.Identity())
	require.Equal(t, types.RelayerSlot(2), capability.Slot())
}

func TestSet_SlotsExhausted(t *testing.T) {
	ctx := context.Background()
	set := newTestSet(t)

	for i := 1; i <= types.MaxRelayers; i++ {
		_, err := set.Admit(ctx, addr(i))
		require.NoError(t, err)
	}

	_, err := set.Admit(ctx, addr(types.MaxRelayers+1))
	require.ErrorIs(t, err, ErrRelayerSlotsExhausted)

	// revocation does not free a slot
	_, err = set.Revoke(ctx, addr(1))
	require.NoError(t, err)
	_, err = set.Admit(ctx, addr(types.MaxRelayers+1))
	require.ErrorIs(t, err, ErrRelayerSlotsExhausted)
}
