package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/go-cmp/cmp"
	"github.com/holiman/uint256"
	"github.com/qubic/go-bridge-coordinator/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var bitsetComparer = cmp.Comparer(func(a, b *bitset.BitSet) bool {
	return a.Equal(b)
})

func newTestStore(t *testing.T) *PebbleStore {
	t.Helper()

	logger, _ := zap.NewDevelopment()
	s, err := NewPebbleStore(filepath.Join(t.TempDir(), "testdb"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func TestPebbleStore_Proposal(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var resourceID types.ResourceID
	resourceID[31] = 1
	key := types.NewProposalKey(1, 7, resourceID, []byte("payload"))

	_, err := s.GetProposal(ctx, key)
	require.ErrorIs(t, err, ErrNotFound)

	p := types.NewProposal()
	p.Status = types.StatusActive
	p.ProposedAtBlock = 100
	p.AddVote(1)
	p.AddVote(5)
	p.AddVote(200)

	err = s.SetProposal(ctx, key, p)
	require.NoError(t, err)

	got, err := s.GetProposal(ctx, key)
	require.NoError(t, err)
	if diff := cmp.Diff(p, got, bitsetComparer); diff != "" {
		t.Fatalf("unexpected proposal (-want +got):\n%s", diff)
	}

	// a different payload for the same domain and sequence is a different proposal
	other := types.NewProposalKey(1, 7, resourceID, []byte("other payload"))
	_, err = s.GetProposal(ctx, other)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPebbleStore_Relayers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	last, err := s.GetLastAllocatedSlot(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(0), last)

	a := common.HexToAddress("0x0a")
	b := common.HexToAddress("0x0b")

	require.NoError(t, s.AdmitRelayer(ctx, a, 1))
	require.NoError(t, s.AdmitRelayer(ctx, b, 2))

	last, err = s.GetLastAllocatedSlot(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), last)

	slot, err := s.GetRelayerSlot(ctx, b)
	require.NoError(t, err)
	require.Equal(t, types.RelayerSlot(2), slot)

	_, err = s.GetRevokedRelayerSlot(ctx, a)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.RemoveRelayer(ctx, a, 1))
	_, err = s.GetRelayerSlot(ctx, a)
	require.ErrorIs(t, err, ErrNotFound)

	revoked, err := s.GetRevokedRelayerSlot(ctx, a)
	require.NoError(t, err)
	require.Equal(t, types.RelayerSlot(1), revoked)

	relayers, err := s.ListRelayers(ctx)
	require.NoError(t, err)
	require.Equal(t, []RelayerEntry{{Identity: b, Slot: 2}}, relayers)

	// removal never rewinds the slot counter
	last, err = s.GetLastAllocatedSlot(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), last)
}

func TestPebbleStore_DepositNonceAndFees(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	nonce, err := s.GetDepositNonce(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(0), nonce)

	require.NoError(t, s.CommitDeposit(ctx, 2, 11, uint256.NewInt(500)))

	nonce, err = s.GetDepositNonce(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(11), nonce)

	fees, err := s.GetAccruedFees(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(500), fees.Uint64())

	// other domains have their own counters
	nonce, err = s.GetDepositNonce(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, uint64(0), nonce)
}

func TestPebbleStore_FeeSchedule(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base, err := s.GetBaseFee(ctx)
	require.NoError(t, err)
	require.True(t, base.IsZero())

	require.NoError(t, s.SetBaseFee(ctx, uint256.NewInt(1_000_000)))
	base, err = s.GetBaseFee(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000), base.Uint64())

	var resourceID types.ResourceID
	resourceID[0] = 9

	m, err := s.GetDomainMultiplier(ctx, 4)
	require.NoError(t, err)
	require.Equal(t, uint64(0), m)
	require.NoError(t, s.SetDomainMultiplier(ctx, 4, 1500))
	m, err = s.GetDomainMultiplier(ctx, 4)
	require.NoError(t, err)
	require.Equal(t, uint64(1500), m)

	require.NoError(t, s.SetResourceMultiplier(ctx, resourceID, 250))
	m, err = s.GetResourceMultiplier(ctx, resourceID)
	require.NoError(t, err)
	require.Equal(t, uint64(250), m)
}

func TestPebbleStore_Settings(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.GetThreshold(ctx)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.SetThreshold(ctx, 3))
	threshold, err := s.GetThreshold(ctx)
	require.NoError(t, err)
	require.Equal(t, uint16(3), threshold)

	require.NoError(t, s.SetExpiryWindow(ctx, 50))
	expiry, err := s.GetExpiryWindow(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(50), expiry)

	paused, err := s.IsPaused(ctx)
	require.NoError(t, err)
	require.False(t, paused)
	require.NoError(t, s.SetPaused(ctx, true))
	paused, err = s.IsPaused(ctx)
	require.NoError(t, err)
	require.True(t, paused)
	require.NoError(t, s.SetPaused(ctx, false))
	paused, err = s.IsPaused(ctx)
	require.NoError(t, err)
	require.False(t, paused)

	fwd := common.HexToAddress("0xf0")
	require.NoError(t, s.SetForwarder(ctx, fwd, true))
	trusted, err := s.IsForwarder(ctx, fwd)
	require.NoError(t, err)
	require.True(t, trusted)

	admin := common.HexToAddress("0xad")
	require.NoError(t, s.SetAdmin(ctx, admin, true))
	isAdmin, err := s.IsAdmin(ctx, admin)
	require.NoError(t, err)
	require.True(t, isAdmin)
}

func TestPebbleStore_ResourceHandlers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var r1, r2 types.ResourceID
	r1[31] = 1
	r2[31] = 2

	_, err := s.GetResourceHandler(ctx, r1)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetResourceHandler(ctx, r1, "ledger"))
	require.NoError(t, s.SetResourceHandler(ctx, r2, "generic"))

	resources, err := s.ListResourceHandlers(ctx)
	require.NoError(t, err)
	require.Equal(t, map[types.ResourceID]string{r1: "ledger", r2: "generic"}, resources)

	require.NoError(t, s.DeleteResourceHandler(ctx, r2))
	_, err = s.GetResourceHandler(ctx, r2)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPebbleStore_Ledger(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var resourceID types.ResourceID
	recipient := common.HexToAddress("0xbeef")

	released, err := s.GetReleased(ctx, resourceID, recipient)
	require.NoError(t, err)
	require.True(t, released.IsZero())

	require.NoError(t, s.SetLocked(ctx, resourceID, uint256.NewInt(50)))
	locked, err := s.GetLocked(ctx, resourceID)
	require.NoError(t, err)
	require.Equal(t, uint64(50), locked.Uint64())

	require.NoError(t, s.CommitRelease(ctx, resourceID, recipient, uint256.NewInt(42), uint256.NewInt(8)))
	released, err = s.GetReleased(ctx, resourceID, recipient)
	require.NoError(t, err)
	require.Equal(t, uint64(42), released.Uint64())

	locked, err = s.GetLocked(ctx, resourceID)
	require.NoError(t, err)
	require.Equal(t, uint64(8), locked.Uint64())
}

func TestPrefixUpperBound(t *testing.T) {
	require.Equal(t, []byte{0x02}, prefixUpperBound([]byte{0x01}))
	require.Equal(t, []byte{0x02}, prefixUpperBound([]byte{0x01, 0xff}))
	require.Nil(t, prefixUpperBound([]byte{0xff}))
}
