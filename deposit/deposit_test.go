package deposit

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/qubic/go-bridge-coordinator/chain"
	"github.com/qubic/go-bridge-coordinator/events"
	"github.com/qubic/go-bridge-coordinator/fee"
	"github.com/qubic/go-bridge-coordinator/handler"
	"github.com/qubic/go-bridge-coordinator/handler/ledger"
	"github.com/qubic/go-bridge-coordinator/store"
	"github.com/qubic/go-bridge-coordinator/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	resource  = types.ResourceID{0x01}
	initiator = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	recipient = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

type fixture struct {
	router   *Router
	store    *store.PebbleStore
	ledger   *ledger.Handler
	recorder *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	s, err := store.NewPebbleStore(filepath.Join(t.TempDir(), "testdb"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	l := ledger.New(s, zap.NewNop().Sugar())
	registry := handler.NewRegistry(s)
	registry.Register(ledger.Name, l)
	require.NoError(t, registry.Bind(ctx, resource, ledger.Name, nil))

	calculator := fee.NewCalculator(s)
	require.NoError(t, calculator.SetBaseFee(ctx, uint256.NewInt(10)))

	recorder := &events.Recorder{}
	router := NewRouter(1, s, registry, calculator, recorder, chain.NewManualHeight(42), zap.NewNop().Sugar())

	return &fixture{router: router, store: s, ledger: l, recorder: recorder}
}

func TestRouter_Deposit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	payload := ledger.EncodePayload(uint256.NewInt(100), recipient)
	sequence, response, err := f.router.Deposit(ctx, 2, resource, payload, uint256.NewInt(110), initiator)
	require.NoError(t, err)
	require.Equal(t, uint64(1), sequence)
	require.Equal(t, uint256.NewInt(100).Bytes(), common.TrimLeftZeroes(response))

	sequence, _, err = f.router.Deposit(ctx, 2, resource, payload, uint256.NewInt(110), initiator)
	require.NoError(t, err)
	require.Equal(t, uint64(2), sequence)

	sequence, _, err = f.router.Deposit(ctx, 3, resource, payload, uint256.NewInt(110), initiator)
	require.NoError(t, err)
	require.Equal(t, uint64(1), sequence)

	locked, err := f.ledger.Locked(ctx, resource)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(300), locked)

	accrued, err := f.router.AccruedFees(ctx)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(30), accrued)

	recorded := f.recorder.Events()
	require.Len(t, recorded, 3)
	require.Equal(t, events.DepositRecorded, recorded[0].Kind)
	require.Equal(t, &types.DepositRecord{
		DestinationDomain: 2,
		ResourceID:        resource,
		Sequence:          1,
		Initiator:         initiator,
		Payload:           payload,
		HandlerResponse:   response,
	}, recorded[0].Deposit)
	require.Equal(t, "100", recorded[0].Value)
}

func TestRouter_DepositRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	payload := ledger.EncodePayload(uint256.NewInt(100), recipient)

	_, _, err := f.router.Deposit(ctx, 2, types.ResourceID{0xff}, payload, uint256.NewInt(110), initiator)
	require.ErrorIs(t, err, handler.ErrUnknownResource)

	_, _, err = f.router.Deposit(ctx, 2, resource, payload, uint256.NewInt(9), initiator)
	require.ErrorIs(t, err, ErrInsufficientFee)

	_, _, err = f.router.Deposit(ctx, 1, resource, payload, uint256.NewInt(110), initiator)
	require.ErrorIs(t, err, ErrDepositToCurrentDomain)

	// handler sees 105 forwarded against a payload of 100
	_, _, err = f.router.Deposit(ctx, 2, resource, payload, uint256.NewInt(115), initiator)
	require.ErrorIs(t, err, ledger.ErrAmountMismatch)

	nonce, err := f.router.DepositNonce(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(0), nonce)

	accrued, err := f.router.AccruedFees(ctx)
	require.NoError(t, err)
	require.True(t, accrued.IsZero())
	require.Empty(t, f.recorder.Events())
}

func TestRouter_SetDepositNonce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.router.SetDepositNonce(ctx, 2, 10))

	err := f.router.SetDepositNonce(ctx, 2, 5)
	require.ErrorIs(t, err, ErrInvalidNonceUpdate)

	err = f.router.SetDepositNonce(ctx, 2, 10)
	require.ErrorIs(t, err, ErrInvalidNonceUpdate)

	require.NoError(t, f.router.SetDepositNonce(ctx, 2, 15))

	payload := ledger.EncodePayload(uint256.NewInt(1), recipient)
	sequence, _, err := f.router.Deposit(ctx, 2, resource, payload, uint256.NewInt(11), initiator)
	require.NoError(t, err)
	require.Equal(t, uint64(16), sequence)

	// the last sequence is handed out once, after that the domain is closed
	require.NoError(t, f.router.SetDepositNonce(ctx, 2, math.MaxUint64-1))
	sequence, _, err = f.router.Deposit(ctx, 2, resource, payload, uint256.NewInt(11), initiator)
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64), sequence)

	locked, err := f.ledger.Locked(ctx, resource)
	require.NoError(t, err)

	for range 2 {
		_, _, err = f.router.Deposit(ctx, 2, resource, payload, uint256.NewInt(11), initiator)
		require.ErrorIs(t, err, ErrNonceExhausted)
	}

	nonce, err := f.router.DepositNonce(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64), nonce)

	after, err := f.ledger.Locked(ctx, resource)
	require.NoError(t, err)
	require.Equal(t, locked, after)

	err = f.router.SetDepositNonce(ctx, 2, math.MaxUint64)
	require.ErrorIs(t, err, ErrInvalidNonceUpdate)
}

func TestRouter_HandlerFee(t *testing.T) {
	f := newFixture(t)

	token, amount, err := f.router.HandlerFee(context.Background(), resource, initiator, 2, nil)
	require.NoError(t, err)
	require.Equal(t, types.Address{}, token)
	require.True(t, amount.IsZero())

	_, _, err = f.router.HandlerFee(context.Background(), types.ResourceID{0xff}, initiator, 2, nil)
	require.ErrorIs(t, err, handler.ErrUnknownResource)
}

func TestRouter_WithdrawFees(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.SetAccruedFees(ctx, uint256.NewInt(50)))

	_, err := f.router.WithdrawFees(ctx, uint256.NewInt(51))
	require.ErrorIs(t, err, ErrInsufficientFunds)

	remaining, err := f.router.WithdrawFees(ctx, uint256.NewInt(20))
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(30), remaining)

	accrued, err := f.router.AccruedFees(ctx)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(30), accrued)
}
