// Package ledger is a fungible handler: deposits lock the forwarded amount, executed proposals
// release it to a recipient out of the locked liquidity.
package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/qubic/go-bridge-coordinator/handler"
	"github.com/qubic/go-bridge-coordinator/types"
	"github.com/qubic/go-bridge-coordinator/utils"
	"go.uber.org/zap"
)

const Name = "ledger"

var (
	ErrMalformedPayload      = errors.WithMessage(handler.ErrRejectedDeposit, "malformed ledger payload")
	ErrAmountMismatch        = errors.WithMessage(handler.ErrRejectedDeposit, "deposit amount does not match forwarded value")
	ErrInsufficientLiquidity = errors.New("insufficient locked liquidity")
)

type Store interface {
	GetLocked(ctx context.Context, resourceID types.ResourceID) (*uint256.Int, error)
	SetLocked(ctx context.Context, resourceID types.ResourceID, amount *uint256.Int) error
	GetReleased(ctx context.Context, resourceID types.ResourceID, recipient types.Address) (*uint256.Int, error)
	CommitRelease(ctx context.Context, resourceID types.ResourceID, recipient types.Address, released, locked *uint256.Int) error
}

type Handler struct {
	store  Store
	logger *zap.SugaredLogger
}

func New(store Store, logger *zap.SugaredLogger) *Handler {
	return &Handler{store: store, logger: logger}
}

// EncodePayload lays out amount (uint256), recipient length (uint256) and recipient bytes.
func EncodePayload(amount *uint256.Int, recipient types.Address) []byte {
	var data []byte
	amountWord := amount.Bytes32()
	data = append(data, amountWord[:]...)

	recipientLen := big.NewInt(int64(len(recipient.Bytes()))).Bytes()
	data = append(data, utils.PadWord(recipientLen)...)
	data = append(data, recipient.Bytes()...)

	return data
}

func DecodePayload(payload []byte) (*uint256.Int, types.Address, error) {
	if len(payload) < 64 {
		return nil, types.Address{}, errors.Wrapf(ErrMalformedPayload, "payload of %d bytes", len(payload))
	}

	amount := new(uint256.Int).SetBytes(payload[:32])
	recipientLen := new(uint256.Int).SetBytes(payload[32:64])
	if !recipientLen.IsUint64() || recipientLen.Uint64() != common.AddressLength {
		return nil, types.Address{}, errors.Wrap(ErrMalformedPayload, "recipient must be 20 bytes")
	}
	if len(payload) != 64+common.AddressLength {
		return nil, types.Address{}, errors.Wrapf(ErrMalformedPayload, "payload of %d bytes", len(payload))
	}

	return amount, common.BytesToAddress(payload[64:]), nil
}

func (h *Handler) Deposit(ctx context.Context, resourceID types.ResourceID, initiator types.Address, destinationDomain types.DomainID, payload []byte, value *uint256.Int) ([]byte, error) {
	amount, recipient, err := DecodePayload(payload)
	if err != nil {
		return nil, err
	}
	if !amount.Eq(value) {
		return nil, errors.Wrapf(ErrAmountMismatch, "payload amount %s, forwarded %s", amount.Dec(), value.Dec())
	}

	locked, err := h.store.GetLocked(ctx, resourceID)
	if err != nil {
		return nil, errors.Wrap(err, "getting locked amount")
	}
	locked, overflow := new(uint256.Int).AddOverflow(locked, amount)
	if overflow {
		return nil, errors.New("locked amount overflows")
	}
	if err := h.store.SetLocked(ctx, resourceID, locked); err != nil {
		return nil, errors.Wrap(err, "storing locked amount")
	}

	h.logger.Infow("Locked deposit", "resource", resourceID.Hex(), "initiator", initiator.Hex(),
		"destination", destinationDomain, "recipient", recipient.Hex(), "amount", amount.Dec())

	response := locked.Bytes32()
	return response[:], nil
}

func (h *Handler) ExecuteProposal(ctx context.Context, resourceID types.ResourceID, payload []byte) error {
	amount, recipient, err := DecodePayload(payload)
	if err != nil {
		return err
	}

	locked, err := h.store.GetLocked(ctx, resourceID)
	if err != nil {
		return errors.Wrap(err, "getting locked amount")
	}
	if locked.Lt(amount) {
		return errors.Wrapf(ErrInsufficientLiquidity, "locked %s, requested %s", locked.Dec(), amount.Dec())
	}

	released, err := h.store.GetReleased(ctx, resourceID, recipient)
	if err != nil {
		return errors.Wrap(err, "getting released amount")
	}
	released, overflow := new(uint256.Int).AddOverflow(released, amount)
	if overflow {
		return errors.New("released amount overflows")
	}

	if err := h.store.CommitRelease(ctx, resourceID, recipient, released, new(uint256.Int).Sub(locked, amount)); err != nil {
		return errors.Wrap(err, "storing release")
	}

	h.logger.Infow("Released proposal", "resource", resourceID.Hex(), "recipient", recipient.Hex(), "amount", amount.Dec())

	return nil
}

// CalculateFee charges nothing on top of the coordinator fee; the fee token is the native currency.
func (h *Handler) CalculateFee(_ context.Context, _ types.ResourceID, _ types.Address, _ types.DomainID, _ []byte) (types.Address, *uint256.Int, error) {
	return types.Address{}, uint256.NewInt(0), nil
}

func (h *Handler) Locked(ctx context.Context, resourceID types.ResourceID) (*uint256.Int, error) {
	return h.store.GetLocked(ctx, resourceID)
}

func (h *Handler) Released(ctx context.Context, resourceID types.ResourceID, recipient types.Address) (*uint256.Int, error) {
	return h.store.GetReleased(ctx, resourceID, recipient)
}
