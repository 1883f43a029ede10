package deposit

import (
	"context"
	"math"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/qubic/go-bridge-coordinator/chain"
	"github.com/qubic/go-bridge-coordinator/events"
	"github.com/qubic/go-bridge-coordinator/fee"
	"github.com/qubic/go-bridge-coordinator/handler"
	"github.com/qubic/go-bridge-coordinator/types"
	"go.uber.org/zap"
)

var (
	ErrInsufficientFee        = errors.New("attached value is below the fee")
	ErrInvalidNonceUpdate     = errors.New("deposit nonce can only be raised")
	ErrInsufficientFunds      = errors.New("withdrawal exceeds accrued fees")
	ErrDepositToCurrentDomain = errors.New("cannot deposit to the current domain")
	ErrNonceExhausted         = errors.New("deposit sequences for the domain are exhausted")
)

type Store interface {
	GetDepositNonce(ctx context.Context, domain types.DomainID) (uint64, error)
	SetDepositNonce(ctx context.Context, domain types.DomainID, nonce uint64) error
	CommitDeposit(ctx context.Context, domain types.DomainID, nonce uint64, accrued *uint256.Int) error
	GetAccruedFees(ctx context.Context) (*uint256.Int, error)
	SetAccruedFees(ctx context.Context, fees *uint256.Int) error
}

type HandlerResolver interface {
	Resolve(ctx context.Context, resourceID types.ResourceID) (handler.Handler, error)
}

type FeeQuoter interface {
	Quote(ctx context.Context, domain types.DomainID, resourceID types.ResourceID) (*uint256.Int, error)
}

// Router allocates per destination sequence numbers and forwards deposits to the resource's handler.
// Like the proposal state machine it expects its callers to serialize mutations.
type Router struct {
	domain   types.DomainID
	store    Store
	handlers HandlerResolver
	fees     FeeQuoter
	emitter  events.Emitter
	heights  chain.HeightSource
	logger   *zap.SugaredLogger
}

func NewRouter(domain types.DomainID, store Store, handlers HandlerResolver, fees FeeQuoter, emitter events.Emitter, heights chain.HeightSource, logger *zap.SugaredLogger) *Router {
	return &Router{
		domain:   domain,
		store:    store,
		handlers: handlers,
		fees:     fees,
		emitter:  emitter,
		heights:  heights,
		logger:   logger.Named("deposit"),
	}
}

// Deposit charges the quoted fee out of value, forwards the rest with the payload to the handler and
// returns the allocated sequence together with the handler's response. Nothing is stored when the
// handler fails.
func (r *Router) Deposit(ctx context.Context, destinationDomain types.DomainID, resourceID types.ResourceID, payload []byte, value *uint256.Int, initiator types.Address) (uint64, []byte, error) {
	if destinationDomain == r.domain {
		return 0, nil, errors.Wrapf(ErrDepositToCurrentDomain, "domain %d", destinationDomain)
	}

	h, err := r.handlers.Resolve(ctx, resourceID)
	if err != nil {
		return 0, nil, err
	}

	required, err := r.fees.Quote(ctx, destinationDomain, resourceID)
	if err != nil {
		return 0, nil, errors.Wrap(err, "quoting fee")
	}
	if value.Lt(required) {
		return 0, nil, errors.Wrapf(ErrInsufficientFee, "attached %s, required %s", value.Dec(), required.Dec())
	}

	current, err := r.store.GetDepositNonce(ctx, destinationDomain)
	if err != nil {
		return 0, nil, errors.Wrap(err, "getting deposit nonce")
	}
	if current == math.MaxUint64 {
		return 0, nil, errors.Wrapf(ErrNonceExhausted, "domain %d", destinationDomain)
	}
	sequence := current + 1

	accrued, err := r.store.GetAccruedFees(ctx)
	if err != nil {
		return 0, nil, errors.Wrap(err, "getting accrued fees")
	}
	accrued, overflow := new(uint256.Int).AddOverflow(accrued, required)
	if overflow {
		return 0, nil, errors.Wrap(fee.ErrFeeOverflow, "accruing deposit fee")
	}

	forwarded := new(uint256.Int).Sub(value, required)
	response, err := h.Deposit(ctx, resourceID, initiator, destinationDomain, payload, forwarded)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "handler rejected deposit to domain %d", destinationDomain)
	}

	err = r.store.CommitDeposit(ctx, destinationDomain, sequence, accrued)
	if err != nil {
		return 0, nil, errors.Wrap(err, "committing deposit")
	}

	r.emitter.Emit(ctx, events.Event{
		Kind:       events.DepositRecorded,
		Height:     r.heights.Height(),
		ResourceID: resourceID,
		Identity:   initiator,
		Value:      forwarded.Dec(),
		Deposit: &types.DepositRecord{
			DestinationDomain: destinationDomain,
			ResourceID:        resourceID,
			Sequence:          sequence,
			Initiator:         initiator,
			Payload:           payload,
			HandlerResponse:   response,
		},
	})

	return sequence, response, nil
}

func (r *Router) DepositNonce(ctx context.Context, domain types.DomainID) (uint64, error) {
	return r.store.GetDepositNonce(ctx, domain)
}

// SetDepositNonce raises the domain's counter; the next deposit gets nonce+1.
func (r *Router) SetDepositNonce(ctx context.Context, domain types.DomainID, nonce uint64) error {
	current, err := r.store.GetDepositNonce(ctx, domain)
	if err != nil {
		return errors.Wrap(err, "getting deposit nonce")
	}
	if nonce <= current {
		return errors.Wrapf(ErrInvalidNonceUpdate, "domain %d is at %d, requested %d", domain, current, nonce)
	}

	return r.store.SetDepositNonce(ctx, domain, nonce)
}

// HandlerFee asks the resource's handler what it charges on top of the bridge fee.
func (r *Router) HandlerFee(ctx context.Context, resourceID types.ResourceID, initiator types.Address, destinationDomain types.DomainID, payload []byte) (types.Address, *uint256.Int, error) {
	h, err := r.handlers.Resolve(ctx, resourceID)
	if err != nil {
		return types.Address{}, nil, err
	}

	token, amount, err := h.CalculateFee(ctx, resourceID, initiator, destinationDomain, payload)
	if err != nil {
		return types.Address{}, nil, errors.Wrap(err, "calculating handler fee")
	}

	return token, amount, nil
}

func (r *Router) AccruedFees(ctx context.Context) (*uint256.Int, error) {
	return r.store.GetAccruedFees(ctx)
}

// WithdrawFees debits amount from the accrued fee balance and returns what remains.
func (r *Router) WithdrawFees(ctx context.Context, amount *uint256.Int) (*uint256.Int, error) {
	accrued, err := r.store.GetAccruedFees(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting accrued fees")
	}
	if accrued.Lt(amount) {
		return nil, errors.Wrapf(ErrInsufficientFunds, "accrued %s, requested %s", accrued.Dec(), amount.Dec())
	}

	remaining := new(uint256.Int).Sub(accrued, amount)
	err = r.store.SetAccruedFees(ctx, remaining)
	if err != nil {
		return nil, errors.Wrap(err, "storing accrued fees")
	}

	return remaining, nil
}
