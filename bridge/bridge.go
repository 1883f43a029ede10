// Package bridge is the single entry point of the coordinator. Every mutating operation holds one
// lock for its full duration, so votes, executions, cancellations, deposits and admin changes are
// applied one at a time in a total order.
package bridge

import (
	"context"
	"sync"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/qubic/go-bridge-coordinator/access"
	"github.com/qubic/go-bridge-coordinator/chain"
	"github.com/qubic/go-bridge-coordinator/deposit"
	"github.com/qubic/go-bridge-coordinator/events"
	"github.com/qubic/go-bridge-coordinator/fee"
	"github.com/qubic/go-bridge-coordinator/handler"
	"github.com/qubic/go-bridge-coordinator/proposal"
	"github.com/qubic/go-bridge-coordinator/relayer"
	"github.com/qubic/go-bridge-coordinator/store"
	"github.com/qubic/go-bridge-coordinator/types"
	"go.uber.org/zap"
)

var ErrNotAuthorized = errors.New("caller is neither admin nor relayer")

// Caller is who sent a request. Suffix carries the identity a trusted forwarder appended on
// behalf of the original sender.
type Caller struct {
	Direct types.Address
	Suffix []byte
}

type Coordinator struct {
	domain    types.DomainID
	store     *store.PebbleStore
	authority *access.Authority
	relayers  *relayer.Set
	fees      *fee.Calculator
	handlers  *handler.Registry
	proposals *proposal.StateMachine
	deposits  *deposit.Router
	emitter   events.Emitter
	heights   chain.HeightSource
	logger    *zap.SugaredLogger

	mutex sync.RWMutex
}

func NewCoordinator(domain types.DomainID, s *store.PebbleStore, handlers *handler.Registry, emitter events.Emitter, heights chain.HeightSource, logger *zap.SugaredLogger) *Coordinator {
	fees := fee.NewCalculator(s)

	return &Coordinator{
		domain:    domain,
		store:     s,
		authority: access.NewAuthority(s),
		relayers:  relayer.NewSet(s),
		fees:      fees,
		handlers:  handlers,
		proposals: proposal.NewStateMachine(s, handlers, emitter, heights, logger),
		deposits:  deposit.NewRouter(domain, s, handlers, fees, emitter, heights, logger),
		emitter:   emitter,
		heights:   heights,
		logger:    logger.Named("bridge"),
	}
}

func (c *Coordinator) Domain() types.DomainID {
	return c.domain
}

func (c *Coordinator) resolve(ctx context.Context, caller Caller) (types.Address, error) {
	return c.authority.ResolveCaller(ctx, caller.Direct, caller.Suffix)
}

func (c *Coordinator) relayerCapability(ctx context.Context, caller Caller) (relayer.Capability, error) {
	identity, err := c.resolve(ctx, caller)
	if err != nil {
		return relayer.Capability{}, err
	}

	return c.relayers.Capability(ctx, identity)
}

func (c *Coordinator) Vote(ctx context.Context, caller Caller, originDomain types.DomainID, sequence uint64, resourceID types.ResourceID, payload []byte) (types.Status, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.authority.WhenNotPaused(ctx); err != nil {
		return types.StatusInactive, err
	}

	capability, err := c.relayerCapability(ctx, caller)
	if err != nil {
		return types.StatusInactive, err
	}

	return c.proposals.Vote(ctx, capability, originDomain, sequence, resourceID, payload)
}

func (c *Coordinator) Execute(ctx context.Context, caller Caller, originDomain types.DomainID, sequence uint64, payload []byte, resourceID types.ResourceID, revertOnFailure bool) (proposal.ExecutionResult, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.authority.WhenNotPaused(ctx); err != nil {
		return proposal.ExecutionResult{}, err
	}

	capability, err := c.relayerCapability(ctx, caller)
	if err != nil {
		return proposal.ExecutionResult{}, err
	}

	return c.proposals.Execute(ctx, capability, originDomain, sequence, payload, resourceID, revertOnFailure)
}

// Cancel may be called by an admin or any relayer once the proposal is past its expiry window.
func (c *Coordinator) Cancel(ctx context.Context, caller Caller, originDomain types.DomainID, sequence uint64, dataHash types.Hash) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.authority.WhenNotPaused(ctx); err != nil {
		return err
	}

	identity, err := c.resolve(ctx, caller)
	if err != nil {
		return err
	}

	allowed, err := c.relayers.IsMember(ctx, identity)
	if err != nil {
		return err
	}
	if !allowed {
		_, err := c.authority.Admin(ctx, identity)
		if err != nil {
			if errors.Is(err, access.ErrNotAdmin) {
				return errors.Wrapf(ErrNotAuthorized, "identity %s", identity.Hex())
			}
			return err
		}
	}

	return c.proposals.Cancel(ctx, originDomain, sequence, dataHash, identity)
}

type DepositReceipt struct {
	Sequence        uint64 `json:"sequence"`
	HandlerResponse []byte `json:"handlerResponse"`
}

func (c *Coordinator) Deposit(ctx context.Context, caller Caller, destinationDomain types.DomainID, resourceID types.ResourceID, payload []byte, value *uint256.Int) (DepositReceipt, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.authority.WhenNotPaused(ctx); err != nil {
		return DepositReceipt{}, err
	}

	initiator, err := c.resolve(ctx, caller)
	if err != nil {
		return DepositReceipt{}, err
	}

	sequence, response, err := c.deposits.Deposit(ctx, destinationDomain, resourceID, payload, value, initiator)
	if err != nil {
		return DepositReceipt{}, err
	}

	return DepositReceipt{Sequence: sequence, HandlerResponse: response}, nil
}

// ProposalView is what queries return. Found is false for keys nobody voted on; the other fields
// are then zero and Status is Inactive.
type ProposalView struct {
	Key             types.ProposalKey   `json:"key"`
	Found           bool                `json:"found"`
	Status          types.Status        `json:"status"`
	Voters          []types.RelayerSlot `json:"voters"`
	YesVotesTotal   uint16              `json:"yesVotesTotal"`
	ProposedAtBlock uint64              `json:"proposedAtBlock"`
}

func (c *Coordinator) GetProposal(ctx context.Context, originDomain types.DomainID, sequence uint64, dataHash types.Hash) (ProposalView, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	key := types.ProposalKey{OriginDomain: originDomain, DepositSequence: sequence, ContentHash: dataHash}
	p, found, err := c.proposals.Lookup(ctx, key)
	if err != nil {
		return ProposalView{}, err
	}
	if !found {
		return ProposalView{Key: key, Status: types.StatusInactive}, nil
	}

	return ProposalView{
		Key:             key,
		Found:           true,
		Status:          p.Status,
		Voters:          p.Voters(),
		YesVotesTotal:   p.YesVotesTotal,
		ProposedAtBlock: p.ProposedAtBlock,
	}, nil
}

// HasVoted checks the identity's current slot, or the slot it held when it was revoked. It is
// false for identities that were never relayers.
func (c *Coordinator) HasVoted(ctx context.Context, originDomain types.DomainID, sequence uint64, dataHash types.Hash, identity types.Address) (bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	slot, err := c.relayers.SlotOf(ctx, identity)
	if err != nil {
		if errors.Is(err, relayer.ErrNotAMember) {
			return false, nil
		}
		return false, err
	}

	key := types.ProposalKey{OriginDomain: originDomain, DepositSequence: sequence, ContentHash: dataHash}
	return c.proposals.HasVoted(ctx, key, slot)
}

func (c *Coordinator) QuoteFee(ctx context.Context, destinationDomain types.DomainID, resourceID types.ResourceID) (*uint256.Int, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.fees.Quote(ctx, destinationDomain, resourceID)
}

type HandlerFee struct {
	Token  types.Address `json:"token"`
	Amount *uint256.Int  `json:"amount"`
}

func (c *Coordinator) HandlerFee(ctx context.Context, resourceID types.ResourceID, initiator types.Address, destinationDomain types.DomainID, payload []byte) (HandlerFee, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	token, amount, err := c.deposits.HandlerFee(ctx, resourceID, initiator, destinationDomain, payload)
	if err != nil {
		return HandlerFee{}, err
	}

	return HandlerFee{Token: token, Amount: amount}, nil
}

func (c *Coordinator) DepositNonce(ctx context.Context, domain types.DomainID) (uint64, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.deposits.DepositNonce(ctx, domain)
}

func (c *Coordinator) IsRelayer(ctx context.Context, identity types.Address) (bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.relayers.IsMember(ctx, identity)
}

type Status struct {
	Domain      types.DomainID              `json:"domain"`
	Height      uint64                      `json:"height"`
	Paused      bool                        `json:"paused"`
	Threshold   uint16                      `json:"threshold"`
	Expiry      uint64                      `json:"expiry"`
	Relayers    []store.RelayerEntry        `json:"relayers"`
	Resources   map[types.ResourceID]string `json:"resources"`
	BaseFee     *uint256.Int                `json:"baseFee"`
	AccruedFees *uint256.Int                `json:"accruedFees"`
}

func (c *Coordinator) Status(ctx context.Context) (Status, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	paused, err := c.authority.IsPaused(ctx)
	if err != nil {
		return Status{}, errors.Wrap(err, "getting pause flag")
	}

	threshold, err := c.store.GetThreshold(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Status{}, errors.Wrap(err, "getting threshold")
	}

	expiry, err := c.store.GetExpiryWindow(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Status{}, errors.Wrap(err, "getting expiry window")
	}

	members, err := c.relayers.Members(ctx)
	if err != nil {
		return Status{}, err
	}

	resources, err := c.handlers.Resources(ctx)
	if err != nil {
		return Status{}, errors.Wrap(err, "listing resources")
	}

	baseFee, err := c.store.GetBaseFee(ctx)
	if err != nil {
		return Status{}, errors.Wrap(err, "getting base fee")
	}

	accrued, err := c.deposits.AccruedFees(ctx)
	if err != nil {
		return Status{}, errors.Wrap(err, "getting accrued fees")
	}

	return Status{
		Domain:      c.domain,
		Height:      c.heights.Height(),
		Paused:      paused,
		Threshold:   threshold,
		Expiry:      expiry,
		Relayers:    members,
		Resources:   resources,
		BaseFee:     baseFee,
		AccruedFees: accrued,
	}, nil
}
