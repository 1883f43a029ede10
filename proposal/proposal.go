package proposal

import (
	"context"

	"github.com/pkg/errors"
	"github.com/qubic/go-bridge-coordinator/chain"
	"github.com/qubic/go-bridge-coordinator/events"
	"github.com/qubic/go-bridge-coordinator/handler"
	"github.com/qubic/go-bridge-coordinator/relayer"
	"github.com/qubic/go-bridge-coordinator/store"
	"github.com/qubic/go-bridge-coordinator/types"
	"go.uber.org/zap"
)

var (
	ErrAlreadyVoted      = errors.New("relayer already voted")
	ErrProposalCompleted = errors.New("proposal already executed or cancelled")
	ErrNotPassed         = errors.New("proposal has not passed")
	ErrNotExpired        = errors.New("proposal has not expired")
	ErrNotCancellable    = errors.New("proposal cannot be cancelled")
	ErrHandlerExecution  = errors.New("handler execution failed")
	ErrNotConfigured     = errors.New("threshold or expiry window not configured")
)

type Store interface {
	GetProposal(ctx context.Context, key types.ProposalKey) (*types.Proposal, error)
	SetProposal(ctx context.Context, key types.ProposalKey, p *types.Proposal) error
	GetThreshold(ctx context.Context) (uint16, error)
	GetExpiryWindow(ctx context.Context) (uint64, error)
}

type HandlerResolver interface {
	Resolve(ctx context.Context, resourceID types.ResourceID) (handler.Handler, error)
}

// ExecutionResult reports the outcome of an execution attempt. Failed is only set when the
// handler failed and the caller asked not to revert; the proposal then stays Passed.
type ExecutionResult struct {
	Status types.Status `json:"status"`
	Failed bool         `json:"failed,omitempty"`
	Reason string       `json:"reason,omitempty"`
}

// StateMachine drives proposals through Inactive, Active, Passed, Executed and Cancelled.
// It performs no locking of its own; callers serialize every mutating call.
type StateMachine struct {
	store    Store
	handlers HandlerResolver
	emitter  events.Emitter
	heights  chain.HeightSource
	logger   *zap.SugaredLogger
}

func NewStateMachine(store Store, handlers HandlerResolver, emitter events.Emitter, heights chain.HeightSource, logger *zap.SugaredLogger) *StateMachine {
	return &StateMachine{
		store:    store,
		handlers: handlers,
		emitter:  emitter,
		heights:  heights,
		logger:   logger.Named("proposal"),
	}
}

// Lookup returns the stored proposal and true, or nil and false for a key nobody voted on.
func (sm *StateMachine) Lookup(ctx context.Context, key types.ProposalKey) (*types.Proposal, bool, error) {
	p, err := sm.store.GetProposal(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "loading proposal")
	}

	return p, true, nil
}

func (sm *StateMachine) HasVoted(ctx context.Context, key types.ProposalKey, slot types.RelayerSlot) (bool, error) {
	p, found, err := sm.Lookup(ctx, key)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	return p.HasVoted(slot), nil
}

func (sm *StateMachine) loadOrNew(ctx context.Context, key types.ProposalKey) (*types.Proposal, error) {
	p, found, err := sm.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return types.NewProposal(), nil
	}

	return p, nil
}

func (sm *StateMachine) settings(ctx context.Context) (uint16, uint64, error) {
	threshold, err := sm.store.GetThreshold(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, 0, ErrNotConfigured
		}
		return 0, 0, errors.Wrap(err, "getting threshold")
	}

	expiry, err := sm.store.GetExpiryWindow(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, 0, ErrNotConfigured
		}
		return 0, 0, errors.Wrap(err, "getting expiry window")
	}

	return threshold, expiry, nil
}

func checkCapability(capability relayer.Capability) error {
	if capability.Slot() == 0 || capability.Slot() > types.MaxRelayers {
		return errors.Wrap(relayer.ErrNotAMember, "invalid relayer capability")
	}
	return nil
}

func proposalEvent(kind events.Kind, height uint64, key types.ProposalKey, resourceID types.ResourceID, p *types.Proposal, identity types.Address) events.Event {
	return events.Event{
		Kind:            kind,
		Height:          height,
		OriginDomain:    key.OriginDomain,
		DepositSequence: key.DepositSequence,
		DataHash:        key.ContentHash,
		ResourceID:      resourceID,
		Status:          p.Status,
		YesVotesTotal:   p.YesVotesTotal,
		Identity:        identity,
	}
}

// Vote records the capability holder's yes vote on the proposal identified by
// (originDomain, sequence, resourceID, payload) and returns the resulting status.
// A vote on a Passed proposal is an execution retry. A vote that finds the proposal past
// its expiry window cancels it and is not counted.
func (sm *StateMachine) Vote(ctx context.Context, capability relayer.Capability, originDomain types.DomainID, sequence uint64, resourceID types.ResourceID, payload []byte) (types.Status, error) {
	if err := checkCapability(capability); err != nil {
		return types.StatusInactive, err
	}

	if _, err := sm.handlers.Resolve(ctx, resourceID); err != nil {
		return types.StatusInactive, err
	}

	key := types.NewProposalKey(originDomain, sequence, resourceID, payload)
	p, err := sm.loadOrNew(ctx, key)
	if err != nil {
		return types.StatusInactive, err
	}

	if p.Status == types.StatusPassed {
		result, err := sm.Execute(ctx, capability, originDomain, sequence, payload, resourceID, true)
		if err != nil {
			return types.StatusPassed, err
		}
		return result.Status, nil
	}

	if p.Status.IsTerminal() {
		return p.Status, errors.Wrapf(ErrProposalCompleted, "proposal %s is %s", key, p.Status)
	}

	if p.HasVoted(capability.Slot()) {
		return p.Status, errors.Wrapf(ErrAlreadyVoted, "relayer %s on proposal %s", capability.Identity().Hex(), key)
	}

	threshold, expiry, err := sm.settings(ctx)
	if err != nil {
		return p.Status, err
	}

	height := sm.heights.Height()
	voter := capability.Identity()
	var pending []events.Event

	if p.Status == types.StatusInactive {
		p.Status = types.StatusActive
		p.ProposedAtBlock = height
		pending = append(pending, proposalEvent(events.ProposalCreated, height, key, resourceID, p, voter))
	} else if p.Age(height) > expiry {
		p.Status = types.StatusCancelled
		pending = append(pending, proposalEvent(events.ProposalFinalized, height, key, resourceID, p, voter))
	}

	if p.Status == types.StatusActive {
		p.AddVote(capability.Slot())
		pending = append(pending, proposalEvent(events.ProposalVoted, height, key, resourceID, p, voter))

		if p.YesVotesTotal >= threshold {
			p.Status = types.StatusPassed
			pending = append(pending, proposalEvent(events.ProposalFinalized, height, key, resourceID, p, voter))
		}
	}

	err = sm.store.SetProposal(ctx, key, p)
	if err != nil {
		return types.StatusInactive, errors.Wrap(err, "persisting proposal")
	}

	for _, e := range pending {
		sm.emitter.Emit(ctx, e)
	}

	if p.Status == types.StatusCancelled {
		sm.logger.Infow("Proposal expired on vote", "proposal", key.String(), "age", p.Age(height), "expiry", expiry)
		return p.Status, nil
	}

	if p.Status != types.StatusPassed {
		return p.Status, nil
	}

	result, err := sm.Execute(ctx, capability, originDomain, sequence, payload, resourceID, false)
	if err != nil {
		return types.StatusPassed, err
	}

	return result.Status, nil
}

// Cancel finalizes a stale Active or Passed proposal as Cancelled. Authorization is checked by the caller.
// The proposal is addressed by its data hash, so the emitted event carries no resource id.
func (sm *StateMachine) Cancel(ctx context.Context, originDomain types.DomainID, sequence uint64, dataHash types.Hash, caller types.Address) error {
	key := types.ProposalKey{OriginDomain: originDomain, DepositSequence: sequence, ContentHash: dataHash}

	p, found, err := sm.Lookup(ctx, key)
	if err != nil {
		return err
	}
	if !found || (p.Status != types.StatusActive && p.Status != types.StatusPassed) {
		status := types.StatusInactive
		if found {
			status = p.Status
		}
		return errors.Wrapf(ErrNotCancellable, "proposal %s is %s", key, status)
	}

	_, expiry, err := sm.settings(ctx)
	if err != nil {
		return err
	}

	height := sm.heights.Height()
	if p.Age(height) <= expiry {
		return errors.Wrapf(ErrNotExpired, "proposal %s is %d blocks old, expiry is %d", key, p.Age(height), expiry)
	}

	p.Status = types.StatusCancelled
	err = sm.store.SetProposal(ctx, key, p)
	if err != nil {
		return errors.Wrap(err, "persisting cancelled proposal")
	}

	sm.emitter.Emit(ctx, proposalEvent(events.ProposalFinalized, height, key, types.ResourceID{}, p, caller))

	return nil
}

// Execute hands a Passed proposal to its handler. Executed is only persisted once the handler
// succeeded. On handler failure with revertOnFailure nothing is persisted and the failure is
// returned; without it the Passed status is written back and a HandlerExecutionFailed event is
// emitted instead of an error. Expiry is not consulted.
func (sm *StateMachine) Execute(ctx context.Context, capability relayer.Capability, originDomain types.DomainID, sequence uint64, payload []byte, resourceID types.ResourceID, revertOnFailure bool) (ExecutionResult, error) {
	if err := checkCapability(capability); err != nil {
		return ExecutionResult{}, err
	}

	key := types.NewProposalKey(originDomain, sequence, resourceID, payload)
	p, found, err := sm.Lookup(ctx, key)
	if err != nil {
		return ExecutionResult{}, err
	}
	if !found || p.Status != types.StatusPassed {
		status := types.StatusInactive
		if found {
			status = p.Status
		}
		return ExecutionResult{Status: status}, errors.Wrapf(ErrNotPassed, "proposal %s is %s", key, status)
	}

	h, err := sm.handlers.Resolve(ctx, resourceID)
	if err != nil {
		return ExecutionResult{Status: p.Status}, err
	}

	executed := p.Clone()
	executed.Status = types.StatusExecuted
	height := sm.heights.Height()

	handlerErr := h.ExecuteProposal(ctx, resourceID, payload)
	if handlerErr != nil {
		if revertOnFailure {
			return ExecutionResult{Status: types.StatusPassed}, errors.Wrapf(ErrHandlerExecution, "proposal %s: %s", key, handlerErr)
		}

		err = sm.store.SetProposal(ctx, key, p)
		if err != nil {
			return ExecutionResult{}, errors.Wrap(err, "persisting passed proposal after handler failure")
		}

		failed := proposalEvent(events.HandlerExecutionFailed, height, key, resourceID, p, capability.Identity())
		failed.Reason = handlerErr.Error()
		sm.emitter.Emit(ctx, failed)
		sm.logger.Warnw("Handler execution failed, proposal stays passed", "proposal", key.String(), "error", handlerErr)

		return ExecutionResult{Status: types.StatusPassed, Failed: true, Reason: handlerErr.Error()}, nil
	}

	err = sm.store.SetProposal(ctx, key, executed)
	if err != nil {
		return ExecutionResult{}, errors.Wrap(err, "persisting executed proposal")
	}

	sm.emitter.Emit(ctx, proposalEvent(events.ProposalFinalized, height, key, resourceID, executed, capability.Identity()))

	return ExecutionResult{Status: types.StatusExecuted}, nil
}
