package events

import (
	"context"
	"sync"

	"github.com/qubic/go-bridge-coordinator/types"
	"go.uber.org/zap"
)

type Kind string

const (
	DepositRecorded        Kind = "DepositRecorded"
	ProposalCreated        Kind = "ProposalCreated"
	ProposalVoted          Kind = "ProposalVoted"
	ProposalFinalized      Kind = "ProposalFinalized"
	HandlerExecutionFailed Kind = "HandlerExecutionFailed"

	RelayerAdded     Kind = "RelayerAdded"
	RelayerRemoved   Kind = "RelayerRemoved"
	ThresholdChanged Kind = "ThresholdChanged"
	ExpiryChanged    Kind = "ExpiryChanged"
	ResourceSet      Kind = "ResourceSet"
	ResourceRemoved  Kind = "ResourceRemoved"
	DepositNonceSet  Kind = "DepositNonceSet"
	FeeChanged       Kind = "FeeChanged"
	FeesWithdrawn    Kind = "FeesWithdrawn"
	ForwarderChanged Kind = "ForwarderChanged"
	Paused           Kind = "Paused"
	Unpaused         Kind = "Unpaused"
)

// Event is an observable state transition. Only the fields relevant to Kind are set.
type Event struct {
	Kind   Kind   `json:"kind"`
	Height uint64 `json:"height"`

	OriginDomain    types.DomainID   `json:"originDomain,omitempty"`
	DepositSequence uint64           `json:"depositSequence,omitempty"`
	DataHash        types.Hash       `json:"dataHash"`
	// ResourceID is zero on the ProposalFinalized event of an explicit cancel, which only knows the
	// proposal by its data hash.
	ResourceID      types.ResourceID `json:"resourceID"`
	Status          types.Status     `json:"status,omitempty"`
	YesVotesTotal   uint16           `json:"yesVotesTotal,omitempty"`

	Deposit *types.DepositRecord `json:"deposit,omitempty"`

	Identity types.Address `json:"identity"`
	Value    string        `json:"value,omitempty"`
	Reason   string        `json:"reason,omitempty"`
}

func (e Event) ProposalKey() types.ProposalKey {
	return types.ProposalKey{
		OriginDomain:    e.OriginDomain,
		DepositSequence: e.DepositSequence,
		ContentHash:     e.DataHash,
	}
}

type Emitter interface {
	Emit(ctx context.Context, e Event)
}

type Multi []Emitter

func (m Multi) Emit(ctx context.Context, e Event) {
	for _, emitter := range m {
		emitter.Emit(ctx, e)
	}
}

type LogEmitter struct {
	logger *zap.SugaredLogger
}

func NewLogEmitter(logger *zap.SugaredLogger) *LogEmitter {
	return &LogEmitter{logger: logger.Named("events")}
}

func (l *LogEmitter) Emit(_ context.Context, e Event) {
	fields := []interface{}{"height", e.Height}
	switch {
	case e.Deposit != nil:
		fields = append(fields, "destination", e.Deposit.DestinationDomain, "sequence", e.Deposit.Sequence,
			"resource", e.Deposit.ResourceID.Hex(), "initiator", e.Deposit.Initiator.Hex())
	case e.DepositSequence != 0:
		fields = append(fields, "proposal", e.ProposalKey().String(), "status", e.Status.String(), "yesVotes", e.YesVotesTotal)
	}
	if e.Identity != (types.Address{}) {
		fields = append(fields, "identity", e.Identity.Hex())
	}
	if e.Value != "" {
		fields = append(fields, "value", e.Value)
	}

	if e.Kind == HandlerExecutionFailed {
		l.logger.Warnw(string(e.Kind), append(fields, "reason", e.Reason)...)
		return
	}
	l.logger.Infow(string(e.Kind), fields...)
}

// Recorder keeps every event in memory.
type Recorder struct {
	events []Event
	mutex  sync.Mutex
}

func (r *Recorder) Emit(_ context.Context, e Event) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.events = append(r.events, e)
}

func (r *Recorder) Events() []Event {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) Kinds() []Kind {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	kinds := make([]Kind, 0, len(r.events))
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func (r *Recorder) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.events = nil
}
