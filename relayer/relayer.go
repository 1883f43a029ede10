package relayer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/qubic/go-bridge-coordinator/store"
	"github.com/qubic/go-bridge-coordinator/types"
)

var (
	ErrNotAMember            = errors.New("not a relayer")
	ErrAlreadyMember         = errors.New("already a relayer")
	ErrRelayerSlotsExhausted = errors.New("relayer slots exhausted")
)

// Store is the part of the pebble store that backs relayer membership.
type Store interface {
	GetRelayerSlot(ctx context.Context, identity types.Address) (types.RelayerSlot, error)
	GetLastAllocatedSlot(ctx context.Context) (uint64, error)
	AdmitRelayer(ctx context.Context, identity types.Address, slot types.RelayerSlot) error
	RemoveRelayer(ctx context.Context, identity types.Address, slot types.RelayerSlot) error
	GetRevokedRelayerSlot(ctx context.Context, identity types.Address) (types.RelayerSlot, error)
	ListRelayers(ctx context.Context) ([]store.RelayerEntry, error)
}

// Capability proves that its holder was a relayer in the given slot when it was issued.
// It is the only way the proposal state machine learns who votes.
type Capability struct {
	identity types.Address
	slot     types.RelayerSlot
}

func (c Capability) Identity() types.Address {
	return c.identity
}

func (c Capability) Slot() types.RelayerSlot {
	return c.slot
}

// Set maps relayer identities to slots handed out by a monotonic counter. A revoked slot is
// never handed out again, so bits already set on proposals keep meaning the same relayer.
type Set struct {
	store Store
}

func NewSet(store Store) *Set {
	return &Set{store: store}
}

func (s *Set) IndexOf(ctx context.Context, identity types.Address) (types.RelayerSlot, error) {
	slot, err := s.store.GetRelayerSlot(ctx, identity)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, errors.Wrapf(ErrNotAMember, "identity %s", identity.Hex())
		}
		return 0, errors.Wrap(err, "getting relayer slot")
	}
	if slot == 0 || int(slot) > types.MaxRelayers {
		return 0, errors.Wrapf(ErrNotAMember, "identity %s has out of range slot %d", identity.Hex(), slot)
	}

	return slot, nil
}

// SlotOf returns the slot identity votes with, or the one it held when it was last revoked. Bits
// set on proposals stay attributable after revocation.
func (s *Set) SlotOf(ctx context.Context, identity types.Address) (types.RelayerSlot, error) {
	slot, err := s.IndexOf(ctx, identity)
	if err == nil || !errors.Is(err, ErrNotAMember) {
		return slot, err
	}

	revoked, err := s.store.GetRevokedRelayerSlot(ctx, identity)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, errors.Wrapf(ErrNotAMember, "identity %s was never a relayer", identity.Hex())
		}
		return 0, errors.Wrap(err, "getting revoked relayer slot")
	}

	return revoked, nil
}

func (s *Set) IsMember(ctx context.Context, identity types.Address) (bool, error) {
	_, err := s.IndexOf(ctx, identity)
	if err != nil {
		if errors.Is(err, ErrNotAMember) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (s *Set) Capability(ctx context.Context, identity types.Address) (Capability, error) {
	slot, err := s.IndexOf(ctx, identity)
	if err != nil {
		return Capability{}, err
	}

	return Capability{identity: identity, slot: slot}, nil
}

// Admit allocates the next never-used slot to identity.
func (s *Set) Admit(ctx context.Context, identity types.Address) (types.RelayerSlot, error) {
	member, err := s.IsMember(ctx, identity)
	if err != nil {
		return 0, err
	}
	if member {
		return 0, errors.Wrapf(ErrAlreadyMember, "identity %s", identity.Hex())
	}

	last, err := s.store.GetLastAllocatedSlot(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "getting last allocated slot")
	}
	if last >= types.MaxRelayers {
		return 0, ErrRelayerSlotsExhausted
	}

	slot := types.RelayerSlot(last + 1)
	err = s.store.AdmitRelayer(ctx, identity, slot)
	if err != nil {
		return 0, errors.Wrap(err, "admitting relayer")
	}

	return slot, nil
}

// Revoke removes identity without touching any other member's slot.
func (s *Set) Revoke(ctx context.Context, identity types.Address) (types.RelayerSlot, error) {
	slot, err := s.IndexOf(ctx, identity)
	if err != nil {
		return 0, err
	}

	err = s.store.RemoveRelayer(ctx, identity, slot)
	if err != nil {
		return 0, errors.Wrap(err, "revoking relayer")
	}

	return slot, nil
}

func (s *Set) Members(ctx context.Context) ([]store.RelayerEntry, error) {
	members, err := s.store.ListRelayers(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing relayers")
	}

	return members, nil
}

func (s *Set) Count(ctx context.Context) (int, error) {
	members, err := s.Members(ctx)
	if err != nil {
		return 0, err
	}

	return len(members), nil
}
