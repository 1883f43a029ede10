package store

import (
	"context"
	"encoding/binary"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/qubic/go-bridge-coordinator/types"
)

type RelayerEntry struct {
	Identity types.Address     `json:"identity"`
	Slot     types.RelayerSlot `json:"slot"`
}

func (s *PebbleStore) GetRelayerSlot(_ context.Context, identity types.Address) (types.RelayerSlot, error) {
	value, err := s.get(AssembleKey(RelayerSlot, identity))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, errors.Wrap(err, "getting relayer slot")
	}
	if len(value) != 1 {
		return 0, errors.Errorf("malformed relayer slot of %d bytes", len(value))
	}

	return types.RelayerSlot(value[0]), nil
}

// GetLastAllocatedSlot returns 0 when no relayer was ever admitted.
func (s *PebbleStore) GetLastAllocatedSlot(_ context.Context) (uint64, error) {
	counter, err := s.getUint64([]byte{RelayerSlotCounter})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "getting relayer slot counter")
	}

	return counter, nil
}

// AdmitRelayer stores the membership and advances the slot counter in one batch.
func (s *PebbleStore) AdmitRelayer(_ context.Context, identity types.Address, slot types.RelayerSlot) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	err := batch.Set(AssembleKey(RelayerSlot, identity), []byte{byte(slot)}, nil)
	if err != nil {
		return errors.Wrap(err, "adding relayer slot to batch")
	}

	err = batch.Set([]byte{RelayerSlotCounter}, binary.BigEndian.AppendUint64(nil, uint64(slot)), nil)
	if err != nil {
		return errors.Wrap(err, "adding relayer slot counter to batch")
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return errors.Wrap(err, "committing relayer admission")
	}

	return nil
}

// RemoveRelayer drops the membership and remembers slot as the identity's last slot, in one batch.
func (s *PebbleStore) RemoveRelayer(_ context.Context, identity types.Address, slot types.RelayerSlot) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	err := batch.Delete(AssembleKey(RelayerSlot, identity), nil)
	if err != nil {
		return errors.Wrap(err, "adding relayer removal to batch")
	}

	err = batch.Set(AssembleKey(RevokedRelayerSlot, identity), []byte{byte(slot)}, nil)
	if err != nil {
		return errors.Wrap(err, "adding revoked relayer slot to batch")
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return errors.Wrap(err, "committing relayer removal")
	}

	return nil
}

// GetRevokedRelayerSlot returns the slot identity held when it was last removed.
func (s *PebbleStore) GetRevokedRelayerSlot(_ context.Context, identity types.Address) (types.RelayerSlot, error) {
	value, err := s.get(AssembleKey(RevokedRelayerSlot, identity))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, errors.Wrap(err, "getting revoked relayer slot")
	}
	if len(value) != 1 {
		return 0, errors.Errorf("malformed revoked relayer slot of %d bytes", len(value))
	}

	return types.RelayerSlot(value[0]), nil
}

func (s *PebbleStore) ListRelayers(ctx context.Context) ([]RelayerEntry, error) {
	var relayers []RelayerEntry

	err := s.scanPrefix(ctx, []byte{RelayerSlot}, func(key, value []byte) error {
		if len(value) != 1 {
			return errors.Errorf("malformed relayer slot of %d bytes", len(value))
		}
		relayers = append(relayers, RelayerEntry{
			Identity: common.BytesToAddress(key),
			Slot:     types.RelayerSlot(value[0]),
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing relayers")
	}

	return relayers, nil
}
