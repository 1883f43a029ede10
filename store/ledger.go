package store

import (
	"context"

	"github.com/cockroachdb/pebble"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/qubic/go-bridge-coordinator/types"
)

func (s *PebbleStore) GetLocked(_ context.Context, resourceID types.ResourceID) (*uint256.Int, error) {
	locked, err := s.getAmount(AssembleKey(LedgerLocked, resourceID))
	if err != nil {
		return nil, errors.Wrapf(err, "getting locked amount for resource %s", resourceID)
	}

	return locked, nil
}

func (s *PebbleStore) SetLocked(_ context.Context, resourceID types.ResourceID, amount *uint256.Int) error {
	err := s.setAmount(AssembleKey(LedgerLocked, resourceID), amount)
	if err != nil {
		return errors.Wrapf(err, "storing locked amount for resource %s", resourceID)
	}

	return nil
}

func (s *PebbleStore) GetReleased(_ context.Context, resourceID types.ResourceID, recipient types.Address) (*uint256.Int, error) {
	released, err := s.getAmount(ledgerReleasedKey(resourceID, recipient))
	if err != nil {
		return nil, errors.Wrapf(err, "getting released amount for %s", recipient.Hex())
	}

	return released, nil
}

// CommitRelease stores the recipient's released total and the remaining locked amount atomically.
func (s *PebbleStore) CommitRelease(_ context.Context, resourceID types.ResourceID, recipient types.Address, released, locked *uint256.Int) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	releasedBytes := released.Bytes32()
	err := batch.Set(ledgerReleasedKey(resourceID, recipient), releasedBytes[:], nil)
	if err != nil {
		return errors.Wrap(err, "adding released amount to batch")
	}

	lockedBytes := locked.Bytes32()
	err = batch.Set(AssembleKey(LedgerLocked, resourceID), lockedBytes[:], nil)
	if err != nil {
		return errors.Wrap(err, "adding locked amount to batch")
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return errors.Wrapf(err, "committing release for %s", recipient.Hex())
	}

	return nil
}
