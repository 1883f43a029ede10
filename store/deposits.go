package store

import (
	"context"
	"encoding/binary"

	"github.com/cockroachdb/pebble"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/qubic/go-bridge-coordinator/types"
)

// GetDepositNonce returns the last sequence allocated for domain, 0 if none was.
func (s *PebbleStore) GetDepositNonce(_ context.Context, domain types.DomainID) (uint64, error) {
	nonce, err := s.getUint64(AssembleKey(DepositNonce, domain))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "getting deposit nonce for domain %d", domain)
	}

	return nonce, nil
}

func (s *PebbleStore) SetDepositNonce(_ context.Context, domain types.DomainID, nonce uint64) error {
	err := s.setUint64(AssembleKey(DepositNonce, domain), nonce)
	if err != nil {
		return errors.Wrapf(err, "storing deposit nonce for domain %d", domain)
	}

	return nil
}

// CommitDeposit stores the allocated sequence and the new accrued fee balance atomically.
func (s *PebbleStore) CommitDeposit(_ context.Context, domain types.DomainID, nonce uint64, accrued *uint256.Int) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	err := batch.Set(AssembleKey(DepositNonce, domain), binary.BigEndian.AppendUint64(nil, nonce), nil)
	if err != nil {
		return errors.Wrap(err, "adding deposit nonce to batch")
	}

	fees := accrued.Bytes32()
	err = batch.Set([]byte{AccruedFees}, fees[:], nil)
	if err != nil {
		return errors.Wrap(err, "adding accrued fees to batch")
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return errors.Wrapf(err, "committing deposit %d for domain %d", nonce, domain)
	}

	return nil
}

func (s *PebbleStore) GetAccruedFees(_ context.Context) (*uint256.Int, error) {
	fees, err := s.getAmount([]byte{AccruedFees})
	if err != nil {
		return nil, errors.Wrap(err, "getting accrued fees")
	}

	return fees, nil
}

func (s *PebbleStore) SetAccruedFees(_ context.Context, fees *uint256.Int) error {
	err := s.setAmount([]byte{AccruedFees}, fees)
	if err != nil {
		return errors.Wrap(err, "storing accrued fees")
	}

	return nil
}
