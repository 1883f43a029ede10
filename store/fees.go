package store

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/qubic/go-bridge-coordinator/types"
)

func (s *PebbleStore) GetBaseFee(_ context.Context) (*uint256.Int, error) {
	fee, err := s.getAmount([]byte{BaseFee})
	if err != nil {
		return nil, errors.Wrap(err, "getting base fee")
	}

	return fee, nil
}

func (s *PebbleStore) SetBaseFee(_ context.Context, fee *uint256.Int) error {
	err := s.setAmount([]byte{BaseFee}, fee)
	if err != nil {
		return errors.Wrap(err, "storing base fee")
	}

	return nil
}

// GetDomainMultiplier returns 0, the "no override" sentinel, when none is set.
func (s *PebbleStore) GetDomainMultiplier(_ context.Context, domain types.DomainID) (uint64, error) {
	multiplier, err := s.getUint64(AssembleKey(DomainFeeMultiplier, domain))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "getting fee multiplier for domain %d", domain)
	}

	return multiplier, nil
}

func (s *PebbleStore) SetDomainMultiplier(_ context.Context, domain types.DomainID, multiplier uint64) error {
	err := s.setUint64(AssembleKey(DomainFeeMultiplier, domain), multiplier)
	if err != nil {
		return errors.Wrapf(err, "storing fee multiplier for domain %d", domain)
	}

	return nil
}

// GetResourceMultiplier returns 0, the "no override" sentinel, when none is set.
func (s *PebbleStore) GetResourceMultiplier(_ context.Context, resourceID types.ResourceID) (uint64, error) {
	multiplier, err := s.getUint64(AssembleKey(ResourceFeeMultiplier, resourceID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "getting fee multiplier for resource %s", resourceID)
	}

	return multiplier, nil
}

func (s *PebbleStore) SetResourceMultiplier(_ context.Context, resourceID types.ResourceID, multiplier uint64) error {
	err := s.setUint64(AssembleKey(ResourceFeeMultiplier, resourceID), multiplier)
	if err != nil {
		return errors.Wrapf(err, "storing fee multiplier for resource %s", resourceID)
	}

	return nil
}
