package store

import (
	"context"

	"github.com/pkg/errors"
	"github.com/qubic/go-bridge-coordinator/types"
)

// GetThreshold returns ErrNotFound until the store has been seeded.
func (s *PebbleStore) GetThreshold(_ context.Context) (uint16, error) {
	threshold, err := s.getUint64([]byte{RelayerThreshold})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, errors.Wrap(err, "getting relayer threshold")
	}

	return uint16(threshold), nil
}

func (s *PebbleStore) SetThreshold(_ context.Context, threshold uint16) error {
	err := s.setUint64([]byte{RelayerThreshold}, uint64(threshold))
	if err != nil {
		return errors.Wrap(err, "storing relayer threshold")
	}

	return nil
}

func (s *PebbleStore) GetExpiryWindow(_ context.Context) (uint64, error) {
	expiry, err := s.getUint64([]byte{ExpiryWindow})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, errors.Wrap(err, "getting expiry window")
	}

	return expiry, nil
}

func (s *PebbleStore) SetExpiryWindow(_ context.Context, blocks uint64) error {
	err := s.setUint64([]byte{ExpiryWindow}, blocks)
	if err != nil {
		return errors.Wrap(err, "storing expiry window")
	}

	return nil
}

func (s *PebbleStore) IsPaused(_ context.Context) (bool, error) {
	paused, err := s.getFlag([]byte{Paused})
	if err != nil {
		return false, errors.Wrap(err, "getting pause flag")
	}

	return paused, nil
}

func (s *PebbleStore) SetPaused(_ context.Context, paused bool) error {
	err := s.setFlag([]byte{Paused}, paused)
	if err != nil {
		return errors.Wrap(err, "storing pause flag")
	}

	return nil
}

func (s *PebbleStore) IsAdmin(_ context.Context, identity types.Address) (bool, error) {
	admin, err := s.getFlag(AssembleKey(Admin, identity))
	if err != nil {
		return false, errors.Wrap(err, "getting admin flag")
	}

	return admin, nil
}

func (s *PebbleStore) SetAdmin(_ context.Context, identity types.Address, admin bool) error {
	err := s.setFlag(AssembleKey(Admin, identity), admin)
	if err != nil {
		return errors.Wrap(err, "storing admin flag")
	}

	return nil
}

func (s *PebbleStore) IsForwarder(_ context.Context, forwarder types.Address) (bool, error) {
	trusted, err := s.getFlag(AssembleKey(Forwarder, forwarder))
	if err != nil {
		return false, errors.Wrap(err, "getting forwarder flag")
	}

	return trusted, nil
}

func (s *PebbleStore) SetForwarder(_ context.Context, forwarder types.Address, trusted bool) error {
	err := s.setFlag(AssembleKey(Forwarder, forwarder), trusted)
	if err != nil {
		return errors.Wrap(err, "storing forwarder flag")
	}

	return nil
}

func (s *PebbleStore) GetResourceHandler(_ context.Context, resourceID types.ResourceID) (string, error) {
	value, err := s.get(AssembleKey(ResourceHandler, resourceID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrNotFound
		}
		return "", errors.Wrapf(err, "getting handler for resource %s", resourceID)
	}

	return string(value), nil
}

func (s *PebbleStore) SetResourceHandler(_ context.Context, resourceID types.ResourceID, handlerName string) error {
	err := s.set(AssembleKey(ResourceHandler, resourceID), []byte(handlerName))
	if err != nil {
		return errors.Wrapf(err, "storing handler for resource %s", resourceID)
	}

	return nil
}

func (s *PebbleStore) DeleteResourceHandler(_ context.Context, resourceID types.ResourceID) error {
	err := s.delete(AssembleKey(ResourceHandler, resourceID))
	if err != nil {
		return errors.Wrapf(err, "deleting handler for resource %s", resourceID)
	}

	return nil
}

func (s *PebbleStore) ListResourceHandlers(ctx context.Context) (map[types.ResourceID]string, error) {
	resources := make(map[types.ResourceID]string)

	err := s.scanPrefix(ctx, []byte{ResourceHandler}, func(key, value []byte) error {
		if len(key) != 32 {
			return errors.Errorf("malformed resource key of %d bytes", len(key))
		}
		var resourceID types.ResourceID
		copy(resourceID[:], key)
		resources[resourceID] = string(value)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing resource handlers")
	}

	return resources, nil
}
