package bridge

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/qubic/go-bridge-coordinator/relayer"
	"github.com/qubic/go-bridge-coordinator/store"
	"github.com/qubic/go-bridge-coordinator/types"
)

// Genesis is the initial configuration written into an empty store.
type Genesis struct {
	Threshold    uint16
	ExpiryBlocks uint64
	Admins       []types.Address
	Relayers     []types.Address
	Forwarders   []types.Address
	BaseFee      *uint256.Int
	Resources    map[types.ResourceID]string
}

// Seed writes genesis when the store holds no settings yet and reports whether it did. An already
// seeded store is left untouched, so admin changes survive restarts.
func (c *Coordinator) Seed(ctx context.Context, genesis Genesis) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.store.GetThreshold(ctx)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, errors.Wrap(err, "checking for existing settings")
	}

	if genesis.Threshold == 0 || genesis.Threshold > types.MaxRelayers {
		return false, errors.Wrapf(ErrInvalidThreshold, "genesis threshold %d", genesis.Threshold)
	}

	for _, admin := range genesis.Admins {
		if err := c.authority.Bootstrap(ctx, admin); err != nil {
			return false, errors.Wrapf(err, "seeding admin %s", admin.Hex())
		}
	}

	for _, identity := range genesis.Relayers {
		if _, err := c.relayers.Admit(ctx, identity); err != nil && !errors.Is(err, relayer.ErrAlreadyMember) {
			return false, errors.Wrapf(err, "seeding relayer %s", identity.Hex())
		}
	}

	for _, forwarder := range genesis.Forwarders {
		if err := c.store.SetForwarder(ctx, forwarder, true); err != nil {
			return false, errors.Wrapf(err, "seeding forwarder %s", forwarder.Hex())
		}
	}

	for resourceID, handlerName := range genesis.Resources {
		if err := c.handlers.Bind(ctx, resourceID, handlerName, nil); err != nil {
			return false, errors.Wrapf(err, "seeding resource %s", resourceID)
		}
	}

	if genesis.BaseFee != nil {
		if err := c.fees.SetBaseFee(ctx, genesis.BaseFee); err != nil {
			return false, errors.Wrap(err, "seeding base fee")
		}
	}

	if err := c.store.SetExpiryWindow(ctx, genesis.ExpiryBlocks); err != nil {
		return false, errors.Wrap(err, "seeding expiry window")
	}

	// written last, its presence marks the store as seeded
	if err := c.store.SetThreshold(ctx, genesis.Threshold); err != nil {
		return false, errors.Wrap(err, "seeding threshold")
	}

	c.logger.Infow("Seeded store from genesis", "threshold", genesis.Threshold, "expiry", genesis.ExpiryBlocks,
		"admins", len(genesis.Admins), "relayers", len(genesis.Relayers), "resources", len(genesis.Resources))

	return true, nil
}
