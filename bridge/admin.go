package bridge

import (
	"context"
	"strconv"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/qubic/go-bridge-coordinator/access"
	"github.com/qubic/go-bridge-coordinator/events"
	"github.com/qubic/go-bridge-coordinator/types"
)

var ErrInvalidThreshold = errors.New("threshold must be between 1 and the relayer cap")

func (c *Coordinator) admin(ctx context.Context, caller Caller) (access.AdminCapability, error) {
	identity, err := c.resolve(ctx, caller)
	if err != nil {
		return access.AdminCapability{}, err
	}

	return c.authority.Admin(ctx, identity)
}

func (c *Coordinator) emitAdmin(ctx context.Context, kind events.Kind, capability access.AdminCapability, mutate func(e *events.Event)) {
	e := events.Event{Kind: kind, Height: c.heights.Height()}
	if mutate != nil {
		mutate(&e)
	}

	c.logger.Infow("Admin change", "kind", kind, "admin", capability.Identity().Hex())
	c.emitter.Emit(ctx, e)
}

func (c *Coordinator) AddRelayer(ctx context.Context, caller Caller, identity types.Address) (types.RelayerSlot, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	capability, err := c.admin(ctx, caller)
	if err != nil {
		return 0, err
	}

	slot, err := c.relayers.Admit(ctx, identity)
	if err != nil {
		return 0, err
	}

	c.emitAdmin(ctx, events.RelayerAdded, capability, func(e *events.Event) {
		e.Identity = identity
		e.Value = strconv.Itoa(int(slot))
	})

	return slot, nil
}

func (c *Coordinator) RemoveRelayer(ctx context.Context, caller Caller, identity types.Address) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	capability, err := c.admin(ctx, caller)
	if err != nil {
		return err
	}

	slot, err := c.relayers.Revoke(ctx, identity)
	if err != nil {
		return err
	}

	c.emitAdmin(ctx, events.RelayerRemoved, capability, func(e *events.Event) {
		e.Identity = identity
		e.Value = strconv.Itoa(int(slot))
	})

	return nil
}

// SetThreshold only affects proposals that are still Active.
func (c *Coordinator) SetThreshold(ctx context.Context, caller Caller, threshold uint16) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	capability, err := c.admin(ctx, caller)
	if err != nil {
		return err
	}
	if threshold == 0 || threshold > types.MaxRelayers {
		return errors.Wrapf(ErrInvalidThreshold, "got %d", threshold)
	}

	err = c.store.SetThreshold(ctx, threshold)
	if err != nil {
		return err
	}

	c.emitAdmin(ctx, events.ThresholdChanged, capability, func(e *events.Event) {
		e.Value = strconv.Itoa(int(threshold))
	})

	return nil
}

func (c *Coordinator) SetExpiry(ctx context.Context, caller Caller, blocks uint64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	capability, err := c.admin(ctx, caller)
	if err != nil {
		return err
	}

	err = c.store.SetExpiryWindow(ctx, blocks)
	if err != nil {
		return err
	}

	c.emitAdmin(ctx, events.ExpiryChanged, capability, func(e *events.Event) {
		e.Value = strconv.FormatUint(blocks, 10)
	})

	return nil
}

// SetResource binds resourceID to the handler registered under handlerName.
func (c *Coordinator) SetResource(ctx context.Context, caller Caller, resourceID types.ResourceID, handlerName string, target []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	capability, err := c.admin(ctx, caller)
	if err != nil {
		return err
	}

	err = c.handlers.Bind(ctx, resourceID, handlerName, target)
	if err != nil {
		return err
	}

	c.emitAdmin(ctx, events.ResourceSet, capability, func(e *events.Event) {
		e.ResourceID = resourceID
		e.Value = handlerName
	})

	return nil
}

func (c *Coordinator) RemoveResource(ctx context.Context, caller Caller, resourceID types.ResourceID) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	capability, err := c.admin(ctx, caller)
	if err != nil {
		return err
	}

	err = c.handlers.Unbind(ctx, resourceID)
	if err != nil {
		return err
	}

	c.emitAdmin(ctx, events.ResourceRemoved, capability, func(e *events.Event) {
		e.ResourceID = resourceID
	})

	return nil
}

func (c *Coordinator) SetBaseFee(ctx context.Context, caller Caller, baseFee *uint256.Int) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	capability, err := c.admin(ctx, caller)
	if err != nil {
		return err
	}

	err = c.fees.SetBaseFee(ctx, baseFee)
	if err != nil {
		return err
	}

	c.emitAdmin(ctx, events.FeeChanged, capability, func(e *events.Event) {
		e.Value = baseFee.Dec()
	})

	return nil
}

func (c *Coordinator) SetDomainMultiplier(ctx context.Context, caller Caller, domain types.DomainID, multiplier uint64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	capability, err := c.admin(ctx, caller)
	if err != nil {
		return err
	}

	err = c.fees.SetDomainMultiplier(ctx, domain, multiplier)
	if err != nil {
		return err
	}

	c.emitAdmin(ctx, events.FeeChanged, capability, func(e *events.Event) {
		e.OriginDomain = domain
		e.Value = strconv.FormatUint(multiplier, 10)
	})

	return nil
}

func (c *Coordinator) SetResourceMultiplier(ctx context.Context, caller Caller, resourceID types.ResourceID, multiplier uint64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	capability, err := c.admin(ctx, caller)
	if err != nil {
		return err
	}

	err = c.fees.SetResourceMultiplier(ctx, resourceID, multiplier)
	if err != nil {
		return err
	}

	c.emitAdmin(ctx, events.FeeChanged, capability, func(e *events.Event) {
		e.ResourceID = resourceID
		e.Value = strconv.FormatUint(multiplier, 10)
	})

	return nil
}

func (c *Coordinator) SetDepositNonce(ctx context.Context, caller Caller, domain types.DomainID, nonce uint64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	capability, err := c.admin(ctx, caller)
	if err != nil {
		return err
	}

	err = c.deposits.SetDepositNonce(ctx, domain, nonce)
	if err != nil {
		return err
	}

	c.emitAdmin(ctx, events.DepositNonceSet, capability, func(e *events.Event) {
		e.OriginDomain = domain
		e.Value = strconv.FormatUint(nonce, 10)
	})

	return nil
}

func (c *Coordinator) SetForwarder(ctx context.Context, caller Caller, forwarder types.Address, trusted bool) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	capability, err := c.admin(ctx, caller)
	if err != nil {
		return err
	}

	err = c.authority.SetForwarder(ctx, capability, forwarder, trusted)
	if err != nil {
		return err
	}

	c.emitAdmin(ctx, events.ForwarderChanged, capability, func(e *events.Event) {
		e.Identity = forwarder
		e.Value = strconv.FormatBool(trusted)
	})

	return nil
}

func (c *Coordinator) GrantAdmin(ctx context.Context, caller Caller, identity types.Address) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	capability, err := c.admin(ctx, caller)
	if err != nil {
		return err
	}

	return c.authority.GrantAdmin(ctx, capability, identity)
}

func (c *Coordinator) RevokeAdmin(ctx context.Context, caller Caller, identity types.Address) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	capability, err := c.admin(ctx, caller)
	if err != nil {
		return err
	}

	return c.authority.RevokeAdmin(ctx, capability, identity)
}

func (c *Coordinator) Pause(ctx context.Context, caller Caller) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	capability, err := c.admin(ctx, caller)
	if err != nil {
		return err
	}

	err = c.authority.Pause(ctx, capability)
	if err != nil {
		return err
	}

	c.emitAdmin(ctx, events.Paused, capability, func(e *events.Event) {
		e.Identity = capability.Identity()
	})

	return nil
}

func (c *Coordinator) Unpause(ctx context.Context, caller Caller) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	capability, err := c.admin(ctx, caller)
	if err != nil {
		return err
	}

	err = c.authority.Unpause(ctx, capability)
	if err != nil {
		return err
	}

	c.emitAdmin(ctx, events.Unpaused, capability, func(e *events.Event) {
		e.Identity = capability.Identity()
	})

	return nil
}

// WithdrawFees debits the accrued bridge fees and returns the remaining balance.
func (c *Coordinator) WithdrawFees(ctx context.Context, caller Caller, recipient types.Address, amount *uint256.Int) (*uint256.Int, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	capability, err := c.admin(ctx, caller)
	if err != nil {
		return nil, err
	}

	remaining, err := c.deposits.WithdrawFees(ctx, amount)
	if err != nil {
		return nil, err
	}

	c.emitAdmin(ctx, events.FeesWithdrawn, capability, func(e *events.Event) {
		e.Identity = recipient
		e.Value = amount.Dec()
	})

	return remaining, nil
}
