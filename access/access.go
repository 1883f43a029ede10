package access

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/qubic/go-bridge-coordinator/types"
)

var (
	ErrNotAdmin = errors.New("not an admin")
	ErrPaused   = errors.New("bridge is paused")
)

type Store interface {
	IsAdmin(ctx context.Context, identity types.Address) (bool, error)
	SetAdmin(ctx context.Context, identity types.Address, admin bool) error
	IsForwarder(ctx context.Context, forwarder types.Address) (bool, error)
	SetForwarder(ctx context.Context, forwarder types.Address, trusted bool) error
	IsPaused(ctx context.Context) (bool, error)
	SetPaused(ctx context.Context, paused bool) error
}

// AdminCapability is handed to every administrative operation. Only Authority.Admin issues
// valid ones, so holding one is the permission check.
type AdminCapability struct {
	identity types.Address
	valid    bool
}

func (c AdminCapability) Identity() types.Address {
	return c.identity
}

func (c AdminCapability) check() error {
	if !c.valid {
		return ErrNotAdmin
	}
	return nil
}

// Verify fails for capabilities that were not issued by an Authority.
func (c AdminCapability) Verify() error {
	return c.check()
}

type Authority struct {
	store Store
}

func NewAuthority(store Store) *Authority {
	return &Authority{store: store}
}

func (a *Authority) Admin(ctx context.Context, identity types.Address) (AdminCapability, error) {
	admin, err := a.store.IsAdmin(ctx, identity)
	if err != nil {
		return AdminCapability{}, errors.Wrap(err, "checking admin")
	}
	if !admin {
		return AdminCapability{}, errors.Wrapf(ErrNotAdmin, "identity %s", identity.Hex())
	}

	return AdminCapability{identity: identity, valid: true}, nil
}

// Bootstrap seeds an admin without a capability. Only startup code calls it.
func (a *Authority) Bootstrap(ctx context.Context, identity types.Address) error {
	return a.store.SetAdmin(ctx, identity, true)
}

func (a *Authority) GrantAdmin(ctx context.Context, capability AdminCapability, identity types.Address) error {
	if err := capability.check(); err != nil {
		return err
	}
	return a.store.SetAdmin(ctx, identity, true)
}

func (a *Authority) RevokeAdmin(ctx context.Context, capability AdminCapability, identity types.Address) error {
	if err := capability.check(); err != nil {
		return err
	}
	return a.store.SetAdmin(ctx, identity, false)
}

func (a *Authority) SetForwarder(ctx context.Context, capability AdminCapability, forwarder types.Address, trusted bool) error {
	if err := capability.check(); err != nil {
		return err
	}
	return a.store.SetForwarder(ctx, forwarder, trusted)
}

// ResolveCaller returns the effective caller. When the direct caller is a trusted forwarder
// the identity is the last 20 bytes of the suffix it appended.
func (a *Authority) ResolveCaller(ctx context.Context, direct types.Address, suffix []byte) (types.Address, error) {
	if len(suffix) < common.AddressLength {
		return direct, nil
	}

	trusted, err := a.store.IsForwarder(ctx, direct)
	if err != nil {
		return types.Address{}, errors.Wrap(err, "checking forwarder")
	}
	if !trusted {
		return direct, nil
	}

	return common.BytesToAddress(suffix[len(suffix)-common.AddressLength:]), nil
}

func (a *Authority) Pause(ctx context.Context, capability AdminCapability) error {
	if err := capability.check(); err != nil {
		return err
	}
	return a.store.SetPaused(ctx, true)
}

func (a *Authority) Unpause(ctx context.Context, capability AdminCapability) error {
	if err := capability.check(); err != nil {
		return err
	}
	return a.store.SetPaused(ctx, false)
}

func (a *Authority) IsPaused(ctx context.Context) (bool, error) {
	return a.store.IsPaused(ctx)
}

// WhenNotPaused is the gate every mutating entry point passes first.
func (a *Authority) WhenNotPaused(ctx context.Context) error {
	paused, err := a.store.IsPaused(ctx)
	if err != nil {
		return errors.Wrap(err, "checking pause flag")
	}
	if paused {
		return ErrPaused
	}

	return nil
}
