package fee

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/qubic/go-bridge-coordinator/types"
)

// MultiplierScale is the fixed-point denominator of both multiplier tables: 1000 means 1x.
// A stored multiplier of 0 means no override.
const MultiplierScale = 1000

var ErrFeeOverflow = errors.New("fee computation overflows 256 bits")

type Store interface {
	GetBaseFee(ctx context.Context) (*uint256.Int, error)
	SetBaseFee(ctx context.Context, fee *uint256.Int) error
	GetDomainMultiplier(ctx context.Context, domain types.DomainID) (uint64, error)
	SetDomainMultiplier(ctx context.Context, domain types.DomainID, multiplier uint64) error
	GetResourceMultiplier(ctx context.Context, resourceID types.ResourceID) (uint64, error)
	SetResourceMultiplier(ctx context.Context, resourceID types.ResourceID, multiplier uint64) error
}

type Calculator struct {
	store Store
}

func NewCalculator(store Store) *Calculator {
	return &Calculator{store: store}
}

// Quote returns base, scaled by the domain multiplier, then by the resource multiplier.
func (c *Calculator) Quote(ctx context.Context, domain types.DomainID, resourceID types.ResourceID) (*uint256.Int, error) {
	base, err := c.store.GetBaseFee(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting base fee")
	}
	domainMultiplier, err := c.store.GetDomainMultiplier(ctx, domain)
	if err != nil {
		return nil, errors.Wrap(err, "getting domain multiplier")
	}
	resourceMultiplier, err := c.store.GetResourceMultiplier(ctx, resourceID)
	if err != nil {
		return nil, errors.Wrap(err, "getting resource multiplier")
	}

	return Compute(base, domainMultiplier, resourceMultiplier)
}

// Compute is floor(floor(base*domainMultiplier/1000)*resourceMultiplier/1000), with a zero
// multiplier skipping its step. Each division truncates.
func Compute(base *uint256.Int, domainMultiplier, resourceMultiplier uint64) (*uint256.Int, error) {
	fee := new(uint256.Int).Set(base)

	for _, multiplier := range []uint64{domainMultiplier, resourceMultiplier} {
		if multiplier == 0 {
			continue
		}
		_, overflow := fee.MulOverflow(fee, uint256.NewInt(multiplier))
		if overflow {
			return nil, ErrFeeOverflow
		}
		fee.Div(fee, uint256.NewInt(MultiplierScale))
	}

	return fee, nil
}

func (c *Calculator) SetBaseFee(ctx context.Context, fee *uint256.Int) error {
	return c.store.SetBaseFee(ctx, fee)
}

func (c *Calculator) SetDomainMultiplier(ctx context.Context, domain types.DomainID, multiplier uint64) error {
	return c.store.SetDomainMultiplier(ctx, domain, multiplier)
}

func (c *Calculator) SetResourceMultiplier(ctx context.Context, resourceID types.ResourceID, multiplier uint64) error {
	return c.store.SetResourceMultiplier(ctx, resourceID, multiplier)
}
