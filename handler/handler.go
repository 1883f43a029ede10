package handler

import (
	"context"
	"sync"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/qubic/go-bridge-coordinator/store"
	"github.com/qubic/go-bridge-coordinator/types"
)

var (
	ErrUnknownResource = errors.New("resource has no handler")
	ErrUnknownHandler  = errors.New("handler is not registered")
	// ErrRejectedDeposit is the cause handlers wrap when a deposit request itself is invalid.
	ErrRejectedDeposit = errors.New("deposit rejected by handler")
)

// Handler carries out the asset specific side of deposits and proposal executions.
type Handler interface {
	Deposit(ctx context.Context, resourceID types.ResourceID, initiator types.Address, destinationDomain types.DomainID, payload []byte, value *uint256.Int) ([]byte, error)
	ExecuteProposal(ctx context.Context, resourceID types.ResourceID, payload []byte) error
	CalculateFee(ctx context.Context, resourceID types.ResourceID, initiator types.Address, destinationDomain types.DomainID, payload []byte) (feeToken types.Address, feeAmount *uint256.Int, err error)
}

// ResourceConfigurer is implemented by handlers that need to know about resources bound to them.
type ResourceConfigurer interface {
	SetResource(ctx context.Context, resourceID types.ResourceID, target []byte) error
	RemoveResource(ctx context.Context, resourceID types.ResourceID) error
}

type Store interface {
	GetResourceHandler(ctx context.Context, resourceID types.ResourceID) (string, error)
	SetResourceHandler(ctx context.Context, resourceID types.ResourceID, handlerName string) error
	DeleteResourceHandler(ctx context.Context, resourceID types.ResourceID) error
	ListResourceHandlers(ctx context.Context) (map[types.ResourceID]string, error)
}

// Registry maps resource ids to handlers. Handlers are registered by name at startup, the
// resource bindings live in the store.
type Registry struct {
	store    Store
	handlers map[string]Handler
	mutex    sync.RWMutex
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store, handlers: make(map[string]Handler)}
}

func (r *Registry) Register(name string, h Handler) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.handlers[name] = h
}

func (r *Registry) handler(name string) (Handler, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	h, ok := r.handlers[name]
	return h, ok
}

func (r *Registry) Resolve(ctx context.Context, resourceID types.ResourceID) (Handler, error) {
	name, err := r.store.GetResourceHandler(ctx, resourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.Wrapf(ErrUnknownResource, "resource %s", resourceID)
		}
		return nil, errors.Wrap(err, "getting resource handler")
	}

	h, ok := r.handler(name)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownResource, "resource %s is bound to unregistered handler %q", resourceID, name)
	}

	return h, nil
}

// Bind attaches resourceID to a registered handler, passing target to handlers that want it.
func (r *Registry) Bind(ctx context.Context, resourceID types.ResourceID, handlerName string, target []byte) error {
	h, ok := r.handler(handlerName)
	if !ok {
		return errors.Wrapf(ErrUnknownHandler, "handler %q", handlerName)
	}

	if configurer, ok := h.(ResourceConfigurer); ok {
		if err := configurer.SetResource(ctx, resourceID, target); err != nil {
			return errors.Wrapf(err, "setting resource on handler %q", handlerName)
		}
	}

	return r.store.SetResourceHandler(ctx, resourceID, handlerName)
}

func (r *Registry) Unbind(ctx context.Context, resourceID types.ResourceID) error {
	h, err := r.Resolve(ctx, resourceID)
	if err != nil {
		return err
	}

	if configurer, ok := h.(ResourceConfigurer); ok {
		if err := configurer.RemoveResource(ctx, resourceID); err != nil {
			return errors.Wrap(err, "removing resource from handler")
		}
	}

	return r.store.DeleteResourceHandler(ctx, resourceID)
}

func (r *Registry) Resources(ctx context.Context) (map[types.ResourceID]string, error) {
	return r.store.ListResourceHandlers(ctx)
}
