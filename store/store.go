package store

import (
	"context"
	"encoding/binary"

	"github.com/cockroachdb/pebble"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("store resource not found")

// PebbleStore holds every piece of coordinator state. Each component owns a key prefix and
// only touches its own prefix through the typed accessors in this package.
type PebbleStore struct {
	db       *pebble.DB
	listener *EventListener
	logger   *zap.Logger
}

func NewPebbleStore(storagePath string, logger *zap.Logger) (*PebbleStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	listener := NewEventListener(logger)
	db, err := pebble.Open(storagePath, &pebble.Options{EventListener: &listener.PebbleListener})
	if err != nil {
		return nil, errors.Wrap(err, "opening pebble db")
	}

	return &PebbleStore{db: db, listener: listener, logger: logger}, nil
}

func (s *PebbleStore) EventListener() *EventListener {
	return s.listener
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}

func (s *PebbleStore) get(key []byte) ([]byte, error) {
	value, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, errors.Wrap(err, "getting value")
	}
	defer closer.Close()

	out := make([]byte, len(value))
	copy(out, value)

	return out, nil
}

func (s *PebbleStore) set(key, value []byte) error {
	err := s.db.Set(key, value, pebble.Sync)
	if err != nil {
		return errors.Wrap(err, "storing value")
	}

	return nil
}

func (s *PebbleStore) delete(key []byte) error {
	err := s.db.Delete(key, pebble.Sync)
	if err != nil {
		return errors.Wrap(err, "deleting value")
	}

	return nil
}

func (s *PebbleStore) getUint64(key []byte) (uint64, error) {
	value, err := s.get(key)
	if err != nil {
		return 0, err
	}
	if len(value) != 8 {
		return 0, errors.Errorf("malformed uint64 value of %d bytes", len(value))
	}

	return binary.BigEndian.Uint64(value), nil
}

func (s *PebbleStore) setUint64(key []byte, value uint64) error {
	return s.set(key, binary.BigEndian.AppendUint64(nil, value))
}

// getAmount returns zero for absent keys.
func (s *PebbleStore) getAmount(key []byte) (*uint256.Int, error) {
	value, err := s.get(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return uint256.NewInt(0), nil
		}
		return nil, err
	}

	return new(uint256.Int).SetBytes(value), nil
}

func (s *PebbleStore) setAmount(key []byte, amount *uint256.Int) error {
	b := amount.Bytes32()
	return s.set(key, b[:])
}

func (s *PebbleStore) getFlag(key []byte) (bool, error) {
	value, err := s.get(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	return len(value) == 1 && value[0] == 1, nil
}

func (s *PebbleStore) setFlag(key []byte, flag bool) error {
	if !flag {
		return s.delete(key)
	}
	return s.set(key, []byte{1})
}

// scanPrefix calls fn for every key under prefix, with the prefix stripped.
func (s *PebbleStore) scanPrefix(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return errors.Wrap(err, "creating iterator")
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(iter.Key()[len(prefix):], iter.Value()); err != nil {
			return err
		}
	}

	return iter.Error()
}
