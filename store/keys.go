package store

import (
	"encoding/binary"

	"github.com/qubic/go-bridge-coordinator/types"
)

const (
	ProposalRecord        = 0x00
	RelayerSlot           = 0x01
	DepositNonce          = 0x02
	DomainFeeMultiplier   = 0x03
	ResourceFeeMultiplier = 0x04
	ResourceHandler       = 0x05
	Forwarder             = 0x06
	Admin                 = 0x07
	RevokedRelayerSlot    = 0x08
	LedgerLocked          = 0x10
	LedgerReleased        = 0x11

	RelayerSlotCounter = 0xb0
	RelayerThreshold   = 0xb1
	ExpiryWindow       = 0xb2
	Paused             = 0xb3
	BaseFee            = 0xb4
	AccruedFees        = 0xb5
)

type iDType interface {
	uint64 | types.DomainID | types.ResourceID | types.Address
}

func AssembleKey[T iDType](keyPrefix int, id T) []byte {

	prefix := byte(keyPrefix)

	key := []byte{prefix}

	switch asserted := any(id).(type) {

	case uint64:
		key = binary.BigEndian.AppendUint64(key, asserted)

	case types.DomainID:
		key = append(key, byte(asserted))

	case types.ResourceID:
		key = append(key, asserted[:]...)

	case types.Address:
		key = append(key, asserted.Bytes()...)
	}
	return key
}

// proposalKey lays out domain (1 byte), sequence (8 bytes big-endian) and content hash (32 bytes).
func proposalKey(key types.ProposalKey) []byte {
	k := AssembleKey(ProposalRecord, key.OriginDomain)
	k = binary.BigEndian.AppendUint64(k, key.DepositSequence)
	k = append(k, key.ContentHash[:]...)

	return k
}

func ledgerReleasedKey(resourceID types.ResourceID, recipient types.Address) []byte {
	key := AssembleKey(LedgerReleased, resourceID)
	key = append(key, recipient.Bytes()...)

	return key
}

// prefixUpperBound returns the smallest key greater than every key starting with prefix.
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
