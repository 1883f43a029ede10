package types

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/qubic/go-bridge-coordinator/utils"
)

// Address identifies relayers, admins, forwarders and depositors.
type Address = common.Address

type Hash = common.Hash

// DomainID identifies a chain participating in the bridge.
type DomainID uint8

// ResourceID binds a deposit to the handler that knows its asset.
type ResourceID [32]byte

func (r ResourceID) Hex() string {
	return "0x" + hex.EncodeToString(r[:])
}

func (r ResourceID) String() string {
	return r.Hex()
}

func (r ResourceID) MarshalText() ([]byte, error) {
	return []byte(r.Hex()), nil
}

func (r *ResourceID) UnmarshalText(text []byte) error {
	parsed, err := ResourceIDFromHex(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func ResourceIDFromHex(s string) (ResourceID, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return ResourceID{}, errors.Wrap(err, "decoding resource id hex")
	}
	if len(b) != 32 {
		return ResourceID{}, errors.Errorf("resource id must be 32 bytes, got %d", len(b))
	}

	var r ResourceID
	copy(r[:], b)
	return r, nil
}

// ProposalKey is the canonical identity of what is being voted on. Two submissions for the same
// domain and sequence with different payload bytes are different proposals.
type ProposalKey struct {
	OriginDomain    DomainID
	DepositSequence uint64
	ContentHash     Hash
}

func NewProposalKey(originDomain DomainID, sequence uint64, resourceID ResourceID, payload []byte) ProposalKey {
	return ProposalKey{
		OriginDomain:    originDomain,
		DepositSequence: sequence,
		ContentHash:     utils.ContentHash(resourceID, payload),
	}
}

func (k ProposalKey) String() string {
	return fmt.Sprintf("%d/%d/%s", k.OriginDomain, k.DepositSequence, k.ContentHash.Hex())
}

// DepositRecord is write-once and only ever emitted, never kept in mutable storage.
type DepositRecord struct {
	DestinationDomain DomainID   `json:"destinationDomain"`
	ResourceID        ResourceID `json:"resourceID"`
	Sequence          uint64     `json:"sequence"`
	Initiator         Address    `json:"initiator"`
	Payload           []byte     `json:"payload"`
	HandlerResponse   []byte     `json:"handlerResponse"`
}
