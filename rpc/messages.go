package rpc

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/qubic/go-bridge-coordinator/events"
	"github.com/qubic/go-bridge-coordinator/store"
	"github.com/qubic/go-bridge-coordinator/types"
)

// Amounts travel as decimal strings.

func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return uint256.NewInt(0), nil
	}
	amount, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing amount %q", s)
	}
	return amount, nil
}

type Empty struct{}

type VoteRequest struct {
	OriginDomain    types.DomainID   `json:"originDomain"`
	DepositSequence uint64           `json:"depositSequence"`
	ResourceID      types.ResourceID `json:"resourceID"`
	Payload         hexutil.Bytes    `json:"payload"`
}

type VoteResponse struct {
	Status types.Status `json:"status"`
}

type ExecuteRequest struct {
	OriginDomain    types.DomainID   `json:"originDomain"`
	DepositSequence uint64           `json:"depositSequence"`
	ResourceID      types.ResourceID `json:"resourceID"`
	Payload         hexutil.Bytes    `json:"payload"`
	RevertOnFailure bool             `json:"revertOnFailure"`
}

type ExecuteResponse struct {
	Status types.Status `json:"status"`
	Failed bool         `json:"failed"`
	Reason string       `json:"reason,omitempty"`
}

type ProposalRequest struct {
	OriginDomain    types.DomainID `json:"originDomain"`
	DepositSequence uint64         `json:"depositSequence"`
	DataHash        types.Hash     `json:"dataHash"`
}

type ProposalResponse struct {
	Found           bool                `json:"found"`
	Status          types.Status        `json:"status"`
	Voters          []uint16            `json:"voters"`
	YesVotesTotal   uint16              `json:"yesVotesTotal"`
	ProposedAtBlock uint64              `json:"proposedAtBlock"`
}

type HasVotedRequest struct {
	OriginDomain    types.DomainID `json:"originDomain"`
	DepositSequence uint64         `json:"depositSequence"`
	DataHash        types.Hash     `json:"dataHash"`
	Relayer         types.Address  `json:"relayer"`
}

type HasVotedResponse struct {
	Voted bool `json:"voted"`
}

type DepositRequest struct {
	DestinationDomain types.DomainID   `json:"destinationDomain"`
	ResourceID        types.ResourceID `json:"resourceID"`
	Payload           hexutil.Bytes    `json:"payload"`
	Value             string           `json:"value"`
}

type DepositResponse struct {
	Sequence        uint64        `json:"sequence"`
	HandlerResponse hexutil.Bytes `json:"handlerResponse"`
}

type QuoteFeeRequest struct {
	DestinationDomain types.DomainID   `json:"destinationDomain"`
	ResourceID        types.ResourceID `json:"resourceID"`
}

type AmountResponse struct {
	Amount string `json:"amount"`
}

type HandlerFeeRequest struct {
	DestinationDomain types.DomainID   `json:"destinationDomain"`
	ResourceID        types.ResourceID `json:"resourceID"`
	Initiator         types.Address    `json:"initiator"`
	Payload           hexutil.Bytes    `json:"payload"`
}

type HandlerFeeResponse struct {
	Token  types.Address `json:"token"`
	Amount string        `json:"amount"`
}

type DomainRequest struct {
	Domain types.DomainID `json:"domain"`
}

type NonceResponse struct {
	Nonce uint64 `json:"nonce"`
}

type StatusResponse struct {
	Domain      types.DomainID              `json:"domain"`
	Height      uint64                      `json:"height"`
	Paused      bool                        `json:"paused"`
	Threshold   uint16                      `json:"threshold"`
	Expiry      uint64                      `json:"expiry"`
	Relayers    []store.RelayerEntry        `json:"relayers"`
	Resources   map[types.ResourceID]string `json:"resources"`
	BaseFee     string                      `json:"baseFee"`
	AccruedFees string                      `json:"accruedFees"`
}

type IdentityRequest struct {
	Identity types.Address `json:"identity"`
}

type SlotResponse struct {
	Slot types.RelayerSlot `json:"slot"`
}

type ThresholdRequest struct {
	Threshold uint16 `json:"threshold"`
}

type ExpiryRequest struct {
	Blocks uint64 `json:"blocks"`
}

type ResourceRequest struct {
	ResourceID types.ResourceID `json:"resourceID"`
	Handler    string           `json:"handler,omitempty"`
	Target     hexutil.Bytes    `json:"target,omitempty"`
}

type BaseFeeRequest struct {
	Fee string `json:"fee"`
}

type DomainMultiplierRequest struct {
	Domain     types.DomainID `json:"domain"`
	Multiplier uint64         `json:"multiplier"`
}

type ResourceMultiplierRequest struct {
	ResourceID types.ResourceID `json:"resourceID"`
	Multiplier uint64           `json:"multiplier"`
}

type DepositNonceRequest struct {
	Domain types.DomainID `json:"domain"`
	Nonce  uint64         `json:"nonce"`
}

type ForwarderRequest struct {
	Forwarder types.Address `json:"forwarder"`
	Trusted   bool          `json:"trusted"`
}

type WithdrawFeesRequest struct {
	Recipient types.Address `json:"recipient"`
	Amount    string        `json:"amount"`
}

type SubscribeRequest struct {
	// Kinds limits the stream to the listed kinds, all kinds when empty.
	Kinds  []events.Kind `json:"kinds,omitempty"`
	Buffer int           `json:"buffer,omitempty"`
}
