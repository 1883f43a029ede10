package bridge

import (
	"github.com/pkg/errors"
	"github.com/qubic/go-bridge-coordinator/access"
	"github.com/qubic/go-bridge-coordinator/deposit"
	"github.com/qubic/go-bridge-coordinator/fee"
	"github.com/qubic/go-bridge-coordinator/handler"
	"github.com/qubic/go-bridge-coordinator/proposal"
	"github.com/qubic/go-bridge-coordinator/relayer"
)

type Class int

const (
	ClassInternal Class = iota
	// ClassRejectedInput is a caller error, nothing was mutated.
	ClassRejectedInput
	// ClassProtocolViolation is an invalid state transition, nothing was mutated.
	ClassProtocolViolation
	// ClassHandlerFailure is a handler failure during an execution that had to revert.
	ClassHandlerFailure
	ClassUnauthorized
	ClassUnavailable
)

func (c Class) String() string {
	switch c {
	case ClassRejectedInput:
		return "rejected_input"
	case ClassProtocolViolation:
		return "protocol_violation"
	case ClassHandlerFailure:
		return "handler_failure"
	case ClassUnauthorized:
		return "unauthorized"
	case ClassUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

var classes = []struct {
	class   Class
	targets []error
}{
	{ClassRejectedInput, []error{
		handler.ErrUnknownResource,
		handler.ErrUnknownHandler,
		handler.ErrRejectedDeposit,
		deposit.ErrInsufficientFee,
		deposit.ErrInvalidNonceUpdate,
		deposit.ErrInsufficientFunds,
		deposit.ErrDepositToCurrentDomain,
		fee.ErrFeeOverflow,
		ErrInvalidThreshold,
	}},
	{ClassProtocolViolation, []error{
		proposal.ErrAlreadyVoted,
		proposal.ErrProposalCompleted,
		proposal.ErrNotPassed,
		proposal.ErrNotExpired,
		proposal.ErrNotCancellable,
		deposit.ErrNonceExhausted,
		relayer.ErrAlreadyMember,
		relayer.ErrRelayerSlotsExhausted,
	}},
	{ClassHandlerFailure, []error{
		proposal.ErrHandlerExecution,
	}},
	{ClassUnauthorized, []error{
		access.ErrNotAdmin,
		relayer.ErrNotAMember,
		ErrNotAuthorized,
	}},
	{ClassUnavailable, []error{
		access.ErrPaused,
		proposal.ErrNotConfigured,
	}},
}

// Classify places err in the error taxonomy exposed to callers. Unknown errors are internal.
func Classify(err error) Class {
	if err == nil {
		return ClassInternal
	}

	for _, c := range classes {
		for _, target := range c.targets {
			if errors.Is(err, target) {
				return c.class
			}
		}
	}

	return ClassInternal
}
