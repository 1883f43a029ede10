package types

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"
)

// MaxRelayers caps both the relayer set and the width of the yes-vote bitmap.
const MaxRelayers = 200

// RelayerSlot is the 1-based, never reused index a relayer receives at admission.
type RelayerSlot uint8

type Status uint8

const (
	StatusInactive Status = iota
	StatusActive
	StatusPassed
	StatusExecuted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusInactive:
		return "inactive"
	case StatusActive:
		return "active"
	case StatusPassed:
		return "passed"
	case StatusExecuted:
		return "executed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for candidate := StatusInactive; candidate <= StatusCancelled; candidate++ {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return errors.Errorf("unknown proposal status %q", string(text))
}

func (s Status) IsTerminal() bool {
	return s == StatusExecuted || s == StatusCancelled
}

type Proposal struct {
	Status Status
	// bit i is set when the relayer in slot i+1 voted yes
	YesVotes        *bitset.BitSet
	YesVotesTotal   uint16
	ProposedAtBlock uint64
}

func NewProposal() *Proposal {
	return &Proposal{
		Status:   StatusInactive,
		YesVotes: bitset.New(MaxRelayers),
	}
}

func (p *Proposal) HasVoted(slot RelayerSlot) bool {
	if slot == 0 {
		return false
	}
	return p.YesVotes.Test(uint(slot) - 1)
}

// AddVote sets the slot's bit and bumps the total. The caller checks HasVoted first.
func (p *Proposal) AddVote(slot RelayerSlot) {
	p.YesVotes.Set(uint(slot) - 1)
	p.YesVotesTotal++
}

// Voters returns the slots that voted yes, in ascending order.
func (p *Proposal) Voters() []RelayerSlot {
	voters := make([]RelayerSlot, 0, p.YesVotesTotal)
	for i, ok := p.YesVotes.NextSet(0); ok; i, ok = p.YesVotes.NextSet(i + 1) {
		voters = append(voters, RelayerSlot(i+1))
	}
	return voters
}

// Age is the number of blocks since the proposal became active.
func (p *Proposal) Age(height uint64) uint64 {
	if height < p.ProposedAtBlock {
		return 0
	}
	return height - p.ProposedAtBlock
}

func (p *Proposal) Clone() *Proposal {
	return &Proposal{
		Status:          p.Status,
		YesVotes:        p.YesVotes.Clone(),
		YesVotesTotal:   p.YesVotesTotal,
		ProposedAtBlock: p.ProposedAtBlock,
	}
}
