package store

import (
	"context"

	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"
	"github.com/qubic/go-bridge-coordinator/types"
	"github.com/qubic/go-bridge-coordinator/utils"
)

type proposalHeader struct {
	Status          uint8
	YesVotesTotal   uint16
	ProposedAtBlock uint64
}

const proposalHeaderSize = 11

func encodeProposal(p *types.Proposal) ([]byte, error) {
	header, err := utils.BinarySerialize(proposalHeader{
		Status:          uint8(p.Status),
		YesVotesTotal:   p.YesVotesTotal,
		ProposedAtBlock: p.ProposedAtBlock,
	})
	if err != nil {
		return nil, errors.Wrap(err, "serializing proposal header")
	}

	votes, err := p.YesVotes.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "serializing yes votes")
	}

	return append(header, votes...), nil
}

func decodeProposal(value []byte) (*types.Proposal, error) {
	if len(value) < proposalHeaderSize {
		return nil, errors.Errorf("proposal record too short: %d bytes", len(value))
	}

	var header proposalHeader
	if err := utils.BinaryDeserialize(value[:proposalHeaderSize], &header); err != nil {
		return nil, errors.Wrap(err, "deserializing proposal header")
	}

	votes := bitset.New(types.MaxRelayers)
	if err := votes.UnmarshalBinary(value[proposalHeaderSize:]); err != nil {
		return nil, errors.Wrap(err, "deserializing yes votes")
	}

	return &types.Proposal{
		Status:          types.Status(header.Status),
		YesVotes:        votes,
		YesVotesTotal:   header.YesVotesTotal,
		ProposedAtBlock: header.ProposedAtBlock,
	}, nil
}

// GetProposal returns ErrNotFound for keys that were never voted on.
func (s *PebbleStore) GetProposal(_ context.Context, key types.ProposalKey) (*types.Proposal, error) {
	value, err := s.get(proposalKey(key))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting proposal %s", key)
	}

	p, err := decodeProposal(value)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding proposal %s", key)
	}

	return p, nil
}

func (s *PebbleStore) SetProposal(_ context.Context, key types.ProposalKey, p *types.Proposal) error {
	value, err := encodeProposal(p)
	if err != nil {
		return errors.Wrapf(err, "encoding proposal %s", key)
	}

	err = s.set(proposalKey(key), value)
	if err != nil {
		return errors.Wrapf(err, "storing proposal %s", key)
	}

	return nil
}
