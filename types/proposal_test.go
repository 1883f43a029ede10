package types

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestProposal_VotesMatchBitmap(t *testing.T) {
	p := NewProposal()
	for _, slot := range []RelayerSlot{1, 7, 200} {
		require.False(t, p.HasVoted(slot))
		p.AddVote(slot)
		require.True(t, p.HasVoted(slot))
	}

	require.Equal(t, uint16(3), p.YesVotesTotal)
	require.Equal(t, uint(p.YesVotesTotal), p.YesVotes.Count())
	if diff := cmp.Diff([]RelayerSlot{1, 7, 200}, p.Voters()); diff != "" {
		t.Fatalf("unexpected voters (-want +got):\n%s", diff)
	}
}

func TestProposal_SlotZeroNeverVoted(t *testing.T) {
	p := NewProposal()
	require.False(t, p.HasVoted(0))
}

func TestProposal_CloneIsIndependent(t *testing.T) {
	p := NewProposal()
	p.Status = StatusActive
	p.AddVote(2)

	c := p.Clone()
	c.AddVote(3)
	c.Status = StatusPassed

	require.False(t, p.HasVoted(3))
	require.Equal(t, StatusActive, p.Status)
	require.Equal(t, uint16(1), p.YesVotesTotal)
}

func TestProposal_Age(t *testing.T) {
	p := NewProposal()
	p.ProposedAtBlock = 100
	require.Equal(t, uint64(60), p.Age(160))
	require.Equal(t, uint64(0), p.Age(90))
}

func TestStatus_IsTerminal(t *testing.T) {
	require.False(t, StatusInactive.IsTerminal())
	require.False(t, StatusActive.IsTerminal())
	require.False(t, StatusPassed.IsTerminal())
	require.True(t, StatusExecuted.IsTerminal())
	require.True(t, StatusCancelled.IsTerminal())
}

func TestResourceIDFromHex(t *testing.T) {
	var want ResourceID
	want[31] = 0xab
	got, err := ResourceIDFromHex(want.Hex())
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = ResourceIDFromHex("0x1234")
	require.ErrorContains(t, err, "must be 32 bytes")

	_, err = ResourceIDFromHex("zz")
	require.Error(t, err)
}

func TestStatus_Text(t *testing.T) {
	for s := StatusInactive; s <= StatusCancelled; s++ {
		text, err := s.MarshalText()
		require.NoError(t, err)

		var got Status
		require.NoError(t, got.UnmarshalText(text))
		require.Equal(t, s, got)
	}

	var s Status
	require.Error(t, s.UnmarshalText([]byte("pending")))
}
