package events

import (
	"context"
	"testing"

	"github.com/qubic/go-bridge-coordinator/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestBroker_FanOut(t *testing.T) {
	ctx := context.Background()
	b := NewBroker()

	first, cancelFirst := b.Subscribe(4)
	second, cancelSecond := b.Subscribe(4)
	defer cancelSecond()
	require.Equal(t, 2, b.Subscribers())

	b.Emit(ctx, Event{Kind: ProposalCreated, Height: 1})

	require.Equal(t, ProposalCreated, (<-first).Kind)
	require.Equal(t, ProposalCreated, (<-second).Kind)

	cancelFirst()
	cancelFirst()
	_, open := <-first
	require.False(t, open)
	require.Equal(t, 1, b.Subscribers())
}

func TestBroker_SlowSubscriberDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	b := NewBroker()

	ch, cancel := b.Subscribe(1)
	defer cancel()

	b.Emit(ctx, Event{Kind: ProposalVoted})
	b.Emit(ctx, Event{Kind: ProposalFinalized})

	require.Equal(t, uint64(1), b.Dropped())
	require.Equal(t, ProposalVoted, (<-ch).Kind)
}

func TestBroker_SubscribeClampsBuffer(t *testing.T) {
	b := NewBroker()

	huge, cancelHuge := b.Subscribe(1 << 62)
	defer cancelHuge()
	require.Equal(t, MaxSubscriberBuffer, cap(huge))

	negative, cancelNegative := b.Subscribe(-5)
	defer cancelNegative()
	require.Equal(t, 0, cap(negative))
}

func TestMultiAndRecorder(t *testing.T) {
	ctx := context.Background()
	var a, b Recorder

	Multi{&a, &b}.Emit(ctx, Event{Kind: Paused})
	Multi{&a, &b}.Emit(ctx, Event{Kind: Unpaused})

	require.Equal(t, []Kind{Paused, Unpaused}, a.Kinds())
	require.Equal(t, a.Events(), b.Events())

	a.Reset()
	require.Empty(t, a.Events())
}

func TestLogEmitter(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	emitter := NewLogEmitter(zap.New(core).Sugar())

	emitter.Emit(context.Background(), Event{
		Kind:            ProposalFinalized,
		Height:          10,
		OriginDomain:    1,
		DepositSequence: 7,
		Status:          types.StatusPassed,
	})
	emitter.Emit(context.Background(), Event{
		Kind:            HandlerExecutionFailed,
		OriginDomain:    1,
		DepositSequence: 7,
		Reason:          "boom",
	})

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, string(ProposalFinalized), entries[0].Message)
	require.Equal(t, "passed", entries[0].ContextMap()["status"])
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
	require.Equal(t, "boom", entries[1].ContextMap()["reason"])
}

func TestEvent_ProposalKey(t *testing.T) {
	key := types.NewProposalKey(3, 9, types.ResourceID{1}, []byte("x"))
	e := Event{OriginDomain: key.OriginDomain, DepositSequence: key.DepositSequence, DataHash: key.ContentHash}
	require.Equal(t, key, e.ProposalKey())
}
