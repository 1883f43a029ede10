package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/qubic/go-bridge-coordinator/events"
	"github.com/qubic/go-bridge-coordinator/types"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Emit(t *testing.T) {
	ctx := context.Background()
	m := New()

	m.Emit(ctx, events.Event{Kind: events.ProposalVoted, DepositSequence: 1})
	m.Emit(ctx, events.Event{Kind: events.ProposalVoted, DepositSequence: 1})
	m.Emit(ctx, events.Event{Kind: events.ProposalFinalized, Status: types.StatusPassed})
	m.Emit(ctx, events.Event{Kind: events.ProposalFinalized, Status: types.StatusExecuted})
	m.Emit(ctx, events.Event{Kind: events.HandlerExecutionFailed})
	m.Emit(ctx, events.Event{Kind: events.DepositRecorded, Deposit: &types.DepositRecord{DestinationDomain: 2}})

	require.Equal(t, float64(2), testutil.ToFloat64(m.events.WithLabelValues(string(events.ProposalVoted))))
	require.Equal(t, float64(1), testutil.ToFloat64(m.finalized.WithLabelValues("passed")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.finalized.WithLabelValues("executed")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.handlerFailures))
	require.Equal(t, float64(1), testutil.ToFloat64(m.deposits.WithLabelValues("2")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveRPCError("protocol_violation")
	m.RegisterGauge("block_height", "Current block height.", func() float64 { return 160 })
	m.RegisterCounter("subscriber_dropped_events_total", "Dropped events.", func() float64 { return 3 })

	recorder := httptest.NewRecorder()
	m.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(recorder.Result().Body)
	require.NoError(t, err)

	out := string(body)
	require.True(t, strings.Contains(out, `bridge_coordinator_rpc_errors_total{class="protocol_violation"} 1`), out)
	require.True(t, strings.Contains(out, "bridge_coordinator_block_height 160"), out)
	require.True(t, strings.Contains(out, "bridge_coordinator_subscriber_dropped_events_total 3"), out)
}
