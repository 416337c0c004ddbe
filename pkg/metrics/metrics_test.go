package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersWithNamespace(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New("", registry)
	m.CommandHandled("send_message")

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	require.True(t, names["swapbytes_commands_total"])
}

func TestCounters(t *testing.T) {
	m := New("test", prometheus.NewRegistry())

	m.QueryCompleted("get", nil)
	m.QueryCompleted("get", errors.New("not found"))
	m.QueryCompleted("get", errors.New("not found"))
	require.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues("get", "success")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.queries.WithLabelValues("get", "failure")))

	m.SetPending("rating-fetch", 3)
	require.Equal(t, 3.0, testutil.ToFloat64(m.pendingQueries.WithLabelValues("rating-fetch")))

	m.MessagePublished()
	m.MessageReceived()
	m.MessageReceived()
	require.Equal(t, 2.0, testutil.ToFloat64(m.gossipMessages.WithLabelValues("in")))

	m.SetPeers(4)
	require.Equal(t, 4.0, testutil.ToFloat64(m.discoveredPeers))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.CommandHandled("x")
		m.EventHandled("x")
		m.QueryCompleted("put", nil)
		m.SetPending("x", 1)
		m.MessagePublished()
		m.MessageReceived()
		m.Transfer("in", nil)
		m.SetPeers(1)
	})
}
