// Package metrics exposes the node's Prometheus instruments.
//
//	swapbytes_commands_total{command}
//	swapbytes_events_total{kind}
//	swapbytes_dht_queries_total{op,result}
//	swapbytes_pending_queries{purpose}
//	swapbytes_gossip_messages_total{direction}
//	swapbytes_file_transfers_total{direction,result}
//	swapbytes_discovered_peers
//
// A nil *Metrics is valid and records nothing.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "swapbytes"

// Metrics is safe for concurrent use.
type Metrics struct {
	commands        *prometheus.CounterVec
	events          *prometheus.CounterVec
	queries         *prometheus.CounterVec
	pendingQueries  *prometheus.GaugeVec
	gossipMessages  *prometheus.CounterVec
	fileTransfers   *prometheus.CounterVec
	discoveredPeers prometheus.Gauge
}

// New registers the node's metrics with reg under namespace. An empty
// namespace selects DefaultNamespace.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	m := &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands handled by the event loop.",
		}, []string{"command"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Network events handled by the event loop.",
		}, []string{"kind"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dht",
			Name:      "queries_total",
			Help:      "Completed DHT record queries.",
		}, []string{"op", "result"}),
		pendingQueries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_queries",
			Help:      "DHT queries awaiting a result, by purpose.",
		}, []string{"purpose"}),
		gossipMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gossip",
			Name:      "messages_total",
			Help:      "Chat messages published and received.",
		}, []string{"direction"}),
		fileTransfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_transfers_total",
			Help:      "File exchange outcomes.",
		}, []string{"direction", "result"}),
		discoveredPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "discovered_peers",
			Help:      "Peers found on the local network.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.commands,
			m.events,
			m.queries,
			m.pendingQueries,
			m.gossipMessages,
			m.fileTransfers,
			m.discoveredPeers,
		)
	}
	return m
}

func (m *Metrics) CommandHandled(command string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command).Inc()
}

func (m *Metrics) EventHandled(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

// QueryCompleted counts a finished get or put.
func (m *Metrics) QueryCompleted(op string, err error) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(op, result(err)).Inc()
}

func (m *Metrics) SetPending(purpose string, n int) {
	if m == nil {
		return
	}
	m.pendingQueries.WithLabelValues(purpose).Set(float64(n))
}

func (m *Metrics) MessagePublished() {
	if m == nil {
		return
	}
	m.gossipMessages.WithLabelValues("out").Inc()
}

func (m *Metrics) MessageReceived() {
	if m == nil {
		return
	}
	m.gossipMessages.WithLabelValues("in").Inc()
}

// Transfer counts a file exchange outcome. direction is "in" for files we
// received and "out" for files we served.
func (m *Metrics) Transfer(direction string, err error) {
	if m == nil {
		return
	}
	m.fileTransfers.WithLabelValues(direction, result(err)).Inc()
}

func (m *Metrics) SetPeers(n int) {
	if m == nil {
		return
	}
	m.discoveredPeers.Set(float64(n))
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
