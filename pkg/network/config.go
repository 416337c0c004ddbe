package network

import (
	"time"

	"github.com/baderanaas/swapbytes/pkg/exchange"
	"github.com/baderanaas/swapbytes/pkg/metrics"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Config holds everything the node needs besides the shared state.
// Zero values select the defaults.
type Config struct {
	// DataDir persists the identity key. Empty means a new identity per run.
	DataDir string

	Namespace          string
	EnableMDNS         bool
	Rendezvous         string
	RendezvousInterval time.Duration

	QueryTimeout     time.Duration
	RequestTimeout   time.Duration
	MaxResponseBytes int64
	DownloadDir      string

	CommandBuffer int
	EventBuffer   int
	ConnLow       int
	ConnHigh      int

	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Tracer  trace.Tracer
}

func (c Config) withDefaults() Config {
	if c.Namespace == "" {
		c.Namespace = DefaultDiscoveryNamespace
	}
	if c.RendezvousInterval <= 0 {
		c.RendezvousInterval = 30 * time.Second
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 30 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = exchange.DefaultRequestTimeout
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = exchange.DefaultMaxResponseBytes
	}
	if c.DownloadDir == "" {
		c.DownloadDir = "."
	}
	if c.CommandBuffer <= 0 {
		c.CommandBuffer = 16
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 64
	}
	if c.ConnLow <= 0 {
		c.ConnLow = 50
	}
	if c.ConnHigh <= c.ConnLow {
		c.ConnHigh = 4 * c.ConnLow
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Tracer == nil {
		c.Tracer = noop.NewTracerProvider().Tracer("swapbytes")
	}
	return c
}
