package exchange

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
)

// ResponseChannel is the reply half of an inbound request. It can be used
// once: a response, a decline or the request timeout, whichever comes first.
type ResponseChannel struct {
	id     string
	peer   peer.ID
	stream network.Stream
	used   atomic.Bool
}

// NewResponseChannel wraps the stream an inbound request arrived on.
func NewResponseChannel(p peer.ID, s network.Stream) *ResponseChannel {
	return &ResponseChannel{
		id:     uuid.NewString(),
		peer:   p,
		stream: s,
	}
}

// ID is unique per inbound request.
func (c *ResponseChannel) ID() string { return c.id }

// Peer is the requester.
func (c *ResponseChannel) Peer() peer.ID { return c.peer }

// Used reports whether the channel has been answered, declined or expired.
func (c *ResponseChannel) Used() bool { return c.used.Load() }

func (c *ResponseChannel) claim() bool {
	return c.used.CompareAndSwap(false, true)
}
