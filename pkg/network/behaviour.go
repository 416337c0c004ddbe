package network

import (
	"github.com/baderanaas/swapbytes/pkg/exchange"
	"github.com/libp2p/go-libp2p/core/peer"
)

// FileExchange is the request/response file protocol.
type FileExchange interface {
	SendRequest(p peer.ID, req exchange.Request) exchange.RequestID
	SendResponse(ch *exchange.ResponseChannel, resp exchange.Response) error
	Decline(ch *exchange.ResponseChannel) error
}

var _ FileExchange = (*exchange.Exchange)(nil)

// Behaviour bundles the protocol sides the event loop drives. Every side
// reports back through Events.
type Behaviour struct {
	Swarm    Swarm
	Gossip   Gossip
	Kademlia *Kademlia
	Exchange FileExchange
	Events   <-chan Event
}
