package network

import (
	"context"
	"time"

	"github.com/baderanaas/swapbytes/pkg/exchange"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// Event is anything the protocol stack reports to the event loop.
type Event interface {
	Kind() string
}

// NewListenAddr reports an address we are now listening on.
type NewListenAddr struct {
	Addr ma.Multiaddr
}

// MdnsDiscovered reports peers found on the local network.
type MdnsDiscovered struct {
	Peers []peer.AddrInfo
}

// MdnsExpired reports local-network peers that went away.
type MdnsExpired struct {
	Peers []peer.ID
}

// RendezvousRegistered reports a successful registration at the rendezvous point.
type RendezvousRegistered struct {
	Namespace string
	TTL       time.Duration
	Point     peer.ID
}

// RendezvousRegisterFailed reports a failed registration.
type RendezvousRegisterFailed struct {
	Namespace string
	Point     peer.ID
	Err       error
}

// RendezvousDiscovered lists the peers registered under our namespace.
type RendezvousDiscovered struct {
	Registrations []peer.AddrInfo
}

// PeerDialed reports the outcome of a background dial. On success the peer
// is already in the DHT routing table.
type PeerDialed struct {
	Peer peer.ID
	Err  error
}

// GossipMessage is a chat message published by another peer.
type GossipMessage struct {
	From  peer.ID
	Topic string
	Data  []byte
}

// QueryProgressed is the terminal result of a DHT get or put.
type QueryProgressed struct {
	ID    QueryID
	Op    QueryOp
	Key   string
	Value []byte
	Err   error
}

// ExchangeEvent wraps an event from the file exchange.
type ExchangeEvent struct {
	exchange.Event
}

func (NewListenAddr) Kind() string            { return "new_listen_addr" }
func (MdnsDiscovered) Kind() string           { return "mdns_discovered" }
func (MdnsExpired) Kind() string              { return "mdns_expired" }
func (RendezvousRegistered) Kind() string     { return "rendezvous_registered" }
func (RendezvousRegisterFailed) Kind() string { return "rendezvous_register_failed" }
func (RendezvousDiscovered) Kind() string     { return "rendezvous_discovered" }
func (PeerDialed) Kind() string               { return "peer_dialed" }
func (GossipMessage) Kind() string            { return "gossip_message" }
func (QueryProgressed) Kind() string          { return "query_progressed" }
func (ExchangeEvent) Kind() string            { return "exchange" }

// emitter delivers events from protocol goroutines to the event loop. It
// gives up once ctx is done so producers never outlive the node.
type emitter struct {
	ctx context.Context
	out chan<- Event
}

func (e emitter) emit(ev Event) bool {
	select {
	case e.out <- ev:
		return true
	case <-e.ctx.Done():
		return false
	}
}
