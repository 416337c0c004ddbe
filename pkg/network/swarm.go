package network

import (
	"context"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"
)

const dialTimeout = 30 * time.Second

// Swarm is the connection-level side of the node.
type Swarm interface {
	LocalPeer() peer.ID
	// Listen binds addr. Every resulting address is reported as NewListenAddr.
	Listen(addr ma.Multiaddr) error
	// AddAddress records info for DHT routing and connects in the background.
	// The outcome is reported as PeerDialed.
	AddAddress(info peer.AddrInfo)
	// Dial connects in the background to a multiaddr ending in /p2p/<id>.
	// The outcome is reported as PeerDialed.
	Dial(addr ma.Multiaddr) error
}

// routingTable is the part of the DHT routing table a dial feeds.
type routingTable interface {
	TryAddPeer(p peer.ID, queryPeer bool, isReplaceable bool) (bool, error)
}

type hostSwarm struct {
	host      host.Host
	rt        routingTable
	emit      emitter
	logger    *zap.Logger
	announced map[string]struct{}
}

func newHostSwarm(h host.Host, rt routingTable, em emitter, logger *zap.Logger) *hostSwarm {
	return &hostSwarm{
		host:      h,
		rt:        rt,
		emit:      em,
		logger:    logger,
		announced: make(map[string]struct{}),
	}
}

func (s *hostSwarm) LocalPeer() peer.ID {
	return s.host.ID()
}

func (s *hostSwarm) Listen(addr ma.Multiaddr) error {
	if err := s.host.Network().Listen(addr); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	addrs, err := s.host.Network().InterfaceListenAddresses()
	if err != nil {
		return fmt.Errorf("failed to resolve listen addresses: %w", err)
	}
	var fresh []ma.Multiaddr
	for _, a := range addrs {
		if _, ok := s.announced[a.String()]; ok {
			continue
		}
		s.announced[a.String()] = struct{}{}
		fresh = append(fresh, a)
	}

	// Listen runs on the event loop, which is also the only reader of the
	// event channel.
	go func() {
		for _, a := range fresh {
			s.emit.emit(NewListenAddr{Addr: a})
		}
	}()
	return nil
}

func (s *hostSwarm) AddAddress(info peer.AddrInfo) {
	s.host.Peerstore().AddAddrs(info.ID, info.Addrs, peerstore.TempAddrTTL)
	go s.connect(info)
}

func (s *hostSwarm) Dial(addr ma.Multiaddr) error {
	info, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		return err
	}
	go s.connect(*info)
	return nil
}

func (s *hostSwarm) connect(info peer.AddrInfo) {
	ctx, cancel := context.WithTimeout(s.emit.ctx, dialTimeout)
	defer cancel()
	if err := s.host.Connect(ctx, info); err != nil {
		s.emit.emit(PeerDialed{Peer: info.ID, Err: err})
		return
	}
	if s.rt != nil {
		if _, err := s.rt.TryAddPeer(info.ID, true, true); err != nil {
			s.logger.Debug("peer not added to routing table", zap.Stringer("peer", info.ID), zap.Error(err))
		}
	}
	s.emit.emit(PeerDialed{Peer: info.ID})
}

// withPeerID appends /p2p/<id> to addr unless it already names a peer.
func withPeerID(addr ma.Multiaddr, id peer.ID) ma.Multiaddr {
	if _, named := peer.SplitAddr(addr); named != "" {
		return addr
	}
	suffix, err := ma.NewMultiaddr("/p2p/" + id.String())
	if err != nil {
		return addr
	}
	return addr.Encapsulate(suffix)
}
