package network

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	inet "github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/routing"
	drouting "github.com/libp2p/go-libp2p/p2p/discovery/routing"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"
)

// localDiscovery turns mDNS announcements into MdnsDiscovered and the loss of
// every connection to such a peer into MdnsExpired.
type localDiscovery struct {
	host   host.Host
	emit   emitter
	logger *zap.Logger

	mu    sync.Mutex
	found map[peer.ID]struct{}
}

func newLocalDiscovery(h host.Host, em emitter, logger *zap.Logger) *localDiscovery {
	return &localDiscovery{
		host:   h,
		emit:   em,
		logger: logger,
		found:  make(map[peer.ID]struct{}),
	}
}

// HandlePeerFound implements mdns.Notifee.
func (d *localDiscovery) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == d.host.ID() {
		return
	}
	d.mu.Lock()
	d.found[pi.ID] = struct{}{}
	d.mu.Unlock()

	d.emit.emit(MdnsDiscovered{Peers: []peer.AddrInfo{pi}})
}

// watch follows connectedness changes until ctx is done.
func (d *localDiscovery) watch(ctx context.Context) error {
	sub, err := d.host.EventBus().Subscribe(new(event.EvtPeerConnectednessChanged))
	if err != nil {
		return fmt.Errorf("failed to subscribe to connectedness events: %w", err)
	}

	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-sub.Out():
				if !ok {
					return
				}
				ev := e.(event.EvtPeerConnectednessChanged)
				if ev.Connectedness != inet.NotConnected || !d.forget(ev.Peer) {
					continue
				}
				d.emit.emit(MdnsExpired{Peers: []peer.ID{ev.Peer}})
			}
		}
	}()
	return nil
}

func (d *localDiscovery) forget(id peer.ID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.found[id]; !ok {
		return false
	}
	delete(d.found, id)
	return true
}

// rendezvousClient registers at a well-known point through the DHT and
// lists the other peers registered under the same namespace.
type rendezvousClient struct {
	host      host.Host
	discovery *drouting.RoutingDiscovery
	point     peer.AddrInfo
	namespace string
	interval  time.Duration
	emit      emitter
	logger    *zap.Logger
}

func newRendezvousClient(h host.Host, router routing.ContentRouting, addr, namespace string, interval time.Duration, em emitter, logger *zap.Logger) (*rendezvousClient, error) {
	maddr, err := ma.NewMultiaddr(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid rendezvous address: %w", err)
	}
	point, err := peer.AddrInfoFromP2pAddr(maddr)
	if err != nil {
		return nil, fmt.Errorf("invalid rendezvous address: %w", err)
	}
	return &rendezvousClient{
		host:      h,
		discovery: drouting.NewRoutingDiscovery(router),
		point:     *point,
		namespace: namespace,
		interval:  interval,
		emit:      em,
		logger:    logger,
	}, nil
}

func (r *rendezvousClient) run(ctx context.Context) {
	r.host.ConnManager().Protect(r.point.ID, rendezvousTag)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		r.tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick is one registration followed by one discovery round.
func (r *rendezvousClient) tick(ctx context.Context) {
	if r.host.Network().Connectedness(r.point.ID) != inet.Connected {
		cctx, cancel := context.WithTimeout(ctx, dialTimeout)
		err := r.host.Connect(cctx, r.point)
		cancel()
		if err != nil {
			r.emit.emit(RendezvousRegisterFailed{
				Namespace: r.namespace,
				Point:     r.point.ID,
				Err:       fmt.Errorf("failed to reach rendezvous point: %w", err),
			})
			return
		}
	}

	actx, cancel := context.WithTimeout(ctx, r.interval)
	ttl, err := r.discovery.Advertise(actx, r.namespace)
	cancel()
	if err != nil {
		r.emit.emit(RendezvousRegisterFailed{Namespace: r.namespace, Point: r.point.ID, Err: err})
	} else {
		r.emit.emit(RendezvousRegistered{Namespace: r.namespace, TTL: ttl, Point: r.point.ID})
	}

	fctx, cancel := context.WithTimeout(ctx, r.interval)
	defer cancel()
	found, err := r.discovery.FindPeers(fctx, r.namespace)
	if err != nil {
		r.logger.Warn("rendezvous discovery failed", zap.Error(err))
		return
	}
	var regs []peer.AddrInfo
	for info := range found {
		regs = append(regs, info)
	}
	if len(regs) > 0 {
		r.emit.emit(RendezvousDiscovered{Registrations: regs})
	}
}
