package network

import (
	"context"
	"fmt"
	"time"

	"github.com/baderanaas/swapbytes/pkg/exchange"
	"github.com/baderanaas/swapbytes/pkg/state"
	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/routing"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Node is a running swapbytes peer: the libp2p host, its protocols and the
// event loop that drives them.
type Node struct {
	host     host.Host
	dht      *dht.IpfsDHT
	pubsub   *pubsub.PubSub
	mdns     mdns.Service
	local    *localDiscovery
	exchange *exchange.Exchange
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *zap.Logger
	started  bool

	Client Client
	Loop   *EventLoop
}

// New builds the host and every protocol on it. The host does not listen
// until StartListening is sent through the returned node's Client.
func New(ctx context.Context, cfg Config, st *state.State) (*Node, error) {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(ctx)
	logger := cfg.Logger

	privKey, err := LoadIdentity(cfg.DataDir)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to load or generate identity: %w", err)
	}

	cm, err := connmgr.NewConnManager(cfg.ConnLow, cfg.ConnHigh, connmgr.WithGracePeriod(time.Minute))
	if err != nil {
		cancel()
		return nil, err
	}

	var kad *dht.IpfsDHT
	h, err := libp2p.New(
		libp2p.Identity(privKey),
		libp2p.NoListenAddrs,
		libp2p.ConnectionManager(cm),
		libp2p.Routing(func(h host.Host) (routing.PeerRouting, error) {
			var err error
			kad, err = NewDHT(ctx, h)
			return kad, err
		}),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create libp2p host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		cancel()
		return nil, multierr.Append(fmt.Errorf("failed to create pubsub: %w", err), h.Close())
	}

	st.SetLocalPeer(h.ID())

	events := make(chan Event, cfg.EventBuffer)
	em := emitter{ctx: ctx, out: events}

	x := exchange.New(ctx, h, exchange.Config{
		RequestTimeout:   cfg.RequestTimeout,
		MaxResponseBytes: cfg.MaxResponseBytes,
		Logger:           logger,
	}, func(ev exchange.Event) { em.emit(ExchangeEvent{Event: ev}) })

	b := &Behaviour{
		Swarm:    newHostSwarm(h, kad.RoutingTable(), em, logger.Named("swarm")),
		Gossip:   newPubsubGossip(h, ps, em, logger.Named("gossip")),
		Kademlia: newKademlia(kad, em, cfg.QueryTimeout, cfg.Tracer),
		Exchange: x,
		Events:   events,
	}

	n := &Node{
		host:     h,
		dht:      kad,
		pubsub:   ps,
		exchange: x,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
	}
	n.Client, n.Loop = NewEventLoop(b, st, cfg)

	n.local = newLocalDiscovery(h, em, logger.Named("discovery"))
	if err := n.local.watch(ctx); err != nil {
		return nil, multierr.Append(err, n.Close())
	}
	if cfg.EnableMDNS {
		n.mdns = mdns.NewMdnsService(h, cfg.Namespace, n.local)
		if err := n.mdns.Start(); err != nil {
			logger.Warn("mDNS unavailable", zap.Error(err))
		}
	}

	if cfg.Rendezvous != "" {
		rc, err := newRendezvousClient(h, kad, cfg.Rendezvous, cfg.Namespace, cfg.RendezvousInterval, em, logger.Named("rendezvous"))
		if err != nil {
			return nil, multierr.Append(err, n.Close())
		}
		go rc.run(ctx)
	}

	if err := kad.Bootstrap(ctx); err != nil {
		logger.Warn("DHT bootstrap failed", zap.Error(err))
	}

	logger.Info("node created", zap.Stringer("peer", h.ID()))
	return n, nil
}

// ID is the local peer ID.
func (n *Node) ID() peer.ID {
	return n.host.ID()
}

// Host exposes the underlying libp2p host.
func (n *Node) Host() host.Host {
	return n.host
}

// Start runs the event loop in the background.
func (n *Node) Start() {
	if n.started {
		return
	}
	n.started = true
	go n.Loop.Run(n.ctx)
}

// Close stops the event loop and tears down every protocol.
func (n *Node) Close() error {
	n.Client.Close()
	if n.started {
		select {
		case <-n.Loop.Done():
		case <-time.After(5 * time.Second):
			n.logger.Warn("event loop did not stop in time")
		}
	}
	n.cancel()

	var err error
	if n.mdns != nil {
		err = multierr.Append(err, n.mdns.Close())
	}
	err = multierr.Append(err, n.exchange.Close())
	err = multierr.Append(err, n.dht.Close())
	err = multierr.Append(err, n.host.Close())
	return err
}
