package network

import (
	"context"
	"strings"
	"sync"

	"github.com/baderanaas/swapbytes/pkg/exchange"
	"github.com/baderanaas/swapbytes/pkg/metrics"
	"github.com/baderanaas/swapbytes/pkg/state"
	"github.com/baderanaas/swapbytes/pkg/topics"
	"github.com/libp2p/go-libp2p/core/peer"
	manet "github.com/multiformats/go-multiaddr/net"
	"go.uber.org/zap"
)

// EventLoop is the single goroutine that owns the protocol stack. It
// serialises network events and front-end commands and is the only writer
// of protocol-derived state.
type EventLoop struct {
	b        *Behaviour
	state    *state.State
	commands <-chan Command
	quit     <-chan struct{}
	done     chan struct{}

	pending     *pendingQueries
	dialing     map[peer.ID]string
	inbox       *inbox
	setupDone   bool
	downloadDir string
	maxFileSize int64

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewEventLoop returns a loop driving b and the Client that feeds it.
func NewEventLoop(b *Behaviour, st *state.State, cfg Config) (Client, *EventLoop) {
	cfg = cfg.withDefaults()
	commands := make(chan Command, cfg.CommandBuffer)
	quit := make(chan struct{})
	done := make(chan struct{})

	loop := &EventLoop{
		b:           b,
		state:       st,
		commands:    commands,
		quit:        quit,
		done:        done,
		pending:     newPendingQueries(),
		dialing:     make(map[peer.ID]string),
		inbox:       newInbox(),
		downloadDir: cfg.DownloadDir,
		maxFileSize: cfg.MaxResponseBytes,
		logger:      cfg.Logger.Named("eventloop"),
		metrics:     cfg.Metrics,
	}
	client := Client{
		sender: commands,
		quit:   quit,
		done:   done,
		once:   new(sync.Once),
	}
	return client, loop
}

// Done is closed when Run returns.
func (l *EventLoop) Done() <-chan struct{} {
	return l.done
}

// Run handles events and commands until the Client is closed or ctx is done.
func (l *EventLoop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case ev := <-l.b.Events:
			l.handleEvent(ev)
		case cmd := <-l.commands:
			l.handleCommand(ctx, cmd)
		case <-l.quit:
			l.drain(ctx)
			return
		case <-ctx.Done():
			return
		}
	}
}

// drain handles the commands queued before Close.
func (l *EventLoop) drain(ctx context.Context) {
	for {
		select {
		case cmd := <-l.commands:
			l.handleCommand(ctx, cmd)
		default:
			return
		}
	}
}

func (l *EventLoop) handleEvent(ev Event) {
	l.metrics.EventHandled(ev.Kind())

	switch ev := ev.(type) {
	case NewListenAddr:
		l.onNewListenAddr(ev)
	case MdnsDiscovered:
		l.onMdnsDiscovered(ev)
	case MdnsExpired:
		for _, id := range ev.Peers {
			l.logger.Debug("local peer expired", zap.Stringer("peer", id))
			l.b.Gossip.RemoveExplicitPeer(id)
		}
	case RendezvousRegistered:
		l.logger.Info("registered at rendezvous point",
			zap.String("namespace", ev.Namespace),
			zap.Stringer("point", ev.Point),
			zap.Duration("ttl", ev.TTL))
	case RendezvousRegisterFailed:
		l.logger.Warn("rendezvous registration failed",
			zap.String("namespace", ev.Namespace),
			zap.Stringer("point", ev.Point),
			zap.Error(ev.Err))
	case RendezvousDiscovered:
		l.onRendezvousDiscovered(ev)
	case PeerDialed:
		l.onPeerDialed(ev)
	case GossipMessage:
		l.onGossipMessage(ev)
	case QueryProgressed:
		l.onQueryProgressed(ev)
	case ExchangeEvent:
		l.onExchangeEvent(ev.Event)
	default:
		l.logger.Debug("unhandled event", zap.String("kind", ev.Kind()))
	}
}

// onNewListenAddr publishes our records and joins the default rooms the
// first time we listen on a loopback address.
func (l *EventLoop) onNewListenAddr(ev NewListenAddr) {
	l.logger.Info("listening", zap.Stringer("addr", ev.Addr))
	if l.setupDone || !manet.IsIPLoopback(ev.Addr) {
		return
	}
	l.setupDone = true

	local := l.b.Swarm.LocalPeer()
	l.putValue(NicknameKey(local), NicknameValue(l.state.Nickname()))
	l.putValue(RatingKey(local), RatingValue(0))

	for _, room := range topics.DefaultRooms {
		l.subscribe(room, topics.WelcomeLine(room))
	}
}

func (l *EventLoop) onMdnsDiscovered(ev MdnsDiscovered) {
	local := l.b.Swarm.LocalPeer()
	for _, info := range ev.Peers {
		if info.ID == local {
			continue
		}
		l.logger.Info("discovered peer", zap.Stringer("peer", info.ID))

		l.b.Gossip.AddExplicitPeer(info.ID)
		l.b.Swarm.AddAddress(info)
		l.state.AddPeer(info.ID)

		dm := topics.DirectTopic(info.ID, local)
		l.subscribe(dm, "")
		l.dialing[info.ID] = dm
	}
	l.metrics.SetPeers(len(l.state.Peers()))
}

// onPeerDialed fetches the nickname of a locally discovered peer once it is
// reachable through the DHT. A failed dial still tries, since other peers
// may hold the record.
func (l *EventLoop) onPeerDialed(ev PeerDialed) {
	if ev.Err != nil {
		l.logger.Warn("dial failed", zap.Stringer("peer", ev.Peer), zap.Error(ev.Err))
	} else {
		l.logger.Debug("connected", zap.Stringer("peer", ev.Peer))
	}
	dm, ok := l.dialing[ev.Peer]
	if !ok {
		return
	}
	delete(l.dialing, ev.Peer)
	l.fetchNickname(ev.Peer, dm)
}

func (l *EventLoop) onRendezvousDiscovered(ev RendezvousDiscovered) {
	local := l.b.Swarm.LocalPeer()
	for _, reg := range ev.Registrations {
		if reg.ID == local {
			continue
		}
		for _, addr := range reg.Addrs {
			full := withPeerID(addr, reg.ID)
			if err := l.b.Swarm.Dial(full); err != nil {
				l.logger.Warn("cannot dial registration", zap.Stringer("addr", full), zap.Error(err))
			}
		}
	}
}

// onGossipMessage holds the message until the sender's reputation is known.
func (l *EventLoop) onGossipMessage(ev GossipMessage) {
	l.metrics.MessageReceived()
	text := strings.ToValidUTF8(string(ev.Data), "\uFFFD")

	nickname, ok := l.state.NicknameOf(ev.From)
	if !ok {
		nickname = topics.ShortID(ev.From)
		if !l.pending.resolvingNickname(ev.From) {
			l.fetchNickname(ev.From, "")
		}
	}

	l.state.MarkUnread(ev.Topic)

	id := l.b.Kademlia.GetRecord(RatingKey(ev.From))
	l.pending.ratings[id] = ratingFetch{peer: ev.From, text: text, nickname: nickname, topic: ev.Topic}
	l.inbox.wait(ev.Topic, id)
	l.pending.report(l.metrics)
}

func (l *EventLoop) onExchangeEvent(ev exchange.Event) {
	switch ev := ev.(type) {
	case exchange.InboundRequest:
		l.logger.Info("file requested",
			zap.Stringer("peer", ev.Peer),
			zap.String("request", ev.Channel.ID()))
		l.state.AddRequest(state.FileRequest{
			ID:      ev.Channel.ID(),
			Peer:    ev.Peer,
			Message: ev.Request.Message,
			Channel: ev.Channel,
		})
	case exchange.ResponseReceived:
		path, err := exchange.SaveResponse(l.downloadDir, ev.Response)
		l.metrics.Transfer("in", err)
		if err != nil {
			l.logger.Error("failed to save received file",
				zap.Stringer("peer", ev.Peer),
				zap.String("filename", ev.Response.Filename),
				zap.Error(err))
			return
		}
		l.logger.Info("file received",
			zap.Stringer("peer", ev.Peer),
			zap.String("path", path),
			zap.Int("bytes", len(ev.Response.Data)))
		l.state.SetRatingTarget(ev.Peer)
	case exchange.ResponseSent:
		l.metrics.Transfer("out", nil)
		l.logger.Debug("file sent", zap.Stringer("peer", ev.Peer), zap.String("request", ev.Channel))
	case exchange.OutboundFailure:
		l.metrics.Transfer("in", ev.Err)
		l.logger.Warn("file request failed", zap.Stringer("peer", ev.Peer), zap.Error(ev.Err))
	case exchange.InboundFailure:
		l.metrics.Transfer("out", ev.Err)
		l.logger.Warn("inbound file request failed", zap.Stringer("peer", ev.Peer), zap.Error(ev.Err))
		if ev.Channel != "" {
			l.state.RemoveRequest(ev.Channel)
		}
	}
}

// subscribe joins topic and, when seed is set, starts its history with it.
func (l *EventLoop) subscribe(topic, seed string) {
	if err := l.b.Gossip.Subscribe(topic); err != nil {
		l.logger.Warn("failed to subscribe", zap.String("topic", topic), zap.Error(err))
		return
	}
	if seed != "" {
		l.state.EnsureHistory(topic, seed)
	}
}

func (l *EventLoop) fetchNickname(p peer.ID, dmTopic string) {
	id := l.b.Kademlia.GetRecord(NicknameKey(p))
	l.pending.nicknames[id] = nicknameFetch{peer: p, dmTopic: dmTopic}
	l.pending.report(l.metrics)
}

func (l *EventLoop) putValue(key string, v Value) {
	raw, err := v.Marshal()
	if err != nil {
		l.logger.Error("failed to encode record", zap.String("key", key), zap.Error(err))
		return
	}
	l.b.Kademlia.PutRecord(key, raw)
}
