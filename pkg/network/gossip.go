package network

import (
	"context"
	"fmt"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"
)

// Gossip is the topic-based publish/subscribe side of the node.
type Gossip interface {
	// Subscribe joins topic. Subscribing twice is a no-op.
	Subscribe(topic string) error
	Subscribed(topic string) bool
	// Publish sends data to topic. Peers that are not subscribed are reached
	// through fanout.
	Publish(ctx context.Context, topic string, data []byte) error
	// AddExplicitPeer keeps a connection to id open for gossip.
	AddExplicitPeer(id peer.ID)
	RemoveExplicitPeer(id peer.ID)
}

// pubsubGossip is Gossip over GossipSub. Its maps are only touched by the
// event loop goroutine.
type pubsubGossip struct {
	ctx    context.Context
	host   host.Host
	ps     *pubsub.PubSub
	emit   emitter
	logger *zap.Logger

	topics map[string]*pubsub.Topic
	subs   map[string]*pubsub.Subscription
}

func newPubsubGossip(h host.Host, ps *pubsub.PubSub, em emitter, logger *zap.Logger) *pubsubGossip {
	return &pubsubGossip{
		ctx:    em.ctx,
		host:   h,
		ps:     ps,
		emit:   em,
		logger: logger,
		topics: make(map[string]*pubsub.Topic),
		subs:   make(map[string]*pubsub.Subscription),
	}
}

func (g *pubsubGossip) topic(name string) (*pubsub.Topic, error) {
	if t, ok := g.topics[name]; ok {
		return t, nil
	}
	t, err := g.ps.Join(name)
	if err != nil {
		return nil, fmt.Errorf("failed to join pubsub topic: %w", err)
	}
	g.topics[name] = t
	return t, nil
}

func (g *pubsubGossip) Subscribe(name string) error {
	if _, ok := g.subs[name]; ok {
		return nil
	}
	t, err := g.topic(name)
	if err != nil {
		return err
	}
	sub, err := t.Subscribe()
	if err != nil {
		return fmt.Errorf("failed to subscribe to pubsub topic: %w", err)
	}
	g.subs[name] = sub

	go g.pump(sub, name)

	g.logger.Debug("subscribed", zap.String("topic", name))
	return nil
}

func (g *pubsubGossip) Subscribed(name string) bool {
	_, ok := g.subs[name]
	return ok
}

func (g *pubsubGossip) Publish(ctx context.Context, name string, data []byte) error {
	t, err := g.topic(name)
	if err != nil {
		return err
	}
	return t.Publish(ctx, data)
}

func (g *pubsubGossip) AddExplicitPeer(id peer.ID) {
	g.host.ConnManager().Protect(id, gossipPeerTag)
}

func (g *pubsubGossip) RemoveExplicitPeer(id peer.ID) {
	g.host.ConnManager().Unprotect(id, gossipPeerTag)
}

// pump forwards every message on sub that we did not author.
func (g *pubsubGossip) pump(sub *pubsub.Subscription, topic string) {
	for {
		msg, err := sub.Next(g.ctx)
		if err != nil {
			if g.ctx.Err() == nil {
				g.logger.Warn("subscription ended", zap.String("topic", topic), zap.Error(err))
			}
			return
		}

		if msg.GetFrom() == g.host.ID() {
			continue
		}

		if !g.emit.emit(GossipMessage{From: msg.GetFrom(), Topic: topic, Data: msg.Data}) {
			return
		}
	}
}
