package network

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/baderanaas/swapbytes/pkg/exchange"
	"github.com/baderanaas/swapbytes/pkg/state"
	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/routing"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

// newTestDir creates a temporary directory for testing and returns its path.
func newTestDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "swapbytes-test-")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, os.RemoveAll(dir)) })
	return dir
}

func newPeerID(t *testing.T) peer.ID {
	priv, _, err := crypto.GenerateEd25519Key(nil)
	require.NoError(t, err)
	id, err := peer.IDFromPrivateKey(priv)
	require.NoError(t, err)
	return id
}

// memStore is a routing.ValueStore shared by every harness of a test, so
// records written by one peer are visible to the others.
type memStore struct {
	ds ds.Datastore
}

var _ routing.ValueStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{ds: dssync.MutexWrap(ds.NewMapDatastore())}
}

func (s *memStore) PutValue(ctx context.Context, key string, value []byte, _ ...routing.Option) error {
	return s.ds.Put(ctx, ds.NewKey(key), value)
}

func (s *memStore) GetValue(ctx context.Context, key string, _ ...routing.Option) ([]byte, error) {
	v, err := s.ds.Get(ctx, ds.NewKey(key))
	if errors.Is(err, ds.ErrNotFound) {
		return nil, routing.ErrNotFound
	}
	return v, err
}

func (s *memStore) SearchValue(ctx context.Context, key string, _ ...routing.Option) (<-chan []byte, error) {
	v, err := s.GetValue(ctx, key)
	if err != nil {
		return nil, err
	}
	out := make(chan []byte, 1)
	out <- v
	close(out)
	return out, nil
}

// value decodes the record under a logical key.
func (s *memStore) value(t *testing.T, key string) (Value, bool) {
	raw, err := s.GetValue(context.Background(), recordKey(key))
	if errors.Is(err, routing.ErrNotFound) {
		return Value{}, false
	}
	require.NoError(t, err)
	v, err := DecodeValue(raw)
	require.NoError(t, err)
	return v, true
}

func (s *memStore) put(t *testing.T, key string, v Value) {
	raw, err := v.Marshal()
	require.NoError(t, err)
	require.NoError(t, s.PutValue(context.Background(), recordKey(key), raw))
}

// putRaw stores bytes under a logical key without encoding them.
func (s *memStore) putRaw(t *testing.T, key string, raw []byte) {
	require.NoError(t, s.PutValue(context.Background(), recordKey(key), raw))
}

func (s *memStore) raw(t *testing.T, key string) []byte {
	v, err := s.GetValue(context.Background(), recordKey(key))
	require.NoError(t, err)
	return v
}

type published struct {
	topic string
	data  []byte
}

type fakeGossip struct {
	subscribed map[string]int
	published  []published
	explicit   map[peer.ID]bool
}

func newFakeGossip() *fakeGossip {
	return &fakeGossip{
		subscribed: make(map[string]int),
		explicit:   make(map[peer.ID]bool),
	}
}

func (g *fakeGossip) Subscribe(topic string) error {
	if g.subscribed[topic] == 0 {
		g.subscribed[topic] = 1
	}
	return nil
}

func (g *fakeGossip) Subscribed(topic string) bool { return g.subscribed[topic] > 0 }

func (g *fakeGossip) Publish(_ context.Context, topic string, data []byte) error {
	g.published = append(g.published, published{topic: topic, data: data})
	return nil
}

func (g *fakeGossip) AddExplicitPeer(id peer.ID)    { g.explicit[id] = true }
func (g *fakeGossip) RemoveExplicitPeer(id peer.ID) { delete(g.explicit, id) }

// fakeSwarm connects instantly: every AddAddress and Dial is answered with
// PeerDialed carrying dialErr.
type fakeSwarm struct {
	local     peer.ID
	events    chan<- Event
	dialErr   error
	listenErr error
	listened  []ma.Multiaddr
	added     []peer.AddrInfo
	dialed    []ma.Multiaddr
}

func (s *fakeSwarm) LocalPeer() peer.ID { return s.local }

func (s *fakeSwarm) Listen(addr ma.Multiaddr) error {
	if s.listenErr != nil {
		return s.listenErr
	}
	s.listened = append(s.listened, addr)
	return nil
}

func (s *fakeSwarm) AddAddress(info peer.AddrInfo) {
	s.added = append(s.added, info)
	s.events <- PeerDialed{Peer: info.ID, Err: s.dialErr}
}

func (s *fakeSwarm) Dial(addr ma.Multiaddr) error {
	info, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		return err
	}
	s.dialed = append(s.dialed, addr)
	s.events <- PeerDialed{Peer: info.ID, Err: s.dialErr}
	return nil
}

type sentRequest struct {
	peer peer.ID
	req  exchange.Request
}

type fakeExchange struct {
	nextID    exchange.RequestID
	requests  []sentRequest
	responses []exchange.Response
	declined  []string
}

func (x *fakeExchange) SendRequest(p peer.ID, req exchange.Request) exchange.RequestID {
	x.nextID++
	x.requests = append(x.requests, sentRequest{peer: p, req: req})
	return x.nextID
}

func (x *fakeExchange) SendResponse(ch *exchange.ResponseChannel, resp exchange.Response) error {
	x.responses = append(x.responses, resp)
	return nil
}

func (x *fakeExchange) Decline(ch *exchange.ResponseChannel) error {
	x.declined = append(x.declined, ch.ID())
	return nil
}

// harness drives one EventLoop by hand: commands and events are handled on
// the test goroutine, so assertions never race the loop.
type harness struct {
	t      *testing.T
	ctx    context.Context
	local  peer.ID
	state  *state.State
	store  *memStore
	gossip *fakeGossip
	swarm  *fakeSwarm
	exch   *fakeExchange
	events chan Event
	client Client
	loop   *EventLoop
	dir    string
}

func newHarness(t *testing.T, nickname string, store *memStore) *harness {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	local := newPeerID(t)
	st := state.New(nickname)
	st.SetLocalPeer(local)

	events := make(chan Event, 64)
	em := emitter{ctx: ctx, out: events}
	h := &harness{
		t:      t,
		ctx:    ctx,
		local:  local,
		state:  st,
		store:  store,
		gossip: newFakeGossip(),
		swarm:  &fakeSwarm{local: local, events: events},
		exch:   &fakeExchange{},
		events: events,
		dir:    newTestDir(t),
	}
	b := &Behaviour{
		Swarm:    h.swarm,
		Gossip:   h.gossip,
		Kademlia: newKademlia(store, em, time.Second, noop.NewTracerProvider().Tracer("test")),
		Exchange: h.exch,
		Events:   events,
	}
	h.client, h.loop = NewEventLoop(b, st, Config{DownloadDir: h.dir})
	return h
}

// settle handles events until none arrive for a short while.
func (h *harness) settle() {
	for {
		select {
		case ev := <-h.events:
			h.loop.handleEvent(ev)
		case <-time.After(200 * time.Millisecond):
			return
		}
	}
}

func (h *harness) command(cmd Command) {
	h.loop.handleCommand(h.ctx, cmd)
	h.settle()
}

func (h *harness) event(ev Event) {
	h.loop.handleEvent(ev)
	h.settle()
}

// listen simulates the first loopback listen address.
func (h *harness) listen() {
	h.event(NewListenAddr{Addr: ma.StringCast("/ip4/127.0.0.1/tcp/4001")})
}

// discover simulates mDNS finding other.
func (h *harness) discover(other *harness) {
	h.event(MdnsDiscovered{Peers: []peer.AddrInfo{{
		ID:    other.local,
		Addrs: []ma.Multiaddr{ma.StringCast("/ip4/127.0.0.1/tcp/4002")},
	}}})
}

// collect takes the next n events off the queue without handling them.
func (h *harness) collect(n int) []Event {
	var out []Event
	for len(out) < n {
		select {
		case ev := <-h.events:
			out = append(out, ev)
		case <-time.After(5 * time.Second):
			h.t.Fatalf("got %d of %d events", len(out), n)
		}
	}
	return out
}

func (h *harness) lastLine(topic string) string {
	lines := h.state.Messages(topic)
	require.NotEmpty(h.t, lines, "no history for %s", topic)
	return lines[len(lines)-1]
}
