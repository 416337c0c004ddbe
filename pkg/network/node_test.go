package network

import (
	"context"
	"testing"
	"time"

	"github.com/baderanaas/swapbytes/pkg/state"
	"github.com/baderanaas/swapbytes/pkg/topics"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/require"
)

func newTestNode(t *testing.T, nickname string) (*Node, *state.State) {
	st := state.New(nickname)
	node, err := New(context.Background(), Config{
		DataDir:      newTestDir(t),
		DownloadDir:  newTestDir(t),
		QueryTimeout: 5 * time.Second,
	}, st)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, node.Close()) })

	node.Start()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, node.Client.StartListening(ctx, ma.StringCast("/ip4/127.0.0.1/tcp/0")))
	return node, st
}

func TestNewNode(t *testing.T) {
	node, st := newTestNode(t, "Alice")
	require.NotNil(t, node.host)
	require.NotNil(t, node.dht)
	require.NotNil(t, node.pubsub)
	require.Equal(t, node.ID(), st.LocalPeer())

	require.Eventually(t, func() bool {
		return len(st.Messages(topics.Global)) == 1
	}, 5*time.Second, 50*time.Millisecond, "setup should seed the default rooms")
}

func TestStartListeningReportsBindFailure(t *testing.T) {
	node, _ := newTestNode(t, "Alice")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := node.Client.StartListening(ctx, ma.StringCast("/ip4/203.0.113.1/tcp/1"))
	require.Error(t, err)
}

// waitForSetup blocks until the node has published its records and joined
// the default rooms.
func waitForSetup(t *testing.T, st *state.State) {
	require.Eventually(t, func() bool {
		return st.HasHistory(topics.Global)
	}, 5*time.Second, 50*time.Millisecond)
}

func TestNodeToNodeChat(t *testing.T) {
	alice, aliceState := newTestNode(t, "Alice")
	bob, bobState := newTestNode(t, "Bob")
	waitForSetup(t, aliceState)
	waitForSetup(t, bobState)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Both sides learn of each other the way mDNS reports it.
	bob.local.HandlePeerFound(peer.AddrInfo{ID: alice.ID(), Addrs: alice.host.Addrs()})
	alice.local.HandlePeerFound(peer.AddrInfo{ID: bob.ID(), Addrs: bob.host.Addrs()})

	require.Eventually(t, func() bool {
		name, ok := bobState.NicknameOf(alice.ID())
		return ok && name == "Alice"
	}, 20*time.Second, 100*time.Millisecond, "discovery should resolve the nickname")
	dm := topics.DirectTopic(alice.ID(), bob.ID())
	require.Eventually(t, func() bool {
		lines := bobState.Messages(dm)
		return len(lines) == 1 && lines[0] == topics.DirectLine("Alice")
	}, 5*time.Second, 50*time.Millisecond)

	// Wait for the gossip mesh before publishing.
	require.Eventually(t, func() bool {
		for _, p := range alice.pubsub.ListPeers(topics.Global) {
			if p == bob.ID() {
				return true
			}
		}
		return false
	}, 15*time.Second, 100*time.Millisecond)

	require.NoError(t, alice.Client.SendMessage(ctx, "hello", topics.Global))

	require.Eventually(t, func() bool {
		for _, line := range bobState.Messages(topics.Global) {
			if line == "Alice: hello" {
				return true
			}
		}
		return false
	}, 20*time.Second, 100*time.Millisecond)
}
