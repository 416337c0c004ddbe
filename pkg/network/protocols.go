package network

import (
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
)

const (
	// DHTPrefix keeps the swapbytes DHT separate from the public IPFS one.
	DHTPrefix = protocol.ID("/swapbytes")

	// RecordNamespace is the DHT namespace every record lives under.
	RecordNamespace = "swapbytes"

	// DefaultDiscoveryNamespace is the mDNS service name and rendezvous namespace.
	DefaultDiscoveryNamespace = "swapbytes"

	// RoomsKey holds the shared list of user-created rooms.
	RoomsKey = "rooms"

	// gossipPeerTag protects connections to peers found on the local network.
	gossipPeerTag = "swapbytes-gossip"
	// rendezvousTag protects the connection to the rendezvous point.
	rendezvousTag = "swapbytes-rendezvous"
)

// NicknameKey is the record holding the nickname of id.
func NicknameKey(id peer.ID) string {
	return "nickname_" + id.String()
}

// RatingKey is the record holding the reputation score of id.
func RatingKey(id peer.ID) string {
	return "rating_" + id.String()
}

// recordKey maps a logical key to its DHT key.
func recordKey(key string) string {
	return "/" + RecordNamespace + "/" + key
}
