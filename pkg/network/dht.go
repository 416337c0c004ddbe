package network

import (
	"context"

	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/host"
)

// NewDHT starts a server-mode DHT on h with an in-memory record store and the
// swapbytes record validator. Records do not survive a restart.
func NewDHT(ctx context.Context, h host.Host, opts ...dht.Option) (*dht.IpfsDHT, error) {
	base := []dht.Option{
		dht.Mode(dht.ModeServer),
		dht.ProtocolPrefix(DHTPrefix),
		dht.Datastore(dssync.MutexWrap(ds.NewMapDatastore())),
		dht.NamespacedValidator(RecordNamespace, Validator{}),
	}
	return dht.New(ctx, h, append(base, opts...)...)
}
