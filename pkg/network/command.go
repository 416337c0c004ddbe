package network

import (
	"github.com/baderanaas/swapbytes/pkg/exchange"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// Command is a request from the front end to the event loop.
type Command interface {
	Name() string
}

// SendMessage publishes Text to Topic and echoes it locally.
type SendMessage struct {
	Text  string
	Topic string
}

// RequestFile asks Peer for a file, described by Text.
type RequestFile struct {
	Text string
	Peer peer.ID
}

// RespondFile answers an inbound request with the file at Path, announced
// as Filename. Result receives nil once the response is on its way.
type RespondFile struct {
	Filename string
	Path     string
	Channel  *exchange.ResponseChannel
	Result   chan<- error
}

// DeclineFile drops an inbound request without answering.
type DeclineFile struct {
	Channel *exchange.ResponseChannel
}

// UpdateRating adds Delta to the reputation score of Peer.
type UpdateRating struct {
	Peer  peer.ID
	Delta int32
}

// CreateRoom adds Room to the shared room list.
type CreateRoom struct {
	Room string
}

// FetchRooms refreshes the room list from the DHT.
type FetchRooms struct{}

// JoinRoom subscribes to Topic.
type JoinRoom struct {
	Topic string
}

// StartListening binds Addr. Result receives the bind error, if any.
type StartListening struct {
	Addr   ma.Multiaddr
	Result chan<- error
}

func (SendMessage) Name() string    { return "send_message" }
func (RequestFile) Name() string    { return "request_file" }
func (RespondFile) Name() string    { return "respond_file" }
func (DeclineFile) Name() string    { return "decline_file" }
func (UpdateRating) Name() string   { return "update_rating" }
func (CreateRoom) Name() string     { return "create_room" }
func (FetchRooms) Name() string     { return "fetch_rooms" }
func (JoinRoom) Name() string       { return "join_room" }
func (StartListening) Name() string { return "start_listening" }

func reply(ch chan<- error, err error) {
	if ch == nil {
		return
	}
	select {
	case ch <- err:
	default:
	}
}
