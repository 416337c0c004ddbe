package exchange

import "github.com/libp2p/go-libp2p/core/peer"

// Event is produced by the exchange and consumed by the node's event loop.
type Event interface {
	exchangeEvent()
}

// InboundRequest is a remote peer asking us for a file. Channel must be
// answered exactly once, or declined.
type InboundRequest struct {
	Peer    peer.ID
	Request Request
	Channel *ResponseChannel
}

// ResponseReceived is the answer to one of our requests.
type ResponseReceived struct {
	Peer      peer.ID
	RequestID RequestID
	Response  Response
}

// ResponseSent reports a response fully written to the requester.
type ResponseSent struct {
	Peer    peer.ID
	Channel string
}

// OutboundFailure reports a request of ours that got no response.
type OutboundFailure struct {
	Peer      peer.ID
	RequestID RequestID
	Err       error
}

// InboundFailure reports an inbound request that could not be read or answered.
type InboundFailure struct {
	Peer    peer.ID
	Channel string
	Err     error
}

func (InboundRequest) exchangeEvent()   {}
func (ResponseReceived) exchangeEvent() {}
func (ResponseSent) exchangeEvent()     {}
func (OutboundFailure) exchangeEvent()  {}
func (InboundFailure) exchangeEvent()   {}
