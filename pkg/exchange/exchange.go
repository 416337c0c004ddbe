package exchange

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"
)

// Config tunes an Exchange. Zero values select the defaults.
type Config struct {
	RequestTimeout   time.Duration
	MaxResponseBytes int64
	Logger           *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = DefaultMaxResponseBytes
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Exchange runs the single-round-trip file protocol: one stream per request,
// the requester writes a Request and half-closes, the responder writes a
// Response and closes.
type Exchange struct {
	host   host.Host
	ctx    context.Context
	cfg    Config
	emit   func(Event)
	nextID atomic.Uint64
	logger *zap.Logger
}

// New registers the protocol handler on h. Every outcome is reported through
// emit, which may be called from any goroutine.
func New(ctx context.Context, h host.Host, cfg Config, emit func(Event)) *Exchange {
	cfg = cfg.withDefaults()
	x := &Exchange{
		host:   h,
		ctx:    ctx,
		cfg:    cfg,
		emit:   emit,
		logger: cfg.Logger.Named("exchange"),
	}
	h.SetStreamHandler(ProtocolID, x.handleStream)
	return x
}

// Close unregisters the protocol handler.
func (x *Exchange) Close() error {
	x.host.RemoveStreamHandler(ProtocolID)
	return nil
}

// SendRequest asks p for a file. It returns immediately; the outcome arrives
// as ResponseReceived or OutboundFailure carrying the returned id.
func (x *Exchange) SendRequest(p peer.ID, req Request) RequestID {
	id := RequestID(x.nextID.Add(1))
	go x.request(id, p, req)
	return id
}

func (x *Exchange) request(id RequestID, p peer.ID, req Request) {
	ctx, cancel := context.WithTimeout(x.ctx, x.cfg.RequestTimeout)
	defer cancel()

	resp, err := x.roundTrip(ctx, p, req)
	if err != nil {
		x.emit(OutboundFailure{Peer: p, RequestID: id, Err: err})
		return
	}
	x.emit(ResponseReceived{Peer: p, RequestID: id, Response: resp})
}

func (x *Exchange) roundTrip(ctx context.Context, p peer.ID, req Request) (Response, error) {
	s, err := x.host.NewStream(ctx, p, ProtocolID)
	if err != nil {
		return Response{}, fmt.Errorf("failed to open stream: %w", err)
	}
	defer s.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = s.SetDeadline(deadline)
	}
	if err := writeMessage(s, req); err != nil {
		_ = s.Reset()
		return Response{}, fmt.Errorf("failed to write request: %w", err)
	}
	if err := s.CloseWrite(); err != nil {
		_ = s.Reset()
		return Response{}, fmt.Errorf("failed to close request: %w", err)
	}

	var resp Response
	if err := readMessage(s, x.cfg.MaxResponseBytes, &resp); err != nil {
		_ = s.Reset()
		return Response{}, fmt.Errorf("failed to read response: %w", err)
	}
	return resp, nil
}

// handleStream reads one request and hands the open stream to the event loop
// as a ResponseChannel. An unanswered channel is reset after the timeout.
func (x *Exchange) handleStream(s network.Stream) {
	remote := s.Conn().RemotePeer()

	_ = s.SetReadDeadline(time.Now().Add(x.cfg.RequestTimeout))
	var req Request
	if err := readMessage(s, MaxRequestBytes, &req); err != nil {
		_ = s.Reset()
		x.emit(InboundFailure{Peer: remote, Err: fmt.Errorf("failed to read request: %w", err)})
		return
	}
	_ = s.SetReadDeadline(time.Time{})

	ch := NewResponseChannel(remote, s)
	time.AfterFunc(x.cfg.RequestTimeout, func() {
		if ch.claim() {
			_ = s.Reset()
			x.emit(InboundFailure{Peer: remote, Channel: ch.ID(), Err: ErrRequestTimeout})
		}
	})

	x.logger.Debug("inbound file request", zap.Stringer("peer", remote), zap.String("channel", ch.ID()))
	x.emit(InboundRequest{Peer: remote, Request: req, Channel: ch})
}

// SendResponse answers ch. The channel is consumed synchronously; the write
// happens in the background and ends in ResponseSent or InboundFailure. A
// response over MaxResponseBytes is refused and leaves ch unused.
func (x *Exchange) SendResponse(ch *ResponseChannel, resp Response) error {
	if ch.stream == nil {
		return ErrChannelClosed
	}
	raw, err := encodeMessage(resp)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	if int64(len(raw)) > x.cfg.MaxResponseBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrResponseTooLarge, len(raw), x.cfg.MaxResponseBytes)
	}
	if !ch.claim() {
		return ErrChannelUsed
	}

	go func() {
		_ = ch.stream.SetWriteDeadline(time.Now().Add(x.cfg.RequestTimeout))
		if _, err := ch.stream.Write(raw); err != nil {
			_ = ch.stream.Reset()
			x.emit(InboundFailure{Peer: ch.peer, Channel: ch.id, Err: fmt.Errorf("failed to write response: %w", err)})
			return
		}
		if err := ch.stream.Close(); err != nil {
			x.logger.Debug("close after response", zap.Error(err))
		}
		x.emit(ResponseSent{Peer: ch.peer, Channel: ch.id})
	}()
	return nil
}

// Decline drops ch without answering. The requester sees the stream reset.
func (x *Exchange) Decline(ch *ResponseChannel) error {
	if !ch.claim() {
		return ErrChannelUsed
	}
	if ch.stream == nil {
		return nil
	}
	return ch.stream.Reset()
}
