package network

import (
	"context"
	"sync"

	"github.com/baderanaas/swapbytes/pkg/exchange"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// Client is the front end's handle on the event loop. It is cheap to copy
// and safe for concurrent use. Every method blocks until the command is
// queued, ctx is done or the loop has stopped.
type Client struct {
	sender chan<- Command
	quit   chan struct{}
	done   <-chan struct{}
	once   *sync.Once
}

// Close stops the event loop once every queued command has been handled.
// It is safe to call more than once.
func (c Client) Close() {
	c.once.Do(func() { close(c.quit) })
}

func (c Client) send(ctx context.Context, cmd Command) error {
	select {
	case <-c.quit:
		return ErrEventLoopClosed
	case <-c.done:
		return ErrEventLoopClosed
	default:
	}

	select {
	case c.sender <- cmd:
		return nil
	case <-c.quit:
		return ErrEventLoopClosed
	case <-c.done:
		return ErrEventLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c Client) wait(ctx context.Context, result <-chan error) error {
	select {
	case err := <-result:
		return err
	case <-c.done:
		select {
		case err := <-result:
			return err
		default:
			return ErrEventLoopClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c Client) SendMessage(ctx context.Context, text, topic string) error {
	return c.send(ctx, SendMessage{Text: text, Topic: topic})
}

func (c Client) RequestFile(ctx context.Context, text string, p peer.ID) error {
	return c.send(ctx, RequestFile{Text: text, Peer: p})
}

// RespondFile waits until the file has been read and the response queued.
// An unreadable file is reported here and leaves the request pending.
func (c Client) RespondFile(ctx context.Context, filename, path string, ch *exchange.ResponseChannel) error {
	result := make(chan error, 1)
	if err := c.send(ctx, RespondFile{Filename: filename, Path: path, Channel: ch, Result: result}); err != nil {
		return err
	}
	return c.wait(ctx, result)
}

func (c Client) DeclineFile(ctx context.Context, ch *exchange.ResponseChannel) error {
	return c.send(ctx, DeclineFile{Channel: ch})
}

func (c Client) UpdateRating(ctx context.Context, p peer.ID, delta int32) error {
	return c.send(ctx, UpdateRating{Peer: p, Delta: delta})
}

func (c Client) CreateRoom(ctx context.Context, name string) error {
	return c.send(ctx, CreateRoom{Room: name})
}

func (c Client) FetchRooms(ctx context.Context) error {
	return c.send(ctx, FetchRooms{})
}

func (c Client) JoinRoom(ctx context.Context, topic string) error {
	return c.send(ctx, JoinRoom{Topic: topic})
}

// StartListening waits for the bind result.
func (c Client) StartListening(ctx context.Context, addr ma.Multiaddr) error {
	result := make(chan error, 1)
	if err := c.send(ctx, StartListening{Addr: addr, Result: result}); err != nil {
		return err
	}
	return c.wait(ctx, result)
}
