package network

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/baderanaas/swapbytes/pkg/exchange"
	"github.com/baderanaas/swapbytes/pkg/topics"
	"go.uber.org/zap"
)

const publishTimeout = 10 * time.Second

func (l *EventLoop) handleCommand(ctx context.Context, cmd Command) {
	l.metrics.CommandHandled(cmd.Name())

	switch cmd := cmd.(type) {
	case SendMessage:
		l.sendMessage(ctx, cmd)
	case RequestFile:
		id := l.b.Exchange.SendRequest(cmd.Peer, exchange.Request{Message: cmd.Text})
		l.logger.Info("requesting file", zap.Stringer("peer", cmd.Peer), zap.Uint64("request", uint64(id)))
	case RespondFile:
		reply(cmd.Result, l.respondFile(cmd))
	case DeclineFile:
		if err := l.b.Exchange.Decline(cmd.Channel); err != nil {
			l.logger.Warn("failed to decline request", zap.String("request", cmd.Channel.ID()), zap.Error(err))
		}
		l.state.RemoveRequest(cmd.Channel.ID())
	case UpdateRating:
		id := l.b.Kademlia.GetRecord(RatingKey(cmd.Peer))
		l.pending.updates[id] = ratingUpdate{peer: cmd.Peer, delta: cmd.Delta}
		l.pending.report(l.metrics)
	case CreateRoom:
		name, err := topics.ValidateName(cmd.Room)
		if err != nil {
			l.logger.Warn("not creating room", zap.String("room", cmd.Room), zap.Error(err))
			return
		}
		id := l.b.Kademlia.GetRecord(RoomsKey)
		l.pending.rooms[id] = roomCreate{name: name}
		l.pending.report(l.metrics)
	case FetchRooms:
		l.b.Kademlia.GetRecord(RoomsKey)
	case JoinRoom:
		seed := topics.WelcomeLine(cmd.Topic)
		if topics.IsDirect(cmd.Topic) {
			seed = ""
		}
		l.subscribe(cmd.Topic, seed)
	case StartListening:
		reply(cmd.Result, l.b.Swarm.Listen(cmd.Addr))
	default:
		l.logger.Debug("unhandled command", zap.String("command", cmd.Name()))
	}
}

func (l *EventLoop) sendMessage(ctx context.Context, cmd SendMessage) {
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := l.b.Gossip.Publish(pctx, cmd.Topic, []byte(cmd.Text)); err != nil {
		l.logger.Warn("failed to publish", zap.String("topic", cmd.Topic), zap.Error(err))
	} else {
		l.metrics.MessagePublished()
	}
	l.state.AppendMessage(cmd.Topic, topics.EchoLine(cmd.Text))
}

// respondFile reads the file and hands it to the exchange. A read failure
// or a file over the response limit is returned to the caller and the
// request stays pending.
func (l *EventLoop) respondFile(cmd RespondFile) error {
	info, err := os.Stat(cmd.Path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", cmd.Path, err)
	}
	if info.Size() > l.maxFileSize {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", exchange.ErrResponseTooLarge, cmd.Path, info.Size(), l.maxFileSize)
	}
	data, err := os.ReadFile(cmd.Path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", cmd.Path, err)
	}
	resp := exchange.Response{Filename: cmd.Filename, Data: data}
	if err := l.b.Exchange.SendResponse(cmd.Channel, resp); err != nil {
		return fmt.Errorf("failed to send %s: %w", cmd.Filename, err)
	}
	l.state.RemoveRequest(cmd.Channel.ID())
	l.logger.Info("sending file",
		zap.Stringer("peer", cmd.Channel.Peer()),
		zap.String("filename", cmd.Filename),
		zap.Int("bytes", len(data)))
	return nil
}
