package network

import (
	"fmt"
	"math"

	"github.com/baderanaas/swapbytes/pkg/topics"
	"go.uber.org/zap"
)

// onQueryProgressed routes a finished DHT query to whatever issued it. The
// pending entry is removed whatever the outcome.
func (l *EventLoop) onQueryProgressed(ev QueryProgressed) {
	l.metrics.QueryCompleted(ev.Op.String(), ev.Err)

	if ev.Op == OpPut {
		if ev.Err != nil {
			l.logger.Warn("failed to store record", zap.String("key", ev.Key), zap.Error(ev.Err))
			return
		}
		l.logger.Debug("record stored", zap.String("key", ev.Key))
		return
	}

	entry := l.pending.take(ev.ID)
	l.pending.report(l.metrics)

	if ev.Err != nil {
		l.onQueryFailed(ev, entry, ev.Err)
		return
	}
	value, err := DecodeValue(ev.Value)
	if err != nil {
		l.onQueryFailed(ev, entry, err)
		return
	}

	switch value.Kind {
	case KindNickname:
		if p, ok := entry.(nicknameFetch); ok {
			l.onNicknameResolved(p, value.Nickname)
			return
		}
	case KindRating:
		switch p := entry.(type) {
		case ratingFetch:
			l.deliver(ev.ID, p, topics.ChatLine(value.Rating, l.displayName(p), p.text))
			return
		case ratingUpdate:
			l.onRatingForUpdate(p, value.Rating)
			return
		}
	case KindRoomList:
		switch p := entry.(type) {
		case roomCreate:
			l.createRoom(value.Rooms, p.name)
			return
		case nil:
			// FetchRooms is not tracked.
			l.applyRooms(value.Rooms)
			return
		}
	}
	l.onQueryFailed(ev, entry, fmt.Errorf("%w: %s under %s", ErrUnexpectedValue, value.Kind, ev.Key))
}

func (l *EventLoop) onQueryFailed(ev QueryProgressed, entry any, err error) {
	switch p := entry.(type) {
	case nicknameFetch:
		l.logger.Warn("nickname lookup failed", zap.Stringer("peer", p.peer), zap.Error(err))
	case ratingFetch:
		l.logger.Debug("rating lookup failed, showing message undecorated",
			zap.Stringer("peer", p.peer), zap.Error(err))
		l.deliver(ev.ID, p, topics.PlainLine(l.displayName(p), p.text))
	case ratingUpdate:
		l.logger.Warn("rating update dropped", zap.Stringer("peer", p.peer), zap.Error(err))
	case roomCreate:
		l.logger.Debug("no room list yet, starting one", zap.String("room", p.name), zap.Error(err))
		l.createRoom(nil, p.name)
	default:
		l.logger.Debug("query failed", zap.Uint64("query", uint64(ev.ID)), zap.String("key", ev.Key), zap.Error(err))
	}
}

func (l *EventLoop) onNicknameResolved(p nicknameFetch, nickname string) {
	l.state.SetNickname(p.peer, nickname)
	l.logger.Debug("nickname resolved", zap.Stringer("peer", p.peer), zap.String("nickname", nickname))
	if p.dmTopic != "" {
		l.state.EnsureHistory(p.dmTopic, topics.DirectLine(nickname))
	}
}

// deliver appends the decorated message once every earlier message of its
// topic has been appended.
func (l *EventLoop) deliver(id QueryID, p ratingFetch, line string) {
	for _, ready := range l.inbox.resolve(p.topic, id, line) {
		l.state.AppendMessage(p.topic, ready)
	}
}

// displayName prefers a nickname resolved while the rating was in flight.
func (l *EventLoop) displayName(p ratingFetch) string {
	if name, ok := l.state.NicknameOf(p.peer); ok {
		return name
	}
	return p.nickname
}

func (l *EventLoop) onRatingForUpdate(p ratingUpdate, current int32) {
	updated := addRating(current, p.delta)
	l.logger.Info("updating rating",
		zap.Stringer("peer", p.peer),
		zap.Int32("from", current),
		zap.Int32("to", updated))
	l.putValue(RatingKey(p.peer), RatingValue(updated))
}

// addRating saturates instead of wrapping.
func addRating(current, delta int32) int32 {
	sum := int64(current) + int64(delta)
	switch {
	case sum > math.MaxInt32:
		return math.MaxInt32
	case sum < math.MinInt32:
		return math.MinInt32
	}
	return int32(sum)
}

// createRoom appends name to the fetched list, stores it when it changed
// and applies it locally.
func (l *EventLoop) createRoom(existing []string, name string) {
	rooms, added := topics.Append(existing, name)
	if added {
		l.putValue(RoomsKey, RoomListValue(rooms))
	}
	l.applyRooms(rooms)
}

// applyRooms merges rooms with the defaults and joins any we are missing.
func (l *EventLoop) applyRooms(rooms []string) {
	merged := topics.Merge(rooms)
	l.state.SetRooms(merged)
	for _, room := range merged {
		if !l.b.Gossip.Subscribed(room) {
			l.subscribe(room, topics.WelcomeLine(room))
		}
	}
}
