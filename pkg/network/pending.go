package network

import (
	"github.com/baderanaas/swapbytes/pkg/metrics"
	"github.com/libp2p/go-libp2p/core/peer"
)

const (
	purposeNickname     = "nickname-fetch"
	purposeRatingFetch  = "rating-fetch"
	purposeRatingUpdate = "rating-update"
	purposeRoomCreate   = "room-create"
)

// nicknameFetch resolves a discovered peer's nickname. dmTopic is seeded
// with a conversation line once the name is known; it is empty for lazy
// refreshes triggered by chat messages.
type nicknameFetch struct {
	peer    peer.ID
	dmTopic string
}

// ratingFetch holds an inbound chat message until the sender's score is known.
type ratingFetch struct {
	peer     peer.ID
	text     string
	nickname string
	topic    string
}

// ratingUpdate is the read half of a read-modify-write on a peer's score.
type ratingUpdate struct {
	peer  peer.ID
	delta int32
}

// roomCreate is the read half of a read-modify-write on the room list.
type roomCreate struct {
	name string
}

// pendingQueries tracks in-flight DHT gets by purpose. A QueryID appears in
// at most one table and is removed on any terminal result. Owned by the
// event loop; not safe for concurrent use.
type pendingQueries struct {
	nicknames map[QueryID]nicknameFetch
	ratings   map[QueryID]ratingFetch
	updates   map[QueryID]ratingUpdate
	rooms     map[QueryID]roomCreate
}

func newPendingQueries() *pendingQueries {
	return &pendingQueries{
		nicknames: make(map[QueryID]nicknameFetch),
		ratings:   make(map[QueryID]ratingFetch),
		updates:   make(map[QueryID]ratingUpdate),
		rooms:     make(map[QueryID]roomCreate),
	}
}

// take removes and returns the entry for id, or nil if id is untracked.
func (p *pendingQueries) take(id QueryID) any {
	if e, ok := p.nicknames[id]; ok {
		delete(p.nicknames, id)
		return e
	}
	if e, ok := p.ratings[id]; ok {
		delete(p.ratings, id)
		return e
	}
	if e, ok := p.updates[id]; ok {
		delete(p.updates, id)
		return e
	}
	if e, ok := p.rooms[id]; ok {
		delete(p.rooms, id)
		return e
	}
	return nil
}

// purposes lists the tables holding id.
func (p *pendingQueries) purposes(id QueryID) []string {
	var out []string
	if _, ok := p.nicknames[id]; ok {
		out = append(out, purposeNickname)
	}
	if _, ok := p.ratings[id]; ok {
		out = append(out, purposeRatingFetch)
	}
	if _, ok := p.updates[id]; ok {
		out = append(out, purposeRatingUpdate)
	}
	if _, ok := p.rooms[id]; ok {
		out = append(out, purposeRoomCreate)
	}
	return out
}

// resolvingNickname reports whether a nickname fetch for id is in flight.
func (p *pendingQueries) resolvingNickname(id peer.ID) bool {
	for _, e := range p.nicknames {
		if e.peer == id {
			return true
		}
	}
	return false
}

func (p *pendingQueries) size() int {
	return len(p.nicknames) + len(p.ratings) + len(p.updates) + len(p.rooms)
}

func (p *pendingQueries) report(m *metrics.Metrics) {
	m.SetPending(purposeNickname, len(p.nicknames))
	m.SetPending(purposeRatingFetch, len(p.ratings))
	m.SetPending(purposeRatingUpdate, len(p.updates))
	m.SetPending(purposeRoomCreate, len(p.rooms))
}
