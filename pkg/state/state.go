package state

import (
	"sync"

	"github.com/baderanaas/swapbytes/pkg/exchange"
	"github.com/baderanaas/swapbytes/pkg/topics"
	"github.com/libp2p/go-libp2p/core/peer"
)

// FileRequest is an inbound request waiting for the user to answer it.
type FileRequest struct {
	ID      string
	Peer    peer.ID
	Message string
	Channel *exchange.ResponseChannel
}

// State is the aggregate shared by the event loop and the front end. Every
// accessor takes the lock and returns copies.
type State struct {
	mu sync.RWMutex

	localPeer     peer.ID
	nickname      string
	nicknames     map[peer.ID]string
	peers         []peer.ID
	rooms         []string
	messages      map[string][]string
	requests      []FileRequest
	notifications map[string]bool
	currentRoom   string
	ratingTarget  peer.ID
}

// New returns the initial state for a user called nickname: default rooms,
// focus on Global, nothing else.
func New(nickname string) *State {
	return &State{
		nickname:      nickname,
		nicknames:     make(map[peer.ID]string),
		rooms:         topics.Defaults(),
		messages:      make(map[string][]string),
		notifications: make(map[string]bool),
		currentRoom:   topics.Global,
	}
}

func (s *State) SetLocalPeer(id peer.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.localPeer = id
}

func (s *State) LocalPeer() peer.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.localPeer
}

func (s *State) Nickname() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nickname
}

// SetNickname caches the nickname of a remote peer.
func (s *State) SetNickname(id peer.ID, nickname string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nicknames[id] = nickname
}

// NicknameOf returns the cached nickname of id.
func (s *State) NicknameOf(id peer.ID) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.nicknames[id]
	return name, ok
}

// DisplayName is the nickname of id, or a short form of the ID when unknown.
func (s *State) DisplayName(id peer.ID) string {
	if name, ok := s.NicknameOf(id); ok {
		return name
	}
	return topics.ShortID(id)
}

// Nicknames returns a copy of the nickname cache.
func (s *State) Nicknames() map[peer.ID]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[peer.ID]string, len(s.nicknames))
	for id, name := range s.nicknames {
		out[id] = name
	}
	return out
}

// PeerByNickname finds a discovered peer by its nickname.
func (s *State) PeerByNickname(nickname string) (peer.ID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.peers {
		if s.nicknames[id] == nickname {
			return id, true
		}
	}
	return "", false
}

// AddPeer records a discovered peer. It reports false if it was already known.
func (s *State) AddPeer(id peer.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.peers {
		if p == id {
			return false
		}
	}
	s.peers = append(s.peers, id)
	return true
}

func (s *State) Peers() []peer.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]peer.ID(nil), s.peers...)
}

// SetRooms replaces the room list.
func (s *State) SetRooms(rooms []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms = append([]string(nil), rooms...)
}

func (s *State) Rooms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.rooms...)
}

// EnsureHistory creates the history of topic seeded with line, unless the
// topic already has one. It reports whether the history was created.
func (s *State) EnsureHistory(topic, line string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[topic]; ok {
		return false
	}
	s.messages[topic] = []string{line}
	return true
}

// HasHistory reports whether topic has been seen.
func (s *State) HasHistory(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.messages[topic]
	return ok
}

// AppendMessage adds a rendered line to the history of topic.
func (s *State) AppendMessage(topic, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[topic] = append(s.messages[topic], line)
}

// Messages returns the history of topic, oldest first.
func (s *State) Messages(topic string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.messages[topic]...)
}

// Topics lists every topic with a history.
func (s *State) Topics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.messages))
	for topic := range s.messages {
		out = append(out, topic)
	}
	return out
}

// AddRequest queues an inbound file request.
func (s *State) AddRequest(req FileRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
}

// Requests returns the pending inbound requests, oldest first.
func (s *State) Requests() []FileRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]FileRequest(nil), s.requests...)
}

// Request looks up a pending request by id.
func (s *State) Request(id string) (FileRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, req := range s.requests {
		if req.ID == id {
			return req, true
		}
	}
	return FileRequest{}, false
}

// RemoveRequest drops a pending request once it has been answered.
func (s *State) RemoveRequest(id string) (FileRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, req := range s.requests {
		if req.ID == id {
			s.requests = append(s.requests[:i:i], s.requests[i+1:]...)
			return req, true
		}
	}
	return FileRequest{}, false
}

// MarkUnread flags topic as having unseen messages unless it is the room
// in focus. It reports whether the flag was set.
func (s *State) MarkUnread(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if topic == s.currentRoom {
		return false
	}
	s.notifications[topic] = true
	return true
}

// Unread reports the notification flag of topic.
func (s *State) Unread(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notifications[topic]
}

// Notifications returns a copy of every set notification flag.
func (s *State) Notifications() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.notifications))
	for topic, unread := range s.notifications {
		if unread {
			out[topic] = true
		}
	}
	return out
}

// Focus makes topic the current room and clears its notification flag.
func (s *State) Focus(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentRoom = topic
	s.notifications[topic] = false
}

func (s *State) CurrentRoom() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRoom
}

// SetRatingTarget records the peer we just received a file from.
func (s *State) SetRatingTarget(id peer.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratingTarget = id
}

// RatingTarget returns the peer awaiting a rating, if any.
func (s *State) RatingTarget() (peer.ID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ratingTarget, s.ratingTarget != ""
}

// ClearRatingTarget is called once the user has rated, or skipped rating.
func (s *State) ClearRatingTarget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratingTarget = ""
}
