package state

// RequestView is the serialisable form of a FileRequest.
type RequestView struct {
	ID       string `json:"id"`
	Peer     string `json:"peer"`
	Nickname string `json:"nickname"`
	Message  string `json:"message"`
}

// PeerView is the serialisable form of a discovered peer.
type PeerView struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname,omitempty"`
}

// Snapshot is a consistent copy of the state for read-only consumers.
type Snapshot struct {
	LocalPeer    string          `json:"local_peer"`
	Nickname     string          `json:"nickname"`
	CurrentRoom  string          `json:"current_room"`
	Rooms        []string        `json:"rooms"`
	Unread       map[string]bool `json:"unread"`
	Peers        []PeerView      `json:"peers"`
	Requests     []RequestView   `json:"requests"`
	RatingTarget string          `json:"rating_target,omitempty"`
}

// Snapshot copies everything but message histories under one lock.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		LocalPeer:   s.localPeer.String(),
		Nickname:    s.nickname,
		CurrentRoom: s.currentRoom,
		Rooms:       append([]string(nil), s.rooms...),
		Unread:      make(map[string]bool),
		Peers:       make([]PeerView, 0, len(s.peers)),
		Requests:    make([]RequestView, 0, len(s.requests)),
	}
	if s.localPeer == "" {
		snap.LocalPeer = ""
	}
	for topic, unread := range s.notifications {
		if unread {
			snap.Unread[topic] = true
		}
	}
	for _, id := range s.peers {
		snap.Peers = append(snap.Peers, PeerView{ID: id.String(), Nickname: s.nicknames[id]})
	}
	for _, req := range s.requests {
		snap.Requests = append(snap.Requests, RequestView{
			ID:       req.ID,
			Peer:     req.Peer.String(),
			Nickname: s.nicknames[req.Peer],
			Message:  req.Message,
		})
	}
	if s.ratingTarget != "" {
		snap.RatingTarget = s.ratingTarget.String()
	}
	return snap
}
