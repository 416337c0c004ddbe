package topics

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/libp2p/go-libp2p/core/peer"
)

// Global is the room every peer lands in.
const Global = "Global"

// maxNameLength bounds user-created room names.
const maxNameLength = 64

// DefaultRooms are compiled in and subscribed at startup. They are never
// written to the shared room list.
var DefaultRooms = []string{Global, "COSC473", "COSC478", "SENG406", "SENG402"}

var (
	ErrEmptyName    = errors.New("room name is empty")
	ErrNameTooLong  = fmt.Errorf("room name is longer than %d characters", maxNameLength)
	ErrReservedName = errors.New("room name is reserved for direct messages")
)

// Defaults returns a fresh copy of the default room list.
func Defaults() []string {
	return append([]string(nil), DefaultRooms...)
}

// IsDefault reports whether name is one of the compiled-in rooms.
func IsDefault(name string) bool {
	for _, room := range DefaultRooms {
		if room == name {
			return true
		}
	}
	return false
}

// ValidateName normalises a user supplied room name.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if IsDirect(name) {
		return "", ErrReservedName
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", ErrNameTooLong
	}
	return name, nil
}

// Merge returns the default rooms followed by rooms, keeping the first
// occurrence of every name. Merge(Merge(x)) == Merge(x).
func Merge(rooms []string) []string {
	merged := make([]string, 0, len(DefaultRooms)+len(rooms))
	seen := make(map[string]struct{}, cap(merged))
	for _, list := range [][]string{DefaultRooms, rooms} {
		for _, room := range list {
			if room == "" {
				continue
			}
			if _, ok := seen[room]; ok {
				continue
			}
			seen[room] = struct{}{}
			merged = append(merged, room)
		}
	}
	return merged
}

// Append adds name to a shared room list unless it is already present or is a
// default room. The input slice is not modified.
func Append(rooms []string, name string) ([]string, bool) {
	out := make([]string, len(rooms), len(rooms)+1)
	copy(out, rooms)
	if IsDefault(name) {
		return out, false
	}
	for _, room := range rooms {
		if room == name {
			return out, false
		}
	}
	return append(out, name), true
}

// DirectTopic returns the topic shared by exactly two peers: the
// lexicographically larger ID, an underscore, then the smaller one.
func DirectTopic(a, b peer.ID) string {
	x, y := a.String(), b.String()
	if x < y {
		x, y = y, x
	}
	return x + "_" + y
}

// IsDirect reports whether topic has the shape of a direct-message topic.
func IsDirect(topic string) bool {
	left, right, ok := strings.Cut(topic, "_")
	if !ok || strings.Contains(right, "_") {
		return false
	}
	if _, err := peer.Decode(left); err != nil {
		return false
	}
	_, err := peer.Decode(right)
	return err == nil
}

// WelcomeLine is the first line of every room history.
func WelcomeLine(room string) string {
	return fmt.Sprintf("✨ Welcome to the %s chat!", room)
}

// DirectLine is the first line of a direct conversation once the other
// peer's nickname is known.
func DirectLine(nickname string) string {
	return fmt.Sprintf("💬 This is the start of your conversation with %s", nickname)
}

// EchoLine is how our own messages appear in history.
func EchoLine(text string) string {
	return "You: " + text
}

// Glyph maps a reputation score to its display prefix.
func Glyph(rating int32) string {
	switch {
	case rating > 0:
		return "😇"
	case rating < 0:
		return "👿"
	default:
		return ""
	}
}

// ChatLine renders an inbound message, prefixed by the sender's reputation
// glyph when the score is non-zero.
func ChatLine(rating int32, nickname, text string) string {
	if g := Glyph(rating); g != "" {
		return fmt.Sprintf("%s %s: %s", g, nickname, text)
	}
	return PlainLine(nickname, text)
}

// PlainLine renders an inbound message without any reputation decoration.
func PlainLine(nickname, text string) string {
	return fmt.Sprintf("%s: %s", nickname, text)
}

// ShortID is the display fallback for peers whose nickname is unknown.
func ShortID(id peer.ID) string {
	s := id.String()
	if len(s) > 12 {
		return s[len(s)-12:]
	}
	return s
}
