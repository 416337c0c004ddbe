package network

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ValueKind tells the three DHT record shapes apart.
type ValueKind int

const (
	KindNickname ValueKind = iota + 1
	KindRating
	KindRoomList
)

func (k ValueKind) String() string {
	switch k {
	case KindNickname:
		return "nickname"
	case KindRating:
		return "rating"
	case KindRoomList:
		return "room list"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a decoded DHT record.
type Value struct {
	Kind     ValueKind
	Nickname string
	Rating   int32
	Rooms    []string
}

func NicknameValue(nickname string) Value {
	return Value{Kind: KindNickname, Nickname: nickname}
}

func RatingValue(rating int32) Value {
	return Value{Kind: KindRating, Rating: rating}
}

func RoomListValue(rooms []string) Value {
	return Value{Kind: KindRoomList, Rooms: rooms}
}

// Marshal encodes the payload of v as CBOR: a text string, an integer or an
// array of text strings.
func (v Value) Marshal() ([]byte, error) {
	switch v.Kind {
	case KindNickname:
		return cbor.Marshal(v.Nickname)
	case KindRating:
		return cbor.Marshal(v.Rating)
	case KindRoomList:
		rooms := v.Rooms
		if rooms == nil {
			rooms = []string{}
		}
		return cbor.Marshal(rooms)
	default:
		return nil, fmt.Errorf("cannot marshal value of %s", v.Kind)
	}
}

// DecodeValue tries the record shapes in a fixed order: nickname, then
// rating, then room list. The first that decodes wins.
func DecodeValue(data []byte) (Value, error) {
	// null and undefined would decode as zero values of any shape.
	if len(data) == 0 || data[0] == 0xf6 || data[0] == 0xf7 {
		return Value{}, ErrUndecodable
	}

	var nickname string
	if err := cbor.Unmarshal(data, &nickname); err == nil {
		return NicknameValue(nickname), nil
	}
	var rating int32
	if err := cbor.Unmarshal(data, &rating); err == nil {
		return RatingValue(rating), nil
	}
	var rooms []string
	if err := cbor.Unmarshal(data, &rooms); err == nil {
		return RoomListValue(rooms), nil
	}
	return Value{}, ErrUndecodable
}
