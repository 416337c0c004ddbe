package network

import (
	"errors"

	record "github.com/libp2p/go-libp2p-record"
)

// Validator accepts any value that decodes as one of the record shapes.
// There is no ownership check: any peer may overwrite any record.
type Validator struct{}

var _ record.Validator = Validator{}

func (Validator) Validate(key string, value []byte) error {
	_, err := DecodeValue(value)
	return err
}

// Select keeps the longest room list for the rooms record, so concurrent
// creators converge on the most complete list. Other keys keep the first.
func (Validator) Select(key string, values [][]byte) (int, error) {
	if len(values) == 0 {
		return 0, errors.New("no values to select from")
	}
	_, logical, err := record.SplitKey(key)
	if err != nil || logical != RoomsKey {
		return 0, nil
	}

	best, longest := 0, -1
	for i, raw := range values {
		v, err := DecodeValue(raw)
		if err != nil || v.Kind != KindRoomList {
			continue
		}
		if len(v.Rooms) > longest {
			best, longest = i, len(v.Rooms)
		}
	}
	return best, nil
}
