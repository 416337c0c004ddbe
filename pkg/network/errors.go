package network

import "errors"

var (
	// ErrEventLoopClosed is returned by Client once the event loop has stopped.
	ErrEventLoopClosed = errors.New("event loop closed")
	// ErrUndecodable is returned for DHT values matching none of the record shapes.
	ErrUndecodable = errors.New("value is not a nickname, rating or room list")
	// ErrUnexpectedValue is reported when a query returns a value of the wrong shape.
	ErrUnexpectedValue = errors.New("unexpected value for query")
)
