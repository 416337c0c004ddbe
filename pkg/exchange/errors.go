package exchange

import "errors"

var (
	// ErrChannelUsed is returned when answering a channel twice.
	ErrChannelUsed = errors.New("response channel already used")
	// ErrChannelClosed is returned when the channel has no live stream.
	ErrChannelClosed = errors.New("response channel has no stream")
	// ErrRequestTimeout is reported when an inbound request is never answered.
	ErrRequestTimeout = errors.New("request timed out before a response was sent")
	// ErrResponseTooLarge is returned for responses over the size limit.
	ErrResponseTooLarge = errors.New("response exceeds the size limit")
	// ErrInvalidFilename is returned for names that would escape the download directory.
	ErrInvalidFilename = errors.New("invalid filename")
)
