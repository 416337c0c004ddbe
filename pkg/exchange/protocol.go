package exchange

import (
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/libp2p/go-libp2p/core/protocol"
)

const (
	// ProtocolID is negotiated on every file-exchange stream.
	ProtocolID = protocol.ID("/file-exchange/1")

	// MaxRequestBytes caps an encoded Request.
	MaxRequestBytes = 1 << 20
	// DefaultMaxResponseBytes caps an encoded Response.
	DefaultMaxResponseBytes = 10 << 20
	// DefaultRequestTimeout bounds one request/response exchange.
	DefaultRequestTimeout = 2 * time.Hour
)

// Request is sent by the peer asking for a file.
type Request struct {
	Message string `cbor:"message"`
}

// Response carries the file back to the requester.
type Response struct {
	Filename string `cbor:"filename"`
	Data     []byte `cbor:"data"`
}

// RequestID identifies an outbound request on this node.
type RequestID uint64

func writeMessage(w io.Writer, v any) error {
	return cbor.NewEncoder(w).Encode(v)
}

func encodeMessage(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

func readMessage(r io.Reader, limit int64, v any) error {
	return cbor.NewDecoder(io.LimitReader(r, limit)).Decode(v)
}
