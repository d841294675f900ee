// Package wire implements Hermod's framed wire format: a one-byte message
// type tag, a two-byte big-endian length, and a ciphertext body. It knows
// nothing about encryption — internal/noiseproto layers the Noise session
// on top of the primitives here.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/valyala/bytebufferpool"
)

// MessageType is the one-byte tag on every frame.
type MessageType byte

const (
	Init           MessageType = 1
	Response       MessageType = 2
	Request        MessageType = 3
	Payload        MessageType = 4
	Metadata       MessageType = 5
	EOF            MessageType = 6
	ErrorMsg       MessageType = 7
	Close          MessageType = 8
	Okay           MessageType = 9
	ShareKeyInit   MessageType = 10
	ShareKeyResp   MessageType = 11
	ShareIdentity  MessageType = 12
	ShareHost      MessageType = 13
	EndOfResponse  MessageType = 14
	Rekey          MessageType = 15
)

func (t MessageType) String() string {
	switch t {
	case Init:
		return "Init"
	case Response:
		return "Response"
	case Request:
		return "Request"
	case Payload:
		return "Payload"
	case Metadata:
		return "Metadata"
	case EOF:
		return "EOF"
	case ErrorMsg:
		return "Error"
	case Close:
		return "Close"
	case Okay:
		return "Okay"
	case ShareKeyInit:
		return "ShareKeyInit"
	case ShareKeyResp:
		return "ShareKeyResp"
	case ShareIdentity:
		return "ShareIdentity"
	case ShareHost:
		return "ShareHost"
	case EndOfResponse:
		return "EndOfResponse"
	case Rekey:
		return "Rekey"
	default:
		return "Unknown"
	}
}

const (
	// PacketMaxLength is the largest frame body, {type,length,ciphertext}
	// combined, that may appear on the wire.
	PacketMaxLength = 65536

	headerLen = 3 // 1 type byte + 2 length bytes
	tagLen    = 16

	// MaxPayload is the largest plaintext a single Send may carry.
	MaxPayload = PacketMaxLength - headerLen - tagLen
)

var bufPool bytebufferpool.Pool

// WriteFrame emits tag | len_be16(len(body)) | body to w. body is the
// ciphertext (or plaintext, during the handshake) for this frame; its length
// must fit in a uint16 and the combined frame must not exceed
// PacketMaxLength.
func WriteFrame(w io.Writer, tag MessageType, body []byte) error {
	if len(body) > PacketMaxLength-headerLen {
		return fmt.Errorf("wire: frame body too large: %d bytes", len(body))
	}

	buf := bufPool.Get()
	defer bufPool.Put(buf)
	buf.Reset()

	buf.B = append(buf.B, byte(tag))
	buf.B = binary.BigEndian.AppendUint16(buf.B, uint16(len(body)))
	buf.B = append(buf.B, body...)

	_, err := w.Write(buf.B)
	return err
}

// WriteTag emits a single tag byte with no length or body, used for the
// Close and Rekey markers.
func WriteTag(w io.Writer, tag MessageType) error {
	_, err := w.Write([]byte{byte(tag)})
	return err
}

// ReadTag reads exactly the one-byte tag that opens every frame.
func ReadTag(r io.Reader) (MessageType, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return MessageType(b[0]), nil
}

// ReadBody reads the two-byte length prefix and the body that follows it.
// Call this only after ReadTag has returned a tag that carries a body (i.e.
// not Close or Rekey).
func ReadBody(r io.Reader) ([]byte, error) {
	var lb [2]byte
	if _, err := io.ReadFull(r, lb[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint16(lb[:])
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// HasBody reports whether tag is followed by a length+body on the wire.
// Close and Rekey are lone bytes; every other tag carries a frame body.
func HasBody(tag MessageType) bool {
	return tag != Close && tag != Rekey
}
