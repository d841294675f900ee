// Package transfer implements the file-transfer request protocol layered
// on a noiseproto.Session: the Request/Metadata/PathList envelopes and the
// upload/download state machines that stream files and directories.
package transfer

import (
	"encoding/binary"
	"fmt"
)

// Method distinguishes the two request directions.
type Method uint8

const (
	MethodUpload Method = 1
	MethodDownload Method = 2
)

func (m Method) String() string {
	switch m {
	case MethodUpload:
		return "Upload"
	case MethodDownload:
		return "Download"
	default:
		return "Unknown"
	}
}

// Request is the client's description of a single transfer.
type Request struct {
	Source      string
	Destination string
	Method      Method
}

// Metadata precedes a file's payload stream so the receiver can
// pre-allocate progress tracking and choose between the file- and
// directory-download paths.
type Metadata struct {
	Len      uint64
	FilePath string
	Dir      bool
}

// PathList is the enumerated file set streamed during directory transfer.
type PathList struct {
	Paths []string
}

// The wire encoding here is a [4-byte big-endian length][bytes] style, like
// portal/core/cryptoops/handshaker.go's encodeALPN/decodeALPN, extended
// to strings, uint64s, and bools via small append/consume helpers. It is
// deterministic: the same Go value always produces the same bytes.

func appendString(b []byte, s string) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(s)))
	return append(b, s...)
}

func consumeString(b []byte) (string, []byte, error) {
	if len(b) < 4 {
		return "", nil, fmt.Errorf("transfer: short buffer reading string length")
	}
	n := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	if uint64(len(b)) < uint64(n) {
		return "", nil, fmt.Errorf("transfer: short buffer reading string body")
	}
	return string(b[:n]), b[n:], nil
}

func appendUint64(b []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(b, v)
}

func consumeUint64(b []byte) (uint64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, fmt.Errorf("transfer: short buffer reading uint64")
	}
	return binary.BigEndian.Uint64(b[:8]), b[8:], nil
}

func appendBool(b []byte, v bool) []byte {
	if v {
		return append(b, 1)
	}
	return append(b, 0)
}

func consumeBool(b []byte) (bool, []byte, error) {
	if len(b) < 1 {
		return false, nil, fmt.Errorf("transfer: short buffer reading bool")
	}
	return b[0] != 0, b[1:], nil
}

// Encode serialises r deterministically.
func (r Request) Encode() []byte {
	var b []byte
	b = appendString(b, r.Source)
	b = appendString(b, r.Destination)
	b = append(b, byte(r.Method))
	return b
}

// DecodeRequest deserialises a Request, failing fatally (per spec §4.E) on
// malformed input.
func DecodeRequest(b []byte) (Request, error) {
	var r Request
	var err error
	r.Source, b, err = consumeString(b)
	if err != nil {
		return Request{}, fmt.Errorf("transfer: decode request source: %w", err)
	}
	r.Destination, b, err = consumeString(b)
	if err != nil {
		return Request{}, fmt.Errorf("transfer: decode request destination: %w", err)
	}
	if len(b) < 1 {
		return Request{}, fmt.Errorf("transfer: decode request method: short buffer")
	}
	r.Method = Method(b[0])
	if r.Method != MethodUpload && r.Method != MethodDownload {
		return Request{}, fmt.Errorf("transfer: decode request: unknown method %d", b[0])
	}
	return r, nil
}

// Encode serialises m deterministically.
func (m Metadata) Encode() []byte {
	var b []byte
	b = appendUint64(b, m.Len)
	b = appendString(b, m.FilePath)
	b = appendBool(b, m.Dir)
	return b
}

// DecodeMetadata deserialises a Metadata.
func DecodeMetadata(b []byte) (Metadata, error) {
	var m Metadata
	var err error
	m.Len, b, err = consumeUint64(b)
	if err != nil {
		return Metadata{}, fmt.Errorf("transfer: decode metadata len: %w", err)
	}
	m.FilePath, b, err = consumeString(b)
	if err != nil {
		return Metadata{}, fmt.Errorf("transfer: decode metadata file_path: %w", err)
	}
	m.Dir, _, err = consumeBool(b)
	if err != nil {
		return Metadata{}, fmt.Errorf("transfer: decode metadata dir: %w", err)
	}
	return m, nil
}

// Encode serialises a PathList deterministically.
func (p PathList) Encode() []byte {
	var b []byte
	b = binary.BigEndian.AppendUint32(b, uint32(len(p.Paths)))
	for _, path := range p.Paths {
		b = appendString(b, path)
	}
	return b
}

// DecodePathList deserialises a PathList.
func DecodePathList(b []byte) (PathList, error) {
	if len(b) < 4 {
		return PathList{}, fmt.Errorf("transfer: decode path list: short buffer")
	}
	n := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	paths := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		var (
			path string
			err  error
		)
		path, b, err = consumeString(b)
		if err != nil {
			return PathList{}, fmt.Errorf("transfer: decode path list entry %d: %w", i, err)
		}
		paths = append(paths, path)
	}
	return PathList{Paths: paths}, nil
}
