package noiseproto

import (
	"fmt"
	"net"
	"sync"

	"github.com/flynn/noise"

	"github.com/gosuda/hermod/internal/hermoderr"
	"github.com/gosuda/hermod/internal/wire"
)

// RekeyThreshold is the number of ciphertext bytes a Session may send on one
// direction before it rotates the outbound AEAD key in-band. 1 GiB, per the
// protocol's rekey discipline.
const RekeyThreshold = 1 << 30 // 1 GiB

// Message is a decrypted application message exchanged over a Session.
type Message struct {
	Type    wire.MessageType
	Payload []byte
}

// Session is a single TCP connection after a successful Noise_KK handshake.
// It owns the connection exclusively; send and receive directions use
// independent CipherStates (normal for Noise's transport split), with sends
// serialized because CipherState's nonce counter must advance in order.
type Session struct {
	conn net.Conn

	localID  string
	remoteID string

	sendMu          sync.Mutex
	sendCS          *noise.CipherState
	bytesSinceRekey uint64

	recvCS *noise.CipherState
}

func newSession(conn net.Conn, sendCS, recvCS *noise.CipherState, localID, remoteID string) *Session {
	return &Session{
		conn:     conn,
		sendCS:   sendCS,
		recvCS:   recvCS,
		localID:  localID,
		remoteID: remoteID,
	}
}

// LocalID returns the local identity token or alias used for this session.
func (s *Session) LocalID() string { return s.localID }

// RemoteID returns the peer's identity token or alias, if known.
func (s *Session) RemoteID() string { return s.remoteID }

// Close closes the underlying connection.
func (s *Session) Close() error { return s.conn.Close() }

// Send encrypts msg.Payload and writes a tagged, length-prefixed frame.
// len(msg.Payload) must not exceed wire.MaxPayload. If the rekey threshold
// would be crossed, Send first emits a lone Rekey byte and rotates the
// outbound key before encrypting and sending the frame — the marker always
// immediately precedes the first frame protected by the new key.
func (s *Session) Send(msg Message) error {
	if len(msg.Payload) > wire.MaxPayload {
		return fmt.Errorf("noiseproto: payload too large: %d bytes", len(msg.Payload))
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	projected := s.bytesSinceRekey + uint64(len(msg.Payload)) + TagSize
	if projected > RekeyThreshold {
		if err := wire.WriteTag(s.conn, wire.Rekey); err != nil {
			return hermoderr.Wrap(hermoderr.KindIO, "write rekey marker", err)
		}
		s.sendCS.Rekey()
		s.bytesSinceRekey = 0
	}

	ciphertext, err := s.sendCS.Encrypt(nil, nil, msg.Payload)
	if err != nil {
		return hermoderr.Wrap(hermoderr.KindCrypto, "encrypt frame", err)
	}

	if err := wire.WriteFrame(s.conn, msg.Type, ciphertext); err != nil {
		return hermoderr.Wrap(hermoderr.KindIO, "write frame", err)
	}

	s.bytesSinceRekey += uint64(len(ciphertext))
	return nil
}

// Recv reads the next frame. Close is returned as a synthetic empty message
// with no further I/O. A Rekey byte rotates the inbound key transparently
// and Recv continues on to the next tag without returning to the caller.
func (s *Session) Recv() (Message, error) {
	for {
		tag, err := wire.ReadTag(s.conn)
		if err != nil {
			return Message{}, hermoderr.Wrap(hermoderr.KindIO, "read tag", err)
		}

		if tag == wire.Close {
			return Message{Type: wire.Close}, nil
		}

		if tag == wire.Rekey {
			s.recvCS.Rekey()
			continue
		}

		body, err := wire.ReadBody(s.conn)
		if err != nil {
			return Message{}, hermoderr.Wrap(hermoderr.KindIO, "read body", err)
		}

		plaintext, err := s.recvCS.Decrypt(nil, nil, body)
		if err != nil {
			return Message{}, hermoderr.Wrap(hermoderr.KindCrypto, "decrypt frame", err)
		}

		return Message{Type: tag, Payload: plaintext}, nil
	}
}

// SendClose gracefully ends the session from the sender's side by emitting
// the lone Close byte.
func (s *Session) SendClose() error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return wire.WriteTag(s.conn, wire.Close)
}
