package noiseproto

import (
	"fmt"
	"net"

	"github.com/flynn/noise"

	"github.com/gosuda/hermod/internal/hermoderr"
	"github.com/gosuda/hermod/internal/wire"
)

// Prologue binds every Hermod handshake to this protocol version so a
// mismatched peer fails the handshake instead of silently desyncing.
const Prologue = "hermod/noise/1"

// IDTokenLen is the length, in bytes, of an identity token as it appears on
// the wire (12 base64 characters of 8 random bytes).
const IDTokenLen = 12

// DialKK runs the Noise_KK handshake as initiator: the client already knows
// the server's static public key (remoteStatic) from its host record, and
// presents idToken so the server can look up the client's static key.
// Returns a transport-mode Session on success.
func DialKK(conn net.Conn, local noise.DHKey, remoteStatic []byte, idToken string) (*Session, error) {
	if len(idToken) != IDTokenLen {
		return nil, fmt.Errorf("noiseproto: id token must be %d bytes, got %d", IDTokenLen, len(idToken))
	}

	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   Suite,
		Pattern:       noise.HandshakeKK,
		Initiator:     true,
		StaticKeypair: local,
		PeerStatic:    remoteStatic,
		Prologue:      []byte(Prologue),
	})
	if err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindCrypto, "init KK handshake", err)
	}

	msg1, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindCrypto, "write KK message 1", err)
	}
	body := append([]byte(idToken), msg1...)
	if err := wire.WriteFrame(conn, wire.Init, body); err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindIO, "send Init", err)
	}

	tag, err := wire.ReadTag(conn)
	if err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindIO, "read handshake reply tag", err)
	}
	if tag != wire.Response {
		return nil, fmt.Errorf("%w: expected Response, got %s", hermoderr.ErrUnexpected, tag)
	}
	msg2, err := wire.ReadBody(conn)
	if err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindIO, "read Response body", err)
	}

	_, cs1, cs2, err := hs.ReadMessage(nil, msg2)
	if err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindCrypto, "read KK message 2", err)
	}

	// cs1 = initiator→responder (our send key), cs2 = responder→initiator (our recv key).
	return newSession(conn, cs1, cs2, idToken, ""), nil
}

// AcceptKK runs the responder half of Noise_KK. The caller (the server
// dispatcher) has already consumed the Init tag and split its frame body
// into the 12-byte id token and the remaining handshake bytes (hsMsg1);
// remoteStatic is the client's static public key as resolved from that
// token via the identity store.
func AcceptKK(conn net.Conn, local noise.DHKey, remoteStatic []byte, remoteID string, hsMsg1 []byte) (*Session, error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   Suite,
		Pattern:       noise.HandshakeKK,
		Initiator:     false,
		StaticKeypair: local,
		PeerStatic:    remoteStatic,
		Prologue:      []byte(Prologue),
	})
	if err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindCrypto, "init KK handshake", err)
	}

	if _, _, _, err := hs.ReadMessage(nil, hsMsg1); err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindCrypto, "read KK message 1", err)
	}

	msg2, cs1, cs2, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindCrypto, "write KK message 2", err)
	}
	if err := wire.WriteFrame(conn, wire.Response, msg2); err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindIO, "send Response", err)
	}

	// cs1 = initiator→responder (our recv key), cs2 = responder→initiator (our send key).
	return newSession(conn, cs2, cs1, "", remoteID), nil
}
