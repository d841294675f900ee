package noiseproto

import (
	"fmt"
	"net"

	"github.com/flynn/noise"

	"github.com/gosuda/hermod/internal/hermoderr"
	"github.com/gosuda/hermod/internal/wire"
)

// ShareKeyClient drives the three-message Noise_XX enrolment handshake as
// the initiator. idToken is carried as the encrypted payload of the third
// message, the way the client identity payload rides message 3 in
// portal/core/cryptoops/handshaker.go's ClientHandshake. On success it
// returns the server's static public key, disclosed during message 2 of the
// XX pattern itself (the "s" token), not as a separate payload.
func ShareKeyClient(conn net.Conn, local noise.DHKey, idToken string) (serverStatic []byte, err error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   Suite,
		Pattern:       noise.HandshakeXX,
		Initiator:     true,
		StaticKeypair: local,
		Prologue:      []byte(Prologue),
	})
	if err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindCrypto, "init XX handshake", err)
	}

	msg1, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindCrypto, "write XX message 1", err)
	}
	if err := wire.WriteFrame(conn, wire.ShareKeyInit, msg1); err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindIO, "send ShareKeyInit", err)
	}

	tag, err := wire.ReadTag(conn)
	if err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindIO, "read XX message 2 tag", err)
	}
	if tag != wire.ShareKeyResp {
		return nil, fmt.Errorf("%w: expected ShareKeyResp, got %s", hermoderr.ErrUnexpected, tag)
	}
	msg2, err := wire.ReadBody(conn)
	if err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindIO, "read XX message 2 body", err)
	}
	if _, _, _, err := hs.ReadMessage(nil, msg2); err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindCrypto, "read XX message 2", err)
	}
	serverStatic = append([]byte(nil), hs.PeerStatic()...)

	msg3, _, _, err := hs.WriteMessage(nil, []byte(idToken))
	if err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindCrypto, "write XX message 3", err)
	}
	if err := wire.WriteFrame(conn, wire.ShareKeyResp, msg3); err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindIO, "send XX message 3", err)
	}

	tag, err = wire.ReadTag(conn)
	if err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindIO, "read Okay tag", err)
	}
	if tag != wire.Okay {
		return nil, fmt.Errorf("%w: expected Okay, got %s", hermoderr.ErrUnexpected, tag)
	}
	if _, err := wire.ReadBody(conn); err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindIO, "read Okay body", err)
	}

	return serverStatic, nil
}

// ShareKeyServerResult carries what the responder half of the XX handshake
// learned about the enrolling client.
type ShareKeyServerResult struct {
	ClientStatic []byte
	IDToken      string
}

// ShareKeyServer drives the responder half of the enrolment handshake.
// hsMsg1 is the ShareKeyInit frame body the dispatcher already read off the
// wire before it knew this was a share-key connection rather than a normal
// session. On success it persists nothing itself; the caller (internal/sharekey)
// is responsible for inserting the identity only after this returns without
// error, and for sending Okay.
func ShareKeyServer(conn net.Conn, local noise.DHKey, hsMsg1 []byte) (*ShareKeyServerResult, error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   Suite,
		Pattern:       noise.HandshakeXX,
		Initiator:     false,
		StaticKeypair: local,
		Prologue:      []byte(Prologue),
	})
	if err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindCrypto, "init XX handshake", err)
	}

	if _, _, _, err := hs.ReadMessage(nil, hsMsg1); err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindCrypto, "read XX message 1", err)
	}

	msg2, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindCrypto, "write XX message 2", err)
	}
	if err := wire.WriteFrame(conn, wire.ShareKeyResp, msg2); err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindIO, "send XX message 2", err)
	}

	tag, err := wire.ReadTag(conn)
	if err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindIO, "read XX message 3 tag", err)
	}
	if tag != wire.ShareKeyResp {
		return nil, fmt.Errorf("%w: expected ShareKeyResp, got %s", hermoderr.ErrUnexpected, tag)
	}
	msg3, err := wire.ReadBody(conn)
	if err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindIO, "read XX message 3 body", err)
	}
	payload, _, _, err := hs.ReadMessage(nil, msg3)
	if err != nil {
		return nil, hermoderr.Wrap(hermoderr.KindCrypto, "read XX message 3", err)
	}
	if len(payload) != IDTokenLen {
		return nil, fmt.Errorf("noiseproto: share-key id token has wrong length: %d", len(payload))
	}

	return &ShareKeyServerResult{
		ClientStatic: append([]byte(nil), hs.PeerStatic()...),
		IDToken:      string(payload),
	}, nil
}

// SendOkay acknowledges a completed enrolment.
func SendOkay(conn net.Conn) error {
	return wire.WriteFrame(conn, wire.Okay, nil)
}
