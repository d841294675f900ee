// Package sharekey implements the enrolment sub-protocol a new client runs
// once against a server to exchange static keys and obtain an identity
// token, persisting the result as a host record (client) or an authorized
// client entry (server).
package sharekey

import (
	"encoding/base64"
	"net"

	"github.com/flynn/noise"
	"github.com/rs/zerolog/log"
	"lukechampine.com/frand"

	"github.com/gosuda/hermod/internal/hostfile"
	"github.com/gosuda/hermod/internal/identity"
	"github.com/gosuda/hermod/internal/noiseproto"
)

// tokenEntropyBytes yields a 12-character (padded) base64 token, matching
// noiseproto.IDTokenLen.
const tokenEntropyBytes = 8

// NewIDToken generates a fresh identity token, the same way Enroll does for
// a client enrolling over the wire. cmd/hermod's gen-key command uses this
// directly to mint a token for a host record with no server contact at all.
func NewIDToken() string {
	return base64.StdEncoding.EncodeToString(frand.Bytes(tokenEntropyBytes))
}

func newIDToken() string {
	return NewIDToken()
}

// Enroll runs the client side of the enrolment protocol over conn and
// returns the resulting host record. Enroll itself writes nothing to disk;
// the caller saves the record, and gets one only when the handshake
// completes successfully.
func Enroll(conn net.Conn, local noise.DHKey, alias, hostname string) (*hostfile.Host, error) {
	idToken := newIDToken()

	serverStatic, err := noiseproto.ShareKeyClient(conn, local, idToken)
	if err != nil {
		return nil, err
	}

	return &hostfile.Host{
		Alias:      alias,
		Hostname:   hostname,
		IDToken:    idToken,
		PublicKey:  local.Public,
		PrivateKey: local.Private,
		ServerKey:  serverStatic,
	}, nil
}

// Accept runs the server side of the enrolment protocol over conn, given
// the first handshake message already read off the wire by the dispatcher.
// On success the new client's identity is recorded in store and the peer is
// sent an Okay acknowledgement.
func Accept(conn net.Conn, local noise.DHKey, hsMsg1 []byte, store *identity.Store) error {
	result, err := noiseproto.ShareKeyServer(conn, local, hsMsg1)
	if err != nil {
		return err
	}

	if err := store.Insert(identity.Identity{
		IDToken:   result.IDToken,
		ClientKey: result.ClientStatic,
	}); err != nil {
		return err
	}
	log.Info().Str("token_fp", identity.Fingerprint(result.IDToken)).Msg("enrolled new identity")

	return noiseproto.SendOkay(conn)
}
