// Package client implements Hermod's dialing side: resolving a host record,
// establishing a Noise_KK session against it, and running one transfer
// request before gracefully closing.
package client

import (
	"net"
	"time"

	"github.com/flynn/noise"

	"github.com/gosuda/hermod/internal/hostfile"
	"github.com/gosuda/hermod/internal/noiseproto"
	"github.com/gosuda/hermod/internal/transfer"
)

// DialTimeout bounds how long connecting to a host may take.
const DialTimeout = 10 * time.Second

// dial opens a session against host, running the Noise_KK handshake as
// initiator with the keys and token saved in its host record.
func dial(host *hostfile.Host) (*noiseproto.Session, error) {
	conn, err := net.DialTimeout("tcp", host.Hostname, DialTimeout)
	if err != nil {
		return nil, err
	}

	local := noise.DHKey{Public: host.PublicKey, Private: host.PrivateKey}
	sess, err := noiseproto.DialKK(conn, local, host.ServerKey, host.IDToken)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return sess, nil
}

// Upload sends source (a file or directory) to host's filesystem at
// destination, then ends the session.
func Upload(host *hostfile.Host, source, destination string, reporter transfer.Reporter) error {
	sess, err := dial(host)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := transfer.RunUpload(sess, source, destination, reporter); err != nil {
		return err
	}
	return sess.SendClose()
}

// Download pulls source (a file or directory) from host's filesystem down
// to destination, then ends the session.
func Download(host *hostfile.Host, source, destination string, reporter transfer.Reporter) error {
	sess, err := dial(host)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := transfer.RunDownload(sess, source, destination, reporter); err != nil {
		return err
	}
	return sess.SendClose()
}

// Connect establishes an enrolment connection to hostname (no identity
// required yet) for the share-key sub-protocol.
func Connect(hostname string) (net.Conn, error) {
	return net.DialTimeout("tcp", hostname, DialTimeout)
}
