// Package server implements Hermod's listening side: an accept loop that
// classifies each new connection by its first frame and either runs the
// enrolment sub-protocol or a full Noise_KK session serving transfer
// requests.
package server

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/flynn/noise"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/hermod/internal/config"
	"github.com/gosuda/hermod/internal/hermoderr"
	"github.com/gosuda/hermod/internal/identity"
	"github.com/gosuda/hermod/internal/noiseproto"
	"github.com/gosuda/hermod/internal/sharekey"
	"github.com/gosuda/hermod/internal/transfer"
	"github.com/gosuda/hermod/internal/wire"
)

// Dispatcher accepts connections on a listener and serves them with bounded
// concurrency, the way portal-tunnel's own accept-and-proxy loop bounds its
// funnel workers.
type Dispatcher struct {
	listener net.Listener
	local    noise.DHKey
	idents   *identity.Store
	sem      chan struct{}
}

// New builds a Dispatcher serving listener with the given server static
// keypair and authorized-client store.
func New(listener net.Listener, local noise.DHKey, idents *identity.Store) *Dispatcher {
	return &Dispatcher{
		listener: listener,
		local:    local,
		idents:   idents,
		sem:      make(chan struct{}, config.ConnectionLimit),
	}
}

// Serve runs the accept loop until ctx is cancelled or the listener returns
// a fatal error. Only an Accept error whose net.Error reports Timeout() is
// treated as transient: the loop sleeps for the cooldown and continues.
// Every other Accept error, whatever its errno, ends the loop and is
// returned.
func (d *Dispatcher) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = d.listener.Close()
	}()

	for {
		conn, err := d.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if isTransientAcceptErr(err) {
				log.Warn().Err(err).Msg("transient accept error, backing off")
				time.Sleep(config.AcceptCooldown * time.Millisecond)
				continue
			}
			return err
		}

		d.sem <- struct{}{}
		connID := uuid.NewString()
		go func() {
			defer func() { <-d.sem }()
			if err := d.handleConn(conn); err != nil {
				log.Debug().Err(err).Str("conn", connID).Str("remote", conn.RemoteAddr().String()).Msg("connection ended")
			}
		}()
	}
}

func isTransientAcceptErr(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (d *Dispatcher) handleConn(conn net.Conn) error {
	defer conn.Close()

	tag, err := wire.ReadTag(conn)
	if err != nil {
		return err
	}

	switch tag {
	case wire.Init:
		return d.handleSessionInit(conn)
	case wire.ShareKeyInit:
		return d.handleShareKeyInit(conn)
	default:
		// Unrecognised first frame: drop the connection silently rather
		// than confirm what kind of thing rejected it.
		return hermoderr.New(hermoderr.KindUnexpectedMessage, "unrecognised first frame")
	}
}

func (d *Dispatcher) handleSessionInit(conn net.Conn) error {
	body, err := wire.ReadBody(conn)
	if err != nil {
		return err
	}
	if len(body) < noiseproto.IDTokenLen {
		return hermoderr.New(hermoderr.KindEncoding, "Init frame shorter than id token")
	}
	token := string(body[:noiseproto.IDTokenLen])
	hsMsg1 := body[noiseproto.IDTokenLen:]

	id, err := d.idents.Lookup(token)
	if err != nil {
		// Unknown identity: drop the connection without a protocol reply.
		// Log a fingerprint rather than the bearer token itself.
		log.Debug().Str("token_fp", identity.Fingerprint(token)).Msg("rejected unknown identity")
		return err
	}

	sess, err := noiseproto.AcceptKK(conn, d.local, id.ClientKey, token, hsMsg1)
	if err != nil {
		return err
	}
	defer sess.Close()

	return d.serveSession(sess)
}

func (d *Dispatcher) handleShareKeyInit(conn net.Conn) error {
	body, err := wire.ReadBody(conn)
	if err != nil {
		return err
	}
	return sharekey.Accept(conn, d.local, body, d.idents)
}

// serveSession answers transfer Requests on an established session until
// the peer closes it or an unexpected message type ends it.
func (d *Dispatcher) serveSession(sess *noiseproto.Session) error {
	for {
		msg, err := sess.Recv()
		if err != nil {
			return err
		}

		switch msg.Type {
		case wire.Close:
			return nil
		case wire.Request:
			req, err := transfer.DecodeRequest(msg.Payload)
			if err != nil {
				return err
			}
			if err := transfer.Respond(sess, req, transfer.NoopReporter{}); err != nil {
				log.Warn().Err(err).Str("source", req.Source).Msg("request failed")
			}
		default:
			return hermoderr.New(hermoderr.KindUnexpectedMessage, "expected Request or Close")
		}
	}
}
