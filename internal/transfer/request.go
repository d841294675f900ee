package transfer

import (
	"os"
	"path/filepath"

	"github.com/gosuda/hermod/internal/noiseproto"
	"github.com/gosuda/hermod/internal/wire"
)

// RunUpload is the client-initiator side of an upload: it sends the Request
// envelope describing the transfer, then streams source onto the session.
// source is resolved to an absolute path before Metadata ever names it. When
// source is a regular file, its basename is appended to destination in the
// Request itself (matching the original's Request::new, which does
// destination.push(source.file_name())) so the server writes to
// "<destination>/<basename>" rather than overwriting destination in place.
// A directory source is left as-is: the directory-receive path nests the
// root's own basename under destination on its own.
func RunUpload(ch Channel, source, destination string, reporter Reporter) error {
	abs, err := filepath.Abs(source)
	if err != nil {
		return err
	}

	reqDestination := destination
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		reqDestination = filepath.Join(destination, filepath.Base(source))
	}

	req := Request{Source: source, Destination: reqDestination, Method: MethodUpload}
	if err := ch.Send(noiseproto.Message{Type: wire.Request, Payload: req.Encode()}); err != nil {
		return err
	}
	return sendTransfer(ch, abs, reporter)
}

// RunDownload is the client-initiator side of a download: it sends the
// Request envelope, then receives whatever the responder streams back onto
// the local destination tree. Whether source names a file or a directory is
// only known once Metadata arrives, so the basename-append decision is made
// inside receiveTransfer rather than here.
func RunDownload(ch Channel, source, destination string, reporter Reporter) error {
	req := Request{Source: source, Destination: destination, Method: MethodDownload}
	if err := ch.Send(noiseproto.Message{Type: wire.Request, Payload: req.Encode()}); err != nil {
		return err
	}
	abs, err := filepath.Abs(destination)
	if err != nil {
		return err
	}
	return receiveTransfer(ch, abs, source, reporter)
}

// Respond is the server-responder side of a decoded Request: a remote
// Download streams source out to the peer, a remote Upload reads a stream
// and writes it under destination. req.Destination already carries the
// source's basename for a file upload (RunUpload computed it before
// sending), so receiveTransfer treats it as an exact target rather than
// appending anything further.
func Respond(ch Channel, req Request, reporter Reporter) error {
	switch req.Method {
	case MethodDownload:
		abs, err := filepath.Abs(req.Source)
		if err != nil {
			return err
		}
		return sendTransfer(ch, abs, reporter)
	case MethodUpload:
		abs, err := filepath.Abs(req.Destination)
		if err != nil {
			return err
		}
		return receiveTransfer(ch, abs, "", reporter)
	default:
		return errUnexpectedType(wire.Request)
	}
}
