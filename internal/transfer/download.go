package transfer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gosuda/hermod/internal/hermoderr"
	"github.com/gosuda/hermod/internal/noiseproto"
	"github.com/gosuda/hermod/internal/wire"
)

// receiveTransfer reads one Metadata frame and dispatches to the file or
// directory receive path based on its Dir flag. sourceName is the remote
// path this transfer was requested for; when the transfer turns out to be a
// single file, its basename is appended to destPath so that a
// directory-shaped destPath (e.g. "download foo.txt to /some/dir") lands at
// "/some/dir/foo.txt" rather than overwriting "/some/dir" itself. Pass "" for
// sourceName when destPath is already an exact file target, as it is for the
// per-file sub-requests receiveDirectory issues.
func receiveTransfer(ch Channel, destPath, sourceName string, reporter Reporter) error {
	msg, err := ch.Recv()
	if err != nil {
		return err
	}
	switch msg.Type {
	case wire.ErrorMsg:
		return hermoderr.New(hermoderr.KindNotFound, string(msg.Payload))
	case wire.Metadata:
		md, err := DecodeMetadata(msg.Payload)
		if err != nil {
			return err
		}
		if md.Dir {
			return receiveDirectory(ch, destPath, md, reporter)
		}
		target := destPath
		if sourceName != "" {
			target = filepath.Join(destPath, filepath.Base(sourceName))
		}
		return receiveFileBody(ch, target, md, reporter)
	default:
		return errUnexpectedType(msg.Type)
	}
}

// receiveFileBody writes one file's Payload stream to destPath. destPath is
// always computed by the caller from the local base directory; the remote
// file_path in md is never used to choose where bytes land on disk.
func receiveFileBody(ch Channel, destPath string, _ Metadata, reporter Reporter) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o700); err != nil {
		return hermoderr.Wrap(hermoderr.KindIO, "create destination directory", err)
	}
	f, err := os.OpenFile(destPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return hermoderr.Wrap(hermoderr.KindIO, "create destination file", err)
	}

	chunks := make(chan diskChunk, pipeCapacity)
	go networkReadTask(ch, chunks)

	for c := range chunks {
		if c.err != nil {
			f.Close()
			os.Remove(destPath)
			return c.err
		}
		switch c.msg.Type {
		case wire.Payload:
			if _, err := f.Write(c.msg.Payload); err != nil {
				f.Close()
				os.Remove(destPath)
				return hermoderr.Wrap(hermoderr.KindIO, "write destination file", err)
			}
			reporter.Advance(int64(len(c.msg.Payload)))
		case wire.EOF:
			reporter.Done()
			return f.Close()
		case wire.ErrorMsg:
			f.Close()
			os.Remove(destPath)
			return hermoderr.New(hermoderr.KindIO, string(c.msg.Payload))
		default:
			f.Close()
			os.Remove(destPath)
			return errUnexpectedType(c.msg.Type)
		}
	}
	return nil
}

// networkReadTask is the network-side half of the receive pipeline: it pulls
// frames off ch and hands them to the disk-side task over a bounded channel.
func networkReadTask(ch Channel, out chan<- diskChunk) {
	defer close(out)
	for {
		msg, err := ch.Recv()
		if err != nil {
			out <- diskChunk{err: err}
			return
		}
		out <- diskChunk{msg: msg}
		if msg.Type == wire.EOF || msg.Type == wire.ErrorMsg {
			return
		}
	}
}

// receiveDirectory reads the batched PathList enumeration for a directory
// transfer, then issues one Request per enumerated file to pull its content,
// rewriting each remote path onto the local destination tree.
func receiveDirectory(ch Channel, destBase string, md Metadata, reporter Reporter) error {
	remoteRoot := md.FilePath

	var paths []string
enumerate:
	for {
		msg, err := ch.Recv()
		if err != nil {
			return err
		}
		switch msg.Type {
		case wire.EOF:
			break enumerate
		case wire.ErrorMsg:
			return hermoderr.New(hermoderr.KindNotFound, string(msg.Payload))
		case wire.Payload:
			pl, err := DecodePathList(msg.Payload)
			if err != nil {
				return err
			}
			paths = append(paths, pl.Paths...)
		default:
			return errUnexpectedType(msg.Type)
		}
	}

	for _, remotePath := range paths {
		localPath := RewriteDestination(destBase, remoteRoot, remotePath)
		req := Request{Source: remotePath, Destination: localPath, Method: MethodDownload}
		if err := ch.Send(noiseproto.Message{Type: wire.Request, Payload: req.Encode()}); err != nil {
			return err
		}
		if err := receiveTransfer(ch, localPath, "", reporter); err != nil {
			return err
		}
	}
	reporter.Done()
	return nil
}

// RewriteDestination maps a remote absolute path, enumerated under
// remoteRoot, onto the local destination tree: remoteRoot's own basename
// becomes a subdirectory of destBase, and the remaining tree shape below it
// is preserved.
func RewriteDestination(destBase, remoteRoot, remotePath string) string {
	rel, err := filepath.Rel(filepath.Dir(remoteRoot), remotePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Join(filepath.Base(remoteRoot), filepath.Base(remotePath))
	}
	return filepath.Join(destBase, rel)
}

func errUnexpectedType(t wire.MessageType) error {
	return hermoderr.Wrap(hermoderr.KindUnexpectedMessage, "transfer", fmt.Errorf("unexpected message type %s", t))
}
