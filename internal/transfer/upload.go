package transfer

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/hermod/internal/noiseproto"
	"github.com/gosuda/hermod/internal/wire"
)

// sendTransfer streams absPath to the peer: a single file, or a whole
// directory tree followed by the per-file sub-protocol described in
// sendDirectory. absPath must already be resolved to an absolute path by the
// caller; the file_path sent in Metadata is never trusted by the receiver.
func sendTransfer(ch Channel, absPath string, reporter Reporter) error {
	info, err := os.Stat(absPath)
	if err != nil {
		return sendError(ch, err)
	}
	if info.IsDir() {
		return sendDirectory(ch, absPath, reporter)
	}
	return sendFile(ch, absPath, reporter)
}

// sendFile streams one regular file: Metadata, then a run of Payload frames,
// then EOF. A local open/stat failure is reported to the peer as an Error
// frame and is not treated as fatal to the caller — only a transport
// (ch.Send) failure aborts the session.
func sendFile(ch Channel, absPath string, reporter Reporter) error {
	f, err := os.Open(absPath)
	if err != nil {
		return sendError(ch, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return sendError(ch, err)
	}

	md := Metadata{Len: uint64(info.Size()), FilePath: absPath, Dir: false}
	if err := ch.Send(noiseproto.Message{Type: wire.Metadata, Payload: md.Encode()}); err != nil {
		return err
	}

	chunks := make(chan diskChunk, pipeCapacity)
	go readFileTask(f, chunks)

	for c := range chunks {
		if c.err != nil {
			return sendError(ch, c.err)
		}
		if err := ch.Send(c.msg); err != nil {
			return err
		}
		if c.msg.Type == wire.Payload {
			reporter.Advance(int64(len(c.msg.Payload)))
		}
	}
	return nil
}

// readFileTask is the disk-side half of the send pipeline: it reads chunks
// of up to wire.MaxPayload bytes and hands them to the network-side task
// over a bounded channel, ending in either an EOF chunk or an error chunk.
func readFileTask(f *os.File, out chan<- diskChunk) {
	defer close(out)
	buf := make([]byte, wire.MaxPayload)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			payload := make([]byte, n)
			copy(payload, buf[:n])
			out <- diskChunk{msg: noiseproto.Message{Type: wire.Payload, Payload: payload}}
		}
		if err == io.EOF {
			out <- diskChunk{msg: noiseproto.Message{Type: wire.EOF}}
			return
		}
		if err != nil {
			out <- diskChunk{err: err}
			return
		}
	}
}

// sendDirectory streams a directory's shape as a Metadata(dir=true) frame
// followed by batched PathList frames and an EOF, then answers the peer's
// per-file Request messages one at a time (the download-file sub-protocol),
// in the order the paths were enumerated.
func sendDirectory(ch Channel, rootPath string, reporter Reporter) error {
	md := Metadata{FilePath: rootPath, Dir: true}
	if err := ch.Send(noiseproto.Message{Type: wire.Metadata, Payload: md.Encode()}); err != nil {
		return err
	}

	var files []string
	walkErr := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if walkErr != nil {
		return sendError(ch, walkErr)
	}

	for _, batch := range batchPaths(files) {
		pl := PathList{Paths: batch}
		if err := ch.Send(noiseproto.Message{Type: wire.Payload, Payload: pl.Encode()}); err != nil {
			return err
		}
	}
	if err := ch.Send(noiseproto.Message{Type: wire.EOF}); err != nil {
		return err
	}

	for range files {
		msg, err := ch.Recv()
		if err != nil {
			return err
		}
		if msg.Type != wire.Request {
			return errUnexpectedType(msg.Type)
		}
		req, err := DecodeRequest(msg.Payload)
		if err != nil {
			return err
		}
		if err := sendFile(ch, req.Source, reporter); err != nil {
			return err
		}
	}
	return nil
}

// batchPaths groups paths into PathList-sized batches whose encoded form
// stays within wire.MaxPayload.
func batchPaths(paths []string) [][]string {
	var batches [][]string
	var cur []string
	size := 4 // path count prefix
	for _, p := range paths {
		entry := 4 + len(p)
		if size+entry > wire.MaxPayload && len(cur) > 0 {
			batches = append(batches, cur)
			cur = nil
			size = 4
		}
		cur = append(cur, p)
		size += entry
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches
}

// sendError reports a local failure to the peer as an Error frame and
// always returns nil: the local failure ends only the current request, not
// the session. A transport failure on that send is logged and swallowed.
func sendError(ch Channel, cause error) error {
	if err := ch.Send(noiseproto.Message{Type: wire.ErrorMsg, Payload: []byte(cause.Error())}); err != nil {
		log.Warn().Err(err).Msg("failed to report error to peer")
	}
	return nil
}
