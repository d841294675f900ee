package transfer

import (
	"github.com/gosuda/hermod/internal/noiseproto"
)

// Channel is the narrow interface transfer needs from a noiseproto.Session:
// send and receive one decrypted application message at a time. Accepting
// this instead of *noiseproto.Session keeps the request engine testable
// without a live Noise handshake.
type Channel interface {
	Send(msg noiseproto.Message) error
	Recv() (noiseproto.Message, error)
}

// Reporter receives progress notifications while a transfer runs. The CLI
// wires this to a reporter that logs progress periodically; the server side
// uses NoopReporter.
type Reporter interface {
	Advance(n int64)
	Done()
}

// NoopReporter discards all progress notifications.
type NoopReporter struct{}

func (NoopReporter) Advance(int64) {}
func (NoopReporter) Done()         {}

// pipeCapacity is the bounded channel size between the disk task and the
// network task on both the send and receive sides.
const pipeCapacity = 100

// diskChunk is one unit of work passed between a transfer's disk-side task
// and its network-side task.
type diskChunk struct {
	msg noiseproto.Message
	err error
}
