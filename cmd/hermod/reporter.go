package main

import (
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// logInterval is how many bytes accumulate between progress log lines.
const logInterval = 4 << 20 // 4 MiB

// terminalReporter logs transfer progress periodically instead of rewriting
// a line in place, matching the teacher's plain zerolog.Info-driven status
// output rather than a dedicated progress-bar widget.
type terminalReporter struct {
	total    int64
	lastLogd int64
}

func (r *terminalReporter) Advance(n int64) {
	total := atomic.AddInt64(&r.total, n)
	last := atomic.LoadInt64(&r.lastLogd)
	if total-last >= logInterval {
		atomic.StoreInt64(&r.lastLogd, total)
		log.Info().Int64("bytes", total).Msg("transfer progress")
	}
}

func (r *terminalReporter) Done() {
	log.Info().Int64("bytes", atomic.LoadInt64(&r.total)).Msg("transfer complete")
}
