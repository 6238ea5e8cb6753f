// Package framer defines the shared contract implemented by each
// format-specific byte framer (Beast/Radarcape, SBS, AVR).
package framer

import (
	"github.com/pkg/errors"

	"modescore/lib/modes"
)

// ErrSyncLost indicates a structural framing error: an unexpected escape
// sequence, unknown frame type, or non-hex byte where one was required. It
// is surfaced only after any already-decoded messages from the same Feed
// call have been returned, on the next call, deterministically at offset 0
// of the remaining buffer.
var ErrSyncLost = errors.New("framer: stream synchronization lost")

// Result is the outcome of one Feed call.
type Result struct {
	// Consumed is the number of leading bytes of the input buffer that were
	// fully parsed. It never includes an incomplete trailing frame; the
	// caller must preserve buf[Consumed:] and prepend it to the next chunk.
	Consumed int
	// Messages holds every message decoded during this call, in strictly
	// increasing order of frame start offset.
	Messages []*modes.Message
	// ErrPending is true when a structural sync error was detected after
	// Messages was populated: the caller must consume Messages, advance past
	// Consumed bytes, and call Feed again to observe the error.
	ErrPending bool
}

// Framer is implemented by each format-specific byte consumer.
type Framer interface {
	// Feed parses as much of buf as forms complete frames, up to maxMessages
	// decoded messages (0 means unlimited). It never blocks.
	Feed(buf []byte, maxMessages int) (Result, error)
}
