// Package beast implements the Beast/Radarcape binary framing format: an
// 0x1A escape byte followed by a type byte, a 6-byte big-endian timestamp,
// a 1-byte signal level, and a type-length body, with 0x1A doubled whenever
// it occurs as a literal data byte.
package beast

import (
	"modescore/lib/framer"
	"modescore/lib/modes"
)

const escape = 0x1A

// Raw type-4/5 payloads are handed upstream as event-sentinel messages so
// that lib/reader (which owns decoder-mode and utc-bugfix state) can build
// the EVENT_RADARCAPE_STATUS / EVENT_RADARCAPE_POSITION payloads and decide
// on mode transitions. Data carries the untouched payload bytes.
const (
	typeModeAC   = '1'
	typeShort    = '2'
	typeLong     = '3'
	typeStatus   = '4'
	typePosition = '5'
)

// Framer implements framer.Framer for Beast/Radarcape streams.
type Framer struct{}

// New returns a ready-to-use Beast/Radarcape framer. The framer itself is
// stateless between calls; all timestamp/mode discipline lives upstream.
func New() *Framer { return &Framer{} }

func (f *Framer) Feed(buf []byte, maxMessages int) (framer.Result, error) {
	var res framer.Result
	pos := 0

	for pos < len(buf) {
		if maxMessages > 0 && len(res.Messages) >= maxMessages {
			break
		}

		if buf[pos] != escape {
			return f.syncError(&res, pos)
		}
		if pos+1 >= len(buf) {
			res.Consumed = pos
			return res, nil
		}

		typeByte := buf[pos+1]
		bodyLen, hasPrefix, ok := frameShape(typeByte)
		if !ok {
			return f.syncError(&res, pos)
		}

		need := bodyLen
		if hasPrefix {
			need += 7
		}

		logical, rawConsumed, complete, syncErr := deEscape(buf[pos+2:], need)
		if syncErr {
			return f.syncError(&res, pos)
		}
		if !complete {
			res.Consumed = pos
			return res, nil
		}

		msg := buildMessage(typeByte, hasPrefix, logical)
		res.Messages = append(res.Messages, msg)
		pos += 2 + rawConsumed
	}

	res.Consumed = pos
	return res, nil
}

func (f *Framer) syncError(res *framer.Result, pos int) (framer.Result, error) {
	if len(res.Messages) > 0 {
		res.Consumed = pos
		res.ErrPending = true
		return *res, nil
	}
	return *res, framer.ErrSyncLost
}

// frameShape returns the body length and whether a timestamp+signal prefix
// precedes it, for a given Beast type byte.
func frameShape(typeByte byte) (bodyLen int, hasPrefix bool, ok bool) {
	switch typeByte {
	case typeModeAC:
		return 2, true, true
	case typeShort:
		return 7, true, true
	case typeLong:
		return 14, true, true
	case typeStatus:
		return 14, true, true
	case typePosition:
		return 21, false, true
	default:
		return 0, false, false
	}
}

// deEscape reads `need` logical bytes from src, collapsing every 0x1A 0x1A
// pair into a single 0x1A. It returns complete=false (not a sync error) when src
// runs out before `need` bytes are assembled, so the caller can wait for
// more data.
func deEscape(src []byte, need int) (logical []byte, consumed int, complete bool, syncErr bool) {
	logical = make([]byte, 0, need)
	i := 0
	for len(logical) < need {
		if i >= len(src) {
			return logical, i, false, false
		}
		b := src[i]
		if b == escape {
			if i+1 >= len(src) {
				return logical, i, false, false
			}
			if src[i+1] == escape {
				logical = append(logical, escape)
				i += 2
				continue
			}
			return logical, i, false, true
		}
		logical = append(logical, b)
		i++
	}
	return logical, i, true, false
}

func buildMessage(typeByte byte, hasPrefix bool, logical []byte) *modes.Message {
	if typeByte == typePosition {
		return modes.NewEvent(modes.EventRadarcapePosition, 0, logical)
	}

	timestamp := uint64(logical[0])<<40 | uint64(logical[1])<<32 | uint64(logical[2])<<24 |
		uint64(logical[3])<<16 | uint64(logical[4])<<8 | uint64(logical[5])
	signal := logical[6]
	body := logical[7:]

	if typeByte == typeStatus {
		m := modes.NewEvent(modes.EventRadarcapeStatus, timestamp, body)
		m.Signal = signal
		return m
	}

	return modes.Decode(timestamp, signal, body)
}
