// Package avr implements the AVR textual framing formats: hex-digit bodies
// terminated by ';' and any mix of CR/LF, with a leading byte selecting the
// subformat (timestamp/signal presence).
package avr

import (
	"modescore/lib/framer"
	"modescore/lib/modes"
)

// Framer implements framer.Framer for AVR text streams.
type Framer struct{}

// New returns a ready-to-use AVR framer.
func New() *Framer { return &Framer{} }

func (f *Framer) Feed(buf []byte, maxMessages int) (framer.Result, error) {
	var res framer.Result
	pos := 0

	for pos < len(buf) {
		if maxMessages > 0 && len(res.Messages) >= maxMessages {
			break
		}

		lead := buf[pos]
		switch lead {
		case '@', '%', '<', '*', ':':
		default:
			return f.syncError(&res, pos)
		}

		end, complete, invalid := findTerminator(buf, pos+1)
		if invalid {
			return f.syncError(&res, pos)
		}
		if !complete {
			res.Consumed = pos
			return res, nil
		}

		hexPart := buf[pos+1 : end]
		msg, ok := decodeFrame(lead, hexPart)
		if !ok {
			return f.syncError(&res, pos)
		}
		res.Messages = append(res.Messages, msg)

		next := end + 1
		for next < len(buf) && (buf[next] == '\r' || buf[next] == '\n') {
			next++
		}
		pos = next
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

// findTerminator returns the index of the frame-ending ';' starting the
// search at from. A non-hex byte encountered before ';' is a sync error;
// running out of buffer before either is an incomplete frame.
func findTerminator(buf []byte, from int) (idx int, complete bool, invalid bool) {
	for i := from; i < len(buf); i++ {
		if buf[i] == ';' {
			return i, true, false
		}
		if !isHexDigit(buf[i]) {
			return i, false, true
		}
	}
	return len(buf), false, false
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func decodeFrame(lead byte, hexPart []byte) (*modes.Message, bool) {
	var timestampHex, signalHex, bodyHex []byte

	switch lead {
	case '@', '%':
		if len(hexPart) < 12 {
			return nil, false
		}
		timestampHex = hexPart[:12]
		bodyHex = hexPart[12:]
	case '<':
		if len(hexPart) < 14 {
			return nil, false
		}
		timestampHex = hexPart[:12]
		signalHex = hexPart[12:14]
		bodyHex = hexPart[14:]
	case '*', ':':
		bodyHex = hexPart
	}

	bodyLen, ok := byteLenForHexDigits(len(bodyHex))
	if !ok {
		return nil, false
	}

	var timestamp uint64
	if timestampHex != nil {
		v, ok := parseHex(timestampHex)
		if !ok {
			return nil, false
		}
		timestamp = v
	}

	var signal uint8
	if signalHex != nil {
		v, ok := parseHex(signalHex)
		if !ok {
			return nil, false
		}
		signal = uint8(v)
	}

	body, ok := hexToBytes(bodyHex)
	if !ok || len(body) != bodyLen {
		return nil, false
	}

	return modes.Decode(timestamp, signal, body), true
}

func byteLenForHexDigits(n int) (int, bool) {
	switch n {
	case 4:
		return 2, true
	case 14:
		return 7, true
	case 28:
		return 14, true
	default:
		return 0, false
	}
}

func parseHex(digits []byte) (uint64, bool) {
	var v uint64
	for _, d := range digits {
		n, ok := hexNibble(d)
		if !ok {
			return 0, false
		}
		v = v<<4 | uint64(n)
	}
	return v, true
}

func hexToBytes(digits []byte) ([]byte, bool) {
	if len(digits)%2 != 0 {
		return nil, false
	}
	out := make([]byte, len(digits)/2)
	for i := 0; i < len(out); i++ {
		hi, ok1 := hexNibble(digits[2*i])
		lo, ok2 := hexNibble(digits[2*i+1])
		if !ok1 || !ok2 {
			return nil, false
		}
		out[i] = hi<<4 | lo
	}
	return out, true
}

func hexNibble(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	default:
		return 0, false
	}
}
