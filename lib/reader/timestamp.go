package reader

import (
	"time"

	"modescore/lib/modes"
)

// outlierLimit is the number of consecutive out-of-range timestamps that
// are tolerated silently, with last_timestamp held where it was. The next
// outlier after that fires EVENT_TIMESTAMP_JUMP and becomes the new
// last_timestamp anchor.
const outlierLimit = 1

const (
	endOfDayFloor = 86_340 * 1_000_000_000 // ns
	endOfDayCeil  = 60 * 1_000_000_000     // ns
)

// timestampState is the per-Reader clock-discipline bookkeeping: the last
// accepted device timestamp, the wall-clock instant it was accepted at, and
// the run of consecutive out-of-range samples since the last good one.
type timestampState struct {
	lastTimestamp uint64
	lastTsMono    time.Time
	outliers      int
}

func isSyntheticTimestamp(ts uint64) bool {
	return ts == 0 || isMLATSentinel(ts)
}

// adjustTimestamp rewrites msg.Timestamp in place so it reflects the start
// of the frame's preamble rather than wherever the device latched it. Only
// Beast/Radarcape streams carry a raw counter needing this; AVR and SBS
// framers already hand back a frame-start-aligned value.
func (r *Reader) adjustTimestamp(msg *modes.Message) {
	if isSyntheticTimestamp(msg.Timestamp) {
		return
	}

	switch r.mode {
	case ModeBeast:
		adjust := cycleAdjust(msg)
		if msg.Timestamp < adjust {
			msg.Timestamp = 0
		} else {
			msg.Timestamp -= adjust
		}

	case ModeRadarcape, ModeRadarcapeEmulated:
		nanos := msg.Timestamp & 0x3FFFFFFF
		secs := msg.Timestamp >> 30

		if !r.utcBugfix {
			if secs == 0 {
				secs = 86399
			} else {
				secs--
			}
		}

		widened := nanos + secs*1_000_000_000

		adjust := nsAdjust(msg)
		if adjust <= widened {
			widened -= adjust
		} else {
			widened += 86_400*1_000_000_000 - adjust
		}
		msg.Timestamp = widened
	}
}

// cycleAdjust returns the 12MHz-cycle offset between when the Beast device
// latches a timestamp and the true start of the frame's preamble. Status
// and position event sentinels (df >= EventTimestampJump) get no adjustment,
// matching frame types other than Mode A/C/short/long in the source; this
// is keyed on df rather than body length since a status frame's 14-byte
// payload would otherwise be indistinguishable from a Mode S long body.
func cycleAdjust(msg *modes.Message) uint64 {
	switch {
	case msg.DF == modes.MODEAC:
		return 244 // latched at F2, 20.3us after F1
	case msg.DF < 16:
		return 768 // Mode S short: latched at end of preamble+data
	case msg.DF < modes.MODEAC:
		return 768 // Mode S long: same latch point as short
	default:
		return 0
	}
}

// nsAdjust is cycleAdjust's Radarcape-GPS-nanosecond-domain equivalent.
func nsAdjust(msg *modes.Message) uint64 {
	switch {
	case msg.DF == modes.MODEAC:
		return 20_300
	case msg.DF < 16:
		return 64_000
	case msg.DF < modes.MODEAC:
		return 120_000
	default:
		return 0
	}
}

// checkRollover reports whether the already-adjusted msg.Timestamp crosses
// the Radarcape UTC-midnight epoch boundary, ahead of any discipline or
// last_timestamp update. Unlike discipline, this applies even to Mode A/C
// frames.
func (r *Reader) checkRollover(msg *modes.Message) bool {
	if !r.mode.isRadarcape() {
		return false
	}
	return r.ts.lastTimestamp >= endOfDayFloor && msg.Timestamp <= endOfDayCeil
}

// disciplineTimestamp runs end-of-day rollover detection (all frames),
// clock-reset detection and outlier/jump bookkeeping (non-MODEAC frames
// only), and the last_timestamp/last_ts_mono anchor update.
func (r *Reader) disciplineTimestamp(msg *modes.Message) (jump, rollover, clockReset bool) {
	if isSyntheticTimestamp(msg.Timestamp) {
		return false, false, false
	}
	freq := r.mode.frequency()
	if freq == 0 {
		return false, false, false
	}

	now := r.now()
	rollover = r.checkRollover(msg)

	if !rollover && msg.DF != modes.MODEAC {
		if r.overClockResetThreshold(msg.Timestamp, freq) {
			return false, rollover, true
		}
		if !r.timestampCheck(msg.Timestamp, now, freq) && r.ts.outliers > outlierLimit {
			jump = true
		}
	}

	if msg.DF != modes.MODEAC {
		r.timestampUpdate(msg.Timestamp, now, freq)
	}

	return jump, rollover, false
}

// timestampCheck compares ts against the extrapolated wall-clock position
// of last_timestamp, bumping (or resetting) the outlier run. It returns
// false for an out-of-range sample.
func (r *Reader) timestampCheck(ts uint64, now time.Time, freq uint64) bool {
	if r.ts.lastTimestamp == 0 {
		return true
	}

	tsElapsed := int64(ts) - int64(r.ts.lastTimestamp)
	sysElapsed := now.Sub(r.ts.lastTsMono).Milliseconds() * int64(freq) / 1000
	maxOffset := int64(1.25 * float64(freq))

	if tsElapsed > sysElapsed+maxOffset || tsElapsed < sysElapsed-maxOffset {
		r.ts.outliers++
		observeOutlier()
		return false
	}
	r.ts.outliers = 0
	return true
}

// timestampUpdate re-anchors last_timestamp/last_ts_mono, subject to the
// same guards the device clock's quirks require: small backwards moves and
// a Radarcape rollback across an already-reported epoch boundary are
// ignored, and a run of up to outlierLimit outliers doesn't move the anchor
// yet (so that the frame right after EVENT_TIMESTAMP_JUMP becomes the new
// anchor, per the single-bad-sample-then-recover case).
func (r *Reader) timestampUpdate(ts uint64, now time.Time, freq uint64) {
	if r.ts.lastTimestamp == 0 {
		r.ts.lastTimestamp = ts
		r.ts.lastTsMono = now
		return
	}

	if r.ts.lastTimestamp > ts && (r.ts.lastTimestamp-ts) < 90*freq {
		return
	}

	if r.mode.isRadarcape() && ts >= endOfDayFloor && r.ts.lastTimestamp <= endOfDayCeil {
		return
	}

	if r.ts.outliers > 0 && r.ts.outliers <= outlierLimit {
		return
	}

	r.ts.lastTimestamp = ts
	r.ts.lastTsMono = now
}

// overClockResetThreshold reports a timestamp excursion severe enough to be
// a device clock reset rather than a recoverable outlier: more than 90
// frequency-seconds away in a free-running (non-GPS) mode, or more than one
// second away in a GPS-disciplined mode.
func (r *Reader) overClockResetThreshold(ts uint64, freq uint64) bool {
	if r.ts.lastTimestamp == 0 {
		return false
	}

	var diff uint64
	if ts > r.ts.lastTimestamp {
		diff = ts - r.ts.lastTimestamp
	} else {
		diff = r.ts.lastTimestamp - ts
	}

	if r.mode.isRadarcape() {
		return diff > freq
	}
	return diff > 90*freq
}
